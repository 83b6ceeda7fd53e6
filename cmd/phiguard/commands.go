package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hengadev/phiguard"
	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/validation"
	"github.com/hengadev/phiguard/providers/keys/awskms"
	"github.com/hengadev/phiguard/providers/keys/vault"
)

// errUnhealthy reports a failed critical health check.
var errUnhealthy = errors.New("unhealthy")

// errRejected reports a file that failed content validation. The details
// have already been printed.
var errRejected = errors.New("file rejected")

const commandTimeout = 30 * time.Second

func genkeyCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	vaultPath := fs.String("vault", "", "Store the key at this Vault KV v2 path instead of printing it")
	kmsKeyID := fs.String("kms", "", "Wrap the key with this AWS KMS key id or alias and print the blob")
	region := fs.String("region", "", "AWS region for -kms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *vaultPath != "" && *kmsKeyID != "" {
		return errors.New("-vault and -kms are mutually exclusive")
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch {
	case *vaultPath != "":
		src, err := vault.New(*vaultPath)
		if err != nil {
			return err
		}
		if err := src.StoreKey(ctx, key); err != nil {
			return err
		}
		fmt.Fprintf(out, "Key stored at %s. Set %s=%s.\n", *vaultPath, phiguard.EnvKeyVaultPath, *vaultPath)
	case *kmsKeyID != "":
		wrapper, err := awskms.NewWrapper(ctx, awskms.Config{Region: *region})
		if err != nil {
			return err
		}
		blob, err := wrapper.Wrap(ctx, *kmsKeyID, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, blob)
	default:
		fmt.Fprintln(out, key)
	}
	return nil
}

func checkkeyCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("checkkey", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := phiguard.Config{
		EncryptionKey:        os.Getenv(phiguard.EnvEncryptionKey),
		KeyVaultPath:         os.Getenv(phiguard.EnvKeyVaultPath),
		EncryptionKeyKMSBlob: os.Getenv(phiguard.EnvEncryptionKeyKMSBlob),
		KMSRegion:            os.Getenv(phiguard.EnvKMSRegion),
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	key, err := phiguard.ResolveKey(ctx, cfg)
	if err != nil {
		return err
	}

	box, err := crypto.NewBox(key, crypto.WithLogger(monitoring.Discard()))
	if err != nil {
		return err
	}
	sealed, err := box.Encrypt("phiguard key check")
	if err != nil {
		return err
	}
	if _, err := box.Decrypt(*sealed); err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Encryption key is valid")
	return nil
}

func migrateCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := phiguard.LoadConfigFromEnvironment()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	core, err := phiguard.New(ctx, cfg, phiguard.WithLogger(monitoring.Discard()))
	if err != nil {
		return err
	}
	defer core.Close()

	fmt.Fprintf(out, "✓ Schema is up to date (%s)\n", cfg.DatabaseDriver)
	return nil
}

func healthCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := phiguard.LoadConfigFromEnvironment()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	core, err := phiguard.New(ctx, cfg, phiguard.WithLogger(monitoring.Discard()))
	if err != nil {
		return err
	}
	defer core.Close()

	report := core.Health(ctx)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Status == phiguard.HealthUnhealthy {
		return errUnhealthy
	}
	return nil
}

func scanCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	mimeType := fs.String("mime", "", "Declared MIME type of the file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *mimeType == "" {
		return errors.New("usage: scan -mime <type> <file>")
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	result := validation.New().Validate(data, *mimeType, path)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Valid {
		return errRejected
	}
	return nil
}

func policyCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("policy", flag.ContinueOnError)
	file := fs.String("file", os.Getenv(phiguard.EnvPolicyFile), "Policy file to load; the built-in policy when empty")
	write := fs.String("write", "", "Write the effective policy to this path instead of printing it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	policy, err := documents.LoadPolicy(*file)
	if err != nil {
		return err
	}
	data, err := policy.Marshal()
	if err != nil {
		return err
	}

	if *write != "" {
		if err := os.WriteFile(*write, data, 0o644); err != nil {
			return fmt.Errorf("failed to write policy file: %w", err)
		}
		fmt.Fprintf(out, "Policy written to %s\n", *write)
		return nil
	}
	_, err = out.Write(data)
	return err
}
