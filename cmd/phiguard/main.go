package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hengadev/phiguard"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := phiguard.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	var err error
	command := os.Args[1]
	switch command {
	case "genkey":
		err = genkeyCommand(os.Args[2:], os.Stdout)
	case "checkkey":
		err = checkkeyCommand(os.Args[2:], os.Stdout)
	case "migrate":
		err = migrateCommand(os.Args[2:], os.Stdout)
	case "health":
		err = healthCommand(os.Args[2:], os.Stdout)
	case "scan":
		err = scanCommand(os.Args[2:], os.Stdout)
	case "policy":
		err = policyCommand(os.Args[2:], os.Stdout)
	case "version":
		fmt.Println("phiguard version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	switch {
	case errors.Is(err, errRejected), errors.Is(err, errUnhealthy):
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  genkey    Generate an encryption key, optionally storing it in Vault or wrapping it with KMS\n")
	fmt.Fprintf(os.Stderr, "  checkkey  Check that the configured encryption key is usable\n")
	fmt.Fprintf(os.Stderr, "  migrate   Create or update the database schema\n")
	fmt.Fprintf(os.Stderr, "  health    Probe the database, the encryption key and the audit log\n")
	fmt.Fprintf(os.Stderr, "  scan      Run content validation on a file\n")
	fmt.Fprintf(os.Stderr, "  policy    Print or write the auto-approval policy\n")
	fmt.Fprintf(os.Stderr, "  version   Show version information\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
