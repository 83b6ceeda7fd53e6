package phiguard

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hengadev/phiguard/internal/audit"
	"github.com/hengadev/phiguard/internal/authz"
	"github.com/hengadev/phiguard/internal/consent"
	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/health"
	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/schema"
	"github.com/hengadev/phiguard/internal/store"
	"github.com/hengadev/phiguard/internal/upload"
	"github.com/hengadev/phiguard/providers/storage"
)

// Core wires encryption, consent, documents, authorization, uploads,
// object storage and auditing over one relational store.
type Core struct {
	cfg    Config
	logger *slog.Logger
	ownsDB bool

	db       *store.DB
	box      *crypto.Box
	policy   documents.Policy
	consents *consent.Store
	docs     *documents.Repositories
	auditor  *audit.Auditor
	engine   *authz.Engine
	uploads  *upload.Service
	storage  *storage.Router
	health   *health.Checker
	metrics  *monitoring.Counters
}

// New validates cfg, resolves the encryption key, opens and migrates the
// store and wires every component. A missing or malformed key is an error
// wrapping ErrInvalidConfiguration; there is no unencrypted mode.
func New(ctx context.Context, cfg Config, opts ...Option) (*Core, error) {
	var o options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	if o.keySource != nil {
		key, err := fetchKey(ctx, o.keySource)
		if err != nil {
			return nil, err
		}
		cfg.EncryptionKey, cfg.KeyVaultPath, cfg.EncryptionKeyKMSBlob = key, "", ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := ResolveKey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKey = key

	logger := o.logger
	if logger == nil {
		logger = monitoring.NewLogger(monitoring.LoggerConfig{
			Level:  monitoring.ParseLevel(cfg.LogLevel),
			Format: monitoring.ParseFormat(cfg.LogFormat),
			Output: os.Stderr,
		})
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	box, err := crypto.NewBox(cfg.EncryptionKey, crypto.WithLogger(logger.With("component", "crypto")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	policy, err := documents.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	router, err := newStorageRouter(ctx, cfg, o.providers)
	if err != nil {
		return nil, err
	}

	open := o.openStore
	if open == nil {
		open = openStore
	}
	db, ownsDB, err := open(ctx, cfg, o)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Core, error) {
		if ownsDB {
			db.Close()
		}
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		return fail(err)
	}

	metrics := monitoring.NewCounters()
	sinks := append([]audit.Sink{
		audit.NewSQLSink(db, audit.WithSinkLogger(logger.With("component", "audit"))),
		audit.NewLogSink(logger.With("component", "audit")),
		audit.NewMetricsSink(metrics),
	}, o.sinks...)
	auditor := audit.New(audit.Multi(sinks...), audit.WithClock(now))

	consents := consent.NewStore(db, consent.WithClock(now))
	docs := documents.NewRepositories(db)

	uploadOpts := []upload.Option{
		upload.WithPolicy(policy),
		upload.WithLogger(logger.With("component", "upload")),
	}
	if o.notifier != nil {
		uploadOpts = append(uploadOpts, upload.WithNotifier(o.notifier))
	}

	c := &Core{
		cfg:      cfg,
		logger:   logger,
		ownsDB:   ownsDB,
		db:       db,
		box:      box,
		policy:   policy,
		consents: consents,
		docs:     docs,
		auditor:  auditor,
		engine:   authz.NewEngine(consents, docs, auditor, box, authz.WithLogger(logger.With("component", "authz"))),
		uploads:  upload.NewService(box, docs, router, auditor, uploadOpts...),
		storage:  router,
		health:   health.NewChecker(),
		metrics:  metrics,
	}
	if err := c.registerHealthChecks(o.healthChecks); err != nil {
		return fail(err)
	}

	logger.InfoContext(ctx, "phiguard core ready",
		"database_driver", db.Dialect().String(),
		"storage_type", string(router.DefaultType()),
	)
	return c, nil
}

func openStore(ctx context.Context, cfg Config, o options) (*store.DB, bool, error) {
	dialect := schema.ParseDatabaseType(cfg.DatabaseDriver)
	if o.db != nil {
		return store.Wrap(o.db, dialect), false, nil
	}
	if dialect == schema.SQLite && !strings.Contains(cfg.DatabaseDSN, ":memory:") {
		if dir := filepath.Dir(cfg.DatabaseDSN); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, false, fmt.Errorf("%w: create database dir: %w", ErrInvalidConfiguration, err)
			}
		}
	}
	db, err := store.Open(ctx, dialect, cfg.DatabaseDSN)
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}

func newStorageRouter(ctx context.Context, cfg Config, extra []storage.Provider) (*storage.Router, error) {
	defaultType, err := storage.ParseType(cfg.StorageType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	injected := false
	for _, p := range extra {
		if p.Type() == defaultType {
			injected = true
		}
	}

	var providers []storage.Provider
	if !injected {
		switch defaultType {
		case storage.TypeS3:
			p, err := storage.NewS3(ctx, storage.S3Config{Bucket: cfg.S3Bucket, Region: cfg.S3Region})
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			var signingKey []byte
			if cfg.LocalStorageSigningKey != "" {
				signingKey, _ = hex.DecodeString(cfg.LocalStorageSigningKey)
			}
			p, err := storage.NewLocal(storage.LocalConfig{
				Dir:        cfg.LocalStorageDir,
				BaseURL:    cfg.LocalStorageBaseURL,
				SigningKey: signingKey,
			})
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
	}
	return storage.NewRouter(defaultType, append(providers, extra...)...)
}

// Close releases the store unless it was supplied with WithDatabase.
func (c *Core) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

// Authorize decides a single document request and records the decision.
func (c *Core) Authorize(ctx context.Context, req AccessRequest) (Decision, error) {
	return c.engine.Authorize(ctx, req)
}

// ListAccessibleDocuments returns every document of the patient the
// accessor may currently see, grouped by category.
func (c *Core) ListAccessibleDocuments(ctx context.Context, req ListRequest) (Listing, error) {
	return c.engine.ListAccessibleDocuments(ctx, req)
}

// Upload validates and stores a document.
func (c *Core) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	return c.uploads.Upload(ctx, req)
}

// DocumentAccess is an authorization decision together with the decrypted
// PHI of the document and, when requested, a download link.
type DocumentAccess struct {
	Decision
	Values   map[string]string
	Download *DownloadURL
}

// AccessDocument authorizes req and, when allowed, decrypts the document's
// PHI. With download set it also issues a time-limited link and records the
// download against the consent that allowed it.
func (c *Core) AccessDocument(ctx context.Context, req AccessRequest, download bool) (*DocumentAccess, error) {
	decision, err := c.engine.Authorize(ctx, req)
	if err != nil {
		return nil, err
	}
	access := &DocumentAccess{Decision: decision}
	if !decision.Authorized {
		return access, nil
	}

	doc := decision.Document
	values, err := doc.Decrypted(c.box)
	if err != nil {
		c.logger.Log(ctx, monitoring.SlogLevelCritical, "document failed integrity check",
			"document_id", doc.ID,
			"document_type", doc.Category.String(),
			"patient_id", doc.PatientID,
		)
		return nil, err
	}
	access.Values = values

	if !download || doc.StorageKey == "" {
		return access, nil
	}

	link, err := c.storage.GenerateDownloadURL(ctx, doc.StorageKey, c.cfg.DownloadURLTTL, doc.FileName, storage.Type(doc.StorageType))
	if err != nil {
		return nil, err
	}
	access.Download = link

	c.auditor.LogPhiAccess(ctx, audit.PHIAccessEntry{
		UserID:       req.Accessor.ID,
		UserRole:     string(req.Accessor.Type),
		PatientID:    req.PatientID,
		ResourceType: doc.Category.String(),
		ResourceID:   doc.ID,
		Action:       audit.ActionDownload,
		Purpose:      authz.AccessTag(req.Accessor.Type, decision.ConsentType),
		Success:      true,
		IPAddress:    req.Client.IPAddress,
		UserAgent:    req.Client.UserAgent,
	})
	return access, nil
}

func (c *Core) registerHealthChecks(extra []health.Check) error {
	checks := []health.Check{
		{
			Name:     "database",
			Critical: true,
			Probe: func(ctx context.Context) error {
				return c.db.SQL().PingContext(ctx)
			},
		},
		{
			Name:     "encryption",
			Critical: true,
			Probe: func(context.Context) error {
				sealed, err := c.box.Encrypt("health")
				if err != nil {
					return err
				}
				_, err = c.box.Decrypt(*sealed)
				return err
			},
		},
		{
			Name: "audit_log",
			Probe: func(ctx context.Context) error {
				var n int
				return c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_logs WHERE 1 = 0`).Scan(&n)
			},
		},
	}
	for _, check := range append(checks, extra...) {
		if err := c.health.Register(check); err != nil {
			return err
		}
	}
	return nil
}

// Health probes the database, the encryption key, the audit log and any
// check added with WithHealthCheck.
func (c *Core) Health(ctx context.Context) HealthReport {
	return c.health.Run(ctx)
}

// Metrics returns the access counters, keyed as "name,tag=value,...".
func (c *Core) Metrics() map[string]int64 {
	return c.metrics.Snapshot()
}

// Consents exposes relationship and consent management.
func (c *Core) Consents() *consent.Store {
	return c.consents
}

// Documents exposes the per-category document repositories.
func (c *Core) Documents() *documents.Repositories {
	return c.docs
}

// Box is the field encryption primitive.
func (c *Core) Box() *crypto.Box {
	return c.box
}

// Storage routes object operations by storage type.
func (c *Core) Storage() *storage.Router {
	return c.storage
}

// Policy is the auto-approval policy applied to uploads.
func (c *Core) Policy() Policy {
	return c.policy
}
