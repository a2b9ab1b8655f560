package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/rostersync/internal/airtable"
	"github.com/roach88/rostersync/internal/commit"
	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/normalize"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/portal"
	"github.com/roach88/rostersync/internal/secrets"
	"github.com/roach88/rostersync/internal/snapshot"
)

// Records is the system-of-record client of one run.
type Records interface {
	EmployeeIndex(ctx context.Context) (airtable.EmployeeIndex, error)
	StoreDirectory(ctx context.Context) (airtable.StoreDirectory, error)
	commit.Writer
}

// RecordsFactory builds a Records client once the API key is resolved.
type RecordsFactory func(key secrets.APIKey) Records

// AirtableRecords returns a factory for the Airtable client.
func AirtableRecords(cfg airtable.Config, opts ...airtable.Option) RecordsFactory {
	return func(key secrets.APIKey) Records {
		return airtable.New(key.APIKey, cfg, opts...)
	}
}

// Defaults for Config.
const (
	DefaultExportName  = "LiveIQ_Employee_Export.xlsx"
	DefaultImportName  = "LiveIQ_Employee_Import.xlsx"
	DefaultPollRetries = poller.DefaultMaxRetries
	DefaultPollDelay   = poller.DefaultInterval
)

// Deps are the collaborators of an Engine. Portal and Acks may be nil.
type Deps struct {
	Secrets   secrets.Provider
	Snapshots snapshot.Store
	Records   RecordsFactory
	Portal    portal.Portal
	Exports   *export.Reader
	Poller    *poller.Poller
	Keys      commit.KeyGenerator

	// Acks is where the portal drops import receipts.
	Acks poller.Location
}

// Config tunes a run. Zero fields take defaults.
type Config struct {
	SecretNames secrets.Names

	// ExportName is the file awaited after triggering a portal export.
	ExportName string
	// ImportName is the workbook written for PutEmployee.
	ImportName string
	// ReceiptName is the acknowledgement awaited in Acks after an import.
	ReceiptName string
	// WorkDir holds import workbooks. Defaults to an "imports" directory
	// inside the export directory, which export listing skips.
	WorkDir string

	PollRetries  int
	PollInterval time.Duration

	BatchSize      int
	RequestTimeout time.Duration

	// Location is the zone export dates are pinned in.
	Location *time.Location
}

// Engine runs sync, put and report operations.
type Engine struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger passed to every stage.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(deps Deps, cfg Config, opts ...Option) *Engine {
	if cfg.SecretNames.Portal == "" {
		cfg.SecretNames.Portal = secrets.DefaultNames.Portal
	}
	if cfg.SecretNames.APIKey == "" {
		cfg.SecretNames.APIKey = secrets.DefaultNames.APIKey
	}
	if cfg.ExportName == "" {
		cfg.ExportName = DefaultExportName
	}
	if cfg.ImportName == "" {
		cfg.ImportName = DefaultImportName
	}
	if cfg.PollRetries <= 0 {
		cfg.PollRetries = DefaultPollRetries
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = commit.DefaultBatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = commit.DefaultRequestTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WorkDir == "" && deps.Exports != nil {
		cfg.WorkDir = filepath.Join(deps.Exports.Dir(), "imports")
	}

	e := &Engine{deps: deps, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.deps.Poller == nil {
		e.deps.Poller = poller.New(poller.RealSleeper{}, e.logger)
	}
	if e.deps.Keys == nil {
		e.deps.Keys = snapshot.UUIDv7Keys{Prefix: snapshot.DefaultPrefix}
	}
	return e
}

func (e *Engine) normalizer(stores airtable.StoreDirectory) *normalize.Normalizer {
	return normalize.New(stores,
		normalize.WithLocation(e.cfg.Location),
		normalize.WithLogger(e.logger),
	)
}

func (e *Engine) poll(ctx context.Context, loc poller.Location, name string) (poller.Status, error) {
	return e.deps.Poller.Poll(ctx, loc, name, e.cfg.PollRetries, e.cfg.PollInterval)
}
