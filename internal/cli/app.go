package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rostersync/internal/airtable"
	"github.com/roach88/rostersync/internal/config"
	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/portal"
	"github.com/roach88/rostersync/internal/secrets"
	"github.com/roach88/rostersync/internal/server"
	"github.com/roach88/rostersync/internal/snapshot"
)

// RunnerFactory builds the runner for one command. The returned close
// function is never nil.
type RunnerFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (server.Runner, func() error, error)

// loadConfig reads the config file and environment. Failures are command
// errors. The configured log format applies unless --log-format was given.
func (o *RootOptions) loadConfig(cmd *cobra.Command, f *OutputFormatter) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.Getenv)
	if err != nil {
		code := CodeSetup
		if errors.Is(err, config.ErrInvalid) {
			code = CodeConfig
		}
		_ = f.Error(code, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if fl := cmd.Flag("log-format"); fl == nil || !fl.Changed {
		o.LogFormat = cfg.LogFormat
		o.logger = newLogger(cmd.ErrOrStderr(), o.LogFormat, o.Verbose)
		slog.SetDefault(o.logger)
	}
	return cfg, nil
}

// runner loads config and builds the runner.
func (o *RootOptions) runner(cmd *cobra.Command, f *OutputFormatter) (server.Runner, *config.Config, func() error, error) {
	cfg, err := o.loadConfig(cmd, f)
	if err != nil {
		return nil, nil, nil, err
	}
	build := o.NewRunner
	if build == nil {
		build = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (server.Runner, func() error, error) {
			return BuildEngine(ctx, cfg, logger, o.Getenv)
		}
	}
	r, closeFn, err := build(cmd.Context(), cfg, o.log())
	if err != nil {
		_ = f.Error(CodeSetup, err.Error(), nil)
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to set up", err)
	}
	return r, cfg, closeFn, nil
}

// closeQuietly logs a close failure.
func (o *RootOptions) closeQuietly(closeFn func() error) {
	if err := closeFn(); err != nil {
		o.log().Error("error closing snapshot store", "error", err)
	}
}

// BuildEngine wires an engine from cfg. getenv is used by the env secrets
// provider (os.LookupEnv when nil). Import receipts are awaited under
// acks_prefix in the snapshot store when set, else in acks_dir.
func BuildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, getenv func(string) (string, bool)) (*engine.Engine, func() error, error) {
	ecfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, nil, err
	}

	provider, err := secretsProvider(ctx, cfg, logger, getenv)
	if err != nil {
		return nil, nil, err
	}

	store, closeFn, err := snapshot.Open(ctx, cfg.SnapshotSettings())
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}

	exports := export.NewReader(cfg.Exports.Dir,
		export.WithSheet(cfg.Exports.Sheet),
		export.WithHeaderRows(cfg.Exports.HeaderRows),
		export.WithLogger(logger),
	)

	deps := engine.Deps{
		Secrets:   provider,
		Snapshots: store,
		Records:   engine.AirtableRecords(cfg.AirtableConfig(), airtable.WithLogger(logger)),
		Exports:   exports,
		Poller:    poller.New(poller.RealSleeper{}, logger),
		Keys:      snapshot.UUIDv7Keys{Prefix: cfg.Snapshot.Prefix},
	}
	if cfg.Portal.Command != "" {
		deps.Portal = &portal.Command{
			Program: cfg.Portal.Command,
			Args:    cfg.Portal.Args,
			Dir:     cfg.Exports.Dir,
			Timeout: cfg.Portal.Timeout,
			Logger:  logger,
		}
	}
	switch {
	case cfg.Portal.AcksPrefix != "":
		deps.Acks = poller.PrefixLocation{Lister: store, Prefix: cfg.Portal.AcksPrefix}
	case cfg.Portal.AcksDir != "":
		deps.Acks = poller.DirLocation(cfg.Portal.AcksDir)
	}

	return engine.New(deps, ecfg, engine.WithLogger(logger)), closeFn, nil
}

func secretsProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger, getenv func(string) (string, bool)) (secrets.Provider, error) {
	switch cfg.Secrets.Provider {
	case config.ProviderEnv:
		return secrets.EnvProvider{Getenv: getenv}, nil
	default:
		p, err := secrets.NewAWSProviderFromEnv(ctx, cfg.Secrets.Region, logger)
		if err != nil {
			return nil, fmt.Errorf("secrets manager client: %w", err)
		}
		return p, nil
	}
}
