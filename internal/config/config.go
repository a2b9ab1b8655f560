// Package config loads rostersync settings.
//
// Settings come from an optional YAML file, then ROSTERSYNC_* environment
// variables for deploy-time values, then defaults for anything still unset.
// The result is checked against an embedded CUE schema. Durations are Go
// duration strings in YAML ("2s", "30s").
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rostersync/internal/airtable"
	"github.com/roach88/rostersync/internal/commit"
	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/secrets"
	"github.com/roach88/rostersync/internal/snapshot"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid is returned when the merged settings fail the schema.
var ErrInvalid = errors.New("invalid configuration")

// Secret providers.
const (
	ProviderAWS = "aws"
	ProviderEnv = "env"
)

// Config is the full settings tree.
type Config struct {
	Exports   Exports  `yaml:"exports" json:"exports"`
	Poll      Poll     `yaml:"poll" json:"poll"`
	Snapshot  Snapshot `yaml:"snapshot" json:"snapshot"`
	Airtable  Airtable `yaml:"airtable" json:"airtable"`
	Commit    Commit   `yaml:"commit" json:"commit"`
	Secrets   Secrets  `yaml:"secrets" json:"secrets"`
	Portal    Portal   `yaml:"portal" json:"portal"`
	Server    Server   `yaml:"server" json:"server"`
	Timezone  string   `yaml:"timezone" json:"timezone"`
	LogFormat string   `yaml:"log_format" json:"log_format"`
}

type Exports struct {
	Dir        string `yaml:"dir" json:"dir"`
	Sheet      string `yaml:"sheet" json:"sheet"`
	HeaderRows int    `yaml:"header_rows" json:"header_rows"`
	ExportName string `yaml:"export_name" json:"export_name"`
}

type Poll struct {
	Retries  int           `yaml:"retries" json:"retries"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

type Snapshot struct {
	Backend string `yaml:"backend" json:"backend"`
	Bucket  string `yaml:"bucket" json:"bucket"`
	Prefix  string `yaml:"prefix" json:"prefix"`
	Region  string `yaml:"region" json:"region"`
	Path    string `yaml:"path" json:"path"`
	Minio   Minio  `yaml:"minio" json:"minio"`
}

type Minio struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

type Airtable struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	BaseID         string        `yaml:"base_id" json:"base_id"`
	EmployeesTable string        `yaml:"employees_table" json:"employees_table"`
	StoresTable    string        `yaml:"stores_table" json:"stores_table"`
	RatePerSecond  float64       `yaml:"rate_per_second" json:"rate_per_second"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

type Commit struct {
	BatchSize      int           `yaml:"batch_size" json:"batch_size"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

type Secrets struct {
	Provider string `yaml:"provider" json:"provider"`
	Region   string `yaml:"region" json:"region"`
	Portal   string `yaml:"portal" json:"portal"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}

type Portal struct {
	Command     string        `yaml:"command" json:"command"`
	Args        []string      `yaml:"args" json:"args"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	AcksDir     string        `yaml:"acks_dir" json:"acks_dir"`
	AcksPrefix  string        `yaml:"acks_prefix" json:"acks_prefix"`
	ReceiptName string        `yaml:"receipt_name" json:"receipt_name"`
}

type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Getenv looks up an environment variable.
type Getenv func(string) (string, bool)

// Load reads path (skipped when empty), applies environment overrides from
// getenv (os.LookupEnv when nil) and defaults, and validates the result.
func Load(path string, getenv Getenv) (*Config, error) {
	// Zero is a valid header row count, so its default is set before decoding.
	cfg := Config{Exports: Exports{HeaderRows: export.DefaultHeaderRows}}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.LookupEnv
	}
	cfg.applyEnv(getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvPrefix prefixes every override variable.
const EnvPrefix = "ROSTERSYNC_"

func (c *Config) applyEnv(getenv Getenv) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"EXPORT_DIR", &c.Exports.Dir},
		{"SNAPSHOT_BACKEND", &c.Snapshot.Backend},
		{"BUCKET", &c.Snapshot.Bucket},
		{"REGION", &c.Snapshot.Region},
		{"SQLITE_PATH", &c.Snapshot.Path},
		{"MINIO_ENDPOINT", &c.Snapshot.Minio.Endpoint},
		{"MINIO_ACCESS_KEY_ID", &c.Snapshot.Minio.AccessKeyID},
		{"MINIO_SECRET_ACCESS_KEY", &c.Snapshot.Minio.SecretAccessKey},
		{"BASE_ID", &c.Airtable.BaseID},
		{"SECRETS_PROVIDER", &c.Secrets.Provider},
		{"SECRET_PORTAL", &c.Secrets.Portal},
		{"SECRET_API_KEY", &c.Secrets.APIKey},
		{"PORTAL_COMMAND", &c.Portal.Command},
		{"ADDR", &c.Server.Addr},
		{"LOG_FORMAT", &c.LogFormat},
	}
	for _, o := range overrides {
		if v, ok := getenv(EnvPrefix + o.name); ok && v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	setString(&c.Exports.Dir, os.TempDir())
	setString(&c.Exports.Sheet, export.DefaultSheet)
	setString(&c.Exports.ExportName, engine.DefaultExportName)

	setInt(&c.Poll.Retries, poller.DefaultMaxRetries)
	setDuration(&c.Poll.Interval, poller.DefaultInterval)

	setString(&c.Snapshot.Backend, snapshot.BackendS3)
	setString(&c.Snapshot.Prefix, snapshot.DefaultPrefix)
	setString(&c.Snapshot.Region, secrets.DefaultRegion)

	setString(&c.Airtable.BaseURL, airtable.DefaultBaseURL)
	setString(&c.Airtable.EmployeesTable, airtable.DefaultEmployeesTable)
	setString(&c.Airtable.StoresTable, airtable.DefaultStoresTable)
	if c.Airtable.RatePerSecond == 0 {
		c.Airtable.RatePerSecond = airtable.DefaultRatePerSecond
	}
	setInt(&c.Airtable.MaxRetries, airtable.DefaultMaxRetries)
	setDuration(&c.Airtable.Timeout, airtable.DefaultTimeout)

	setInt(&c.Commit.BatchSize, commit.DefaultBatchSize)
	setDuration(&c.Commit.RequestTimeout, commit.DefaultRequestTimeout)

	setString(&c.Secrets.Provider, ProviderAWS)
	setString(&c.Secrets.Region, secrets.DefaultRegion)
	setString(&c.Secrets.Portal, secrets.DefaultNames.Portal)
	setString(&c.Secrets.APIKey, secrets.DefaultNames.APIKey)

	if c.Portal.Args == nil {
		c.Portal.Args = []string{}
	}
	setString(&c.Server.Addr, ":8080")
	setString(&c.LogFormat, "text")
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}

// Validate checks c against the schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v := schema.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone: %v", ErrInvalid, err)
	}
	return nil
}

// Location resolves Timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// SnapshotSettings returns the snapshot backend settings.
func (c *Config) SnapshotSettings() snapshot.Settings {
	return snapshot.Settings{
		Backend: c.Snapshot.Backend,
		Bucket:  c.Snapshot.Bucket,
		Prefix:  c.Snapshot.Prefix,
		Region:  c.Snapshot.Region,
		Path:    c.Snapshot.Path,
		Minio: snapshot.MinioConfig{
			Endpoint:        c.Snapshot.Minio.Endpoint,
			AccessKeyID:     c.Snapshot.Minio.AccessKeyID,
			SecretAccessKey: c.Snapshot.Minio.SecretAccessKey,
			UseSSL:          c.Snapshot.Minio.UseSSL,
		},
	}
}

// AirtableConfig returns the system-of-record client settings.
func (c *Config) AirtableConfig() airtable.Config {
	return airtable.Config{
		BaseURL:        c.Airtable.BaseURL,
		BaseID:         c.Airtable.BaseID,
		EmployeesTable: c.Airtable.EmployeesTable,
		StoresTable:    c.Airtable.StoresTable,
		RatePerSecond:  c.Airtable.RatePerSecond,
		MaxRetries:     c.Airtable.MaxRetries,
		Timeout:        c.Airtable.Timeout,
	}
}

// SecretNames returns the secret names to resolve.
func (c *Config) SecretNames() secrets.Names {
	return secrets.Names{Portal: c.Secrets.Portal, APIKey: c.Secrets.APIKey}
}

// EngineConfig returns the run settings.
func (c *Config) EngineConfig() (engine.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		SecretNames:    c.SecretNames(),
		ExportName:     c.Exports.ExportName,
		ReceiptName:    c.Portal.ReceiptName,
		PollRetries:    c.Poll.Retries,
		PollInterval:   c.Poll.Interval,
		BatchSize:      c.Commit.BatchSize,
		RequestTimeout: c.Commit.RequestTimeout,
		Location:       loc,
	}, nil
}
