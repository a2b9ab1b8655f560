package snapshot

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Settings selects and configures a backend.
type Settings struct {
	Backend string
	Bucket  string
	Prefix  string
	Region  string

	// Path is the SQLite database file.
	Path string

	Minio MinioConfig
}

// Open builds the store named by s.Backend. The returned close function is
// never nil.
func Open(ctx context.Context, s Settings) (Store, func() error, error) {
	noop := func() error { return nil }
	switch s.Backend {
	case BackendS3, "":
		st, err := NewS3StoreFromEnv(ctx, s.Region, s.Bucket, s.Prefix)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	case BackendMinio:
		cfg := s.Minio
		if cfg.Bucket == "" {
			cfg.Bucket = s.Bucket
		}
		if cfg.Prefix == "" {
			cfg.Prefix = s.Prefix
		}
		if cfg.Region == "" {
			cfg.Region = s.Region
		}
		st, err := NewMinioStore(cfg)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	case BackendSQLite:
		st, err := OpenSQLite(s.Path, s.Prefix)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	case BackendMemory:
		return NewMemoryStore(s.Prefix, nil), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown snapshot backend %q", s.Backend)
	}
}
