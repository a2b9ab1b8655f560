package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/roach88/rostersync/internal/record"
)

// MinioConfig locates an S3-compatible endpoint.
type MinioConfig struct {
	// Endpoint is host:port or a URL; an https URL turns on TLS.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	Bucket          string
	Prefix          string
}

// MinioStore keeps snapshots in a bucket on an S3-compatible server.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore creates a client for cfg. No request is made.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio snapshot store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio snapshot store: bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("minio snapshot store: credentials are required")
	}

	endpoint, useSSL := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (m *MinioStore) objects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", m.bucket, prefix, obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, LastModified: obj.LastModified})
	}
	return out, nil
}

func (m *MinioStore) Latest(ctx context.Context) (*Snapshot, error) {
	objs, err := m.objects(ctx, m.prefix)
	if err != nil {
		return nil, err
	}
	latest, ok := pickLatest(objs)
	if !ok {
		return nil, ErrNotFound
	}
	snap, err := m.Get(ctx, latest.Key)
	if err != nil {
		return nil, err
	}
	snap.LastModified = latest.LastModified
	return snap, nil
}

func (m *MinioStore) Get(ctx context.Context, key string) (*Snapshot, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinio(key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinio(key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		return nil, classifyMinio(key, err)
	}
	return decodeBody(key, info.LastModified, body)
}

func (m *MinioStore) Put(ctx context.Context, key string, records []record.Record) error {
	body, err := encodeBody(key, records)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", m.bucket, key, err)
	}
	return nil
}

func (m *MinioStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	objs, err := m.objects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(objs))
	for i, o := range objs {
		keys[i] = o.Key
	}
	sort.Strings(keys)
	return keys, nil
}

func classifyMinio(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("get %s: %w", key, err)
}
