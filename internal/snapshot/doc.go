// Package snapshot stores point-in-time copies of the canonical record set.
//
// A snapshot is an immutable object holding a JSON array of records under a
// key of the form <prefix><uuidv7>. Each run reads the latest snapshot as
// its baseline and writes exactly one new snapshot. "Latest" means the
// object with the newest modification time; ties go to the larger key,
// which for UUIDv7 keys is the later one.
//
// # Backends
//
//   - S3Store: Amazon S3 through aws-sdk-go-v2
//   - MinioStore: any S3-compatible endpoint through minio-go
//   - SQLiteStore: an append-only table for local and offline runs
//   - MemoryStore: in-process, for tests and dry runs
//
// An empty store is not an error for callers that want a baseline: Latest
// returns ErrNotFound and LatestOrEmpty turns that into an empty snapshot.
package snapshot
