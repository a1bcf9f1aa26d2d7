package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSnapshotNotFound indicates no snapshot has been written yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidSnapshot indicates the stored snapshot could not be decoded
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// DefaultSnapshotKey is the Redis key RedisStore uses when none is given.
const DefaultSnapshotKey = "vrcapi:cache:snapshot"

// SnapshotStore persists the encoded warm-start snapshot.
type SnapshotStore interface {
	// Read returns the stored snapshot or ErrSnapshotNotFound.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored snapshot.
	Write(ctx context.Context, data []byte) error
}

// Snapshot is the persisted form of the groups cache.
type Snapshot struct {
	Groups  map[string]Record `json:"groups"`
	SavedAt time.Time         `json:"saved_at"`
}

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read returns the file contents.
func (s *FileStore) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return data, nil
}

// Write replaces the file atomically via a temp file and rename.
func (s *FileStore) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// RedisStore keeps the snapshot under one Redis key.
type RedisStore struct {
	redis  *redis.Client
	key    string
	expiry time.Duration
}

// NewRedisStore creates a Redis-backed store. An empty key uses
// DefaultSnapshotKey; expiry 0 keeps the snapshot until overwritten.
func NewRedisStore(redisClient *redis.Client, key string, expiry time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisStore{
		redis:  redisClient,
		key:    key,
		expiry: expiry,
	}
}

// Key returns the Redis key holding the snapshot.
func (s *RedisStore) Key() string {
	return s.key
}

// Read fetches the snapshot.
func (s *RedisStore) Read(ctx context.Context) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Write stores the snapshot.
func (s *RedisStore) Write(ctx context.Context, data []byte) error {
	if err := s.redis.Set(ctx, s.key, data, s.expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
