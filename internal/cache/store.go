package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind namespaces cache entries by the inference call that produced them.
type Kind string

const (
	KindImageLabels   Kind = "image-labels"
	KindTextEmbedding Kind = "text-embedding"
)

// Key returns the content-addressed cache key for an input: the hex sha256
// of its bytes. Identical inputs always map to the same key, so entries are
// safe to keep forever.
func Key(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

// Store is a content-addressed key/value store. Values are opaque serialized
// blobs; entries are written once and never mutated. Implementations must
// tolerate concurrent readers and writers; duplicate concurrent writes of
// the same key are allowed (last writer wins).
type Store interface {
	Get(ctx context.Context, kind Kind, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, kind Kind, key string, value []byte) error
	Close() error
}

// Config selects and locates the store backend.
type Config struct {
	// Backend is "sqlite" or "badger".
	Backend string
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
	// BadgerPath is the directory for the badger backend.
	BadgerPath string
}

// NewStore opens the configured backend.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return newSQLiteStore(cfg.SQLitePath)
	case "badger":
		return newBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
