// Package splitcache remembers completed separations so re-splitting the
// same file with the same model and options returns the existing stem files
// instead of re-running inference.
//
// Results are keyed by the input file's content digest plus the separation
// parameters and stored in a BadgerDB database. A cache hit is only served
// while every recorded stem file still exists on disk; entries whose files
// were removed are evicted on lookup.
package splitcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned on a cache miss.
var ErrNotFound = errors.New("splitcache: not found")

// Key identifies one separation result.
type Key struct {
	// Digest is the input file's content digest from DigestFile.
	Digest string

	// Model is the separation model name.
	Model string

	// TwoStems marks a vocals/instrumental split.
	TwoStems bool

	// BitDepth is the output sample width.
	BitDepth int
}

func (k Key) encode() []byte {
	return fmt.Appendf(nil, "%s/%s/%t/%d", k.Digest, k.Model, k.TwoStems, k.BitDepth)
}

// Entry is a cached separation result.
type Entry struct {
	// Stems maps stem labels to written WAV paths.
	Stems map[string]string `msgpack:"stems"`

	// SampleRate is the stems' sample rate.
	SampleRate int `msgpack:"sample_rate"`

	// CreatedAt records when the separation finished.
	CreatedAt time.Time `msgpack:"created_at"`
}

// Cache is a persistent separation result store. Safe for concurrent use.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a cache database under dir.
func Open(dir string) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(quietLogger{}))
	if err != nil {
		return nil, fmt.Errorf("splitcache: open %s: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

// OpenInMemory creates a cache with no disk persistence.
func OpenInMemory() (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(quietLogger{}))
	if err != nil {
		return nil, fmt.Errorf("splitcache: open in-memory: %w", err)
	}
	return &Cache{db: db}, nil
}

// Lookup returns the cached entry for key. An entry whose stem files no
// longer all exist is evicted and reported as a miss.
func (c *Cache) Lookup(key Key) (Entry, error) {
	var entry Entry
	k := key.encode()

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("splitcache: lookup: %w", err)
	}

	for _, path := range entry.Stems {
		if _, err := os.Stat(path); err != nil {
			if err := c.Evict(key); err != nil {
				return Entry{}, err
			}
			return Entry{}, ErrNotFound
		}
	}
	return entry, nil
}

// Store records a separation result under key.
func (c *Cache) Store(key Key, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	val, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("splitcache: encode entry: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.encode(), val)
	})
	if err != nil {
		return fmt.Errorf("splitcache: store: %w", err)
	}
	return nil
}

// Evict removes the entry for key, if any.
func (c *Cache) Evict(key Key) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key.encode())
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("splitcache: evict: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// DigestFile returns the hex SHA-256 of the file's contents.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("splitcache: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("splitcache: digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// quietLogger suppresses badger's info and debug output.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[splitcache] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[splitcache] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
