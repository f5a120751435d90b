// Copyright (c) 2018 The VeChainThor developers — adapted as the
// content-addressed node store's durable backend.

// Package lvldb wraps goleveldb with snappy block compression, the
// on-disk half of the engine's two-tier trie node store (muxdb layers an
// in-memory cache on top of this).
package lvldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Options configures the underlying leveldb instance.
type Options struct {
	CacheSize            int // MiB
	OpenFilesCacheCapacity int
}

// LevelDB is a thin, content-addressed-store-shaped wrapper over
// goleveldb: Get/Put/Has/Delete plus a Batch for grouped writes.
type LevelDB struct {
	db *leveldb.DB
}

// New opens (creating if absent) a LevelDB at path with snappy
// compression and a bloom filter tuned for random-access hash lookups.
func New(path string, opts Options) (*LevelDB, error) {
	cache := opts.CacheSize
	if cache <= 0 {
		cache = 128
	}
	openFiles := opts.OpenFilesCacheCapacity
	if openFiles <= 0 {
		openFiles = 500
	}
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: openFiles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
		Compression:            opt.SnappyCompression,
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMem opens an in-memory LevelDB, used by tests and the CLI harness.
func NewMem() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), &opt.Options{
		Filter:      filter.NewBloomFilter(10),
		Compression: opt.SnappyCompression,
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) { return l.db.Get(key, nil) }

func (l *LevelDB) Has(key []byte) (bool, error) { return l.db.Has(key, nil) }

func (l *LevelDB) Put(key, value []byte) error { return l.db.Put(key, value, nil) }

func (l *LevelDB) Delete(key []byte) error { return l.db.Delete(key, nil) }

func (l *LevelDB) Close() error { return l.db.Close() }

// IsNotFound reports whether err is goleveldb's not-found sentinel.
func (l *LevelDB) IsNotFound(err error) bool { return err == leveldb.ErrNotFound }

// Batch groups writes for a single atomic leveldb commit.
type Batch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

// NewBatch starts a new write batch.
func (l *LevelDB) NewBatch() *Batch {
	return &Batch{db: l.db, batch: new(leveldb.Batch)}
}

func (b *Batch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *Batch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

// Len returns the number of operations staged in the batch.
func (b *Batch) Len() int { return b.batch.Len() }

// Write commits the batch.
func (b *Batch) Write() error { return b.db.Write(b.batch, nil) }

// NewBatch returns a new, empty batch over the same underlying db,
// leaving b unchanged, mirroring the teacher's chained-batch convention in lvldb_test.go.
func (b *Batch) NewBatch() *Batch {
	return &Batch{db: b.db, batch: new(leveldb.Batch)}
}
