// Copyright (c) 2021 The VeChainThor developers — adapted into the
// engine's two-tier, content-addressed trie node store (spec.md §4.A).

// Package muxdb layers a hot-node LRU cache and a directcache
// read-through value cache over the lvldb-backed durable store,
// presenting a trie.Database to the rest of the engine.
package muxdb

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/qianbin/directcache"

	"github.com/casper-ee/execengine/lvldb"
	"github.com/casper-ee/execengine/trie"
)

const (
	defaultNodeCacheSize   = 4096            // hot nodes kept in the LRU
	defaultValueCacheBytes = 32 * 1024 * 1024 // directcache capacity
)

// Engine is the production trie.Database: an LRU-cached, directcache
// read-through layer over an on-disk LevelDB store, matching the
// muxdb/internal/trie two-tier design this package is adapted from.
type Engine struct {
	backend    *lvldb.LevelDB
	nodeCache  *lru.Cache
	valueCache *directcache.Cache
}

// Open opens (creating if absent) an Engine rooted at path.
func Open(path string, opts lvldb.Options) (*Engine, error) {
	backend, err := lvldb.New(path, opts)
	if err != nil {
		return nil, err
	}
	return newEngine(backend)
}

// OpenMem opens an in-memory Engine, used by tests and the CLI harness's
// throwaway genesis state.
func OpenMem() (*Engine, error) {
	backend, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	return newEngine(backend)
}

func newEngine(backend *lvldb.LevelDB) (*Engine, error) {
	nodeCache, err := lru.New(defaultNodeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		backend:    backend,
		nodeCache:  nodeCache,
		valueCache: directcache.New(defaultValueCacheBytes),
	}, nil
}

// Get implements trie.Database: LRU hot-node cache, then the
// directcache read-through value cache, then the durable leveldb store.
func (e *Engine) Get(hash []byte) ([]byte, error) {
	k := string(hash)
	if v, ok := e.nodeCache.Get(k); ok {
		return v.([]byte), nil
	}
	if v, ok := e.valueCache.Get(hash); ok {
		cp := append([]byte(nil), v...)
		e.nodeCache.Add(k, cp)
		return cp, nil
	}
	v, err := e.backend.Get(hash)
	if err != nil {
		return nil, err
	}
	e.nodeCache.Add(k, v)
	e.valueCache.Set(hash, v)
	return v, nil
}

// Put implements trie.Database, writing through all three tiers. Nodes
// are content-addressed, so a Put for a hash already present is a cheap
// idempotent overwrite of identical bytes.
func (e *Engine) Put(hash []byte, encoding []byte) error {
	if err := e.backend.Put(hash, encoding); err != nil {
		return err
	}
	e.nodeCache.Add(string(hash), encoding)
	e.valueCache.Set(hash, encoding)
	return nil
}

// Close releases the underlying leveldb handle.
func (e *Engine) Close() error { return e.backend.Close() }

var _ trie.Database = (*Engine)(nil)
