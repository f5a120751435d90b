// Copyright 2014 The go-ethereum Authors — adapted for this engine's
// content-addressed, Blake2b-hashed authenticated trie.

package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
)

func newEmpty() *Trie {
	trie, _ := New(key.Address{}, NewMemDatabase())
	return trie
}

func k32(s string) []byte {
	var b [32]byte
	copy(b[:], s)
	return b[:]
}

func TestEmptyTrieHash(t *testing.T) {
	trie := newEmpty()
	assert.Equal(t, emptyRoot, trie.Hash())
}

func TestGetSetRoundTrip(t *testing.T) {
	trie := newEmpty()
	trie.Update(k32("alpha"), []byte("value-a"))
	trie.Update(k32("beta"), []byte("value-b"))
	assert.Equal(t, []byte("value-a"), trie.Get(k32("alpha")))
	assert.Equal(t, []byte("value-b"), trie.Get(k32("beta")))
	assert.Nil(t, trie.Get(k32("absent")))
}

func TestUpdateOverwrites(t *testing.T) {
	trie := newEmpty()
	trie.Update(k32("alpha"), []byte("v1"))
	trie.Update(k32("alpha"), []byte("v2"))
	assert.Equal(t, []byte("v2"), trie.Get(k32("alpha")))
}

func TestDeleteRemovesKey(t *testing.T) {
	trie := newEmpty()
	trie.Update(k32("alpha"), []byte("v1"))
	trie.Update(k32("beta"), []byte("v2"))
	trie.Delete(k32("alpha"))
	assert.Nil(t, trie.Get(k32("alpha")))
	assert.Equal(t, []byte("v2"), trie.Get(k32("beta")))
}

func TestDeleteAllEmptiesToRoot(t *testing.T) {
	trie := newEmpty()
	trie.Update(k32("alpha"), []byte("v1"))
	trie.Delete(k32("alpha"))
	assert.Equal(t, emptyRoot, trie.Hash())
}

func TestCommitPersistsAndReopens(t *testing.T) {
	db := NewMemDatabase()
	trie, _ := New(key.Address{}, db)
	trie.Update(k32("alpha"), []byte("qwerqwerqwerqwerqwerqwerqwerqwer"))
	trie.Update(k32("beta"), []byte("asdfasdfasdfasdfasdfasdfasdfasdf"))
	root, err := trie.Commit()
	assert.NoError(t, err)

	reopened, err := New(root, db)
	assert.NoError(t, err)
	assert.Equal(t, []byte("qwerqwerqwerqwerqwerqwerqwerqwer"), reopened.Get(k32("alpha")))
	assert.Equal(t, []byte("asdfasdfasdfasdfasdfasdfasdfasdf"), reopened.Get(k32("beta")))
}

func TestMissingRootReturnsMissingNodeError(t *testing.T) {
	db := NewMemDatabase()
	var bogus key.Address
	bogus[0] = 1
	_, err := New(bogus, db)
	assert.Error(t, err)
	_, ok := err.(*MissingNodeError)
	assert.True(t, ok)
}

func TestMissingNodeOnDeletedStoreEntry(t *testing.T) {
	db := NewMemDatabase()
	trie, _ := New(key.Address{}, db)
	trie.Update(k32("alpha"), []byte("qwerqwerqwerqwerqwerqwerqwerqwer"))
	root, _ := trie.Commit()

	reopened, _ := New(root, db)
	_, err := reopened.TryGet(k32("alpha"))
	assert.NoError(t, err)

	mdb := db.(*memDatabase)
	for h := range mdb.m {
		delete(mdb.m, h)
	}

	reopened2, err := New(root, db)
	assert.Nil(t, reopened2)
	assert.Error(t, err)
}

func TestHashDeterministicAcrossInsertOrder(t *testing.T) {
	t1 := newEmpty()
	t1.Update(k32("alpha"), []byte("v1"))
	t1.Update(k32("beta"), []byte("v2"))
	t1.Update(k32("gamma"), []byte("v3"))

	t2 := newEmpty()
	t2.Update(k32("gamma"), []byte("v3"))
	t2.Update(k32("alpha"), []byte("v1"))
	t2.Update(k32("beta"), []byte("v2"))

	assert.Equal(t, t1.Hash(), t2.Hash())
}
