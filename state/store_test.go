package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/transform"
	"github.com/casper-ee/execengine/trie"
	"github.com/casper-ee/execengine/value"
)

func newTestStore() *Store {
	return New(trie.NewMemDatabase())
}

func TestCheckoutUnknownRootReturnsNotFound(t *testing.T) {
	s := newTestStore()
	var bogus key.Address
	bogus[0] = 0xff
	_, ok, err := s.Checkout(bogus)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckoutEmptyRootSucceeds(t *testing.T) {
	s := newTestStore()
	view, ok, err := s.Checkout(key.Address{})
	assert.NoError(t, err)
	assert.True(t, ok)
	v, found, err := view.Read(key.Account(key.BytesToAddress([]byte("nobody"))))
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestApplySuccessThenCheckoutSeesWrite(t *testing.T) {
	s := newTestStore()
	k := key.Account(key.BytesToAddress([]byte("alice")))
	folded := map[key.Key]transform.Transform{
		k: transform.NewWrite(value.Int32(42)),
	}
	result := s.Apply(key.Address{}, folded)
	assert.Equal(t, CommitSuccess, result.Kind)

	view, ok, err := s.Checkout(result.NewRoot)
	assert.NoError(t, err)
	assert.True(t, ok)
	v, found, err := view.Read(k)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.Int32(42), *v)
}

func TestApplyUnknownRootReturnsRootNotFound(t *testing.T) {
	s := newTestStore()
	var bogus key.Address
	bogus[0] = 1
	result := s.Apply(bogus, map[key.Key]transform.Transform{})
	assert.Equal(t, CommitRootNotFound, result.Kind)
}

func TestApplyTypeMismatchSurfacesFailedKey(t *testing.T) {
	s := newTestStore()
	k := key.Account(key.BytesToAddress([]byte("bob")))
	// Writing a String in one Apply and then, in a second Apply, folding
	// an AddInt against it must fail with a type mismatch rather than
	// silently coercing.
	folded := map[key.Key]transform.Transform{
		k: transform.NewWrite(value.String("not a number")),
	}
	result := s.Apply(key.Address{}, folded)
	assert.Equal(t, CommitSuccess, result.Kind)

	folded2 := map[key.Key]transform.Transform{
		k: transform.NewAddInt(1),
	}
	result2 := s.Apply(result.NewRoot, folded2)
	assert.Equal(t, CommitTypeMismatch, result2.Kind)
	assert.Equal(t, k, result2.FailedKey)
}

func TestApplyResolvesAddIntAgainstStoredBaseValue(t *testing.T) {
	s := newTestStore()
	k := key.Account(key.BytesToAddress([]byte("carol")))
	base := s.Apply(key.Address{}, map[key.Key]transform.Transform{
		k: transform.NewWrite(value.UInt64(10)),
	})
	assert.Equal(t, CommitSuccess, base.Kind)

	next := s.Apply(base.NewRoot, map[key.Key]transform.Transform{
		k: transform.NewAddInt(5),
	})
	assert.Equal(t, CommitSuccess, next.Kind)

	view, ok, err := s.Checkout(next.NewRoot)
	assert.NoError(t, err)
	assert.True(t, ok)
	v, found, err := view.Read(k)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(15), v.UInt64)
}

func TestApplyIsDeterministicAcrossKeyOrder(t *testing.T) {
	s := newTestStore()
	k1 := key.Account(key.BytesToAddress([]byte("k1")))
	k2 := key.Account(key.BytesToAddress([]byte("k2")))
	folded := map[key.Key]transform.Transform{
		k1: transform.NewWrite(value.Int32(1)),
		k2: transform.NewWrite(value.Int32(2)),
	}
	r1 := s.Apply(key.Address{}, folded)
	r2 := s.Apply(key.Address{}, folded)
	assert.Equal(t, r1.NewRoot, r2.NewRoot, "Apply over a Go map must still be root-deterministic")
}

func TestParseValidatorNamedKey(t *testing.T) {
	addr := key.BytesToAddress([]byte("validator-1"))
	name := "v_" + addr.String()[2:] + "_1000"
	pub, stake, ok := parseValidatorNamedKey(name)
	assert.True(t, ok)
	assert.Equal(t, addr, pub)
	assert.EqualValues(t, 1000, stake)
}

func TestParseValidatorNamedKeyRejectsMalformed(t *testing.T) {
	_, _, ok := parseValidatorNamedKey("not-a-validator-key")
	assert.False(t, ok)
}
