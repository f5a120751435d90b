package transform

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

func k(name string) key.Key { return key.Hash(key.BytesToAddress([]byte(name))) }

func TestComposeWriteDominates(t *testing.T) {
	acc := NewAddInt(5)
	next := NewWrite(value.Int32(9))
	assert.Equal(t, next, Compose(acc, next), "Write must dominate any prior transform")
}

func TestComposeAddIntAccumulates(t *testing.T) {
	acc := NewAddInt(2)
	acc = Compose(acc, NewAddInt(3))
	assert.Equal(t, int64(5), acc.AddInt)
}

func TestComposeAddUIntOverflowSaturatesAsFailure(t *testing.T) {
	max := new(uint256.Int).Not(new(uint256.Int))
	acc := NewAddUInt(max)
	result := Compose(acc, NewAddUInt(uint256.NewInt(1)))
	assert.Equal(t, FailureKind, result.Kind)
	assert.Equal(t, "Overflow", result.Reason)
}

func TestComposeAddKeysUnionsLaterWins(t *testing.T) {
	first := NewAddKeys(value.NewMap(map[string]key.Key{"a": k("1")}).Map)
	second := NewAddKeys(value.NewMap(map[string]key.Key{"a": k("2"), "b": k("3")}).Map)
	result := Compose(first, second)
	m := value.Value{Tag: value.TagMap, Map: result.AddKeys}.AsMap()
	assert.Equal(t, k("2"), m["a"], "later AddKeys wins on collision")
	assert.Equal(t, k("3"), m["b"])
}

func TestComposeFailurePoisons(t *testing.T) {
	f := NewFailure("boom")
	assert.Equal(t, f, Compose(f, NewWrite(value.Int32(1))))
	assert.Equal(t, f, Compose(NewWrite(value.Int32(1)), f))
}

func TestFoldGroupsByKeyLeftToRight(t *testing.T) {
	ops := []KeyedTransform{
		{Key: k("x"), Transform: NewAddInt(1)},
		{Key: k("y"), Transform: NewWrite(value.String("hi"))},
		{Key: k("x"), Transform: NewAddInt(2)},
	}
	folded, err := Fold(ops)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), folded[k("x")].AddInt)
	assert.Equal(t, value.String("hi"), folded[k("y")].Value)
}

// TestFoldPermutationInvariant verifies spec.md §8 Invariant 1: the fold
// over disjoint keys is independent of the relative order of ops across
// distinct keys (only within-key order is significant).
func TestFoldPermutationInvariant(t *testing.T) {
	base := []KeyedTransform{
		{Key: k("a"), Transform: NewAddInt(1)},
		{Key: k("b"), Transform: NewAddInt(10)},
		{Key: k("a"), Transform: NewAddInt(2)},
		{Key: k("c"), Transform: NewWrite(value.Int32(7))},
		{Key: k("b"), Transform: NewAddInt(20)},
	}
	// Build a permutation that preserves each key's internal order but
	// interleaves keys differently.
	perm := []KeyedTransform{base[3], base[1], base[0], base[4], base[2]}

	want, err := Fold(base)
	assert.NoError(t, err)
	got, err := Fold(perm)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFoldPermutationInvariantRandomized(t *testing.T) {
	groups := map[string][]Transform{
		"a": {NewAddInt(1), NewAddInt(2), NewAddInt(3)},
		"b": {NewAddInt(5), NewAddInt(-1)},
		"c": {NewWrite(value.Int32(1)), NewAddInt(1)},
	}
	var base []KeyedTransform
	for name, ts := range groups {
		for _, tr := range ts {
			base = append(base, KeyedTransform{Key: k(name), Transform: tr})
		}
	}
	want, err := Fold(base)
	assert.NoError(t, err)

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := interleavePreservingPerKeyOrder(groups, rnd)
		got, err := Fold(shuffled)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func interleavePreservingPerKeyOrder(groups map[string][]Transform, rnd *rand.Rand) []KeyedTransform {
	type cursor struct {
		name string
		idx  int
	}
	remaining := make([]cursor, 0)
	for name := range groups {
		remaining = append(remaining, cursor{name, 0})
	}
	var out []KeyedTransform
	for len(remaining) > 0 {
		i := rnd.Intn(len(remaining))
		c := remaining[i]
		out = append(out, KeyedTransform{Key: k(c.name), Transform: groups[c.name][c.idx]})
		if c.idx+1 >= len(groups[c.name]) {
			remaining = append(remaining[:i], remaining[i+1:]...)
		} else {
			remaining[i].idx++
		}
	}
	return out
}

func TestFoldReportsDeterministicFailure(t *testing.T) {
	max := new(uint256.Int).Not(new(uint256.Int))
	ops := []KeyedTransform{
		{Key: k("z"), Transform: NewAddUInt(max)},
		{Key: k("z"), Transform: NewAddUInt(uint256.NewInt(1))},
	}
	_, err := Fold(ops)
	assert.Error(t, err)
	var poisoned *ErrPoisoned
	assert.ErrorAs(t, err, &poisoned)
	assert.Equal(t, "Overflow", poisoned.Reason)
}
