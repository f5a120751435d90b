package value

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	enc, err := Encode(v)
	assert.NoError(t, err)
	dec, n, err := Decode(enc)
	assert.NoError(t, err)
	assert.Equal(t, len(enc), n)
	return dec
}

// TestRoundTripScalars covers spec.md §8 Invariant 2: decode(encode(V)) == V.
func TestRoundTripScalars(t *testing.T) {
	assert.Equal(t, Unit(), roundTrip(t, Unit()))
	assert.Equal(t, Int32(-42), roundTrip(t, Int32(-42)))
	assert.Equal(t, UInt64(1<<63), roundTrip(t, UInt64(1<<63)))
	assert.Equal(t, Bytes([]byte{1, 2, 3}), roundTrip(t, Bytes([]byte{1, 2, 3})))
	assert.Equal(t, String("hello"), roundTrip(t, String("hello")))

	u := uint256.NewInt(123456789)
	assert.Equal(t, u, roundTrip(t, UInt256(u)).UInt256)
}

func TestRoundTripKeyAndAggregates(t *testing.T) {
	k := key.NewURef(key.BytesToAddress([]byte("u")), key.ReadAddWrite)
	assert.Equal(t, FromKey(k), roundTrip(t, FromKey(k)))

	list := List([]Value{Int32(1), String("x"), FromKey(k)})
	assert.Equal(t, list, roundTrip(t, list))

	tup := Tuple([]Value{UInt64(1), UInt64(2)})
	assert.Equal(t, tup, roundTrip(t, tup))
}

func TestNewMapIsLexicographicallySorted(t *testing.T) {
	m := NewMap(map[string]key.Key{
		"zeta":  key.Hash(key.BytesToAddress([]byte("z"))),
		"alpha": key.Hash(key.BytesToAddress([]byte("a"))),
		"mid":   key.Hash(key.BytesToAddress([]byte("m"))),
	})
	names := make([]string, len(m.Map))
	for i, e := range m.Map {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)

	decoded := roundTrip(t, m)
	assert.Equal(t, m, decoded)
}

func TestAccountRoundTrip(t *testing.T) {
	a := &Account{
		PubKey:    key.BytesToAddress([]byte("alice")),
		MainPurse: key.NewURef(key.BytesToAddress([]byte("purse")), key.ReadAddWrite),
		NamedKeys: map[string]key.Key{
			"hello_name": key.Hash(key.BytesToAddress([]byte("contract"))),
		},
		AssociatedKeys: map[key.Address]Weight{
			key.BytesToAddress([]byte("alice")): 10,
		},
		ActionThresholds: ActionThresholds{Deployment: 1, KeyManagement: 5},
	}
	v := FromAccount(a)
	got := roundTrip(t, v)
	assert.Equal(t, a, got.Account)
}

func TestAuthorizedWeightIgnoresUnassociatedKeys(t *testing.T) {
	a := &Account{AssociatedKeys: map[key.Address]Weight{
		key.BytesToAddress([]byte("k1")): 3,
		key.BytesToAddress([]byte("k2")): 4,
	}}
	weight := a.AuthorizedWeight([]key.Address{
		key.BytesToAddress([]byte("k1")),
		key.BytesToAddress([]byte("unrelated")),
	})
	assert.EqualValues(t, 3, weight)
	assert.True(t, a.MeetsThreshold([]key.Address{key.BytesToAddress([]byte("k1"))}, 3))
	assert.False(t, a.MeetsThreshold([]key.Address{key.BytesToAddress([]byte("k1"))}, 4))
}
