package trackingcopy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

type fakeView struct {
	data map[key.Key]value.Value
}

func (f *fakeView) Read(k key.Key) (*value.Value, bool, error) {
	v, ok := f.data[k.Normalized()]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func k(name string) key.Key { return key.Account(key.BytesToAddress([]byte(name))) }

func TestReadMissThenHitFromCache(t *testing.T) {
	view := &fakeView{data: map[key.Key]value.Value{k("a"): value.Int32(1)}}
	tc := New(view)

	v, found, err := tc.Read(k("a"))
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.Int32(1), *v)

	delete(view.data, k("a"))
	v, found, err = tc.Read(k("a"))
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.Int32(1), *v)
}

func TestReadYourWrites(t *testing.T) {
	view := &fakeView{data: map[key.Key]value.Value{}}
	tc := New(view)

	tc.Write(k("a"), value.Int32(7))
	v, found, err := tc.Read(k("a"))
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.Int32(7), *v)
}

func TestEffectsFoldsStagedOps(t *testing.T) {
	view := &fakeView{data: map[key.Key]value.Value{}}
	tc := New(view)

	tc.Write(k("a"), value.Int32(1))
	tc.Add(k("a"), 5)

	folded, err := tc.Effects()
	assert.NoError(t, err)
	assert.Equal(t, value.Int32(6), folded[k("a")].Value)
}

func TestQueryThroughAccountNamedKeys(t *testing.T) {
	contractKey := key.Hash(key.BytesToAddress([]byte("c")))
	account := &value.Account{
		PubKey:    key.BytesToAddress([]byte("acc")),
		NamedKeys: map[string]key.Key{"hello": contractKey},
	}
	view := &fakeView{data: map[key.Key]value.Value{
		k("acc"):     value.FromAccount(account),
		contractKey: value.String("contract-body-marker"),
	}}
	tc := New(view)

	result, err := tc.Query(k("acc"), []string{"hello"})
	assert.NoError(t, err)
	assert.Equal(t, QuerySuccess, result.Kind)
	assert.Equal(t, value.String("contract-body-marker"), result.Value)
}

func TestQueryMissingSegmentReportsPathConsumed(t *testing.T) {
	account := &value.Account{PubKey: key.BytesToAddress([]byte("acc"))}
	view := &fakeView{data: map[key.Key]value.Value{k("acc"): value.FromAccount(account)}}
	tc := New(view)

	result, err := tc.Query(k("acc"), []string{"hello_name", "named_keys", "extra"})
	assert.NoError(t, err)
	assert.Equal(t, QueryValueNotFound, result.Kind)
	assert.Equal(t, []string{"hello_name", "named_keys", "extra"}, result.PathConsumed)
}

// TestQueryTraversesThroughURef covers the SPEC_FULL.md supplement: query
// recurses through an intermediate URef-addressed Map, not only through
// Account/Contract.
func TestQueryTraversesThroughURef(t *testing.T) {
	target := key.Hash(key.BytesToAddress([]byte("target")))
	uref := key.NewURef(key.BytesToAddress([]byte("u")), key.ReadAddWrite)
	account := &value.Account{
		PubKey:    key.BytesToAddress([]byte("acc")),
		NamedKeys: map[string]key.Key{"via-uref": uref},
	}
	view := &fakeView{data: map[key.Key]value.Value{
		k("acc"):   value.FromAccount(account),
		uref.Normalized(): value.NewMap(map[string]key.Key{"inner": target}),
		target:     value.Int32(99),
	}}
	tc := New(view)

	result, err := tc.Query(k("acc"), []string{"via-uref", "inner"})
	assert.NoError(t, err)
	assert.Equal(t, QuerySuccess, result.Kind)
	assert.Equal(t, value.Int32(99), result.Value)
}
