package xenv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/trackingcopy"
	"github.com/casper-ee/execengine/value"
)

type fakeView struct{ data map[key.Key]value.Value }

func (f *fakeView) Read(k key.Key) (*value.Value, bool, error) {
	v, ok := f.data[k.Normalized()]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func newTestEnv(args [][]byte, namedKeys map[string]key.Key, rights map[key.Key]key.Rights) *Environment {
	tc := trackingcopy.New(&fakeView{data: map[key.Key]value.Value{}})
	return New(tc, NewGasMeter(1_000_000), DefaultGasCosts, []byte("deploy-hash"), args, namedKeys, rights, nil, 64, SystemContext{})
}

func TestGetArgOutOfRange(t *testing.T) {
	env := newTestEnv([][]byte{[]byte("only")}, map[string]key.Key{}, map[key.Key]key.Rights{})
	_, err := env.GetArg(1)
	assert.Error(t, err)
	var missing *ErrMissingArgument
	assert.ErrorAs(t, err, &missing)
}

func TestReadRequiresRight(t *testing.T) {
	k := key.Hash(key.BytesToAddress([]byte("target")))
	env := newTestEnv(nil, map[string]key.Key{}, map[key.Key]key.Rights{})
	_, _, err := env.Read(k)
	var forbidden *ErrForbidden
	assert.ErrorAs(t, err, &forbidden)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	u := key.NewURef(key.BytesToAddress([]byte("u")), key.ReadAddWrite)
	env := newTestEnv(nil, map[string]key.Key{}, map[key.Key]key.Rights{u.Normalized(): key.ReadAddWrite})
	assert.NoError(t, env.Write(u, value.Int32(5)))
	v, found, err := env.Read(u)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.Int32(5), *v)
}

func TestNewURefGrantsFullRightsAndIsDeterministic(t *testing.T) {
	env1 := newTestEnv(nil, map[string]key.Key{}, map[key.Key]key.Rights{})
	u1, err := env1.NewURef(value.Int32(1))
	assert.NoError(t, err)

	env2 := newTestEnv(nil, map[string]key.Key{}, map[key.Key]key.Rights{})
	u2, err := env2.NewURef(value.Int32(1))
	assert.NoError(t, err)

	assert.Equal(t, u1.Address, u2.Address, "same deploy hash must allocate the same URef address")
	assert.Equal(t, key.ReadAddWrite, u1.Rights)
}

func TestOutOfGasUnwinds(t *testing.T) {
	tc := trackingcopy.New(&fakeView{data: map[key.Key]value.Value{}})
	env := New(tc, NewGasMeter(10), DefaultGasCosts, []byte("d"), nil, map[string]key.Key{}, map[key.Key]key.Rights{}, nil, 64, SystemContext{})
	_, err := env.GetArg(0)
	var oog *ErrOutOfGas
	assert.ErrorAs(t, err, &oog)
}

func TestCallContractEnforcesStackHeightCap(t *testing.T) {
	tc := trackingcopy.New(&fakeView{data: map[key.Key]value.Value{}})
	env := New(tc, NewGasMeter(1_000_000), DefaultGasCosts, []byte("d"), nil, map[string]key.Key{}, map[key.Key]key.Rights{}, dispatcherFunc(func(e *Environment, target key.Key, args [][]byte, extra []key.Key) (value.Value, error) {
		return value.Unit(), nil
	}), 0, SystemContext{})
	target := key.Hash(key.BytesToAddress([]byte("c")))
	_, err := env.CallContract(target, nil, nil)
	assert.Error(t, err)
}

func TestCallContractDemotesExtraURefRights(t *testing.T) {
	u := key.NewURef(key.BytesToAddress([]byte("u")), key.Read)
	overReaching := key.Key{Tag: key.TagURef, Address: u.Address, Rights: key.ReadAddWrite}

	tc := trackingcopy.New(&fakeView{data: map[key.Key]value.Value{}})
	env := New(tc, NewGasMeter(1_000_000), DefaultGasCosts, []byte("d"), nil, map[string]key.Key{}, map[key.Key]key.Rights{u.Normalized(): key.Read}, dispatcherFunc(func(e *Environment, target key.Key, args [][]byte, extra []key.Key) (value.Value, error) {
		return value.Unit(), nil
	}), 64, SystemContext{})

	target := key.Hash(key.BytesToAddress([]byte("c")))
	_, err := env.CallContract(target, nil, []key.Key{overReaching})
	var forbidden *ErrForbidden
	assert.ErrorAs(t, err, &forbidden)
}

type dispatcherFunc func(env *Environment, target key.Key, args [][]byte, extraURefs []key.Key) (value.Value, error)

func (f dispatcherFunc) CallContract(env *Environment, target key.Key, args [][]byte, extraURefs []key.Key) (value.Value, error) {
	return f(env, target, args, extraURefs)
}

func TestRevertProducesRevertedError(t *testing.T) {
	env := newTestEnv(nil, map[string]key.Key{}, map[key.Key]key.Rights{})
	err := env.Revert(7)
	assert.True(t, isReverted(err))
}
