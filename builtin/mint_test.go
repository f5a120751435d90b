package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/trackingcopy"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

type fakeView struct{ data map[key.Key]value.Value }

func (f *fakeView) Read(k key.Key) (*value.Value, bool, error) {
	v, ok := f.data[k.Normalized()]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func newEnv() *xenv.Environment {
	tc := trackingcopy.New(&fakeView{data: map[key.Key]value.Value{}})
	return xenv.New(tc, xenv.NewGasMeter(1_000_000), xenv.DefaultGasCosts, []byte("deploy"), nil, map[string]key.Key{}, map[key.Key]key.Rights{}, nil, 64, xenv.SystemContext{Mint: MintKey(), ProofOfStake: ProofOfStakeKey()})
}

func TestCreatePurseStartsAtZero(t *testing.T) {
	env := newEnv()
	purse, err := CreatePurse(env)
	require.NoError(t, err)
	bal, err := Balance(env, purse)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal)
}

func TestCreditThenBalance(t *testing.T) {
	env := newEnv()
	purse, err := CreatePurse(env)
	require.NoError(t, err)
	require.NoError(t, Credit(env, purse, 500))
	bal, err := Balance(env, purse)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
}

func TestTransferMovesBalance(t *testing.T) {
	env := newEnv()
	src, _ := CreatePurse(env)
	dst, _ := CreatePurse(env)
	require.NoError(t, Credit(env, src, 1000))

	require.NoError(t, Transfer(env, src, dst, 400))

	srcBal, _ := Balance(env, src)
	dstBal, _ := Balance(env, dst)
	assert.Equal(t, uint64(600), srcBal)
	assert.Equal(t, uint64(400), dstBal)
}

func TestTransferInsufficientFunds(t *testing.T) {
	env := newEnv()
	src, _ := CreatePurse(env)
	dst, _ := CreatePurse(env)
	require.NoError(t, Credit(env, src, 10))

	err := Transfer(env, src, dst, 11)
	var insufficient *ErrInsufficientFunds
	assert.ErrorAs(t, err, &insufficient)
}

func TestCallMintCreatePurseAndBalance(t *testing.T) {
	env := newEnv()
	call, err := EncodeCall("create_purse")
	require.NoError(t, err)
	result, err := CallMint(env, call)
	require.NoError(t, err)
	require.Equal(t, value.TagKey, result.Tag)

	call, err = EncodeCall("balance", value.FromKey(result.Key))
	require.NoError(t, err)
	balResult, err := CallMint(env, call)
	require.NoError(t, err)
	assert.Equal(t, value.UInt64(0), balResult)
}

func TestCallMintUnknownMethod(t *testing.T) {
	env := newEnv()
	call, err := EncodeCall("not_a_method")
	require.NoError(t, err)
	_, err = CallMint(env, call)
	var unknown *ErrUnknownMethod
	assert.ErrorAs(t, err, &unknown)
}

func TestDecodeCallRejectsEmptyPayload(t *testing.T) {
	_, _, err := DecodeCall(nil)
	assert.Error(t, err)
}
