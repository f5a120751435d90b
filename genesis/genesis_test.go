package genesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casper-ee/execengine/builtin"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/trie"
	"github.com/casper-ee/execengine/value"
)

func TestBuildInstallsSystemContracts(t *testing.T) {
	store := state.New(trie.NewMemDatabase())
	root, err := NewDefault(protocol.Default()).Build(store)
	require.NoError(t, err)

	view, ok, err := store.Checkout(root)
	require.NoError(t, err)
	require.True(t, ok)

	mint, found, err := view.Read(builtin.MintKey())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.TagContract, mint.Tag)

	pos, found, err := view.Read(builtin.ProofOfStakeKey())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.TagContract, pos.Tag)
	assert.Contains(t, pos.Contract.NamedKeys, builtin.ConvRateKey)
	assert.Contains(t, pos.Contract.NamedKeys, builtin.PaymentLimitKey)
	assert.Contains(t, pos.Contract.NamedKeys, builtin.RewardPoolKey)
}

func TestBuildCreditsAccountsAndSeedsAssociatedKeys(t *testing.T) {
	store := state.New(trie.NewMemDatabase())
	addr := key.BytesToAddress([]byte("alice"))
	root, err := NewDefault(protocol.Default()).WithAccount(addr, 1_000_000).Build(store)
	require.NoError(t, err)

	view, ok, err := store.Checkout(root)
	require.NoError(t, err)
	require.True(t, ok)

	acc, found, err := view.Read(key.Account(addr))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, value.TagAccount, acc.Tag)
	assert.Equal(t, Weight(1), acc.Account.ActionThresholds.Deployment)
	assert.Equal(t, Weight(1), acc.Account.ActionThresholds.KeyManagement)
	assert.Equal(t, value.Weight(1), acc.Account.AssociatedKeys[addr])

	purse, found, err := view.Read(acc.Account.MainPurse)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 1_000_000, purse.UInt64)
}

func TestBuildBondsValidators(t *testing.T) {
	store := state.New(trie.NewMemDatabase())
	pub := key.BytesToAddress([]byte("validator-1"))
	g := NewDefault(protocol.Default()).WithValidator(pub, 5000)
	root, err := g.Build(store)
	require.NoError(t, err)

	view, ok, err := store.Checkout(root)
	require.NoError(t, err)
	require.True(t, ok)

	pos, found, err := view.Read(builtin.ProofOfStakeKey())
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, pos.Contract.NamedKeys, builtin.ValidatorName(pub, 5000))
}

// Weight is a local alias so these tests read naturally without importing
// value just for the literal type name in assertions above.
type Weight = value.Weight
