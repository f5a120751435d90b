package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casper-ee/execengine/key"
)

func buildDeploy(t *testing.T) *Deploy {
	t.Helper()
	session, err := NewModuleBytes([]byte{0x00, 0x61, 0x73, 0x6d})
	require.NoError(t, err)

	return NewDeployBuilder().
		Account(key.BytesToAddress([]byte("alice"))).
		Timestamp(1000).
		TTL(1800).
		GasPrice(1).
		Session(session).
		Build()
}

func TestDeployBuilderAssemblesFields(t *testing.T) {
	d := buildDeploy(t)
	assert.Equal(t, key.BytesToAddress([]byte("alice")), d.Account())
	assert.Equal(t, uint64(1000), d.Timestamp())
	assert.Equal(t, uint64(1800), d.TTL())
	assert.Equal(t, uint64(1), d.GasPrice())
}

func TestDeployValidateRequiresSession(t *testing.T) {
	d := NewDeployBuilder().Account(key.BytesToAddress([]byte("alice"))).TTL(10).Build()
	err := d.Validate()
	var malformed *ErrMalformedDeploy
	assert.ErrorAs(t, err, &malformed)
}

func TestDeployValidateRequiresAccount(t *testing.T) {
	session, _ := NewModuleBytes([]byte{1})
	d := NewDeployBuilder().TTL(10).Session(session).Build()
	err := d.Validate()
	var malformed *ErrMalformedDeploy
	assert.ErrorAs(t, err, &malformed)
}

func TestDeployValidateAccepts(t *testing.T) {
	d := buildDeploy(t)
	assert.NoError(t, d.Validate())
}

func TestDeployHashDeterministic(t *testing.T) {
	a := buildDeploy(t)
	b := buildDeploy(t)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestDeployHashChangesWithSession(t *testing.T) {
	a := buildDeploy(t)
	other, _ := NewModuleBytes([]byte{0x00, 0x61, 0x73, 0x6d, 0xff})
	b := NewDeployBuilder().
		Account(key.BytesToAddress([]byte("alice"))).
		Timestamp(1000).
		TTL(1800).
		GasPrice(1).
		Session(other).
		Build()
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestDeployHashExcludesApprovals(t *testing.T) {
	a := buildDeploy(t)
	before := a.Hash()
	a.body.Approvals = append(a.body.Approvals, Approval{Signature: []byte("sig")})
	assert.Equal(t, before, a.Hash())
}
