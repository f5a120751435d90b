package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

func TestNewModuleBytesEncodesArgs(t *testing.T) {
	code, err := NewModuleBytes([]byte{0x00, 0x61, 0x73, 0x6d}, value.UInt64(42))
	require.NoError(t, err)

	wasm, ok := code.ModuleBytes()
	assert.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, wasm)
	assert.Len(t, code.Args(), 1)

	_, stored := code.StoredTarget()
	assert.False(t, stored)
}

func TestNewStoredContractHasNoModuleBytes(t *testing.T) {
	target := key.Hash(key.BytesToAddress([]byte("counter")))
	code, err := NewStoredContract(target)
	require.NoError(t, err)

	_, ok := code.ModuleBytes()
	assert.False(t, ok)

	got, stored := code.StoredTarget()
	assert.True(t, stored)
	assert.Equal(t, target, got)
}

func TestExecutableCodeEmpty(t *testing.T) {
	var code ExecutableCode
	assert.True(t, code.Empty())

	code, _ = NewModuleBytes([]byte{1})
	assert.False(t, code.Empty())
}
