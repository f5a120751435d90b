package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/transform"
	"github.com/casper-ee/execengine/value"
)

func TestNewSuccessSucceeded(t *testing.T) {
	effects := map[key.Key]transform.Transform{
		key.Hash(key.BytesToAddress([]byte("c"))): transform.NewWrite(value.UInt64(1)),
	}
	r := NewSuccess(500, effects)
	assert.True(t, r.Succeeded())
	assert.Equal(t, uint64(500), r.GasUsed)
	assert.Len(t, r.Effects, 1)
}

func TestNewFailureNotSucceeded(t *testing.T) {
	r := NewFailure(OutOfGas, 1000, "gas limit exceeded")
	assert.False(t, r.Succeeded())
	assert.Equal(t, OutOfGas, r.Discriminant)
	assert.Nil(t, r.Effects)
	assert.Equal(t, "gas limit exceeded", r.Message)
}
