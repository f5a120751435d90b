package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCapErrorMessage(t *testing.T) {
	err := &ErrMemoryCapExceeded{Requested: 128, Max: 64}
	assert.Contains(t, err.Error(), "128")
	assert.Contains(t, err.Error(), "64")
}

func TestTrapErrorMessage(t *testing.T) {
	err := &ErrTrap{Message: "unreachable"}
	assert.Contains(t, err.Error(), "unreachable")
}

func TestNewExecutorDefaultsMemoryCap(t *testing.T) {
	x := NewExecutor(0, 16)
	assert.Equal(t, uint32(MaxLinearMemoryPages), x.maxMemPages)
}
