package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameCounterAllowsUpToMax(t *testing.T) {
	f := newFrameCounter(2)
	assert.NoError(t, f.enter())
	assert.NoError(t, f.enter())
	err := f.enter()
	var overflow *ErrStackOverflow
	assert.ErrorAs(t, err, &overflow)
}

func TestFrameCounterLeaveAllowsReentry(t *testing.T) {
	f := newFrameCounter(1)
	assert.NoError(t, f.enter())
	f.leave()
	assert.NoError(t, f.enter())
}

func TestFrameCounterLeaveNeverGoesNegative(t *testing.T) {
	f := newFrameCounter(1)
	f.leave()
	f.leave()
	assert.NoError(t, f.enter())
}
