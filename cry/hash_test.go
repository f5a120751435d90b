package cry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum256Deterministic(t *testing.T) {
	a := Sum256([]byte("deploy-body"))
	b := Sum256([]byte("deploy-body"))
	assert.Equal(t, a, b)
}

func TestSum256DistinguishesInputs(t *testing.T) {
	a := Sum256([]byte{1, 2})
	b := Sum256([]byte{1, 3})
	assert.NotEqual(t, a, b)
}

func TestSum256VariadicMatchesConcatenation(t *testing.T) {
	a := Sum256([]byte("foo"), []byte("bar"))
	b := Sum256([]byte("foobar"))
	assert.Equal(t, a, b)
}

func TestHashStringIsHexPrefixed(t *testing.T) {
	h := Sum256([]byte("x"))
	s := h.String()
	assert.Equal(t, "0x", s[:2])
	assert.Len(t, s, 66)
}
