package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeShortNodeInline(t *testing.T) {
	n := &shortNode{Key: []byte{1, 2, 3}, Val: valueNode([]byte("hello"))}
	enc, err := encode(n)
	assert.NoError(t, err)
	got, err := decode(enc)
	assert.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestEncodeDecodeShortNodeHashRef(t *testing.T) {
	n := &shortNode{Key: []byte{4, 5}, Val: hashNode(make([]byte, hashLength))}
	enc, err := encode(n)
	assert.NoError(t, err)
	got, err := decode(enc)
	assert.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestEncodeDecodeFullNode(t *testing.T) {
	n := &fullNode{}
	n.Children[0] = valueNode([]byte("leaf-at-0"))
	n.Children[5] = hashNode(make([]byte, hashLength))
	n.Children[16] = valueNode([]byte("terminal"))
	enc, err := encode(n)
	assert.NoError(t, err)
	got, err := decode(enc)
	assert.NoError(t, err)
	assert.Equal(t, n, got)
}

// TestInlineValueNotConfusedWithHash guards the slotNil/slotHash/slotInline
// disambiguation: a 32-byte inline value must round-trip as a value, never
// be mistaken for a hash reference on decode.
func TestInlineValueNotConfusedWithHash(t *testing.T) {
	thirtyTwoBytes := make([]byte, hashLength)
	for i := range thirtyTwoBytes {
		thirtyTwoBytes[i] = byte(i)
	}
	n := &shortNode{Key: []byte{1}, Val: valueNode(thirtyTwoBytes)}
	enc, err := encode(n)
	assert.NoError(t, err)
	got, err := decode(enc)
	assert.NoError(t, err)
	decoded := got.(*shortNode)
	_, isHash := decoded.Val.(hashNode)
	assert.False(t, isHash, "a 32-byte inline value must not decode as a hashNode")
	assert.Equal(t, valueNode(thirtyTwoBytes), decoded.Val)
}

func TestHashOfIsDeterministic(t *testing.T) {
	n := &shortNode{Key: []byte{1, 2}, Val: valueNode([]byte("x"))}
	h1, _, err := hashOf(n)
	assert.NoError(t, err)
	h2, _, err := hashOf(n)
	assert.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashOfDiffersOnContent(t *testing.T) {
	a := &shortNode{Key: []byte{1}, Val: valueNode([]byte("x"))}
	b := &shortNode{Key: []byte{1}, Val: valueNode([]byte("y"))}
	ha, _, _ := hashOf(a)
	hb, _, _ := hashOf(b)
	assert.NotEqual(t, ha, hb)
}

func TestDecodeRejectsEmptyBuffer(t *testing.T) {
	_, err := decode(nil)
	assert.Error(t, err)
}

func TestDecodeRejectsBadTag(t *testing.T) {
	_, err := decode([]byte{99, 1, 2, 3})
	assert.Error(t, err)
}
