// Copyright 2016 The go-ethereum Authors — structure adapted for this
// engine's content-addressed, Blake2b-hashed authenticated trie.

package trie

import (
	"fmt"

	"github.com/qianbin/drlp"
	"golang.org/x/crypto/blake2b"
)

// node is any of the four node kinds making up the in-memory trie.
// hashNode is a reference to a node that has not (yet) been loaded from
// the backing store; every other kind is "resolved".
type node interface {
	isNode()
}

// fullNode branches on one nibble (0-15); Children[16] holds a value
// terminating exactly at this node, if any.
type fullNode struct {
	Children [17]node
}

// shortNode represents a shared nibble path (an "extension" when Val is
// a branch, a "leaf" when Val is a valueNode).
type shortNode struct {
	Key []byte // nibbles, no terminator byte (terminal-ness is implied by Val's type)
	Val node
}

// valueNode is a leaf's stored payload: the caller-supplied value bytes
// (the canonical encoding of the folded transform's resulting Value).
type valueNode []byte

// hashNode is an unresolved reference: the Blake2b hash of a node's
// canonical encoding, content-addressed in the backing Database.
type hashNode []byte

func (*fullNode) isNode()  {}
func (*shortNode) isNode() {}
func (valueNode) isNode()  {}
func (hashNode) isNode()   {}

// slot kinds used in the wire encoding of fullNode/shortNode children,
// disambiguating a raw inline value from a 32-byte hash reference (both
// are plain []byte and could otherwise collide in length).
const (
	slotNil byte = iota
	slotHash
	slotInline
)

type rawFull struct {
	Kinds    [17]byte
	Children [17][]byte
}

type rawShort struct {
	Key  []byte
	Kind byte
	Val  []byte
}

// hashLength is the width of a content address in this trie.
const hashLength = 32

// encode produces the canonical, deterministic byte encoding of n that is
// hashed to obtain its content address and persisted verbatim.
func encode(n node) ([]byte, error) {
	switch n := n.(type) {
	case *fullNode:
		var raw rawFull
		for i, child := range n.Children {
			switch c := child.(type) {
			case nil:
				raw.Kinds[i] = slotNil
			case hashNode:
				raw.Kinds[i] = slotHash
				raw.Children[i] = []byte(c)
			case valueNode:
				raw.Kinds[i] = slotInline
				raw.Children[i] = []byte(c)
			default:
				return nil, fmt.Errorf("trie: encode: unresolved child at slot %d (must be hashed first)", i)
			}
		}
		body, err := drlp.EncodeToBytes(&raw)
		if err != nil {
			return nil, err
		}
		return append([]byte{1}, body...), nil
	case *shortNode:
		r := rawShort{Key: n.Key}
		switch c := n.Val.(type) {
		case hashNode:
			r.Kind = slotHash
			r.Val = []byte(c)
		case valueNode:
			r.Kind = slotInline
			r.Val = []byte(c)
		default:
			return nil, fmt.Errorf("trie: encode: unresolved shortNode child (must be hashed first)")
		}
		body, err := drlp.EncodeToBytes(&r)
		if err != nil {
			return nil, err
		}
		return append([]byte{2}, body...), nil
	default:
		return nil, fmt.Errorf("trie: encode: cannot encode node of type %T directly", n)
	}
}

// decode inverts encode, leaving child slots as either nil, a hashNode
// reference (to be resolved lazily on descent), or an inlined valueNode.
func decode(buf []byte) (node, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("trie: decode: empty buffer")
	}
	tag, body := buf[0], buf[1:]
	switch tag {
	case 1:
		var raw rawFull
		if err := drlp.DecodeBytes(body, &raw); err != nil {
			return nil, err
		}
		fn := &fullNode{}
		for i := 0; i < 17; i++ {
			switch raw.Kinds[i] {
			case slotNil:
				fn.Children[i] = nil
			case slotHash:
				fn.Children[i] = hashNode(raw.Children[i])
			case slotInline:
				fn.Children[i] = valueNode(raw.Children[i])
			default:
				return nil, fmt.Errorf("trie: decode: bad slot kind %d", raw.Kinds[i])
			}
		}
		return fn, nil
	case 2:
		var raw rawShort
		if err := drlp.DecodeBytes(body, &raw); err != nil {
			return nil, err
		}
		sn := &shortNode{Key: raw.Key}
		switch raw.Kind {
		case slotHash:
			sn.Val = hashNode(raw.Val)
		case slotInline:
			sn.Val = valueNode(raw.Val)
		default:
			return nil, fmt.Errorf("trie: decode: bad shortNode kind %d", raw.Kind)
		}
		return sn, nil
	default:
		return nil, fmt.Errorf("trie: decode: bad node tag %d", tag)
	}
}

// hashOf returns the content address of a node's canonical encoding.
func hashOf(n node) (hashNode, []byte, error) {
	enc, err := encode(n)
	if err != nil {
		return nil, nil, err
	}
	h := blake2b.Sum256(enc)
	return hashNode(h[:]), enc, nil
}
