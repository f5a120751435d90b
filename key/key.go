// Package key implements the engine's tagged-address key space: the
// object-capability tokens (URef) and the two other addressable key
// variants (Account, Hash) that everything in global state is stored
// under.
package key

import (
	"encoding/hex"
	"fmt"
)

// Length is the byte width of every key's address component.
const Length = 32

// Tag discriminates the three key variants. It is always the first byte
// of a key's canonical encoding.
type Tag byte

const (
	// TagAccount addresses an Account value by the account's public key.
	TagAccount Tag = iota
	// TagHash addresses an immutable stored Contract by its content hash.
	TagHash
	// TagURef addresses a value through a capability-bearing reference.
	TagURef
)

func (t Tag) String() string {
	switch t {
	case TagAccount:
		return "Account"
	case TagHash:
		return "Hash"
	case TagURef:
		return "URef"
	default:
		return fmt.Sprintf("Tag(%d)", t)
	}
}

// Rights is the set of access rights a URef may carry, drawn from
// {READ, WRITE, ADD}.
type Rights uint8

const (
	Read Rights = 1 << iota
	Write
	Add
)

// None carries no rights at all; ReadAddWrite is the full set granted to
// freshly allocated URefs (see xenv.Environment.NewURef).
const (
	None         Rights = 0
	ReadAddWrite        = Read | Write | Add
)

// Has reports whether r contains every right in other.
func (r Rights) Has(other Rights) bool { return r&other == other }

// IsSubsetOf reports whether r contains no right absent from other — the
// direction capability demotion must always respect: a holder may only
// ever hand out a Rights value that is a subset of its own.
func (r Rights) IsSubsetOf(other Rights) bool { return r&^other == 0 }

func (r Rights) String() string {
	if r == None {
		return "NONE"
	}
	s := ""
	if r.Has(Read) {
		s += "R"
	}
	if r.Has(Add) {
		s += "A"
	}
	if r.Has(Write) {
		s += "W"
	}
	return s
}

// Address is the fixed-width address component shared by all key
// variants. Account keys and Hash keys use the full address space;
// forging a collision with an existing address is assumed
// computationally infeasible (the engine never attempts to verify this,
// consistent with spec.md §3's possession-based capability model).
type Address [Length]byte

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// BytesToAddress right-aligns b into an Address, truncating on the left
// if b is longer than Length (mirrors the teacher's thor.BytesToAddress
// convention observed in state/state_test.go).
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > Length {
		b = b[len(b)-Length:]
	}
	copy(a[Length-len(b):], b)
	return a
}

// Key is a tagged address. Rights is only meaningful when Tag is TagURef;
// it is the zero value otherwise. Key is a plain value type: equality,
// hashing and map-keying all work with plain Go comparison since the
// struct has no pointers.
type Key struct {
	Tag     Tag
	Address Address
	Rights  Rights
}

// Account constructs an Account key from a 32-byte public key.
func Account(pubKey Address) Key { return Key{Tag: TagAccount, Address: pubKey} }

// Hash constructs a Hash key addressing a stored contract.
func Hash(h Address) Key { return Key{Tag: TagHash, Address: h} }

// NewURef constructs a URef key with the given rights.
func NewURef(addr Address, rights Rights) Key {
	return Key{Tag: TagURef, Address: addr, Rights: rights}
}

// IsURef reports whether k is a URef key.
func (k Key) IsURef() bool { return k.Tag == TagURef }

// WithRights returns a copy of a URef key restricted to rights, which
// must be a subset of k's current rights (URef rights are monotonically
// demotable, never expandable — spec.md §3 invariant). It is a
// precondition error to call this on a non-URef key.
func (k Key) WithRights(rights Rights) (Key, error) {
	if k.Tag != TagURef {
		return Key{}, fmt.Errorf("key: WithRights on non-URef key (tag %s)", k.Tag)
	}
	if !rights.IsSubsetOf(k.Rights) {
		return Key{}, fmt.Errorf("key: cannot grant rights %s from %s (not a subset)", rights, k.Rights)
	}
	return Key{Tag: TagURef, Address: k.Address, Rights: rights}, nil
}

// Normalized strips Rights for equality/lookup purposes that should be
// rights-insensitive (the trie is keyed by (Tag, Address) only — two
// URefs over the same address with different rights address the same
// stored value, per spec.md §3: rights gate *access*, not *addressing*).
func (k Key) Normalized() Key { return Key{Tag: k.Tag, Address: k.Address} }

func (k Key) String() string {
	if k.Tag == TagURef {
		return fmt.Sprintf("uref-%s-%s", k.Address, k.Rights)
	}
	return fmt.Sprintf("%s-%s", k.Tag, k.Address)
}

// Bytes returns the canonical tag||address||rights encoding used both as
// the trie path and as the wire encoding described in spec.md §6. Rights
// is emitted as a single trailing byte always, zero for non-URef keys,
// so that encode/decode round-trips without ambiguity.
func (k Key) Bytes() []byte {
	out := make([]byte, 0, 1+Length+1)
	out = append(out, byte(k.Tag))
	out = append(out, k.Address[:]...)
	out = append(out, byte(k.Rights))
	return out
}

// Decode parses the encoding produced by Bytes.
func Decode(b []byte) (Key, error) {
	if len(b) != 1+Length+1 {
		return Key{}, fmt.Errorf("key: bad length %d", len(b))
	}
	tag := Tag(b[0])
	if tag != TagAccount && tag != TagHash && tag != TagURef {
		return Key{}, fmt.Errorf("key: bad tag %d", b[0])
	}
	var addr Address
	copy(addr[:], b[1:1+Length])
	return Key{Tag: tag, Address: addr, Rights: Rights(b[len(b)-1])}, nil
}
