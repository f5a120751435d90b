// Package value implements the engine's Value tagged union (spec.md §3)
// and its canonical, deterministic encoding (spec.md §6). Encoding uses
// qianbin/drlp — a deterministic RLP codec — for recursive aggregates
// (integers are packed by hand as fixed-width little-endian), wrapped in the length-prefixed, tag-first envelope the
// specification calls for; this mirrors the way the teacher encodes
// storage values through github.com/ethereum/go-ethereum/rlp in
// builtin/types.go, swapped for the deterministic variant since ordinary
// RLP does not guarantee canonical map ordering on its own.
package value

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/qianbin/drlp"

	"github.com/casper-ee/execengine/key"
)

// Tag discriminates the Value variants; it is always the leading byte of
// a Value's canonical encoding.
type Tag byte

const (
	TagInt32 Tag = iota
	TagUInt64
	TagUInt128
	TagUInt256
	TagUInt512
	TagBytes
	TagString
	TagAccount
	TagContract
	TagList
	TagMap
	TagUnit
	TagTuple
	TagKey
)

// Weight is an associated-key authorization weight (spec.md §3 Account).
type Weight uint8

// ActionThresholds gates the two account-management operations that
// require a minimum summed authorization weight.
type ActionThresholds struct {
	Deployment    Weight
	KeyManagement Weight
}

// Account is the engine's account record (spec.md §3, supplemented in
// SPEC_FULL.md §3 with concrete associated-key operations).
type Account struct {
	PubKey          key.Address
	MainPurse       key.Key
	NamedKeys       map[string]key.Key
	AssociatedKeys  map[key.Address]Weight
	ActionThresholds ActionThresholds
}

// AuthorizedWeight sums the weight of every authorization key present in
// both authKeys and the account's associated keys. Keys that are not
// associated with the account contribute nothing (spec.md §3).
func (a *Account) AuthorizedWeight(authKeys []key.Address) Weight {
	var sum int
	for _, k := range authKeys {
		sum += int(a.AssociatedKeys[k])
	}
	if sum > 255 {
		return 255
	}
	return Weight(sum)
}

// MeetsThreshold reports whether authKeys collectively satisfy threshold.
func (a *Account) MeetsThreshold(authKeys []key.Address, threshold Weight) bool {
	return a.AuthorizedWeight(authKeys) >= threshold
}

// Contract is an immutable stored contract body plus its mutable
// named-key map (spec.md §3).
type Contract struct {
	Body            []byte
	NamedKeys       map[string]key.Key
	ProtocolVersion uint32
}

// MapEntry is one (name, key) pair of a named-key map. Encoding sorts
// entries lexicographically by Name for determinism (spec.md §3, §6).
type MapEntry struct {
	Name string
	Key  key.Key
}

// Value is the engine's dynamically-tagged runtime value. Only the field
// matching Tag is meaningful; the zero Value has Tag TagInt32.
type Value struct {
	Tag     Tag
	Int32   int32
	UInt64  uint64
	UInt128 *uint256.Int
	UInt256 *uint256.Int
	UInt512 *uint256.Int
	Bytes   []byte
	String  string
	Account *Account
	Contract *Contract
	List    []Value
	Map     []MapEntry
	Tuple   []Value
	Key     key.Key
}

func Unit() Value                     { return Value{Tag: TagUnit} }
func Int32(v int32) Value             { return Value{Tag: TagInt32, Int32: v} }
func UInt64(v uint64) Value           { return Value{Tag: TagUInt64, UInt64: v} }
func UInt128(v *uint256.Int) Value    { return Value{Tag: TagUInt128, UInt128: v} }
func UInt256(v *uint256.Int) Value    { return Value{Tag: TagUInt256, UInt256: v} }
func UInt512(v *uint256.Int) Value    { return Value{Tag: TagUInt512, UInt512: v} }
func Bytes(v []byte) Value            { return Value{Tag: TagBytes, Bytes: v} }
func String(v string) Value           { return Value{Tag: TagString, String: v} }
func FromAccount(v *Account) Value    { return Value{Tag: TagAccount, Account: v} }
func FromContract(v *Contract) Value  { return Value{Tag: TagContract, Contract: v} }
func List(v []Value) Value            { return Value{Tag: TagList, List: v} }
func Tuple(v []Value) Value           { return Value{Tag: TagTuple, Tuple: v} }
func FromKey(k key.Key) Value         { return Value{Tag: TagKey, Key: k} }

// NewMap builds a TagMap Value, sorting entries lexicographically by name
// so that the result encodes deterministically regardless of the
// caller's insertion order (spec.md §3's "later wins on collision,
// deterministically" fold requires this same canonical order downstream
// in transform.AddKeys).
func NewMap(m map[string]key.Key) Value {
	entries := make([]MapEntry, 0, len(m))
	for name, k := range m {
		entries = append(entries, MapEntry{Name: name, Key: k})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return Value{Tag: TagMap, Map: entries}
}

// AsMap reconstructs a plain map from a TagMap Value.
func (v Value) AsMap() map[string]key.Key {
	out := make(map[string]key.Key, len(v.Map))
	for _, e := range v.Map {
		out[e.Name] = e.Key
	}
	return out
}

// Encode produces the canonical byte encoding described in spec.md §6:
// length-prefixed, big-endian length, tag-first; integers little-endian
// fixed width; variable-length payloads carry a u32 length prefix ahead
// of their deterministic-RLP body.
func Encode(v Value) ([]byte, error) {
	out := []byte{byte(v.Tag)}
	switch v.Tag {
	case TagUnit:
		return out, nil
	case TagInt32:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v.Int32))
		return append(out, buf[:]...), nil
	case TagUInt64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v.UInt64)
		return append(out, buf[:]...), nil
	case TagUInt128, TagUInt256, TagUInt512:
		n := v.uintOf(v.Tag)
		if n == nil {
			n = new(uint256.Int)
		}
		buf := n.Bytes32()
		// little-endian fixed width per spec.md §6
		rev := reverse(buf[:])
		return append(out, rev...), nil
	case TagBytes:
		return appendLenPrefixed(out, v.Bytes), nil
	case TagString:
		return appendLenPrefixed(out, []byte(v.String)), nil
	case TagKey:
		return append(out, v.Key.Bytes()...), nil
	case TagAccount:
		body, err := encodeAccount(v.Account)
		if err != nil {
			return nil, err
		}
		return appendLenPrefixed(out, body), nil
	case TagContract:
		body, err := encodeContract(v.Contract)
		if err != nil {
			return nil, err
		}
		return appendLenPrefixed(out, body), nil
	case TagMap:
		body, err := encodeMap(v.Map)
		if err != nil {
			return nil, err
		}
		return appendLenPrefixed(out, body), nil
	case TagList:
		body, err := encodeValues(v.List)
		if err != nil {
			return nil, err
		}
		return appendLenPrefixed(out, body), nil
	case TagTuple:
		body, err := encodeValues(v.Tuple)
		if err != nil {
			return nil, err
		}
		return appendLenPrefixed(out, body), nil
	default:
		return nil, fmt.Errorf("value: unknown tag %d", v.Tag)
	}
}

func (v Value) uintOf(tag Tag) *uint256.Int {
	switch tag {
	case TagUInt128:
		return v.UInt128
	case TagUInt256:
		return v.UInt256
	default:
		return v.UInt512
	}
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func appendLenPrefixed(out, body []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	out = append(out, lenBuf[:]...)
	return append(out, body...)
}

type rlpAccount struct {
	PubKey           []byte
	MainPurse        []byte
	NamedKeyNames    []string
	NamedKeyValues   [][]byte
	AssociatedAddrs  [][]byte
	AssociatedWeight []byte
	DeployThreshold  byte
	KeyMgmtThreshold byte
}

func encodeAccount(a *Account) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("value: nil Account")
	}
	entries := make([]MapEntry, 0, len(a.NamedKeys))
	for name, k := range a.NamedKeys {
		entries = append(entries, MapEntry{Name: name, Key: k})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	assoc := make([]key.Address, 0, len(a.AssociatedKeys))
	for addr := range a.AssociatedKeys {
		assoc = append(assoc, addr)
	}
	sort.Slice(assoc, func(i, j int) bool { return string(assoc[i][:]) < string(assoc[j][:]) })

	r := rlpAccount{
		PubKey:           a.PubKey[:],
		MainPurse:        a.MainPurse.Bytes(),
		DeployThreshold:  byte(a.ActionThresholds.Deployment),
		KeyMgmtThreshold: byte(a.ActionThresholds.KeyManagement),
	}
	for _, e := range entries {
		r.NamedKeyNames = append(r.NamedKeyNames, e.Name)
		r.NamedKeyValues = append(r.NamedKeyValues, e.Key.Bytes())
	}
	for _, addr := range assoc {
		r.AssociatedAddrs = append(r.AssociatedAddrs, addr[:])
		r.AssociatedWeight = append(r.AssociatedWeight, byte(a.AssociatedKeys[addr]))
	}
	return drlp.EncodeToBytes(&r)
}

type rlpContract struct {
	Body            []byte
	NamedKeyNames   []string
	NamedKeyValues  [][]byte
	ProtocolVersion uint32
}

func encodeContract(c *Contract) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("value: nil Contract")
	}
	entries := make([]MapEntry, 0, len(c.NamedKeys))
	for name, k := range c.NamedKeys {
		entries = append(entries, MapEntry{Name: name, Key: k})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	r := rlpContract{Body: c.Body, ProtocolVersion: c.ProtocolVersion}
	for _, e := range entries {
		r.NamedKeyNames = append(r.NamedKeyNames, e.Name)
		r.NamedKeyValues = append(r.NamedKeyValues, e.Key.Bytes())
	}
	return drlp.EncodeToBytes(&r)
}

func encodeMap(entries []MapEntry) ([]byte, error) {
	sorted := make([]MapEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	names := make([]string, len(sorted))
	keys := make([][]byte, len(sorted))
	for i, e := range sorted {
		names[i] = e.Name
		keys[i] = e.Key.Bytes()
	}
	return drlp.EncodeToBytes(&struct {
		Names []string
		Keys  [][]byte
	}{names, keys})
}

func encodeValues(vs []Value) ([]byte, error) {
	encoded := make([][]byte, len(vs))
	for i, item := range vs {
		b, err := Encode(item)
		if err != nil {
			return nil, err
		}
		encoded[i] = b
	}
	return drlp.EncodeToBytes(&encoded)
}
