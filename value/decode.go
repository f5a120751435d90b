package value

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/qianbin/drlp"

	"github.com/casper-ee/execengine/key"
)

// Decode inverts Encode. It returns the consumed byte count alongside the
// decoded Value so callers composing multiple Values back to back (e.g.
// decoding a List body) can advance past each element.
func Decode(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, fmt.Errorf("value: empty input")
	}
	tag := Tag(b[0])
	rest := b[1:]
	switch tag {
	case TagUnit:
		return Value{Tag: TagUnit}, 1, nil
	case TagInt32:
		if len(rest) < 4 {
			return Value{}, 0, fmt.Errorf("value: short Int32")
		}
		return Value{Tag: TagInt32, Int32: int32(binary.LittleEndian.Uint32(rest[:4]))}, 5, nil
	case TagUInt64:
		if len(rest) < 8 {
			return Value{}, 0, fmt.Errorf("value: short UInt64")
		}
		return Value{Tag: TagUInt64, UInt64: binary.LittleEndian.Uint64(rest[:8])}, 9, nil
	case TagUInt128, TagUInt256, TagUInt512:
		if len(rest) < 32 {
			return Value{}, 0, fmt.Errorf("value: short uint")
		}
		be := reverse(rest[:32])
		n := new(uint256.Int).SetBytes(be)
		v := Value{Tag: tag}
		switch tag {
		case TagUInt128:
			v.UInt128 = n
		case TagUInt256:
			v.UInt256 = n
		default:
			v.UInt512 = n
		}
		return v, 33, nil
	case TagBytes:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagBytes, Bytes: body}, 1 + n, nil
	case TagString:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagString, String: string(body)}, 1 + n, nil
	case TagKey:
		const keyLen = 1 + key.Length + 1
		if len(rest) < keyLen {
			return Value{}, 0, fmt.Errorf("value: short Key")
		}
		k, err := key.Decode(rest[:keyLen])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagKey, Key: k}, 1 + keyLen, nil
	case TagAccount:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		a, err := decodeAccount(body)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagAccount, Account: a}, 1 + n, nil
	case TagContract:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		c, err := decodeContract(body)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagContract, Contract: c}, 1 + n, nil
	case TagMap:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		entries, err := decodeMap(body)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagMap, Map: entries}, 1 + n, nil
	case TagList:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		items, err := decodeValues(body)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagList, List: items}, 1 + n, nil
	case TagTuple:
		body, n, err := readLenPrefixed(rest)
		if err != nil {
			return Value{}, 0, err
		}
		items, err := decodeValues(body)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: TagTuple, Tuple: items}, 1 + n, nil
	default:
		return Value{}, 0, fmt.Errorf("value: unknown tag %d", tag)
	}
}

func readLenPrefixed(b []byte) (body []byte, consumed int, err error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("value: short length prefix")
	}
	l := binary.BigEndian.Uint32(b[:4])
	if uint32(len(b)-4) < l {
		return nil, 0, fmt.Errorf("value: truncated body, want %d have %d", l, len(b)-4)
	}
	return b[4 : 4+l], 4 + int(l), nil
}

func decodeAccount(b []byte) (*Account, error) {
	var r rlpAccount
	if err := drlp.DecodeBytes(b, &r); err != nil {
		return nil, err
	}
	a := &Account{
		NamedKeys:      make(map[string]key.Key, len(r.NamedKeyNames)),
		AssociatedKeys: make(map[key.Address]Weight, len(r.AssociatedAddrs)),
		ActionThresholds: ActionThresholds{
			Deployment:    Weight(r.DeployThreshold),
			KeyManagement: Weight(r.KeyMgmtThreshold),
		},
	}
	copy(a.PubKey[:], r.PubKey)
	purse, err := key.Decode(r.MainPurse)
	if err != nil {
		return nil, err
	}
	a.MainPurse = purse
	for i, name := range r.NamedKeyNames {
		k, err := key.Decode(r.NamedKeyValues[i])
		if err != nil {
			return nil, err
		}
		a.NamedKeys[name] = k
	}
	for i, addrBytes := range r.AssociatedAddrs {
		addr := key.BytesToAddress(addrBytes)
		a.AssociatedKeys[addr] = Weight(r.AssociatedWeight[i])
	}
	return a, nil
}

func decodeContract(b []byte) (*Contract, error) {
	var r rlpContract
	if err := drlp.DecodeBytes(b, &r); err != nil {
		return nil, err
	}
	c := &Contract{
		Body:            r.Body,
		ProtocolVersion: r.ProtocolVersion,
		NamedKeys:       make(map[string]key.Key, len(r.NamedKeyNames)),
	}
	for i, name := range r.NamedKeyNames {
		k, err := key.Decode(r.NamedKeyValues[i])
		if err != nil {
			return nil, err
		}
		c.NamedKeys[name] = k
	}
	return c, nil
}

func decodeMap(b []byte) ([]MapEntry, error) {
	var r struct {
		Names []string
		Keys  [][]byte
	}
	if err := drlp.DecodeBytes(b, &r); err != nil {
		return nil, err
	}
	entries := make([]MapEntry, len(r.Names))
	for i, name := range r.Names {
		k, err := key.Decode(r.Keys[i])
		if err != nil {
			return nil, err
		}
		entries[i] = MapEntry{Name: name, Key: k}
	}
	return entries, nil
}

func decodeValues(b []byte) ([]Value, error) {
	var encoded [][]byte
	if err := drlp.DecodeBytes(b, &encoded); err != nil {
		return nil, err
	}
	out := make([]Value, len(encoded))
	for i, item := range encoded {
		v, _, err := Decode(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
