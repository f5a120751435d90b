// Copyright (c) 2018 The VeChainThor developers — builtin contracts
// reworked from EVM-ABI native calls into this engine's tagged-Value
// native dispatch (spec.md §4.F/§4.G).

// Package builtin implements the engine's two system contracts — mint
// and proof-of-stake — the same way the teacher implements its own
// built-in contracts (energy, authority): a fixed address plus a native
// Go entrypoint, reached through xenv.Environment.CallContract exactly
// like a stored WASM contract, rather than a separate host-call surface
// (native_calls.go's per-address dispatch table, adapted from
// ABI-encoded call data to this engine's tagged Value convention).
package builtin

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

// MintAddress and ProofOfStakeAddress are the fixed Hash-key addresses
// genesis installs the two system contracts under (spec.md §4.G).
var (
	MintAddress         = key.BytesToAddress([]byte("casper-ee:mint"))
	ProofOfStakeAddress = key.BytesToAddress([]byte("casper-ee:proof-of-stake"))
)

// MintKey and ProofOfStakeKey are the Keys the engine stores the two
// system contracts' Contract values under.
func MintKey() key.Key         { return key.Hash(MintAddress) }
func ProofOfStakeKey() key.Key { return key.Hash(ProofOfStakeAddress) }

// ErrMalformedCall is returned when a native contract's single argument
// blob does not decode as the (method, params...) tuple every native
// call uses.
type ErrMalformedCall struct{ Reason string }

func (e *ErrMalformedCall) Error() string { return "builtin: malformed call: " + e.Reason }

// ErrUnknownMethod is returned when a native contract receives a method
// name it does not implement.
type ErrUnknownMethod struct{ Method string }

func (e *ErrUnknownMethod) Error() string {
	return fmt.Sprintf("builtin: unknown method %q", e.Method)
}

// EncodeCall packs a method name and its parameters into the single
// argument blob call_contract passes a callee (this engine's
// call_contract ABI forwards exactly one blob; see runtime/imports.go).
// Every native contract entrypoint and every caller of one (the engine,
// another native contract, or session/payment WASM) uses this same
// convention.
func EncodeCall(method string, params ...value.Value) ([][]byte, error) {
	tuple := append([]value.Value{value.String(method)}, params...)
	enc, err := value.Encode(value.Tuple(tuple))
	if err != nil {
		return nil, err
	}
	return [][]byte{enc}, nil
}

// DecodeCall unpacks the (method, params...) tuple EncodeCall produces.
func DecodeCall(args [][]byte) (string, []value.Value, error) {
	if len(args) == 0 {
		return "", nil, &ErrMalformedCall{Reason: "no call payload"}
	}
	v, _, err := value.Decode(args[0])
	if err != nil {
		return "", nil, err
	}
	if v.Tag != value.TagTuple || len(v.Tuple) == 0 {
		return "", nil, &ErrMalformedCall{Reason: "payload is not (method, args...)"}
	}
	if v.Tuple[0].Tag != value.TagString {
		return "", nil, &ErrMalformedCall{Reason: "method name is not a String"}
	}
	return v.Tuple[0].String, v.Tuple[1:], nil
}

// IsSystemContract reports whether addr names one of the two natively
// dispatched contracts, as opposed to a stored WASM module.
func IsSystemContract(addr key.Address) bool {
	return addr == MintAddress || addr == ProofOfStakeAddress
}
