// Package tx defines the deploy wire format (spec.md §5): the unit of
// work the engine executes, carrying a session and a payment
// ExecutableCode plus the header fields the engine's lifecycle reads
// before either ever runs.
package tx

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

// codeBody is a sum type: exactly one of ModuleBytes or StoredTarget is
// set. Mirrors clauseBody's private-struct-plus-accessors shape.
type codeBody struct {
	ModuleBytes  []byte
	StoredTarget *key.Key
	Args         [][]byte
}

// ExecutableCode is either inline WASM bytecode or a reference to an
// already-stored Contract, both reached the same way at dispatch time
// (runtime.Dispatcher.CallContract draws no distinction between a
// freshly-compiled session module and a stored one).
type ExecutableCode struct {
	body codeBody
}

// NewModuleBytes builds an ExecutableCode that carries its own WASM
// bytecode, encoding args the same canonical way get_arg decodes them.
func NewModuleBytes(wasm []byte, args ...value.Value) (ExecutableCode, error) {
	encoded, err := encodeArgs(args)
	if err != nil {
		return ExecutableCode{}, err
	}
	return ExecutableCode{body: codeBody{ModuleBytes: wasm, Args: encoded}}, nil
}

// NewStoredContract builds an ExecutableCode that names an already-
// deployed contract by key rather than shipping bytecode.
func NewStoredContract(target key.Key, args ...value.Value) (ExecutableCode, error) {
	encoded, err := encodeArgs(args)
	if err != nil {
		return ExecutableCode{}, err
	}
	t := target
	return ExecutableCode{body: codeBody{StoredTarget: &t, Args: encoded}}, nil
}

func encodeArgs(args []value.Value) ([][]byte, error) {
	out := make([][]byte, len(args))
	for i, a := range args {
		enc, err := value.Encode(a)
		if err != nil {
			return nil, fmt.Errorf("tx: encoding arg %d: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

// NewModuleBytesRaw builds an ExecutableCode from wasm bytecode and
// already canonically-encoded argument bytes, skipping the
// value.Encode step NewModuleBytes performs — for callers (the RPC
// boundary) that received args already in their wire encoding and
// would otherwise have to decode and re-encode them for no reason.
func NewModuleBytesRaw(wasm []byte, encodedArgs [][]byte) ExecutableCode {
	return ExecutableCode{body: codeBody{ModuleBytes: wasm, Args: encodedArgs}}
}

// NewStoredContractRaw is NewStoredContract's already-encoded-args
// counterpart, for the same reason NewModuleBytesRaw exists.
func NewStoredContractRaw(target key.Key, encodedArgs [][]byte) ExecutableCode {
	t := target
	return ExecutableCode{body: codeBody{StoredTarget: &t, Args: encodedArgs}}
}

// ModuleBytes returns the inline WASM bytecode and whether this code is
// inline (false means it names a stored contract instead).
func (c ExecutableCode) ModuleBytes() ([]byte, bool) {
	if c.body.StoredTarget != nil {
		return nil, false
	}
	return c.body.ModuleBytes, true
}

// StoredTarget returns the referenced contract's key and whether this
// code names a stored contract (false means it carries inline bytecode).
func (c ExecutableCode) StoredTarget() (key.Key, bool) {
	if c.body.StoredTarget == nil {
		return key.Key{}, false
	}
	return *c.body.StoredTarget, true
}

// Args returns the canonically-encoded call arguments, in get_arg order.
func (c ExecutableCode) Args() [][]byte { return c.body.Args }

// Empty reports whether this ExecutableCode carries neither inline
// bytecode nor a stored-contract reference — the zero value, used to
// detect an unset payment or session slot.
func (c ExecutableCode) Empty() bool {
	return c.body.StoredTarget == nil && len(c.body.ModuleBytes) == 0
}
