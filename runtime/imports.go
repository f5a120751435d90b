package runtime

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// hostCtx is the shared state every bound wasm import closes over: the
// Environment exposing the fixed host-call surface, the frame counter
// enforcing the stack-height cap, the module's linear memory (filled in
// once the instance is created), the last error to unwind the frame with
// (if any), and the value the module ultimately returns via
// host_return.
type hostCtx struct {
	env     *xenv.Environment
	frames  *frameCounter
	mem     *wasmer.Memory
	hostErr error
	result  *value.Value
}

func (h *hostCtx) read(ptr, ln int32) []byte {
	data := h.mem.Data()
	out := make([]byte, ln)
	copy(out, data[ptr:ptr+ln])
	return out
}

func (h *hostCtx) write(ptr int32, data []byte) {
	copy(h.mem.Data()[ptr:], data)
}

func i32Type(nParams, nResults int) *wasmer.FunctionType {
	params := make([]wasmer.ValueKind, nParams)
	for i := range params {
		params[i] = wasmer.ValueKind(wasmer.I32)
	}
	results := make([]wasmer.ValueKind, nResults)
	for i := range results {
		results[i] = wasmer.ValueKind(wasmer.I32)
	}
	return wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(results...))
}

// fail records err as the unwinding cause and returns the sentinel -1
// result wasm bytecode checks to detect a failed host call.
func (h *hostCtx) fail(err error) []wasmer.Value {
	h.hostErr = err
	return []wasmer.Value{wasmer.NewI32(-1)}
}

// bindHostImports wires every spec.md §4.D host call (plus the three
// supplemented account-management calls) as a wasm import under the
// "env" namespace, following the teacher pack's
// ptr/len-pair-plus-destination-pointer calling convention for passing
// variable-length bytes across the wasm/host boundary.
func bindHostImports(store *wasmer.Store, h *hostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	getArg := wasmer.NewFunction(store, i32Type(2, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		idx, dstPtr := args[0].I32(), args[1].I32()
		b, err := h.env.GetArg(int(idx))
		if err != nil {
			return h.fail(err), nil
		}
		h.write(dstPtr, b)
		return []wasmer.Value{wasmer.NewI32(int32(len(b)))}, nil
	})

	getKey := wasmer.NewFunction(store, i32Type(3, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		nPtr, nLen, dstPtr := args[0].I32(), args[1].I32(), args[2].I32()
		name := string(h.read(nPtr, nLen))
		k, ok, err := h.env.GetKey(name)
		if err != nil {
			return h.fail(err), nil
		}
		if !ok {
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		}
		enc := k.Bytes()
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	putKey := wasmer.NewFunction(store, i32Type(4, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		nPtr, nLen, kPtr, kLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		name := string(h.read(nPtr, nLen))
		k, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		if err := h.env.PutKey(name, k); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	hostRead := wasmer.NewFunction(store, i32Type(3, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kPtr, kLen, dstPtr := args[0].I32(), args[1].I32(), args[2].I32()
		k, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		v, found, err := h.env.Read(k)
		if err != nil {
			return h.fail(err), nil
		}
		if !found {
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		}
		enc, err := value.Encode(*v)
		if err != nil {
			return h.fail(err), nil
		}
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	hostWrite := wasmer.NewFunction(store, i32Type(4, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kPtr, kLen, vPtr, vLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		k, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		v, _, err := value.Decode(h.read(vPtr, vLen))
		if err != nil {
			return h.fail(err), nil
		}
		if err := h.env.Write(k, v); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	hostAdd := wasmer.NewFunction(store, i32Type(3, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kPtr, kLen, delta := args[0].I32(), args[1].I32(), args[2].I32()
		k, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		if err := h.env.Add(k, int64(delta)); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	newURef := wasmer.NewFunction(store, i32Type(3, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		vPtr, vLen, dstPtr := args[0].I32(), args[1].I32(), args[2].I32()
		v, _, err := value.Decode(h.read(vPtr, vLen))
		if err != nil {
			return h.fail(err), nil
		}
		uref, err := h.env.NewURef(v)
		if err != nil {
			return h.fail(err), nil
		}
		enc := uref.Bytes()
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	revert := wasmer.NewFunction(store, i32Type(1, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		code := args[0].I32()
		err := h.env.Revert(uint32(code))
		return h.fail(err), nil
	})

	hostReturn := wasmer.NewFunction(store, i32Type(2, 0), func(args []wasmer.Value) ([]wasmer.Value, error) {
		ptr, ln := args[0].I32(), args[1].I32()
		v, _, err := value.Decode(h.read(ptr, ln))
		if err != nil {
			return nil, err
		}
		h.result = &v
		return []wasmer.Value{}, nil
	})

	callContract := wasmer.NewFunction(store, i32Type(5, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		tPtr, tLen, aPtr, aLen, dstPtr := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32(), args[4].I32()
		target, err := key.Decode(h.read(tPtr, tLen))
		if err != nil {
			return h.fail(err), nil
		}
		argBytes := h.read(aPtr, aLen)
		if err := h.frames.enter(); err != nil {
			return h.fail(err), nil
		}
		defer h.frames.leave()
		result, err := h.env.CallContract(target, [][]byte{argBytes}, nil)
		if err != nil {
			return h.fail(err), nil
		}
		enc, err := value.Encode(result)
		if err != nil {
			return h.fail(err), nil
		}
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	getMint := wasmer.NewFunction(store, i32Type(1, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		dstPtr := args[0].I32()
		enc := h.env.GetMint().Bytes()
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	getProofOfStake := wasmer.NewFunction(store, i32Type(1, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		dstPtr := args[0].I32()
		enc := h.env.GetProofOfStake().Bytes()
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	getMainPurse := wasmer.NewFunction(store, i32Type(1, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		dstPtr := args[0].I32()
		enc := h.env.GetMainPurse().Bytes()
		h.write(dstPtr, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	getCaller := wasmer.NewFunction(store, i32Type(1, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		dstPtr := args[0].I32()
		addr := h.env.GetCaller()
		h.write(dstPtr, addr[:])
		return []wasmer.Value{wasmer.NewI32(int32(len(addr)))}, nil
	})

	getBlocktime := wasmer.NewFunction(store, i32Type(0, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		bt := h.env.GetBlocktime()
		if bt > 1<<31 {
			bt = 1 << 31
		}
		return []wasmer.Value{wasmer.NewI32(int32(bt))}, nil
	})

	transferToAccount := wasmer.NewFunction(store, i32Type(3, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		pkPtr, pkLen, amount := args[0].I32(), args[1].I32(), args[2].I32()
		pkBytes := h.read(pkPtr, pkLen)
		if len(pkBytes) != key.Length {
			return h.fail(fmt.Errorf("runtime: transfer_to_account wants a %d-byte public key", key.Length)), nil
		}
		var pk key.Address
		copy(pk[:], pkBytes)
		if err := h.env.TransferToAccount(pk, uint64(amount)); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	addAssociatedKey := wasmer.NewFunction(store, i32Type(4, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kPtr, kLen, pkPtr, weight := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		accountKey, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		pkBytes := h.read(pkPtr, key.Length)
		var pk key.Address
		copy(pk[:], pkBytes)
		if err := h.env.AddAssociatedKey(accountKey, []key.Address{h.env.GetCaller()}, pk, value.Weight(weight)); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	removeAssociatedKey := wasmer.NewFunction(store, i32Type(3, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kPtr, kLen, pkPtr := args[0].I32(), args[1].I32(), args[2].I32()
		accountKey, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		pkBytes := h.read(pkPtr, key.Length)
		var pk key.Address
		copy(pk[:], pkBytes)
		if err := h.env.RemoveAssociatedKey(accountKey, []key.Address{h.env.GetCaller()}, pk); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	setActionThreshold := wasmer.NewFunction(store, i32Type(4, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		kPtr, kLen, kind, weight := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		accountKey, err := key.Decode(h.read(kPtr, kLen))
		if err != nil {
			return h.fail(err), nil
		}
		if err := h.env.SetActionThreshold(accountKey, []key.Address{h.env.GetCaller()}, xenv.ThresholdKind(kind), value.Weight(weight)); err != nil {
			return h.fail(err), nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"get_arg":                getArg,
		"get_key":                getKey,
		"put_key":                putKey,
		"read":                   hostRead,
		"write":                  hostWrite,
		"add":                    hostAdd,
		"new_uref":               newURef,
		"revert":                 revert,
		"host_return":            hostReturn,
		"call_contract":          callContract,
		"get_mint":               getMint,
		"get_proof_of_stake":     getProofOfStake,
		"get_main_purse":         getMainPurse,
		"get_caller":             getCaller,
		"get_blocktime":          getBlocktime,
		"transfer_to_account":    transferToAccount,
		"add_associated_key":     addAssociatedKey,
		"remove_associated_key":  removeAssociatedKey,
		"set_action_threshold":   setActionThreshold,
	})

	return imports
}
