package runtime

import (
	"github.com/casper-ee/execengine/builtin"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// Dispatcher implements xenv.Dispatcher: it resolves a call_contract
// target's stored Contract value and either invokes one of the two
// native system contracts directly, or compiles and runs the stored
// WASM body through its Executor — the same "native address short-
// circuits the VM" pattern the teacher's HandleNativeCall applies
// before falling through to the EVM interpreter.
type Dispatcher struct {
	executor *Executor
}

// NewDispatcher returns a Dispatcher that runs non-native contracts
// through executor.
func NewDispatcher(executor *Executor) *Dispatcher {
	return &Dispatcher{executor: executor}
}

var _ xenv.Dispatcher = (*Dispatcher)(nil)

// CallContract resolves target and dispatches to it. Native system
// contracts run in the caller's own frame (they have no separate named
// keys or bytecode to sandbox); stored WASM contracts get a fresh
// nested frame scoped to their own named keys and the rights extraURefs
// grants them.
func (d *Dispatcher) CallContract(env *xenv.Environment, target key.Key, args [][]byte, extraURefs []key.Key) (value.Value, error) {
	if target.Tag == key.TagHash && builtin.IsSystemContract(target.Address) {
		switch target.Address {
		case builtin.MintAddress:
			return builtin.CallMint(env, args)
		case builtin.ProofOfStakeAddress:
			return builtin.CallProofOfStake(env, args)
		}
	}

	v, found, err := env.TrackingCopy().Read(target)
	if err != nil {
		return value.Value{}, err
	}
	if !found || v.Tag != value.TagContract {
		return value.Value{}, &xenv.ErrContractNotFound{Key: target}
	}

	sub := env.Sub(cloneNamedKeys(v.Contract.NamedKeys), rightsFromExtraURefs(extraURefs), args)
	return d.executor.Run(v.Contract.Body, sub, target)
}

func cloneNamedKeys(m map[string]key.Key) map[string]key.Key {
	out := make(map[string]key.Key, len(m))
	for name, k := range m {
		out[name] = k
	}
	return out
}

// rightsFromExtraURefs builds the callee's held-rights table from the
// caller's capability whitelist; CallContract's caller already enforced
// each URef's rights are a subset of what it itself held before this
// ever runs (xenv/environment.go's CallContract).
func rightsFromExtraURefs(extraURefs []key.Key) map[key.Key]key.Rights {
	out := make(map[key.Key]key.Rights, len(extraURefs))
	for _, u := range extraURefs {
		if u.IsURef() {
			out[u.Normalized()] = u.Rights
		}
	}
	return out
}
