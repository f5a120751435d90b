// Package xenv implements the host interface (spec.md §4.D): the fixed
// surface presented to running WASM bytecode, backed by a per-deploy
// TrackingCopy and a shared GasMeter.
package xenv

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/trackingcopy"
	"github.com/casper-ee/execengine/value"
)

// Dispatcher resolves a nested call_contract invocation by locating and
// executing the callee's bytecode. It is implemented by the runtime
// package; xenv depends only on this narrow interface to avoid an
// import cycle between the host surface and the executor that drives it.
type Dispatcher interface {
	CallContract(env *Environment, target key.Key, args [][]byte, extraURefs []key.Key) (value.Value, error)
}

// ErrMissingArgument / ErrInvalidArgument are get_arg failures.
type ErrMissingArgument struct{ Index int }

func (e *ErrMissingArgument) Error() string { return fmt.Sprintf("xenv: missing argument %d", e.Index) }

type ErrInvalidArgument struct{ Index int }

func (e *ErrInvalidArgument) Error() string { return fmt.Sprintf("xenv: invalid argument %d", e.Index) }

// ErrForbidden is returned when the caller's held rights for a key don't
// cover the requested access (spec.md §4.D: read needs READ, write needs
// WRITE, add needs ADD).
type ErrForbidden struct {
	Key     key.Key
	Missing key.Rights
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("xenv: forbidden: key %s missing right %s", e.Key, e.Missing)
}

// ErrContractNotFound is call_contract's failure when target resolves to
// no stored Contract value.
type ErrContractNotFound struct{ Key key.Key }

func (e *ErrContractNotFound) Error() string {
	return fmt.Sprintf("xenv: contract not found at %s", e.Key)
}

// ErrTypeMismatch is read's failure when the stored Value's tag does not
// match what the caller expects (surfaced as-is to the executor; the
// executor maps it onto the deploy's ultimate TypeMismatch outcome).
type ErrTypeMismatch struct {
	Expected, Actual string
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("xenv: type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Frame is one call_contract activation's addressable context: its
// arguments, its named keys (Account's on the outermost frame, the
// invoked Contract's thereafter), and the capability each held key
// carries in this frame.
type Frame struct {
	Args       [][]byte
	NamedKeys  map[string]key.Key
	HeldRights map[key.Key]key.Rights
	Depth      int
}

// Environment is the host interface instance threaded through one
// deploy's execution: one per frame is logically active, but the
// TrackingCopy, GasMeter, and PRNG are shared across the whole deploy
// (spec.md §4.E/§4.F).
type Environment struct {
	tc         *trackingcopy.TrackingCopy
	gas        *GasMeter
	costs      GasCosts
	frame      Frame
	prng       *prng
	dispatcher Dispatcher
	maxDepth   int

	// System accessors (spec.md §4.D): fixed for the whole deploy,
	// threaded unchanged through every nested frame by Sub.
	mint       key.Key
	pos        key.Key
	caller     key.Address
	blocktime  uint64
	mainPurse  key.Key
}

// SystemContext carries the per-deploy constants every frame's system
// accessors (get_mint, get_proof_of_stake, get_caller, get_blocktime,
// get_main_purse) return regardless of call depth.
type SystemContext struct {
	Mint      key.Key
	ProofOfStake key.Key
	Caller    key.Address
	Blocktime uint64
	MainPurse key.Key
}

// New opens an Environment for the outermost frame of a deploy.
func New(tc *trackingcopy.TrackingCopy, gas *GasMeter, costs GasCosts, deployHash []byte, args [][]byte, namedKeys map[string]key.Key, heldRights map[key.Key]key.Rights, dispatcher Dispatcher, maxDepth int, sys SystemContext) *Environment {
	return &Environment{
		tc:         tc,
		gas:        gas,
		costs:      costs,
		frame:      Frame{Args: args, NamedKeys: namedKeys, HeldRights: heldRights, Depth: 0},
		prng:       newPRNG(deployHash),
		dispatcher: dispatcher,
		maxDepth:   maxDepth,
		mint:       sys.Mint,
		pos:        sys.ProofOfStake,
		caller:     sys.Caller,
		blocktime:  sys.Blocktime,
		mainPurse:  sys.MainPurse,
	}
}

// GetMint returns the fixed key the mint system contract is stored at.
func (e *Environment) GetMint() key.Key { return e.mint }

// GetProofOfStake returns the fixed key the proof-of-stake system
// contract is stored at.
func (e *Environment) GetProofOfStake() key.Key { return e.pos }

// GetCaller returns the public key of the account that originated this
// deploy, unchanged across nested call_contract frames.
func (e *Environment) GetCaller() key.Address { return e.caller }

// GetBlocktime returns the deterministic per-block timestamp the
// engine was invoked with (spec.md §4.F: request carries block_time).
func (e *Environment) GetBlocktime() uint64 { return e.blocktime }

// GetMainPurse returns the deploying account's main purse URef.
func (e *Environment) GetMainPurse() key.Key { return e.mainPurse }

// GetArg returns the i-th deploy argument.
func (e *Environment) GetArg(i int) ([]byte, error) {
	if err := e.gas.Charge("get_arg", e.costs.GetArg); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(e.frame.Args) {
		return nil, &ErrMissingArgument{Index: i}
	}
	return e.frame.Args[i], nil
}

// GetKey looks up name in the current frame's named keys.
func (e *Environment) GetKey(name string) (key.Key, bool, error) {
	if err := e.gas.Charge("get_key", e.costs.GetKey); err != nil {
		return key.Key{}, false, err
	}
	k, ok := e.frame.NamedKeys[name]
	return k, ok, nil
}

// PutKey inserts or replaces name in the current frame's named keys.
func (e *Environment) PutKey(name string, k key.Key) error {
	if err := e.gas.Charge("put_key", e.costs.PutKey); err != nil {
		return err
	}
	e.frame.NamedKeys[name] = k
	return nil
}

// requireRight enforces that the frame's held rights for k are a
// superset of required, per spec.md §4.D's Forbidden failure.
func (e *Environment) requireRight(k key.Key, required key.Rights) error {
	held := e.frame.HeldRights[k.Normalized()]
	if !required.IsSubsetOf(held) {
		return &ErrForbidden{Key: k, Missing: required &^ held}
	}
	return nil
}

// Read loads the value at key, requiring READ.
func (e *Environment) Read(k key.Key) (*value.Value, bool, error) {
	if err := e.gas.Charge("read", e.costs.Read); err != nil {
		return nil, false, err
	}
	if err := e.requireRight(k, key.Read); err != nil {
		return nil, false, err
	}
	return e.tc.Read(k)
}

// Write stages a write at key, requiring WRITE.
func (e *Environment) Write(k key.Key, v value.Value) error {
	if err := e.gas.Charge("write", e.costs.Write); err != nil {
		return err
	}
	if err := e.requireRight(k, key.Write); err != nil {
		return err
	}
	e.tc.Write(k, v)
	return nil
}

// Add stages an AddInt at key, requiring ADD.
func (e *Environment) Add(k key.Key, delta int64) error {
	if err := e.gas.Charge("add", e.costs.Add); err != nil {
		return err
	}
	if err := e.requireRight(k, key.Add); err != nil {
		return err
	}
	e.tc.Add(k, delta)
	return nil
}

// NewURef allocates a fresh URef with full rights, seeded by the
// deploy's deterministic per-execution PRNG (spec.md §3's lifecycle
// note: "fresh URefs use a deterministic per-execution PRNG seeded by
// deploy hash + counter to preserve replay"), and stages the initial
// Write.
func (e *Environment) NewURef(v value.Value) (key.Key, error) {
	if err := e.gas.Charge("new_uref", e.costs.NewURef); err != nil {
		return key.Key{}, err
	}
	addr := e.prng.next()
	uref := key.NewURef(addr, key.ReadAddWrite)
	e.tc.Write(uref, v)
	if e.frame.HeldRights == nil {
		e.frame.HeldRights = make(map[key.Key]key.Rights)
	}
	e.frame.HeldRights[uref.Normalized()] = key.ReadAddWrite
	return uref, nil
}

// Revert unwinds the current frame with a User(code) failure.
func (e *Environment) Revert(code uint32) error {
	_ = e.gas.Charge("revert", e.costs.Revert)
	return &errReverted{message: fmt.Sprintf("user code %d", code)}
}

// CallContract invokes a nested frame at target, enforcing the
// protocol-configured stack-height cap (the Open Question resolved in
// DESIGN.md) and demoting extraURefs' rights to a subset of what the
// caller itself holds before the callee ever sees them (SPEC_FULL.md's
// supplemented enforcement timing: at call_contract, not merely at use).
func (e *Environment) CallContract(target key.Key, args [][]byte, extraURefs []key.Key) (value.Value, error) {
	if err := e.gas.Charge("call_contract", e.costs.CallContract); err != nil {
		return value.Value{}, err
	}
	if e.frame.Depth+1 > e.maxDepth {
		return value.Value{}, fmt.Errorf("xenv: stack height exceeded (max %d)", e.maxDepth)
	}
	for _, u := range extraURefs {
		if !u.IsURef() {
			continue
		}
		held := e.frame.HeldRights[u.Normalized()]
		if !u.Rights.IsSubsetOf(held) {
			return value.Value{}, &ErrForbidden{Key: u, Missing: u.Rights &^ held}
		}
	}
	if e.dispatcher == nil {
		return value.Value{}, &ErrContractNotFound{Key: target}
	}
	return e.dispatcher.CallContract(e, target, args, extraURefs)
}

// Sub returns a new Environment for a nested call_contract frame,
// sharing the TrackingCopy, GasMeter, and PRNG, but scoped to the
// callee's own named keys and a depth-incremented frame.
func (e *Environment) Sub(namedKeys map[string]key.Key, heldRights map[key.Key]key.Rights, args [][]byte) *Environment {
	return &Environment{
		tc:         e.tc,
		gas:        e.gas,
		costs:      e.costs,
		frame:      Frame{Args: args, NamedKeys: namedKeys, HeldRights: heldRights, Depth: e.frame.Depth + 1},
		prng:       e.prng,
		dispatcher: e.dispatcher,
		maxDepth:   e.maxDepth,
		mint:       e.mint,
		pos:        e.pos,
		caller:     e.caller,
		blocktime:  e.blocktime,
		mainPurse:  e.mainPurse,
	}
}

// ErrInsufficientFunds is transfer_to_account's failure when the
// deploying account's main purse cannot cover amount (spec.md §4.D).
type ErrInsufficientFunds struct{ Purse key.Key }

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("xenv: insufficient funds in purse %s", e.Purse)
}

// purseBalance reads a purse's UInt64 motes balance, treating an
// unwritten purse as zero.
func (e *Environment) purseBalance(purse key.Key) (uint64, error) {
	v, found, err := e.tc.Read(purse)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if v.Tag != value.TagUInt64 {
		return 0, &ErrTypeMismatch{Expected: "UInt64", Actual: fmt.Sprintf("tag(%d)", v.Tag)}
	}
	return v.UInt64, nil
}

// TransferToAccount moves amount motes from the deploying account's main
// purse to target's main purse, vivifying target with a fresh zero-
// balance purse if it has no account yet (spec.md §4.D, scenario S2).
// This is a direct host call distinct from call_contract-ing the mint or
// proof-of-stake system contracts, whose own "transfer"/
// "transfer_to_account" native methods go through builtin.Transfer
// instead.
func (e *Environment) TransferToAccount(target key.Address, amount uint64) error {
	if err := e.gas.Charge("transfer_to_account", e.costs.TransferToAccount); err != nil {
		return err
	}
	srcBal, err := e.purseBalance(e.mainPurse)
	if err != nil {
		return err
	}
	if srcBal < amount {
		return &ErrInsufficientFunds{Purse: e.mainPurse}
	}

	targetAccountKey := key.Account(target)
	acctVal, found, err := e.tc.Read(targetAccountKey)
	if err != nil {
		return err
	}
	var targetPurse key.Key
	if !found {
		purse, err := e.NewURef(value.UInt64(0))
		if err != nil {
			return err
		}
		targetPurse = purse
		e.tc.Write(targetAccountKey, value.FromAccount(&value.Account{
			PubKey:         target,
			MainPurse:      purse,
			NamedKeys:      map[string]key.Key{"main_purse": purse},
			AssociatedKeys: map[key.Address]value.Weight{target: 1},
			ActionThresholds: value.ActionThresholds{
				Deployment:    1,
				KeyManagement: 1,
			},
		}))
	} else {
		if acctVal.Tag != value.TagAccount || acctVal.Account == nil {
			return &ErrTypeMismatch{Expected: "Account", Actual: fmt.Sprintf("tag(%d)", acctVal.Tag)}
		}
		targetPurse = acctVal.Account.MainPurse
	}

	dstBal, err := e.purseBalance(targetPurse)
	if err != nil {
		return err
	}
	e.tc.Write(e.mainPurse, value.UInt64(srcBal-amount))
	e.tc.Write(targetPurse, value.UInt64(dstBal+amount))
	return nil
}

// Depth returns the current frame's call depth (0 for the outermost).
func (e *Environment) Depth() int { return e.frame.Depth }

// TrackingCopy exposes the shared staging layer, used by the engine to
// extract Effects() once a deploy's session/payment execution completes.
func (e *Environment) TrackingCopy() *trackingcopy.TrackingCopy { return e.tc }

// GasMeter exposes the shared meter, read by the engine to compute the
// deploy's final gas cost.
func (e *Environment) GasMeter() *GasMeter { return e.gas }
