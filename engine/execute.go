package engine

import (
	"fmt"

	"github.com/casper-ee/execengine/builtin"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/trackingcopy"
	"github.com/casper-ee/execengine/tx"
	"github.com/casper-ee/execengine/tx/receipt"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// ExecuteRequest is spec.md §6's "execute" operation: a batch of deploys
// to run sequentially against one shared prestate.
type ExecuteRequest struct {
	ParentStateHash key.Address
	BlockTime       uint64
	ProtocolVersion protocol.Version
	Deploys         []*tx.Deploy
}

// ExecuteResponse is "execute"'s result: either MissingParent (the
// whole request is rejected, no deploy ran) or one DeployResult per
// deploy, in request order.
type ExecuteResponse struct {
	MissingParent bool
	ParentHash    key.Address
	DeployResults []receipt.DeployResult
}

// Execute runs every deploy in req sequentially against the state
// committed at req.ParentStateHash (spec.md §4.F: "deploys within one
// execute request run against the same shared prestate_root"; their
// effects are returned, not folded into the store — a separate commit
// request does that, per spec.md §4.F step 8 and §6's two-phase
// execute/commit split).
func (s *State) Execute(req ExecuteRequest) (ExecuteResponse, error) {
	if err := s.cfg.Check(req.ProtocolVersion); err != nil {
		observe("execute", "invalid_protocol_version")
		return ExecuteResponse{}, err
	}

	view, ok, err := s.store.Checkout(req.ParentStateHash)
	if err != nil {
		observe("execute", "storage_error")
		return ExecuteResponse{}, wrapStorageErr("execute", err)
	}
	if !ok {
		observe("execute", "missing_parent")
		return ExecuteResponse{MissingParent: true, ParentHash: req.ParentStateHash}, nil
	}

	results := make([]receipt.DeployResult, len(req.Deploys))
	for i, d := range req.Deploys {
		results[i] = s.executeDeploy(view, req.BlockTime, d)
	}
	observe("execute", "success")
	return ExecuteResponse{DeployResults: results}, nil
}

// executeDeploy implements spec.md §4.F's eight-step per-deploy
// lifecycle. Every TrackingCopy this function opens is discarded (never
// folded via Effects) on any outcome but Success or InsufficientPayment
// — the latter still surfaces the nominal handling-fee debit per step
// 5's prose, everything else leaves prestate untouched (spec.md §8
// Invariants 3 and 4).
func (s *State) executeDeploy(view *state.View, blockTime uint64, d *tx.Deploy) receipt.DeployResult {
	// Step 1: parse payment/session. A Deploy that reached this point
	// was already decoded off the wire by the RPC boundary, so the only
	// remaining precondition is the structural one tx.Deploy.Validate
	// checks (session/account/TTL presence); a genuinely absent payment
	// or session clause fails Validate the same way.
	if err := d.Validate(); err != nil {
		observe("execute.deploy", "deploy_error")
		return receipt.NewFailure(receipt.DeployError, 0, err.Error())
	}

	// Step 2: address and authorization_keys are both fixed-width
	// key.Address values by Go's type system; no runtime length check
	// is needed here (spec.md §6's 32-byte requirement is enforced once,
	// at wire decode, by the RPC boundary).
	accountKey := key.Account(d.Account())

	tc := trackingcopy.New(view)
	acctVal, found, err := tc.Read(accountKey)
	if err != nil {
		observe("execute.deploy", "serialization")
		return receipt.NewFailure(receipt.Serialization, 0, err.Error())
	}
	if !found || acctVal.Tag != value.TagAccount || acctVal.Account == nil {
		observe("execute.deploy", "authorization_failed")
		return receipt.NewFailure(receipt.AuthorizationFailed, 0, "no account at deploy's address")
	}
	account := acctVal.Account

	// Step 4: authorize against the deployment threshold. (Step 3, the
	// whole-request checkout, already happened once in Execute.)
	if !account.MeetsThreshold(d.AuthorizationKeys(), account.ActionThresholds.Deployment) {
		observe("execute.deploy", "authorization_failed")
		return receipt.NewFailure(receipt.AuthorizationFailed, 0, "authorization weight below deployment threshold")
	}

	sys := xenv.SystemContext{
		Mint:         builtin.MintKey(),
		ProofOfStake: builtin.ProofOfStakeKey(),
		Caller:       d.Account(),
		Blocktime:    blockTime,
		MainPurse:    account.MainPurse,
	}

	// Read the protocol constants proof-of-stake seeded at genesis
	// through a throwaway, unmetered frame — these reads are the
	// engine's own bookkeeping, not chargeable deploy work.
	bootstrap := s.newFrame(tc, xenv.NewGasMeter(^uint64(0)), d, account, sys, nil)
	paymentLimit, err := builtin.PaymentLimit(bootstrap)
	if err != nil {
		observe("execute.deploy", "serialization")
		return receipt.NewFailure(receipt.Serialization, 0, err.Error())
	}
	convRate, err := builtin.ConvRate(bootstrap)
	if err != nil {
		observe("execute.deploy", "serialization")
		return receipt.NewFailure(receipt.Serialization, 0, err.Error())
	}
	rewardPool, err := builtin.RewardPoolPurse(bootstrap)
	if err != nil {
		observe("execute.deploy", "serialization")
		return receipt.NewFailure(receipt.Serialization, 0, err.Error())
	}

	// Step 5: run payment under the fixed payment-phase gas cap.
	paymentGas := xenv.NewGasMeter(paymentLimit)
	paymentResult, payErr := s.runPhase(d.Payment(), tc, paymentGas, d, account, sys)
	paymentGasUsed := paymentLimit - paymentGas.Remaining()
	if payErr != nil {
		observe("execute.deploy", "insufficient_payment")
		return s.failPayment(view, account, convRate, paymentGasUsed, payErr)
	}
	if paymentResult.Tag != value.TagKey {
		observe("execute.deploy", "insufficient_payment")
		return s.failPayment(view, account, convRate, paymentGasUsed,
			fmt.Errorf("payment phase must return a purse URef, got tag(%d)", paymentResult.Tag))
	}
	paymentPurse := paymentResult.Key

	purseBalance, err := builtin.Balance(bootstrap, paymentPurse)
	if err != nil {
		observe("execute.deploy", "insufficient_payment")
		return s.failPayment(view, account, convRate, paymentGasUsed, err)
	}
	if convRate == 0 {
		observe("execute.deploy", "insufficient_payment")
		return s.failPayment(view, account, convRate, paymentGasUsed, fmt.Errorf("protocol conv_rate is zero"))
	}

	// Step 6: run session with gas limit = payment_purse motes / conv_rate.
	sessionGasLimit := purseBalance / convRate
	sessionGas := xenv.NewGasMeter(sessionGasLimit)
	_, sessErr := s.runPhase(d.Session(), tc, sessionGas, d, account, sys)
	sessionGasUsed := sessionGasLimit - sessionGas.Remaining()
	totalGasUsed := paymentGasUsed + sessionGasUsed

	if sessErr != nil {
		observe("execute.deploy", string(classify(sessErr)))
		return receipt.NewFailure(classify(sessErr), totalGasUsed, sessErr.Error())
	}

	// Step 7: finalize payment — refund unused gas, forward the reward.
	finalizeEnv := s.newFrame(tc, xenv.NewGasMeter(^uint64(0)), d, account, sys, nil)
	if err := builtin.FinalizePayment(finalizeEnv, paymentPurse, account.MainPurse, rewardPool, sessionGasUsed, sessionGasLimit, convRate); err != nil {
		observe("execute.deploy", string(classify(err)))
		return receipt.NewFailure(classify(err), totalGasUsed, err.Error())
	}

	// Step 8: emit the result. Effects are folded only now, on the one
	// path that actually commits anything.
	effects, err := tc.Effects()
	if err != nil {
		observe("execute.deploy", "type_mismatch")
		return receipt.NewFailure(receipt.TypeMismatch, totalGasUsed, err.Error())
	}
	observe("execute.deploy", "success")
	return receipt.NewSuccess(totalGasUsed, effects)
}

// failPayment handles step 5's InsufficientPayment path: the polluted
// TrackingCopy payment ran against is discarded outright, and a fresh
// one opened over the same prestate view debits the nominal handling
// fee from the payer's main purse if it can afford it (spec.md §4.F:
// "prestate unchanged [except that] a nominal handling fee is still
// debited if possible").
func (s *State) failPayment(view *state.View, account *value.Account, convRate, gasUsed uint64, cause error) receipt.DeployResult {
	feeMotes := handlingFeeUnits * convRate
	feeCopy := trackingcopy.New(view)

	balVal, found, err := feeCopy.Read(account.MainPurse)
	if err == nil && found && balVal.Tag == value.TagUInt64 && balVal.UInt64 >= feeMotes {
		feeCopy.Write(account.MainPurse, value.UInt64(balVal.UInt64-feeMotes))
		if folded, ferr := feeCopy.Effects(); ferr == nil {
			return receipt.DeployResult{
				Discriminant: receipt.InsufficientPayment,
				GasUsed:      gasUsed,
				Effects:      folded,
				Message:      cause.Error(),
			}
		}
	}
	return receipt.NewFailure(receipt.InsufficientPayment, gasUsed, cause.Error())
}

// newFrame opens the outermost Environment for one phase of a deploy,
// scoped to the deploying account's own named keys and holding full
// rights over every URef it names plus its main purse (spec.md §4.D:
// the account's named keys are frame 0's addressable context).
func (s *State) newFrame(tc *trackingcopy.TrackingCopy, gas *xenv.GasMeter, d *tx.Deploy, account *value.Account, sys xenv.SystemContext, args [][]byte) *xenv.Environment {
	heldRights := map[key.Key]key.Rights{}
	for _, k := range account.NamedKeys {
		if k.IsURef() {
			heldRights[k.Normalized()] = k.Rights
		}
	}
	if account.MainPurse.IsURef() {
		heldRights[account.MainPurse.Normalized()] = key.ReadAddWrite
	}
	namedKeys := make(map[string]key.Key, len(account.NamedKeys))
	for name, k := range account.NamedKeys {
		namedKeys[name] = k
	}
	hash := d.Hash()
	return xenv.New(tc, gas, s.cfg.GasCosts.AsXenv(), hash.Bytes(), args, namedKeys, heldRights, s.dispatcher, s.cfg.MaxCallDepth, sys)
}

// runPhase executes one ExecutableCode — inline WASM runs directly
// through the Executor scoped to the account's own frame; a reference to
// an already-stored contract runs the same way a nested call_contract
// would, reusing the Dispatcher so payment/session show no special
// casing versus any other call (spec.md §4.F notes the two phases are
// "both ExecutableCode, dispatched identically").
func (s *State) runPhase(code tx.ExecutableCode, tc *trackingcopy.TrackingCopy, gas *xenv.GasMeter, d *tx.Deploy, account *value.Account, sys xenv.SystemContext) (value.Value, error) {
	env := s.newFrame(tc, gas, d, account, sys, code.Args())
	if wasm, ok := code.ModuleBytes(); ok {
		return s.executor.Run(wasm, env, key.Key{})
	}
	target, _ := code.StoredTarget()
	return s.dispatcher.CallContract(env, target, code.Args(), nil)
}
