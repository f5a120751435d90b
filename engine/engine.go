// Package engine implements the engine state (spec.md §4.F/§4.G): the
// orchestration layer that ties the trie-backed Store, the per-deploy
// TrackingCopy, the metered runtime.Executor, and the two system
// contracts together into the six request/response operations spec.md
// §6 exposes at the process boundary.
package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/runtime"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/tx/receipt"
	"github.com/casper-ee/execengine/xenv"
)

// handlingFeeUnits is the small fixed gas-unit fee debited from a
// deploy's payer when the payment phase itself fails to produce a
// spendable purse (spec.md §4.F step 5: "insufficient payment ⇒ deploy
// fails, prestate unchanged, nominal handling fee still debited if
// possible"). It is denominated in gas units, converted to motes by the
// protocol's conv_rate the same way session gas is.
const handlingFeeUnits = 100

// requestsTotal counts every engine operation the process boundary
// dispatches, labeled by operation name and outcome — the same
// per-RPC-method counter shape the teacher's API layer registers for
// its own endpoints.
var requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "execengine",
	Subsystem: "engine",
	Name:      "requests_total",
	Help:      "Count of engine operations by name and outcome.",
}, []string{"operation", "outcome"})

func init() {
	prometheus.MustRegister(requestsTotal)
}

// State is the engine's orchestration layer: one Store, one protocol
// Config, and the executor/dispatcher pair every deploy's payment and
// session phases run through.
type State struct {
	store      *state.Store
	cfg        protocol.Config
	executor   *runtime.Executor
	dispatcher *runtime.Dispatcher
	log        log.Logger
}

// NewState wires a fresh Executor and Dispatcher atop store, bounded by
// cfg's sandbox caps.
func NewState(store *state.Store, cfg protocol.Config) *State {
	executor := runtime.NewExecutor(cfg.MaxMemoryPages, cfg.MaxCallDepth)
	return &State{
		store:      store,
		cfg:        cfg,
		executor:   executor,
		dispatcher: runtime.NewDispatcher(executor),
		log:        log.New("pkg", "engine"),
	}
}

// Store returns the underlying trie-backed store, for callers (the RPC
// boundary, the CLI harness) that need Checkout directly for reads
// outside a deploy's lifecycle.
func (s *State) Store() *state.Store { return s.store }

// Config returns the protocol.Config this State enforces, for callers
// (the RPC boundary's run_genesis/upgrade handlers) that need to build
// a genesis.Genesis bound to the same gas table and caps every deploy
// already runs under.
func (s *State) Config() protocol.Config { return s.cfg }

// classify maps a phase's terminal error onto spec.md §7's execution
// discriminants. Anything this engine's own host interface or executor
// didn't specifically type is treated as a protocol-level Serialization
// failure rather than risk silently mislabeling it OutOfGas or Trap.
func classify(err error) receipt.Discriminant {
	if xenv.IsReverted(err) {
		return receipt.Revert
	}
	switch err.(type) {
	case *xenv.ErrOutOfGas:
		return receipt.OutOfGas
	case *runtime.ErrTrap:
		return receipt.Trap
	case *runtime.ErrMemoryCapExceeded:
		return receipt.Trap
	case *xenv.ErrForbidden:
		return receipt.Forbidden
	case *xenv.ErrTypeMismatch:
		return receipt.TypeMismatch
	case *xenv.ErrContractNotFound:
		return receipt.StoredContractNotFound
	case *xenv.ErrMissingArgument:
		return receipt.MissingArgument
	case *xenv.ErrInvalidArgument:
		return receipt.InvalidArgument
	default:
		return receipt.Serialization
	}
}

func observe(operation string, outcome string) {
	requestsTotal.WithLabelValues(operation, outcome).Inc()
}

func wrapStorageErr(op string, err error) error {
	return fmt.Errorf("engine: %s: storage error: %w", op, err)
}
