// Package runtime implements the metered executor (spec.md §4.E):
// sandboxed WASM execution via wasmer-go, with gas metering delegated to
// xenv's GasMeter, an explicit stack-height cap, and a linear-memory cap
// enforced at module-instantiation time.
package runtime

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// MaxLinearMemoryPages caps a module's requested linear memory, in
// 64KiB wasm pages (spec.md §4.E's memory cap; SPEC_FULL.md's CFG
// protocol configuration supplies the production value via
// protocol.Config.MaxMemoryPages — this is only the executor's default).
const MaxLinearMemoryPages = 64 // 4 MiB

// ErrMemoryCapExceeded is returned when a module's memory export
// requests more pages than MaxLinearMemoryPages allows.
type ErrMemoryCapExceeded struct {
	Requested, Max uint32
}

func (e *ErrMemoryCapExceeded) Error() string {
	return fmt.Sprintf("runtime: module requests %d memory pages, cap is %d", e.Requested, e.Max)
}

// ErrTrap wraps a wasmer execution trap in the engine's own error type,
// so callers never need to import wasmer directly to inspect it.
// frame.go's depth counter reports overflow as ErrStackOverflow instead.
type ErrTrap struct {
	Message string
}

func (e *ErrTrap) Error() string { return "runtime: trap: " + e.Message }

// Executor runs a module's entrypoint against an Environment. One
// Executor, holding its own wasmer Engine, is shared by every deploy of
// an engine.State; each Run creates a fresh wasmer Store.
type Executor struct {
	engine       *wasmer.Engine
	maxMemPages  uint32
	maxCallDepth int
	log          log.Logger
}

// NewExecutor returns an Executor bounding modules to maxMemPages linear
// memory pages and maxCallDepth nested call_contract frames.
func NewExecutor(maxMemPages uint32, maxCallDepth int) *Executor {
	if maxMemPages == 0 {
		maxMemPages = MaxLinearMemoryPages
	}
	return &Executor{
		engine:       wasmer.NewEngine(),
		maxMemPages:  maxMemPages,
		maxCallDepth: maxCallDepth,
		log:          log.New("pkg", "runtime"),
	}
}

// Run instantiates code, binds the host import table from env, checks
// the memory cap, and invokes the exported entrypoint (named "call" per
// this engine's WASM ABI — every session/payment module exports exactly
// one callable entrypoint, unlike general-purpose WASI modules).
func (x *Executor) Run(code []byte, env *xenv.Environment, target key.Key) (value.Value, error) {
	store := wasmer.NewStore(x.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return value.Value{}, fmt.Errorf("runtime: module compile: %w", err)
	}

	frames := newFrameCounter(x.maxCallDepth)
	hctx := &hostCtx{env: env, frames: frames, result: nil}
	imports := bindHostImports(store, hctx)

	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return value.Value{}, fmt.Errorf("runtime: instantiate: %w", err)
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return value.Value{}, errors.New("runtime: wasm memory export missing")
	}
	if uint32(mem.DataSize()/wasmPageSize) > x.maxMemPages {
		return value.Value{}, &ErrMemoryCapExceeded{
			Requested: uint32(mem.DataSize() / wasmPageSize),
			Max:       x.maxMemPages,
		}
	}
	hctx.mem = mem

	call, err := instance.Exports.GetFunction("call")
	if err != nil {
		return value.Value{}, errors.New("runtime: \"call\" entrypoint missing")
	}

	if _, err := call(); err != nil {
		// hctx.hostErr carries the original, typed error from whichever
		// host call unwound the frame (OutOfGas, Forbidden, User revert,
		// …); wasmer only preserves its message across the trap
		// boundary, so the typed error is surfaced instead when present.
		if hctx.hostErr != nil {
			return value.Value{}, hctx.hostErr
		}
		return value.Value{}, &ErrTrap{Message: err.Error()}
	}

	if hctx.result == nil {
		return value.Unit(), nil
	}
	return *hctx.result, nil
}

const wasmPageSize = 65536

// Validate compiles code without instantiating or running it — the same
// compile step Run performs before ever calling into the module,
// exposed standalone for spec.md §6's "validate" operation. It also
// confirms the module declares a "call" export, the one entrypoint this
// engine's WASM ABI invokes; the memory cap itself can only be checked
// once the module is instantiated (Run enforces it there), since a
// module's actual linear memory size is an instance property, not a
// static one.
func (x *Executor) Validate(code []byte) error {
	store := wasmer.NewStore(x.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return fmt.Errorf("runtime: module compile: %w", err)
	}
	hasCall := false
	for _, exp := range mod.Exports() {
		if exp.Name() == "call" {
			hasCall = true
			break
		}
	}
	if !hasCall {
		return errors.New("runtime: \"call\" entrypoint missing")
	}
	return nil
}
