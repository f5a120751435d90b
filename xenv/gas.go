package xenv

// GasCosts is the fixed per-host-call gas cost table (spec.md §4.D: each
// host call deducts a fixed cost before side effects). Populated from
// protocol.Config's YAML-loaded schedule.
type GasCosts struct {
	GetArg           uint64
	GetKey           uint64
	PutKey           uint64
	Read             uint64
	Write            uint64
	Add              uint64
	NewURef          uint64
	CallContract     uint64
	Revert           uint64
	ManageKey        uint64
	SetThreshold     uint64
	TransferToAccount uint64
}

// DefaultGasCosts is the schedule tests pass directly; protocol.Default()
// starts from the same values.
var DefaultGasCosts = GasCosts{
	GetArg:            100,
	GetKey:            100,
	PutKey:            200,
	Read:              500,
	Write:             1000,
	Add:               600,
	NewURef:           400,
	CallContract:      2000,
	Revert:            10,
	ManageKey:         800,
	SetThreshold:      800,
	TransferToAccount: 2500,
}

// ErrOutOfGas is returned when a host call's fixed cost cannot be paid
// from the remaining gas meter (spec.md §4.D: "insufficient gas ⇒
// OutOfGas and immediate unwind").
type ErrOutOfGas struct {
	Call string
}

func (e *ErrOutOfGas) Error() string { return "xenv: out of gas during " + e.Call }

// GasMeter tracks remaining gas for one deploy's execution, shared by
// every frame (spec.md §4.E: a single meter is threaded through nested
// call_contract frames).
type GasMeter struct {
	remaining uint64
}

// NewGasMeter starts a meter with limit gas available.
func NewGasMeter(limit uint64) *GasMeter { return &GasMeter{remaining: limit} }

// Remaining reports the gas left.
func (m *GasMeter) Remaining() uint64 { return m.remaining }

// Charge deducts cost, failing with ErrOutOfGas if insufficient.
func (m *GasMeter) Charge(call string, cost uint64) error {
	if cost > m.remaining {
		m.remaining = 0
		return &ErrOutOfGas{Call: call}
	}
	m.remaining -= cost
	return nil
}
