// Package receipt defines DeployResult, the outcome the engine returns
// for an executed deploy (spec.md §7): a success/failure discriminant,
// the gas actually consumed, and — on success — the effects folded
// from the deploy's tracking copy.
package receipt

import (
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/transform"
)

// Discriminant enumerates every outcome a deploy can finalize to
// (spec.md §7's error taxonomy, plus Success).
type Discriminant string

const (
	Success                 Discriminant = "Success"
	DeployError             Discriminant = "DeployError"
	InvalidPublicKeyLength  Discriminant = "InvalidPublicKeyLength"
	MissingArgument         Discriminant = "MissingArgument"
	InvalidArgument         Discriminant = "InvalidArgument"
	InsufficientPayment     Discriminant = "InsufficientPayment"
	AuthorizationFailed     Discriminant = "AuthorizationFailed"
	OutOfGas                Discriminant = "OutOfGas"
	Trap                    Discriminant = "Trap"
	Revert                  Discriminant = "Revert"
	Forbidden               Discriminant = "Forbidden"
	TypeMismatch            Discriminant = "TypeMismatch"
	KeyNotFound             Discriminant = "KeyNotFound"
	StoredContractNotFound  Discriminant = "StoredContractNotFound"
	Serialization           Discriminant = "Serialization"
)

// DeployResult is the engine's per-deploy execution outcome. Effects is
// nil for every Discriminant but Success and InsufficientPayment: a
// failed deploy still charges gas (unless the failure occurred before
// payment ran) but commits nothing session-side. InsufficientPayment is
// the one exception — spec.md §4.F step 5's nominal handling-fee debit
// is a real effect the engine still wants applied even though the
// deploy itself never got to run its session.
type DeployResult struct {
	Discriminant Discriminant
	GasUsed      uint64
	Effects      map[key.Key]transform.Transform
	Message      string
}

// Succeeded reports whether the deploy's session code ran to
// completion without reverting or trapping.
func (r DeployResult) Succeeded() bool { return r.Discriminant == Success }

// NewSuccess builds a successful DeployResult.
func NewSuccess(gasUsed uint64, effects map[key.Key]transform.Transform) DeployResult {
	return DeployResult{Discriminant: Success, GasUsed: gasUsed, Effects: effects}
}

// NewFailure builds a failed DeployResult; gasUsed reflects whatever
// gas was actually metered before the failure was detected.
func NewFailure(d Discriminant, gasUsed uint64, message string) DeployResult {
	return DeployResult{Discriminant: d, GasUsed: gasUsed, Message: message}
}
