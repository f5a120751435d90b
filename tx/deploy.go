package tx

import (
	"fmt"

	"github.com/casper-ee/execengine/cry"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

// Approval is one account's signature over a Deploy's Hash, carried
// alongside the deploy but excluded from the hash it signs. The engine
// itself performs no signature verification (spec.md's Non-goals leave
// that to whatever submits deploys to it); Approvals are data the
// engine threads through unexamined.
type Approval struct {
	Signer    key.Address
	Signature []byte
}

type deployBody struct {
	Account      key.Address
	Timestamp    uint64
	TTL          uint64
	GasPrice     uint64
	Dependencies []cry.Hash
	Payment      ExecutableCode
	Session      ExecutableCode
	Approvals    []Approval
}

// Deploy is the unit of work the engine executes (spec.md §5): a header
// identifying the submitting account and its gas terms, a payment
// ExecutableCode that funds execution, and a session ExecutableCode
// that does the actual work.
type Deploy struct {
	body deployBody
}

// Account returns the deploying account's address.
func (d *Deploy) Account() key.Address { return d.body.Account }

// Timestamp returns the deploy's creation time, motes of epoch seconds.
func (d *Deploy) Timestamp() uint64 { return d.body.Timestamp }

// TTL returns the deploy's time-to-live in seconds past Timestamp.
func (d *Deploy) TTL() uint64 { return d.body.TTL }

// GasPrice returns the motes-per-gas-unit rate this deploy pays,
// separate from proof-of-stake's protocol-wide conv_rate.
func (d *Deploy) GasPrice() uint64 { return d.body.GasPrice }

// Dependencies returns the hashes of deploys that must execute first.
func (d *Deploy) Dependencies() []cry.Hash { return d.body.Dependencies }

// Payment returns the payment-phase ExecutableCode.
func (d *Deploy) Payment() ExecutableCode { return d.body.Payment }

// Session returns the session-phase ExecutableCode.
func (d *Deploy) Session() ExecutableCode { return d.body.Session }

// Approvals returns the deploy's collected signatures.
func (d *Deploy) Approvals() []Approval { return d.body.Approvals }

// AuthorizationKeys returns the set of signer public keys backing this
// deploy (spec.md §4.F step 4's authorization_keys, §6's Deploy.
// authorization_keys field): the engine sums their associated-key
// weight against the account's deployment threshold, but verifies no
// signature itself — that belongs to whatever submits deploys here
// (spec.md §1 Non-goals: transaction signing).
func (d *Deploy) AuthorizationKeys() []key.Address {
	out := make([]key.Address, len(d.body.Approvals))
	for i, a := range d.body.Approvals {
		out[i] = a.Signer
	}
	return out
}

// Hash returns the deploy's content hash over everything but Approvals
// — the value approvals sign, and the identity used for Dependencies
// and for de-duplication.
func (d *Deploy) Hash() cry.Hash {
	parts := [][]byte{
		d.body.Account[:],
		encodeUint64(d.body.Timestamp),
		encodeUint64(d.body.TTL),
		encodeUint64(d.body.GasPrice),
	}
	for _, dep := range d.body.Dependencies {
		parts = append(parts, dep.Bytes())
	}
	parts = append(parts, codeDigest(d.body.Payment), codeDigest(d.body.Session))
	return cry.Sum256(parts...)
}

func codeDigest(c ExecutableCode) []byte {
	if wasm, ok := c.ModuleBytes(); ok {
		h := cry.Sum256(wasm)
		return h.Bytes()
	}
	target, _ := c.StoredTarget()
	return target.Bytes()
}

func encodeUint64(v uint64) []byte {
	enc, _ := value.Encode(value.UInt64(v))
	return enc
}

// ErrMalformedDeploy is returned by Validate for a Deploy the engine
// cannot even attempt to execute.
type ErrMalformedDeploy struct{ Reason string }

func (e *ErrMalformedDeploy) Error() string { return fmt.Sprintf("tx: malformed deploy: %s", e.Reason) }

// Validate checks the structural invariants the engine's parse step
// (spec.md §4.F step 1) requires before checkout: a session is
// mandatory, an account must be set, and TTL must be positive.
func (d *Deploy) Validate() error {
	if d.body.Account == (key.Address{}) {
		return &ErrMalformedDeploy{Reason: "account is unset"}
	}
	if d.body.Session.Empty() {
		return &ErrMalformedDeploy{Reason: "session code is empty"}
	}
	if d.body.TTL == 0 {
		return &ErrMalformedDeploy{Reason: "ttl must be positive"}
	}
	return nil
}

// DeployBuilder assembles a Deploy field by field, mirroring the
// teacher's fluent transaction builder.
type DeployBuilder struct {
	body deployBody
}

// NewDeployBuilder returns an empty DeployBuilder.
func NewDeployBuilder() *DeployBuilder { return &DeployBuilder{} }

func (b *DeployBuilder) Account(addr key.Address) *DeployBuilder {
	b.body.Account = addr
	return b
}

func (b *DeployBuilder) Timestamp(ts uint64) *DeployBuilder {
	b.body.Timestamp = ts
	return b
}

func (b *DeployBuilder) TTL(ttl uint64) *DeployBuilder {
	b.body.TTL = ttl
	return b
}

func (b *DeployBuilder) GasPrice(price uint64) *DeployBuilder {
	b.body.GasPrice = price
	return b
}

func (b *DeployBuilder) Dependency(h cry.Hash) *DeployBuilder {
	b.body.Dependencies = append(b.body.Dependencies, h)
	return b
}

func (b *DeployBuilder) Payment(code ExecutableCode) *DeployBuilder {
	b.body.Payment = code
	return b
}

func (b *DeployBuilder) Session(code ExecutableCode) *DeployBuilder {
	b.body.Session = code
	return b
}

func (b *DeployBuilder) Approval(a Approval) *DeployBuilder {
	b.body.Approvals = append(b.body.Approvals, a)
	return b
}

// Build returns the assembled Deploy.
func (b *DeployBuilder) Build() *Deploy { return &Deploy{body: b.body} }
