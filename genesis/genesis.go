// Package genesis builds the engine's initial committed state: the
// mint and proof-of-stake system contracts, a set of prefunded
// accounts, and a set of bonded validators (spec.md §4.G), the same
// way the teacher's genesis package builds its own chain's block zero.
package genesis

import (
	"fmt"

	"github.com/casper-ee/execengine/builtin"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/trackingcopy"
	"github.com/casper-ee/execengine/transform"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// Account is a genesis-funded account: a main purse credited with
// Balance motes before any deploy runs.
type Account struct {
	Address key.Address
	Balance uint64
}

// Validator is a genesis-bonded validator, seeded as a named key on the
// proof-of-stake contract under the "v_<pubkey>_<stake>" schema
// state.Store.extractBondedValidators parses back out.
type Validator struct {
	PubKey key.Address
	Stake  uint64
}

// Genesis assembles the writes that become the engine's root commit.
type Genesis struct {
	cfg          protocol.Config
	accounts     []Account
	validators   []Validator
	convRate     uint64
	paymentLimit uint64
}

// NewDefault returns a Genesis governed by cfg, with proof-of-stake's
// conv_rate and payment_limit set to the values spec.md's prose assumes
// (1 mote per gas unit, and a payment_limit of 10,000,000). Call WithAccount/WithValidator/WithConvRate/
// WithPaymentLimit before Build to customize a network.
func NewDefault(cfg protocol.Config) *Genesis {
	return &Genesis{cfg: cfg, convRate: 1, paymentLimit: 10_000_000}
}

// WithAccount adds a prefunded genesis account.
func (g *Genesis) WithAccount(addr key.Address, balance uint64) *Genesis {
	g.accounts = append(g.accounts, Account{Address: addr, Balance: balance})
	return g
}

// WithValidator adds a genesis-bonded validator.
func (g *Genesis) WithValidator(pubKey key.Address, stake uint64) *Genesis {
	g.validators = append(g.validators, Validator{PubKey: pubKey, Stake: stake})
	return g
}

// WithConvRate overrides the seeded motes-per-gas-unit conversion rate.
func (g *Genesis) WithConvRate(rate uint64) *Genesis {
	g.convRate = rate
	return g
}

// WithPaymentLimit overrides the seeded payment-phase gas cap.
func (g *Genesis) WithPaymentLimit(limit uint64) *Genesis {
	g.paymentLimit = limit
	return g
}

// ErrGenesisBuildFailed wraps a non-success CommitResult from the
// store, since Build has no deploy to attribute the failure to.
type ErrGenesisBuildFailed struct {
	Kind state.CommitResultKind
}

func (e *ErrGenesisBuildFailed) Error() string {
	return fmt.Sprintf("genesis: build failed to commit: %v", e.Kind)
}

// Build installs the mint and proof-of-stake contracts, credits every
// configured account, bonds every configured validator, and seeds
// proof-of-stake's protocol constants, then commits the result as a
// fresh root atop store's empty trie.
func (g *Genesis) Build(store *state.Store) (key.Address, error) {
	return g.BuildAt(store, key.Address{})
}

// BuildAt runs the same installation Build does, but atop whatever
// state is already committed at parent — the engine's "upgrade" request
// (spec.md §6) uses this to seed new protocol constants or re-credit
// accounts without discarding prior history, the way the teacher's own
// chain applies a hard fork atop its existing state rather than
// re-genesis-ing.
func (g *Genesis) BuildAt(store *state.Store, parent key.Address) (key.Address, error) {
	folded, err := g.Effects(store, parent)
	if err != nil {
		return key.Address{}, err
	}
	result := store.Apply(parent, folded)
	if result.Kind != state.CommitSuccess {
		return key.Address{}, &ErrGenesisBuildFailed{Kind: result.Kind}
	}
	return result.NewRoot, nil
}

// Effects runs the same installation BuildAt does but stops short of
// committing, returning the folded transform map instead — the engine's
// "run_genesis"/"upgrade" operations (spec.md §6) surface this alongside
// the resulting root as the response's "effect" field.
func (g *Genesis) Effects(store *state.Store, parent key.Address) (map[key.Key]transform.Transform, error) {
	emptyView, ok, err := store.Checkout(parent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ErrGenesisBuildFailed{Kind: state.CommitRootNotFound}
	}
	tc := trackingcopy.New(emptyView)
	env := xenv.New(tc, xenv.NewGasMeter(^uint64(0)), g.cfg.GasCosts.AsXenv(), []byte("genesis"), nil, map[string]key.Key{}, map[key.Key]key.Rights{}, nil, g.cfg.MaxCallDepth, xenv.SystemContext{
		Mint:         builtin.MintKey(),
		ProofOfStake: builtin.ProofOfStakeKey(),
	})

	tc.Write(builtin.MintKey(), value.FromContract(&value.Contract{NamedKeys: map[string]key.Key{}}))

	posNamed := map[string]key.Key{}
	convRateKey, err := env.NewURef(value.UInt64(g.convRate))
	if err != nil {
		return nil, err
	}
	paymentLimitKey, err := env.NewURef(value.UInt64(g.paymentLimit))
	if err != nil {
		return nil, err
	}
	rewardPoolKey, err := builtin.CreatePurse(env)
	if err != nil {
		return nil, err
	}
	posNamed[builtin.ConvRateKey] = convRateKey
	posNamed[builtin.PaymentLimitKey] = paymentLimitKey
	posNamed[builtin.RewardPoolKey] = rewardPoolKey

	for _, v := range g.validators {
		validatorKey, err := env.NewURef(value.UInt64(v.Stake))
		if err != nil {
			return nil, err
		}
		posNamed[builtin.ValidatorName(v.PubKey, v.Stake)] = validatorKey
	}
	tc.Write(builtin.ProofOfStakeKey(), value.FromContract(&value.Contract{NamedKeys: posNamed}))

	for _, a := range g.accounts {
		purse, err := builtin.CreatePurse(env)
		if err != nil {
			return nil, err
		}
		if err := builtin.Credit(env, purse, a.Balance); err != nil {
			return nil, err
		}
		account := &value.Account{
			PubKey:         a.Address,
			MainPurse:      purse,
			NamedKeys:      map[string]key.Key{"main_purse": purse},
			AssociatedKeys: map[key.Address]value.Weight{a.Address: 1},
			ActionThresholds: value.ActionThresholds{
				Deployment:    1,
				KeyManagement: 1,
			},
		}
		tc.Write(key.Account(a.Address), value.FromAccount(account))
	}

	return tc.Effects()
}
