package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// Named-key names under the proof-of-stake contract, read by
// state.Store.extractBondedValidators (the "v_<pubkey>_<stake>" schema)
// and by genesis's seeded protocol constants (SPEC_FULL.md §4.G).
const (
	ConvRateKey     = "conv_rate"
	PaymentLimitKey = "payment_limit"
	RewardPoolKey   = "reward_pool"
	validatorPrefix = "v_"
)

// ValidatorName builds the fixed "v_<pubkey>_<stake>" named-key name
// genesis and upgrade seed bonded validators under, and
// state.Store.extractBondedValidators parses back out.
func ValidatorName(pubKey key.Address, stake uint64) string {
	return fmt.Sprintf("%s%x_%d", validatorPrefix, pubKey[:], stake)
}

// contractNamedKeys reads the proof-of-stake Contract value's own
// named-key table, the same one genesis seeds bonded validators and
// protocol constants into.
func contractNamedKeys(env *xenv.Environment) (key.Key, map[string]key.Key, error) {
	posKey := ProofOfStakeKey()
	c, err := readPosContract(env, posKey)
	if err != nil {
		return key.Key{}, nil, err
	}
	return posKey, c.NamedKeys, nil
}

// readPosContract reads the full proof-of-stake Contract value, so a
// caller that needs to rewrite NamedKeys (bond/unbond) can preserve its
// other fields.
func readPosContract(env *xenv.Environment, posKey key.Key) (*value.Contract, error) {
	v, found, err := env.TrackingCopy().Read(posKey)
	if err != nil {
		return nil, err
	}
	if !found || v.Tag != value.TagContract {
		return nil, &ErrContractNotFoundInternal{Key: posKey}
	}
	return v.Contract, nil
}

// writePosNamedKeys rewrites the proof-of-stake contract's named-key
// table, leaving its Body and ProtocolVersion untouched.
func writePosNamedKeys(env *xenv.Environment, posKey key.Key, c *value.Contract, named map[string]key.Key) {
	env.TrackingCopy().Write(posKey, value.FromContract(&value.Contract{
		Body:            c.Body,
		NamedKeys:       named,
		ProtocolVersion: c.ProtocolVersion,
	}))
}

// ErrContractNotFoundInternal mirrors xenv.ErrContractNotFound for
// lookups builtin performs directly against the tracking copy rather
// than through Environment.CallContract.
type ErrContractNotFoundInternal struct{ Key key.Key }

func (e *ErrContractNotFoundInternal) Error() string {
	return fmt.Sprintf("proof-of-stake: contract missing at %s", e.Key)
}

// ConvRate returns the motes-per-gas-unit conversion rate seeded at
// genesis (spec.md §4.F step 6; SPEC_FULL.md §4.G makes it queryable
// protocol state instead of an engine-hardcoded constant).
func ConvRate(env *xenv.Environment) (uint64, error) {
	_, named, err := contractNamedKeys(env)
	if err != nil {
		return 0, err
	}
	return readUint64Param(env, named, ConvRateKey)
}

// PaymentLimit returns the fixed payment-phase gas cap (spec.md §4.F
// step 5).
func PaymentLimit(env *xenv.Environment) (uint64, error) {
	_, named, err := contractNamedKeys(env)
	if err != nil {
		return 0, err
	}
	return readUint64Param(env, named, PaymentLimitKey)
}

// RewardPoolPurse returns the URef key of the reward pool purse
// FinalizePayment forwards each deploy's validator reward into (spec.md
// §4.F step 7). Distributing the pool to individual bonded validators is
// a consensus-layer concern this engine does not model.
func RewardPoolPurse(env *xenv.Environment) (key.Key, error) {
	_, named, err := contractNamedKeys(env)
	if err != nil {
		return key.Key{}, err
	}
	k, ok := named[RewardPoolKey]
	if !ok {
		return key.Key{}, &ErrProtocolParamMissing{Name: RewardPoolKey}
	}
	return k, nil
}

// ErrProtocolParamMissing is returned when the proof-of-stake contract's
// named keys lack a constant genesis is expected to have seeded.
type ErrProtocolParamMissing struct{ Name string }

func (e *ErrProtocolParamMissing) Error() string {
	return fmt.Sprintf("proof-of-stake: protocol parameter %q not seeded", e.Name)
}

func readUint64Param(env *xenv.Environment, named map[string]key.Key, name string) (uint64, error) {
	k, ok := named[name]
	if !ok {
		return 0, &ErrProtocolParamMissing{Name: name}
	}
	v, found, err := env.TrackingCopy().Read(k)
	if err != nil {
		return 0, err
	}
	if !found || v.Tag != value.TagUInt64 {
		return 0, &xenv.ErrTypeMismatch{Expected: "UInt64", Actual: "absent or wrong tag"}
	}
	return v.UInt64, nil
}

// TransferToAccount moves amount motes from the source purse to the
// target purse through Transfer, the native analogue of
// spec.md §4.D's transfer_to_account host call (which this contract's
// "transfer_to_account" method backs).
func TransferToAccount(env *xenv.Environment, source key.Key, target key.Key, amount uint64) error {
	return Transfer(env, source, target, amount)
}

// ErrInsufficientBond is bond/unbond's failure when a caller tries to
// unbond more than it currently has staked (spec.md §8 Scenario S4).
type ErrInsufficientBond struct{ PubKey key.Address }

func (e *ErrInsufficientBond) Error() string {
	return fmt.Sprintf("proof-of-stake: insufficient bond for %x", e.PubKey[:])
}

// validatorEntryPrefix is the fixed prefix of pubKey's "v_<pubkey>_<stake>"
// named-key entry, before the trailing stake amount.
func validatorEntryPrefix(pubKey key.Address) string {
	return fmt.Sprintf("%s%x_", validatorPrefix, pubKey[:])
}

// findValidatorEntry locates pubKey's current "v_<pubkey>_<stake>" named
// key, if bonded at all.
func findValidatorEntry(named map[string]key.Key, pubKey key.Address) (name string, uref key.Key, stake uint64, ok bool) {
	prefix := validatorEntryPrefix(pubKey)
	for n, k := range named {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		s, err := strconv.ParseUint(strings.TrimPrefix(n, prefix), 10, 64)
		if err != nil {
			continue
		}
		return n, k, s, true
	}
	return "", key.Key{}, 0, false
}

// Bond stakes amount motes out of callerPurse into pubKey's validator
// record (spec.md §8 Scenario S4's "bond"). The staked motes live at the
// same URef the "v_<pubkey>_<stake>" named key addresses — that URef
// doubles as a plain purse, exactly like a mint purse — and the name is
// rewritten to reflect the new total, since
// state.Store.extractBondedValidators reads stake from the name, not
// the URef's value.
func Bond(env *xenv.Environment, callerPurse key.Key, pubKey key.Address, amount uint64) error {
	posKey, named, err := contractNamedKeys(env)
	if err != nil {
		return err
	}
	c, err := readPosContract(env, posKey)
	if err != nil {
		return err
	}
	oldName, uref, stake, has := findValidatorEntry(named, pubKey)
	if !has {
		uref, err = env.NewURef(value.UInt64(0))
		if err != nil {
			return err
		}
	}
	if err := Transfer(env, callerPurse, uref, amount); err != nil {
		return err
	}
	updated := make(map[string]key.Key, len(named)+1)
	for n, k := range named {
		if n == oldName {
			continue
		}
		updated[n] = k
	}
	updated[ValidatorName(pubKey, stake+amount)] = uref
	writePosNamedKeys(env, posKey, c, updated)
	return nil
}

// Unbond withdraws amount motes from pubKey's validator record back into
// callerPurse, failing with ErrInsufficientBond rather than underflowing
// when amount exceeds what's currently staked (spec.md §8 Scenario S4:
// "Unbond-over-bonded ⇒ InsufficientBond").
func Unbond(env *xenv.Environment, callerPurse key.Key, pubKey key.Address, amount uint64) error {
	posKey, named, err := contractNamedKeys(env)
	if err != nil {
		return err
	}
	oldName, uref, stake, has := findValidatorEntry(named, pubKey)
	if !has || amount > stake {
		return &ErrInsufficientBond{PubKey: pubKey}
	}
	c, err := readPosContract(env, posKey)
	if err != nil {
		return err
	}
	if err := Transfer(env, uref, callerPurse, amount); err != nil {
		return err
	}
	updated := make(map[string]key.Key, len(named))
	for n, k := range named {
		if n == oldName {
			continue
		}
		updated[n] = k
	}
	if remaining := stake - amount; remaining > 0 {
		updated[ValidatorName(pubKey, remaining)] = uref
	}
	writePosNamedKeys(env, posKey, c, updated)
	return nil
}

// FinalizePayment implements spec.md §4.F step 7: refund unused gas
// (gasUsed < gasLimit) from the payment purse back to the payer's main
// purse, and forward the validator reward (gasUsed motes, after
// conversion) to proposerPurse, which the engine passes as
// proof-of-stake's reward pool purse.
func FinalizePayment(env *xenv.Environment, paymentPurse, payerPurse, proposerPurse key.Key, gasUsed, gasLimit, convRate uint64) error {
	if gasLimit > gasUsed {
		refundMotes := (gasLimit - gasUsed) * convRate
		if err := Transfer(env, paymentPurse, payerPurse, refundMotes); err != nil {
			return err
		}
	}
	rewardMotes := gasUsed * convRate
	bal, err := Balance(env, paymentPurse)
	if err != nil {
		return err
	}
	if bal < rewardMotes {
		rewardMotes = bal
	}
	return Transfer(env, paymentPurse, proposerPurse, rewardMotes)
}

// CallProofOfStake is the proof-of-stake contract's single native
// entrypoint. Methods: "conv_rate" () -> UInt64, "payment_limit" () ->
// UInt64, "transfer_to_account" (source Key, target Key, amount UInt64),
// "bond" (amount UInt64), "unbond" (amount UInt64) — the caller's own
// account (env.GetCaller) and main purse (env.GetMainPurse) are always
// the bonding party; this engine has no delegated-bonding concept.
func CallProofOfStake(env *xenv.Environment, args [][]byte) (value.Value, error) {
	method, params, err := DecodeCall(args)
	if err != nil {
		return value.Value{}, err
	}
	switch method {
	case "conv_rate":
		rate, err := ConvRate(env)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt64(rate), nil
	case "payment_limit":
		limit, err := PaymentLimit(env)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt64(limit), nil
	case "transfer_to_account":
		if len(params) != 3 || params[0].Tag != value.TagKey || params[1].Tag != value.TagKey || params[2].Tag != value.TagUInt64 {
			return value.Value{}, &ErrMalformedCall{Reason: "transfer_to_account wants (source Key, target Key, amount UInt64)"}
		}
		if err := TransferToAccount(env, params[0].Key, params[1].Key, params[2].UInt64); err != nil {
			return value.Value{}, err
		}
		return value.Unit(), nil
	case "bond":
		if len(params) != 1 || params[0].Tag != value.TagUInt64 {
			return value.Value{}, &ErrMalformedCall{Reason: "bond wants (amount UInt64)"}
		}
		if err := Bond(env, env.GetMainPurse(), env.GetCaller(), params[0].UInt64); err != nil {
			return value.Value{}, err
		}
		return value.Unit(), nil
	case "unbond":
		if len(params) != 1 || params[0].Tag != value.TagUInt64 {
			return value.Value{}, &ErrMalformedCall{Reason: "unbond wants (amount UInt64)"}
		}
		if err := Unbond(env, env.GetMainPurse(), env.GetCaller(), params[0].UInt64); err != nil {
			return value.Value{}, err
		}
		return value.Unit(), nil
	default:
		return value.Value{}, &ErrUnknownMethod{Method: method}
	}
}
