package builtin

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
	"github.com/casper-ee/execengine/xenv"
)

// ErrInsufficientFunds is mint's transfer failure (spec.md §4.D's
// transfer_to_account "InsufficientFunds").
type ErrInsufficientFunds struct{ Purse key.Key }

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("mint: insufficient funds in purse %s", e.Purse)
}

// purseBalance reads a purse's motes balance, treating an unwritten
// purse (a freshly allocated URef never credited) as zero, mirroring
// the teacher's energy.GetBalance default-balance convention.
func purseBalance(tc *ledgerReader, purse key.Key) (uint64, error) {
	v, found, err := tc.Read(purse)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if v.Tag != value.TagUInt64 {
		return 0, &xenv.ErrTypeMismatch{Expected: "UInt64", Actual: fmt.Sprintf("tag(%d)", v.Tag)}
	}
	return v.UInt64, nil
}

// ledgerReader is the minimal read/write slice of trackingcopy.TrackingCopy
// the native contracts need; keeping it narrow avoids an import of the
// trackingcopy package's full surface here.
type ledgerReader struct {
	read  func(key.Key) (*value.Value, bool, error)
	write func(key.Key, value.Value)
}

func (l *ledgerReader) Read(k key.Key) (*value.Value, bool, error) { return l.read(k) }
func (l *ledgerReader) Write(k key.Key, v value.Value)             { l.write(k, v) }

func ledgerFor(env *xenv.Environment) *ledgerReader {
	tc := env.TrackingCopy()
	return &ledgerReader{read: tc.Read, write: tc.Write}
}

// CreatePurse allocates a fresh zero-balance purse, bypassing the
// calling frame's own rights (system contracts operate with kernel
// trust over the ledger, the same way the teacher's builtin contracts
// write state.State directly rather than through the VM's ACL).
func CreatePurse(env *xenv.Environment) (key.Key, error) {
	purse, err := env.NewURef(value.UInt64(0))
	if err != nil {
		return key.Key{}, err
	}
	return purse, nil
}

// Balance returns a purse's motes balance.
func Balance(env *xenv.Environment, purse key.Key) (uint64, error) {
	return purseBalance(ledgerFor(env), purse)
}

// Credit credits amount motes into purse unconditionally — only genesis
// calls this directly in Go (proof-of-stake moves motes with Transfer); it
// is deliberately not exposed as a method through Call, since
// unrestricted minting would break the fixed-supply assumption the
// engine's tests rely on.
func Credit(env *xenv.Environment, purse key.Key, amount uint64) error {
	l := ledgerFor(env)
	bal, err := purseBalance(l, purse)
	if err != nil {
		return err
	}
	l.Write(purse, value.UInt64(bal+amount))
	return nil
}

// Transfer moves amount motes from source to dest, failing with
// ErrInsufficientFunds if source's balance is too small.
func Transfer(env *xenv.Environment, source, dest key.Key, amount uint64) error {
	l := ledgerFor(env)
	srcBal, err := purseBalance(l, source)
	if err != nil {
		return err
	}
	if srcBal < amount {
		return &ErrInsufficientFunds{Purse: source}
	}
	dstBal, err := purseBalance(l, dest)
	if err != nil {
		return err
	}
	l.Write(source, value.UInt64(srcBal-amount))
	l.Write(dest, value.UInt64(dstBal+amount))
	return nil
}

// CallMint is the mint contract's single native entrypoint (spec.md
// §4.D's get_mint accessor resolves to MintKey(); this is what
// call_contract dispatches to there). Methods: "create_purse" () ->
// URef, "balance" (purse URef) -> UInt64, "transfer" (source, dest,
// amount), "main_purse" () -> URef (the calling frame's own main purse,
// for stored contracts that need a funded source purse without relying
// on host-call access to xenv.Environment.GetMainPurse directly).
func CallMint(env *xenv.Environment, args [][]byte) (value.Value, error) {
	method, params, err := DecodeCall(args)
	if err != nil {
		return value.Value{}, err
	}
	switch method {
	case "create_purse":
		purse, err := CreatePurse(env)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromKey(purse), nil
	case "main_purse":
		return value.FromKey(env.GetMainPurse()), nil
	case "balance":
		if len(params) != 1 || params[0].Tag != value.TagKey {
			return value.Value{}, &ErrMalformedCall{Reason: "balance wants (purse Key)"}
		}
		bal, err := Balance(env, params[0].Key)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt64(bal), nil
	case "transfer":
		if len(params) != 3 || params[0].Tag != value.TagKey || params[1].Tag != value.TagKey || params[2].Tag != value.TagUInt64 {
			return value.Value{}, &ErrMalformedCall{Reason: "transfer wants (source Key, dest Key, amount UInt64)"}
		}
		if err := Transfer(env, params[0].Key, params[1].Key, params[2].UInt64); err != nil {
			return value.Value{}, err
		}
		return value.Unit(), nil
	default:
		return value.Value{}, &ErrUnknownMethod{Method: method}
	}
}
