// Copyright (c) 2018 The VeChainThor developers — adapted into the
// engine's versioned global-state store (spec.md §4.A).

// Package state implements the authenticated trie store's public
// contract: checkout, read, and apply, over a content-addressed,
// Blake2b-hashed trie.
package state

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/transform"
	"github.com/casper-ee/execengine/trie"
	"github.com/casper-ee/execengine/value"
)

// Store is the versioned global-state store: it owns the backing
// Database and offers Checkout/Apply over any previously committed root.
type Store struct {
	db  trie.Database
	log log.Logger
	mu  sync.Mutex
}

// New wraps db as a Store.
func New(db trie.Database) *Store {
	return &Store{db: db, log: log.New("pkg", "state")}
}

// View is a read-only snapshot of global state at a fixed root,
// returned by Checkout. It resolves reads lazily against the trie.
type View struct {
	root key.Address
	t    *trie.Trie
}

// Root returns the root this view was checked out at.
func (v *View) Root() key.Address { return v.root }

// Checkout returns a read-only snapshot of the state committed at root,
// or (nil, false) if root is unknown to the store — this only resolves
// the root's own node; it does not otherwise touch the database. Fails
// with an error only on genuine storage corruption (a distinct case
// from "unknown root").
func (s *Store) Checkout(root key.Address) (*View, bool, error) {
	t, err := trie.New(root, s.db)
	if err != nil {
		if isMissingNode(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "state: checkout")
	}
	return &View{root: root, t: t}, true, nil
}

func isMissingNode(err error) bool {
	_, ok := err.(*trie.MissingNodeError)
	return ok
}

// Read looks up key in the view, returning (nil, false, nil) if absent.
func (v *View) Read(k key.Key) (*value.Value, bool, error) {
	enc := v.t.Get(k.Normalized().Bytes())
	if enc == nil {
		return nil, false, nil
	}
	val, _, err := value.Decode(enc)
	if err != nil {
		return nil, false, err
	}
	return &val, true, nil
}

// CommitResultKind discriminates the outcome of Apply.
type CommitResultKind int

const (
	CommitSuccess CommitResultKind = iota
	CommitRootNotFound
	CommitKeyNotFound
	CommitTypeMismatch
	CommitOverflow
	CommitStorageError
)

// CommitResult is the outcome of Apply, mirroring spec.md §4.A's
// CommitResult variants.
type CommitResult struct {
	Kind             CommitResultKind
	NewRoot          key.Address
	BondedValidators []ValidatorBond
	FailedKey        key.Key
	Expected, Actual string
	Err              error
}

// ValidatorBond is one entry of the post-commit bonded-validator set,
// extracted by scanning the proof-of-stake contract's named keys for the
// fixed "v_<pubkey>_<stake>" schema (spec.md §4.A).
type ValidatorBond struct {
	PubKey key.Address
	Stake  uint64
}

// Apply checks out root, resolves the already-folded per-key transforms
// (the caller is expected to have run transform.Fold over a deploy's
// ops) against whatever value root currently holds for each key, and
// returns the resulting CommitResult. Apply takes a single writer lock
// for its duration; concurrent Checkout calls proceed lock-free against
// their own already-resolved snapshot.
//
// Resolution is where AddInt/AddUInt/AddKeys transforms finally meet a
// base value: transform.Fold only composes a deploy's own staged ops
// against each other (spec.md §4.B), it never sees the trie. Iteration
// is in lexicographic key-byte order purely for log/error determinism —
// per spec.md §8 Invariant 1 the resulting root does not depend on it,
// since each key's resolution is independent of every other key's.
func (s *Store) Apply(root key.Address, folded map[key.Key]transform.Transform) CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := trie.New(root, s.db)
	if err != nil {
		if isMissingNode(err) {
			return CommitResult{Kind: CommitRootNotFound}
		}
		return CommitResult{Kind: CommitStorageError, Err: errors.Wrap(err, "state: apply: checkout")}
	}

	for _, k := range sortedKeys(folded) {
		tr := folded[k]
		newVal, skip, cr := resolveTransform(t, k, tr)
		if cr != nil {
			return *cr
		}
		if skip {
			continue
		}
		enc, err := value.Encode(newVal)
		if err != nil {
			return CommitResult{Kind: CommitStorageError, Err: err}
		}
		if err := t.TryUpdate(k.Normalized().Bytes(), enc); err != nil {
			if isMissingNode(err) {
				return CommitResult{Kind: CommitKeyNotFound, FailedKey: k}
			}
			return CommitResult{Kind: CommitStorageError, Err: err}
		}
	}

	newRoot, err := t.Commit()
	if err != nil {
		return CommitResult{Kind: CommitStorageError, Err: errors.Wrap(err, "state: apply: commit")}
	}
	bonded, err := s.extractBondedValidators(newRoot)
	if err != nil {
		return CommitResult{Kind: CommitStorageError, Err: errors.Wrap(err, "state: apply: extract bonded validators")}
	}
	s.log.Debug("committed state", "root", newRoot, "bonded", len(bonded))
	return CommitResult{Kind: CommitSuccess, NewRoot: newRoot, BondedValidators: bonded}
}

func sortedKeys(folded map[key.Key]transform.Transform) []key.Key {
	out := make([]key.Key, 0, len(folded))
	for k := range folded {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Bytes()) < string(out[j].Bytes())
	})
	return out
}

// resolveTransform resolves one key's folded Transform against t's
// currently-stored value, returning either a value to write (skip=false),
// nothing to write (skip=true, for Identity), or a non-nil CommitResult
// that aborts the whole Apply.
func resolveTransform(t *trie.Trie, k key.Key, tr transform.Transform) (value.Value, bool, *CommitResult) {
	switch tr.Kind {
	case transform.Identity:
		return value.Value{}, true, nil

	case transform.WriteKind:
		return tr.Value, false, nil

	case transform.FailureKind:
		if tr.Reason == "Overflow" {
			return value.Value{}, false, &CommitResult{Kind: CommitOverflow, FailedKey: k}
		}
		return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "valid transform", Actual: tr.Reason}

	case transform.AddIntKind:
		cur, found, err := readRaw(t, k)
		if err != nil {
			return value.Value{}, false, &CommitResult{Kind: CommitStorageError, Err: err}
		}
		return resolveAddInt(k, cur, found, tr.AddInt)

	case transform.AddUIntKind:
		cur, found, err := readRaw(t, k)
		if err != nil {
			return value.Value{}, false, &CommitResult{Kind: CommitStorageError, Err: err}
		}
		return resolveAddUInt(k, cur, found, tr.AddUInt)

	case transform.AddKeysKind:
		cur, found, err := readRaw(t, k)
		if err != nil {
			return value.Value{}, false, &CommitResult{Kind: CommitStorageError, Err: err}
		}
		return resolveAddKeys(k, cur, found, tr.AddKeys)

	default:
		return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "known transform kind", Actual: fmt.Sprintf("kind(%d)", tr.Kind)}
	}
}

func readRaw(t *trie.Trie, k key.Key) (*value.Value, bool, error) {
	enc := t.Get(k.Normalized().Bytes())
	if enc == nil {
		return nil, false, nil
	}
	v, _, err := value.Decode(enc)
	if err != nil {
		return nil, false, err
	}
	return &v, true, nil
}

func resolveAddInt(k key.Key, cur *value.Value, found bool, delta int64) (value.Value, bool, *CommitResult) {
	if !found {
		return value.UInt64(uint64(delta)), false, nil
	}
	switch cur.Tag {
	case value.TagUInt64:
		sum := cur.UInt64 + uint64(delta)
		if delta > 0 && sum < cur.UInt64 {
			return value.Value{}, false, &CommitResult{Kind: CommitOverflow, FailedKey: k}
		}
		return value.UInt64(sum), false, nil
	case value.TagInt32:
		sum := int64(cur.Int32) + delta
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return value.Value{}, false, &CommitResult{Kind: CommitOverflow, FailedKey: k}
		}
		return value.Int32(int32(sum)), false, nil
	default:
		return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "UInt64 or Int32", Actual: fmt.Sprintf("tag(%d)", cur.Tag)}
	}
}

func resolveAddUInt(k key.Key, cur *value.Value, found bool, delta *uint256.Int) (value.Value, bool, *CommitResult) {
	base := uint256.NewInt(0)
	tag := value.TagUInt256
	if found {
		tag = cur.Tag
		switch cur.Tag {
		case value.TagUInt128:
			base = cur.UInt128
		case value.TagUInt256:
			base = cur.UInt256
		case value.TagUInt512:
			base = cur.UInt512
		default:
			return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "UInt128/256/512", Actual: fmt.Sprintf("tag(%d)", cur.Tag)}
		}
	}
	sum, overflow := new(uint256.Int).AddOverflow(base, delta)
	if overflow {
		return value.Value{}, false, &CommitResult{Kind: CommitOverflow, FailedKey: k}
	}
	switch tag {
	case value.TagUInt128:
		return value.UInt128(sum), false, nil
	case value.TagUInt512:
		return value.UInt512(sum), false, nil
	default:
		return value.UInt256(sum), false, nil
	}
}

func resolveAddKeys(k key.Key, cur *value.Value, found bool, entries []value.MapEntry) (value.Value, bool, *CommitResult) {
	merged := map[string]key.Key{}
	var base value.Value
	if found {
		switch cur.Tag {
		case value.TagAccount:
			if cur.Account == nil {
				return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "Account", Actual: "nil"}
			}
			for name, nk := range cur.Account.NamedKeys {
				merged[name] = nk
			}
			base = *cur
		case value.TagContract:
			if cur.Contract == nil {
				return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "Contract", Actual: "nil"}
			}
			for name, nk := range cur.Contract.NamedKeys {
				merged[name] = nk
			}
			base = *cur
		default:
			return value.Value{}, false, &CommitResult{Kind: CommitTypeMismatch, FailedKey: k, Expected: "Account or Contract", Actual: fmt.Sprintf("tag(%d)", cur.Tag)}
		}
	} else {
		base = value.FromContract(&value.Contract{})
	}
	for _, e := range entries {
		merged[e.Name] = e.Key
	}
	switch base.Tag {
	case value.TagAccount:
		updated := *base.Account
		updated.NamedKeys = merged
		return value.FromAccount(&updated), false, nil
	default:
		updated := value.Contract{}
		if base.Contract != nil {
			updated = *base.Contract
		}
		updated.NamedKeys = merged
		return value.FromContract(&updated), false, nil
	}
}

// posAccountHashKey is where genesis/upgrade seed the proof-of-stake
// system contract (spec.md §4.G); extractBondedValidators reads that
// contract's named keys for the "v_<pubkey>_<stake>" schema. Computed
// from the same fixed address builtin.ProofOfStakeAddress uses —
// duplicated rather than imported, since builtin already depends on
// this package transitively through xenv/trackingcopy.
var posAccountHashKey = key.Hash(key.BytesToAddress([]byte("casper-ee:proof-of-stake")))

func (s *Store) extractBondedValidators(root key.Address) ([]ValidatorBond, error) {
	view, ok, err := s.Checkout(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	v, found, err := view.Read(posAccountHashKey)
	if err != nil {
		return nil, err
	}
	if !found || v.Tag != value.TagContract {
		return nil, nil
	}
	var bonds []ValidatorBond
	for name, k := range v.Contract.NamedKeys {
		pub, stake, ok := parseValidatorNamedKey(name)
		if !ok {
			continue
		}
		_ = k
		bonds = append(bonds, ValidatorBond{PubKey: pub, Stake: stake})
	}
	return bonds, nil
}

// parseValidatorNamedKey parses the fixed "v_<pubkey-hex>_<stake>" named
// key schema.
func parseValidatorNamedKey(name string) (key.Address, uint64, bool) {
	if len(name) < 3 || name[0] != 'v' || name[1] != '_' {
		return key.Address{}, 0, false
	}
	rest := name[2:]
	sep := -1
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '_' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return key.Address{}, 0, false
	}
	pubHex, stakeStr := rest[:sep], rest[sep+1:]
	pub, err := hexToAddress(pubHex)
	if err != nil {
		return key.Address{}, 0, false
	}
	stake, err := parseUint(stakeStr)
	if err != nil {
		return key.Address{}, 0, false
	}
	return pub, stake, true
}

func hexToAddress(s string) (key.Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return key.Address{}, errors.Wrapf(err, "state: bad hex %q", s)
	}
	return key.BytesToAddress(b), nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("state: empty uint")
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("state: bad digit %q", c)
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}
