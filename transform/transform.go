// Package transform implements the transform algebra (spec.md §3, §4.B):
// staged mutation records and the fold that composes a sequence of them,
// per key, into a single net effect.
package transform

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

// Kind discriminates the Transform variants.
type Kind int

const (
	Identity Kind = iota
	WriteKind
	AddIntKind
	AddUIntKind
	AddKeysKind
	FailureKind
)

// Transform is one staged mutation against a single key. Only the field
// matching Kind is meaningful.
type Transform struct {
	Kind    Kind
	Value   value.Value   // WriteKind
	AddInt  int64         // AddIntKind
	AddUInt *uint256.Int  // AddUIntKind
	AddKeys []value.MapEntry // AddKeysKind
	Reason  string        // FailureKind
}

func NewIdentity() Transform { return Transform{Kind: Identity} }
func NewWrite(v value.Value) Transform { return Transform{Kind: WriteKind, Value: v} }
func NewAddInt(delta int64) Transform  { return Transform{Kind: AddIntKind, AddInt: delta} }
func NewAddUInt(delta *uint256.Int) Transform {
	return Transform{Kind: AddUIntKind, AddUInt: delta}
}
func NewAddKeys(entries []value.MapEntry) Transform {
	return Transform{Kind: AddKeysKind, AddKeys: entries}
}
func NewFailure(reason string) Transform { return Transform{Kind: FailureKind, Reason: reason} }

// FailOverflow is the explicit overflow failure spec.md §4.A calls for:
// numeric adds saturate and surface as a failure rather than wrapping
// silently.
func FailOverflow() Transform { return NewFailure("Overflow") }

// ErrPoisoned is returned by Compose once a FailureKind transform has
// entered the fold; every subsequent Compose call on that accumulator
// keeps returning the same poisoning failure (spec.md §3: "any Failure
// poisons the fold").
type ErrPoisoned struct{ Reason string }

func (e *ErrPoisoned) Error() string { return fmt.Sprintf("transform: poisoned: %s", e.Reason) }

// Compose folds next onto acc, implementing the composition rules from
// spec.md §3:
//
//	Write ∘ anything  = Write
//	AddN  ∘ AddM      = Add(N+M)   (when types match)
//	AddKeys ∘ AddKeys = union, later wins on collision
//	Failure  poisons everything downstream
//
// Composing mismatched Add kinds (e.g. AddInt onto a prior Write of a
// non-numeric value) is a TypeMismatch failure, matching spec.md §7.
func Compose(acc, next Transform) Transform {
	if acc.Kind == FailureKind {
		return acc
	}
	if next.Kind == FailureKind {
		return next
	}
	switch next.Kind {
	case Identity:
		return acc
	case WriteKind:
		return next
	case AddIntKind:
		switch acc.Kind {
		case Identity:
			return next
		case AddIntKind:
			sum, overflow := addInt64Overflow(acc.AddInt, next.AddInt)
			if overflow {
				return FailOverflow()
			}
			return Transform{Kind: AddIntKind, AddInt: sum}
		case WriteKind:
			return applyAddIntToWrite(acc, next)
		default:
			return NewFailure("TypeMismatch: AddInt onto incompatible transform")
		}
	case AddUIntKind:
		switch acc.Kind {
		case Identity:
			return next
		case AddUIntKind:
			sum, overflow := new(uint256.Int).AddOverflow(acc.AddUInt, next.AddUInt)
			if overflow {
				return FailOverflow()
			}
			return Transform{Kind: AddUIntKind, AddUInt: sum}
		case WriteKind:
			return applyAddUIntToWrite(acc, next)
		default:
			return NewFailure("TypeMismatch: AddUInt onto incompatible transform")
		}
	case AddKeysKind:
		switch acc.Kind {
		case Identity:
			return next
		case AddKeysKind:
			return Transform{Kind: AddKeysKind, AddKeys: unionAddKeys(acc.AddKeys, next.AddKeys)}
		case WriteKind:
			return applyAddKeysToWrite(acc, next)
		default:
			return NewFailure("TypeMismatch: AddKeys onto incompatible transform")
		}
	default:
		return NewFailure("unknown transform kind")
	}
}

// addInt64Overflow adds a and b, reporting overflow rather than wrapping
// or saturating — AddIntKind∘AddIntKind composition surfaces this as
// FailOverflow(), matching applyAddIntToWrite's and the AddUInt path's
// explicit-failure convention (spec.md §4.A).
func addInt64Overflow(a, b int64) (sum int64, overflow bool) {
	sum = a + b
	overflow = (b > 0 && sum < a) || (b < 0 && sum > a)
	return sum, overflow
}

func applyAddIntToWrite(write, add Transform) Transform {
	if write.Value.Tag != value.TagInt32 {
		return NewFailure("TypeMismatch: AddInt onto non-Int32 Write")
	}
	sum := int64(write.Value.Int32) + add.AddInt
	if sum > int64(1<<31-1) || sum < int64(-1<<31) {
		return FailOverflow()
	}
	return NewWrite(value.Int32(int32(sum)))
}

func applyAddUIntToWrite(write, add Transform) Transform {
	var current *uint256.Int
	switch write.Value.Tag {
	case value.TagUInt64:
		current = new(uint256.Int).SetUint64(write.Value.UInt64)
	case value.TagUInt128:
		current = write.Value.UInt128
	case value.TagUInt256:
		current = write.Value.UInt256
	case value.TagUInt512:
		current = write.Value.UInt512
	default:
		return NewFailure("TypeMismatch: AddUInt onto non-numeric Write")
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, add.AddUInt)
	if overflow {
		return FailOverflow()
	}
	result := value.Value{Tag: write.Value.Tag}
	switch write.Value.Tag {
	case value.TagUInt64:
		if !sum.IsUint64() {
			return FailOverflow()
		}
		result.UInt64 = sum.Uint64()
	case value.TagUInt128:
		result.UInt128 = sum
	case value.TagUInt256:
		result.UInt256 = sum
	case value.TagUInt512:
		result.UInt512 = sum
	}
	return NewWrite(result)
}

func applyAddKeysToWrite(write, add Transform) Transform {
	if write.Value.Tag != value.TagMap {
		return NewFailure("TypeMismatch: AddKeys onto non-Map Write")
	}
	merged := unionAddKeys(write.Value.Map, add.AddKeys)
	return NewWrite(value.Value{Tag: value.TagMap, Map: merged})
}

// unionAddKeys merges two named-key maps; on collision, b's entry wins
// (spec.md §3: "later wins on collision"), and the merge always produces
// a lexicographically sorted result for determinism.
func unionAddKeys(a, b []value.MapEntry) []value.MapEntry {
	merged := make(map[string]key.Key, len(a)+len(b))
	for _, e := range a {
		merged[e.Name] = e.Key
	}
	for _, e := range b {
		merged[e.Name] = e.Key
	}
	return value.NewMap(merged).Map
}

// KeyedTransform pairs a target key with one staged transform, as
// accumulated by a tracking copy's operation log (spec.md §4.C ops).
type KeyedTransform struct {
	Key       key.Key
	Transform Transform
}

// Fold groups ops by key and left-to-right folds each group's transforms
// via Compose, matching deploy order within a key. Per spec.md §4.B, the
// result is independent of the relative order of transforms against
// *different* keys — only within-key order matters — which is exactly
// what grouping-then-folding guarantees (spec.md §8 Invariant 1).
func Fold(ops []KeyedTransform) (map[key.Key]Transform, error) {
	result := make(map[key.Key]Transform)
	for _, op := range ops {
		nk := op.Key.Normalized()
		acc, ok := result[nk]
		if !ok {
			acc = NewIdentity()
		}
		result[nk] = Compose(acc, op.Transform)
	}
	// Report the first failure in a fixed, ops-order-independent tie break
	// (lexicographic on the key's own bytes) so the reported error never
	// depends on the relative order of transforms against distinct keys —
	// spec.md §8 Invariant 1.
	var failing *key.Key
	for k, t := range result {
		if t.Kind != FailureKind {
			continue
		}
		if failing == nil || string(k.Bytes()) < string(failing.Bytes()) {
			kk := k
			failing = &kk
		}
	}
	if failing != nil {
		return nil, &ErrPoisoned{Reason: result[*failing].Reason}
	}
	return result, nil
}
