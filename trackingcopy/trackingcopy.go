// Package trackingcopy implements the per-deploy staging layer over a
// checked-out state view (spec.md §4.C): a read cache for read-your-
// writes consistency, an ordered op log, and the fold into committable
// effects.
package trackingcopy

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/transform"
	"github.com/casper-ee/execengine/value"
)

// View is the minimal slice of state.View a TrackingCopy reads through
// on cache miss.
type View interface {
	Read(k key.Key) (*value.Value, bool, error)
}

// TrackingCopy is a per-deploy staging layer. It is single-threaded:
// deploys never share a TrackingCopy, matching spec.md §4.F's
// serialized deploy execution.
type TrackingCopy struct {
	view  View
	cache map[key.Key]value.Value
	ops   []transform.KeyedTransform
}

// New opens a TrackingCopy over view.
func New(view View) *TrackingCopy {
	return &TrackingCopy{view: view, cache: make(map[key.Key]value.Value)}
}

// Read returns the value at key, consulting the cache first, then the
// underlying view on miss. A miss is cached as "value absent" only
// implicitly — absent keys are not cached, since a later Write to the
// same key must still be observed by a subsequent Read (read-your-writes).
func (tc *TrackingCopy) Read(k key.Key) (*value.Value, bool, error) {
	nk := k.Normalized()
	if v, ok := tc.cache[nk]; ok {
		return &v, true, nil
	}
	v, found, err := tc.view.Read(nk)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	tc.cache[nk] = *v
	return v, true, nil
}

// Write stages a Write transform and updates the read cache so a
// subsequent Read in the same deploy observes it immediately.
func (tc *TrackingCopy) Write(k key.Key, v value.Value) {
	nk := k.Normalized()
	tc.ops = append(tc.ops, transform.KeyedTransform{Key: nk, Transform: transform.NewWrite(v)})
	tc.cache[nk] = v
}

// Add stages an AddInt transform and folds delta into the read cache for
// key, so a subsequent Read in the same deploy observes the sum. When key
// has no value or the fold fails, the cached value for key is dropped.
func (tc *TrackingCopy) Add(k key.Key, delta int64) {
	nk := k.Normalized()
	base, found, err := tc.Read(nk)
	tc.ops = append(tc.ops, transform.KeyedTransform{Key: nk, Transform: transform.NewAddInt(delta)})
	if err == nil && found {
		if folded := transform.Compose(transform.NewWrite(*base), transform.NewAddInt(delta)); folded.Kind == transform.WriteKind {
			tc.cache[nk] = folded.Value
			return
		}
	}
	delete(tc.cache, nk)
}

// AddKeys stages an AddKeys transform, merging entries into the target
// Map value.
func (tc *TrackingCopy) AddKeys(k key.Key, entries []value.MapEntry) {
	nk := k.Normalized()
	tc.ops = append(tc.ops, transform.KeyedTransform{Key: nk, Transform: transform.NewAddKeys(entries)})
	delete(tc.cache, nk)
}

// QueryResultKind discriminates Query's outcome.
type QueryResultKind int

const (
	QuerySuccess QueryResultKind = iota
	QueryValueNotFound
)

// QueryResult is the outcome of Query (spec.md §4.C). PathConsumed is
// always the full path Query was called with — a failure anywhere
// along the walk surfaces the whole requested path, not the prefix
// that happened to resolve (spec.md §8 Scenario S6).
type QueryResult struct {
	Kind         QueryResultKind
	Value        value.Value
	PathConsumed []string
}

// Query starts at baseKey and follows named-key path segments through
// Account, Contract, or — per SPEC_FULL.md's supplement — an
// intermediate URef value, exactly as the original execution engine's
// TrackingCopy::query recurses through Key::Hash and Key::URef alike.
func (tc *TrackingCopy) Query(baseKey key.Key, path []string) (QueryResult, error) {
	current, found, err := tc.Read(baseKey)
	if err != nil {
		return QueryResult{}, err
	}
	if !found {
		return QueryResult{Kind: QueryValueNotFound, PathConsumed: path}, nil
	}
	for _, segment := range path {
		namedKeys, ok := namedKeysOf(*current)
		if !ok {
			return QueryResult{Kind: QueryValueNotFound, PathConsumed: path}, nil
		}
		next, ok := namedKeys[segment]
		if !ok {
			return QueryResult{Kind: QueryValueNotFound, PathConsumed: path}, nil
		}
		v, found, err := tc.Read(next)
		if err != nil {
			return QueryResult{}, err
		}
		if !found {
			return QueryResult{Kind: QueryValueNotFound, PathConsumed: path}, nil
		}
		current = v
	}
	return QueryResult{Kind: QuerySuccess, Value: *current}, nil
}

// namedKeysOf extracts the named-key map from whichever of
// Account/Contract/URef-wrapped-Map v happens to be, or ok=false if v
// carries no named keys to traverse through.
func namedKeysOf(v value.Value) (map[string]key.Key, bool) {
	switch v.Tag {
	case value.TagAccount:
		if v.Account == nil {
			return nil, false
		}
		return v.Account.NamedKeys, true
	case value.TagContract:
		if v.Contract == nil {
			return nil, false
		}
		return v.Contract.NamedKeys, true
	case value.TagMap:
		return v.AsMap(), true
	default:
		return nil, false
	}
}

// Effects returns the grouped, left-to-right folded transforms staged so
// far (spec.md §4.C), ready to be handed to state.Store.Apply.
func (tc *TrackingCopy) Effects() (map[key.Key]transform.Transform, error) {
	return transform.Fold(tc.ops)
}

// ErrDiscarded documents the spec.md §4.C invariant: callers must not
// reuse a TrackingCopy after a failing host call — its effects are
// discarded and must never reach the trie. This engine enforces that by
// convention (the engine layer drops the TrackingCopy instance rather
// than folding it), since a TrackingCopy has no notion of its own
// failure state to self-enforce.
var ErrDiscarded = fmt.Errorf("trackingcopy: discarded after failing host call")
