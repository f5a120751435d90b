package engine

import (
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/trackingcopy"
	"github.com/casper-ee/execengine/value"
)

// QueryResponseKind discriminates Query's outcome (spec.md §6's "query"
// operation: Success(Value) | Failure(message)).
type QueryResponseKind int

const (
	QuerySuccess QueryResponseKind = iota
	QueryFailure
)

// QueryResponse is "query"'s result.
type QueryResponse struct {
	Kind    QueryResponseKind
	Value   value.Value
	Message string
}

// Query resolves baseKey and walks path through its named keys, reading
// against the state committed at stateHash (spec.md §8 Invariant 6:
// query(R, k, []) must equal a direct read at R of k). A path segment
// that doesn't resolve, or an unknown stateHash, both surface as
// Failure — this engine draws no distinction between "root missing" and
// "path missing" at the query boundary, since both describe nothing
// usable being found.
func (s *State) Query(stateHash key.Address, baseKey key.Key, path []string) QueryResponse {
	view, ok, err := s.store.Checkout(stateHash)
	if err != nil {
		observe("query", "storage_error")
		return QueryResponse{Kind: QueryFailure, Message: err.Error()}
	}
	if !ok {
		observe("query", "root_not_found")
		return QueryResponse{Kind: QueryFailure, Message: "unknown state hash"}
	}

	tc := trackingcopy.New(view)
	result, err := tc.Query(baseKey, path)
	if err != nil {
		observe("query", "error")
		return QueryResponse{Kind: QueryFailure, Message: err.Error()}
	}
	if result.Kind == trackingcopy.QueryValueNotFound {
		observe("query", "value_not_found")
		return QueryResponse{Kind: QueryFailure, Message: "value not found at path " + joinPath(result.PathConsumed)}
	}
	observe("query", "success")
	return QueryResponse{Kind: QuerySuccess, Value: result.Value}
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
