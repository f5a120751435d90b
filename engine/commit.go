package engine

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/transform"
)

// CommitRequest is spec.md §6's "commit" operation: the folded effects
// of one or more already-executed deploys, applied atop prestateHash by
// whatever external consensus process decided to keep them (spec.md
// §4.F: the engine itself never commits a deploy's own effects —
// execute only returns them).
type CommitRequest struct {
	PrestateHash    key.Address
	Effects         map[key.Key]transform.Transform
	ProtocolVersion protocol.Version
}

// CommitResponse mirrors state.CommitResult at the process boundary,
// plus the protocol-version check Execute also performs.
type CommitResponse struct {
	Kind             state.CommitResultKind
	PoststateHash    key.Address
	BondedValidators []state.ValidatorBond
	FailedKey        key.Key
	Expected, Actual string
}

// Commit applies req.Effects to the trie committed at req.PrestateHash,
// producing a new root and the post-commit bonded-validator set (spec.md
// §4.G: commit is how the engine learns who is bonded after a deploy
// that called proof-of-stake's bond/unbond methods).
func (s *State) Commit(req CommitRequest) CommitResponse {
	if err := s.cfg.Check(req.ProtocolVersion); err != nil {
		observe("commit", "invalid_protocol_version")
		return CommitResponse{Kind: state.CommitStorageError}
	}
	result := s.store.Apply(req.PrestateHash, req.Effects)
	observe("commit", commitOutcomeLabel(result.Kind))
	return CommitResponse{
		Kind:             result.Kind,
		PoststateHash:    result.NewRoot,
		BondedValidators: result.BondedValidators,
		FailedKey:        result.FailedKey,
		Expected:         result.Expected,
		Actual:           result.Actual,
	}
}

func commitOutcomeLabel(kind state.CommitResultKind) string {
	switch kind {
	case state.CommitSuccess:
		return "success"
	case state.CommitRootNotFound:
		return "missing_prestate"
	case state.CommitKeyNotFound:
		return "key_not_found"
	case state.CommitTypeMismatch:
		return "type_mismatch"
	case state.CommitOverflow:
		return "overflow"
	case state.CommitStorageError:
		return "storage_error"
	default:
		return fmt.Sprintf("kind(%d)", kind)
	}
}
