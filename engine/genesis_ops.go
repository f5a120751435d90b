package engine

import (
	"github.com/casper-ee/execengine/genesis"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/state"
	"github.com/casper-ee/execengine/transform"
)

// GenesisResponse is shared by spec.md §6's "run_genesis" and "upgrade"
// operations: both install system state and commit it as a new root,
// differing only in whether they start from the empty trie or an
// existing one.
type GenesisResponse struct {
	Failed        bool
	PoststateHash key.Address
	Effect        map[key.Key]transform.Transform
	Message       string
}

// RunGenesis builds g atop the empty trie and commits it, installing the
// mint and proof-of-stake system contracts plus every configured account
// and validator (spec.md §4.G).
func (s *State) RunGenesis(g *genesis.Genesis) GenesisResponse {
	return s.buildGenesisLike(g, key.Address{}, "run_genesis")
}

// Upgrade runs g atop the state already committed at parent, the same
// installation run_genesis performs but without discarding prior history
// (spec.md §6's "upgrade" operation — a protocol version bump or a
// reseeding of proof-of-stake's constants atop a live chain).
func (s *State) Upgrade(g *genesis.Genesis, parent key.Address) GenesisResponse {
	return s.buildGenesisLike(g, parent, "upgrade")
}

func (s *State) buildGenesisLike(g *genesis.Genesis, parent key.Address, operation string) GenesisResponse {
	effect, err := g.Effects(s.store, parent)
	if err != nil {
		observe(operation, "failed_deploy")
		return GenesisResponse{Failed: true, Message: err.Error()}
	}
	result := s.store.Apply(parent, effect)
	if result.Kind != state.CommitSuccess {
		observe(operation, "failed_deploy")
		return GenesisResponse{Failed: true, Message: commitOutcomeLabel(result.Kind)}
	}
	observe(operation, "success")
	return GenesisResponse{PoststateHash: result.NewRoot, Effect: effect}
}
