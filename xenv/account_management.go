package xenv

import (
	"fmt"

	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/value"
)

// ThresholdKind discriminates which of an Account's two action
// thresholds set_action_threshold targets (SPEC_FULL.md §3 supplement).
type ThresholdKind int

const (
	ThresholdDeployment ThresholdKind = iota
	ThresholdKeyManagement
)

// ErrKeyManagementThreshold is returned when the caller's own
// authorization weight does not meet the account's key_management
// threshold, required to mutate associated keys or thresholds at all.
type ErrKeyManagementThreshold struct{}

func (e *ErrKeyManagementThreshold) Error() string {
	return "xenv: caller does not meet key_management threshold"
}

// ErrRemovingLastKey is returned when removing an associated key would
// leave the account unable to meet its own key_management threshold.
type ErrRemovingLastKey struct{}

func (e *ErrRemovingLastKey) Error() string {
	return "xenv: removing this key would drop authorized weight below key_management threshold"
}

// ErrInvalidThreshold is returned when a requested threshold could never
// be met by the account's current associated keys.
type ErrInvalidThreshold struct{}

func (e *ErrInvalidThreshold) Error() string {
	return "xenv: requested threshold is unsatisfiable by current associated keys"
}

// callerAccount loads the Account stored at accountKey, as the subject
// every account-management call mutates.
func (e *Environment) callerAccount(accountKey key.Key) (*value.Account, error) {
	v, found, err := e.tc.Read(accountKey)
	if err != nil {
		return nil, err
	}
	if !found || v.Tag != value.TagAccount || v.Account == nil {
		return nil, fmt.Errorf("xenv: %s does not address an Account", accountKey)
	}
	return v.Account, nil
}

// AddAssociatedKey inserts or replaces pubkey's authorization weight on
// the account at accountKey, provided authorizingKeys' summed weight
// meets the account's key_management threshold.
func (e *Environment) AddAssociatedKey(accountKey key.Key, authorizingKeys []key.Address, pubkey key.Address, weight value.Weight) error {
	if err := e.gas.Charge("add_associated_key", e.costs.ManageKey); err != nil {
		return err
	}
	acc, err := e.callerAccount(accountKey)
	if err != nil {
		return err
	}
	if !acc.MeetsThreshold(authorizingKeys, acc.ActionThresholds.KeyManagement) {
		return &ErrKeyManagementThreshold{}
	}
	updated := cloneAccount(acc)
	if updated.AssociatedKeys == nil {
		updated.AssociatedKeys = make(map[key.Address]value.Weight)
	}
	updated.AssociatedKeys[pubkey] = weight
	e.tc.Write(accountKey, value.FromAccount(updated))
	return nil
}

// RemoveAssociatedKey removes pubkey from the account's associated keys,
// refusing if doing so would drop the account's own authorized weight
// below its key_management threshold.
func (e *Environment) RemoveAssociatedKey(accountKey key.Key, authorizingKeys []key.Address, pubkey key.Address) error {
	if err := e.gas.Charge("remove_associated_key", e.costs.ManageKey); err != nil {
		return err
	}
	acc, err := e.callerAccount(accountKey)
	if err != nil {
		return err
	}
	if !acc.MeetsThreshold(authorizingKeys, acc.ActionThresholds.KeyManagement) {
		return &ErrKeyManagementThreshold{}
	}
	updated := cloneAccount(acc)
	delete(updated.AssociatedKeys, pubkey)
	remaining := make([]key.Address, 0, len(updated.AssociatedKeys))
	for addr := range updated.AssociatedKeys {
		remaining = append(remaining, addr)
	}
	if !updated.MeetsThreshold(remaining, updated.ActionThresholds.KeyManagement) {
		return &ErrRemovingLastKey{}
	}
	e.tc.Write(accountKey, value.FromAccount(updated))
	return nil
}

// SetActionThreshold updates one of the account's two thresholds,
// refusing a value its current associated keys could never satisfy.
func (e *Environment) SetActionThreshold(accountKey key.Key, authorizingKeys []key.Address, kind ThresholdKind, weight value.Weight) error {
	if err := e.gas.Charge("set_action_threshold", e.costs.SetThreshold); err != nil {
		return err
	}
	acc, err := e.callerAccount(accountKey)
	if err != nil {
		return err
	}
	if !acc.MeetsThreshold(authorizingKeys, acc.ActionThresholds.KeyManagement) {
		return &ErrKeyManagementThreshold{}
	}
	var total value.Weight
	for _, w := range acc.AssociatedKeys {
		total += w
	}
	if weight > total {
		return &ErrInvalidThreshold{}
	}
	updated := cloneAccount(acc)
	switch kind {
	case ThresholdDeployment:
		updated.ActionThresholds.Deployment = weight
	case ThresholdKeyManagement:
		updated.ActionThresholds.KeyManagement = weight
	}
	e.tc.Write(accountKey, value.FromAccount(updated))
	return nil
}

func cloneAccount(a *value.Account) *value.Account {
	cp := *a
	cp.AssociatedKeys = make(map[key.Address]value.Weight, len(a.AssociatedKeys))
	for k, w := range a.AssociatedKeys {
		cp.AssociatedKeys[k] = w
	}
	cp.NamedKeys = make(map[string]key.Key, len(a.NamedKeys))
	for name, k := range a.NamedKeys {
		cp.NamedKeys[name] = k
	}
	return &cp
}
