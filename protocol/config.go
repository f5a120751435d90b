// Package protocol holds the versioned, YAML-loaded constants that
// govern deploy execution: the host-call gas table, the WASM sandbox
// caps, and the minimum protocol version a node will execute against.
// Every engine and runtime component that needs one of these values
// takes it from a Config rather than hardcoding it, so a network can
// evolve its protocol by shipping a new YAML file instead of a binary.
package protocol

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/casper-ee/execengine/xenv"
)

// Version identifies a protocol revision. Deploys carry the version
// they were built against; engine.State.Commit rejects one older than
// Config.MinProtocolVersion.
type Version uint32

// GasCosts mirrors xenv.GasCosts with yaml tags, so the table can be
// authored by hand in a config file and decoded straight into the
// engine's gas meter.
type GasCosts struct {
	GetArg       uint64 `yaml:"get_arg"`
	GetKey       uint64 `yaml:"get_key"`
	PutKey       uint64 `yaml:"put_key"`
	Read         uint64 `yaml:"read"`
	Write        uint64 `yaml:"write"`
	Add          uint64 `yaml:"add"`
	NewURef      uint64 `yaml:"new_uref"`
	CallContract uint64 `yaml:"call_contract"`
	Revert       uint64 `yaml:"revert"`
	ManageKey    uint64 `yaml:"manage_key"`
	SetThreshold uint64 `yaml:"set_threshold"`
	TransferToAccount uint64 `yaml:"transfer_to_account"`
}

// AsXenv converts to the xenv package's runtime representation.
func (g GasCosts) AsXenv() xenv.GasCosts {
	return xenv.GasCosts{
		GetArg:       g.GetArg,
		GetKey:       g.GetKey,
		PutKey:       g.PutKey,
		Read:         g.Read,
		Write:        g.Write,
		Add:          g.Add,
		NewURef:      g.NewURef,
		CallContract: g.CallContract,
		Revert:       g.Revert,
		ManageKey:    g.ManageKey,
		SetThreshold: g.SetThreshold,
		TransferToAccount: g.TransferToAccount,
	}
}

// Config is the full set of protocol parameters a node enforces.
type Config struct {
	MinProtocolVersion Version  `yaml:"min_protocol_version"`
	MaxCallDepth       int      `yaml:"max_call_depth"`
	MaxMemoryPages     uint32   `yaml:"max_memory_pages"`
	MaxWasmCodeBytes   int      `yaml:"max_wasm_code_bytes"`
	GasCosts           GasCosts `yaml:"gas_costs"`
}

// Default is the config a fresh genesis bootstraps with, matching
// xenv.DefaultGasCosts and runtime.MaxLinearMemoryPages.
func Default() Config {
	return Config{
		MinProtocolVersion: 1,
		MaxCallDepth:       8,
		MaxMemoryPages:     64,
		MaxWasmCodeBytes:   4 * 1024 * 1024,
		GasCosts: GasCosts{
			GetArg:       xenv.DefaultGasCosts.GetArg,
			GetKey:       xenv.DefaultGasCosts.GetKey,
			PutKey:       xenv.DefaultGasCosts.PutKey,
			Read:         xenv.DefaultGasCosts.Read,
			Write:        xenv.DefaultGasCosts.Write,
			Add:          xenv.DefaultGasCosts.Add,
			NewURef:      xenv.DefaultGasCosts.NewURef,
			CallContract: xenv.DefaultGasCosts.CallContract,
			Revert:       xenv.DefaultGasCosts.Revert,
			ManageKey:    xenv.DefaultGasCosts.ManageKey,
			SetThreshold: xenv.DefaultGasCosts.SetThreshold,
			TransferToAccount: xenv.DefaultGasCosts.TransferToAccount,
		},
	}
}

// Load reads and decodes a protocol config from a YAML file, filling
// any field the file omits from Default().
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("protocol: read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("protocol: decode config: %w", err)
	}
	return cfg, nil
}

// ErrProtocolVersionTooOld is returned when an execute or commit request
// names a protocol version below Config.MinProtocolVersion.
type ErrProtocolVersionTooOld struct {
	Requested Version
	Minimum   Version
}

func (e *ErrProtocolVersionTooOld) Error() string {
	return fmt.Sprintf("protocol: version %d is below the minimum supported version %d", e.Requested, e.Minimum)
}

// Check rejects a deploy's declared protocol version against the
// floor this config enforces.
func (c Config) Check(requested Version) error {
	if requested < c.MinProtocolVersion {
		return &ErrProtocolVersionTooOld{Requested: requested, Minimum: c.MinProtocolVersion}
	}
	return nil
}
