// Package ipc defines the network rules a gateway enforces on bottom-up
// checkpoint batches.
//
// This package provides:
//   - Network identification constants (MainNet, TestNet, FakeNet)
//   - Quorum rules setting the share of validator weight that certifies a batch
//   - Batch shape limits applied when a child subnet commits a batch
//   - The retention policy used when old batches are garbage-collected
//
// The Rules type is the single configuration structure every gateway
// component reads its consensus-relevant parameters from. It is loaded from
// a preset by name and may be overridden by the config file or CLI flags.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// Network identification constants
const (
	// MainNetworkID is the chain ID of the IPC rootnet on mainnet
	MainNetworkID uint64 = 314

	// TestNetworkID is the chain ID of the calibration testnet
	TestNetworkID uint64 = 314159

	// FakeNetworkID is the chain ID used by tests and local fake networks
	FakeNetworkID uint64 = 31415926

	// MinMajorityPercentage keeps a quorum strictly above one half of the
	// membership weight
	MinMajorityPercentage uint8 = 51
)

// ErrInvalidRules is returned by Validate and RulesByName. Callers match it
// with errors.Is; the wrapped message names the offending parameter.
var ErrInvalidRules = errors.New("invalid rules")

// Rules describes the bottom-up checkpointing parameters of a network.
// A Rules value is plain data: it is copied by value and encoded as TOML in
// the gateway config file and as JSON in logs.
type Rules struct {
	Name      string // Preset name the rules were derived from ("main", "test", "fake")
	NetworkID uint64 // Chain ID of the network the gateway runs on

	// Quorum options - share of membership weight that certifies a batch
	Quorum QuorumRules

	// Batch options - limits on what a subnet commits in one batch
	Batches BatchRules

	// Retention options - which batches the pruner may drop
	Retention RetentionPolicy
}

// QuorumRules sets the share of membership weight required to certify a batch.
// A batch is certified once the accumulated weight of its signers reaches
// MajorityPercentage percent of the membership weight frozen at creation.
type QuorumRules struct {
	MajorityPercentage uint8 // In [MinMajorityPercentage, 100]
}

// BatchRules bounds what a child subnet may commit in one batch.
type BatchRules struct {
	// MaxMsgsPerBatch caps the message count of a single batch.
	MaxMsgsPerBatch uint64
	// Period, if non-zero, restricts non-full batches to heights that are a
	// multiple of it. A full batch may be cut at any height.
	Period idx.Block
}

// RetentionPolicy decides which non-executed batches the pruner may drop
// once they fall below the retention height. Executed batches are always
// eligible.
//
// With the zero policy a certified batch below the watermark is kept until it
// executes, and so is a batch that is still collecting signatures.
type RetentionPolicy struct {
	PruneCertified   bool // Drop certified batches that were never executed
	PruneUncertified bool // Drop batches that never reached a quorum
}

// MainNetRules returns the rules of the IPC mainnet.
// Batches are cut every 10 blocks and hold at most 10 messages.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Quorum:    DefaultQuorumRules(),
		Batches: BatchRules{
			MaxMsgsPerBatch: 10,
			Period:          10,
		},
	}
}

// TestNetRules returns the rules of the calibration testnet. They match
// mainnet except for the network ID.
func TestNetRules() Rules {
	return Rules{
		Name:      "test",
		NetworkID: TestNetworkID,
		Quorum:    DefaultQuorumRules(),
		Batches: BatchRules{
			MaxMsgsPerBatch: 10,
			Period:          10,
		},
	}
}

// FakeNetRules are used by tests and local setups: no batch period and a
// larger message cap.
func FakeNetRules() Rules {
	return Rules{
		Name:      "fake",
		NetworkID: FakeNetworkID,
		Quorum:    DefaultQuorumRules(),
		Batches: BatchRules{
			MaxMsgsPerBatch: 100,
		},
	}
}

// DefaultQuorumRules requires 66 percent of the membership weight.
func DefaultQuorumRules() QuorumRules {
	return QuorumRules{MajorityPercentage: 66}
}

// RulesByName resolves a preset by the name used in the --rules flag and in
// Rules.Name.
func RulesByName(name string) (Rules, error) {
	switch name {
	case "main":
		return MainNetRules(), nil
	case "test":
		return TestNetRules(), nil
	case "fake":
		return FakeNetRules(), nil
	}
	return Rules{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidRules, name)
}

// Validate checks the rules are usable. It rejects a majority that does not
// guarantee a unique certified batch per height and a zero message cap, which
// would refuse every batch.
func (r Rules) Validate() error {
	if r.Quorum.MajorityPercentage < MinMajorityPercentage || r.Quorum.MajorityPercentage > 100 {
		return fmt.Errorf("%w: majority percentage %d out of [%d, 100]", ErrInvalidRules, r.Quorum.MajorityPercentage, MinMajorityPercentage)
	}
	if r.Batches.MaxMsgsPerBatch == 0 {
		return fmt.Errorf("%w: max msgs per batch is zero", ErrInvalidRules)
	}
	return nil
}

// Copy returns a copy of the rules. Rules hold no references, so the copy is
// independent of r.
func (r Rules) Copy() Rules {
	return r
}

// String returns the JSON form of the rules, used when logging the active
// configuration at startup.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
