// Package iep (Inter-Epoch Packs) bundles a certified batch with the
// validator signatures that prove it, ready to be relayed to the parent.
package iep

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
)

// CertifiedBatchPack is emitted once per batch, when its quorum is reached.
type CertifiedBatchPack struct {
	Batch             inter.BottomUpMsgBatch
	Hash              common.Hash
	MembershipRoot    common.Hash
	AccumulatedWeight *big.Int
	Signatures        []ibr.Signatory
}

// FromRecord builds the pack from a certified record.
func FromRecord(rec ibr.BatchRecord) CertifiedBatchPack {
	cp := rec.Copy()
	return CertifiedBatchPack{
		Batch:             cp.Batch,
		Hash:              cp.Hash,
		MembershipRoot:    cp.Quorum.MembershipRoot,
		AccumulatedWeight: cp.Quorum.AccumulatedWeight,
		Signatures:        cp.Quorum.Collected,
	}
}

// Signers lists the addresses of the validators in the pack, in signing order.
func (p CertifiedBatchPack) Signers() []common.Address {
	out := make([]common.Address, len(p.Signatures))
	for i, s := range p.Signatures {
		out[i] = s.Validator
	}
	return out
}
