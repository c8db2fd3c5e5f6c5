// Package ibr (Inter-Batch Records) defines the persisted state of a bottom-up
// batch: the batch itself, its lifecycle status and the quorum record that
// accumulates validator signatures for it.
package ibr

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/consensus-shipyard/ipc-sub004/inter"
)

// Status is the lifecycle position of a batch.
type Status uint8

const (
	Created Status = iota
	Collecting
	Certified
	Executed
	Pruned
)

func (s Status) String() string {
	switch s {
	case Created:
		return "Created"
	case Collecting:
		return "Collecting"
	case Certified:
		return "Certified"
	case Executed:
		return "Executed"
	case Pruned:
		return "Pruned"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// MarshalText lets the status travel as a string in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(input []byte) error {
	for st := Created; st <= Pruned; st++ {
		if st.String() == string(input) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown batch status %q", input)
}

// Signatory is one accepted validator signature.
type Signatory struct {
	Validator common.Address
	Weight    *big.Int
	Signature []byte
}

// QuorumRecord is the signature accumulator of a single batch. Membership
// fields are fixed when the batch opens.
type QuorumRecord struct {
	MembershipRoot     common.Hash
	MembershipWeight   *big.Int
	MajorityPercentage uint8
	Threshold          *big.Int
	Collected          []Signatory
	AccumulatedWeight  *big.Int
	Reached            bool
}

// HasSigned reports whether addr already contributed to the record.
func (q *QuorumRecord) HasSigned(addr common.Address) bool {
	for _, s := range q.Collected {
		if s.Validator == addr {
			return true
		}
	}
	return false
}

// Copy returns a deep copy of the record.
func (q QuorumRecord) Copy() QuorumRecord {
	cp := q
	cp.MembershipWeight = copyBig(q.MembershipWeight)
	cp.Threshold = copyBig(q.Threshold)
	cp.AccumulatedWeight = copyBig(q.AccumulatedWeight)
	cp.Collected = make([]Signatory, len(q.Collected))
	for i, s := range q.Collected {
		cp.Collected[i] = Signatory{
			Validator: s.Validator,
			Weight:    copyBig(s.Weight),
			Signature: common.CopyBytes(s.Signature),
		}
	}
	return cp
}

// BatchRecord is what the store keeps per (subnet, height).
type BatchRecord struct {
	Batch  inter.BottomUpMsgBatch
	Hash   common.Hash
	Status Status
	Quorum QuorumRecord
}

// Copy returns a deep copy of the record.
func (r BatchRecord) Copy() BatchRecord {
	return BatchRecord{
		Batch:  r.Batch.Copy(),
		Hash:   r.Hash,
		Status: r.Status,
		Quorum: r.Quorum.Copy(),
	}
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
