package gateway

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
	"github.com/consensus-shipyard/ipc-sub004/inter/validatorpk"
	"github.com/consensus-shipyard/ipc-sub004/membership"
)

var big100 = big.NewInt(100)

// QuorumTracker accumulates weighted validator signatures on a quorum record.
// It holds no state: the record belongs to the batch it was opened for.
type QuorumTracker struct {
	members membership.Verifier
	sigs    validatorpk.SignatureVerifier
}

func NewQuorumTracker(members membership.Verifier, sigs validatorpk.SignatureVerifier) *QuorumTracker {
	return &QuorumTracker{
		members: members,
		sigs:    sigs,
	}
}

// Open freezes the membership snapshot of a batch. The threshold is
// ceil(weight * majority / 100). Membership weights are uint256 like every
// other amount.
func (t *QuorumTracker) Open(root common.Hash, weight *big.Int, majority uint8) (ibr.QuorumRecord, error) {
	if weight == nil || weight.Sign() <= 0 {
		return ibr.QuorumRecord{}, fmt.Errorf("%w: membership weight must be positive", ErrZeroMembershipWeight)
	}
	if weight.BitLen() > inter.MaxValueBits {
		return ibr.QuorumRecord{}, fmt.Errorf("%w: membership weight exceeds %d bits", ErrInvalidMembershipWeight, inter.MaxValueBits)
	}
	threshold := new(big.Int).Mul(weight, big.NewInt(int64(majority)))
	threshold.Add(threshold, big.NewInt(99))
	threshold.Div(threshold, big100)
	return ibr.QuorumRecord{
		MembershipRoot:     root,
		MembershipWeight:   new(big.Int).Set(weight),
		MajorityPercentage: majority,
		Threshold:          threshold,
		AccumulatedWeight:  new(big.Int),
	}, nil
}

// Signer recovers the address that produced sig over digest.
func (t *QuorumTracker) Signer(digest common.Hash, sig []byte) (common.Address, error) {
	addr, err := t.sigs.Recover(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return addr, nil
}

// AddSignature records validator's signature over digest with the given
// weight and reports whether the quorum is reached afterwards. On error rec is
// left untouched.
func (t *QuorumTracker) AddSignature(rec *ibr.QuorumRecord, digest common.Hash, validator common.Address, weight *big.Int, proof []common.Hash, sig []byte) (bool, error) {
	if weight == nil || weight.Sign() <= 0 {
		return false, fmt.Errorf("%w: validator %s", ErrZeroMembershipWeight, validator.Hex())
	}
	if rec.HasSigned(validator) {
		return false, fmt.Errorf("%w: validator %s", ErrSignatureReplay, validator.Hex())
	}
	if !t.members.Verify(rec.MembershipRoot, validator, weight, proof) {
		return false, fmt.Errorf("%w: validator %s weight %s not in membership %s", ErrFailedAddSignatory, validator.Hex(), weight, rec.MembershipRoot.Hex())
	}
	signer, err := t.Signer(digest, sig)
	if err != nil {
		return false, err
	}
	if signer != validator {
		return false, fmt.Errorf("%w: signed by %s, not %s", ErrInvalidSignature, signer.Hex(), validator.Hex())
	}

	next := rec.Copy()
	next.AccumulatedWeight.Add(next.AccumulatedWeight, weight)
	next.Collected = append(next.Collected, ibr.Signatory{
		Validator: validator,
		Weight:    new(big.Int).Set(weight),
		Signature: common.CopyBytes(sig),
	})
	next.Reached = IsQuorumReached(&next)
	*rec = next
	return rec.Reached, nil
}

// IsQuorumReached reports accumulated*100 >= membershipWeight*majority.
func IsQuorumReached(rec *ibr.QuorumRecord) bool {
	if rec.AccumulatedWeight == nil || rec.MembershipWeight == nil {
		return false
	}
	lhs := new(big.Int).Mul(rec.AccumulatedWeight, big100)
	rhs := new(big.Int).Mul(rec.MembershipWeight, big.NewInt(int64(rec.MajorityPercentage)))
	return lhs.Cmp(rhs) >= 0
}
