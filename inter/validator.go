package inter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Validator is a member of a subnet's validator set. Metadata holds the
// validator's public key bytes and is opaque to the gateway.
type Validator struct {
	Addr     common.Address
	Weight   *big.Int
	Metadata []byte
}

// HasWeight reports whether the validator can contribute to a quorum.
func (v Validator) HasWeight() bool {
	return v.Weight != nil && v.Weight.Sign() > 0
}

// Validators is an ordered validator set.
type Validators []Validator

// TotalWeight sums the weight of every member.
func (vv Validators) TotalWeight() *big.Int {
	total := new(big.Int)
	for _, v := range vv {
		if v.Weight != nil {
			total.Add(total, v.Weight)
		}
	}
	return total
}

// Copy returns a deep copy of the set.
func (vv Validators) Copy() Validators {
	if vv == nil {
		return nil
	}
	cp := make(Validators, len(vv))
	for i, v := range vv {
		cp[i] = Validator{
			Addr:     v.Addr,
			Weight:   copyBig(v.Weight),
			Metadata: common.CopyBytes(v.Metadata),
		}
	}
	return cp
}

// Get returns the member with the given address.
func (vv Validators) Get(addr common.Address) (Validator, bool) {
	for _, v := range vv {
		if v.Addr == addr {
			return v, true
		}
	}
	return Validator{}, false
}
