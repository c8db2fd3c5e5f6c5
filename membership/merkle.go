// Package membership commits to a validator set as a Merkle tree over
// (address, weight) leaves and verifies membership proofs against its root.
//
// Leaves are keccak256(keccak256(abi.encode(address, uint256))) and inner
// nodes hash the sorted pair of their children, so a proof is just the list
// of sibling hashes from leaf to root.
package membership

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/consensus-shipyard/ipc-sub004/inter"
)

var (
	ErrEmptyMembership = errors.New("empty membership")
	ErrNotMember       = errors.New("validator is not a member")
	ErrDuplicateMember = errors.New("duplicate member")
)

var leafArgs = func() abi.Arguments {
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: addressTy}, {Type: uint256Ty}}
}()

// Verifier authenticates (validator, weight) against a membership root.
type Verifier interface {
	Verify(root common.Hash, validator common.Address, weight *big.Int, proof []common.Hash) bool
}

// Leaf computes the leaf hash of a member.
func Leaf(addr common.Address, weight *big.Int) (common.Hash, error) {
	if weight == nil || weight.Sign() < 0 {
		return common.Hash{}, errors.New("negative weight")
	}
	enc, err := leafArgs.Pack(addr, weight)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(crypto.Keccak256(enc)), nil
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// MerkleVerifier checks sorted-pair Merkle proofs.
type MerkleVerifier struct{}

func (MerkleVerifier) Verify(root common.Hash, validator common.Address, weight *big.Int, proof []common.Hash) bool {
	node, err := Leaf(validator, weight)
	if err != nil {
		return false
	}
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

// Tree is a membership commitment over a validator set.
type Tree struct {
	levels [][]common.Hash
	index  map[common.Address]int
	total  *big.Int
}

// NewTree commits to vv. Member order does not affect the root.
func NewTree(vv inter.Validators) (*Tree, error) {
	if len(vv) == 0 {
		return nil, ErrEmptyMembership
	}
	leaves := make([]common.Hash, 0, len(vv))
	byLeaf := make(map[common.Hash]common.Address, len(vv))
	for _, v := range vv {
		leaf, err := Leaf(v.Addr, v.Weight)
		if err != nil {
			return nil, err
		}
		if _, ok := byLeaf[leaf]; ok {
			return nil, ErrDuplicateMember
		}
		byLeaf[leaf] = v.Addr
		leaves = append(leaves, leaf)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})

	t := &Tree{
		index: make(map[common.Address]int, len(leaves)),
		total: vv.TotalWeight(),
	}
	for i, leaf := range leaves {
		addr := byLeaf[leaf]
		if _, ok := t.index[addr]; ok {
			return nil, ErrDuplicateMember
		}
		t.index[addr] = i
	}

	level := leaves
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

// TotalWeight is the membership weight the root commits to.
func (t *Tree) TotalWeight() *big.Int {
	return new(big.Int).Set(t.total)
}

// Proof returns the sibling path of addr.
func (t *Tree) Proof(addr common.Address) ([]common.Hash, error) {
	pos, ok := t.index[addr]
	if !ok {
		return nil, ErrNotMember
	}
	var proof []common.Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		pos /= 2
	}
	return proof, nil
}
