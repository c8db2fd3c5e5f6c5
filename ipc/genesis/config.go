// Package genesis describes the initial state of a gateway: the network it
// runs on, the privileged actors, and the child subnets registered at start.
//
// A genesis is loaded from a TOML file:
//
//	Network = "/r314159"
//	SystemActor = "0x00000000000000000000000000000000000000ff"
//	Relayers = ["0x..."]
//
//	[[Subnets]]
//	ID = "/r314159/0x..."
//	Origin = "0x..."
//	CircSupply = "1000000000000000000"
//
//	[[Subnets.Validators]]
//	PubKey = "0xc004..."
//	Weight = "100"
//
// A subnet's validator set is optional. When present, the gateway commits to
// it with a membership tree and serves proofs against that tree to the
// validators that sign the subnet's batches.
package genesis

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/BurntSushi/toml"
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/validatorpk"
)

var ErrInvalidGenesis = errors.New("invalid genesis")

// Validator is a genesis member of a subnet's validator set. Its address is
// derived from the public key.
type Validator struct {
	PubKey validatorpk.PubKey
	Weight *big.Int
}

// Subnet is a child subnet registered at genesis.
type Subnet struct {
	ID         inter.SubnetID
	Origin     common.Address
	CircSupply *big.Int
	Validators []Validator
}

// ValidatorSet resolves the validators of s into the set the gateway stores.
// Members without weight are left out, as they can never add to a quorum.
func (s Subnet) ValidatorSet() (inter.Validators, error) {
	vv := make(inter.Validators, 0, len(s.Validators))
	for i, gv := range s.Validators {
		if gv.PubKey.Empty() {
			return nil, fmt.Errorf("%w: subnet %s validator %d has no public key", ErrInvalidGenesis, s.ID, i)
		}
		addr, err := gv.PubKey.Address()
		if err != nil {
			return nil, fmt.Errorf("%w: subnet %s validator %d: %v", ErrInvalidGenesis, s.ID, i, err)
		}
		if err := inter.CheckAmount(gv.Weight); err != nil {
			return nil, fmt.Errorf("%w: subnet %s validator %s: %v", ErrInvalidGenesis, s.ID, addr.Hex(), err)
		}
		v := inter.Validator{
			Addr:     addr,
			Weight:   new(big.Int),
			Metadata: gv.PubKey.Bytes(),
		}
		if gv.Weight != nil {
			v.Weight.Set(gv.Weight)
		}
		if !v.HasWeight() {
			continue
		}
		if _, dup := vv.Get(addr); dup {
			return nil, fmt.Errorf("%w: subnet %s lists validator %s twice", ErrInvalidGenesis, s.ID, addr.Hex())
		}
		vv = append(vv, v)
	}
	return vv, nil
}

// Genesis is the initial gateway state.
type Genesis struct {
	// Network is the subnet this gateway executes messages for.
	Network     inter.SubnetID
	SystemActor common.Address
	Relayers    []common.Address
	Subnets     []Subnet
}

// Load decodes a TOML genesis file.
func Load(path string) (Genesis, error) {
	var g Genesis
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return Genesis{}, fmt.Errorf("%w: %v", ErrInvalidGenesis, err)
	}
	return g, g.Validate()
}

// Decode parses a TOML genesis document.
func Decode(data string) (Genesis, error) {
	var g Genesis
	if _, err := toml.Decode(data, &g); err != nil {
		return Genesis{}, fmt.Errorf("%w: %v", ErrInvalidGenesis, err)
	}
	return g, g.Validate()
}

// Validate checks every subnet is a direct child of Network and appears once.
func (g Genesis) Validate() error {
	if g.SystemActor == (common.Address{}) {
		return fmt.Errorf("%w: system actor is not set", ErrInvalidGenesis)
	}
	seen := make(map[string]bool, len(g.Subnets))
	for _, s := range g.Subnets {
		parent, ok := s.ID.Parent()
		if !ok || !parent.Equal(g.Network) {
			return fmt.Errorf("%w: subnet %s is not a child of %s", ErrInvalidGenesis, s.ID, g.Network)
		}
		if seen[s.ID.String()] {
			return fmt.Errorf("%w: subnet %s is listed twice", ErrInvalidGenesis, s.ID)
		}
		seen[s.ID.String()] = true
		if err := inter.CheckAmount(s.CircSupply); err != nil {
			return fmt.Errorf("%w: subnet %s supply: %v", ErrInvalidGenesis, s.ID, err)
		}
		if _, err := s.ValidatorSet(); err != nil {
			return err
		}
	}
	return nil
}

// FakeValidatorsNum is the size of the validator set of every fake subnet.
const FakeValidatorsNum = 3

// FakeKey returns the deterministic key of fake validator n.
func FakeKey(n int) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256(bigendian.Uint64ToBytes(uint64(n + 1))))
	if err != nil {
		panic(err)
	}
	return key
}

// FakeGenesis registers n child subnets of network, each originated by its
// own actor address and validated by the same FakeValidatorsNum fake keys
// with equal weight.
func FakeGenesis(network inter.SubnetID, n int, supply *big.Int) Genesis {
	g := Genesis{
		Network:     network,
		SystemActor: common.HexToAddress("0xff"),
		Relayers:    []common.Address{common.HexToAddress("0xfe")},
	}
	for i := 0; i < n; i++ {
		actor := common.BigToAddress(big.NewInt(int64(0x1000 + i)))
		validators := make([]Validator, FakeValidatorsNum)
		for v := range validators {
			validators[v] = Validator{
				PubKey: validatorpk.FromECDSA(&FakeKey(v).PublicKey),
				Weight: big.NewInt(1),
			}
		}
		g.Subnets = append(g.Subnets, Subnet{
			ID:         inter.NewSubnetID(network, actor),
			Origin:     actor,
			CircSupply: new(big.Int).Set(supply),
			Validators: validators,
		})
	}
	return g
}
