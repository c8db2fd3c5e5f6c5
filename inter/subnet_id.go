package inter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidSubnetID = errors.New("invalid subnet id")

// SubnetID identifies a subnet by the chain id of the rootnet and the path of
// subnet actor addresses leading to it. The rootnet itself has an empty route.
type SubnetID struct {
	Root  uint64
	Route []common.Address
}

// RootSubnet returns the id of the rootnet with the given chain id.
func RootSubnet(chainID uint64) SubnetID {
	return SubnetID{Root: chainID}
}

// NewSubnetID returns the child of parent anchored at actor.
func NewSubnetID(parent SubnetID, actor common.Address) SubnetID {
	route := make([]common.Address, len(parent.Route), len(parent.Route)+1)
	copy(route, parent.Route)
	return SubnetID{Root: parent.Root, Route: append(route, actor)}
}

func (s SubnetID) IsRoot() bool {
	return len(s.Route) == 0
}

func (s SubnetID) Equal(o SubnetID) bool {
	if s.Root != o.Root || len(s.Route) != len(o.Route) {
		return false
	}
	for i := range s.Route {
		if s.Route[i] != o.Route[i] {
			return false
		}
	}
	return true
}

// Parent returns the subnet one level up. The rootnet has no parent.
func (s SubnetID) Parent() (SubnetID, bool) {
	if s.IsRoot() {
		return SubnetID{}, false
	}
	return SubnetID{Root: s.Root, Route: s.Route[:len(s.Route)-1]}, true
}

// CommonParent returns the deepest subnet that is an ancestor of (or equal to)
// both s and o. Subnets under different roots share no parent.
func (s SubnetID) CommonParent(o SubnetID) (SubnetID, bool) {
	if s.Root != o.Root {
		return SubnetID{}, false
	}
	n := 0
	for n < len(s.Route) && n < len(o.Route) && s.Route[n] == o.Route[n] {
		n++
	}
	return SubnetID{Root: s.Root, Route: s.Route[:n]}, true
}

// Contains reports whether o is s itself or one of its descendants.
func (s SubnetID) Contains(o SubnetID) bool {
	parent, ok := s.CommonParent(o)
	return ok && len(parent.Route) == len(s.Route)
}

// IsBottomUp reports whether a message from -> to has to travel up the
// hierarchy at least one level, i.e. from is deeper than the common parent.
func IsBottomUp(from, to SubnetID) bool {
	parent, ok := from.CommonParent(to)
	if !ok {
		return false
	}
	return len(from.Route) > len(parent.Route)
}

// Key is the fixed-size storage key of the subnet.
func (s SubnetID) Key() hash.Hash {
	parts := make([][]byte, 0, len(s.Route)+1)
	parts = append(parts, bigendian.Uint64ToBytes(s.Root))
	for _, a := range s.Route {
		parts = append(parts, a.Bytes())
	}
	return hash.Of(parts...)
}

// String formats the id as /r<root>/<actor>/<actor>...
func (s SubnetID) String() string {
	var sb strings.Builder
	sb.WriteString("/r")
	sb.WriteString(strconv.FormatUint(s.Root, 10))
	for _, a := range s.Route {
		sb.WriteByte('/')
		sb.WriteString(strings.ToLower(a.Hex()))
	}
	return sb.String()
}

// ParseSubnetID is the inverse of SubnetID.String.
func ParseSubnetID(str string) (SubnetID, error) {
	if !strings.HasPrefix(str, "/r") {
		return SubnetID{}, fmt.Errorf("%w: %q has no root prefix", ErrInvalidSubnetID, str)
	}
	parts := strings.Split(str[2:], "/")
	root, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SubnetID{}, fmt.Errorf("%w: root %q: %v", ErrInvalidSubnetID, parts[0], err)
	}
	id := SubnetID{Root: root}
	for _, p := range parts[1:] {
		if !common.IsHexAddress(p) {
			return SubnetID{}, fmt.Errorf("%w: bad actor address %q", ErrInvalidSubnetID, p)
		}
		id.Route = append(id.Route, common.HexToAddress(p))
	}
	return id, nil
}

func (s SubnetID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SubnetID) UnmarshalText(input []byte) error {
	res, err := ParseSubnetID(string(input))
	if err != nil {
		return err
	}
	*s = res
	return nil
}

// IPCAddress is an account qualified by the subnet it lives in.
type IPCAddress struct {
	Subnet SubnetID
	Raw    common.Address
}

func (a IPCAddress) String() string {
	return a.Subnet.String() + ":" + strings.ToLower(a.Raw.Hex())
}
