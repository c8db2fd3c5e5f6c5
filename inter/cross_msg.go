package inter

import (
	"errors"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// MaxValueBits bounds every amount a batch carries, matching uint256 on the
// contract side.
const MaxValueBits = 256

var (
	ErrNegativeValue = errors.New("negative message value or fee")
	ErrValueTooLarge = errors.New("message value or fee exceeds 256 bits")
)

// MethodSelector is the 4-byte selector of the method invoked on the recipient.
type MethodSelector [4]byte

// StorableMsg is a single value transfer or call between two IPC addresses.
// Nonce increases strictly per sending address.
type StorableMsg struct {
	From   IPCAddress
	To     IPCAddress
	Value  *big.Int
	Nonce  uint64
	Method MethodSelector
	Params []byte
	Fee    *big.Int
}

// CrossMsg wraps a StorableMsg. Wrapped messages carry an inner message in
// Params that the destination unwraps before execution.
type CrossMsg struct {
	Message StorableMsg
	Wrapped bool
}

// BottomUpMsgBatch is the set of messages a child subnet commits to its parent
// at a given block height.
type BottomUpMsgBatch struct {
	SubnetID    SubnetID
	BlockHeight idx.Block
	Msgs        []CrossMsg
}

// Hash is the digest validators sign: keccak256 over the RLP encoding.
func (b *BottomUpMsgBatch) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(b)
	if err != nil {
		// only reachable with negative big.Int values, see CheckValues
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// TotalValue sums the value carried by every message in the batch.
func (b *BottomUpMsgBatch) TotalValue() *big.Int {
	total := new(big.Int)
	for _, m := range b.Msgs {
		if m.Message.Value != nil {
			total.Add(total, m.Message.Value)
		}
	}
	return total
}

// CheckValues rejects negative amounts, which have no encoding, and amounts
// wider than MaxValueBits. A nil amount counts as zero.
func (b *BottomUpMsgBatch) CheckValues() error {
	for _, m := range b.Msgs {
		if err := CheckAmount(m.Message.Value); err != nil {
			return err
		}
		if err := CheckAmount(m.Message.Fee); err != nil {
			return err
		}
	}
	return nil
}

// CheckAmount validates a single token amount the way CheckValues does.
func CheckAmount(v *big.Int) error {
	switch {
	case v == nil:
		return nil
	case v.Sign() < 0:
		return ErrNegativeValue
	case v.BitLen() > MaxValueBits:
		return ErrValueTooLarge
	}
	return nil
}

// Copy returns a deep copy of the batch.
func (b BottomUpMsgBatch) Copy() BottomUpMsgBatch {
	cp := BottomUpMsgBatch{
		SubnetID:    b.SubnetID.Copy(),
		BlockHeight: b.BlockHeight,
		Msgs:        make([]CrossMsg, len(b.Msgs)),
	}
	for i, m := range b.Msgs {
		cp.Msgs[i] = m.Copy()
	}
	return cp
}

func (s SubnetID) Copy() SubnetID {
	if s.Route == nil {
		return SubnetID{Root: s.Root}
	}
	route := make([]common.Address, len(s.Route))
	copy(route, s.Route)
	return SubnetID{Root: s.Root, Route: route}
}

func (m CrossMsg) Copy() CrossMsg {
	msg := m.Message
	msg.From.Subnet = msg.From.Subnet.Copy()
	msg.To.Subnet = msg.To.Subnet.Copy()
	msg.Value = copyBig(msg.Value)
	msg.Fee = copyBig(msg.Fee)
	msg.Params = common.CopyBytes(msg.Params)
	return CrossMsg{Message: msg, Wrapped: m.Wrapped}
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
