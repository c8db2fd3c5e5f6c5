package inter

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-sub004/utils/cser"
)

func FakeBatch(r *rand.Rand, msgs int) BottomUpMsgBatch {
	child := NewSubnetID(RootSubnet(1), randAddr(r))
	b := BottomUpMsgBatch{
		SubnetID:    child,
		BlockHeight: idx.Block(r.Uint32()) + 1,
	}
	for i := 0; i < msgs; i++ {
		msg := StorableMsg{
			From:  IPCAddress{Subnet: child, Raw: randAddr(r)},
			To:    IPCAddress{Subnet: RootSubnet(1), Raw: randAddr(r)},
			Value: big.NewInt(r.Int63n(1000) + 1),
			Nonce: uint64(i),
			Fee:   big.NewInt(r.Int63n(10) + 1),
		}
		r.Read(msg.Method[:])
		if i%2 == 0 {
			msg.Params = randBytes(r, 1+r.Intn(64))
		}
		b.Msgs = append(b.Msgs, CrossMsg{Message: msg, Wrapped: i%3 == 0})
	}
	return b
}

func TestBatchSerialization_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for _, n := range []int{0, 1, 7, 64} {
		batch := FakeBatch(r, n)
		buf, err := batch.MarshalBinary()
		require.NoError(t, err)

		var got BottomUpMsgBatch
		require.NoError(t, got.UnmarshalBinary(buf))
		require.Equal(t, batch.SubnetID, got.SubnetID)
		require.Equal(t, batch.BlockHeight, got.BlockHeight)
		require.Len(t, got.Msgs, n)
		for i := range batch.Msgs {
			require.Equal(t, batch.Msgs[i].Message.Nonce, got.Msgs[i].Message.Nonce)
			require.Equal(t, batch.Msgs[i].Message.Params, got.Msgs[i].Message.Params)
			require.Zero(t, batch.Msgs[i].Message.Value.Cmp(got.Msgs[i].Message.Value))
			require.Equal(t, batch.Msgs[i].Wrapped, got.Msgs[i].Wrapped)
		}
		require.Equal(t, batch.Hash(), got.Hash())
	}
}

func TestBatchSerialization_NilAmounts(t *testing.T) {
	batch := BottomUpMsgBatch{
		SubnetID:    NewSubnetID(RootSubnet(1), actorA),
		BlockHeight: 10,
		Msgs:        []CrossMsg{{Message: StorableMsg{Nonce: 3}}},
	}
	buf, err := batch.MarshalBinary()
	require.NoError(t, err)

	var got BottomUpMsgBatch
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Nil(t, got.Msgs[0].Message.Value)
	require.Nil(t, got.Msgs[0].Message.Fee)
	require.Equal(t, batch.Hash(), got.Hash())
}

func TestBatchSerialization_Corrupted(t *testing.T) {
	batch := FakeBatch(rand.New(rand.NewSource(1)), 3)
	buf, err := batch.MarshalBinary()
	require.NoError(t, err)

	var got BottomUpMsgBatch
	require.Error(t, got.UnmarshalBinary(buf[:len(buf)/2]))
	require.ErrorIs(t, got.UnmarshalBinary(nil), cser.ErrMalformedEncoding)
	require.Error(t, got.UnmarshalBinary(append([]byte{0x01}, buf...)))

	batch.Msgs[0].Message.Value = big.NewInt(-1)
	_, err = batch.MarshalBinary()
	require.ErrorIs(t, err, ErrNegativeValue)

	batch.Msgs[0].Message.Value = nil
	batch.Msgs[1].Message.Fee = new(big.Int).Lsh(big.NewInt(1), 5000)
	_, err = batch.MarshalBinary()
	require.ErrorIs(t, err, ErrValueTooLarge)
}

func TestCheckAmount(t *testing.T) {
	uint256Max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), MaxValueBits), big.NewInt(1))
	require.NoError(t, CheckAmount(nil))
	require.NoError(t, CheckAmount(new(big.Int)))
	require.NoError(t, CheckAmount(uint256Max))
	require.ErrorIs(t, CheckAmount(new(big.Int).Add(uint256Max, big.NewInt(1))), ErrValueTooLarge)
	require.ErrorIs(t, CheckAmount(big.NewInt(-5)), ErrNegativeValue)
}

func TestBatchHash(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	batch := FakeBatch(r, 4)
	cp := batch.Copy()
	require.Equal(t, batch.Hash(), cp.Hash())

	cp.Msgs[1].Message.Nonce++
	require.NotEqual(t, batch.Hash(), cp.Hash())

	cp = batch.Copy()
	cp.Msgs[0].Message.Value.Add(cp.Msgs[0].Message.Value, big.NewInt(1))
	require.NotEqual(t, batch.Hash(), cp.Hash())
	require.Equal(t, batch.TotalValue().Int64()+1, cp.TotalValue().Int64())
}

func randAddr(r *rand.Rand) common.Address {
	var a common.Address
	r.Read(a[:])
	return a
}

func randBytes(r *rand.Rand, size int) []byte {
	b := make([]byte, size)
	r.Read(b)
	return b
}
