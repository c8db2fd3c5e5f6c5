package gateway

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
	"github.com/consensus-shipyard/ipc-sub004/inter/validatorpk"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
	"github.com/consensus-shipyard/ipc-sub004/ipc/genesis"
	"github.com/consensus-shipyard/ipc-sub004/membership"
)

func TestCreateBatch(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	b := e.batch(10, 0, 1)
	rec := e.mustCreate(b)
	require.Equal(ibr.Created, rec.Status)
	require.Equal(b.Hash(), rec.Hash)
	require.Zero(big.NewInt(66).Cmp(rec.Quorum.Threshold))
	require.Equal(e.tree.Root(), rec.Quorum.MembershipRoot)

	got, ok, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, 10)
	require.NoError(err)
	require.True(ok)
	require.Equal(rec.Hash, got.Hash)
	require.Equal(rec.Hash, got.Batch.Hash())
	require.Equal(ibr.Created, got.Status)

	incomplete, err := e.gw.IncompleteBatches(ctxTODO, e.subnet)
	require.NoError(err)
	require.Equal([]idx.Block{10}, incomplete)

	_, err = e.create(b)
	require.ErrorIs(err, ErrBatchAlreadyExists)
	require.Equal(KindStateConflict, KindOf(err))

	require.Equal(1.0, testutil.ToFloat64(e.gw.metrics.batchesCreated))
}

func TestCreateBatchValidation(t *testing.T) {
	e := newTestEnv(t, ipc.FakeNetRules())
	e.mustCreate(e.batch(20, 0))

	tooMany := make([]uint64, 101)
	negative := e.batch(30, 0)
	negative.Msgs[0].Message.Value = big.NewInt(-1)
	hugeFee := e.batch(30, 0)
	hugeFee.Msgs[0].Message.Fee = new(big.Int).Lsh(big.NewInt(1), 5000)
	hugeWeight := new(big.Int).Lsh(big.NewInt(1), 256)

	for name, tc := range map[string]struct {
		batch  inter.BottomUpMsgBatch
		weight *big.Int
		expect error
	}{
		"empty":            {e.batch(30), nil, ErrBatchWithNoMessages},
		"too many msgs":    {e.batch(30, tooMany...), nil, ErrMaxMsgsPerBatchExceeded},
		"negative value":   {negative, nil, ErrInvalidCrossMsgValue},
		"fee too large":    {hugeFee, nil, ErrInvalidCrossMsgValue},
		"not increasing":   {e.batch(15, 0), nil, ErrInvalidBatchEpoch},
		"zero weight":      {e.batch(30, 0), new(big.Int), ErrZeroMembershipWeight},
		"weight too large": {e.batch(30, 0), hugeWeight, ErrInvalidMembershipWeight},
	} {
		t.Run(name, func(t *testing.T) {
			weight := e.tree.TotalWeight()
			if tc.weight != nil {
				weight = tc.weight
			}
			_, err := e.gw.CreateBottomUpMsgBatch(ctxTODO, e.origin, tc.batch, e.tree.Root(), weight)
			require.ErrorIs(t, err, tc.expect)
			require.Equal(t, KindValidation, KindOf(err))
		})
	}

	// nothing was stored, so the subnet can still be read and pruned
	_, ok, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, 30)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, e.subnet, 25)
	require.NoError(t, err)
	retention, err := e.gw.RetentionHeight(ctxTODO, e.subnet)
	require.NoError(t, err)
	require.Equal(t, idx.Block(25), retention)
}

func TestCreateBatchPeriod(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.TestNetRules())

	_, err := e.create(e.batch(15, 0))
	require.ErrorIs(err, ErrInvalidBatchEpoch)

	// a full batch may be cut off-period
	e.mustCreate(e.batch(15, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9))
	e.mustCreate(e.batch(20, 10))
}

func TestCreateBatchAuthorization(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	_, err := e.gw.CreateBottomUpMsgBatch(ctxTODO, common.HexToAddress("0xbad"), e.batch(10, 0), e.tree.Root(), e.tree.TotalWeight())
	require.ErrorIs(err, ErrInvalidBatchSource)

	unknown := e.batch(10, 0)
	unknown.SubnetID = inter.NewSubnetID(fakeNetwork, common.HexToAddress("0xdead"))
	_, err = e.create(unknown)
	require.ErrorIs(err, ErrSubnetNotFound)
	require.Equal(KindAuthorization, KindOf(err))

	require.NoError(e.gw.KillSubnet(ctxTODO, e.gen.SystemActor, e.subnet))
	_, err = e.create(e.batch(10, 0))
	require.ErrorIs(err, ErrNotRegisteredSubnet)
	require.Equal("NotRegisteredSubnet", NameOf(err))
}

func TestQuorumCertifiesAtMajority(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules(), 50, 20, 30)
	e.mustCreate(e.batch(10, 0))

	rec, err := e.sign(10, 0)
	require.NoError(err)
	require.Equal(ibr.Collecting, rec.Status)
	require.False(rec.Quorum.Reached)
	require.Zero(big.NewInt(50).Cmp(rec.Quorum.AccumulatedWeight))

	rec, err = e.sign(10, 1)
	require.NoError(err)
	require.Equal(ibr.Certified, rec.Status)
	require.True(rec.Quorum.Reached)
	require.Zero(big.NewInt(70).Cmp(rec.Quorum.AccumulatedWeight))
	require.Equal(ibr.Certified, e.status(10))

	incomplete, err := e.gw.IncompleteBatches(ctxTODO, e.subnet)
	require.NoError(err)
	require.Empty(incomplete)
	pending, err := e.gw.PendingCertifiedBatches(ctxTODO, e.subnet)
	require.NoError(err)
	require.Equal([]idx.Block{10}, pending)

	// a certified batch takes no more signatures
	_, err = e.sign(10, 2)
	require.ErrorIs(err, ErrQuorumAlreadyProcessed)

	require.Equal(1.0, testutil.ToFloat64(e.gw.metrics.batchesCertified))
	require.Equal(2.0, testutil.ToFloat64(e.gw.metrics.signatures.WithLabelValues("accepted")))
}

func TestSignatureReplay(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules(), 50, 20, 30)
	e.mustCreate(e.batch(10, 0))

	_, err := e.sign(10, 0)
	require.NoError(err)
	_, err = e.sign(10, 0)
	require.ErrorIs(err, ErrSignatureReplay)

	rec, _, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, 10)
	require.NoError(err)
	require.Len(rec.Quorum.Collected, 1)
	require.Zero(big.NewInt(50).Cmp(rec.Quorum.AccumulatedWeight))
}

func TestSignatureRejections(t *testing.T) {
	e := newTestEnv(t, ipc.FakeNetRules(), 50, 20, 30)
	rec := e.mustCreate(e.batch(10, 0))

	v := e.vals[0]
	proof, err := e.tree.Proof(v.addr)
	require.NoError(t, err)
	sig, err := validatorpk.Sign(rec.Hash, v.key)
	require.NoError(t, err)
	otherSig, err := validatorpk.Sign(common.HexToHash("0x01"), v.key)
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		height idx.Block
		proof  []common.Hash
		weight *big.Int
		sig    []byte
		expect error
	}{
		"unknown batch":   {11, proof, v.weight, sig, ErrBatchNotCreated},
		"malformed sig":   {10, proof, v.weight, []byte{1, 2, 3}, ErrInvalidSignature},
		"wrong digest":    {10, proof, v.weight, otherSig, ErrFailedAddSignatory},
		"inflated weight": {10, proof, big.NewInt(51), sig, ErrFailedAddSignatory},
		"missing proof":   {10, nil, v.weight, sig, ErrFailedAddSignatory},
		"zero weight":     {10, proof, new(big.Int), sig, ErrZeroMembershipWeight},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.gw.AddBottomUpMsgBatchSignature(ctxTODO, e.subnet, tc.height, tc.proof, tc.weight, tc.sig)
			require.ErrorIs(t, err, tc.expect)
		})
	}
	require.Equal(t, ibr.Created, e.status(10))
}

func TestExecBatch(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	b := e.batch(10, 0, 1, 2)
	e.mustCreate(b)

	_, err := e.exec(b)
	require.ErrorIs(err, ErrBatchNotCertified)

	e.certify(10)
	_, err = e.gw.ExecBottomUpMsgBatch(ctxTODO, common.HexToAddress("0xbad"), b)
	require.ErrorIs(err, ErrNotAuthorized)

	// relayers may execute too
	rec, err := e.gw.ExecBottomUpMsgBatch(ctxTODO, e.gen.Relayers[0], b)
	require.NoError(err)
	require.Equal(ibr.Executed, rec.Status)
	require.Equal(ibr.Executed, e.status(10))

	nonce, err := e.gw.ExpectedNonce(ctxTODO, e.subnet, msgSender)
	require.NoError(err)
	require.Equal(uint64(3), nonce)

	subnet, err := e.gw.Subnet(ctxTODO, e.subnet)
	require.NoError(err)
	require.Zero(big.NewInt(997).Cmp(subnet.CircSupply))

	last, ok, err := e.gw.LastExecutedHeight(ctxTODO, e.subnet)
	require.NoError(err)
	require.True(ok)
	require.Equal(idx.Block(10), last)

	_, err = e.exec(b)
	require.ErrorIs(err, ErrQuorumAlreadyProcessed)

	require.Equal(3.0, testutil.ToFloat64(e.gw.metrics.msgsExecuted))
}

func TestExecRejectsWrongNonce(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	first := e.batch(10, 0, 1, 2, 3)
	e.mustCreate(first)
	e.certify(10)
	_, err := e.exec(first)
	require.NoError(err)

	second := e.batch(20, 5)
	e.mustCreate(second)
	e.certify(20)
	_, err = e.exec(second)
	require.ErrorIs(err, ErrInvalidCrossMsgNonce)
	require.Equal(KindExecution, KindOf(err))

	require.Equal(ibr.Certified, e.status(20))
	nonce, err := e.gw.ExpectedNonce(ctxTODO, e.subnet, msgSender)
	require.NoError(err)
	require.Equal(uint64(4), nonce)
	subnet, err := e.gw.Subnet(ctxTODO, e.subnet)
	require.NoError(err)
	require.Zero(big.NewInt(996).Cmp(subnet.CircSupply))
}

func TestExecChecksMessages(t *testing.T) {
	t.Run("destination", func(t *testing.T) {
		e := newTestEnv(t, ipc.FakeNetRules())
		b := e.batch(10, 0)
		b.Msgs[0].Message.To.Subnet = inter.NewSubnetID(fakeNetwork, common.HexToAddress("0x77"))
		e.mustCreate(b)
		e.certify(10)
		_, err := e.exec(b)
		require.ErrorIs(t, err, ErrInvalidCrossMsgDstSubnet)
	})
	t.Run("supply", func(t *testing.T) {
		e := newTestEnv(t, ipc.FakeNetRules())
		b := e.batch(10, 0)
		b.Msgs[0].Message.Value = big.NewInt(1001)
		e.mustCreate(b)
		e.certify(10)
		_, err := e.exec(b)
		require.ErrorIs(t, err, ErrNotEnoughSubnetCircSupply)

		require.NoError(t, e.gw.FundSubnet(ctxTODO, e.gen.SystemActor, e.subnet, big.NewInt(1)))
		_, err = e.exec(b)
		require.NoError(t, err)
	})
	t.Run("validator", func(t *testing.T) {
		veto := errors.New("veto")
		e := newTestEnvWith(t, Config{
			Rules: ipc.FakeNetRules(),
			MsgValidator: func(msg inter.CrossMsg) error {
				if msg.Message.Nonce == 1 {
					return veto
				}
				return nil
			},
		})
		b := e.batch(10, 0, 1)
		e.mustCreate(b)
		e.certify(10)
		_, err := e.exec(b)
		require.ErrorIs(t, err, ErrMsgRejected)
		nonce, err := e.gw.ExpectedNonce(ctxTODO, e.subnet, msgSender)
		require.NoError(t, err)
		require.Zero(t, nonce)
	})
	t.Run("sender subnet", func(t *testing.T) {
		e := newTestEnv(t, ipc.FakeNetRules())
		sibling := e.gen.Subnets[1].ID
		b := e.batch(10, 0)
		b.Msgs[0].Message.From.Subnet = sibling
		e.mustCreate(b)
		e.certify(10)
		_, err := e.exec(b)
		require.ErrorIs(t, err, ErrInvalidCrossMsgFromSubnet)
		require.Equal(t, KindExecution, KindOf(err))
		require.Equal(t, ibr.Certified, e.status(10))

		// a descendant of the committing subnet is a valid sender
		e = newTestEnv(t, ipc.FakeNetRules())
		deeper := e.batch(10, 0)
		deeper.Msgs[0].Message.From.Subnet = inter.NewSubnetID(e.subnet, common.HexToAddress("0x99"))
		e.mustCreate(deeper)
		e.certify(10)
		_, err = e.exec(deeper)
		require.NoError(t, err)
	})
	t.Run("different batch", func(t *testing.T) {
		e := newTestEnv(t, ipc.FakeNetRules())
		e.mustCreate(e.batch(10, 0))
		e.certify(10)
		_, err := e.exec(e.batch(10, 1))
		require.ErrorIs(t, err, ErrBatchNotCreated)
	})
}

func TestExecInHeightOrder(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	b10, b20 := e.batch(10, 0), e.batch(20, 1)
	e.mustCreate(b10)
	e.mustCreate(b20)
	e.certify(10)
	e.certify(20)

	_, err := e.exec(b20)
	require.ErrorIs(err, ErrInvalidBatchEpoch)

	_, err = e.exec(b10)
	require.NoError(err)
	_, err = e.exec(b20)
	require.NoError(err)
}

// A batch left behind by an executed later height must not become Certified,
// or it would hold back every following execution.
func TestSignBelowLastExecuted(t *testing.T) {
	require := require.New(t)
	rules := ipc.FakeNetRules()
	rules.Retention.PruneUncertified = true
	e := newTestEnv(t, rules)

	b10, b20, b30 := e.batch(10, 0), e.batch(20, 0), e.batch(30, 1)
	e.mustCreate(b10)
	e.mustCreate(b20)
	e.mustCreate(b30)
	e.certify(20)
	_, err := e.exec(b20)
	require.NoError(err)

	for i := range e.vals {
		_, err = e.sign(10, i)
		require.ErrorIs(err, ErrInvalidBatchEpoch)
	}
	require.Equal(ibr.Created, e.status(10))
	pending, err := e.gw.PendingCertifiedBatches(ctxTODO, e.subnet)
	require.NoError(err)
	require.Empty(pending)

	// the subnet keeps executing above the gap
	e.certify(30)
	_, err = e.exec(b30)
	require.NoError(err)
	last, ok, err := e.gw.LastExecutedHeight(ctxTODO, e.subnet)
	require.NoError(err)
	require.True(ok)
	require.Equal(idx.Block(30), last)

	// the stale batch is reclaimed by retention
	pruned, err := e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, e.subnet, 15)
	require.NoError(err)
	require.Equal([]idx.Block{10}, pruned)
}

func TestRetention(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	var nonce uint64
	for _, h := range []idx.Block{10, 20, 30} {
		b := e.batch(h, nonce)
		nonce++
		e.mustCreate(b)
		e.certify(h)
		_, err := e.exec(b)
		require.NoError(err)
	}
	e.mustCreate(e.batch(40, nonce))
	e.certify(40)

	_, err := e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.Relayers[0], e.subnet, 50)
	require.ErrorIs(err, ErrNotSystemActor)

	pruned, err := e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, e.subnet, 50)
	require.NoError(err)
	require.Equal([]idx.Block{10, 20, 30}, pruned)
	require.Equal("Retention height updated", e.hook.LastEntry().Message)

	for _, h := range []idx.Block{10, 20, 30} {
		_, ok, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, h)
		require.NoError(err)
		require.False(ok, "batch %d survived", h)
	}
	require.Equal(ibr.Certified, e.status(40))

	retention, err := e.gw.RetentionHeight(ctxTODO, e.subnet)
	require.NoError(err)
	require.Equal(idx.Block(50), retention)

	_, err = e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, e.subnet, 45)
	require.ErrorIs(err, ErrInvalidRetentionHeight)

	// same height again is a no-op
	pruned, err = e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, e.subnet, 50)
	require.NoError(err)
	require.Empty(pruned)

	_, err = e.create(e.batch(45, nonce+1))
	require.ErrorIs(err, ErrInvalidBatchEpoch)

	require.Equal(50.0, testutil.ToFloat64(e.gw.metrics.retention.WithLabelValues(e.subnet.String())))
}

func TestRetentionPolicy(t *testing.T) {
	rules := ipc.FakeNetRules()
	rules.Retention = ipc.RetentionPolicy{PruneCertified: true, PruneUncertified: true}
	e := newTestEnv(t, rules)

	e.mustCreate(e.batch(10, 0))
	e.mustCreate(e.batch(20, 1))
	_, err := e.sign(20, 0)
	require.NoError(t, err)
	e.mustCreate(e.batch(30, 2))
	e.certify(30)
	e.mustCreate(e.batch(40, 3))

	pruned, err := e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, e.subnet, 35)
	require.NoError(t, err)
	require.Equal(t, []idx.Block{10, 20, 30}, pruned)

	incomplete, err := e.gw.IncompleteBatches(ctxTODO, e.subnet)
	require.NoError(t, err)
	require.Equal(t, []idx.Block{40}, incomplete)
	pending, err := e.gw.PendingCertifiedBatches(ctxTODO, e.subnet)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPruneUnknownSubnet(t *testing.T) {
	e := newTestEnv(t, ipc.FakeNetRules())
	unknown := inter.NewSubnetID(fakeNetwork, common.HexToAddress("0xdead"))
	_, err := e.gw.PruneBottomUpMsgBatches(ctxTODO, e.gen.SystemActor, unknown, 10)
	require.ErrorIs(t, err, ErrSubnetNotFound)
}

func TestCancelledContext(t *testing.T) {
	e := newTestEnv(t, ipc.FakeNetRules())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.gw.CreateBottomUpMsgBatch(ctx, e.origin, e.batch(10, 0), e.tree.Root(), e.tree.TotalWeight())
	require.ErrorIs(t, err, context.Canceled)
	_, ok, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, 10)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubnetManagement(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())
	child := inter.NewSubnetID(fakeNetwork, common.HexToAddress("0x42"))

	err := e.gw.RegisterSubnet(ctxTODO, e.origin, child, e.origin, big.NewInt(5))
	require.ErrorIs(err, ErrNotSystemActor)

	grandChild := inter.NewSubnetID(child, common.HexToAddress("0x43"))
	err = e.gw.RegisterSubnet(ctxTODO, e.gen.SystemActor, grandChild, e.origin, nil)
	require.ErrorIs(err, ErrSubnetNotFound)

	require.NoError(e.gw.RegisterSubnet(ctxTODO, e.gen.SystemActor, child, common.HexToAddress("0x42"), big.NewInt(5)))
	err = e.gw.RegisterSubnet(ctxTODO, e.gen.SystemActor, child, common.HexToAddress("0x42"), big.NewInt(5))
	require.ErrorIs(err, ErrSubnetAlreadyExists)

	err = e.gw.FundSubnet(ctxTODO, e.gen.SystemActor, child, new(big.Int))
	require.ErrorIs(err, ErrInvalidCrossMsgValue)
	err = e.gw.FundSubnet(ctxTODO, e.gen.SystemActor, child, new(big.Int).Lsh(big.NewInt(1), 300))
	require.ErrorIs(err, ErrInvalidCrossMsgValue)
	require.NoError(e.gw.FundSubnet(ctxTODO, e.gen.SystemActor, child, big.NewInt(7)))

	rec, err := e.gw.Subnet(ctxTODO, child)
	require.NoError(err)
	require.True(rec.Active)
	require.Zero(big.NewInt(12).Cmp(rec.CircSupply))

	require.NoError(e.gw.KillSubnet(ctxTODO, e.gen.SystemActor, child))
	rec, err = e.gw.Subnet(ctxTODO, child)
	require.NoError(err)
	require.False(rec.Active)
	err = e.gw.KillSubnet(ctxTODO, e.gen.SystemActor, child)
	require.ErrorIs(err, ErrNotRegisteredSubnet)
}

func TestGenesisIsIdempotent(t *testing.T) {
	e := newTestEnv(t, ipc.FakeNetRules())
	require.NoError(t, e.gw.FundSubnet(ctxTODO, e.gen.SystemActor, e.subnet, big.NewInt(5)))

	// reopening over the same database keeps the funded supply
	again, err := New(e.gw.store.db, Config{Rules: ipc.FakeNetRules(), Genesis: e.gen}, e.gw.log, nil)
	require.NoError(t, err)
	defer again.Close()
	rec, err := again.Subnet(ctxTODO, e.subnet)
	require.NoError(t, err)
	require.Zero(t, big.NewInt(1005).Cmp(rec.CircSupply))
}

func TestNewRejectsBadRules(t *testing.T) {
	rules := ipc.FakeNetRules()
	rules.Quorum.MajorityPercentage = 50
	_, err := New(nil, Config{Rules: rules, Genesis: genesis.FakeGenesis(fakeNetwork, 1, testSupply)}, nil, nil)
	require.ErrorIs(t, err, ipc.ErrInvalidRules)
}

// Genesis validator sets are served as membership proofs that certify batches
// without any off-line tree building.
func TestMembershipProof(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, ipc.FakeNetRules())

	proofs := make([]*MembershipProof, genesis.FakeValidatorsNum)
	for i := range proofs {
		addr := crypto.PubkeyToAddress(genesis.FakeKey(i).PublicKey)
		p, err := e.gw.MembershipProof(ctxTODO, e.subnet, addr)
		require.NoError(err)
		require.Equal(int64(1), p.Weight.Int64())
		require.Equal(int64(genesis.FakeValidatorsNum), p.TotalWeight.Int64())
		require.True(membership.MerkleVerifier{}.Verify(p.Root, addr, p.Weight, p.Proof))
		if i > 0 {
			require.Equal(proofs[0].Root, p.Root)
		}
		proofs[i] = p
	}

	b := e.batch(10, 0)
	rec, err := e.gw.CreateBottomUpMsgBatch(ctxTODO, e.origin, b, proofs[0].Root, proofs[0].TotalWeight)
	require.NoError(err)
	for i, p := range proofs[:2] {
		sig, err := validatorpk.Sign(rec.Hash, genesis.FakeKey(i))
		require.NoError(err)
		rec, err = e.gw.AddBottomUpMsgBatchSignature(ctxTODO, e.subnet, 10, p.Proof, p.Weight, sig)
		require.NoError(err)
	}
	require.Equal(ibr.Certified, rec.Status)

	_, err = e.gw.MembershipProof(ctxTODO, e.subnet, common.HexToAddress("0x01"))
	require.ErrorIs(err, ErrFailedAddSignatory)

	child := inter.NewSubnetID(fakeNetwork, common.HexToAddress("0x42"))
	require.NoError(e.gw.RegisterSubnet(ctxTODO, e.gen.SystemActor, child, common.HexToAddress("0x42"), nil))
	_, err = e.gw.MembershipProof(ctxTODO, child, common.HexToAddress("0x01"))
	require.ErrorIs(err, ErrNoValidatorSet)

	_, err = e.gw.MembershipProof(ctxTODO, inter.NewSubnetID(fakeNetwork, common.HexToAddress("0xdead")), common.HexToAddress("0x01"))
	require.ErrorIs(err, ErrSubnetNotFound)

	// the set survives a restart
	again, err := New(e.gw.store.db, Config{Rules: ipc.FakeNetRules(), Genesis: e.gen}, e.gw.log, nil)
	require.NoError(err)
	defer again.Close()
	p, err := again.MembershipProof(ctxTODO, e.subnet, crypto.PubkeyToAddress(genesis.FakeKey(2).PublicKey))
	require.NoError(err)
	require.Equal(proofs[2].Root, p.Root)
	require.Equal(proofs[2].Proof, p.Proof)
}
