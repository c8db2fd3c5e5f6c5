package gateway

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
	"github.com/consensus-shipyard/ipc-sub004/inter/validatorpk"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
	"github.com/consensus-shipyard/ipc-sub004/ipc/genesis"
	"github.com/consensus-shipyard/ipc-sub004/membership"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	recipient   = common.HexToAddress("0xbeef")
	msgSender   = common.HexToAddress("0x5e")
	testSupply  = big.NewInt(1000)
	ctxTODO     = context.TODO()
	fakeNetwork = inter.RootSubnet(ipc.FakeNetworkID)
)

type testValidator struct {
	key    *ecdsa.PrivateKey
	addr   common.Address
	weight *big.Int
}

type testEnv struct {
	t    *testing.T
	gw   *Gateway
	gen  genesis.Genesis
	hook *logtest.Hook
	reg  *prometheus.Registry

	subnet inter.SubnetID
	origin common.Address

	vals []testValidator
	tree *membership.Tree
}

func newTestEnv(t *testing.T, rules ipc.Rules, weights ...int64) *testEnv {
	return newTestEnvWith(t, Config{Rules: rules}, weights...)
}

func newTestEnvWith(t *testing.T, cfg Config, weights ...int64) *testEnv {
	t.Helper()
	if len(weights) == 0 {
		weights = []int64{50, 20, 30}
	}
	cfg.Genesis = genesis.FakeGenesis(fakeNetwork, 2, testSupply)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	reg := prometheus.NewRegistry()

	gw, err := New(memorydb.New(), cfg, logger, reg)
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	e := &testEnv{
		t:      t,
		gw:     gw,
		gen:    cfg.Genesis,
		hook:   hook,
		reg:    reg,
		subnet: cfg.Genesis.Subnets[0].ID,
		origin: cfg.Genesis.Subnets[0].Origin,
	}
	e.vals, e.tree = fakeValidators(t, weights...)
	return e
}

func fakeValidators(t *testing.T, weights ...int64) ([]testValidator, *membership.Tree) {
	t.Helper()
	vals := make([]testValidator, len(weights))
	vv := make(inter.Validators, len(weights))
	for i, w := range weights {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		vals[i] = testValidator{
			key:    key,
			addr:   crypto.PubkeyToAddress(key.PublicKey),
			weight: big.NewInt(w),
		}
		vv[i] = inter.Validator{Addr: vals[i].addr, Weight: big.NewInt(w)}
	}
	tree, err := membership.NewTree(vv)
	require.NoError(t, err)
	return vals, tree
}

// batch builds a batch of the env's subnet with one message per nonce, all
// from msgSender and worth 1 each.
func (e *testEnv) batch(height idx.Block, nonces ...uint64) inter.BottomUpMsgBatch {
	msgs := make([]inter.CrossMsg, len(nonces))
	for i, n := range nonces {
		msgs[i] = inter.CrossMsg{Message: inter.StorableMsg{
			From:  inter.IPCAddress{Subnet: e.subnet, Raw: msgSender},
			To:    inter.IPCAddress{Subnet: fakeNetwork, Raw: recipient},
			Value: big.NewInt(1),
			Nonce: n,
			Fee:   new(big.Int),
		}}
	}
	return inter.BottomUpMsgBatch{
		SubnetID:    e.subnet.Copy(),
		BlockHeight: height,
		Msgs:        msgs,
	}
}

func (e *testEnv) create(b inter.BottomUpMsgBatch) (*ibr.BatchRecord, error) {
	return e.gw.CreateBottomUpMsgBatch(ctxTODO, e.origin, b, e.tree.Root(), e.tree.TotalWeight())
}

func (e *testEnv) mustCreate(b inter.BottomUpMsgBatch) *ibr.BatchRecord {
	e.t.Helper()
	rec, err := e.create(b)
	require.NoError(e.t, err)
	return rec
}

// sign submits the signature of validator i over the batch at height.
func (e *testEnv) sign(height idx.Block, i int) (*ibr.BatchRecord, error) {
	e.t.Helper()
	rec, ok, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, height)
	require.NoError(e.t, err)
	require.True(e.t, ok)

	v := e.vals[i]
	sig, err := validatorpk.Sign(rec.Hash, v.key)
	require.NoError(e.t, err)
	proof, err := e.tree.Proof(v.addr)
	require.NoError(e.t, err)
	return e.gw.AddBottomUpMsgBatchSignature(ctxTODO, e.subnet, height, proof, v.weight, sig)
}

// certify signs with validators in order until the batch is certified.
func (e *testEnv) certify(height idx.Block) *ibr.BatchRecord {
	e.t.Helper()
	for i := range e.vals {
		rec, err := e.sign(height, i)
		require.NoError(e.t, err)
		if rec.Status == ibr.Certified {
			return rec
		}
	}
	e.t.Fatalf("batch %d not certified by the full validator set", height)
	return nil
}

func (e *testEnv) exec(b inter.BottomUpMsgBatch) (*ibr.BatchRecord, error) {
	return e.gw.ExecBottomUpMsgBatch(ctxTODO, e.gen.SystemActor, b)
}

func (e *testEnv) status(height idx.Block) ibr.Status {
	e.t.Helper()
	rec, ok, err := e.gw.BottomUpMsgBatch(ctxTODO, e.subnet, height)
	require.NoError(e.t, err)
	require.True(e.t, ok, "no batch at %d", height)
	return rec.Status
}
