// Package gateway implements the parent-side handling of bottom-up checkpoint
// batches: child subnets commit batches of cross messages, validators sign
// them until a weighted quorum certifies the batch, an authorized relayer
// executes it, and the retention watermark garbage-collects old batches.
//
// Every mutating operation is serialized per subnet and commits atomically;
// operations on different subnets run in parallel. Events are published after
// the commit, in the order the operations of a subnet committed.
package gateway

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
	"github.com/consensus-shipyard/ipc-sub004/inter/validatorpk"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
	"github.com/consensus-shipyard/ipc-sub004/ipc/genesis"
	"github.com/consensus-shipyard/ipc-sub004/membership"
)

// BottomUpRouter mutates bottom-up batches.
type BottomUpRouter interface {
	CreateBottomUpMsgBatch(ctx context.Context, caller common.Address, batch inter.BottomUpMsgBatch, membershipRoot common.Hash, membershipWeight *big.Int) (*ibr.BatchRecord, error)
	AddBottomUpMsgBatchSignature(ctx context.Context, subnet inter.SubnetID, height idx.Block, proof []common.Hash, weight *big.Int, sig []byte) (*ibr.BatchRecord, error)
	ExecBottomUpMsgBatch(ctx context.Context, caller common.Address, batch inter.BottomUpMsgBatch) (*ibr.BatchRecord, error)
	PruneBottomUpMsgBatches(ctx context.Context, caller common.Address, subnet inter.SubnetID, retentionHeight idx.Block) ([]idx.Block, error)
}

// BottomUpGetter reads bottom-up batch state.
type BottomUpGetter interface {
	BottomUpMsgBatch(ctx context.Context, subnet inter.SubnetID, height idx.Block) (*ibr.BatchRecord, bool, error)
	IncompleteBatches(ctx context.Context, subnet inter.SubnetID) ([]idx.Block, error)
	PendingCertifiedBatches(ctx context.Context, subnet inter.SubnetID) ([]idx.Block, error)
	RetentionHeight(ctx context.Context, subnet inter.SubnetID) (idx.Block, error)
	LastExecutedHeight(ctx context.Context, subnet inter.SubnetID) (idx.Block, bool, error)
	ExpectedNonce(ctx context.Context, subnet inter.SubnetID, sender common.Address) (uint64, error)
	MembershipProof(ctx context.Context, subnet inter.SubnetID, validator common.Address) (*MembershipProof, error)
}

// SubnetManager administers the registered child subnets.
type SubnetManager interface {
	RegisterSubnet(ctx context.Context, caller common.Address, id inter.SubnetID, origin common.Address, supply *big.Int) error
	FundSubnet(ctx context.Context, caller common.Address, id inter.SubnetID, amount *big.Int) error
	KillSubnet(ctx context.Context, caller common.Address, id inter.SubnetID) error
	Subnet(ctx context.Context, id inter.SubnetID) (*SubnetRecord, error)
}

var (
	_ BottomUpRouter = (*Gateway)(nil)
	_ BottomUpGetter = (*Gateway)(nil)
	_ SubnetManager  = (*Gateway)(nil)
)

// Config assembles a Gateway.
type Config struct {
	Rules   ipc.Rules
	Genesis genesis.Genesis

	// Membership defaults to membership.MerkleVerifier.
	Membership membership.Verifier
	// Signatures defaults to validatorpk.Secp256k1Verifier.
	Signatures validatorpk.SignatureVerifier
	// MsgValidator is optional.
	MsgValidator MsgValidator
}

// Gateway is the parent-side bottom-up checkpoint service.
type Gateway struct {
	network     inter.SubnetID
	systemActor common.Address
	relayers    map[common.Address]bool

	store     *BatchStore
	registry  *Registry
	lifecycle *Lifecycle
	pruner    *Pruner

	locks   subnetLocks
	feeds   feeds
	metrics *Metrics
	log     logrus.FieldLogger
}

// New opens a gateway over db and registers the genesis subnets that are not
// registered yet.
func New(db kvdb.Store, cfg Config, log logrus.FieldLogger, reg prometheus.Registerer) (*Gateway, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}
	if cfg.Membership == nil {
		cfg.Membership = membership.MerkleVerifier{}
	}
	if cfg.Signatures == nil {
		cfg.Signatures = validatorpk.Secp256k1Verifier{}
	}
	log = log.WithField("module", "gateway")

	store := NewBatchStore(db, cfg.Rules.Batches, log)
	registry := NewRegistry(db)
	g := &Gateway{
		network:     cfg.Genesis.Network.Copy(),
		systemActor: cfg.Genesis.SystemActor,
		relayers:    make(map[common.Address]bool, len(cfg.Genesis.Relayers)),
		store:       store,
		registry:    registry,
		lifecycle: &Lifecycle{
			network:     cfg.Genesis.Network.Copy(),
			majority:    cfg.Rules.Quorum.MajorityPercentage,
			store:       store,
			registry:    registry,
			tracker:     NewQuorumTracker(cfg.Membership, cfg.Signatures),
			validateMsg: cfg.MsgValidator,
			log:         log,
		},
		pruner: &Pruner{
			store:  store,
			policy: cfg.Rules.Retention,
			log:    log,
		},
		locks:   subnetLocks{locks: make(map[hash.Hash]*subnetLock)},
		metrics: NewMetrics(reg),
		log:     log,
	}
	for _, r := range cfg.Genesis.Relayers {
		g.relayers[r] = true
	}

	for _, s := range cfg.Genesis.Subnets {
		if _, ok, err := registry.get(s.ID); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		validators, err := s.ValidatorSet()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(s.ID, s.Origin, s.CircSupply, validators); err != nil {
			return nil, fmt.Errorf("genesis subnet %s: %w", s.ID, err)
		}
		log.WithFields(logrus.Fields{
			"subnet":     s.ID.String(),
			"validators": len(validators),
		}).Info("Registered genesis subnet")
	}
	return g, nil
}

// Network is the subnet this gateway executes messages for.
func (g *Gateway) Network() inter.SubnetID {
	return g.network.Copy()
}

// Close unsubscribes every event subscriber.
func (g *Gateway) Close() {
	g.feeds.scope.Close()
}

// CreateBottomUpMsgBatch opens a batch. Only the subnet's registered origin
// may do so.
func (g *Gateway) CreateBottomUpMsgBatch(ctx context.Context, caller common.Address, batch inter.BottomUpMsgBatch, membershipRoot common.Hash, membershipWeight *big.Int) (*ibr.BatchRecord, error) {
	sl := g.locks.lock(batch.SubnetID)
	rec, err := func() (*ibr.BatchRecord, error) {
		defer sl.unlock()
		subnet, err := g.registry.ActiveSubnet(batch.SubnetID)
		if err != nil {
			return nil, err
		}
		if caller != subnet.Origin {
			return nil, fmt.Errorf("%w: %s is not the origin of %s", ErrInvalidBatchSource, caller.Hex(), batch.SubnetID)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return g.lifecycle.Open(batch, membershipRoot, membershipWeight)
	}()
	if err != nil {
		g.metrics.failed("create", err)
		return nil, err
	}
	g.metrics.batchesCreated.Inc()
	return rec, nil
}

// AddBottomUpMsgBatchSignature submits one validator's signature. The
// validator is whoever produced sig; there is no caller check.
func (g *Gateway) AddBottomUpMsgBatchSignature(ctx context.Context, subnet inter.SubnetID, height idx.Block, proof []common.Hash, weight *big.Int, sig []byte) (*ibr.BatchRecord, error) {
	sl := g.locks.lock(subnet)
	defer sl.release()
	rec, ob, err := func() (*ibr.BatchRecord, outbox, error) {
		defer sl.handoff()
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return g.lifecycle.Sign(subnet, height, proof, weight, sig)
	}()
	if err != nil {
		g.metrics.signatures.WithLabelValues("rejected").Inc()
		g.metrics.failed("sign", err)
		return nil, err
	}
	g.metrics.signatures.WithLabelValues("accepted").Inc()
	if rec.Status == ibr.Certified {
		g.metrics.batchesCertified.Inc()
	}
	g.feeds.publish(ob)
	return rec, nil
}

// ExecBottomUpMsgBatch applies a certified batch. Only the system actor and
// the configured relayers may execute.
func (g *Gateway) ExecBottomUpMsgBatch(ctx context.Context, caller common.Address, batch inter.BottomUpMsgBatch) (*ibr.BatchRecord, error) {
	if caller != g.systemActor && !g.relayers[caller] {
		err := fmt.Errorf("%w: %s may not execute batches", ErrNotAuthorized, caller.Hex())
		g.metrics.failed("exec", err)
		return nil, err
	}
	sl := g.locks.lock(batch.SubnetID)
	defer sl.release()
	rec, ob, err := func() (*ibr.BatchRecord, outbox, error) {
		defer sl.handoff()
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return g.lifecycle.Exec(batch)
	}()
	if err != nil {
		g.metrics.failed("exec", err)
		g.log.WithFields(logrus.Fields{
			"subnet": batch.SubnetID.String(),
			"height": batch.BlockHeight,
			"err":    err,
		}).Warn("Bottom-up batch execution failed")
		return nil, err
	}
	g.metrics.batchesExecuted.Inc()
	g.metrics.msgsExecuted.Add(float64(len(rec.Batch.Msgs)))
	g.feeds.publish(ob)
	return rec, nil
}

// PruneBottomUpMsgBatches advances the retention height of a subnet. Only
// the system actor may prune.
func (g *Gateway) PruneBottomUpMsgBatches(ctx context.Context, caller common.Address, subnet inter.SubnetID, retentionHeight idx.Block) ([]idx.Block, error) {
	if caller != g.systemActor {
		err := fmt.Errorf("%w: %s", ErrNotSystemActor, caller.Hex())
		g.metrics.failed("prune", err)
		return nil, err
	}
	sl := g.locks.lock(subnet)
	defer sl.release()
	pruned, ob, err := func() ([]idx.Block, outbox, error) {
		defer sl.handoff()
		if _, err := g.registry.Subnet(subnet); err != nil {
			return nil, nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return g.pruner.SetRetentionHeight(subnet, retentionHeight)
	}()
	if err != nil {
		g.metrics.failed("prune", err)
		return nil, err
	}
	g.metrics.batchesPruned.Add(float64(len(pruned)))
	g.metrics.retention.WithLabelValues(subnet.String()).Set(float64(retentionHeight))
	g.feeds.publish(ob)
	return pruned, nil
}

func (g *Gateway) BottomUpMsgBatch(_ context.Context, subnet inter.SubnetID, height idx.Block) (*ibr.BatchRecord, bool, error) {
	return g.store.GetBatch(subnet, height)
}

func (g *Gateway) IncompleteBatches(_ context.Context, subnet inter.SubnetID) ([]idx.Block, error) {
	return g.store.IncompleteBatches(subnet)
}

func (g *Gateway) PendingCertifiedBatches(_ context.Context, subnet inter.SubnetID) ([]idx.Block, error) {
	return g.store.PendingCertified(subnet)
}

func (g *Gateway) RetentionHeight(_ context.Context, subnet inter.SubnetID) (idx.Block, error) {
	return g.store.RetentionHeight(subnet)
}

func (g *Gateway) LastExecutedHeight(_ context.Context, subnet inter.SubnetID) (idx.Block, bool, error) {
	return g.store.LastExecutedHeight(subnet)
}

func (g *Gateway) ExpectedNonce(_ context.Context, subnet inter.SubnetID, sender common.Address) (uint64, error) {
	return g.registry.ExpectedNonce(subnet, sender)
}

// MembershipProof is what a validator of a subnet submits along with its
// signature: its weight and the path from its leaf to Root. Root and
// TotalWeight are the membership arguments of CreateBottomUpMsgBatch.
type MembershipProof struct {
	Root        common.Hash
	TotalWeight *big.Int
	Weight      *big.Int
	Proof       []common.Hash
}

// MembershipProof proves validator against the validator set the subnet was
// registered with. Subnets registered without one return ErrNoValidatorSet.
func (g *Gateway) MembershipProof(_ context.Context, subnet inter.SubnetID, validator common.Address) (*MembershipProof, error) {
	rec, err := g.registry.Subnet(subnet)
	if err != nil {
		return nil, err
	}
	if len(rec.Validators) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoValidatorSet, subnet)
	}
	member, ok := rec.Validators.Get(validator)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a validator of %s", ErrFailedAddSignatory, validator.Hex(), subnet)
	}
	tree, err := membership.NewTree(rec.Validators)
	if err != nil {
		return nil, err
	}
	proof, err := tree.Proof(validator)
	if err != nil {
		return nil, err
	}
	return &MembershipProof{
		Root:        tree.Root(),
		TotalWeight: tree.TotalWeight(),
		Weight:      new(big.Int).Set(member.Weight),
		Proof:       proof,
	}, nil
}

// RegisterSubnet adds a child subnet of the gateway's network.
func (g *Gateway) RegisterSubnet(ctx context.Context, caller common.Address, id inter.SubnetID, origin common.Address, supply *big.Int) error {
	if caller != g.systemActor {
		return fmt.Errorf("%w: %s", ErrNotSystemActor, caller.Hex())
	}
	if parent, ok := id.Parent(); !ok || !parent.Equal(g.network) {
		return fmt.Errorf("%w: %s is not a child of %s", ErrSubnetNotFound, id, g.network)
	}
	sl := g.locks.lock(id)
	defer sl.unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.registry.Register(id, origin, supply, nil)
}

// FundSubnet increases the circulating supply of a subnet.
func (g *Gateway) FundSubnet(ctx context.Context, caller common.Address, id inter.SubnetID, amount *big.Int) error {
	if caller != g.systemActor {
		return fmt.Errorf("%w: %s", ErrNotSystemActor, caller.Hex())
	}
	sl := g.locks.lock(id)
	defer sl.unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.registry.Fund(id, amount)
}

// KillSubnet deactivates a subnet: it can no longer create batches.
func (g *Gateway) KillSubnet(ctx context.Context, caller common.Address, id inter.SubnetID) error {
	if caller != g.systemActor {
		return fmt.Errorf("%w: %s", ErrNotSystemActor, caller.Hex())
	}
	sl := g.locks.lock(id)
	defer sl.unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.registry.Kill(id)
}

func (g *Gateway) Subnet(_ context.Context, id inter.SubnetID) (*SubnetRecord, error) {
	return g.registry.Subnet(id)
}

// subnetLocks hands out one lock pair per subnet. Locks are never freed; the
// number of subnets a gateway serves is small.
type subnetLocks struct {
	mu    sync.Mutex
	locks map[hash.Hash]*subnetLock
}

// subnetLock serializes the operations of one subnet. state guards the
// subnet's records. An operation takes publish before it gives up state, so
// the events of one subnet are sent in commit order and a slow subscriber
// never holds state.
type subnetLock struct {
	state   sync.Mutex
	publish sync.Mutex
}

// lock returns the lock of id with its state held.
func (l *subnetLocks) lock(id inter.SubnetID) *subnetLock {
	key := id.Key()
	l.mu.Lock()
	s, ok := l.locks[key]
	if !ok {
		s = new(subnetLock)
		l.locks[key] = s
	}
	l.mu.Unlock()

	s.state.Lock()
	return s
}

// unlock releases state for operations that publish nothing.
func (s *subnetLock) unlock() {
	s.state.Unlock()
}

// handoff trades state for publish.
func (s *subnetLock) handoff() {
	s.publish.Lock()
	s.state.Unlock()
}

// release ends a handoff once the outbox is published.
func (s *subnetLock) release() {
	s.publish.Unlock()
}
