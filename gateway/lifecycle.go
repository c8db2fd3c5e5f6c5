package gateway

import (
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
	"github.com/consensus-shipyard/ipc-sub004/inter/iep"
)

// MsgValidator may veto a message of a batch about to be executed. Any error
// aborts the whole batch.
type MsgValidator func(msg inter.CrossMsg) error

// Lifecycle drives a batch through Created, Collecting, Certified and
// Executed. It changes state only through the BatchStore and QuorumTracker,
// and every transition commits in a single write set.
type Lifecycle struct {
	network     inter.SubnetID
	majority    uint8
	store       *BatchStore
	registry    *Registry
	tracker     *QuorumTracker
	validateMsg MsgValidator
	log         logrus.FieldLogger
}

// Open creates the batch and freezes its membership snapshot.
func (l *Lifecycle) Open(batch inter.BottomUpMsgBatch, root common.Hash, weight *big.Int) (*ibr.BatchRecord, error) {
	quorum, err := l.tracker.Open(root, weight, l.majority)
	if err != nil {
		return nil, err
	}
	rec, err := l.store.CreateBatch(batch, quorum)
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"subnet": batch.SubnetID.String(),
		"height": batch.BlockHeight,
		"msgs":   len(batch.Msgs),
		"hash":   rec.Hash.Hex(),
	}).Info("Bottom-up batch created")
	return rec, nil
}

// Sign adds one validator signature to the batch at (id, height). The signer
// is recovered from sig. The first accepted signature moves the batch to
// Collecting, and the one that completes the quorum moves it to Certified.
//
// A batch at or below the subnet's last executed height is refused: it could
// never execute, and once Certified it would block every later execution.
func (l *Lifecycle) Sign(id inter.SubnetID, height idx.Block, proof []common.Hash, weight *big.Int, sig []byte) (*ibr.BatchRecord, outbox, error) {
	rec, err := l.store.mustGet(id, height)
	if err != nil {
		return nil, nil, err
	}
	if rec.Status >= ibr.Certified {
		return nil, nil, fmt.Errorf("%w: subnet %s height %d is %s", ErrQuorumAlreadyProcessed, id, height, rec.Status)
	}
	last, ok, err := l.store.LastExecutedHeight(id)
	if err != nil {
		return nil, nil, err
	}
	if ok && height <= last {
		return nil, nil, fmt.Errorf("%w: height %d is not above last executed %d", ErrInvalidBatchEpoch, height, last)
	}
	signer, err := l.tracker.Signer(rec.Hash, sig)
	if err != nil {
		return nil, nil, err
	}
	reached, err := l.tracker.AddSignature(&rec.Quorum, rec.Hash, signer, weight, proof, sig)
	if err != nil {
		return nil, nil, err
	}

	ws := l.store.newWriteSet()
	if rec.Status == ibr.Created {
		rec.Status = ibr.Collecting
	}
	if reached {
		err = l.store.stageCertified(ws, rec)
	} else {
		err = l.store.stageRecord(ws, rec)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := ws.commit(); err != nil {
		return nil, nil, err
	}

	ob := outbox{QuorumWeightUpdated{
		Subnet:            id,
		Height:            height,
		Validator:         signer,
		Weight:            new(big.Int).Set(weight),
		AccumulatedWeight: new(big.Int).Set(rec.Quorum.AccumulatedWeight),
	}}
	log := l.log.WithFields(logrus.Fields{
		"subnet":    id.String(),
		"height":    height,
		"validator": signer.Hex(),
		"weight":    rec.Quorum.AccumulatedWeight.String(),
	})
	if reached {
		ob = append(ob,
			QuorumReached{
				Subnet:            id,
				Height:            height,
				Hash:              rec.Hash,
				AccumulatedWeight: new(big.Int).Set(rec.Quorum.AccumulatedWeight),
			},
			iep.FromRecord(*rec),
		)
		log.Info("Bottom-up batch certified")
	} else {
		log.Debug("Bottom-up batch signature accepted")
	}
	return rec, ob, nil
}

// Exec applies a certified batch. Every check runs before anything is
// written, so a failure leaves the batch Certified and all nonces and
// supplies unchanged.
func (l *Lifecycle) Exec(batch inter.BottomUpMsgBatch) (*ibr.BatchRecord, outbox, error) {
	id, height := batch.SubnetID, batch.BlockHeight
	if err := batch.CheckValues(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCrossMsgValue, err)
	}
	rec, err := l.store.mustGet(id, height)
	if err != nil {
		return nil, nil, err
	}
	if batch.Hash() != rec.Hash {
		return nil, nil, fmt.Errorf("%w: subnet %s height %d has a different batch", ErrBatchNotCreated, id, height)
	}
	switch {
	case rec.Status == ibr.Executed:
		return nil, nil, fmt.Errorf("%w: subnet %s height %d already executed", ErrQuorumAlreadyProcessed, id, height)
	case rec.Status != ibr.Certified:
		return nil, nil, fmt.Errorf("%w: subnet %s height %d is %s", ErrBatchNotCertified, id, height, rec.Status)
	}
	if err := l.checkOrder(id, height); err != nil {
		return nil, nil, err
	}

	subnet, err := l.registry.Subnet(id)
	if err != nil {
		return nil, nil, err
	}
	total := rec.Batch.TotalValue()
	if total.Cmp(subnet.CircSupply) > 0 {
		return nil, nil, fmt.Errorf("%w: batch releases %s, subnet %s holds %s", ErrNotEnoughSubnetCircSupply, total, id, subnet.CircSupply)
	}

	nonces := make(map[common.Address]uint64)
	for i, msg := range rec.Batch.Msgs {
		if !msg.Message.To.Subnet.Equal(l.network) {
			return nil, nil, fmt.Errorf("%w: message %d is for %s, executing on %s", ErrInvalidCrossMsgDstSubnet, i, msg.Message.To.Subnet, l.network)
		}
		// senders live in the committing subnet or below it
		from := msg.Message.From.Subnet
		if !id.Contains(from) || !inter.IsBottomUp(from, msg.Message.To.Subnet) {
			return nil, nil, fmt.Errorf("%w: message %d comes from %s, outside %s", ErrInvalidCrossMsgFromSubnet, i, from, id)
		}
		sender := msg.Message.From.Raw
		expected, ok := nonces[sender]
		if !ok {
			if expected, err = l.registry.ExpectedNonce(id, sender); err != nil {
				return nil, nil, err
			}
		}
		if msg.Message.Nonce != expected {
			return nil, nil, fmt.Errorf("%w: message %d from %s has nonce %d, expected %d", ErrInvalidCrossMsgNonce, i, sender.Hex(), msg.Message.Nonce, expected)
		}
		nonces[sender] = expected + 1
		if l.validateMsg != nil {
			if err := l.validateMsg(msg); err != nil {
				return nil, nil, fmt.Errorf("%w: message %d: %v", ErrMsgRejected, i, err)
			}
		}
	}

	ws := l.store.newWriteSet()
	for sender, next := range nonces {
		l.registry.stageNonce(ws, id, sender, next)
	}
	subnet.CircSupply.Sub(subnet.CircSupply, total)
	if err := l.registry.stageSubnet(ws, subnet); err != nil {
		return nil, nil, err
	}
	if err := l.store.stageExecuted(ws, rec); err != nil {
		return nil, nil, err
	}
	if err := ws.commit(); err != nil {
		return nil, nil, err
	}

	l.log.WithFields(logrus.Fields{
		"subnet": id.String(),
		"height": height,
		"msgs":   len(rec.Batch.Msgs),
		"value":  total.String(),
	}).Info("Bottom-up batch executed")

	return rec, outbox{BatchExecuted{
		Subnet: id,
		Height: height,
		Msgs:   rec.Batch.Copy().Msgs,
	}}, nil
}

// checkOrder enforces that a subnet's batches execute in height order: no
// earlier certified batch may be pending, and nothing below the last
// executed height may run.
func (l *Lifecycle) checkOrder(id inter.SubnetID, height idx.Block) error {
	pending, err := l.store.PendingCertified(id)
	if err != nil {
		return err
	}
	if len(pending) != 0 && pending[0] < height {
		return fmt.Errorf("%w: batch %d of subnet %s must execute before %d", ErrInvalidBatchEpoch, pending[0], id, height)
	}
	last, ok, err := l.store.LastExecutedHeight(id)
	if err != nil {
		return err
	}
	if ok && height < last {
		return fmt.Errorf("%w: height %d below last executed %d", ErrInvalidBatchEpoch, height, last)
	}
	return nil
}
