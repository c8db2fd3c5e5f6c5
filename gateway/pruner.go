package gateway

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/sirupsen/logrus"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
)

// Pruner advances the per-subnet retention watermark and drops the batches
// that fall below it.
type Pruner struct {
	store  *BatchStore
	policy ipc.RetentionPolicy
	log    logrus.FieldLogger
}

// SetRetentionHeight moves the watermark of id to height and prunes in the
// same commit. The watermark never goes down.
func (p *Pruner) SetRetentionHeight(id inter.SubnetID, height idx.Block) ([]idx.Block, outbox, error) {
	current, err := p.store.RetentionHeight(id)
	if err != nil {
		return nil, nil, err
	}
	if height < current {
		return nil, nil, fmt.Errorf("%w: %d is below current retention height %d", ErrInvalidRetentionHeight, height, current)
	}

	ws := p.store.newWriteSet()
	p.store.stageRetention(ws, id, height)
	pruned, err := p.store.stagePruneBelow(ws, id, height, p.policy)
	if err != nil {
		return nil, nil, err
	}
	if err := ws.commit(); err != nil {
		return nil, nil, err
	}

	p.log.WithFields(logrus.Fields{
		"subnet":    id.String(),
		"retention": height,
		"pruned":    len(pruned),
	}).Info("Retention height updated")

	return pruned, outbox{BatchesPruned{
		Subnet:    id,
		Retention: height,
		Heights:   pruned,
	}}, nil
}
