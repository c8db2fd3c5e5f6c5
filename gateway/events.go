package gateway

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/iep"
)

// QuorumWeightUpdated is sent for every accepted signature.
type QuorumWeightUpdated struct {
	Subnet            inter.SubnetID
	Height            idx.Block
	Validator         common.Address
	Weight            *big.Int
	AccumulatedWeight *big.Int
}

// QuorumReached is sent once per batch, when it becomes Certified.
type QuorumReached struct {
	Subnet            inter.SubnetID
	Height            idx.Block
	Hash              common.Hash
	AccumulatedWeight *big.Int
}

// BatchExecuted carries the messages of an executed batch, in execution
// order, to the components delivering them.
type BatchExecuted struct {
	Subnet inter.SubnetID
	Height idx.Block
	Msgs   []inter.CrossMsg
}

// BatchesPruned reports the heights removed by a retention update.
type BatchesPruned struct {
	Subnet    inter.SubnetID
	Retention idx.Block
	Heights   []idx.Block
}

type feeds struct {
	weightUpdated event.Feed
	quorumReached event.Feed
	certified     event.Feed
	executed      event.Feed
	pruned        event.Feed
	scope         event.SubscriptionScope
}

// outbox holds the notifications of one operation until it has committed and
// released its subnet lock.
type outbox []interface{}

func (f *feeds) publish(o outbox) {
	for _, ev := range o {
		switch ev := ev.(type) {
		case QuorumWeightUpdated:
			f.weightUpdated.Send(ev)
		case QuorumReached:
			f.quorumReached.Send(ev)
		case iep.CertifiedBatchPack:
			f.certified.Send(ev)
		case BatchExecuted:
			f.executed.Send(ev)
		case BatchesPruned:
			f.pruned.Send(ev)
		}
	}
}

func (g *Gateway) SubscribeQuorumWeightUpdated(ch chan<- QuorumWeightUpdated) event.Subscription {
	return g.feeds.scope.Track(g.feeds.weightUpdated.Subscribe(ch))
}

func (g *Gateway) SubscribeQuorumReached(ch chan<- QuorumReached) event.Subscription {
	return g.feeds.scope.Track(g.feeds.quorumReached.Subscribe(ch))
}

// SubscribeCertified delivers a pack for every batch that reaches quorum,
// ready to be relayed to the parent.
func (g *Gateway) SubscribeCertified(ch chan<- iep.CertifiedBatchPack) event.Subscription {
	return g.feeds.scope.Track(g.feeds.certified.Subscribe(ch))
}

// SubscribeExecuted is how deliverers receive executed messages.
func (g *Gateway) SubscribeExecuted(ch chan<- BatchExecuted) event.Subscription {
	return g.feeds.scope.Track(g.feeds.executed.Subscribe(ch))
}

func (g *Gateway) SubscribePruned(ch chan<- BatchesPruned) event.Subscription {
	return g.feeds.scope.Track(g.feeds.pruned.Subscribe(ch))
}
