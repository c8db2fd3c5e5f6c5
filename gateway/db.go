package gateway

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/table"
	"github.com/ethereum/go-ethereum/common"

	"github.com/consensus-shipyard/ipc-sub004/inter"
)

// Table prefixes. Reads go through the prefixed tables, writes are staged in
// one batch of the underlying store so that an operation commits atomically.
const (
	prefixBatches      = "b"
	prefixLastCreated  = "l"
	prefixLastExecuted = "e"
	prefixRetention    = "r"
	prefixIncomplete   = "i"
	prefixCertified    = "c"
	prefixSubnets      = "s"
	prefixNonces       = "n"
)

type tables struct {
	Batches      kvdb.Store
	LastCreated  kvdb.Store
	LastExecuted kvdb.Store
	Retention    kvdb.Store
	Incomplete   kvdb.Store
	Certified    kvdb.Store
	Subnets      kvdb.Store
	Nonces       kvdb.Store
}

func newTables(db kvdb.Store) tables {
	return tables{
		Batches:      table.New(db, []byte(prefixBatches)),
		LastCreated:  table.New(db, []byte(prefixLastCreated)),
		LastExecuted: table.New(db, []byte(prefixLastExecuted)),
		Retention:    table.New(db, []byte(prefixRetention)),
		Incomplete:   table.New(db, []byte(prefixIncomplete)),
		Certified:    table.New(db, []byte(prefixCertified)),
		Subnets:      table.New(db, []byte(prefixSubnets)),
		Nonces:       table.New(db, []byte(prefixNonces)),
	}
}

// writeSet collects the writes of one operation.
type writeSet struct {
	batch kvdb.Batch
	err   error
}

func newWriteSet(db kvdb.Store) *writeSet {
	return &writeSet{batch: db.NewBatch()}
}

func (w *writeSet) put(prefix string, key, value []byte) {
	if w.err != nil {
		return
	}
	w.err = w.batch.Put(append([]byte(prefix), key...), value)
}

func (w *writeSet) delete(prefix string, key []byte) {
	if w.err != nil {
		return
	}
	w.err = w.batch.Delete(append([]byte(prefix), key...))
}

func (w *writeSet) commit() error {
	if w.err != nil {
		return w.err
	}
	return w.batch.Write()
}

func subnetKey(id inter.SubnetID) []byte {
	k := id.Key()
	return k.Bytes()
}

func batchKey(id inter.SubnetID, height idx.Block) []byte {
	return append(subnetKey(id), height.Bytes()...)
}

// subnetKeyLen is the size of inter.SubnetID.Key.
const subnetKeyLen = 32

func heightFromKey(key []byte) idx.Block {
	return idx.BytesToBlock(key[subnetKeyLen:])
}

func nonceKey(id inter.SubnetID, sender common.Address) []byte {
	return append(subnetKey(id), sender.Bytes()...)
}

func getHeight(t kvdb.Store, key []byte) (idx.Block, bool, error) {
	v, err := t.Get(key)
	if err != nil || v == nil {
		return 0, false, err
	}
	return idx.Block(bigendian.BytesToUint64(v)), true, nil
}

func getUint64(t kvdb.Store, key []byte) (uint64, error) {
	v, err := t.Get(key)
	if err != nil || v == nil {
		return 0, err
	}
	return bigendian.BytesToUint64(v), nil
}
