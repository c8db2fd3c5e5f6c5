package gateway

import (
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/ethereum/go-ethereum/common"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/utils/cser"
)

// SubnetRecord is the gateway's view of a registered child subnet.
type SubnetRecord struct {
	ID inter.SubnetID
	// Origin is the only address allowed to commit batches for the subnet.
	Origin common.Address
	// CircSupply is the value held by the subnet, released by bottom-up
	// messages and increased by funding.
	CircSupply *big.Int
	Active     bool
	// Validators is the validator set the subnet was registered with, if any.
	Validators inter.Validators
}

// maxValidators bounds the validator set read back from a subnet record.
const maxValidators = 10000

func (r *SubnetRecord) MarshalCSER(w *cser.Writer) error {
	if err := r.ID.MarshalCSER(w); err != nil {
		return err
	}
	w.Address(r.Origin)
	w.BigInt(r.CircSupply)
	w.Bool(r.Active)
	w.U56(uint64(len(r.Validators)))
	for _, v := range r.Validators {
		if err := v.MarshalCSER(w); err != nil {
			return err
		}
	}
	return nil
}

func (r *SubnetRecord) UnmarshalCSER(rd *cser.Reader) error {
	if err := r.ID.UnmarshalCSER(rd); err != nil {
		return err
	}
	r.Origin = rd.Address()
	r.CircSupply = rd.BigInt()
	r.Active = rd.Bool()
	n := rd.SliceLen(maxValidators)
	r.Validators = nil
	if n != 0 {
		r.Validators = make(inter.Validators, n)
	}
	for i := range r.Validators {
		if err := r.Validators[i].UnmarshalCSER(rd); err != nil {
			return err
		}
	}
	return nil
}

// Registry keeps the registered subnets and the bottom-up nonce of every
// sender. It shares the batch store's database so that executing a batch
// commits nonces, supply and status together.
type Registry struct {
	db    kvdb.Store
	table tables
}

func NewRegistry(db kvdb.Store) *Registry {
	return &Registry{
		db:    db,
		table: newTables(db),
	}
}

// Register adds an active subnet. validators may be empty.
func (r *Registry) Register(id inter.SubnetID, origin common.Address, supply *big.Int, validators inter.Validators) error {
	if _, ok, err := r.get(id); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrSubnetAlreadyExists, id)
	}
	if supply == nil {
		supply = new(big.Int)
	}
	if err := inter.CheckAmount(supply); err != nil {
		return fmt.Errorf("%w: supply: %v", ErrInvalidCrossMsgValue, err)
	}
	if len(validators) > maxValidators {
		return fmt.Errorf("subnet %s has %d validators, at most %d", id, len(validators), maxValidators)
	}
	ws := newWriteSet(r.db)
	if err := r.stageSubnet(ws, &SubnetRecord{
		ID:         id.Copy(),
		Origin:     origin,
		CircSupply: new(big.Int).Set(supply),
		Active:     true,
		Validators: validators.Copy(),
	}); err != nil {
		return err
	}
	return ws.commit()
}

// Subnet returns the record of a registered subnet, active or not.
func (r *Registry) Subnet(id inter.SubnetID) (*SubnetRecord, error) {
	rec, ok, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubnetNotFound, id)
	}
	return rec, nil
}

// ActiveSubnet is Subnet that also rejects deactivated subnets.
func (r *Registry) ActiveSubnet(id inter.SubnetID) (*SubnetRecord, error) {
	rec, err := r.Subnet(id)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, fmt.Errorf("%w: %s", ErrNotRegisteredSubnet, id)
	}
	return rec, nil
}

// Fund increases the circulating supply of an active subnet.
func (r *Registry) Fund(id inter.SubnetID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: fund amount must be positive", ErrInvalidCrossMsgValue)
	}
	if err := inter.CheckAmount(amount); err != nil {
		return fmt.Errorf("%w: fund amount: %v", ErrInvalidCrossMsgValue, err)
	}
	rec, err := r.ActiveSubnet(id)
	if err != nil {
		return err
	}
	rec.CircSupply.Add(rec.CircSupply, amount)
	ws := newWriteSet(r.db)
	if err := r.stageSubnet(ws, rec); err != nil {
		return err
	}
	return ws.commit()
}

// Kill deactivates a subnet. Its stored batches stay readable.
func (r *Registry) Kill(id inter.SubnetID) error {
	rec, err := r.ActiveSubnet(id)
	if err != nil {
		return err
	}
	rec.Active = false
	ws := newWriteSet(r.db)
	if err := r.stageSubnet(ws, rec); err != nil {
		return err
	}
	return ws.commit()
}

// ExpectedNonce is the nonce the next bottom-up message of sender must carry.
func (r *Registry) ExpectedNonce(id inter.SubnetID, sender common.Address) (uint64, error) {
	return getUint64(r.table.Nonces, nonceKey(id, sender))
}

func (r *Registry) get(id inter.SubnetID) (*SubnetRecord, bool, error) {
	raw, err := r.table.Subnets.Get(subnetKey(id))
	if err != nil || raw == nil {
		return nil, false, err
	}
	rec := &SubnetRecord{}
	if err := cser.UnmarshalBinaryAdapter(raw, rec.UnmarshalCSER); err != nil {
		return nil, false, fmt.Errorf("corrupted subnet record %s: %w", id, err)
	}
	return rec, true, nil
}

func (r *Registry) stageSubnet(ws *writeSet, rec *SubnetRecord) error {
	raw, err := cser.MarshalBinaryAdapter(rec.MarshalCSER)
	if err != nil {
		return err
	}
	ws.put(prefixSubnets, subnetKey(rec.ID), raw)
	return nil
}

func (r *Registry) stageNonce(ws *writeSet, id inter.SubnetID, sender common.Address, next uint64) {
	ws.put(prefixNonces, nonceKey(id, sender), bigendian.Uint64ToBytes(next))
}
