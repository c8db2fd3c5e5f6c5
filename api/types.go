package api

import (
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/consensus-shipyard/ipc-sub004/gateway"
	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
)

type IPCAddress struct {
	Subnet inter.SubnetID `json:"subnet"`
	Raw    common.Address `json:"raw"`
}

type CrossMsg struct {
	From    IPCAddress     `json:"from"`
	To      IPCAddress     `json:"to"`
	Value   *hexutil.Big   `json:"value"`
	Nonce   hexutil.Uint64 `json:"nonce"`
	Method  hexutil.Bytes  `json:"method,omitempty"`
	Params  hexutil.Bytes  `json:"params,omitempty"`
	Fee     *hexutil.Big   `json:"fee,omitempty"`
	Wrapped bool           `json:"wrapped,omitempty"`
}

type Batch struct {
	Subnet      inter.SubnetID `json:"subnet"`
	BlockHeight hexutil.Uint64 `json:"blockHeight"`
	Msgs        []CrossMsg     `json:"msgs"`
}

type Signatory struct {
	Validator common.Address `json:"validator"`
	Weight    *hexutil.Big   `json:"weight"`
	Signature hexutil.Bytes  `json:"signature"`
}

type Quorum struct {
	MembershipRoot     common.Hash    `json:"membershipRoot"`
	MembershipWeight   *hexutil.Big   `json:"membershipWeight"`
	MajorityPercentage hexutil.Uint64 `json:"majorityPercentage"`
	Threshold          *hexutil.Big   `json:"threshold"`
	AccumulatedWeight  *hexutil.Big   `json:"accumulatedWeight"`
	Reached            bool           `json:"reached"`
	Signatories        []Signatory    `json:"signatories"`
}

type BatchRecord struct {
	Batch  Batch       `json:"batch"`
	Hash   common.Hash `json:"hash"`
	Status ibr.Status  `json:"status"`
	Quorum Quorum      `json:"quorum"`
}

type CreateBatchRequest struct {
	Batch            Batch        `json:"batch"`
	MembershipRoot   common.Hash  `json:"membershipRoot"`
	MembershipWeight *hexutil.Big `json:"membershipWeight"`
}

type SignatureRequest struct {
	Subnet    inter.SubnetID `json:"subnet"`
	Height    hexutil.Uint64 `json:"height"`
	Proof     []common.Hash  `json:"proof"`
	Weight    *hexutil.Big   `json:"weight"`
	Signature hexutil.Bytes  `json:"signature"`
}

type ExecRequest struct {
	Batch Batch `json:"batch"`
}

type RetentionRequest struct {
	Subnet inter.SubnetID `json:"subnet"`
	Height hexutil.Uint64 `json:"height"`
}

type RetentionResponse struct {
	Retention hexutil.Uint64   `json:"retention"`
	Pruned    []hexutil.Uint64 `json:"pruned"`
}

type SubnetRequest struct {
	ID     inter.SubnetID `json:"id"`
	Origin common.Address `json:"origin,omitempty"`
	Amount *hexutil.Big   `json:"amount,omitempty"`
}

type Subnet struct {
	ID                 inter.SubnetID   `json:"id"`
	Origin             common.Address   `json:"origin"`
	CircSupply         *hexutil.Big     `json:"circSupply"`
	Active             bool             `json:"active"`
	RetentionHeight    hexutil.Uint64   `json:"retentionHeight"`
	LastExecutedHeight *hexutil.Uint64  `json:"lastExecutedHeight"`
	Incomplete         []hexutil.Uint64 `json:"incomplete"`
	PendingCertified   []hexutil.Uint64 `json:"pendingCertified"`
}

type NonceResponse struct {
	Nonce hexutil.Uint64 `json:"nonce"`
}

// MembershipResponse carries the proof a validator attaches to its signature.
type MembershipResponse struct {
	Root        common.Hash   `json:"root"`
	TotalWeight *hexutil.Big  `json:"totalWeight"`
	Weight      *hexutil.Big  `json:"weight"`
	Proof       []common.Hash `json:"proof"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Name  string `json:"name,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func toBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return (*big.Int)(v)
}

func fromBig(v *big.Int) *hexutil.Big {
	if v == nil {
		return nil
	}
	return (*hexutil.Big)(new(big.Int).Set(v))
}

func heights(hh []idx.Block) []hexutil.Uint64 {
	out := make([]hexutil.Uint64, len(hh))
	for i, h := range hh {
		out[i] = hexutil.Uint64(h)
	}
	return out
}

// ToBatch converts the request form of a batch.
func (b Batch) ToBatch() (inter.BottomUpMsgBatch, error) {
	out := inter.BottomUpMsgBatch{
		SubnetID:    b.Subnet,
		BlockHeight: idx.Block(b.BlockHeight),
		Msgs:        make([]inter.CrossMsg, len(b.Msgs)),
	}
	for i, m := range b.Msgs {
		var method inter.MethodSelector
		switch len(m.Method) {
		case 0:
		case len(method):
			copy(method[:], m.Method)
		default:
			return inter.BottomUpMsgBatch{}, fmt.Errorf("message %d: method selector must be %d bytes", i, len(method))
		}
		out.Msgs[i] = inter.CrossMsg{
			Message: inter.StorableMsg{
				From:   inter.IPCAddress{Subnet: m.From.Subnet, Raw: m.From.Raw},
				To:     inter.IPCAddress{Subnet: m.To.Subnet, Raw: m.To.Raw},
				Value:  toBig(m.Value),
				Nonce:  uint64(m.Nonce),
				Method: method,
				Params: m.Params,
				Fee:    toBig(m.Fee),
			},
			Wrapped: m.Wrapped,
		}
	}
	return out, nil
}

func NewBatch(b inter.BottomUpMsgBatch) Batch {
	out := Batch{
		Subnet:      b.SubnetID,
		BlockHeight: hexutil.Uint64(b.BlockHeight),
		Msgs:        make([]CrossMsg, len(b.Msgs)),
	}
	for i, m := range b.Msgs {
		msg := m.Message
		out.Msgs[i] = CrossMsg{
			From:    IPCAddress{Subnet: msg.From.Subnet, Raw: msg.From.Raw},
			To:      IPCAddress{Subnet: msg.To.Subnet, Raw: msg.To.Raw},
			Value:   fromBig(msg.Value),
			Nonce:   hexutil.Uint64(msg.Nonce),
			Params:  msg.Params,
			Fee:     fromBig(msg.Fee),
			Wrapped: m.Wrapped,
		}
		if msg.Method != (inter.MethodSelector{}) {
			out.Msgs[i].Method = msg.Method[:]
		}
	}
	return out
}

func NewBatchRecord(rec *ibr.BatchRecord) BatchRecord {
	q := rec.Quorum
	out := BatchRecord{
		Batch:  NewBatch(rec.Batch),
		Hash:   rec.Hash,
		Status: rec.Status,
		Quorum: Quorum{
			MembershipRoot:     q.MembershipRoot,
			MembershipWeight:   fromBig(q.MembershipWeight),
			MajorityPercentage: hexutil.Uint64(q.MajorityPercentage),
			Threshold:          fromBig(q.Threshold),
			AccumulatedWeight:  fromBig(q.AccumulatedWeight),
			Reached:            q.Reached,
			Signatories:        make([]Signatory, len(q.Collected)),
		},
	}
	for i, s := range q.Collected {
		out.Quorum.Signatories[i] = Signatory{
			Validator: s.Validator,
			Weight:    fromBig(s.Weight),
			Signature: s.Signature,
		}
	}
	return out
}

func newSubnet(rec *gateway.SubnetRecord) Subnet {
	return Subnet{
		ID:         rec.ID,
		Origin:     rec.Origin,
		CircSupply: fromBig(rec.CircSupply),
		Active:     rec.Active,
	}
}
