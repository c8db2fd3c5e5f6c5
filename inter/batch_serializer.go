package inter

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/consensus-shipyard/ipc-sub004/utils/cser"
)

// ProtocolMaxMsgSize bounds every length read from an encoded batch (10 MB).
const ProtocolMaxMsgSize = 10 * 1024 * 1024

func (s SubnetID) MarshalCSER(w *cser.Writer) error {
	w.U64(s.Root)
	w.U56(uint64(len(s.Route)))
	for _, a := range s.Route {
		w.Address(a)
	}
	return nil
}

func (s *SubnetID) UnmarshalCSER(r *cser.Reader) error {
	root := r.U64()
	n := r.SliceLen(ProtocolMaxMsgSize / 20)
	s.Root = root
	s.Route = nil
	for i := 0; i < n; i++ {
		s.Route = append(s.Route, r.Address())
	}
	return nil
}

func (a IPCAddress) MarshalCSER(w *cser.Writer) error {
	if err := a.Subnet.MarshalCSER(w); err != nil {
		return err
	}
	w.Address(a.Raw)
	return nil
}

func (a *IPCAddress) UnmarshalCSER(r *cser.Reader) error {
	if err := a.Subnet.UnmarshalCSER(r); err != nil {
		return err
	}
	a.Raw = r.Address()
	return nil
}

func (m CrossMsg) MarshalCSER(w *cser.Writer) error {
	msg := &m.Message
	if err := msg.From.MarshalCSER(w); err != nil {
		return err
	}
	if err := msg.To.MarshalCSER(w); err != nil {
		return err
	}
	writeOptBig(w, msg.Value)
	w.U64(msg.Nonce)
	w.FixedBytes(msg.Method[:])
	w.SliceBytes(msg.Params)
	writeOptBig(w, msg.Fee)
	w.Bool(m.Wrapped)
	return nil
}

func (m *CrossMsg) UnmarshalCSER(r *cser.Reader) error {
	msg := &m.Message
	if err := msg.From.UnmarshalCSER(r); err != nil {
		return err
	}
	if err := msg.To.UnmarshalCSER(r); err != nil {
		return err
	}
	msg.Value = readOptBig(r)
	msg.Nonce = r.U64()
	r.FixedBytes(msg.Method[:])
	msg.Params = r.SliceBytes(ProtocolMaxMsgSize)
	if len(msg.Params) == 0 {
		msg.Params = nil
	}
	msg.Fee = readOptBig(r)
	m.Wrapped = r.Bool()
	return nil
}

func (b *BottomUpMsgBatch) MarshalCSER(w *cser.Writer) error {
	if err := b.CheckValues(); err != nil {
		return err
	}
	if err := b.SubnetID.MarshalCSER(w); err != nil {
		return err
	}
	w.U64(uint64(b.BlockHeight))
	w.U56(uint64(len(b.Msgs)))
	for _, m := range b.Msgs {
		if err := m.MarshalCSER(w); err != nil {
			return err
		}
	}
	return nil
}

func (b *BottomUpMsgBatch) UnmarshalCSER(r *cser.Reader) error {
	if err := b.SubnetID.UnmarshalCSER(r); err != nil {
		return err
	}
	b.BlockHeight = idx.Block(r.U64())
	// every message takes at least two subnet roots and two addresses
	n := r.SliceLen(ProtocolMaxMsgSize / 40)
	b.Msgs = make([]CrossMsg, n)
	for i := range b.Msgs {
		if err := b.Msgs[i].UnmarshalCSER(r); err != nil {
			return err
		}
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (b *BottomUpMsgBatch) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(b.MarshalCSER)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (b *BottomUpMsgBatch) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, b.UnmarshalCSER)
}

func (v Validator) MarshalCSER(w *cser.Writer) error {
	w.Address(v.Addr)
	w.BigInt(v.Weight)
	w.SliceBytes(v.Metadata)
	return nil
}

func (v *Validator) UnmarshalCSER(r *cser.Reader) error {
	v.Addr = r.Address()
	v.Weight = r.BigInt()
	v.Metadata = r.SliceBytes(cser.MaxAlloc)
	if len(v.Metadata) == 0 {
		v.Metadata = nil
	}
	return nil
}

func writeOptBig(w *cser.Writer, v *big.Int) {
	w.Bool(v != nil)
	if v != nil {
		w.BigInt(v)
	}
}

func readOptBig(r *cser.Reader) *big.Int {
	if !r.Bool() {
		return nil
	}
	return r.BigInt()
}
