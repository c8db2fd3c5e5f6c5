package ibr

import (
	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/utils/cser"
)

// maxSignatories bounds the collected set read back from disk.
const maxSignatories = 1 << 16

func (s Signatory) MarshalCSER(w *cser.Writer) error {
	w.Address(s.Validator)
	w.BigInt(s.Weight)
	w.SliceBytes(s.Signature)
	return nil
}

func (s *Signatory) UnmarshalCSER(r *cser.Reader) error {
	s.Validator = r.Address()
	s.Weight = r.BigInt()
	s.Signature = r.SliceBytes(cser.MaxAlloc)
	return nil
}

func (q *QuorumRecord) MarshalCSER(w *cser.Writer) error {
	w.Hash(q.MembershipRoot)
	w.BigInt(q.MembershipWeight)
	w.U8(q.MajorityPercentage)
	w.BigInt(q.Threshold)
	w.BigInt(q.AccumulatedWeight)
	w.Bool(q.Reached)
	w.U56(uint64(len(q.Collected)))
	for _, s := range q.Collected {
		if err := s.MarshalCSER(w); err != nil {
			return err
		}
	}
	return nil
}

func (q *QuorumRecord) UnmarshalCSER(r *cser.Reader) error {
	q.MembershipRoot = r.Hash()
	q.MembershipWeight = r.BigInt()
	q.MajorityPercentage = r.U8()
	q.Threshold = r.BigInt()
	q.AccumulatedWeight = r.BigInt()
	q.Reached = r.Bool()
	n := r.SliceLen(maxSignatories)
	q.Collected = make([]Signatory, n)
	for i := range q.Collected {
		if err := q.Collected[i].UnmarshalCSER(r); err != nil {
			return err
		}
	}
	return nil
}

func (rec *BatchRecord) MarshalCSER(w *cser.Writer) error {
	if err := rec.Batch.MarshalCSER(w); err != nil {
		return err
	}
	w.Hash(rec.Hash)
	w.U8(uint8(rec.Status))
	return rec.Quorum.MarshalCSER(w)
}

func (rec *BatchRecord) UnmarshalCSER(r *cser.Reader) error {
	var batch inter.BottomUpMsgBatch
	if err := batch.UnmarshalCSER(r); err != nil {
		return err
	}
	rec.Batch = batch
	rec.Hash = r.Hash()
	status := Status(r.U8())
	if status > Pruned {
		return cser.ErrMalformedEncoding
	}
	rec.Status = status
	return rec.Quorum.UnmarshalCSER(r)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (rec *BatchRecord) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(rec.MarshalCSER)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (rec *BatchRecord) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, rec.UnmarshalCSER)
}
