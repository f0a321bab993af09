package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/oatfabric/shmdf/pkg/node"
)

// RecordView interprets a node's payload bytes as a fixed-size scalar
// record (e.g. a detected position). The record's internal field layout
// is agreed out of band between the participating processes (spec §3,
// §6); this view only enforces the overall size the descriptor declares
// and provides encoding/binary helpers for callers whose record is a
// flat struct of fixed-width fields.
type RecordView struct {
	desc node.Descriptor
	buf  []byte
}

// NewRecordView wraps buf, which must be at least desc.PayloadSize()
// bytes, as a RecordView. desc.Kind must be node.KindRecord.
func NewRecordView(desc node.Descriptor, buf []byte) (*RecordView, error) {
	if desc.Kind != node.KindRecord {
		return nil, fmt.Errorf("payload: descriptor kind %d is not a record", desc.Kind)
	}
	if len(buf) < desc.PayloadSize() {
		return nil, fmt.Errorf("payload: buffer too small: have %d, need %d", len(buf), desc.PayloadSize())
	}
	return &RecordView{desc: desc, buf: buf[:desc.PayloadSize()]}, nil
}

// Bytes returns the full record buffer.
func (r *RecordView) Bytes() []byte { return r.buf }

// Decode reads fields from the record into dst in the given byte order,
// via encoding/binary.Read. dst must be a pointer to a fixed-size type
// (struct of fixed-width fields, or scalar).
func (r *RecordView) Decode(order binary.ByteOrder, dst interface{}) error {
	return binary.Read(bytes.NewReader(r.buf), order, dst)
}

// Encode writes src into the record buffer in the given byte order, via
// encoding/binary.Write. The encoded size of src must not exceed the
// record's declared size.
func (r *RecordView) Encode(order binary.ByteOrder, src interface{}) error {
	var out bytes.Buffer
	if err := binary.Write(&out, order, src); err != nil {
		return err
	}
	if out.Len() > len(r.buf) {
		return fmt.Errorf("payload: encoded size %d exceeds record size %d", out.Len(), len(r.buf))
	}
	copy(r.buf, out.Bytes())
	return nil
}
