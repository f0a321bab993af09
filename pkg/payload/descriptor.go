package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/oatfabric/shmdf/pkg/node"
)

// descriptorWireSize is the fixed width of an encoded Descriptor: six
// uint32 fields, matching the control block's own descriptor layout
// (spec §3.2, §6).
const descriptorWireSize = 24

// EncodeDescriptor renders d as the fixed 24-byte wire form the control
// block itself uses, for callers that need to carry a descriptor
// somewhere other than a live control block — an audit log entry, a
// topology file, a message to a process that has not yet touched the
// node.
func EncodeDescriptor(d node.Descriptor) []byte {
	buf := make([]byte, descriptorWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(d.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], d.Rows)
	binary.LittleEndian.PutUint32(buf[8:12], d.Cols)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(d.PixelFormat))
	binary.LittleEndian.PutUint32(buf[16:20], d.ElemSize)
	binary.LittleEndian.PutUint32(buf[20:24], d.RecordSize)
	return buf
}

// DecodeDescriptor parses the wire form EncodeDescriptor produces. It
// fails if buf is shorter than the fixed descriptor width.
func DecodeDescriptor(buf []byte) (node.Descriptor, error) {
	if len(buf) < descriptorWireSize {
		return node.Descriptor{}, fmt.Errorf("payload: descriptor buffer too small: have %d, need %d", len(buf), descriptorWireSize)
	}
	r := bytes.NewReader(buf[:descriptorWireSize])
	var raw struct {
		Kind        uint32
		Rows        uint32
		Cols        uint32
		PixelFormat uint32
		ElemSize    uint32
		RecordSize  uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return node.Descriptor{}, err
	}
	return node.Descriptor{
		Kind:        node.DescriptorKind(raw.Kind),
		Rows:        raw.Rows,
		Cols:        raw.Cols,
		PixelFormat: node.PixelFormat(raw.PixelFormat),
		ElemSize:    raw.ElemSize,
		RecordSize:  raw.RecordSize,
	}, nil
}
