package node

// PixelFormat tags a frame payload's element layout. Values are part of
// the wire contract between independent processes, so they must stay
// stable once published.
type PixelFormat uint32

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatBGR
	PixelFormatGray
	PixelFormatBGRA
)

// DescriptorKind distinguishes a frame node from a scalar-record node.
type DescriptorKind uint32

const (
	// KindUnset marks a node whose Sink has not bound yet.
	KindUnset DescriptorKind = iota
	// KindFrame marks a node carrying image frames (rows, cols, pixel
	// format, element size).
	KindFrame
	// KindRecord marks a node carrying fixed-size scalar records (e.g.
	// detected positions), whose internal layout is agreed out of band
	// between the participating processes.
	KindRecord
)

// Descriptor is the node's immutable payload metadata (spec §3, §6).
// Once a Sink binds a node, the descriptor never changes again for that
// node's lifetime.
type Descriptor struct {
	Kind DescriptorKind

	// Frame fields, meaningful when Kind == KindFrame.
	Rows        uint32
	Cols        uint32
	PixelFormat PixelFormat
	ElemSize    uint32

	// Record fields, meaningful when Kind == KindRecord.
	RecordSize uint32
}

// PayloadSize returns the number of payload bytes this descriptor
// implies a node's Sink must declare at bind time.
func (d Descriptor) PayloadSize() int {
	switch d.Kind {
	case KindFrame:
		return int(d.Rows) * int(d.Cols) * int(d.ElemSize)
	case KindRecord:
		return int(d.RecordSize)
	default:
		return 0
	}
}

// FrameDescriptor builds a Descriptor for an image frame node.
func FrameDescriptor(rows, cols uint32, format PixelFormat, elemSize uint32) Descriptor {
	return Descriptor{Kind: KindFrame, Rows: rows, Cols: cols, PixelFormat: format, ElemSize: elemSize}
}

// RecordDescriptor builds a Descriptor for a fixed-size scalar record
// node (e.g. a detected position).
func RecordDescriptor(recordSize uint32) Descriptor {
	return Descriptor{Kind: KindRecord, RecordSize: recordSize}
}
