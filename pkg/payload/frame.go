package payload

import (
	"fmt"

	"github.com/oatfabric/shmdf/pkg/node"
)

// FrameView interprets a node's payload bytes as a row-major image
// according to its descriptor. It never copies the underlying slice.
type FrameView struct {
	desc node.Descriptor
	buf  []byte
}

// NewFrameView wraps buf, which must be at least desc.PayloadSize()
// bytes, as a FrameView. desc.Kind must be node.KindFrame.
func NewFrameView(desc node.Descriptor, buf []byte) (*FrameView, error) {
	if desc.Kind != node.KindFrame {
		return nil, fmt.Errorf("payload: descriptor kind %d is not a frame", desc.Kind)
	}
	if len(buf) < desc.PayloadSize() {
		return nil, fmt.Errorf("payload: buffer too small: have %d, need %d", len(buf), desc.PayloadSize())
	}
	return &FrameView{desc: desc, buf: buf}, nil
}

func (f *FrameView) Rows() int                     { return int(f.desc.Rows) }
func (f *FrameView) Cols() int                     { return int(f.desc.Cols) }
func (f *FrameView) PixelFormat() node.PixelFormat { return f.desc.PixelFormat }
func (f *FrameView) ElemSize() int                 { return int(f.desc.ElemSize) }

// Row returns the bytes of row r without copying.
func (f *FrameView) Row(r int) ([]byte, error) {
	if r < 0 || r >= f.Rows() {
		return nil, fmt.Errorf("payload: row %d out of range [0,%d)", r, f.Rows())
	}
	stride := f.Cols() * f.ElemSize()
	start := r * stride
	return f.buf[start : start+stride], nil
}

// Pixel returns the raw bytes of the element at (row, col).
func (f *FrameView) Pixel(row, col int) ([]byte, error) {
	if col < 0 || col >= f.Cols() {
		return nil, fmt.Errorf("payload: col %d out of range [0,%d)", col, f.Cols())
	}
	r, err := f.Row(row)
	if err != nil {
		return nil, err
	}
	off := col * f.ElemSize()
	return r[off : off+f.ElemSize()], nil
}

// Bytes returns the full backing buffer, row-major.
func (f *FrameView) Bytes() []byte { return f.buf }
