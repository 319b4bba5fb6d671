package frame

import (
	"image"

	"sorter/internal/model"
)

// Channels is the number of interleaved BGR bytes per pixel.
const Channels = 3

// Frame is a BGR raster with stride Width*Channels.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a black frame.
func New(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}
}

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*Channels
}

// Bounds returns the frame rectangle anchored at the origin.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Clone returns a deep copy.
func (f Frame) Clone() Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// Crop copies the part of the frame covered by box, clipped to the frame.
// ok is false when the clipped area is empty.
func (f Frame) Crop(box model.BoundingBox) (Frame, bool) {
	r := box.Rect().Intersect(f.Bounds())
	if r.Empty() {
		return Frame{}, false
	}

	out := New(r.Dx(), r.Dy())
	stride := f.Width * Channels
	rowLen := r.Dx() * Channels
	for y := 0; y < r.Dy(); y++ {
		src := (r.Min.Y+y)*stride + r.Min.X*Channels
		copy(out.Pix[y*rowLen:(y+1)*rowLen], f.Pix[src:src+rowLen])
	}
	return out, true
}

// ClipBox clips box to the frame bounds.
func (f Frame) ClipBox(box model.BoundingBox) model.BoundingBox {
	r := box.Rect().Intersect(f.Bounds())
	return model.BoundingBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}
