package frame

import (
	"image"
)

// Canonical frame geometry. Every PixelBuffer produced by this package has
// exactly these dimensions.
const (
	Width    = 224
	Height   = 224
	Channels = 3
)

// PixelBuffer is a decoded frame normalized to Width x Height, 8-bit RGB,
// interleaved and row-major. A buffer belongs to the call that produced it.
type PixelBuffer struct {
	Pix []uint8
}

func newPixelBuffer() *PixelBuffer {
	return &PixelBuffer{Pix: make([]uint8, Width*Height*Channels)}
}

// Bounds returns the canonical frame rectangle.
func (b *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// At returns the RGB triple at (x, y).
func (b *PixelBuffer) At(x, y int) (r, g, bl uint8) {
	i := (y*Width + x) * Channels
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// BGR returns a copy of the pixels in OpenCV channel order.
func (b *PixelBuffer) BGR() []uint8 {
	out := make([]uint8, len(b.Pix))
	for i := 0; i+2 < len(b.Pix); i += Channels {
		out[i] = b.Pix[i+2]
		out[i+1] = b.Pix[i+1]
		out[i+2] = b.Pix[i]
	}
	return out
}

// Image returns the buffer as an opaque RGBA image (for debugging and
// re-encoding).
func (b *PixelBuffer) Image() *image.RGBA {
	img := image.NewRGBA(b.Bounds())
	for p, i := 0, 0; p < Width*Height; p, i = p+1, i+Channels {
		img.Pix[p*4] = b.Pix[i]
		img.Pix[p*4+1] = b.Pix[i+1]
		img.Pix[p*4+2] = b.Pix[i+2]
		img.Pix[p*4+3] = 0xff
	}
	return img
}

// Mean returns the per-channel mean intensity in [0, 255].
func (b *PixelBuffer) Mean() (r, g, bl float64) {
	var sr, sg, sb uint64
	for i := 0; i+2 < len(b.Pix); i += Channels {
		sr += uint64(b.Pix[i])
		sg += uint64(b.Pix[i+1])
		sb += uint64(b.Pix[i+2])
	}
	n := float64(Width * Height)
	return float64(sr) / n, float64(sg) / n, float64(sb) / n
}
