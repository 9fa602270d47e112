// Package frame turns untrusted client payloads into canonical pixel buffers.
//
// Decoding is total: Decode returns either a 224x224 RGB buffer or a
// *DecodeError carrying a Kind. Codec panics are recovered and reported as
// KindUnsupportedImage.
//
//	buf, err := frame.Decode(frame.Inline("data:image/jpeg;base64,/9j/4AAQ..."))
//	if err != nil {
//	    switch frame.KindOf(err) { ... }
//	}
package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxSourcePixels bounds the declared size of an incoming image before its
// pixels are allocated.
const MaxSourcePixels = 40_000_000

// separator splits the inline header ("data:image/jpeg;base64") from the body.
const separator = ","

// Decode converts a payload into a canonical PixelBuffer.
func Decode(p RawPayload) (*PixelBuffer, error) {
	switch p.Source {
	case SourceInline:
		data, err := decodeInline(p.Text)
		if err != nil {
			return nil, err
		}
		return DecodeImage(data)
	case SourceUpload:
		return DecodeImage(p.Data)
	default:
		return nil, Missing()
	}
}

func decodeInline(text string) ([]byte, error) {
	_, body, ok := strings.Cut(text, separator)
	if !ok {
		return nil, fail(KindMalformedEncoding, fmt.Errorf("missing %q between header and body", separator))
	}
	body = strings.TrimSpace(body)

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil && !strings.Contains(body, "=") {
		data, err = base64.RawStdEncoding.DecodeString(body)
	}
	if err != nil {
		return nil, fail(KindMalformedEncoding, err)
	}
	return data, nil
}

// DecodeImage decodes raw container bytes and resamples them to the
// canonical size.
func DecodeImage(data []byte) (buf *PixelBuffer, err error) {
	if len(data) == 0 {
		return nil, fail(KindUnsupportedImage, fmt.Errorf("empty image"))
	}

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fail(KindUnsupportedImage, fmt.Errorf("decoder panic: %v", r))
		}
	}()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fail(KindUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fail(KindUnsupportedImage, fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.Width*cfg.Height > MaxSourcePixels {
		return nil, fail(KindUnsupportedImage, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fail(KindUnsupportedImage, err)
	}

	return Normalize(img), nil
}

// Normalize resamples any image to Width x Height RGB using bilinear
// interpolation. The result is deterministic for identical input.
func Normalize(img image.Image) *PixelBuffer {
	resized := resize.Resize(Width, Height, img, resize.Bilinear)
	buf := newPixelBuffer()

	if rgba, ok := resized.(*image.RGBA); ok && rgba.Bounds().Dx() == Width && rgba.Bounds().Dy() == Height {
		for y := 0; y < Height; y++ {
			row := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < Width; x++ {
				i := (y*Width + x) * Channels
				buf.Pix[i] = row[x*4]
				buf.Pix[i+1] = row[x*4+1]
				buf.Pix[i+2] = row[x*4+2]
			}
		}
		return buf
	}

	b := resized.Bounds()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			c := color.RGBAModel.Convert(resized.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			i := (y*Width + x) * Channels
			buf.Pix[i] = c.R
			buf.Pix[i+1] = c.G
			buf.Pix[i+2] = c.B
		}
	}
	return buf
}
