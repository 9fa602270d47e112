package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestDecode_CanonicalDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"tiny", 1, 1},
		{"square", 224, 224},
		{"landscape", 640, 480},
		{"portrait", 90, 400},
		{"wide strip", 1000, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := gradient(tc.w, tc.h)
			for _, p := range []RawPayload{
				Upload(encodePNG(t, img)),
				Inline(dataURL("image/jpeg", encodeJPEG(t, img))),
			} {
				buf, err := Decode(p)
				if err != nil {
					t.Fatalf("Decode(%s): %v", p.Source, err)
				}
				if len(buf.Pix) != Width*Height*Channels {
					t.Errorf("Decode(%s): len(Pix) = %d, want %d", p.Source, len(buf.Pix), Width*Height*Channels)
				}
				if buf.Bounds().Dx() != Width || buf.Bounds().Dy() != Height {
					t.Errorf("Decode(%s): bounds = %v", p.Source, buf.Bounds())
				}
			}
		})
	}
}

func TestDecode_GIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 30, 20), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}

	out, err := Decode(Upload(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r, g, b := out.At(0, 0); r != 0 || g != 0 || b != 0 {
		t.Errorf("At(0,0) = %d,%d,%d, want black", r, g, b)
	}
}

func TestDecode_MalformedEncoding(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no separator", "data:image/jpeg;base64" + base64.StdEncoding.EncodeToString([]byte("abc"))},
		{"plain text", "hello world"},
		{"invalid base64", "data:image/jpeg;base64,@@@not-base64@@@"},
		{"bad padding", "data:image/png;base64,QUJD=A"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Decode(Inline(tc.text))
			if buf != nil {
				t.Error("expected nil buffer on failure")
			}
			if KindOf(err) != KindMalformedEncoding {
				t.Fatalf("kind = %v, want MalformedEncoding (err=%v)", KindOf(err), err)
			}
			if !errors.Is(err, ErrMalformedEncoding) {
				t.Error("errors.Is(err, ErrMalformedEncoding) = false")
			}
		})
	}
}

func TestDecode_UnsupportedImage(t *testing.T) {
	valid := encodeJPEG(t, gradient(64, 64))

	tests := []struct {
		name    string
		payload RawPayload
	}{
		{"empty upload", Upload(nil)},
		{"empty inline body", Inline("data:image/jpeg;base64,")},
		{"text bytes", Upload([]byte("definitely not an image"))},
		{"inline text bytes", Inline(dataURL("image/png", []byte("GIF? no")))},
		{"truncated jpeg", Upload(valid[:len(valid)/3])},
		{"header only", Upload([]byte{0xFF, 0xD8, 0xFF})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Decode(tc.payload)
			if buf != nil {
				t.Error("expected nil buffer on failure")
			}
			if KindOf(err) != KindUnsupportedImage {
				t.Fatalf("kind = %v, want UnsupportedOrCorruptImage (err=%v)", KindOf(err), err)
			}
			if !errors.Is(err, ErrUnsupportedImage) {
				t.Error("errors.Is(err, ErrUnsupportedImage) = false")
			}
		})
	}
}

func TestDecode_UnpaddedBase64(t *testing.T) {
	data := encodePNG(t, gradient(10, 10))
	text := "data:image/png;base64," + base64.RawStdEncoding.EncodeToString(data)

	if _, err := Decode(Inline(text)); err != nil {
		t.Fatalf("Decode unpadded: %v", err)
	}
}

func TestDecode_Idempotent(t *testing.T) {
	p := Inline(dataURL("image/jpeg", encodeJPEG(t, gradient(317, 211))))

	a, err := Decode(p)
	if err != nil {
		t.Fatalf("first Decode: %v", err)
	}
	b, err := Decode(p)
	if err != nil {
		t.Fatalf("second Decode: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("decoding the same payload twice produced different buffers")
	}
}

func TestDecode_UnknownSource(t *testing.T) {
	_, err := Decode(RawPayload{})
	if KindOf(err) != KindMissingPayload {
		t.Fatalf("kind = %v, want MissingPayload", KindOf(err))
	}
}

func TestNormalize_PreservesSolidColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 80))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 10, 30, 255
	}

	buf := Normalize(img)
	for _, pt := range []image.Point{{0, 0}, {111, 111}, {223, 223}} {
		r, g, b := buf.At(pt.X, pt.Y)
		if r != 200 || g != 10 || b != 30 {
			t.Errorf("At(%v) = %d,%d,%d, want 200,10,30", pt, r, g, b)
		}
	}
}

func TestKind_Messages(t *testing.T) {
	if KindMissingPayload.Message() != "No valid frame provided" {
		t.Errorf("MissingPayload message = %q", KindMissingPayload.Message())
	}
	if KindUnsupportedImage.String() != "UnsupportedOrCorruptImage" {
		t.Errorf("String() = %q", KindUnsupportedImage.String())
	}
	if KindOf(errors.New("other")) != 0 {
		t.Error("KindOf(non decode error) should be 0")
	}
}
