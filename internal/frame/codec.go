package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"sorter/internal/apperror"
)

// DefaultQuality is the JPEG quality used for cached and broadcast frames.
const DefaultQuality = 85

// MaxEncodedSize bounds an encoded frame accepted from any source.
const MaxEncodedSize = 16 << 20

// Decode decodes a JPEG, PNG, BMP or WebP image into a BGR frame.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("%w: empty image", apperror.ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", apperror.ErrDecode, err)
	}
	return FromImage(img), nil
}

// DecodeDataURI decodes a "data:image/...;base64,..." string. A bare base64 payload is accepted too.
func DecodeDataURI(uri string) (Frame, error) {
	payload := uri
	if strings.HasPrefix(uri, "data:") {
		idx := strings.IndexByte(uri, ',')
		if idx < 0 {
			return Frame{}, fmt.Errorf("%w: malformed data URI", apperror.ErrDecode)
		}
		payload = uri[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: invalid base64 payload: %v", apperror.ErrDecode, err)
	}
	return Decode(data)
}

// FromImage converts any image.Image into a BGR frame.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	f := New(b.Dx(), b.Dy())
	for i, j := 0, 0; j < len(f.Pix); i, j = i+4, j+3 {
		f.Pix[j] = rgba.Pix[i+2]
		f.Pix[j+1] = rgba.Pix[i+1]
		f.Pix[j+2] = rgba.Pix[i]
	}
	return f
}

// ToImage converts the frame to an RGBA image.
func (f Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for i, j := 0, 0; i < f.Width*f.Height*Channels; i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i+2]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i]
		img.Pix[j+3] = 0xff
	}
	return img
}

// EncodeJPEG encodes the frame as a JPEG.
func EncodeJPEG(f Frame, quality int) ([]byte, error) {
	if f.Empty() {
		return nil, fmt.Errorf("cannot encode empty frame")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
