package gpuframe

import (
	"fmt"
	"image"
	"io"
	"os"

	// Decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Pixels is decoded image data: tightly packed, non-premultiplied RGBA8,
// bottom row first.
type Pixels struct {
	Width  uint32
	Height uint32
	Data   []byte
}

// LoadImage decodes an image file (PNG, JPEG, GIF, BMP, TIFF or WebP) and
// flips it vertically. Failures wrap ErrImageLoad and name the path.
func LoadImage(path string) (*Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't load image from %q: %v", ErrImageLoad, path, err)
	}
	defer f.Close()

	px, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't load image from %q: %v", ErrImageLoad, path, err)
	}
	return px, nil
}

// DecodeImage decodes an image from r and flips it vertically.
func DecodeImage(r io.Reader) (*Pixels, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrImageLoad)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	flipRows(dst.Pix, dst.Stride, b.Dy())

	return &Pixels{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Data:   dst.Pix,
	}, nil
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		z := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, z)
		copy(z, tmp)
	}
}
