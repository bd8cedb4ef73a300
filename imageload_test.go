package gpuframe

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestDecodeImageFlipsRows(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	for y := range 3 {
		for x := range 2 {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(y), G: uint8(x), A: 255})
		}
	}

	px, err := DecodeImage(encodePNG(t, src))
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if px.Width != 2 || px.Height != 3 || len(px.Data) != 2*3*4 {
		t.Fatalf("decoded %dx%d with %d bytes", px.Width, px.Height, len(px.Data))
	}
	for row := range 3 {
		// Row 0 of the result is the bottom row of the source.
		if got, want := px.Data[row*8], uint8(2-row); got != want {
			t.Errorf("row %d red = %d, want %d", row, got, want)
		}
		if px.Data[row*8+5] != 1 {
			t.Errorf("row %d second pixel green = %d, want 1", row, px.Data[row*8+5])
		}
	}
}

func TestDecodeImageConvertsToRGBA(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.SetGray(0, 0, color.Gray{Y: 200})

	px, err := DecodeImage(encodePNG(t, gray))
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{200, 200, 200, 255}; !bytes.Equal(px.Data, want) {
		t.Errorf("Data = %v, want %v", px.Data, want)
	}
}

func TestDecodeImageInvalid(t *testing.T) {
	if _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); !errors.Is(err, ErrImageLoad) {
		t.Errorf("DecodeImage() error = %v, want ErrImageLoad", err)
	}
}

func TestLoadImageMissing(t *testing.T) {
	_, err := LoadImage("/nonexistent/texture.png")
	if !errors.Is(err, ErrImageLoad) {
		t.Fatalf("LoadImage() error = %v, want ErrImageLoad", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("/nonexistent/texture.png")) {
		t.Errorf("error %q should name the path", err)
	}
}
