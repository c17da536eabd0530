package imaging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// writeTestPNG writes a 4x1 strip: black, white, transparent, red.
func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})                          // black
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255}) // white
	img.SetNRGBA(2, 0, color.NRGBA{})                                // transparent
	img.SetNRGBA(3, 0, color.NRGBA{R: 200, G: 30, B: 30, A: 255})   // red

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestKeyTransparency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	writeTestPNG(t, path)

	if err := NewFilter().KeyTransparency(context.Background(), path); err != nil {
		t.Fatalf("KeyTransparency() error = %v", err)
	}

	img := decodeFile(t, path)
	for _, x := range []int{0, 1, 2} {
		if c := nrgbaAt(img, x, 0); c.A != 0 {
			t.Errorf("pixel %d alpha = %d, want 0", x, c.A)
		}
	}
	if c := nrgbaAt(img, 3, 0); c.A != 255 || c.R != 200 {
		t.Errorf("red pixel = %+v, want opaque red", c)
	}
}

func TestQuantizePNG8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.png")
	writeTestPNG(t, path)

	if err := NewFilter().QuantizePNG8(context.Background(), path); err != nil {
		t.Fatalf("QuantizePNG8() error = %v", err)
	}

	img := decodeFile(t, path)
	paletted, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("decoded image type = %T, want *image.Paletted", img)
	}
	if len(paletted.Palette) > 256 {
		t.Errorf("palette size = %d, want <= 256", len(paletted.Palette))
	}

	if c := nrgbaAt(paletted, 0, 0); c.A != 0 {
		t.Errorf("keyed black pixel alpha = %d, want 0", c.A)
	}
	if c := nrgbaAt(paletted, 3, 0); c.A == 0 {
		t.Error("red pixel became transparent")
	}
}

func TestFlattenJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile.png")
	dst := filepath.Join(dir, "tile.jpg")
	writeTestPNG(t, src)

	if err := NewFilter().FlattenJPEG(context.Background(), src, dst, 85); err != nil {
		t.Fatalf("FlattenJPEG() error = %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("lossless source was not removed")
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("destination is not a JPEG: %v", err)
	}

	// Black and transparent flatten to near-white; JPEG is lossy, so
	// allow a few counts of error.
	for _, x := range []int{0, 2} {
		c := nrgbaAt(img, x, 0)
		if c.R < 240 || c.G < 240 || c.B < 240 {
			t.Errorf("pixel %d = %+v, want near-white", x, c)
		}
	}
	if c := nrgbaAt(img, 3, 0); c.R < 150 || c.G > 100 {
		t.Errorf("red pixel = %+v, want red preserved", c)
	}
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewFilter().KeyTransparency(context.Background(), path)
	if !errors.Is(err, domain.ErrCodec) {
		t.Fatalf("KeyTransparency() error = %v, want ErrCodec", err)
	}

	err = NewFilter().FlattenJPEG(context.Background(), filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.jpg"), 75)
	if !errors.Is(err, domain.ErrCodec) {
		t.Fatalf("FlattenJPEG() error = %v, want ErrCodec", err)
	}
}
