// Package imaging post-processes rendered tile leaves in pure Go.
package imaging

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// Filter implements output.TileFilter. The keying operations are
// intentionally lossy: genuinely black or white source pixels become
// transparent along with the rendered nodata collar.
type Filter struct{}

// NewFilter creates a new image filter.
func NewFilter() *Filter {
	return &Filter{}
}

// FlattenJPEG recolors pure-black and transparent pixels to opaque
// white, composites the rest over white, encodes the result as JPEG at
// the given quality into dst and removes the lossless src.
func (f *Filter) FlattenJPEG(ctx context.Context, src, dst string, quality int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := decodePNG(src)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 || isBlack(c) {
				flat.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
				continue
			}
			flat.Set(x, y, blendOver(c, white))
		}
	}

	out, err := os.Create(dst) //#nosec G304 -- dst is a controlled local path
	if err != nil {
		return &domain.CodecError{Path: dst, Op: "create", Err: err}
	}
	if err := jpeg.Encode(out, flat, &jpeg.Options{Quality: quality}); err != nil {
		_ = out.Close()
		return &domain.CodecError{Path: dst, Op: "encode", Err: err}
	}
	if err := out.Close(); err != nil {
		return &domain.CodecError{Path: dst, Op: "close", Err: err}
	}

	if err := os.Remove(src); err != nil {
		return &domain.CodecError{Path: src, Op: "remove", Err: err}
	}
	return nil
}

// QuantizePNG8 keys out black, white and transparent pixels, then
// rewrites the leaf in place with an adaptive 256-color palette.
func (f *Filter) QuantizePNG8(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := decodePNG(path)
	if err != nil {
		return err
	}
	keyed := keyPixels(img)

	q := quantize.MedianCutQuantizer{AddTransparent: true}
	palette := q.Quantize(make(color.Palette, 0, 256), keyed)

	paletted := image.NewPaletted(keyed.Bounds(), palette)
	draw.Draw(paletted, keyed.Bounds(), keyed, keyed.Bounds().Min, draw.Src)

	return encodePNG(path, paletted)
}

// KeyTransparency keys out black, white and transparent pixels in
// place, keeping true color for the rest.
func (f *Filter) KeyTransparency(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := decodePNG(path)
	if err != nil {
		return err
	}
	return encodePNG(path, keyPixels(img))
}

// keyPixels returns a copy of img with pure-black, pure-white and
// already transparent pixels set fully transparent.
func keyPixels(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 || isBlack(c) || isWhite(c) {
				out.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func isBlack(c color.NRGBA) bool {
	return c.R == 0 && c.G == 0 && c.B == 0 && c.A == 255
}

func isWhite(c color.NRGBA) bool {
	return c.R == 255 && c.G == 255 && c.B == 255 && c.A == 255
}

// blendOver composites c over an opaque background.
func blendOver(c, bg color.NRGBA) color.RGBA {
	a := uint32(c.A)
	blend := func(fg, back uint8) uint8 {
		return uint8((uint32(fg)*a + uint32(back)*(255-a)) / 255)
	}
	return color.RGBA{
		R: blend(c.R, bg.R),
		G: blend(c.G, bg.G),
		B: blend(c.B, bg.B),
		A: 255,
	}
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path) //#nosec G304 -- path is a controlled local path
	if err != nil {
		return nil, &domain.CodecError{Path: path, Op: "open", Err: err}
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		return nil, &domain.CodecError{Path: path, Op: "decode", Err: err}
	}
	return img, nil
}

func encodePNG(path string, img image.Image) error {
	f, err := os.Create(path) //#nosec G304 -- path is a controlled local path
	if err != nil {
		return &domain.CodecError{Path: path, Op: "create", Err: err}
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return &domain.CodecError{Path: path, Op: "encode", Err: err}
	}
	if err := f.Close(); err != nil {
		return &domain.CodecError{Path: path, Op: "close", Err: err}
	}
	return nil
}
