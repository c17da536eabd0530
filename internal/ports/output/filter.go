package output

import "context"

// TileFilter defines the secondary port for per-tile image
// post-processing. The keying operations implement intentional lossy
// semantics: genuinely black or white opaque source pixels become
// transparent.
type TileFilter interface {
	// FlattenJPEG recolors pure-black and fully transparent pixels to
	// opaque white, drops the alpha channel, encodes src as JPEG at the
	// given quality (1-100) into dst and removes the lossless src.
	FlattenJPEG(ctx context.Context, src, dst string, quality int) error

	// QuantizePNG8 keys out pure-black, pure-white and transparent
	// pixels, then rewrites the image in place with an adaptive
	// 256-color palette.
	QuantizePNG8(ctx context.Context, path string) error

	// KeyTransparency keys out pure-black, pure-white and transparent
	// pixels in place, keeping true color.
	KeyTransparency(ctx context.Context, path string) error
}
