package output

import (
	"context"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// TileLeaf is one rendered tile image of a pyramid, keyed by XYZ
// (origin top-left) coordinates.
type TileLeaf struct {
	Zoom   int
	Column int
	Row    int
	Data   []byte
}

// TileSource is a finite, restartable sequence of pyramid leaves. The
// filesystem adapter walks a zoom/column/row directory tree; tests use
// an in-memory stand-in.
type TileSource interface {
	// Walk calls fn for every leaf. A non-nil error from fn aborts the
	// walk and is returned unchanged.
	Walk(ctx context.Context, fn func(TileLeaf) error) error
}

// TileStore is the per-cell tile database being written. One store is
// opened, written and closed entirely within one worker.
type TileStore interface {
	// WriteMetadata writes the metadata rows. Existing rows with the
	// same name are replaced.
	WriteMetadata(ctx context.Context, md domain.TilesetMetadata) error

	// WriteTile inserts or replaces the tile keyed by (zoom, column,
	// row). Row numbering follows the store's bottom-left convention;
	// callers apply the XYZ flip before writing.
	WriteTile(ctx context.Context, zoom, column, row int, data []byte) error

	Close() error
}

// TileStoreFactory creates tile stores. A store created at an existing
// path overwrites it.
type TileStoreFactory interface {
	Create(ctx context.Context, path string) (TileStore, error)
}

// TileSourceOpener opens pyramid leaf sources over rendered tile trees.
type TileSourceOpener interface {
	Open(dir string, format domain.TileFormat) TileSource
}
