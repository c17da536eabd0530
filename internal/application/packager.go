// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cartoforge/tilecutter/internal/domain"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// Packager streams rendered pyramid leaves into a tile database.
type Packager struct {
	stores  output.TileStoreFactory
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewPackager creates a new packager.
func NewPackager(stores output.TileStoreFactory, metrics output.MetricsCollector, logger *slog.Logger) *Packager {
	return &Packager{
		stores:  stores,
		metrics: metrics,
		logger:  logger,
	}
}

// Pack creates a tile database at path, writes the metadata rows and
// then every leaf of src. Leaf rows arrive in XYZ numbering (origin
// top-left) and are flipped to the store's bottom-left convention
// before writing. Returns the number of tiles written.
func (p *Packager) Pack(ctx context.Context, src output.TileSource, path string, md domain.TilesetMetadata) (int, error) {
	if err := md.Validate(); err != nil {
		return 0, err
	}

	store, err := p.stores.Create(ctx, path)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.WriteMetadata(ctx, md); err != nil {
		return 0, err
	}

	count := 0
	err = src.Walk(ctx, func(leaf output.TileLeaf) error {
		if leaf.Zoom < md.MinZoom || leaf.Zoom > md.MaxZoom {
			p.logger.Debug("skipping leaf outside zoom range",
				"zoom", leaf.Zoom, "column", leaf.Column, "row", leaf.Row)
			return nil
		}

		flipped := (1<<uint(leaf.Zoom) - 1) - leaf.Row
		if err := store.WriteTile(ctx, leaf.Zoom, leaf.Column, flipped, leaf.Data); err != nil {
			return fmt.Errorf("tile %d/%d/%d: %w", leaf.Zoom, leaf.Column, leaf.Row, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	if err := store.Close(); err != nil {
		return count, err
	}

	p.metrics.AddTilesPacked(count)
	p.logger.Debug("packaged tile database", "path", path, "tiles", count)
	return count, nil
}
