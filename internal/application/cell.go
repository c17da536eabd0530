package application

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cartoforge/tilecutter/internal/domain"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// CellOptions holds the per-run tiling parameters of the cell processor.
type CellOptions struct {
	Format        domain.TileFormat
	Quality       int // JPEG only
	MinZoom       int
	MaxZoom       int
	ClipSize      int // square clip size in pixels
	KeepArtifacts bool
}

// CellProcessor runs the full lifecycle of one grid cell: clip, render,
// post-process, package, clean up.
type CellProcessor struct {
	raster   output.RasterProcessor
	filter   output.TileFilter
	sources  output.TileSourceOpener
	packager *Packager
	metrics  output.MetricsCollector
	logger   *slog.Logger
	opts     CellOptions
}

// NewCellProcessor creates a new cell processor.
func NewCellProcessor(
	raster output.RasterProcessor,
	filter output.TileFilter,
	sources output.TileSourceOpener,
	packager *Packager,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	opts CellOptions,
) *CellProcessor {
	return &CellProcessor{
		raster:   raster,
		filter:   filter,
		sources:  sources,
		packager: packager,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Process handles one grid cell, clipping it out of srcRaster. The
// clipped raster and the rendered pyramid live under workDir; the
// finished tile database is written to outputDir as <x>_<y>.mbtiles.
// Intermediate artifacts are removed on success and kept on failure for
// inspection. Returns the database path and the number of tiles packed.
func (c *CellProcessor) Process(ctx context.Context, cell domain.GridCell, srcRaster, workDir, outputDir string) (string, int, error) {
	start := time.Now()
	logger := c.logger.With("cell", cell.Name())

	clipPath := filepath.Join(workDir, cell.Name()+".tif")
	pyramidDir := filepath.Join(workDir, cell.Name()+"_tiles")
	dbPath := filepath.Join(outputDir, cell.Name()+".mbtiles")

	logger.Info("processing cell", "extent", cell.Extent.String())

	tiles, err := c.process(ctx, cell, srcRaster, clipPath, pyramidDir, dbPath)
	duration := time.Since(start)
	c.metrics.ObserveCellDuration(duration)
	c.metrics.IncCellsProcessed(err == nil)

	if err != nil {
		logger.Error("cell failed", "error", err, "duration", duration)
		return "", 0, err
	}

	if !c.opts.KeepArtifacts {
		c.cleanup(clipPath, pyramidDir, logger)
	}

	logger.Info("cell completed", "tiles", tiles, "duration", duration, "output", dbPath)
	return dbPath, tiles, nil
}

func (c *CellProcessor) process(ctx context.Context, cell domain.GridCell, srcRaster, clipPath, pyramidDir, dbPath string) (int, error) {
	if err := c.raster.Clip(ctx, srcRaster, clipPath, cell.Extent, c.opts.ClipSize); err != nil {
		return 0, err
	}

	if err := c.raster.RenderPyramid(ctx, clipPath, pyramidDir, c.opts.MinZoom, c.opts.MaxZoom); err != nil {
		return 0, err
	}

	if err := c.postProcess(ctx, pyramidDir); err != nil {
		return 0, err
	}

	bounds := domain.TileExtentWGS84(cell.Index.X, cell.Index.Y, cell.Index.Zoom)
	md := domain.NewTilesetMetadata(c.opts.Format, c.opts.MinZoom, c.opts.MaxZoom, bounds)

	src := c.sources.Open(pyramidDir, c.opts.Format)
	return c.packager.Pack(ctx, src, dbPath, md)
}

// postProcess applies the format-specific image filter to every rendered
// leaf. The renderer always emits true-color PNG; JPEG output replaces
// each leaf with a .jpg sibling.
func (c *CellProcessor) postProcess(ctx context.Context, pyramidDir string) error {
	return filepath.WalkDir(pyramidDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &domain.StoreError{Path: path, Op: "walk", Err: err}
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".png") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch c.opts.Format {
		case domain.FormatJPEG:
			dst := strings.TrimSuffix(path, ".png") + ".jpg"
			return c.filter.FlattenJPEG(ctx, path, dst, c.opts.Quality)
		case domain.FormatPNG8:
			return c.filter.QuantizePNG8(ctx, path)
		default:
			return c.filter.KeyTransparency(ctx, path)
		}
	})
}

func (c *CellProcessor) cleanup(clipPath, pyramidDir string, logger *slog.Logger) {
	if err := os.Remove(clipPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove clipped raster", "path", clipPath, "error", err)
	}
	if err := os.RemoveAll(pyramidDir); err != nil {
		logger.Warn("failed to remove pyramid directory", "path", pyramidDir, "error", err)
	}
}
