package application

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cartoforge/tilecutter/internal/domain"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// CellRunner processes one grid cell into a tile database.
type CellRunner interface {
	Process(ctx context.Context, cell domain.GridCell, srcRaster, workDir, outputDir string) (string, int, error)
}

// PipelineOptions holds the run-level parameters of the pipeline.
type PipelineOptions struct {
	WorkDir       string
	OutputDir     string
	ReferenceZoom int
	Workers       int

	// SkipExisting leaves objects that are already published alone,
	// so an interrupted publish can be resumed without re-uploading.
	SkipExisting bool
}

// CellResult is the outcome of one processed cell.
type CellResult struct {
	Cell  domain.GridCell
	Path  string
	Tiles int
}

// RunResult summarizes a completed pipeline run.
type RunResult struct {
	Source     string
	Cells      []CellResult
	TilesTotal int
	Duration   time.Duration
}

// Pipeline orchestrates a full run: describe the source raster,
// partition its extent into grid cells, process the cells on a fixed
// worker pool and optionally publish the finished databases.
type Pipeline struct {
	raster  output.RasterProcessor
	cells   CellRunner
	storage output.ObjectStorage // nil when publishing is disabled
	metrics output.MetricsCollector
	logger  *slog.Logger
	opts    PipelineOptions
}

// NewPipeline creates a new pipeline.
func NewPipeline(
	raster output.RasterProcessor,
	cells CellRunner,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	opts PipelineOptions,
) *Pipeline {
	return &Pipeline{
		raster:  raster,
		cells:   cells,
		storage: storage,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
	}
}

// Run executes the pipeline for the given source raster. The first cell
// failure stops dispatch; cells already in flight finish before Run
// returns the error.
func (p *Pipeline) Run(ctx context.Context, source string) (*RunResult, error) {
	start := time.Now()

	if err := os.MkdirAll(p.opts.WorkDir, 0o755); err != nil {
		return nil, &domain.StoreError{Path: p.opts.WorkDir, Op: "mkdir", Err: err}
	}
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return nil, &domain.StoreError{Path: p.opts.OutputDir, Op: "mkdir", Err: err}
	}

	source, extent, err := p.prepareSource(ctx, source)
	if err != nil {
		return nil, err
	}

	cells, err := domain.PartitionExtent(extent, p.opts.ReferenceZoom)
	if err != nil {
		return nil, err
	}
	p.metrics.SetCellsTotal(len(cells))
	p.logger.Info("partitioned source raster",
		"extent", extent.String(),
		"reference_zoom", p.opts.ReferenceZoom,
		"cells", len(cells),
		"workers", p.opts.Workers,
	)

	results, err := p.processCells(ctx, source, cells)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Source:   source,
		Cells:    results,
		Duration: time.Since(start),
	}
	for _, r := range results {
		result.TilesTotal += r.Tiles
	}

	if p.storage != nil {
		if err := p.publish(ctx, results); err != nil {
			return result, err
		}
	}

	p.logger.Info("pipeline completed",
		"cells", len(results),
		"tiles", result.TilesTotal,
		"duration", result.Duration,
	)
	return result, nil
}

// prepareSource describes the source raster and reprojects it to Web
// Mercator when it comes in any other reference system.
func (p *Pipeline) prepareSource(ctx context.Context, source string) (string, domain.Extent, error) {
	extent, err := p.raster.Describe(ctx, source)
	if err != nil {
		return "", domain.Extent{}, err
	}

	if extent.SRID == domain.SRIDWebMercator {
		return source, extent, nil
	}

	p.logger.Info("reprojecting source raster",
		"source_srid", extent.SRID,
		"target_srid", domain.SRIDWebMercator,
	)
	reprojected := filepath.Join(p.opts.WorkDir, "source_3857.tif")
	if err := p.raster.Reproject(ctx, source, reprojected); err != nil {
		return "", domain.Extent{}, err
	}

	extent, err = p.raster.Describe(ctx, reprojected)
	if err != nil {
		return "", domain.Extent{}, err
	}
	return reprojected, extent, nil
}

// processCells fans the cells out over a fixed pool of workers. A cell
// failure closes stop, which ends dispatch; cells already handed to a
// worker keep the caller's context and finish on their own terms.
func (p *Pipeline) processCells(ctx context.Context, source string, cells []domain.GridCell) ([]CellResult, error) {
	jobs := make(chan domain.GridCell)
	stop := make(chan struct{})

	var (
		mu       sync.Mutex
		results  []CellResult
		firstErr error
		stopOnce sync.Once
	)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cell := range jobs {
				// Drain cells dispatched in the window between the
				// failure and the dispatch loop noticing it.
				select {
				case <-stop:
					continue
				default:
				}
				if ctx.Err() != nil {
					continue
				}

				path, tiles, err := p.cells.Process(ctx, cell, source, p.opts.WorkDir, p.opts.OutputDir)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					stopOnce.Do(func() { close(stop) })
					continue
				}
				mu.Lock()
				results = append(results, CellResult{Cell: cell, Path: path, Tiles: tiles})
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, cell := range cells {
		select {
		case jobs <- cell:
		case <-stop:
			break dispatch
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Workers finish out of order; keep the output deterministic.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Cell.Index, results[j].Cell.Index
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return results, nil
}

// publish uploads every finished tile database to object storage.
func (p *Pipeline) publish(ctx context.Context, results []CellResult) error {
	for _, r := range results {
		key := filepath.Base(r.Path)

		if p.opts.SkipExisting {
			exists, err := p.storage.Exists(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				p.logger.Info("tile database already published, skipping", "key", key)
				continue
			}
		}

		start := time.Now()
		err := p.storage.Upload(ctx, r.Path, key)
		p.metrics.ObserveStorageDuration("upload", time.Since(start))
		p.metrics.IncStorageOperations("upload", err == nil)
		if err != nil {
			return err
		}
		p.logger.Info("published tile database", "key", key)
	}
	return nil
}
