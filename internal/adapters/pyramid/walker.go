// Package pyramid reads rendered tile pyramids from the filesystem.
package pyramid

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cartoforge/tilecutter/internal/domain"
	"github.com/cartoforge/tilecutter/internal/ports/output"
)

// Opener implements output.TileSourceOpener over zoom/column/row
// directory trees as produced by the pyramid renderer.
type Opener struct{}

// NewOpener creates a new filesystem pyramid opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open returns a lazy leaf source over the pyramid directory. No file
// is read until the source is walked.
func (o *Opener) Open(dir string, format domain.TileFormat) output.TileSource {
	return &source{dir: dir, ext: "." + format.Extension()}
}

type source struct {
	dir string
	ext string
}

// Walk visits the pyramid leaves in zoom, column, row order. Directory
// entries that are not numeric (renderer sidecars like openlayers.html
// or tilemapresource.xml) are skipped; leaves with a foreign extension
// are skipped too. Leaves are read one at a time, so memory use is one
// tile regardless of pyramid size.
func (s *source) Walk(ctx context.Context, fn func(output.TileLeaf) error) error {
	zoomDirs, err := s.numericEntries(s.dir, true)
	if err != nil {
		return err
	}

	for _, zoom := range zoomDirs {
		zoomDir := filepath.Join(s.dir, strconv.Itoa(zoom))
		columns, err := s.numericEntries(zoomDir, true)
		if err != nil {
			return err
		}

		for _, column := range columns {
			columnDir := filepath.Join(zoomDir, strconv.Itoa(column))
			rows, err := s.leafEntries(columnDir)
			if err != nil {
				return err
			}

			for _, row := range rows {
				if err := ctx.Err(); err != nil {
					return err
				}

				path := filepath.Join(columnDir, strconv.Itoa(row)+s.ext)
				data, err := os.ReadFile(path) //#nosec G304 -- path is built from numeric components
				if err != nil {
					return &domain.StoreError{Path: path, Op: "read", Err: err}
				}
				if err := fn(output.TileLeaf{Zoom: zoom, Column: column, Row: row, Data: data}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// numericEntries lists the numeric directory names under dir, sorted
// ascending.
func (s *source) numericEntries(dir string, wantDir bool) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.StoreError{Path: dir, Op: "readdir", Err: err}
	}

	var nums []int
	for _, e := range entries {
		if e.IsDir() != wantDir {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

// leafEntries lists the numeric row numbers of leaf files with the
// configured extension under dir, sorted ascending.
func (s *source) leafEntries(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.StoreError{Path: dir, Op: "readdir", Err: err}
	}

	var rows []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.ext) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), s.ext))
		if err != nil {
			continue
		}
		rows = append(rows, n)
	}
	sort.Ints(rows)
	return rows, nil
}
