package application

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// ManifestFileName is the run manifest written next to the tile
// databases.
const ManifestFileName = "manifest.yaml"

// Manifest describes one completed run, written to the output directory
// so downstream consumers can discover the produced databases without
// listing the directory.
type Manifest struct {
	GeneratedAt   time.Time      `yaml:"generated_at"`
	Source        string         `yaml:"source"`
	Format        string         `yaml:"format"`
	MinZoom       int            `yaml:"minzoom"`
	MaxZoom       int            `yaml:"maxzoom"`
	ReferenceZoom int            `yaml:"reference_zoom"`
	TilesTotal    int            `yaml:"tiles_total"`
	Duration      string         `yaml:"duration"`
	Cells         []ManifestCell `yaml:"cells"`
}

// ManifestCell is one tile database entry in the manifest.
type ManifestCell struct {
	Name   string  `yaml:"name"`
	File   string  `yaml:"file"`
	Tiles  int     `yaml:"tiles"`
	MinLon float64 `yaml:"min_lon"`
	MinLat float64 `yaml:"min_lat"`
	MaxLon float64 `yaml:"max_lon"`
	MaxLat float64 `yaml:"max_lat"`
}

// NewManifest builds the manifest for a finished run.
func NewManifest(result *RunResult, format domain.TileFormat, minZoom, maxZoom, referenceZoom int) Manifest {
	m := Manifest{
		GeneratedAt:   time.Now().UTC(),
		Source:        result.Source,
		Format:        string(format),
		MinZoom:       minZoom,
		MaxZoom:       maxZoom,
		ReferenceZoom: referenceZoom,
		TilesTotal:    result.TilesTotal,
		Duration:      result.Duration.String(),
	}
	for _, r := range result.Cells {
		idx := r.Cell.Index
		bounds := domain.TileExtentWGS84(idx.X, idx.Y, idx.Zoom)
		m.Cells = append(m.Cells, ManifestCell{
			Name:   r.Cell.Name(),
			File:   filepath.Base(r.Path),
			Tiles:  r.Tiles,
			MinLon: bounds.MinX,
			MinLat: bounds.MinY,
			MaxLon: bounds.MaxX,
			MaxLat: bounds.MaxY,
		})
	}
	return m
}

// Write writes the manifest into dir as manifest.yaml.
func (m Manifest) Write(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.StoreError{Path: path, Op: "write", Err: err}
	}
	return nil
}
