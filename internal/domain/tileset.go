package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TileFormat is the target image format of the rendered tiles.
type TileFormat string

// Supported tile formats.
const (
	FormatPNG  TileFormat = "png"  // true-color PNG, transparency keyed
	FormatPNG8 TileFormat = "png8" // 256-color palette PNG
	FormatJPEG TileFormat = "jpeg" // JPEG, alpha flattened to white
)

// ParseTileFormat parses a user-supplied format name.
func ParseTileFormat(s string) (TileFormat, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "png8":
		return FormatPNG8, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", &ValidationError{
			Field:      "format",
			Value:      s,
			Constraint: "png|png8|jpeg",
			Message:    "unknown tile format",
		}
	}
}

// Extension returns the leaf file extension the renderer produces for
// this format. The renderer always emits PNG; JPEG transcoding replaces
// the leaves in place, so JPEG pyramids end up with jpg leaves.
func (f TileFormat) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// MBTilesFormat returns the value of the MBTiles "format" metadata row.
func (f TileFormat) MBTilesFormat() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// TilesetMetadata describes one packaged tile database. It maps directly
// onto the MBTiles metadata table.
type TilesetMetadata struct {
	Name        string
	Type        string
	Version     string
	Description string
	Format      TileFormat
	MinZoom     int
	MaxZoom     int
	Bounds      Extent // WGS84
}

// NewTilesetMetadata returns metadata with the fixed baselayer fields
// filled in.
func NewTilesetMetadata(format TileFormat, minZoom, maxZoom int, bounds Extent) TilesetMetadata {
	return TilesetMetadata{
		Name:        "Generated Map Tiles",
		Type:        "baselayer",
		Version:     "1.0",
		Description: "Map tiles generated by tilecutter",
		Format:      format,
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
		Bounds:      bounds,
	}
}

// Rows returns the metadata as ordered (name, value) pairs, the exact
// rows written to the metadata table. Bounds are comma-joined
// min-lon,min-lat,max-lon,max-lat.
func (m TilesetMetadata) Rows() [][2]string {
	bounds := strings.Join([]string{
		formatCoord(m.Bounds.MinX),
		formatCoord(m.Bounds.MinY),
		formatCoord(m.Bounds.MaxX),
		formatCoord(m.Bounds.MaxY),
	}, ",")

	return [][2]string{
		{"name", m.Name},
		{"type", m.Type},
		{"version", m.Version},
		{"description", m.Description},
		{"format", m.Format.MBTilesFormat()},
		{"minzoom", strconv.Itoa(m.MinZoom)},
		{"maxzoom", strconv.Itoa(m.MaxZoom)},
		{"bounds", bounds},
	}
}

// Validate checks the metadata invariants before packaging.
func (m TilesetMetadata) Validate() error {
	if m.MinZoom < 0 || m.MaxZoom < m.MinZoom {
		return &ValidationError{
			Field:      "zoom",
			Value:      fmt.Sprintf("%d-%d", m.MinZoom, m.MaxZoom),
			Constraint: "0 <= minzoom <= maxzoom",
			Message:    "invalid zoom range",
		}
	}
	if m.Bounds.SRID != SRIDWGS84 {
		return &ValidationError{
			Field:      "bounds",
			Value:      m.Bounds.SRID,
			Constraint: "SRID=4326",
			Message:    "tileset bounds must be WGS84",
		}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
