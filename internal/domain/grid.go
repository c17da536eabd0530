package domain

import (
	"math"
	"strconv"
)

// GridCell is one reference-zoom tile cell of the partitioned raster,
// the unit of parallel work. Each cell produces exactly one tile
// database file; cells share no mutable state.
type GridCell struct {
	Index  TileIndex
	Extent Extent // Web Mercator
}

// Name returns the deterministic output name stem for the cell, derived
// from its reference-zoom indices. Reruns overwrite the same file.
func (c GridCell) Name() string {
	return strconv.Itoa(c.Index.X) + "_" + strconv.Itoa(c.Index.Y)
}

// PartitionExtent computes the rectangular set of reference-zoom grid
// cells a Mercator extent intersects. Min edges floor into their tile,
// max edges that land exactly on a tile boundary do not spill into the
// neighbor, so an extent equal to one tile yields exactly that cell while
// any real sliver past a boundary still pulls in the adjacent tile.
func PartitionExtent(rasterExtent Extent, referenceZoom int) ([]GridCell, error) {
	if rasterExtent.SRID != SRIDWebMercator {
		return nil, &ValidationError{
			Field:      "extent",
			Value:      rasterExtent.SRID,
			Constraint: "SRID=3857",
			Message:    "partitioning requires a Web Mercator extent",
		}
	}
	if !rasterExtent.IsValid() {
		return nil, &ValidationError{
			Field:      "extent",
			Value:      rasterExtent,
			Constraint: "min <= max",
			Message:    "inverted raster extent",
		}
	}
	if referenceZoom < 0 || referenceZoom > 22 {
		return nil, &ValidationError{
			Field:      "referenceZoom",
			Value:      referenceZoom,
			Constraint: "[0, 22]",
			Message:    "reference zoom out of range",
		}
	}

	lowerLeft := MercatorToLonLat(MercatorPoint{X: rasterExtent.MinX, Y: rasterExtent.MinY})
	upperRight := MercatorToLonLat(MercatorPoint{X: rasterExtent.MaxX, Y: rasterExtent.MaxY})

	// Tile y runs opposite to latitude: the upper-right corner carries
	// the smallest tile y, the lower-left the largest.
	fxMin, fyMax := TileFraction(lowerLeft, referenceZoom)
	fxMax, fyMin := TileFraction(upperRight, referenceZoom)

	n := 1 << uint(referenceZoom)
	minX := clampTile(int(math.Floor(fxMin+tileSnap)), n)
	minY := clampTile(int(math.Floor(fyMin+tileSnap)), n)
	maxX := clampTile(int(math.Ceil(fxMax-tileSnap))-1, n)
	maxY := clampTile(int(math.Ceil(fyMax-tileSnap))-1, n)

	// A degenerate (zero-area) extent still maps to its containing cell.
	if maxX < minX {
		maxX = minX
	}
	if maxY < minY {
		maxY = minY
	}

	cells := make([]GridCell, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			cells = append(cells, GridCell{
				Index:  TileIndex{X: x, Y: y, Zoom: referenceZoom},
				Extent: TileExtentMercator(x, y, referenceZoom),
			})
		}
	}
	return cells, nil
}
