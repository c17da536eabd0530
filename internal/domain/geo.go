// Package domain contains the core value objects and the tile-grid math.
package domain

import (
	"fmt"
	"math"
)

// Spatial reference identifiers used throughout the pipeline.
const (
	SRIDWGS84       = 4326 // WGS 84 geographic coordinates, degrees
	SRIDWebMercator = 3857 // spherical Web Mercator, meters
)

// EarthRadius is the spherical Earth radius of the Web Mercator
// projection, in meters.
const EarthRadius = 6378137.0

// MaxLatitude is the northern/southern limit of the Web Mercator
// projection. Latitudes beyond it are clamped before tile math.
const MaxLatitude = 85.0511287798

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lon float64
	Lat float64
}

// String returns a string representation of the point.
func (p GeoPoint) String() string {
	return fmt.Sprintf("POINT(%f %f) SRID=%d", p.Lon, p.Lat, SRIDWGS84)
}

// MercatorPoint is a spherical Web Mercator coordinate in meters.
type MercatorPoint struct {
	X float64
	Y float64
}

// TileIndex identifies a slippy-map tile. X and Y are numbered from the
// top-left corner of the grid (XYZ convention).
type TileIndex struct {
	X    int
	Y    int
	Zoom int
}

// String returns the z/x/y form of the index.
func (t TileIndex) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Valid reports whether the index lies inside the grid for its zoom.
func (t TileIndex) Valid() bool {
	if t.Zoom < 0 {
		return false
	}
	n := 1 << uint(t.Zoom)
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Extent is a spatial bounding box in the coordinate space named by SRID.
// Extents in different spaces must never be combined without an explicit
// conversion.
type Extent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
	SRID int
}

// IsValid checks if the extent has non-inverted dimensions.
func (e Extent) IsValid() bool {
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// Width returns the width of the extent.
func (e Extent) Width() float64 {
	return e.MaxX - e.MinX
}

// Height returns the height of the extent.
func (e Extent) Height() float64 {
	return e.MaxY - e.MinY
}

// String returns a string representation of the extent.
func (e Extent) String() string {
	return fmt.Sprintf("BOX(%f %f, %f %f) SRID=%d", e.MinX, e.MinY, e.MaxX, e.MaxY, e.SRID)
}

// tileSnap absorbs the floating point error of the inverse Gudermannian
// pair so that a tile's own top-left corner always floors into that tile.
const tileSnap = 1e-9

// TileTopLeft returns the WGS84 coordinate of the top-left corner of
// tile (x, y) at the given zoom. Corners of neighboring tiles are shared,
// so (x+1, y+1) yields the bottom-right corner of the same tile.
func TileTopLeft(x, y, zoom int) GeoPoint {
	n := float64(int64(1) << uint(zoom))
	lon := float64(x)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	return GeoPoint{Lon: lon, Lat: latRad * 180.0 / math.Pi}
}

// LonLatToMercator projects a WGS84 point to spherical Web Mercator.
// The transform is undefined at the poles; callers clamp latitude first.
func LonLatToMercator(p GeoPoint) MercatorPoint {
	x := EarthRadius * p.Lon * math.Pi / 180.0
	y := EarthRadius * math.Log(math.Tan(math.Pi/4.0+p.Lat*math.Pi/360.0))
	return MercatorPoint{X: x, Y: y}
}

// MercatorToLonLat is the inverse of LonLatToMercator.
func MercatorToLonLat(m MercatorPoint) GeoPoint {
	lon := m.X / EarthRadius * 180.0 / math.Pi
	lat := (2.0*math.Atan(math.Exp(m.Y/EarthRadius)) - math.Pi/2.0) * 180.0 / math.Pi
	return GeoPoint{Lon: lon, Lat: lat}
}

// TileFraction returns the fractional tile coordinates of a WGS84 point
// at the given zoom. Latitude is clamped to the Mercator limit first.
// Integer parts identify the containing tile; the fractional parts are
// the position within it.
func TileFraction(p GeoPoint, zoom int) (fx, fy float64) {
	lat := p.Lat
	if lat > MaxLatitude {
		lat = MaxLatitude
	}
	if lat < -MaxLatitude {
		lat = -MaxLatitude
	}

	n := float64(int64(1) << uint(zoom))
	latRad := lat * math.Pi / 180.0

	fx = (p.Lon + 180.0) / 360.0 * n
	fy = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n
	return fx, fy
}

// LonLatToTile returns the tile containing the given WGS84 point at the
// given zoom. The result is clamped into [0, 2^zoom-1], so every finite
// input maps to a real tile.
func LonLatToTile(p GeoPoint, zoom int) TileIndex {
	fx, fy := TileFraction(p, zoom)
	n := 1 << uint(zoom)
	x := clampTile(int(math.Floor(fx+tileSnap)), n)
	y := clampTile(int(math.Floor(fy+tileSnap)), n)
	return TileIndex{X: x, Y: y, Zoom: zoom}
}

// TileExtentMercator returns the Mercator-space rectangle covered by tile
// (x, y). Both corners go through the same TileTopLeft/LonLatToMercator
// pair, so adjacent tiles share exact boundary coordinates.
func TileExtentMercator(x, y, zoom int) Extent {
	tl := LonLatToMercator(TileTopLeft(x, y, zoom))
	br := LonLatToMercator(TileTopLeft(x+1, y+1, zoom))
	return Extent{MinX: tl.X, MinY: br.Y, MaxX: br.X, MaxY: tl.Y, SRID: SRIDWebMercator}
}

// TileExtentWGS84 returns the WGS84 rectangle covered by tile (x, y),
// used for MBTiles bounds metadata.
func TileExtentWGS84(x, y, zoom int) Extent {
	tl := TileTopLeft(x, y, zoom)
	br := TileTopLeft(x+1, y+1, zoom)
	return Extent{MinX: tl.Lon, MinY: br.Lat, MaxX: br.Lon, MaxY: tl.Lat, SRID: SRIDWGS84}
}

func clampTile(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return n - 1
	}
	return v
}
