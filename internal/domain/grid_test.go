package domain

import (
	"errors"
	"testing"
)

func TestPartitionExtentSingleCell(t *testing.T) {
	// An extent exactly equal to one reference-zoom tile must yield
	// exactly that cell, not its boundary neighbors.
	want := TileIndex{X: 33431, Y: 21724, Zoom: 16}
	ext := TileExtentMercator(want.X, want.Y, want.Zoom)

	cells, err := PartitionExtent(ext, 16)
	if err != nil {
		t.Fatalf("PartitionExtent failed: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1 (%v)", len(cells), cells)
	}
	if cells[0].Index != want {
		t.Errorf("cells[0].Index = %v, want %v", cells[0].Index, want)
	}
	if cells[0].Extent != ext {
		t.Errorf("cells[0].Extent = %v, want %v", cells[0].Extent, ext)
	}
}

func TestPartitionExtentTwoByOne(t *testing.T) {
	left := TileExtentMercator(100, 200, 16)
	right := TileExtentMercator(101, 200, 16)
	ext := Extent{MinX: left.MinX, MinY: left.MinY, MaxX: right.MaxX, MaxY: right.MaxY, SRID: SRIDWebMercator}

	cells, err := PartitionExtent(ext, 16)
	if err != nil {
		t.Fatalf("PartitionExtent failed: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("len(cells) = %d, want 2", len(cells))
	}

	seen := map[TileIndex]bool{}
	for _, c := range cells {
		seen[c.Index] = true
	}
	for _, want := range []TileIndex{{X: 100, Y: 200, Zoom: 16}, {X: 101, Y: 200, Zoom: 16}} {
		if !seen[want] {
			t.Errorf("missing cell %v", want)
		}
	}
}

func TestPartitionExtentSliverCrossesBoundary(t *testing.T) {
	// Any real overhang past a tile boundary pulls in the adjacent tile.
	base := TileExtentMercator(100, 200, 16)
	ext := base
	ext.MaxX += base.Width() / 4

	cells, err := PartitionExtent(ext, 16)
	if err != nil {
		t.Fatalf("PartitionExtent failed: %v", err)
	}
	if len(cells) != 2 {
		t.Errorf("len(cells) = %d, want 2", len(cells))
	}
}

func TestPartitionExtentDegenerate(t *testing.T) {
	center := LonLatToMercator(GeoPoint{Lon: 7.1, Lat: 50.7})
	ext := Extent{MinX: center.X, MinY: center.Y, MaxX: center.X, MaxY: center.Y, SRID: SRIDWebMercator}

	cells, err := PartitionExtent(ext, 16)
	if err != nil {
		t.Fatalf("PartitionExtent failed: %v", err)
	}
	if len(cells) != 1 {
		t.Errorf("len(cells) = %d, want 1", len(cells))
	}
}

func TestPartitionExtentRejectsWrongSRID(t *testing.T) {
	ext := Extent{MinX: 6, MinY: 50, MaxX: 7, MaxY: 51, SRID: SRIDWGS84}
	_, err := PartitionExtent(ext, 16)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPartitionExtentRejectsInvertedExtent(t *testing.T) {
	ext := Extent{MinX: 10, MinY: 10, MaxX: 5, MaxY: 5, SRID: SRIDWebMercator}
	_, err := PartitionExtent(ext, 16)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPartitionExtentRejectsBadZoom(t *testing.T) {
	ext := TileExtentMercator(0, 0, 1)
	for _, zoom := range []int{-1, 23} {
		if _, err := PartitionExtent(ext, zoom); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("zoom %d: err = %v, want ErrInvalidInput", zoom, err)
		}
	}
}

func TestGridCellName(t *testing.T) {
	cell := GridCell{Index: TileIndex{X: 33431, Y: 21724, Zoom: 16}}
	if got := cell.Name(); got != "33431_21724" {
		t.Errorf("Name() = %q, want %q", got, "33431_21724")
	}
}
