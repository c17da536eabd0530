package domain

import (
	"errors"
	"testing"
)

func TestParseTileFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    TileFormat
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"PNG", FormatPNG, false},
		{"png8", FormatPNG8, false},
		{"jpeg", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"webp", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTileFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTileFormat(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTileFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTileFormatExtension(t *testing.T) {
	if got := FormatJPEG.Extension(); got != "jpg" {
		t.Errorf("jpeg extension = %q, want jpg", got)
	}
	if got := FormatPNG8.Extension(); got != "png" {
		t.Errorf("png8 extension = %q, want png", got)
	}
	if got := FormatJPEG.MBTilesFormat(); got != "jpg" {
		t.Errorf("jpeg mbtiles format = %q, want jpg", got)
	}
	if got := FormatPNG.MBTilesFormat(); got != "png" {
		t.Errorf("png mbtiles format = %q, want png", got)
	}
}

func TestTilesetMetadataRows(t *testing.T) {
	md := NewTilesetMetadata(FormatPNG8, 16, 20, Extent{MinX: 10, MinY: 20, MaxX: 11, MaxY: 21, SRID: SRIDWGS84})

	rows := map[string]string{}
	for _, row := range md.Rows() {
		rows[row[0]] = row[1]
	}

	want := map[string]string{
		"name":    "Generated Map Tiles",
		"type":    "baselayer",
		"version": "1.0",
		"format":  "png",
		"minzoom": "16",
		"maxzoom": "20",
		"bounds":  "10,20,11,21",
	}
	for name, value := range want {
		if rows[name] != value {
			t.Errorf("rows[%q] = %q, want %q", name, rows[name], value)
		}
	}
}

func TestTilesetMetadataValidate(t *testing.T) {
	wgs84 := Extent{MinX: 10, MinY: 20, MaxX: 11, MaxY: 21, SRID: SRIDWGS84}

	md := NewTilesetMetadata(FormatPNG, 16, 20, wgs84)
	if err := md.Validate(); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}

	md = NewTilesetMetadata(FormatPNG, 20, 16, wgs84)
	if err := md.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inverted zoom range: err = %v, want ErrInvalidInput", err)
	}

	mercator := wgs84
	mercator.SRID = SRIDWebMercator
	md = NewTilesetMetadata(FormatPNG, 16, 20, mercator)
	if err := md.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("mercator bounds: err = %v, want ErrInvalidInput", err)
	}
}
