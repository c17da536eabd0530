// Package gdal shells out to the GDAL command line tools for raster
// inspection, reprojection, clipping and tile rendering.
package gdal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// Config holds the tool binary names. Empty fields fall back to the
// standard names resolved via PATH.
type Config struct {
	Info     string // gdalinfo
	Warp     string // gdalwarp
	Tiles    string // gdal2tiles.py
	NumProcs int    // renderer parallelism, 0 for single process
}

// Processor implements output.RasterProcessor on the GDAL tools.
type Processor struct {
	cfg Config
}

// NewProcessor creates a new GDAL processor.
func NewProcessor(cfg Config) *Processor {
	if cfg.Info == "" {
		cfg.Info = "gdalinfo"
	}
	if cfg.Warp == "" {
		cfg.Warp = "gdalwarp"
	}
	if cfg.Tiles == "" {
		cfg.Tiles = "gdal2tiles.py"
	}
	return &Processor{cfg: cfg}
}

// gdalInfo is the subset of gdalinfo -json output the pipeline needs.
type gdalInfo struct {
	CornerCoordinates struct {
		UpperLeft  []float64 `json:"upperLeft"`
		LowerRight []float64 `json:"lowerRight"`
	} `json:"cornerCoordinates"`
	CoordinateSystem struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
}

// Describe reads the raster's extent and reference system.
func (p *Processor) Describe(ctx context.Context, path string) (domain.Extent, error) {
	out, err := p.run(ctx, "describe", p.cfg.Info, "-json", path)
	if err != nil {
		return domain.Extent{}, err
	}

	var info gdalInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return domain.Extent{}, &domain.ToolError{
			Tool:  p.cfg.Info,
			Stage: "describe",
			Err:   fmt.Errorf("parsing output: %w", err),
		}
	}

	ul := info.CornerCoordinates.UpperLeft
	lr := info.CornerCoordinates.LowerRight
	if len(ul) < 2 || len(lr) < 2 {
		return domain.Extent{}, &domain.ToolError{
			Tool:  p.cfg.Info,
			Stage: "describe",
			Err:   fmt.Errorf("no corner coordinates for %s", path),
		}
	}

	return domain.Extent{
		MinX: ul[0],
		MinY: lr[1],
		MaxX: lr[0],
		MaxY: ul[1],
		SRID: parseEPSG(info.CoordinateSystem.WKT),
	}, nil
}

// Reproject warps the raster into Web Mercator.
func (p *Processor) Reproject(ctx context.Context, src, dst string) error {
	_, err := p.run(ctx, "reproject", p.cfg.Warp,
		"-t_srs", fmt.Sprintf("EPSG:%d", domain.SRIDWebMercator),
		"-r", "bilinear",
		"-overwrite",
		src, dst)
	return err
}

// Clip cuts the Mercator extent out of the raster and resamples it to a
// size x size square.
func (p *Processor) Clip(ctx context.Context, src, dst string, extent domain.Extent, size int) error {
	_, err := p.run(ctx, "clip", p.cfg.Warp,
		"-te", coord(extent.MinX), coord(extent.MinY), coord(extent.MaxX), coord(extent.MaxY),
		"-ts", strconv.Itoa(size), strconv.Itoa(size),
		"-overwrite",
		src, dst)
	return err
}

// RenderPyramid renders the XYZ tile pyramid for the zoom range into
// dir. Leaves are always true-color PNG.
func (p *Processor) RenderPyramid(ctx context.Context, src, dir string, minZoom, maxZoom int) error {
	args := []string{
		"--xyz",
		"-z", fmt.Sprintf("%d-%d", minZoom, maxZoom),
		"-w", "none",
		"--resampling=cubic",
	}
	if p.cfg.NumProcs > 1 {
		args = append(args, fmt.Sprintf("--processes=%d", p.cfg.NumProcs))
	}
	args = append(args, src, dir)

	_, err := p.run(ctx, "render", p.cfg.Tiles, args...)
	return err
}

// run executes one tool invocation, wrapping failures with the captured
// stderr tail.
func (p *Processor) run(ctx context.Context, stage, tool string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...) //#nosec G204 -- tool names come from operator config

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &domain.ToolError{
			Tool:   tool,
			Stage:  stage,
			Stderr: lastLines(stderr.String(), 10),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// parseEPSG extracts the EPSG code from a WKT string, handling both the
// WKT2 ID[...] and the WKT1 AUTHORITY[...] spellings. Returns 0 when no
// code is found.
func parseEPSG(wkt string) int {
	// WKT2: the last ID["EPSG",nnnn] names the whole CRS.
	if i := strings.LastIndex(wkt, `ID["EPSG",`); i >= 0 {
		rest := wkt[i+len(`ID["EPSG",`):]
		if j := strings.IndexByte(rest, ']'); j > 0 {
			if code, err := strconv.Atoi(strings.TrimSpace(rest[:j])); err == nil {
				return code
			}
		}
	}
	if i := strings.LastIndex(wkt, `AUTHORITY["EPSG","`); i >= 0 {
		rest := wkt[i+len(`AUTHORITY["EPSG","`):]
		if j := strings.IndexByte(rest, '"'); j > 0 {
			if code, err := strconv.Atoi(rest[:j]); err == nil {
				return code
			}
		}
	}
	return 0
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func lastLines(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
