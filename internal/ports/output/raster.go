// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// RasterProcessor defines the secondary port for the external
// raster-processing toolchain. Every operation is synchronous and a
// failure is fatal for the invoking unit of work; nothing is retried.
type RasterProcessor interface {
	// Describe returns the extent of the raster in its native SRS.
	Describe(ctx context.Context, path string) (domain.Extent, error)

	// Reproject warps src into a Web Mercator (EPSG:3857) raster at dst.
	Reproject(ctx context.Context, src, dst string) error

	// Clip cuts the given Mercator extent out of src into a square
	// raster of size x size pixels at dst.
	Clip(ctx context.Context, src, dst string, extent domain.Extent, size int) error

	// RenderPyramid renders an XYZ tile pyramid (origin top-left, not
	// TMS) from src into dir across the inclusive zoom range, using a
	// high-quality resampling kernel.
	RenderPyramid(ctx context.Context, src, dir string, minZoom, maxZoom int) error
}
