package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// SetCellsTotal sets the number of grid cells in the current run.
	SetCellsTotal(count int)

	// IncCellsProcessed increments the processed-cell counter.
	IncCellsProcessed(success bool)

	// ObserveCellDuration records the wall time of one cell.
	ObserveCellDuration(duration time.Duration)

	// AddTilesPacked adds to the packed-tile counter.
	AddTilesPacked(count int)

	// IncStorageOperations increments the publish operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records publish operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// SetCellsTotal implements MetricsCollector.
func (n *NoOpMetrics) SetCellsTotal(_ int) {}

// IncCellsProcessed implements MetricsCollector.
func (n *NoOpMetrics) IncCellsProcessed(_ bool) {}

// ObserveCellDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveCellDuration(_ time.Duration) {}

// AddTilesPacked implements MetricsCollector.
func (n *NoOpMetrics) AddTilesPacked(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
