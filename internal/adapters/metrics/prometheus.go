// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	cellsTotal        prometheus.Gauge
	cellsProcessed    *prometheus.CounterVec
	cellDuration      prometheus.Histogram
	tilesPacked       prometheus.Counter
	storageOperations *prometheus.CounterVec
	storageDuration   *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tilecutter"
	}

	return &Collector{
		cellsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cells_total",
				Help:      "Number of grid cells in the current run",
			},
		),

		cellsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cells_processed_total",
				Help:      "Total number of processed grid cells",
			},
			[]string{"status"},
		),

		cellDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cell_duration_seconds",
				Help:      "Wall time of one grid cell in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),

		tilesPacked: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tiles_packed_total",
				Help:      "Total number of tiles written to databases",
			},
		),

		storageOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// SetCellsTotal sets the number of cells in the current run.
func (c *Collector) SetCellsTotal(count int) {
	c.cellsTotal.Set(float64(count))
}

// IncCellsProcessed increments the processed-cell counter.
func (c *Collector) IncCellsProcessed(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.cellsProcessed.WithLabelValues(status).Inc()
}

// ObserveCellDuration records the wall time of one cell.
func (c *Collector) ObserveCellDuration(duration time.Duration) {
	c.cellDuration.Observe(duration.Seconds())
}

// AddTilesPacked adds to the packed-tile counter.
func (c *Collector) AddTilesPacked(count int) {
	c.tilesPacked.Add(float64(count))
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.storageOperations.WithLabelValues(operation, status).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
