package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hydra_processor_maintenance_runs_total",
			Help: "Total number of maintenance operations",
		},
	)

	maintenanceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_processor_maintenance_outcomes_total",
			Help: "Total number of maintenance operations by outcome",
		},
		[]string{"status"},
	)

	maintenanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydra_processor_maintenance_duration_seconds",
			Help:    "Duration of maintenance operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	walCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_processor_wal_checkpoint_total",
			Help: "Total number of WAL checkpoint operations",
		},
		[]string{"mode"},
	)

	vacuumRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hydra_processor_vacuum_total",
			Help: "Total number of VACUUM operations",
		},
	)

	dbSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hydra_processor_db_size_bytes",
			Help: "Database file size in bytes including WAL",
		},
	)
)
