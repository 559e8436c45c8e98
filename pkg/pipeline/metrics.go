package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics describing the artifacts of the last successful run.
var (
	snapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brewery_snapshot_records",
		Help: "Records in the last raw snapshot written",
	})

	convertedColumns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brewery_converted_columns",
		Help: "Columns in the last converted table",
	})

	partitionUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brewery_partition_units",
		Help: "Partition units written by the last clean run",
	})

	aggregateGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brewery_aggregate_groups",
		Help: "Groups in the last aggregate written",
	})
)
