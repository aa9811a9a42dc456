package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cohort/internal/batch"
)

// batchItems counts per-item batch outcomes by pipeline kind; exposed on
// /metrics alongside the default process collectors.
var batchItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cohort_batch_items_total",
	Help: "Batch items processed, by pipeline kind and outcome.",
}, []string{"kind", "outcome"})

func observeReport(kind string, report *batch.Report) {
	if report == nil {
		return
	}
	batchItems.WithLabelValues(kind, string(batch.StatusSucceeded)).Add(float64(report.Succeeded))
	batchItems.WithLabelValues(kind, string(batch.StatusSkipped)).Add(float64(report.Skipped))
	batchItems.WithLabelValues(kind, string(batch.StatusFailed)).Add(float64(report.Failed))
}
