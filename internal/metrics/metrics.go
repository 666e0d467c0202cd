// Package metrics exposes the Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Uploads counts files admitted into the store.
	Uploads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyvault",
		Name:      "uploads_total",
		Help:      "Number of files uploaded.",
	})

	// UploadBytes counts bytes admitted into the store.
	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyvault",
		Name:      "upload_bytes_total",
		Help:      "Bytes uploaded.",
	})

	// PermanentDeletes counts files removed for good, whether by an
	// explicit delete or by the retention sweep.
	PermanentDeletes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyvault",
		Name:      "permanent_deletes_total",
		Help:      "Number of files permanently deleted.",
	})

	// BytesFreed counts bytes returned to user quotas.
	BytesFreed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyvault",
		Name:      "bytes_freed_total",
		Help:      "Bytes freed by permanent deletions.",
	})

	// SweepRuns counts completed retention sweeps.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyvault",
		Name:      "sweep_runs_total",
		Help:      "Number of completed trash retention sweeps.",
	})

	// ShareResolves counts public share link resolutions.
	ShareResolves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyvault",
		Name:      "share_resolves_total",
		Help:      "Number of share links resolved.",
	})
)
