/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Package metrics exposes the Prometheus counters and gauges the engine
// updates as it builds views, serves cache hits, and runs the
// Background Builder.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ViewsBuiltTotal counts how many triplets the engine has frozen into
	// SqpackViews since process start.
	ViewsBuiltTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqpack_overlay",
		Name:      "views_built_total",
		Help:      "Number of SqPack triplets frozen into SqpackViews.",
	})

	// ViewsCacheHitsTotal and ViewsCacheMissesTotal track acquire_views'
	// memoization effectiveness.
	ViewsCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqpack_overlay",
		Name:      "views_cache_hits_total",
		Help:      "Number of acquire_views calls served from the views cache.",
	})
	ViewsCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqpack_overlay",
		Name:      "views_cache_misses_total",
		Help:      "Number of acquire_views calls that required a fresh build.",
	})

	// BlacklistedTripletsTotal counts triplets for which no overlay ever
	// contributed an addition or replacement.
	BlacklistedTripletsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqpack_overlay",
		Name:      "blacklisted_triplets_total",
		Help:      "Number of triplets blacklisted because no overlay contributed.",
	})

	// BuilderTasksTotal is partitioned by outcome (completed, failed,
	// cancelled), one per Background Builder run.
	BuilderTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sqpack_overlay",
		Name:      "builder_tasks_total",
		Help:      "Background Builder task outcomes.",
	}, []string{"outcome"})

	// BuilderProgress reports the most recent (done, total) pair the
	// Background Builder's progress pump observed, for the currently
	// running build (or the last one, once it finishes).
	BuilderProgressDone = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sqpack_overlay",
		Name:      "builder_progress_done",
		Help:      "Tasks completed or failed so far in the current/most recent build.",
	})
	BuilderProgressTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sqpack_overlay",
		Name:      "builder_progress_total",
		Help:      "Total tasks in the current/most recent build.",
	})

	// OpenHandlesGauge tracks how many OverlayedHandles are currently
	// registered in the handle table.
	OpenHandlesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sqpack_overlay",
		Name:      "open_handles",
		Help:      "Number of currently open OverlayedHandles.",
	})
)

// Register adds every collector above to reg. Call once at process
// startup, exactly as the teacher's own metrics registration does.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ViewsBuiltTotal,
		ViewsCacheHitsTotal,
		ViewsCacheMissesTotal,
		BlacklistedTripletsTotal,
		BuilderTasksTotal,
		BuilderProgressDone,
		BuilderProgressTotal,
		OpenHandlesGauge,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
