package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratad",
		Subsystem: "registry",
		Name:      "chunks_stored_total",
		Help:      "Number of chunks written to tenant stores.",
	}, []string{"organization"})

	rebuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stratad",
		Subsystem: "registry",
		Name:      "rebuild_failures_total",
		Help:      "Number of tenant store rebuilds aborted at startup.",
	}, []string{"organization"})
)
