// Package metrics exposes Prometheus collectors for graph resolution,
// instantiation and entity collection builds.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dependency graph metrics
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lenskit_inject_resolutions_total",
			Help: "Total number of root desire resolutions by outcome",
		},
		[]string{"outcome"}, // "ok", "unresolvable", "depth_limit"
	)

	GraphNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lenskit_inject_graph_nodes",
			Help:    "Number of reachable nodes in built dependency graphs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	NodesInstantiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lenskit_inject_nodes_instantiated_total",
			Help: "Total number of graph nodes replaced by instantiation",
		},
		[]string{"mode"}, // "instantiate", "simulate"
	)

	InstantiateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lenskit_inject_instantiate_duration_seconds",
			Help:    "Duration of shared-node instantiation passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Entity store metrics
	CollectionsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lenskit_store_collections_built_total",
			Help: "Total number of entity collections built",
		},
		[]string{"entity_type"},
	)

	CollectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lenskit_store_collection_entities",
			Help: "Number of entities in the most recently built collection per type",
		},
		[]string{"entity_type"},
	)
)

// RecordResolution counts one root resolution outcome.
func RecordResolution(outcome string) {
	Resolutions.WithLabelValues(outcome).Inc()
}

// RecordInstantiation records a completed instantiation pass.
func RecordInstantiation(mode string, nodes int, duration time.Duration) {
	NodesInstantiated.WithLabelValues(mode).Add(float64(nodes))
	InstantiateDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordCollection records a built entity collection.
func RecordCollection(entityType string, size int) {
	CollectionsBuilt.WithLabelValues(entityType).Inc()
	CollectionSize.WithLabelValues(entityType).Set(float64(size))
}
