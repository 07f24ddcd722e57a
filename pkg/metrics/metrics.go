// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package metrics holds the Prometheus collectors of the archive.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "archive"

//nolint:gochecknoglobals // Collectors are process wide.
var (
	CatalogScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_scan_duration_seconds",
			Help:      "Time spent building a catalog from the storage root",
			Buckets:   prometheus.DefBuckets,
		},
	)

	CatalogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_entries",
			Help:      "Number of entries in the most recent catalog",
		},
	)

	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_hits_total",
			Help:      "Catalog listings served from the cached snapshot",
		},
	)

	SidecarCorrupt = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sidecar_corrupt_total",
			Help:      "Sidecars that existed but could not be used",
		},
	)

	AssetResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_responses_total",
			Help:      "Asset delivery responses by status code",
		},
		[]string{"code"},
	)

	AssetBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_bytes_sent_total",
			Help:      "Body bytes written by asset delivery",
		},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "asset_active_streams",
			Help:      "Asset bodies currently being streamed",
		},
	)

	StreamsAborted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_streams_aborted_total",
			Help:      "Streams that ended before the last byte",
		},
		[]string{"reason"}, // "client_gone", "read_error"
	)

	DetectorProcesses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detector_processes",
			Help:      "Detector processes currently registered",
		},
	)

	DetectorExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_exits_total",
			Help:      "Detector process exits",
		},
		[]string{"reason"}, // "stopped", "exited", "failed"
	)

	ThumbnailCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnail_cache_total",
			Help:      "Thumbnail lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	EventClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_clients",
			Help:      "Connected event feed clients",
		},
	)
)

// ObserveScan records one catalog build.
func ObserveScan(start time.Time, entries int) {
	CatalogScanDuration.Observe(time.Since(start).Seconds())
	CatalogEntries.Set(float64(entries))
}

// ObserveResponse records the status of one asset response.
func ObserveResponse(code int) {
	AssetResponses.WithLabelValues(strconv.Itoa(code)).Inc()
}
