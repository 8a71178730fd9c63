package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"htmlvault/internal/model"
)

// Skip reasons reported on htmlvault_ingest_media_skipped_total.
const (
	skipNotFound   = "not_found"
	skipUnreadable = "unreadable"
	skipCopyFailed = "copy_failed"
	skipOutside    = "outside_root"
)

// Metrics holds the ingestion collectors. A nil *Metrics records nothing.
type Metrics struct {
	media    *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the ingestion collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		media: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "htmlvault_ingest_media_total",
				Help: "Media files copied into managed storage during ingestion.",
			},
			[]string{"type"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "htmlvault_ingest_media_skipped_total",
				Help: "Media references skipped during ingestion.",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "htmlvault_ingest_duration_seconds",
			Help:    "Time spent ingesting one HTML document.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.media, m.skipped, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) countMedia(t model.MediaType) {
	if m == nil {
		return
	}
	m.media.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) countSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
