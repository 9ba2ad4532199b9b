package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "staybook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Booking domain events by type.",
		},
		[]string{"type"},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Writes rejected because the interval overlapped an active booking.",
		},
	)

	calendarSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_total",
			Help:      "External calendar sync attempts by result.",
		},
		[]string{"result"},
	)

	calendarSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_sync_duration_seconds",
			Help:      "Duration of external calendar sync attempts.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	indexIntervals = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "availability_index_intervals",
			Help:      "Active booking intervals held by the availability index.",
		},
		func() float64 { return float64(IndexSize()) },
	)

	indexSize atomic.Pointer[func() int]
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingEvents,
			bookingConflicts,
			calendarSync,
			calendarSyncDuration,
			indexIntervals,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingEvent(eventType string) {
	bookingEvents.WithLabelValues(eventType).Inc()
}

func IncConflict() {
	bookingConflicts.Inc()
}

// ObserveSync records one calendar sync attempt; result is "success", "failed" or "timeout".
func ObserveSync(result string, took time.Duration) {
	calendarSync.WithLabelValues(result).Inc()
	calendarSyncDuration.Observe(took.Seconds())
}

// TrackIndexSize sets the source of the index gauge; it is read at scrape time.
func TrackIndexSize(fn func() int) {
	indexSize.Store(&fn)
}

func IndexSize() int {
	if fn := indexSize.Load(); fn != nil {
		return (*fn)()
	}
	return 0
}
