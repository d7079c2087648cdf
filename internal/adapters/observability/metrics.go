package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"
)

const namespace = "travel"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	ImageUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "image_uploads_total", Help: "Image uploads by outcome."},
		[]string{"outcome"}, // ok|failed|rejected
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "draft_submissions_total", Help: "Draft submissions by entity and final state."},
		[]string{"entity", "state"},
	)
	Quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "quotes_total", Help: "Price quotes by outcome."},
		[]string{"outcome"}, // ok|invalid
	)
)

// Serve exposes the default registry on its own port; empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		ImageUploads, Submissions, Quotes)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveUpload(outcome string) { ImageUploads.WithLabelValues(outcome).Inc() }

func ObserveSubmission(entity, state string) { Submissions.WithLabelValues(entity, state).Inc() }

func ObserveQuote(outcome string) { Quotes.WithLabelValues(outcome).Inc() }

// PushSweep records one sweeper run on a Pushgateway. The job exits right
// after, so nothing would ever scrape it. The success timestamp is only
// replaced when the run finished.
func PushSweep(ctx context.Context, gateway string, removed int, finished bool) error {
	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "sweeper_last_removed", Help: "Snapshots deleted by the last sweeper run.",
	})
	last.Set(float64(removed))
	p := push.New(gateway, "draft_sweeper").Collector(last)
	if finished {
		ok := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sweeper_last_success_timestamp_seconds", Help: "End of the last complete sweep.",
		})
		ok.SetToCurrentTime()
		p = p.Collector(ok)
	}
	return p.AddContext(ctx)
}
