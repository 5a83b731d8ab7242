package observability

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "umrah", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "umrah", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "umrah", Name: "provider_requests_total", Help: "Outbound provider calls."},
		[]string{"provider", "status"},
	)
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "umrah", Name: "provider_request_duration_seconds",
			Help:    "Outbound provider call duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "umrah", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	CrawlJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "umrah", Name: "crawl_jobs_total", Help: "Crawl job outcomes."},
		[]string{"type", "outcome"}, // outcome: done|retried|failed
	)
	ResolverDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "umrah", Name: "resolver_decisions_total", Help: "Entity resolver outcomes."},
		[]string{"decision"}, // exact_hit|accepted|ambiguous|created|merged|remapped
	)
	OffersRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "umrah", Name: "offers_recorded_total", Help: "Offer rows appended."},
		[]string{"provider"},
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// metricsMux serves the package's own registry, not the prometheus default:
// the pipeline counters only ever register here, so a process that exposes
// metrics solely through Serve (the crawler) still surfaces them.
func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))
	return mux
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		ProviderRequests, ProviderLatency,
		CacheEvents, CrawlJobs, ResolverDecisions, OffersRecorded,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveProvider(provider string, status int, dur time.Duration) {
	ProviderRequests.WithLabelValues(provider, strconv.Itoa(status)).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveJob(jobType, outcome string) {
	CrawlJobs.WithLabelValues(jobType, outcome).Inc()
}

func ObserveResolver(decision string) {
	ResolverDecisions.WithLabelValues(decision).Inc()
}

func ObserveOffers(provider string, n int) {
	OffersRecorded.WithLabelValues(provider).Add(float64(n))
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
