package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hotelsync", Name: "provider_requests_total", Help: "Outbound provider requests."},
		[]string{"provider", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hotelsync", Name: "provider_request_duration_seconds",
			Help:    "Outbound provider request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)
	ImportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hotelsync", Name: "import_runs_total", Help: "Import runs by outcome."},
		[]string{"provider", "result"}, // result: completed|failed|aborted
	)
	EntityUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hotelsync", Name: "entity_upserts_total", Help: "Entity upserts by kind and operation."},
		[]string{"entity", "op"}, // op: created|updated
	)
	OffersDeactivated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hotelsync", Name: "offers_deactivated_total", Help: "Offers flipped inactive by reconciliation."},
		[]string{"provider"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "hotelsync", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

// Serve starts the ops endpoint (metrics + health) if addr is non-empty.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(ExternalRequests, ExternalLatency, ImportRuns, EntityUpserts, OffersDeactivated, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveExternal(provider, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(provider, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(provider, endpoint).Observe(dur.Seconds())
}

func ObserveRun(provider, result string) {
	ImportRuns.WithLabelValues(provider, result).Inc()
}

func ObserveUpsert(entity string, created bool) {
	op := "updated"
	if created {
		op = "created"
	}
	EntityUpserts.WithLabelValues(entity, op).Inc()
}

func ObserveDeactivated(provider string, n int64) {
	OffersDeactivated.WithLabelValues(provider).Add(float64(n))
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
