// Package metrics holds the prometheus collectors shared across scaledspace.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/scaledspace/pkg/core"
)

var (
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scaledspace", Name: "cache_requests_total", Help: "Requests seen by the offline router by outcome."},
		[]string{"outcome"},
	)
	CacheInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scaledspace", Name: "cache_installs_total", Help: "Cache generation installs by result."},
		[]string{"result"},
	)
	StorageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scaledspace", Name: "storage_failures_total", Help: "Failed storage operations by error kind."},
		[]string{"op", "kind"},
	)
	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "scaledspace", Name: "notifications_sent_total", Help: "Reminder notifications delivered."},
	)
)

// Router outcomes.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomePassthrough = "passthrough"
	OutcomeOffline     = "offline_fallback"
	OutcomeUnavailable = "unavailable"
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(CacheRequests)
	reg.MustRegister(CacheInstalls)
	reg.MustRegister(StorageFailures)
	reg.MustRegister(NotificationsSent)
}

// ObserveStorage counts err against op when it is a storage failure.
func ObserveStorage(op string, err error) {
	if err == nil {
		return
	}
	StorageFailures.WithLabelValues(op, Kind(err)).Inc()
}

// Kind returns the label for the storage error kind of err.
func Kind(err error) string {
	switch {
	case errors.Is(err, core.ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, core.ErrReadOnly):
		return "read_only"
	case errors.Is(err, core.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, core.ErrStorageUnavailable):
		return "unavailable"
	case errors.Is(err, core.ErrIOFailure):
		return "io_failure"
	default:
		return "other"
	}
}
