package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	UsersRegistered      prometheus.Counter
	RegistrationRejected *prometheus.CounterVec
	ResolveDuration      *prometheus.HistogramVec
	CacheLookups         *prometheus.CounterVec
}

// New registers registry metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "alpine_users_registered_total",
			Help: "Total number of usernames registered",
		}),
		RegistrationRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alpine_registrations_rejected_total",
			Help: "Registrations rejected, by error code",
		}, []string{"code"}),
		ResolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alpine_identity_resolve_duration_seconds",
			Help:    "Duration of identity lookups by key kind",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"by"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alpine_identity_cache_lookups_total",
			Help: "Identity-by-address cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementRejected(code string) {
	m.RegistrationRejected.WithLabelValues(code).Inc()
}

// ObserveResolve records a lookup started at start. by is "username" or "address".
func (m *Metrics) ObserveResolve(by string, start time.Time) {
	m.ResolveDuration.WithLabelValues(by).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}
