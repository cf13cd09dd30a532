package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger module.
type Metrics struct {
	DonationsRecorded prometheus.Counter
	DonatedQuantity   *prometheus.CounterVec
	LedgerSize        prometheus.Gauge
}

// New registers ledger metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		DonationsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "alpine_donations_recorded_total",
			Help: "Total number of donations appended to the ledger",
		}),
		DonatedQuantity: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alpine_donated_quantity_total",
			Help: "Quantity donated, by denomination of the primary coin",
		}, []string{"denom"}),
		LedgerSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alpine_ledger_donation_count",
			Help: "Last observed value of the donation counter",
		}),
	}
}

// RecordDonation counts one appended donation and its primary coin.
func (m *Metrics) RecordDonation(id uint64, denom string, quantity uint64) {
	m.DonationsRecorded.Inc()
	m.DonatedQuantity.WithLabelValues(denom).Add(float64(quantity))
	m.LedgerSize.Set(float64(id))
}
