// Package metrics exposes verification counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		NewRegistry,
		func(r *Registry) Recorder { return r },
	),
)

// Recorder receives verification events. Nop satisfies it when metrics are off.
type Recorder interface {
	CodeIssued(channel string)
	Rejected(operation, reason string)
	Verified(channel string)
	DeliveryDuration(channel string, d time.Duration)
}

type Nop struct{}

func (Nop) CodeIssued(string)                      {}
func (Nop) Rejected(string, string)                {}
func (Nop) Verified(string)                        {}
func (Nop) DeliveryDuration(string, time.Duration) {}

type Registry struct {
	registry *prometheus.Registry
	issued   *prometheus.CounterVec
	rejected *prometheus.CounterVec
	verified *prometheus.CounterVec
	delivery *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_codes_issued_total",
			Help: "Verification codes issued and delivered.",
		}, []string{"channel"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_rejections_total",
			Help: "Verification requests rejected, by operation and reason.",
		}, []string{"operation", "reason"}),
		verified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_verified_total",
			Help: "Channels successfully verified.",
		}, []string{"channel"}),
		delivery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verification_delivery_duration_seconds",
			Help:    "Time spent handing a code to the mail or SMS transport.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.issued,
		r.rejected,
		r.verified,
		r.delivery,
	)
	return r
}

func (r *Registry) CodeIssued(channel string) {
	r.issued.WithLabelValues(channel).Inc()
}

func (r *Registry) Rejected(operation, reason string) {
	r.rejected.WithLabelValues(operation, reason).Inc()
}

func (r *Registry) Verified(channel string) {
	r.verified.WithLabelValues(channel).Inc()
}

func (r *Registry) DeliveryDuration(channel string, d time.Duration) {
	r.delivery.WithLabelValues(channel).Observe(d.Seconds())
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
