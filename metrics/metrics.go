// Package metrics exposes the Prometheus counters and gauges emitted by
// the dispatcher and callback registry, grounded on moby-moby's and
// runZeroInc-conniver's direct use of github.com/prometheus/client_golang
// (runZeroInc-conniver's pkg/exporter is the closest single-file analog:
// a small, self-contained counter/gauge registration module).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric this module emits behind one
// constructor, so a server binary can register them once against its own
// prometheus.Registerer (or the default one) and pass the Registry down
// to dispatch.Dispatcher and callback.Registry.
type Registry struct {
	RequestsTotal  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	Subscriptions  prometheus.Gauge
	CallbackFanout *prometheus.CounterVec
}

// New constructs a Registry and registers its metrics against reg. Pass
// prometheus.DefaultRegisterer for normal process-wide use, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration
// panics across test runs.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgrpc_requests_total",
			Help: "Total number of successfully dispatched requests, by method signature.",
		}, []string{"signature"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgrpc_errors_total",
			Help: "Total number of request errors, by InvokeError kind.",
		}, []string{"kind"}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dgrpc_callback_subscriptions",
			Help: "Current number of pending callback subscriptions across all paths.",
		}),
		CallbackFanout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dgrpc_callback_notifications_total",
			Help: "Total number of callback notifications delivered, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.RequestsTotal, r.ErrorsTotal, r.Subscriptions, r.CallbackFanout)
	return r
}

// IncRequest records a successfully dispatched request for sig.
func (r *Registry) IncRequest(sig string) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(sig).Inc()
}

// IncError records a request error of the given InvokeError kind.
func (r *Registry) IncError(kind string) {
	if r == nil {
		return
	}
	r.ErrorsTotal.WithLabelValues(kind).Inc()
}

// AddSubscriptions adjusts the active callback subscription gauge by
// delta (positive on Register, negative when a Trigger drains a path's
// subscriber list).
func (r *Registry) AddSubscriptions(delta float64) {
	if r == nil {
		return
	}
	r.Subscriptions.Add(delta)
}

// IncFanout records one callback notification outcome ("delivered",
// "failed", or "rate_limited").
func (r *Registry) IncFanout(outcome string) {
	if r == nil {
		return
	}
	r.CallbackFanout.WithLabelValues(outcome).Inc()
}
