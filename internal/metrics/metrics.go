// Package metrics exposes stageboard counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stageboard/stageboard/internal/propagate"
)

const namespace = "stageboard"

// Recorder counts recomputes and dashboard requests. It implements
// propagate.Listener.
type Recorder struct {
	reg             *prom.Registry
	recomputes      *prom.CounterVec
	transitions     *prom.CounterVec
	projectProgress prom.Histogram
	requests        *prom.CounterVec
	requestDuration *prom.HistogramVec
}

// NewRecorder creates a Recorder registered on reg, or on a fresh registry
// when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		recomputes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "recomputes_total",
			Help:      "Aggregates recomputed, by kind",
		}, []string{"kind"}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Derived status changes, by kind and new status",
		}, []string{"kind", "status"}),
		projectProgress: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "project_progress_percent",
			Help:      "Project progress observed after each recompute",
			Buckets:   prom.LinearBuckets(0, 10, 11),
		}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard requests, by method, route and status code",
		}, []string{"method", "route", "code"}),
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard request latency",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(r.recomputes, r.transitions, r.projectProgress, r.requests, r.requestDuration)
	return r
}

// ProgressChanged implements propagate.Listener.
func (r *Recorder) ProgressChanged(res propagate.Result) {
	if c := res.StageChange; c != nil && !c.Skipped {
		r.recomputes.WithLabelValues("stage").Inc()
		if c.StatusChanged() {
			r.transitions.WithLabelValues("stage", string(c.NewStatus)).Inc()
		}
	}
	if c := res.ProjectChange; !c.Skipped {
		r.recomputes.WithLabelValues("project").Inc()
		r.projectProgress.Observe(float64(c.NewProgress))
		if c.StatusChanged() {
			r.transitions.WithLabelValues("project", string(c.NewStatus)).Inc()
		}
	}
}

// ObserveRequest records one dashboard request.
func (r *Recorder) ObserveRequest(method, route string, code int, d time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prom.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
