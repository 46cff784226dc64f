// Package metrics exports derivative cache and upload metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "simple_media"

// Prometheus implements simplemedia.Metrics.
type Prometheus struct {
	resolves        *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
	posters         *prometheus.CounterVec
	posterDuration  prometheus.Histogram
	uploads         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewPrometheus registers the media metrics on reg. A nil reg gets a fresh
// registry from NewRegistry.
func NewPrometheus(namespace string, reg *prometheus.Registry) (*Prometheus, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = NewRegistry()
	}

	resolves, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "derivative_resolves_total",
		Help:      "Derivative resolutions by output format and result (hit, generated, error).",
	}, []string{"format", "result"}))
	if err != nil {
		return nil, err
	}
	resolveDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "derivative_resolve_duration_seconds",
		Help:      "Latency of derivative resolutions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	posters, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poster_extractions_total",
		Help:      "Video poster extractions by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	posterDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poster_extraction_duration_seconds",
		Help:      "Latency of video poster extractions.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}))
	if err != nil {
		return nil, err
	}
	uploads, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_committed_total",
		Help:      "Index entries committed by content type.",
	}, []string{"type"}))
	if err != nil {
		return nil, err
	}

	return &Prometheus{
		resolves:        resolves,
		resolveDuration: resolveDuration,
		posters:         posters,
		posterDuration:  posterDuration,
		uploads:         uploads,
		gatherer:        reg,
	}, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register media metric: %w", err)
	}
	return c, nil
}

func (p *Prometheus) ResolveObserved(format simplemedia.Format, result string, d time.Duration) {
	p.resolves.WithLabelValues(string(format), result).Inc()
	p.resolveDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (p *Prometheus) PosterObserved(result string, d time.Duration) {
	p.posters.WithLabelValues(result).Inc()
	p.posterDuration.Observe(d.Seconds())
}

func (p *Prometheus) UploadCommitted(ns simplemedia.Namespace) {
	p.uploads.WithLabelValues(string(ns)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
