// Package metrics exports engine timings and per-frame counters to
// Prometheus. Every label has a bounded value set: system names, event kinds
// and submit results.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sectorgo/engine/internal/core/event"
	coresys "github.com/sectorgo/engine/internal/core/system"
	"github.com/sectorgo/engine/internal/render"
	"github.com/sectorgo/engine/internal/visibility"
)

type Metrics struct {
	reg *prometheus.Registry

	tickDuration   prometheus.Histogram
	systemDuration *prometheus.HistogramVec
	submitDuration prometheus.Histogram
	submits        *prometheus.CounterVec
	events         *prometheus.CounterVec
	levelChanges   prometheus.Counter

	entities   prometheus.Gauge
	subsectors prometheus.Gauge
	segs       prometheus.Gauge
	billboards prometheus.Gauge
	culled     prometheus.Gauge
	nodes      prometheus.Gauge
}

// New registers the engine collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_tick_duration_seconds",
			Help:    "Time spent simulating one tick",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.0286, 0.05},
		}),
		systemDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_system_duration_seconds",
			Help:    "Time spent in one system update",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"system", "phase"}),
		submitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "render_submit_duration_seconds",
			Help:    "Time the render backend took for one draw list",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25},
		}),
		submits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "render_submits_total",
			Help: "Draw lists handed to the backend by result",
		}, []string{"result"}), // ok, error, stale, timeout
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_events_total",
			Help: "Events delivered by the bus by kind",
		}, []string{"kind"}),
		levelChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "engine_level_changes_total",
			Help: "Levels loaded",
		}),
		entities: f.NewGauge(prometheus.GaugeOpts{
			Name: "engine_entities",
			Help: "Live entities in the active level",
		}),
		subsectors: f.NewGauge(prometheus.GaugeOpts{
			Name: "visibility_subsectors",
			Help: "Subsectors in the last visible set",
		}),
		segs: f.NewGauge(prometheus.GaugeOpts{
			Name: "visibility_segs",
			Help: "Wall segments in the last visible set",
		}),
		billboards: f.NewGauge(prometheus.GaugeOpts{
			Name: "visibility_entities",
			Help: "Entities in the last visible set",
		}),
		culled: f.NewGauge(prometheus.GaugeOpts{
			Name: "visibility_culled_nodes",
			Help: "BSP children rejected in the last visible set",
		}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "visibility_nodes",
			Help: "BSP nodes visited for the last visible set",
		}),
	}
}

// Registry exposes the registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// ObserveSystem matches coresys.Runner.Observe.
func (m *Metrics) ObserveSystem(s coresys.System, d time.Duration) {
	m.systemDuration.WithLabelValues(s.Name(), s.Phase().String()).Observe(d.Seconds())
}

// ObserveSubmit matches render.Pipeline.Observe.
func (m *Metrics) ObserveSubmit(d time.Duration, err error) {
	switch {
	case err == nil:
		m.submits.WithLabelValues("ok").Inc()
		m.submitDuration.Observe(d.Seconds())
	case errors.Is(err, render.ErrStale):
		m.submits.WithLabelValues("stale").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		m.submits.WithLabelValues("timeout").Inc()
	default:
		m.submits.WithLabelValues("error").Inc()
	}
}

// ObserveFrame records the counters of the last visible set.
func (m *Metrics) ObserveFrame(vs *visibility.VisibleSet, entities int) {
	m.entities.Set(float64(entities))
	if vs == nil {
		return
	}
	st := vs.Stats
	m.nodes.Set(float64(st.Nodes))
	m.subsectors.Set(float64(st.Subsectors))
	m.segs.Set(float64(st.Segs))
	m.billboards.Set(float64(st.Entities))
	m.culled.Set(float64(st.Culled))
}

// Attach counts every event delivered on bus.
func (m *Metrics) Attach(bus *event.Bus) {
	m.levelChanges.Inc()
	bus.SubscribeAll(func(e event.Envelope) {
		m.events.WithLabelValues(kindOf(e.Payload)).Inc()
	})
}

func kindOf(p any) string {
	t := reflect.TypeOf(p)
	if t == nil {
		return "nil"
	}
	return t.Name()
}
