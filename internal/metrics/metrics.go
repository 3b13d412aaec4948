// Package metrics exposes planning counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k8ika0s/build-sequencer/internal/model"
)

// Recorder holds the sequencer metrics on its own registry.
type Recorder struct {
	Registry *prometheus.Registry

	plansTotal        *prometheus.CounterVec
	projectsTotal     *prometheus.CounterVec
	buildReasonsTotal *prometheus.CounterVec
	stateFilesLoaded  prometheus.Counter
	stateFilesWritten prometheus.Counter
	waves             prometheus.Gauge
	planDuration      prometheus.Histogram
}

// New registers every sequencer metric on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		plansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_plans_total",
				Help: "Number of plans by result.",
			},
			[]string{"result"},
		),
		projectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_projects_total",
				Help: "Projects planned, by action (build or restore).",
			},
			[]string{"action"},
		),
		buildReasonsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequencer_build_reasons_total",
				Help: "Projects that build, by build reason.",
			},
			[]string{"reason"},
		),
		stateFilesLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sequencer_state_files_loaded_total",
				Help: "State files loaded for planning.",
			},
		),
		stateFilesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sequencer_state_files_written_total",
				Help: "State files written after a build.",
			},
		),
		waves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sequencer_last_plan_waves",
				Help: "Number of waves in the last plan.",
			},
		),
		planDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sequencer_plan_duration_seconds",
				Help:    "Time taken to create a plan.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	r.Registry.MustRegister(
		r.plansTotal,
		r.projectsTotal,
		r.buildReasonsTotal,
		r.stateFilesLoaded,
		r.stateFilesWritten,
		r.waves,
		r.planDuration,
	)
	return r
}

// ObservePlan records a successful plan.
func (r *Recorder) ObservePlan(waves int, projects []*model.ConfiguredProject, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.plansTotal.WithLabelValues("ok").Inc()
	r.waves.Set(float64(waves))
	r.planDuration.Observe(elapsed.Seconds())
	for _, p := range projects {
		if !p.RequiresBuilding() {
			r.projectsTotal.WithLabelValues("restore").Inc()
			continue
		}
		r.projectsTotal.WithLabelValues("build").Inc()
		r.buildReasonsTotal.WithLabelValues(p.Reason().String()).Inc()
	}
}

// PlanFailed records a plan that returned an error.
func (r *Recorder) PlanFailed() {
	if r == nil {
		return
	}
	r.plansTotal.WithLabelValues("error").Inc()
}

// StateFilesLoaded adds n loaded state files.
func (r *Recorder) StateFilesLoaded(n int) {
	if r == nil {
		return
	}
	r.stateFilesLoaded.Add(float64(n))
}

// StateFilesWritten adds n written state files.
func (r *Recorder) StateFilesWritten(n int) {
	if r == nil {
		return
	}
	r.stateFilesWritten.Add(float64(n))
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}
