package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/avantix/internal/domain"
)

// Metrics — Prometheus метрики выполнения flow.
//
// Реализует engine.Sink: подключается к engine или controller
// как обычный получатель событий.
type Metrics struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
}

// NewMetrics регистрирует метрики в reg. nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		runsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "avantix_runs_started_total",
			Help: "Total number of started flow runs",
		}),
		runsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "avantix_runs_finished_total",
			Help: "Total number of finished flow runs by final status",
		}, []string{"status"}),
		runsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "avantix_runs_active",
			Help: "Number of flow runs currently executing",
		}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "avantix_steps_total",
			Help: "Total number of executed steps by action and result",
		}, []string{"action", "result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avantix_step_duration_seconds",
			Help:    "Step execution duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Emit обновляет метрики по событию run.
func (m *Metrics) Emit(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventRunStarted:
		m.runsStarted.Inc()
		m.runsActive.Inc()

	case domain.EventStepSucceeded:
		m.steps.WithLabelValues(ev.ActionID, "succeeded").Inc()
		m.stepDuration.WithLabelValues(ev.ActionID).Observe(ev.Duration.Seconds())

	case domain.EventStepFailed:
		m.steps.WithLabelValues(ev.ActionID, "failed").Inc()
		if ev.Duration > 0 {
			m.stepDuration.WithLabelValues(ev.ActionID).Observe(ev.Duration.Seconds())
		}

	case domain.EventRunCompleted:
		m.finish(domain.RunStatusCompleted)

	case domain.EventRunStopped:
		m.finish(domain.RunStatusStopped)

	case domain.EventRunFailed:
		// Ошибка конфигурации приходит без run.started
		if ev.StepIndex == 0 {
			m.runsFinished.WithLabelValues(string(domain.RunStatusFailed)).Inc()
			return
		}
		m.finish(domain.RunStatusFailed)
	}
}

func (m *Metrics) finish(status domain.RunStatus) {
	m.runsActive.Dec()
	m.runsFinished.WithLabelValues(string(status)).Inc()
}
