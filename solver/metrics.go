package solver

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/condacore/conda-core/solver")

var (
	transitionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "condacore",
		Subsystem: "solver",
		Name:      "state_duration_seconds",
		Help:      "Time spent in each solver state machine transition.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"from", "to"})

	solvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "condacore",
		Subsystem: "solver",
		Name:      "solves_total",
		Help:      "Total solves, partitioned by terminal outcome.",
	}, []string{"outcome"})
)

// RegisterMetrics registers the solver's Prometheus collectors with reg.
// Not called automatically so that embedding applications control their
// own registry rather than relying on the global default registry
// implicitly.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{transitionDuration, solvesTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// metricsRecorder emits one OTel span event and one Prometheus
// observation per state transition during a solve.
type metricsRecorder struct {
	span trace.Span
}

func newMetricsRecorder(ctx context.Context) (context.Context, *metricsRecorder) {
	ctx, span := tracer.Start(ctx, "solver.Solve")
	return ctx, &metricsRecorder{span: span}
}

func (m *metricsRecorder) observeTransition(ctx context.Context, from, to State, d time.Duration) {
	if m == nil {
		return
	}
	transitionDuration.WithLabelValues(from.String(), to.String()).Observe(d.Seconds())
	m.span.AddEvent("state_transition", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.Int64("duration_ms", d.Milliseconds()),
	))
}

func (m *metricsRecorder) finish(outcome State) {
	if m == nil {
		return
	}
	solvesTotal.WithLabelValues(outcome.String()).Inc()
	m.span.SetAttributes(attribute.String("outcome", outcome.String()))
	m.span.End()
}
