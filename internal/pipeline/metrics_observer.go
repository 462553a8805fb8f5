// Package pipeline — metrics_observer.go
//
// metricsObserver feeds escalation transitions into the Prometheus
// counters defined in internal/observability, keeping instrumentation out
// of the Machine itself (the Machine has no notion of metrics — it only
// knows its three capability interfaces, per internal/escalation/
// events.go).
package pipeline

import (
	"github.com/kionce57/falldetect/internal/escalation"
	"github.com/kionce57/falldetect/internal/observability"
)

type metricsObserver struct {
	metrics *observability.Metrics
}

func newMetricsObserver(m *observability.Metrics) *metricsObserver {
	return &metricsObserver{metrics: m}
}

func (o *metricsObserver) OnSuspected(e escalation.SuspectedEvent) error {
	o.metrics.StateTransitionsTotal.WithLabelValues("normal", "suspected").Inc()
	return nil
}

func (o *metricsObserver) OnFall(e escalation.FallEvent) error {
	if e.Renotification {
		o.metrics.RenotificationsTotal.Inc()
		return nil
	}
	o.metrics.StateTransitionsTotal.WithLabelValues("suspected", "confirmed").Inc()
	o.metrics.FallsConfirmedTotal.Inc()
	return nil
}

func (o *metricsObserver) OnRecovered(e escalation.RecoveredEvent) error {
	o.metrics.StateTransitionsTotal.WithLabelValues("confirmed", "normal").Inc()
	return nil
}
