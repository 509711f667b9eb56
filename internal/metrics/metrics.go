package metrics

import (
	"github.com/mavleo96/rocket/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rocket"

// Metrics holds the collectors of a run. A nil *Metrics ignores every call.
type Metrics struct {
	packets          *prometheus.CounterVec
	dispatchRate     prometheus.Gauge
	queueLength      prometheus.Gauge
	validatedLedgers prometheus.Counter
	iterations       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Processed packets by message type and decision",
		}, []string{"message_type", "decision"}),
		dispatchRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_rate",
			Help:      "Current release rate of the priority dispatcher in events per second",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_length",
			Help:      "Packets waiting in the priority dispatcher",
		}),
		validatedLedgers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validated_ledgers_total",
			Help:      "Ledgers validated by the whole network",
		}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Finished iterations by outcome",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.packets, m.dispatchRate, m.queueLength, m.validatedLedgers, m.iterations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decisionLabel(action models.Action, sendAmount uint32) string {
	switch {
	case action == models.ActionDrop || sendAmount == 0:
		return "drop"
	case action == models.ActionSend && sendAmount > 1:
		return "replay"
	case action == models.ActionSend:
		return "send"
	}
	return "delay"
}

// ObservePacket counts one processed packet
func (m *Metrics) ObservePacket(messageType string, action models.Action, sendAmount uint32) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(messageType, decisionLabel(action, sendAmount)).Inc()
}

// ObserveDispatch records the dispatcher state
func (m *Metrics) ObserveDispatch(rate float64, queueLen int) {
	if m == nil {
		return
	}
	m.dispatchRate.Set(rate)
	m.queueLength.Set(float64(queueLen))
}

// LedgerValidated counts a validated ledger
func (m *Metrics) LedgerValidated() {
	if m == nil {
		return
	}
	m.validatedLedgers.Inc()
}

// IterationFinished counts a finished iteration
func (m *Metrics) IterationFinished(outcome string) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(outcome).Inc()
}
