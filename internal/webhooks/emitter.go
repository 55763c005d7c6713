package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/splitpay/internal/idgen"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitpay",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	webhookEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitpay",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(webhookEmitTotal, webhookEmitErrors)
}

// Emitter wraps a Dispatcher to emit payment link lifecycle events.
// All methods are fire-and-forget: errors are logged but never returned,
// and emission order within one settlement is preserved.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{d: d, logger: logger}
}

func (e *Emitter) emit(eventType EventType, data map[string]interface{}) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.d.Dispatch(ctx, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("webhook emit failed", "event", eventType, "error", err)
	}
}

// EmitCreatedPaymentLink emits a createdPaymentLink event.
func (e *Emitter) EmitCreatedPaymentLink(paymentID, creator string) {
	e.emit(EventCreatedPaymentLink, map[string]interface{}{
		"paymentId": paymentID,
		"creator":   creator,
	})
}

// EmitIndividualPaymentCompleted emits an individualPaymentCompleted event
// for one destination payout within a settlement.
func (e *Emitter) EmitIndividualPaymentCompleted(paymentID, from, destination, amount string) {
	e.emit(EventIndividualPaymentCompleted, map[string]interface{}{
		"paymentId":   paymentID,
		"from":        from,
		"destination": destination,
		"amount":      amount,
	})
}

// EmitCompletedPayment emits a completedPayment event.
func (e *Emitter) EmitCompletedPayment(paymentID string) {
	e.emit(EventCompletedPayment, map[string]interface{}{
		"paymentId": paymentID,
	})
}

// EmitCancelledPayment emits a cancelledPayment event.
func (e *Emitter) EmitCancelledPayment(paymentID string) {
	e.emit(EventCancelledPayment, map[string]interface{}{
		"paymentId": paymentID,
	})
}
