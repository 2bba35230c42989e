// Package worker consumes engine events from the queue and fans them out to
// the notification channels. It runs as its own process so a slow or down
// Discord never blocks request handling.
package worker

import (
	"context"

	"caixa/internal/amqp"
	"caixa/internal/log"
)

// Notifier delivers one event to an external channel.
type Notifier interface {
	Send(msg *amqp.EventMessage) error
}

// Consumer reads the event stream until the context is canceled.
type Consumer interface {
	ConsumeEvents(ctx context.Context, handler func(*amqp.EventMessage) error) error
}

type Worker struct {
	consumer  Consumer
	notifiers []Notifier
	logger    *log.Logger
}

func New(consumer Consumer, logger *log.Logger, notifiers ...Notifier) *Worker {
	return &Worker{
		consumer:  consumer,
		notifiers: notifiers,
		logger:    logger.WithComponent("worker"),
	}
}

// Run blocks consuming events. A notifier failure is logged and the message
// is still acked: notifications are best-effort and never worth a redelivery
// loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "notification worker started", "notifiers", len(w.notifiers))
	return w.consumer.ConsumeEvents(ctx, func(msg *amqp.EventMessage) error {
		w.logger.InfoContext(ctx, "event received", "kind", msg.Kind)
		for _, n := range w.notifiers {
			if err := n.Send(msg); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed", "kind", msg.Kind, "error", err)
			}
		}
		return nil
	})
}
