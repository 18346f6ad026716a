// Package eventlog fans domain events out to the durable journal and to live
// observers. Events are informational, not a control channel, so sink
// failures are logged and swallowed: an operation never aborts because its
// event could not be delivered.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bolao/internal/domain"
)

// Emitter delivers events to an optional journal, an optional publisher, and
// an optional notifier. Any of the sinks may be nil.
type Emitter struct {
	journal  domain.EventJournal
	pub      domain.EventPublisher
	notifier Notifier
	logger   *slog.Logger
}

// Notifier is the subset of the notify package the emitter needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// New creates an Emitter. Nil sinks are skipped at emit time.
func New(journal domain.EventJournal, pub domain.EventPublisher, notifier Notifier, logger *slog.Logger) *Emitter {
	return &Emitter{
		journal:  journal,
		pub:      pub,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "eventlog")),
	}
}

// Emit delivers a single event to every configured sink.
func (e *Emitter) Emit(ctx context.Context, ev domain.Event) {
	if e == nil {
		return
	}

	if e.journal != nil {
		if err := e.journal.Append(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "event journal append failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.pub != nil {
		if err := e.pub.Publish(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "event publish failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.notifier != nil {
		detail, err := json.Marshal(ev.Detail)
		if err != nil {
			detail = []byte("{}")
		}
		title := fmt.Sprintf("bolao: %s", ev.Kind)
		if err := e.notifier.Notify(ctx, string(ev.Kind), title, string(detail)); err != nil {
			e.logger.WarnContext(ctx, "event notify failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// EmitAll delivers a batch of events in order.
func (e *Emitter) EmitAll(ctx context.Context, evs []domain.Event) {
	for _, ev := range evs {
		e.Emit(ctx, ev)
	}
}
