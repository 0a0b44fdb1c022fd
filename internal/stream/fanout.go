package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sellerscope/arbscan/internal/domain"
)

// EventsChannel is the bus channel scan event frames are published on.
const EventsChannel = "scan:events"

// Fanout delivers each event to every sink in order. Sinks are expected to
// absorb their own delivery failures.
type Fanout struct {
	sinks []domain.EventSink
}

// NewFanout creates a Fanout over the given sinks. Nil sinks are skipped.
func NewFanout(sinks ...domain.EventSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Progress implements domain.EventSink.
func (f *Fanout) Progress(p domain.ProgressPayload) {
	for _, s := range f.sinks {
		s.Progress(p)
	}
}

// Opportunity implements domain.EventSink.
func (f *Fanout) Opportunity(o domain.Opportunity) {
	for _, s := range f.sinks {
		s.Opportunity(o)
	}
}

// Complete implements domain.EventSink.
func (f *Fanout) Complete(c domain.CompletePayload) {
	for _, s := range f.sinks {
		s.Complete(c)
	}
}

// Error implements domain.EventSink.
func (f *Fanout) Error(e domain.ErrorPayload) {
	for _, s := range f.sinks {
		s.Error(e)
	}
}

// Gone reports whether any disconnect-aware sink has lost its consumer. The
// bus sink never disconnects, so this surfaces the caller-facing stream
// state through a fanout.
func (f *Fanout) Gone() bool {
	for _, s := range f.sinks {
		if da, ok := s.(interface{ Gone() bool }); ok && da.Gone() {
			return true
		}
	}
	return false
}

// BusSink republishes serialized event frames on a SignalBus channel so
// dashboard watchers see the same stream the scan caller does. Publish
// failures are logged and dropped.
type BusSink struct {
	bus    domain.SignalBus
	ctx    context.Context
	logger *slog.Logger
}

// NewBusSink creates a BusSink publishing on EventsChannel. ctx bounds the
// publishes; pass the application context, not a request context.
func NewBusSink(ctx context.Context, bus domain.SignalBus, logger *slog.Logger) *BusSink {
	return &BusSink{
		bus:    bus,
		ctx:    ctx,
		logger: logger.With(slog.String("component", "stream")),
	}
}

func (b *BusSink) publish(ev domain.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("marshal bus frame failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := b.bus.Publish(b.ctx, EventsChannel, frame); err != nil {
		b.logger.Warn("bus publish failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// Progress implements domain.EventSink.
func (b *BusSink) Progress(p domain.ProgressPayload) {
	b.publish(domain.Event{Type: domain.EventProgress, Data: p})
}

// Opportunity implements domain.EventSink.
func (b *BusSink) Opportunity(o domain.Opportunity) {
	b.publish(domain.Event{Type: domain.EventOpportunity, Data: o})
}

// Complete implements domain.EventSink.
func (b *BusSink) Complete(c domain.CompletePayload) {
	b.publish(domain.Event{Type: domain.EventComplete, Data: c})
}

// Error implements domain.EventSink.
func (b *BusSink) Error(e domain.ErrorPayload) {
	b.publish(domain.Event{Type: domain.EventError, Data: e})
}

var (
	_ domain.EventSink = (*Fanout)(nil)
	_ domain.EventSink = (*BusSink)(nil)
)
