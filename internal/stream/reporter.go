// Package stream serializes scan events to the caller as newline-delimited
// JSON frames over a single long-lived connection.
package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sellerscope/arbscan/internal/domain"
)

// Reporter writes one frame per event to a single consumer, flushing after
// each frame when the writer supports it. The first write failure marks the
// consumer gone; every later emission is silently dropped so the producer
// can keep processing for persistence purposes.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	flush  func()
	gone   bool
	logger *slog.Logger
}

// NewReporter creates a Reporter over w. When w implements http.Flusher each
// frame is flushed immediately so events reach the caller while the scan is
// still running.
func NewReporter(w io.Writer, logger *slog.Logger) *Reporter {
	r := &Reporter{
		w:      w,
		flush:  func() {},
		logger: logger.With(slog.String("component", "stream")),
	}
	if f, ok := w.(http.Flusher); ok {
		r.flush = f.Flush
	}
	return r
}

// Gone reports whether the consumer has disconnected.
func (r *Reporter) Gone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gone
}

// MarkGone marks the consumer disconnected without attempting a write. Used
// when the transport signals the disconnect out of band.
func (r *Reporter) MarkGone() {
	r.mu.Lock()
	r.gone = true
	r.mu.Unlock()
}

func (r *Reporter) emit(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return
	}

	frame, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("marshal event frame failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return
	}
	frame = append(frame, '\n')

	if _, err := r.w.Write(frame); err != nil {
		r.gone = true
		r.logger.Info("stream consumer disconnected",
			slog.String("error", err.Error()),
		)
		return
	}
	r.flush()
}

// Progress implements domain.EventSink.
func (r *Reporter) Progress(p domain.ProgressPayload) {
	r.emit(domain.Event{Type: domain.EventProgress, Data: p})
}

// Opportunity implements domain.EventSink.
func (r *Reporter) Opportunity(o domain.Opportunity) {
	r.emit(domain.Event{Type: domain.EventOpportunity, Data: o})
}

// Complete implements domain.EventSink.
func (r *Reporter) Complete(c domain.CompletePayload) {
	r.emit(domain.Event{Type: domain.EventComplete, Data: c})
}

// Error implements domain.EventSink.
func (r *Reporter) Error(e domain.ErrorPayload) {
	r.emit(domain.Event{Type: domain.EventError, Data: e})
}

// Compile-time interface check.
var _ domain.EventSink = (*Reporter)(nil)
