package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerscope/arbscan/internal/domain"
)

type failingWriter struct {
	writes int
	failAt int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes >= w.failAt {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReporterFrameFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, testLogger())

	r.Progress(domain.ProgressPayload{ProcessedCount: 3, TotalItems: 10, Percent: 30})
	r.Complete(domain.CompletePayload{RunID: "run-1", Message: "scan complete"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &frame))
	assert.Equal(t, "progress", frame.Type)
	assert.NotEmpty(t, frame.Data)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &frame))
	assert.Equal(t, "complete", frame.Type)
}

func TestReporterGoneAfterWriteError(t *testing.T) {
	w := &failingWriter{failAt: 2}
	r := NewReporter(w, testLogger())

	r.Progress(domain.ProgressPayload{ProcessedCount: 1})
	assert.False(t, r.Gone())

	r.Progress(domain.ProgressPayload{ProcessedCount: 2})
	assert.True(t, r.Gone())

	// Later emissions are dropped without touching the writer.
	r.Progress(domain.ProgressPayload{ProcessedCount: 3})
	assert.Equal(t, 2, w.writes)
}

func TestReporterMarkGoneDropsSilently(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, testLogger())

	r.MarkGone()
	require.True(t, r.Gone())

	r.Opportunity(domain.Opportunity{ASIN: "B000TEST01"})
	assert.Zero(t, buf.Len())
}

func TestFanoutSkipsNilAndReportsGone(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, testLogger())

	f := NewFanout(r, nil)
	f.Progress(domain.ProgressPayload{ProcessedCount: 1, TotalItems: 1, Percent: 100})
	assert.Positive(t, buf.Len())
	assert.False(t, f.Gone())

	r.MarkGone()
	assert.True(t, f.Gone())
}
