package domain

// EventType discriminates the frames sent over the scan event stream.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventOpportunity EventType = "opportunity"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one outbound stream frame: a type tag plus its payload. Frames
// are serialized as newline-delimited JSON objects.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// ProgressPayload reports where a running scan currently is.
type ProgressPayload struct {
	RunID              string `json:"run_id"`
	Step               string `json:"step"`
	Percent            int    `json:"percent"`
	ProcessedCount     int    `json:"processed_count"`
	TotalItems         int    `json:"total_items"`
	OpportunitiesFound int    `json:"opportunities_found"`
	ExcludedCount      int    `json:"excluded_count"`
}

// CompletePayload is the final frame of a successful scan.
type CompletePayload struct {
	RunID              string `json:"run_id"`
	ProcessedCount     int    `json:"processed_count"`
	OpportunitiesFound int    `json:"opportunities_found"`
	ErrorCount         int    `json:"error_count"`
	Message            string `json:"message"`
}

// ErrorPayload is the final frame of a failed scan.
type ErrorPayload struct {
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message"`
}

// EventSink consumes scan events in emission order. Implementations must not
// surface delivery failures to the producer: a sink whose consumer is gone
// drops silently, and the scan keeps running for persistence purposes.
type EventSink interface {
	Progress(p ProgressPayload)
	Opportunity(o Opportunity)
	Complete(c CompletePayload)
	Error(e ErrorPayload)
}
