package scheduler

import (
	"sync"

	"github.com/example/diagram-agent/internal/models"
)

// Event names, in the order guarantees of the stream: plan (or no_content)
// first, diagram/section_error in completion order, then exactly one of
// complete or error.
const (
	EventPlan         = "plan"
	EventDiagram      = "diagram"
	EventSectionError = "section_error"
	EventNoContent    = "no_content"
	EventError        = "error"
	EventComplete     = "complete"
)

// Event is one line of a run's NDJSON stream.
type Event struct {
	Event   string `json:"event"`
	RunID   string `json:"run_id"`
	Payload any    `json:"payload,omitempty"`
}

type PlanPayload struct {
	Items []models.PlanItem `json:"items"`
}

type DiagramPayload struct {
	SectionID string          `json:"section_id"`
	SegmentID string          `json:"segment_id,omitempty"`
	Artifact  models.Artifact `json:"artifact"`
}

type SectionErrorPayload struct {
	SectionID string `json:"section_id"`
	Reason    string `json:"reason"`
}

type NoContentPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// streamBuffer bounds how many events can be published ahead of the consumer.
// A run emits at most a few dozen events, so publishers never block in
// practice; ordering comes from the single channel.
const streamBuffer = 256

// Stream is the ordered event sequence of one run. One consumer per run.
type Stream struct {
	RunID string

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func newStream(runID string) *Stream {
	return &Stream{RunID: runID, ch: make(chan Event, streamBuffer)}
}

// Publish appends one event in arrival order. Events published after Close
// are dropped; the scheduler closes only after the terminal event.
func (s *Stream) Publish(name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- Event{Event: name, RunID: s.RunID, Payload: payload}
}

// Close ends the stream. Idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Events is the consumer side; the channel closes after the terminal event.
func (s *Stream) Events() <-chan Event { return s.ch }

// Hub hands out per-run streams to the scheduler and the API layer.
type Hub struct {
	mu      sync.Mutex
	streams map[string]*Stream
}

func NewHub() *Hub {
	return &Hub{streams: map[string]*Stream{}}
}

// Stream returns the stream for a run, creating it on first use.
func (h *Hub) Stream(runID string) *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[runID]
	if !ok {
		s = newStream(runID)
		h.streams[runID] = s
	}
	return s
}

// Lookup returns the stream for a run if it exists.
func (h *Hub) Lookup(runID string) (*Stream, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[runID]
	return s, ok
}

// Drop forgets a finished run's stream.
func (h *Hub) Drop(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, runID)
}
