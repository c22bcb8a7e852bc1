package output

import (
	"strings"
	"sync"
)

// Chunk is one unit of live output in production order
type Chunk struct {
	Seq      int    `json:"seq"`
	Text     string `json:"text"`
	IsStderr bool   `json:"is_stderr,omitempty"`
}

// Sink receives live chunks. It is called in production order and must not
// write back into the streamer that calls it.
type Sink func(Chunk)

// Streamer feeds one tool execution's output to a live sink and an
// accumulation buffer. Truncation happens once, in Finalize, on the buffer copy.
// Writes after Finalize are dropped so an abandoned tool cannot reach the
// observer after its terminal event.
type Streamer struct {
	mu        sync.Mutex
	sink      Sink
	limits    Limits
	buf       strings.Builder
	seq       int
	finalized *Result
}

// NewStreamer creates a streamer. A nil sink only accumulates.
func NewStreamer(sink Sink, limits Limits) *Streamer {
	return &Streamer{sink: sink, limits: limits}
}

// WriteChunk records text as one chunk. Empty text is ignored.
func (s *Streamer) WriteChunk(text string, isStderr bool) {
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized != nil {
		return
	}
	s.buf.WriteString(text)
	s.seq++
	if s.sink != nil {
		s.sink(Chunk{Seq: s.seq, Text: text, IsStderr: isStderr})
	}
}

// Write implements io.Writer for stdout
func (s *Streamer) Write(p []byte) (int, error) {
	s.WriteChunk(string(p), false)
	return len(p), nil
}

// Stderr returns an io.Writer that marks its chunks as stderr
func (s *Streamer) Stderr() *StderrWriter {
	return &StderrWriter{s: s}
}

// StderrWriter adapts a Streamer for a process stderr pipe
type StderrWriter struct {
	s *Streamer
}

func (w *StderrWriter) Write(p []byte) (int, error) {
	w.s.WriteChunk(string(p), true)
	return len(p), nil
}

// Partial returns everything accumulated so far, untruncated.
func (s *Streamer) Partial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Chunks returns how many chunks were delivered
func (s *Streamer) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Finalize truncates the accumulated buffer for the model and seals the
// streamer. Later calls return the first result.
func (s *Streamer) Finalize() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized == nil {
		r := Truncate(s.buf.String(), s.limits)
		s.finalized = &r
	}
	return *s.finalized
}
