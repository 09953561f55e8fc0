package server

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
)

// sseWriter frames JSON payloads as server-sent events and flushes each
// one immediately so clients see deltas as they arrive.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter writes the event-stream headers and returns a writer. It
// fails when the underlying ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, eris.New("server: response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// Send marshals v and writes one `data:` frame.
func (s *sseWriter) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "server: marshal sse event")
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return eris.Wrap(err, "server: write sse event")
	}
	if _, err := s.w.Write(payload); err != nil {
		return eris.Wrap(err, "server: write sse event")
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return eris.Wrap(err, "server: write sse event")
	}
	s.flusher.Flush()
	return nil
}
