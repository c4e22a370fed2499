package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrClientDropped is returned by Serve when the store removed the client
var ErrClientDropped = errors.New("stream client dropped")

const (
	DefaultHeartbeat    = 30 * time.Second
	DefaultHistoryLimit = 5
)

// Sink writes messages to one connection
type Sink interface {
	Send(msg Message) error
}

// StreamOptions controls a single Serve call
type StreamOptions struct {
	Heartbeat    time.Duration
	HistoryLimit int
	Now          func() time.Time
}

// Serve registers client, sends the connected and history messages, then relays
// heartbeats and live events to sink until ctx is done. The client is always
// deregistered and the heartbeat ticker stopped before Serve returns.
func (s *Store) Serve(ctx context.Context, client *Client, sink Sink, opts StreamOptions) error {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	history, registered := s.Subscribe(client, opts.HistoryLimit)
	if registered != client {
		return fmt.Errorf("stream client %s already connected", client.ID)
	}
	defer s.RemoveClient(client.ID)

	if err := sendJSON(sink, "connected", map[string]string{"clientId": client.ID}); err != nil {
		s.DropClient(client.ID)
		return err
	}
	if err := sendJSON(sink, "history", map[string]interface{}{"events": history}); err != nil {
		s.DropClient(client.ID)
		return err
	}

	ticker := time.NewTicker(opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return ErrClientDropped
		case <-ticker.C:
			if err := sendJSON(sink, "heartbeat", map[string]time.Time{"timestamp": opts.Now()}); err != nil {
				s.DropClient(client.ID)
				return err
			}
		case msg := <-client.Messages():
			if err := sink.Send(msg); err != nil {
				s.DropClient(client.ID)
				return err
			}
		}
	}
}

func sendJSON(sink Sink, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sink.Send(Message{Event: event, Data: data})
}

// SSEWriter formats messages as text/event-stream frames
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers on w. It fails when w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send writes one frame and flushes it
func (s *SSEWriter) Send(msg Message) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
