package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []Message
	failOn   string
	notify   chan Message
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan Message, 64)}
}

func (r *recordingSink) Send(msg Message) error {
	if r.failOn != "" && msg.Event == r.failOn {
		return errors.New("broken pipe")
	}
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	select {
	case r.notify <- msg:
	default:
	}
	return nil
}

func (r *recordingSink) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-r.notify:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestServe_ConnectHistoryLive(t *testing.T) {
	store := NewStore(10, nil)
	for i := 1; i <= 7; i++ {
		store.AddEvent(event(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := newRecordingSink()
	done := make(chan error, 1)
	go func() {
		done <- store.Serve(ctx, NewClient("sse-1", 8), sink, StreamOptions{Heartbeat: time.Hour})
	}()

	connected := sink.next(t)
	assert.Equal(t, "connected", connected.Event)
	assert.JSONEq(t, `{"clientId":"sse-1"}`, string(connected.Data))

	history := sink.next(t)
	assert.Equal(t, "history", history.Event)
	var body struct {
		Events []CTIEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(history.Data, &body))
	assert.Equal(t, []string{"e7", "e6", "e5", "e4", "e3"}, ids(body.Events))

	store.AddEvent(event(8))
	live := sink.next(t)
	assert.Equal(t, "cti-event", live.Event)
	assert.Contains(t, string(live.Data), `"id":"e8"`)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, store.HasClient("sse-1"), "client deregistered on disconnect")
}

func TestServe_Heartbeat(t *testing.T) {
	store := NewStore(10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	sink := newRecordingSink()
	go store.Serve(ctx, NewClient("hb", 8), sink, StreamOptions{
		Heartbeat: 10 * time.Millisecond,
		Now:       func() time.Time { return fixed },
	})

	sink.next(t) // connected
	sink.next(t) // history
	hb := sink.next(t)
	assert.Equal(t, "heartbeat", hb.Event)
	assert.JSONEq(t, `{"timestamp":"2024-03-01T09:00:00Z"}`, string(hb.Data))
}

func TestServe_FailedWriteDropsClient(t *testing.T) {
	store := NewStore(10, nil)
	sink := newRecordingSink()
	sink.failOn = "cti-event"

	done := make(chan error, 1)
	go func() {
		done <- store.Serve(context.Background(), NewClient("bad", 8), sink, StreamOptions{Heartbeat: time.Hour})
	}()
	sink.next(t)
	sink.next(t)

	store.AddEvent(event(1))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after failed write")
	}
	assert.False(t, store.HasClient("bad"))

	// Later events are not delivered to the removed client
	store.AddEvent(event(2))
	assert.Equal(t, 0, store.ClientCount())
}

func TestServe_DuplicateClientID(t *testing.T) {
	store := NewStore(10, nil)
	store.AddClient(NewClient("dup", 1))

	err := store.Serve(context.Background(), NewClient("dup", 1), newRecordingSink(), StreamOptions{})
	assert.Error(t, err)
	assert.True(t, store.HasClient("dup"), "existing client untouched")
}

func TestServe_ReturnsWhenDroppedAsSlow(t *testing.T) {
	store := NewStore(10, nil)
	client := NewClient("slow", 1)
	blocked := make(chan struct{})
	sink := &blockingSink{release: blocked, started: make(chan struct{}, 8)}

	done := make(chan error, 1)
	go func() {
		done <- store.Serve(context.Background(), client, sink, StreamOptions{Heartbeat: time.Hour})
	}()

	<-sink.started // connected is blocked in Send
	for i := 0; i < 3; i++ {
		store.AddEvent(event(i))
	}
	assert.False(t, store.HasClient("slow"))
	close(blocked)

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrClientDropped) || err == nil)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

type blockingSink struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingSink) Send(msg Message) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.Send(Message{Event: "connected", Data: []byte(`{"clientId":"x"}`)}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{"event: connected", `data: {"clientId":"x"}`, ""}, lines)
}

type noFlushWriter struct{ http.ResponseWriter }

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(noFlushWriter{httptest.NewRecorder()})
	assert.Error(t, err)
}
