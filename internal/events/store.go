package events

import (
	"encoding/json"
	"sync"

	"clinic-console/internal/common/logging"
	"clinic-console/internal/metrics"
)

// DefaultCapacity is the number of recent events kept for replay
const DefaultCapacity = 100

// DefaultClientBuffer is the number of undelivered messages a client may fall behind by
const DefaultClientBuffer = 32

// Message is one server-sent event
type Message struct {
	Event string
	Data  []byte
}

// Client is a registered live stream. The store sends into its channel;
// the connection's own goroutine drains it to the wire.
type Client struct {
	ID       string
	messages chan Message
	done     chan struct{}
	once     sync.Once
}

// NewClient creates a client whose queue holds up to buffer messages
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:       id,
		messages: make(chan Message, buffer),
		done:     make(chan struct{}),
	}
}

// Messages is the channel the connection drains
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Done is closed once the client has been removed from the store
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Store keeps the most recent events newest first and fans new events out to
// every registered client. Construct one per process and share it.
type Store struct {
	mu      sync.RWMutex
	ring    []CTIEvent
	head    int // index of the next write
	size    int
	clients map[string]*Client
	metrics *metrics.Metrics
	logger  logging.Logger
}

// NewStore creates a store keeping capacity events (DefaultCapacity when <= 0)
func NewStore(capacity int, m *metrics.Metrics) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		ring:    make([]CTIEvent, capacity),
		clients: make(map[string]*Client),
		metrics: m,
		logger:  logging.Component("events"),
	}
}

// AddEvent records event, dropping the oldest past capacity, and delivers it to
// every client. Delivery never blocks: a client whose queue is full is removed.
func (s *Store) AddEvent(event CTIEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode CTI event", err, logging.String("event_id", event.ID))
		return
	}
	msg := Message{Event: "cti-event", Data: data}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.head] = event
	s.head = (s.head + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}

	for id, client := range s.clients {
		select {
		case client.messages <- msg:
		default:
			s.removeLocked(id, true)
			s.logger.Warn("dropped slow stream client", logging.String("client_id", id))
		}
	}
	s.metrics.EventBroadcast()
}

// AddClient registers client. Registering an id twice keeps the first client.
func (s *Store) AddClient(client *Client) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.clients[client.ID]; ok {
		return existing
	}
	s.clients[client.ID] = client
	s.metrics.ClientConnected()
	return client
}

// RemoveClient deregisters id; removing an unknown id is a no-op
func (s *Store) RemoveClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id, false)
}

// DropClient deregisters id after a failed write to its connection
func (s *Store) DropClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id, true)
}

func (s *Store) removeLocked(id string, dropped bool) {
	client, ok := s.clients[id]
	if !ok {
		return
	}
	delete(s.clients, id)
	client.close()
	s.metrics.ClientDisconnected(dropped)
}

// CloseClients disconnects every client so their streams end; used on shutdown
func (s *Store) CloseClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.clients)
	for id := range s.clients {
		s.removeLocked(id, false)
	}
	return n
}

// HasClient reports whether id is registered
func (s *Store) HasClient(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[id]
	return ok
}

// ClientCount returns the number of registered clients
func (s *Store) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// GetRecentEvents returns up to limit events, newest first. limit <= 0 returns all.
func (s *Store) GetRecentEvents(limit int) []CTIEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *Store) recentLocked(limit int) []CTIEvent {
	if limit <= 0 || limit > s.size {
		limit = s.size
	}

	out := make([]CTIEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.head - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}

// Subscribe registers client and returns the history it should be sent first.
// Both happen under one lock so no event is missed or repeated between them.
func (s *Store) Subscribe(client *Client, historyLimit int) ([]CTIEvent, *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.clients[client.ID]; ok {
		return s.recentLocked(historyLimit), existing
	}
	s.clients[client.ID] = client
	s.metrics.ClientConnected()
	return s.recentLocked(historyLimit), client
}
