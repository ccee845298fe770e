package event

import (
	"errors"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/katatrina/auction-engine/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	topicShardCount   = 32
	defaultBufferSize = 64
)

var ErrUnknownConnection = errors.New("unknown connection")

// Conn is one live subscriber connection. Events are buffered; a full buffer drops events
// for this connection only.
type Conn struct {
	ID string

	mu     sync.Mutex
	events chan Event
	topics map[string]struct{}
	closed bool
}

// Events returns the stream of events delivered to the connection.
// The channel is closed when the connection is removed from the hub.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Topics returns the groups the connection currently belongs to.
func (c *Conn) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	topics := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	return topics
}

func (c *Conn) deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

type topicShard struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Conn
}

// Hub keeps group memberships of live connections and fans events out to them.
// Groups are spread over shards so that unrelated groups do not share a lock.
type Hub struct {
	bufferSize int

	connsMu sync.RWMutex
	conns   map[string]*Conn

	shards [topicShardCount]*topicShard
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	hub := &Hub{
		bufferSize: bufferSize,
		conns:      make(map[string]*Conn),
	}
	for i := range hub.shards {
		hub.shards[i] = &topicShard{groups: make(map[string]map[string]*Conn)}
	}
	return hub
}

func (h *Hub) shardFor(topic string) *topicShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(topic))
	return h.shards[hasher.Sum32()%topicShardCount]
}

// Connect registers a new connection with a generated id.
func (h *Hub) Connect() *Conn {
	conn := &Conn{
		ID:     uuid.NewString(),
		events: make(chan Event, h.bufferSize),
		topics: make(map[string]struct{}),
	}

	h.connsMu.Lock()
	h.conns[conn.ID] = conn
	total := len(h.conns)
	h.connsMu.Unlock()

	metrics.LiveConnections.Inc()
	log.Debug().Str("connection_id", conn.ID).Int("total", total).Msg("connection registered")
	return conn
}

// Disconnect drops every membership of the connection and closes its event stream.
// Unknown ids are ignored.
func (h *Hub) Disconnect(connID string) {
	h.connsMu.Lock()
	conn, ok := h.conns[connID]
	delete(h.conns, connID)
	h.connsMu.Unlock()
	if !ok {
		return
	}

	conn.mu.Lock()
	conn.closed = true
	topics := conn.topics
	conn.topics = make(map[string]struct{})
	close(conn.events)
	conn.mu.Unlock()

	for topic := range topics {
		h.removeMember(topic, connID)
	}

	metrics.LiveConnections.Dec()
	log.Debug().Str("connection_id", connID).Int("groups", len(topics)).Msg("connection unregistered")
}

// Join adds the connection to a group. Joining a group twice is a no-op.
func (h *Hub) Join(connID, topic string) error {
	h.connsMu.RLock()
	conn, ok := h.conns[connID]
	h.connsMu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}

	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return ErrUnknownConnection
	}
	conn.topics[topic] = struct{}{}
	conn.mu.Unlock()

	shard := h.shardFor(topic)
	shard.mu.Lock()
	members, ok := shard.groups[topic]
	if !ok {
		members = make(map[string]*Conn)
		shard.groups[topic] = members
	}
	members[connID] = conn
	shard.mu.Unlock()

	// Disconnect may have run between the two critical sections.
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if closed {
		h.removeMember(topic, connID)
		return ErrUnknownConnection
	}

	return nil
}

// Leave removes the connection from a group. Leaving a group it never joined is a no-op.
func (h *Hub) Leave(connID, topic string) {
	h.connsMu.RLock()
	conn, ok := h.conns[connID]
	h.connsMu.RUnlock()
	if ok {
		conn.mu.Lock()
		delete(conn.topics, topic)
		conn.mu.Unlock()
	}

	h.removeMember(topic, connID)
}

func (h *Hub) removeMember(topic, connID string) {
	shard := h.shardFor(topic)
	shard.mu.Lock()
	if members, ok := shard.groups[topic]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(shard.groups, topic)
		}
	}
	shard.mu.Unlock()
}

// Publish delivers an event to every connection currently in the group and returns
// the number of connections that accepted it. An empty group is not an error.
func (h *Hub) Publish(topic, eventType string, args ...any) int {
	return h.publish(Event{Topic: topic, Type: eventType, Args: args})
}

// Broadcast delivers an event to every live connection regardless of group.
func (h *Hub) Broadcast(eventType string, args ...any) int {
	return h.broadcast(Event{Type: eventType, Args: args})
}

// Send implements EventSender.
func (h *Hub) Send(ev Event) {
	if ev.Topic == "" {
		h.broadcast(ev)
		return
	}
	h.publish(ev)
}

func (h *Hub) publish(ev Event) int {
	shard := h.shardFor(ev.Topic)
	shard.mu.RLock()
	members := make([]*Conn, 0, len(shard.groups[ev.Topic]))
	for _, conn := range shard.groups[ev.Topic] {
		members = append(members, conn)
	}
	shard.mu.RUnlock()

	return h.deliverAll(ev, members)
}

func (h *Hub) broadcast(ev Event) int {
	h.connsMu.RLock()
	members := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		members = append(members, conn)
	}
	h.connsMu.RUnlock()

	return h.deliverAll(ev, members)
}

func (h *Hub) deliverAll(ev Event, members []*Conn) int {
	metrics.EventsPublished.WithLabelValues(ev.Type).Inc()

	delivered := 0
	for _, conn := range members {
		if conn.deliver(ev) {
			delivered++
			continue
		}
		metrics.DeliveriesDropped.Inc()
		log.Debug().Str("connection_id", conn.ID).Str("topic", ev.Topic).Str("event", ev.Type).
			Msg("event dropped for slow or closed connection")
	}

	return delivered
}

// GroupSize returns the number of connections in a group.
func (h *Hub) GroupSize(topic string) int {
	shard := h.shardFor(topic)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	return len(shard.groups[topic])
}
