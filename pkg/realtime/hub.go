// Package realtime is the in-process topic hub replacing the BaaS
// pub/sub channel: row-change events and ephemeral typing indicators
// fan out to per-topic subscriber streams.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/models"
)

// EventType is the change kind carried on a topic.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventTyping is ephemeral: broadcast to current subscribers and
	// never persisted.
	EventTyping EventType = "TYPING"
)

// Event is one message on a topic stream.
type Event struct {
	Topic   string          `json:"topic"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// Topic naming, one stream per entity scope.

func CommentsTopic(entityType models.EntityType, entityID string) string {
	return fmt.Sprintf("comments:%s:%s", entityType, entityID)
}

func MentionsTopic(workspaceID string) string {
	return fmt.Sprintf("mentions:%s", workspaceID)
}

func TasksTopic(workspaceID string) string {
	return fmt.Sprintf("tasks:%s", workspaceID)
}

// defaultBuffer is each subscriber's queue depth before drops start.
const defaultBuffer = 32

// Hub fans events out to topic subscribers. Delivery is best-effort
// last-write-wins: a subscriber that stops draining its channel loses
// events rather than blocking publishers, mirroring how the hosted
// realtime channel behaves. Clients re-fetch on reconnect.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription is one subscriber's stream on a single topic.
type Subscription struct {
	topic string
	ch    chan Event
	hub   *Hub
	once  sync.Once
}

// C is the event stream. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close detaches the subscription and closes its stream.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Subscribe opens a buffered stream on topic.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, defaultBuffer),
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.topic]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.topic)
	}
}

// Publish delivers an event to every current subscriber of the topic.
// Slow subscribers are skipped, never waited on.
func (h *Hub) Publish(topic string, eventType EventType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to encode realtime payload")
		return
	}
	ev := Event{
		Topic:   topic,
		Type:    eventType,
		Payload: raw,
		At:      time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			log.Debug().Str("topic", topic).Msg("dropping event for slow subscriber")
		}
	}
}

// SubscriberCount reports how many streams a topic currently has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
