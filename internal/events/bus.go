// Package events provides per-session ordered fan-out of session events.
package events

import (
	"strings"
	"sync"
	"time"

	"github.com/udovin/algo/btree"
)

// EventType represents kind of event.
type EventType string

const (
	ParticipantJoined   EventType = "participant_joined"
	ParticipantLeft     EventType = "participant_left"
	ReadyStatus         EventType = "ready_status"
	SessionStarted      EventType = "session_started"
	SubmissionResult    EventType = "submission_result"
	SessionEnd          EventType = "session_end"
	SessionCancelled    EventType = "session_cancelled"
	TournamentStarted   EventType = "tournament_started"
	TournamentRound     EventType = "tournament_round"
	TournamentCompleted EventType = "tournament_completed"
	TournamentCancelled EventType = "tournament_cancelled"
	MatchCompleted      EventType = "match_completed"
)

// IsFinal returns true if no more events follow event of this type
// in the same stream.
func (t EventType) IsFinal() bool {
	switch t {
	case SessionEnd, SessionCancelled, TournamentCompleted, TournamentCancelled:
		return true
	default:
		return false
	}
}

// Event represents event published to observers of session.
type Event struct {
	// SessionID contains ID of session or tournament.
	SessionID string `json:"session_id"`
	// Seq contains position of event in session stream.
	Seq     int64     `json:"seq"`
	Type    EventType `json:"type"`
	Time    int64     `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// Sink represents external transport of events.
//
// Sink is called in order of events within one session and should not block.
type Sink interface {
	Send(event Event)
}

// Bus delivers events to subscribers of session.
//
// Events of one session are delivered to every subscriber in order of
// publishing. Delivery is at-most-once: when subscriber buffer is full
// event is dropped for that subscriber.
type Bus struct {
	mutex  sync.Mutex
	topics btree.Map[string, *topic]
	sinks  []Sink
	buffer int
	now    func() time.Time
}

// NewBus creates a new instance of Bus.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		topics: btree.NewMap[string, *topic](lessString),
		buffer: buffer,
		now:    time.Now,
	}
}

func lessString(a, b string) bool {
	return strings.Compare(a, b) < 0
}

// SetClock sets function that returns current time.
func (b *Bus) SetClock(now func() time.Time) {
	b.now = now
}

// AddSink registers external transport.
func (b *Bus) AddSink(sink Sink) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sinks = append(b.sinks, sink)
}

func (b *Bus) getTopic(sessionID string) *topic {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if t, ok := b.topics.Get(sessionID); ok {
		return t
	}
	t := &topic{subscribers: map[int64]*Subscription{}}
	b.topics.Set(sessionID, t)
	return t
}

// Publish publishes event to all current observers of session.
func (b *Bus) Publish(sessionID string, kind EventType, payload any) Event {
	t := b.getTopic(sessionID)
	b.mutex.Lock()
	sinks := b.sinks
	b.mutex.Unlock()
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.seq++
	event := Event{
		SessionID: sessionID,
		Seq:       t.seq,
		Type:      kind,
		Time:      b.now().Unix(),
		Payload:   payload,
	}
	for _, sub := range t.subscribers {
		select {
		case sub.events <- event:
		default:
			sub.dropped++
		}
	}
	for _, sink := range sinks {
		sink.Send(event)
	}
	return event
}

// Subscribe creates subscription to events of session.
func (b *Bus) Subscribe(sessionID string) *Subscription {
	t := b.getTopic(sessionID)
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.nextID++
	sub := &Subscription{
		events: make(chan Event, b.buffer),
		topic:  t,
		id:     t.nextID,
	}
	t.subscribers[sub.id] = sub
	return sub
}

// Forget closes all subscriptions of session and releases its stream.
//
// Should be called when no more events will be published for session.
func (b *Bus) Forget(sessionID string) {
	b.mutex.Lock()
	t, ok := b.topics.Get(sessionID)
	if ok {
		b.topics.Delete(sessionID)
	}
	b.mutex.Unlock()
	if !ok {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for id, sub := range t.subscribers {
		close(sub.events)
		delete(t.subscribers, id)
	}
}

// Topics returns amount of sessions with live streams.
func (b *Bus) Topics() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	count := 0
	iter := b.topics.Iter()
	for iter.Next() {
		count++
	}
	return count
}

type topic struct {
	mutex       sync.Mutex
	seq         int64
	nextID      int64
	subscribers map[int64]*Subscription
}

// Subscription represents observer of session events.
type Subscription struct {
	events  chan Event
	topic   *topic
	id      int64
	dropped int64
}

// Events returns channel of events.
//
// Channel is closed when subscription or session stream is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Dropped returns amount of events dropped because of full buffer.
func (s *Subscription) Dropped() int64 {
	s.topic.mutex.Lock()
	defer s.topic.mutex.Unlock()
	return s.dropped
}

// Close stops delivery of events to subscription.
func (s *Subscription) Close() {
	s.topic.mutex.Lock()
	defer s.topic.mutex.Unlock()
	if _, ok := s.topic.subscribers[s.id]; ok {
		delete(s.topic.subscribers, s.id)
		close(s.events)
	}
}
