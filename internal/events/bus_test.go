package events

import (
	"sync"
	"testing"
	"time"
)

type testSink struct {
	mutex  sync.Mutex
	events []Event
}

func (s *testSink) Send(event Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, event)
}

func TestBusOrder(t *testing.T) {
	bus := NewBus(128)
	bus.SetClock(func() time.Time { return time.Unix(1000, 0) })
	sink := testSink{}
	bus.AddSink(&sink)
	first := bus.Subscribe("a")
	defer first.Close()
	second := bus.Subscribe("a")
	defer second.Close()
	other := bus.Subscribe("b")
	defer other.Close()
	var waiter sync.WaitGroup
	for i := 0; i < 4; i++ {
		waiter.Add(1)
		go func() {
			defer waiter.Done()
			for j := 0; j < 10; j++ {
				bus.Publish("a", SubmissionResult, j)
			}
		}()
	}
	waiter.Wait()
	bus.Publish("b", SessionEnd, nil)
	for _, sub := range []*Subscription{first, second} {
		for i := 1; i <= 40; i++ {
			event := <-sub.Events()
			if event.Seq != int64(i) {
				t.Fatalf("Expected: %d, got: %d", i, event.Seq)
			}
			if event.Time != 1000 {
				t.Fatalf("Expected: %d, got: %d", 1000, event.Time)
			}
		}
	}
	event := <-other.Events()
	if event.Type != SessionEnd || event.Seq != 1 || event.SessionID != "b" {
		t.Fatalf("Unexpected event: %v", event)
	}
	if len(sink.events) != 41 {
		t.Fatalf("Expected: %d, got: %d", 41, len(sink.events))
	}
}

func TestBusAtMostOnce(t *testing.T) {
	bus := NewBus(2)
	sub := bus.Subscribe("a")
	defer sub.Close()
	for i := 0; i < 5; i++ {
		bus.Publish("a", ReadyStatus, i)
	}
	if v := sub.Dropped(); v != 3 {
		t.Fatalf("Expected: %d, got: %d", 3, v)
	}
	if event := <-sub.Events(); event.Seq != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, event.Seq)
	}
	// Late subscriber misses published events.
	late := bus.Subscribe("a")
	bus.Publish("a", SessionEnd, nil)
	if event := <-late.Events(); event.Seq != 6 {
		t.Fatalf("Expected: %d, got: %d", 6, event.Seq)
	}
	late.Close()
	late.Close()
}

func TestBusForget(t *testing.T) {
	bus := NewBus(0)
	sub := bus.Subscribe("a")
	bus.Subscribe("b")
	if v := bus.Topics(); v != 2 {
		t.Fatalf("Expected: %d, got: %d", 2, v)
	}
	bus.Forget("a")
	if _, ok := <-sub.Events(); ok {
		t.Fatal("Expected closed channel")
	}
	sub.Close()
	bus.Forget("a")
	if v := bus.Topics(); v != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, v)
	}
}

func TestEventTypeIsFinal(t *testing.T) {
	final := map[EventType]bool{
		SessionEnd:          true,
		SessionCancelled:    true,
		TournamentCompleted: true,
		TournamentCancelled: true,
		ParticipantJoined:   false,
		SubmissionResult:    false,
		MatchCompleted:      false,
		TournamentRound:     false,
	}
	for kind, expected := range final {
		if kind.IsFinal() != expected {
			t.Fatalf("Expected: %v, got: %v (%s)", expected, kind.IsFinal(), kind)
		}
	}
}
