package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFeed_BroadcastReachesSubscribers(t *testing.T) {
	t.Parallel()

	f := NewFeed(quietLogger())
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	f.Subscribe(a)
	f.Subscribe(b)

	if n := f.Broadcast(TypeBugCreated, map[string]string{"id": "bug-1"}); n != 2 {
		t.Fatalf("delivered=%d want 2", n)
	}

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.Send:
			if env.V != Version || env.Type != TypeBugCreated || len(env.ID) != 26 || env.TS.IsZero() {
				t.Fatalf("unexpected envelope: %+v", env)
			}
			var p map[string]string
			if err := json.Unmarshal(env.Payload, &p); err != nil || p["id"] != "bug-1" {
				t.Fatalf("payload=%s err=%v", env.Payload, err)
			}
		default:
			t.Fatalf("client %s got nothing", c.SessionID)
		}
	}
}

func TestFeed_BroadcastNeverBlocks(t *testing.T) {
	t.Parallel()

	f := NewFeed(quietLogger())
	slow := NewClient("slow", 1)
	f.Subscribe(slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			f.Broadcast(TypeBugUpdated, map[string]int{"i": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Broadcast blocked on a full subscriber queue")
	}
	if len(slow.Send) != 1 {
		t.Fatalf("expected exactly one queued event, got %d", len(slow.Send))
	}
}

func TestFeed_UnsubscribeClosesClient(t *testing.T) {
	t.Parallel()

	f := NewFeed(quietLogger())
	c := NewClient("gone", 4)
	f.Subscribe(c)
	f.Unsubscribe("gone")

	select {
	case <-c.Done():
	default:
		t.Fatalf("expected client to be closed")
	}
	if f.Subscribers() != 0 {
		t.Fatalf("subscribers=%d", f.Subscribers())
	}
	if n := f.Broadcast(TypeBugDeleted, nil); n != 0 {
		t.Fatalf("delivered=%d after unsubscribe", n)
	}
}

func TestFeed_ConcurrentSubscribeAndBroadcast(t *testing.T) {
	t.Parallel()

	f := NewFeed(quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			f.Subscribe(NewClient(id, 2))
			f.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			f.Broadcast(TypeBugCreated, nil)
		}()
	}
	wg.Wait()
}
