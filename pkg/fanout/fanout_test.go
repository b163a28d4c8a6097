package fanout

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/queuesync/queuesync-go/pkg/topic"
)

var note = topic.Notification{SiteKey: "site-1", RoomKey: "room-1"}

func TestDeliverInRegistrationOrder(t *testing.T) {
	f := New(nil)
	var order []int
	for i := 1; i <= 5; i++ {
		i := i
		f.Add(func(topic.Notification) { order = append(order, i) })
	}

	if n := f.Deliver(note); n != 5 {
		t.Errorf("Deliver() = %d, want 5", n)
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("order = %v, want 1..5", order)
		}
	}
}

func TestHandleRemove(t *testing.T) {
	f := New(nil)
	calls := 0
	h := f.Add(func(topic.Notification) { calls++ })

	f.Deliver(note)
	h.Remove()
	h.Remove()
	f.Deliver(note)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}

func TestRemoveFromInsideCallback(t *testing.T) {
	f := New(nil)
	calls := 0
	var h *Handle
	h = f.Add(func(topic.Notification) {
		calls++
		h.Remove()
	})

	f.Deliver(note)
	f.Deliver(note)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRemoveLaterListenerDuringDelivery(t *testing.T) {
	f := New(nil)
	var second *Handle
	secondCalls := 0

	f.Add(func(topic.Notification) { second.Remove() })
	second = f.Add(func(topic.Notification) { secondCalls++ })

	if n := f.Deliver(note); n != 1 {
		t.Errorf("Deliver() = %d, want 1", n)
	}
	if secondCalls != 0 {
		t.Errorf("removed listener invoked %d times", secondCalls)
	}
}

func TestAddDuringDeliveryNotInvoked(t *testing.T) {
	f := New(nil)
	lateCalls := 0
	f.Add(func(topic.Notification) {
		f.Add(func(topic.Notification) { lateCalls++ })
	})

	f.Deliver(note)
	if lateCalls != 0 {
		t.Errorf("listener added during delivery invoked %d times", lateCalls)
	}
	f.Deliver(note)
	if lateCalls != 1 {
		t.Errorf("lateCalls = %d, want 1", lateCalls)
	}
}

func TestPanickingListenerIsolated(t *testing.T) {
	var buf bytes.Buffer
	f := New(slog.New(slog.NewTextHandler(&buf, nil)))

	got := 0
	f.Add(func(topic.Notification) { panic("boom") })
	f.Add(func(topic.Notification) { got++ })

	if n := f.Deliver(note); n != 1 {
		t.Errorf("Deliver() = %d, want 1", n)
	}
	if got != 1 {
		t.Errorf("second listener calls = %d, want 1", got)
	}
	if !strings.Contains(buf.String(), "listener panicked") {
		t.Errorf("panic not logged: %q", buf.String())
	}
}

func TestHandleIDsIncrease(t *testing.T) {
	f := New(nil)
	a := f.Add(func(topic.Notification) {})
	b := f.Add(func(topic.Notification) {})
	a.Remove()
	c := f.Add(func(topic.Notification) {})

	if !(a.ID() < b.ID() && b.ID() < c.ID()) {
		t.Errorf("ids = %d, %d, %d; want strictly increasing", a.ID(), b.ID(), c.ID())
	}
}

func TestConcurrentAddRemoveDeliver(t *testing.T) {
	f := New(nil)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h := f.Add(func(topic.Notification) {})
				h.Remove()
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f.Deliver(note)
			}
		}()
	}
	wg.Wait()

	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}
