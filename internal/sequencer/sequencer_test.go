package sequencer

import (
	"testing"

	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
)

func TestSequenceAndPublishOrdersByRecvTime(t *testing.T) {
	requests := ring.New[protocol.MEClientRequest](16)
	s := New(16, requests)

	s.AddClientRequest(300, protocol.MEClientRequest{OrderID: 3})
	s.AddClientRequest(100, protocol.MEClientRequest{OrderID: 1})
	s.AddClientRequest(200, protocol.MEClientRequest{OrderID: 2})
	s.SequenceAndPublish()

	var got []protocol.ClientOrderID
	for {
		req, ok := requests.TryPop()
		if !ok {
			break
		}
		got = append(got, req.OrderID)
	}

	want := []protocol.ClientOrderID{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSequenceAndPublishIsStableForEqualTimestamps(t *testing.T) {
	requests := ring.New[protocol.MEClientRequest](16)
	s := New(16, requests)

	s.AddClientRequest(100, protocol.MEClientRequest{OrderID: 1})
	s.AddClientRequest(100, protocol.MEClientRequest{OrderID: 2})
	s.SequenceAndPublish()

	first, _ := requests.TryPop()
	second, _ := requests.TryPop()
	if first.OrderID != 1 || second.OrderID != 2 {
		t.Fatalf("expected original insertion order preserved for equal timestamps, got %d then %d", first.OrderID, second.OrderID)
	}
}

func TestSequenceAndPublishResetsBatch(t *testing.T) {
	requests := ring.New[protocol.MEClientRequest](16)
	s := New(16, requests)

	s.AddClientRequest(1, protocol.MEClientRequest{OrderID: 1})
	s.SequenceAndPublish()
	s.SequenceAndPublish() // empty batch must be a no-op, not re-publish

	count := 0
	for {
		if _, ok := requests.TryPop(); !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one published request, got %d", count)
	}
}

func TestAddClientRequestPanicsOnOverflow(t *testing.T) {
	requests := ring.New[protocol.MEClientRequest](16)
	s := New(2, requests)

	defer func() {
		if recover() == nil {
			t.Fatal("expected AddClientRequest to panic once scratch capacity is exceeded")
		}
	}()

	for i := 0; i < 3; i++ {
		s.AddClientRequest(int64(i), protocol.MEClientRequest{})
	}
}
