package matching

import (
	"context"
	"testing"
	"time"

	"github.com/femtoex/femtoex/internal/orderbook"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/xlog"
)

func newTestEngine(t *testing.T) (*Engine, *ring.Buffer[protocol.MEClientRequest], *ring.Buffer[protocol.MEClientResponse], *ring.Buffer[protocol.MEMarketUpdate]) {
	t.Helper()
	log, err := xlog.New("matching-test")
	if err != nil {
		t.Fatalf("xlog.New: %v", err)
	}

	requests := ring.New[protocol.MEClientRequest](64)
	responses := ring.New[protocol.MEClientResponse](64)
	updates := ring.New[protocol.MEMarketUpdate](64)

	e := NewEngine(requests, responses, updates, log)
	e.RegisterBook(1, orderbook.NewBook(1, 64, 64, 4, 64))
	return e, requests, responses, updates
}

func TestDispatchRoutesToRegisteredBook(t *testing.T) {
	e, requests, responses, updates := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	requests.Push(protocol.MEClientRequest{
		Type:     protocol.RequestNew,
		ClientID: 1,
		TickerID: 1,
		OrderID:  1,
		Side:     protocol.SideBuy,
		Price:    50,
		Qty:      10,
	})

	var resp protocol.MEClientResponse
	deadline := time.After(time.Second)
	for {
		if r, ok := responses.TryPop(); ok {
			resp = r
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a response")
		default:
		}
	}
	if resp.Type != protocol.ResponseAccepted {
		t.Fatalf("expected ACCEPTED, got %+v", resp)
	}

	deadline = time.After(time.Second)
	for {
		if _, ok := updates.TryPop(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for an update")
		default:
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
}

func TestDispatchDropsUnregisteredInstrument(t *testing.T) {
	e, requests, responses, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	requests.Push(protocol.MEClientRequest{
		Type:     protocol.RequestNew,
		ClientID: 1,
		TickerID: 7,
		OrderID:  1,
		Side:     protocol.SideBuy,
		Price:    50,
		Qty:      10,
	})

	time.Sleep(20 * time.Millisecond)
	if _, ok := responses.TryPop(); ok {
		t.Fatal("expected no response for an unregistered instrument")
	}

	cancel()
	<-done
}

func TestDispatchPanicsOnUnknownRequestType(t *testing.T) {
	e, requests, _, _ := newTestEngine(t)

	requests.Push(protocol.MEClientRequest{
		Type:     protocol.RequestInvalid,
		TickerID: 1,
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected dispatch to panic on an unknown request type")
		}
	}()
	req, _ := requests.TryPop()
	e.dispatch(req)
}
