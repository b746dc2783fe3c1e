package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/sequencer"
	"github.com/femtoex/femtoex/internal/tcpsession"
	"github.com/femtoex/femtoex/internal/xlog"
)

func newTestGateway(t *testing.T) (*Gateway, *ring.Buffer[protocol.MEClientRequest], *ring.Buffer[protocol.MEClientResponse], string) {
	t.Helper()
	log, err := xlog.New("gateway-test")
	if err != nil {
		t.Fatalf("xlog.New: %v", err)
	}

	srv, err := tcpsession.Listen("127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	requests := ring.New[protocol.MEClientRequest](64)
	responses := ring.New[protocol.MEClientResponse](64)
	seq := sequencer.New(64, requests)

	g := New(srv, seq, responses, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)
	go g.Run(ctx)

	return g, requests, responses, srv.Addr().String()
}

func TestGatewayAcceptsInSequenceRequest(t *testing.T) {
	_, requests, _, addr := newTestGateway(t)
	log, _ := xlog.New("client")

	_, events, _, err := tcpsession.Dial(addr, log)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = events

	frame := protocol.OMClientRequest{
		SeqNum: 1,
		Request: protocol.MEClientRequest{
			Type:     protocol.RequestNew,
			ClientID: 1,
			TickerID: 1,
			OrderID:  1,
			Side:     protocol.SideBuy,
			Price:    50,
			Qty:      10,
		},
	}
	buf := make([]byte, protocol.SizeOMClientRequest)
	frame.Marshal(buf)

	clientSess, _, _, _ := tcpsession.Dial(addr, log)
	clientSess.Send(buf)

	deadline := time.After(time.Second)
	for {
		if req, ok := requests.TryPop(); ok {
			if req.OrderID != 1 {
				t.Fatalf("unexpected request: %+v", req)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the request to reach the sequencer's ring")
		default:
		}
	}
}

func TestGatewayDropsOutOfSequenceRequest(t *testing.T) {
	_, requests, _, addr := newTestGateway(t)
	log, _ := xlog.New("client")

	clientSess, _, _, err := tcpsession.Dial(addr, log)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	frame := protocol.OMClientRequest{
		SeqNum: 5, // not 1: must be dropped
		Request: protocol.MEClientRequest{
			Type:     protocol.RequestNew,
			ClientID: 2,
			TickerID: 1,
			OrderID:  1,
			Side:     protocol.SideBuy,
			Price:    50,
			Qty:      10,
		},
	}
	buf := make([]byte, protocol.SizeOMClientRequest)
	frame.Marshal(buf)
	clientSess.Send(buf)

	time.Sleep(50 * time.Millisecond)
	if _, ok := requests.TryPop(); ok {
		t.Fatal("expected an out-of-sequence request to be dropped")
	}
}
