package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/femtoex/femtoex/internal/mcast"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/xlog"
)

func TestPublishStampsIncreasingSeqNumbersAndForksToSynth(t *testing.T) {
	const group = "239.2.2.2:28910"

	recv, err := mcast.Join(group, "")
	if err != nil {
		t.Skipf("multicast unavailable in this sandbox: %v", err)
	}
	defer recv.Leave()
	send, err := mcast.Dial(group)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer send.Leave()

	log, err := xlog.New("publisher-test")
	if err != nil {
		t.Fatalf("xlog.New: %v", err)
	}

	updates := ring.New[protocol.MEMarketUpdate](16)
	toSynth := ring.New[protocol.MEMarketUpdate](16)
	p := New(updates, toSynth, send, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	updates.Push(protocol.MEMarketUpdate{Type: protocol.UpdateAdd, TickerID: 1, Price: 50, Qty: 10})
	updates.Push(protocol.MEMarketUpdate{Type: protocol.UpdateAdd, TickerID: 1, Price: 51, Qty: 5})

	var seqNumbers []uint64
	deadline := time.Now().Add(2 * time.Second)
	for len(seqNumbers) < 2 && time.Now().Before(deadline) {
		data, ok, err := recv.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if !ok {
			continue
		}
		framed := protocol.UnmarshalMDPMarketUpdate(data)
		seqNumbers = append(seqNumbers, framed.SeqNumber)
	}
	if len(seqNumbers) != 2 || seqNumbers[0] != 1 || seqNumbers[1] != 2 {
		t.Fatalf("expected sequence numbers [1 2], got %v", seqNumbers)
	}

	forked := 0
	forkDeadline := time.Now().Add(2 * time.Second)
	for forked < 2 && time.Now().Before(forkDeadline) {
		if _, ok := toSynth.TryPop(); ok {
			forked++
		}
	}
	if forked != 2 {
		t.Fatalf("expected 2 updates forked to the snapshot ring, got %d", forked)
	}

	cancel()
	<-done
}
