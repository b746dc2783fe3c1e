// Package snapshot implements the snapshot synthesizer: it maintains a
// shadow book per instrument from the incremental stream forked by the
// publisher, and periodically publishes a bounded, bracketed snapshot
// batch on the snapshot multicast so a recovering consumer never needs
// to replay the incremental channel from sequence 1.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/femtoex/femtoex/internal/config"
	"github.com/femtoex/femtoex/internal/mcast"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
)

// Synthesizer is the snapshot synthesizer thread.
type Synthesizer struct {
	incoming *ring.Buffer[protocol.MEMarketUpdate]
	mcast    *mcast.Socket
	cadence  time.Duration

	shadows          [config.MaxInstruments]map[protocol.MarketOrderID]protocol.MEMarketUpdate
	lastAppliedSeq   uint64
	nextIncomingSeq  uint64
}

// New creates a Synthesizer consuming from incoming (the ring forked
// by the publisher) and publishing on sock every cadence.
func New(incoming *ring.Buffer[protocol.MEMarketUpdate], sock *mcast.Socket, cadence time.Duration) *Synthesizer {
	s := &Synthesizer{incoming: incoming, mcast: sock, cadence: cadence, nextIncomingSeq: 1}
	for i := range s.shadows {
		s.shadows[i] = make(map[protocol.MarketOrderID]protocol.MEMarketUpdate)
	}
	return s
}

// Run consumes incoming updates and publishes a snapshot batch every
// cadence, until ctx is canceled.
func (s *Synthesizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.publishSnapshot(); err != nil {
				return err
			}
		default:
		}

		upd, ok := s.incoming.TryPop()
		if !ok {
			continue
		}
		s.apply(upd)
	}
}

// apply folds one incremental update into the appropriate instrument's
// shadow book. The incoming ring carries plain MEMarketUpdate values
// without the publisher's channel sequence number, so the last applied
// sequence number is this synthesizer's own count of updates consumed;
// the publisher forks every update it numbers, in order, so the two
// counts agree. No contiguity check is made here.
func (s *Synthesizer) apply(upd protocol.MEMarketUpdate) {
	s.lastAppliedSeq = s.nextIncomingSeq
	s.nextIncomingSeq++

	if int(upd.TickerID) < 0 || int(upd.TickerID) >= len(s.shadows) {
		return
	}
	shadow := s.shadows[upd.TickerID]

	switch upd.Type {
	case protocol.UpdateAdd:
		if _, exists := shadow[upd.OrderID]; exists {
			panic(fmt.Sprintf("snapshot: ADD for already-resting order %d", upd.OrderID))
		}
		shadow[upd.OrderID] = upd
	case protocol.UpdateModify:
		existing, exists := shadow[upd.OrderID]
		if !exists || existing.Side != upd.Side {
			panic(fmt.Sprintf("snapshot: MODIFY for unknown or side-mismatched order %d", upd.OrderID))
		}
		existing.Price, existing.Qty = upd.Price, upd.Qty
		shadow[upd.OrderID] = existing
	case protocol.UpdateCancel:
		if _, exists := shadow[upd.OrderID]; !exists {
			panic(fmt.Sprintf("snapshot: CANCEL for unknown order %d", upd.OrderID))
		}
		delete(shadow, upd.OrderID)
	default:
		// TRADE updates arrive on the publisher's fork and leave the
		// shadow unchanged; CLEAR and SNAPSHOT_* markers are never
		// published incrementally, so they do not arrive here.
	}
}

// publishSnapshot emits one bracketed snapshot cycle: SNAPSHOT_START,
// then per instrument a CLEAR followed by its resting orders in
// (tickerId, orderId) order, then SNAPSHOT_END — each carrying the
// last applied incremental sequence number in OrderID so a consumer
// can resume incrementals from the right point.
func (s *Synthesizer) publishSnapshot() error {
	seq := uint64(1)
	buf := make([]byte, protocol.SizeMDPMarketUpdate)

	send := func(upd protocol.MEMarketUpdate) error {
		framed := protocol.MDPMarketUpdate{SeqNumber: seq, Update: upd}
		seq++
		framed.Marshal(buf)
		return s.mcast.Send(buf)
	}

	lastApplied := protocol.MarketOrderID(s.lastAppliedSeq)

	if err := send(protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotStart, OrderID: lastApplied}); err != nil {
		return err
	}

	for tickerID := 0; tickerID < len(s.shadows); tickerID++ {
		shadow := s.shadows[tickerID]
		if err := send(protocol.MEMarketUpdate{Type: protocol.UpdateClear, TickerID: protocol.TickerID(tickerID)}); err != nil {
			return err
		}

		ids := make([]protocol.MarketOrderID, 0, len(shadow))
		for id := range shadow {
			ids = append(ids, id)
		}
		// Go map iteration order is undefined, so orderId order must be
		// imposed explicitly here rather than relied on implicitly.
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			if err := send(shadow[id]); err != nil {
				return err
			}
		}
	}

	return send(protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotEnd, OrderID: lastApplied})
}
