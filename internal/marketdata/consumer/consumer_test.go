package consumer

import (
	"testing"

	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/xlog"
)

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	log, err := xlog.New("consumer-test")
	if err != nil {
		t.Fatalf("xlog.New: %v", err)
	}
	return &Consumer{
		out:                     ring.New[protocol.MEMarketUpdate](64),
		log:                     log,
		nextExpectedIncremental: 1,
		snapshotStaging:         make(map[uint64]protocol.MEMarketUpdate),
		incrementalStaging:      make(map[uint64]protocol.MEMarketUpdate),
		inRecovery:              true,
	}
}

func TestSyncSucceedsOnCompleteContiguousSnapshot(t *testing.T) {
	c := newTestConsumer(t)

	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 1, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotStart, OrderID: 100}})
	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 2, Update: protocol.MEMarketUpdate{Type: protocol.UpdateClear, TickerID: 0}})
	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 3, Update: protocol.MEMarketUpdate{Type: protocol.UpdateAdd, TickerID: 0, OrderID: 5}})
	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 4, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotEnd, OrderID: 100}})

	if c.inRecovery {
		t.Fatal("expected a complete snapshot to end recovery")
	}
	if c.nextExpectedIncremental != 101 {
		t.Fatalf("expected nextExpectedIncremental 101, got %d", c.nextExpectedIncremental)
	}

	var forwarded []protocol.MEMarketUpdate
	for {
		upd, ok := c.out.TryPop()
		if !ok {
			break
		}
		forwarded = append(forwarded, upd)
	}
	if len(forwarded) != 2 {
		t.Fatalf("expected CLEAR and ADD forwarded (no markers), got %+v", forwarded)
	}
	if forwarded[0].Type != protocol.UpdateClear || forwarded[1].Type != protocol.UpdateAdd {
		t.Fatalf("unexpected forwarded order: %+v", forwarded)
	}
}

func TestSyncWaitsOnSnapshotGap(t *testing.T) {
	c := newTestConsumer(t)

	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 1, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotStart, OrderID: 100}})
	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 3, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotEnd, OrderID: 100}}) // gap at 2

	if !c.inRecovery {
		t.Fatal("expected recovery to continue with a gap in the snapshot staging")
	}
	if _, ok := c.out.TryPop(); ok {
		t.Fatal("expected nothing forwarded while the snapshot is incomplete")
	}
}

func TestSyncDiscardsWhenFirstRecordIsNotStart(t *testing.T) {
	c := newTestConsumer(t)

	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 1, Update: protocol.MEMarketUpdate{Type: protocol.UpdateClear}})

	if len(c.snapshotStaging) != 0 {
		t.Fatalf("expected staging discarded when the first record is not SNAPSHOT_START, got %+v", c.snapshotStaging)
	}
}

func TestDuplicateSnapshotSeqRestartsStaging(t *testing.T) {
	c := newTestConsumer(t)

	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 1, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotStart, OrderID: 100}})
	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 1, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotStart, OrderID: 200}})

	if len(c.snapshotStaging) != 0 {
		t.Fatalf("expected a duplicate seqNumber to restart staging empty, got %+v", c.snapshotStaging)
	}
}

func TestIncrementalGapAfterSnapshotDiscardsOnlySnapshotStaging(t *testing.T) {
	c := newTestConsumer(t)

	c.stageIncremental(protocol.MDPMarketUpdate{SeqNumber: 102, Update: protocol.MEMarketUpdate{Type: protocol.UpdateAdd, OrderID: 9}})

	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 1, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotStart, OrderID: 100}})
	c.stageSnapshot(protocol.MDPMarketUpdate{SeqNumber: 2, Update: protocol.MEMarketUpdate{Type: protocol.UpdateSnapshotEnd, OrderID: 100}})

	// nextExpected would be 101, but incrementalStaging only has 102 (gap at 101).
	if !c.inRecovery {
		t.Fatal("expected recovery to continue when the incremental staging has a gap after the snapshot boundary")
	}
	if len(c.snapshotStaging) != 0 {
		t.Fatal("expected snapshot staging to be discarded on an incremental gap")
	}
	if _, ok := c.incrementalStaging[102]; !ok {
		t.Fatal("expected incremental staging to be preserved across a snapshot-staging discard")
	}
}
