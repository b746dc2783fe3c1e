// Package consumer implements a market-data consumer: normal
// incremental following, gap detection, and the recovery protocol that
// joins the snapshot group, stages both channels by sequence number,
// and reconciles them back into a contiguous incremental stream.
package consumer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/mcast"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/xlog"
)

// Consumer is the market-data consumer thread.
type Consumer struct {
	incrementalAddr string
	snapshotAddr    string
	iface           string

	incremental *mcast.Socket
	snapshot    *mcast.Socket // non-nil only while in recovery

	inRecovery              bool
	nextExpectedIncremental uint64

	snapshotStaging    map[uint64]protocol.MEMarketUpdate
	incrementalStaging map[uint64]protocol.MEMarketUpdate

	out *ring.Buffer[protocol.MEMarketUpdate]
	log *xlog.Logger
}

// New joins the incremental multicast group and returns a Consumer
// ready to Run. out receives reconciled book updates in strict serial
// order, whether produced by normal-mode following or by a recovery
// reconciliation.
func New(incrementalAddr, snapshotAddr, iface string, out *ring.Buffer[protocol.MEMarketUpdate], log *xlog.Logger) (*Consumer, error) {
	incremental, err := mcast.Join(incrementalAddr, iface)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		incrementalAddr:         incrementalAddr,
		snapshotAddr:            snapshotAddr,
		iface:                   iface,
		incremental:             incremental,
		nextExpectedIncremental: 1,
		out:                     out,
		log:                     log,
	}, nil
}

// Run busy-polls the incremental channel (and, while in recovery, the
// snapshot channel) until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c.inRecovery {
			data, ok, err := c.snapshot.Recv()
			if err != nil {
				return err
			}
			if ok {
				c.stageSnapshot(protocol.UnmarshalMDPMarketUpdate(data))
			}
		}

		data, ok, err := c.incremental.Recv()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		frame := protocol.UnmarshalMDPMarketUpdate(data)

		if !c.inRecovery {
			if frame.SeqNumber == c.nextExpectedIncremental {
				c.out.Push(frame.Update)
				c.nextExpectedIncremental++
				continue
			}
			c.log.Warn("consumer: incremental gap detected, entering recovery",
				zap.Uint64("got", frame.SeqNumber),
				zap.Uint64("want", c.nextExpectedIncremental))
			if err := c.enterRecovery(); err != nil {
				return err
			}
		}

		c.stageIncremental(frame)
	}
}

// enterRecovery clears both staging maps and joins the snapshot group.
func (c *Consumer) enterRecovery() error {
	sock, err := mcast.Join(c.snapshotAddr, c.iface)
	if err != nil {
		return err
	}
	c.snapshot = sock
	c.snapshotStaging = make(map[uint64]protocol.MEMarketUpdate)
	c.incrementalStaging = make(map[uint64]protocol.MEMarketUpdate)
	c.inRecovery = true
	return nil
}

// leaveRecovery drops the snapshot group membership and clears both
// stagings, returning to normal mode.
func (c *Consumer) leaveRecovery() {
	if c.snapshot != nil {
		_ = c.snapshot.Leave()
		c.snapshot = nil
	}
	c.snapshotStaging = nil
	c.incrementalStaging = nil
	c.inRecovery = false
}

// stageSnapshot files one snapshot-channel record by its seqNumber. A
// duplicate key implies a missed synthesis cycle (the synthesizer's
// cadence outran this consumer's join), so staging restarts from empty
// rather than keeping a now-ambiguous mix of two cycles.
func (c *Consumer) stageSnapshot(frame protocol.MDPMarketUpdate) {
	if _, exists := c.snapshotStaging[frame.SeqNumber]; exists {
		c.log.Warn("consumer: duplicate snapshot seqNumber, restarting snapshot staging",
			zap.Uint64("seqNumber", frame.SeqNumber))
		c.snapshotStaging = make(map[uint64]protocol.MEMarketUpdate)
		return
	}
	c.snapshotStaging[frame.SeqNumber] = frame.Update
	c.checkSnapshotSync()
}

// stageIncremental files one incremental-channel record seen while in
// recovery by its seqNumber.
func (c *Consumer) stageIncremental(frame protocol.MDPMarketUpdate) {
	c.incrementalStaging[frame.SeqNumber] = frame.Update
	c.checkSnapshotSync()
}

// checkSnapshotSync runs the five-step reconciliation between staged
// snapshot and incremental records, invoked after every staging
// insertion.
func (c *Consumer) checkSnapshotSync() {
	if len(c.snapshotStaging) == 0 {
		return
	}

	snapKeys := sortedKeys(c.snapshotStaging)
	minKey := snapKeys[0]

	if c.snapshotStaging[minKey].Type != protocol.UpdateSnapshotStart {
		c.snapshotStaging = make(map[uint64]protocol.MEMarketUpdate)
		return
	}

	var endUpd protocol.MEMarketUpdate
	foundEnd := false
	for i, k := range snapKeys {
		if k != minKey+uint64(i) {
			return // gap: wait for more snapshot records
		}
		if c.snapshotStaging[k].Type == protocol.UpdateSnapshotEnd {
			endUpd = c.snapshotStaging[k]
			foundEnd = true
			break
		}
	}
	if !foundEnd {
		return // contiguous so far, END not staged yet
	}

	nextExpected := uint64(endUpd.OrderID) + 1

	incKeys := sortedKeys(c.incrementalStaging)
	var contiguous []protocol.MEMarketUpdate
	expect := nextExpected
	for _, k := range incKeys {
		if k < nextExpected {
			continue
		}
		if k != expect {
			c.snapshotStaging = make(map[uint64]protocol.MEMarketUpdate)
			return
		}
		contiguous = append(contiguous, c.incrementalStaging[k])
		expect++
	}

	for _, k := range snapKeys {
		upd := c.snapshotStaging[k]
		if upd.Type == protocol.UpdateSnapshotStart || upd.Type == protocol.UpdateSnapshotEnd {
			continue
		}
		c.out.Push(upd)
	}
	for _, upd := range contiguous {
		c.out.Push(upd)
	}

	c.nextExpectedIncremental = expect
	c.leaveRecovery()
}

func sortedKeys(m map[uint64]protocol.MEMarketUpdate) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
