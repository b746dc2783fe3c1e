// Package publisher implements the market-data publisher: it drains
// the matching engine's updates ring, stamps a monotonically
// increasing incremental sequence number, multicasts each framed
// record, and forks a copy into a second ring feeding the snapshot
// synthesizer.
package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/mcast"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/xlog"
)

// Publisher is the market-data publisher thread.
type Publisher struct {
	updates *ring.Buffer[protocol.MEMarketUpdate]
	toSynth *ring.Buffer[protocol.MEMarketUpdate]
	mcast   *mcast.Socket
	log     *xlog.Logger
	nextSeq uint64
}

// New wires a Publisher to the matching engine's updates ring, the
// ring feeding the snapshot synthesizer, and the incremental multicast
// socket.
func New(updates, toSynth *ring.Buffer[protocol.MEMarketUpdate], sock *mcast.Socket, log *xlog.Logger) *Publisher {
	return &Publisher{updates: updates, toSynth: toSynth, mcast: sock, log: log, nextSeq: 1}
}

// Run busy-spins draining updates until ctx is canceled. A send
// failure is logged and the loop continues: the next update still
// carries the next sequence number, so a participant observing the gap
// simply falls back to recovery.
func (p *Publisher) Run(ctx context.Context) error {
	buf := make([]byte, protocol.SizeMDPMarketUpdate)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		upd, ok := p.updates.TryPop()
		if !ok {
			continue
		}

		framed := protocol.MDPMarketUpdate{SeqNumber: p.nextSeq, Update: upd}
		p.nextSeq++

		framed.Marshal(buf)
		if err := p.mcast.Send(buf); err != nil {
			p.log.Warn("publisher: multicast send failed", zap.Uint64("seqNumber", framed.SeqNumber), zap.Error(err))
		}

		p.toSynth.Push(upd)
	}
}
