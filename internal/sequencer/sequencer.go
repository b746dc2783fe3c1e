// Package sequencer implements a FIFO fairness sequencer: requests
// arrive across many client TCP sessions in socket-iteration order, not
// wire arrival order, so the gateway stamps each with the receive time
// its session's read loop recorded when the Read returned (see
// tcpsession.RecvEvent) and this package restores arrival fairness by
// stable-sorting a batch on that timestamp before handing it to the
// matching engine.
package sequencer

import (
	"fmt"
	"sort"

	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
)

type pending struct {
	recvTimeNs int64
	request    protocol.MEClientRequest
}

// Sequencer accumulates one read batch's worth of requests, then
// publishes them to the requests ring in receive-timestamp order.
// Not safe for concurrent use — it is owned by the single order
// gateway network thread.
type Sequencer struct {
	scratch  []pending
	capacity int
	requests *ring.Buffer[protocol.MEClientRequest]
}

// New creates a Sequencer with a scratch capacity bound and the
// requests ring it publishes into.
func New(capacity int, requests *ring.Buffer[protocol.MEClientRequest]) *Sequencer {
	return &Sequencer{
		scratch:  make([]pending, 0, capacity),
		capacity: capacity,
		requests: requests,
	}
}

// AddClientRequest appends one request observed at recvTimeNs to the
// current batch. Overflow is fatal: the scratch capacity is a
// design-time sizing bound, not a condition a caller can recover from
// mid-batch.
func (s *Sequencer) AddClientRequest(recvTimeNs int64, req protocol.MEClientRequest) {
	if len(s.scratch) >= s.capacity {
		panic(fmt.Sprintf("sequencer: scratch exhausted: capacity %d", s.capacity))
	}
	s.scratch = append(s.scratch, pending{recvTimeNs: recvTimeNs, request: req})
}

// SequenceAndPublish stable-sorts the current batch by recvTimeNs
// ascending, pushes each request onto the requests ring in that order,
// and resets the batch. Invoked once per drained read batch by the
// order gateway.
func (s *Sequencer) SequenceAndPublish() {
	if len(s.scratch) == 0 {
		return
	}

	sort.SliceStable(s.scratch, func(i, j int) bool {
		return s.scratch[i].recvTimeNs < s.scratch[j].recvTimeNs
	})

	for _, p := range s.scratch {
		s.requests.Push(p.request)
	}

	s.scratch = s.scratch[:0]
}
