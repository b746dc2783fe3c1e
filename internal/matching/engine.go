// Package matching implements the matching engine: a single-threaded
// loop that drains the sequenced requests ring, dispatches each request
// to its instrument's book, and owns the sole writer handle to the
// responses and market-updates rings.
package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/config"
	"github.com/femtoex/femtoex/internal/orderbook"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/xlog"
)

// Engine is the sole caller of every registered Book and the sole
// writer of the responses and updates rings. It implements
// orderbook.ResponseSink and orderbook.UpdateSink itself so a Book
// never needs to know it is talking to rings.
type Engine struct {
	books [config.MaxInstruments]*orderbook.Book

	requests  *ring.Buffer[protocol.MEClientRequest]
	responses *ring.Buffer[protocol.MEClientResponse]
	updates   *ring.Buffer[protocol.MEMarketUpdate]

	log *xlog.Logger
}

// NewEngine wires an Engine to its three rings. Books are attached
// afterward with RegisterBook, one per live instrument.
func NewEngine(requests *ring.Buffer[protocol.MEClientRequest], responses *ring.Buffer[protocol.MEClientResponse], updates *ring.Buffer[protocol.MEMarketUpdate], log *xlog.Logger) *Engine {
	return &Engine{requests: requests, responses: responses, updates: updates, log: log}
}

// RegisterBook attaches book as the handler for tickerID. Panics if
// tickerID is out of range or already registered — both are wiring
// mistakes caught at startup, not runtime conditions.
func (e *Engine) RegisterBook(tickerID protocol.TickerID, book *orderbook.Book) {
	if int(tickerID) < 0 || int(tickerID) >= len(e.books) {
		panic("matching: tickerID out of range")
	}
	if e.books[tickerID] != nil {
		panic("matching: tickerID already registered")
	}
	e.books[tickerID] = book
}

// EmitResponse implements orderbook.ResponseSink by busy-spin pushing
// onto the responses ring, the only write path into it.
func (e *Engine) EmitResponse(resp protocol.MEClientResponse) {
	e.responses.Push(resp)
}

// EmitUpdate implements orderbook.UpdateSink by busy-spin pushing onto
// the market-updates ring, the only write path into it.
func (e *Engine) EmitUpdate(upd protocol.MEMarketUpdate) {
	e.updates.Push(upd)
}

// Run is the single-threaded dispatch loop: pop one request, dispatch
// it, repeat, until ctx is canceled. It returns nil on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		req, ok := e.requests.TryPop()
		if !ok {
			continue
		}
		e.dispatch(req)
	}
}

// dispatch routes req to its instrument's book. An instrument with no
// registered book is a protocol violation, logged and dropped rather
// than fatal, since the matching engine's own resources are fine —
// only the request's target is bad. An unrecognized request type is
// fatal: it can only arise from a wiring bug between the sequencer and
// the engine, not from untrusted client input, which is validated
// earlier by the gateway.
func (e *Engine) dispatch(req protocol.MEClientRequest) {
	if int(req.TickerID) < 0 || int(req.TickerID) >= len(e.books) || e.books[req.TickerID] == nil {
		e.log.Warn("matching: request for unregistered instrument, dropping",
			zap.Uint32("tickerId", uint32(req.TickerID)))
		return
	}
	book := e.books[req.TickerID]

	switch req.Type {
	case protocol.RequestNew:
		book.ProcessNew(req, e, e)
	case protocol.RequestCancel:
		book.ProcessCancel(req, e, e)
	default:
		e.log.Error("matching: unknown request type, aborting")
		panic("matching: unknown request type")
	}
}
