// Package orderbook implements a per-instrument price/time-priority
// limit order book and matching algorithm: one Book per TickerID, each
// holding its own pool-backed order and price-level arenas.
package orderbook

import (
	"github.com/femtoex/femtoex/internal/pool"
	"github.com/femtoex/femtoex/internal/protocol"
)

// ResponseSink receives client responses (ACCEPTED, FILLED, CANCELED,
// CANCEL_REJECTED) produced while processing a request.
type ResponseSink interface {
	EmitResponse(protocol.MEClientResponse)
}

// UpdateSink receives market data updates (ADD, MODIFY, CANCEL, TRADE)
// produced while processing a request.
type UpdateSink interface {
	EmitUpdate(protocol.MEMarketUpdate)
}

// BBO is the best bid/offer snapshot for one instrument.
type BBO struct {
	BidPrice protocol.Price
	BidQty   protocol.Qty
	AskPrice protocol.Price
	AskQty   protocol.Qty
}

// Book is one instrument's limit order book: a pair of price-sorted
// level lists (bids descending, asks ascending), each a list of FIFO
// order queues, entirely arena/pool backed — no Go pointers cross an
// order or level boundary, only pool indices.
//
// The price-to-level index is a map[Price]int per side rather than a
// fixed-size modulus array: a modulus array collides whenever two live
// prices share a residue, silently corrupting the book, while a map
// costs a lookup but is exact over the full price domain. See
// DESIGN.md.
type Book struct {
	tickerID protocol.TickerID

	orders *pool.Pool[order]
	levels *pool.Pool[priceLevel]

	bidIndex map[protocol.Price]int
	askIndex map[protocol.Price]int

	bidHead, bidTail int
	askHead, askTail int

	clientIndex *clientOrderIndex

	nextMarketOrderID protocol.MarketOrderID

	bbo BBO
}

// NewBook allocates a Book with its order pool, level pool and
// client-order index sized as given; maxOrders/maxLevels/maxClients/
// maxOrderIDs mirror config.MaxOrdersPerInstrument, config.MaxPriceLevels,
// config.MaxClients and config.MaxOrderIDsPerClient respectively.
func NewBook(tickerID protocol.TickerID, maxOrders, maxLevels, maxClients, maxOrderIDs int) *Book {
	return &Book{
		tickerID:    tickerID,
		orders:      pool.New[order](maxOrders, "orders"),
		levels:      pool.New[priceLevel](maxLevels, "price-levels"),
		bidIndex:    make(map[protocol.Price]int, maxLevels),
		askIndex:    make(map[protocol.Price]int, maxLevels),
		bidHead:     noLink,
		bidTail:     noLink,
		askHead:     noLink,
		askTail:     noLink,
		clientIndex: newClientOrderIndex(maxClients, maxOrderIDs),
	}
}

// BBO returns the current best bid/offer.
func (b *Book) BBO() BBO {
	return b.bbo
}

func (b *Book) sideState(side protocol.Side) (index map[protocol.Price]int, head, tail *int) {
	if side == protocol.SideBuy {
		return b.bidIndex, &b.bidHead, &b.bidTail
	}
	return b.askIndex, &b.askHead, &b.askTail
}

// moreAggressive reports whether price p is a better (more aggressive)
// resting price than q for side.
func moreAggressive(side protocol.Side, p, q protocol.Price) bool {
	if side == protocol.SideBuy {
		return p > q
	}
	return p < q
}

// findOrCreateLevel returns the pool index of the price level at price
// on side, creating and splicing it into the sorted list if absent.
func (b *Book) findOrCreateLevel(side protocol.Side, price protocol.Price) int {
	index, head, tail := b.sideState(side)
	if idx, ok := index[price]; ok {
		return idx
	}

	idx := b.levels.Allocate()
	*b.levels.Get(idx) = priceLevel{
		side:       side,
		price:      price,
		firstOrder: noLink,
		lastOrder:  noLink,
		prevLevel:  noLink,
		nextLevel:  noLink,
	}
	index[price] = idx

	if *head == noLink {
		*head, *tail = idx, idx
		return idx
	}

	// Walk from the head (best price) looking for the first existing
	// level that is less aggressive than the new one; splice the new
	// level directly before it. O(number of live levels), acceptable
	// since level counts are small relative to order counts.
	cur := *head
	for cur != noLink {
		curLevel := b.levels.Get(cur)
		if moreAggressive(side, price, curLevel.price) {
			newLevel := b.levels.Get(idx)
			newLevel.nextLevel = cur
			newLevel.prevLevel = curLevel.prevLevel
			if curLevel.prevLevel != noLink {
				b.levels.Get(curLevel.prevLevel).nextLevel = idx
			} else {
				*head = idx
			}
			curLevel.prevLevel = idx
			return idx
		}
		cur = curLevel.nextLevel
	}

	// New level is the least aggressive seen: append at tail.
	tailLevel := b.levels.Get(*tail)
	tailLevel.nextLevel = idx
	newLevel := b.levels.Get(idx)
	newLevel.prevLevel = *tail
	*tail = idx
	return idx
}

// removeLevel splices an emptied price level out of its side's list,
// deallocates it, and drops it from the price index.
func (b *Book) removeLevel(side protocol.Side, levelIdx int) {
	index, head, tail := b.sideState(side)
	level := b.levels.Get(levelIdx)

	if level.prevLevel != noLink {
		b.levels.Get(level.prevLevel).nextLevel = level.nextLevel
	} else {
		*head = level.nextLevel
	}
	if level.nextLevel != noLink {
		b.levels.Get(level.nextLevel).prevLevel = level.prevLevel
	} else {
		*tail = level.prevLevel
	}

	delete(index, level.price)
	b.levels.Deallocate(levelIdx)
}

// appendOrder inserts a new resting order at the tail of its price
// level's FIFO queue, assigning it the next priority at that price.
func (b *Book) appendOrder(levelIdx int, o *order) int {
	level := b.levels.Get(levelIdx)
	level.lastPriority++
	o.priority = level.lastPriority
	o.level = levelIdx
	o.prev = level.lastOrder
	o.next = noLink

	idx := b.orders.Allocate()
	*b.orders.Get(idx) = *o

	if level.lastOrder != noLink {
		b.orders.Get(level.lastOrder).next = idx
	} else {
		level.firstOrder = idx
	}
	level.lastOrder = idx
	level.count++
	level.totalQty += int64(o.qty)

	return idx
}

// unlinkOrder removes an order from its price level's queue (but does
// not deallocate it) and returns the now-empty-or-not level index.
func (b *Book) unlinkOrder(orderIdx int) int {
	o := b.orders.Get(orderIdx)
	level := b.levels.Get(o.level)

	if o.prev != noLink {
		b.orders.Get(o.prev).next = o.next
	} else {
		level.firstOrder = o.next
	}
	if o.next != noLink {
		b.orders.Get(o.next).prev = o.prev
	} else {
		level.lastOrder = o.prev
	}
	level.count--
	level.totalQty -= int64(o.qty)

	return o.level
}

// refreshBBO recomputes the best bid/offer from the current heads;
// cheap (O(1)) since each level tracks its own totalQty, so it is
// called unconditionally after every operation that could touch a
// side's head rather than gating it behind dirty tracking.
func (b *Book) refreshBBO() {
	if b.bidHead != noLink {
		l := b.levels.Get(b.bidHead)
		b.bbo.BidPrice, b.bbo.BidQty = l.price, protocol.Qty(l.totalQty)
	} else {
		b.bbo.BidPrice, b.bbo.BidQty = noPriceSentinel, 0
	}
	if b.askHead != noLink {
		l := b.levels.Get(b.askHead)
		b.bbo.AskPrice, b.bbo.AskQty = l.price, protocol.Qty(l.totalQty)
	} else {
		b.bbo.AskPrice, b.bbo.AskQty = noPriceSentinel, 0
	}
}

// noPriceSentinel fills BBO.BidPrice/AskPrice when a side is empty;
// prices are non-negative ticks, so -1 cannot collide with a real one.
const noPriceSentinel protocol.Price = -1

// ProcessNew accepts a NEW request: mint a market order id, emit
// ACCEPTED, match against the opposite side up to the limit price,
// then rest any residual quantity as a new resting order.
func (b *Book) ProcessNew(req protocol.MEClientRequest, resp ResponseSink, upd UpdateSink) {
	b.nextMarketOrderID++
	marketOrderID := b.nextMarketOrderID

	resp.EmitResponse(protocol.MEClientResponse{
		Type:          protocol.ResponseAccepted,
		ClientID:      req.ClientID,
		TickerID:      req.TickerID,
		ClientOrderID: req.OrderID,
		MarketOrderID: marketOrderID,
		Side:          req.Side,
		Price:         req.Price,
		ExecQty:       0,
		LeavesQty:     req.Qty,
	})

	leaves := b.match(req, marketOrderID, resp, upd)

	if leaves > 0 {
		o := order{
			tickerID:      req.TickerID,
			clientID:      req.ClientID,
			clientOrderID: req.OrderID,
			marketOrderID: marketOrderID,
			side:          req.Side,
			price:         req.Price,
			qty:           leaves,
		}
		levelIdx := b.findOrCreateLevel(req.Side, req.Price)
		orderIdx := b.appendOrder(levelIdx, &o)
		b.clientIndex.Set(req.ClientID, req.OrderID, orderIdx)

		restingOrder := b.orders.Get(orderIdx)
		upd.EmitUpdate(protocol.MEMarketUpdate{
			Type:     protocol.UpdateAdd,
			OrderID:  marketOrderID,
			TickerID: req.TickerID,
			Side:     req.Side,
			Price:    req.Price,
			Qty:      leaves,
			Priority: restingOrder.priority,
		})
	}

	b.refreshBBO()
}

// match walks the opposite side's best levels while the aggressor has
// residual quantity and the opposing level's price still crosses the
// aggressor's limit, consuming resting orders head-first (time
// priority within a price). It returns the aggressor's unfilled
// residual quantity.
func (b *Book) match(req protocol.MEClientRequest, aggressorMOID protocol.MarketOrderID, resp ResponseSink, upd UpdateSink) protocol.Qty {
	oppositeSide := protocol.SideSell
	if req.Side == protocol.SideSell {
		oppositeSide = protocol.SideBuy
	}
	_, oppHead, _ := b.sideState(oppositeSide)

	residual := req.Qty
	for residual > 0 && *oppHead != noLink {
		levelIdx := *oppHead
		level := b.levels.Get(levelIdx)
		if !crosses(req.Side, req.Price, level.price) {
			break
		}

		for residual > 0 && level.firstOrder != noLink {
			restingIdx := level.firstOrder
			restingOrder := b.orders.Get(restingIdx)

			fill := residual
			if restingOrder.qty < fill {
				fill = restingOrder.qty
			}
			residual -= fill
			restingOrder.qty -= fill
			level.totalQty -= int64(fill)

			resp.EmitResponse(protocol.MEClientResponse{
				Type:          protocol.ResponseFilled,
				ClientID:      req.ClientID,
				TickerID:      req.TickerID,
				ClientOrderID: req.OrderID,
				MarketOrderID: aggressorMOID,
				Side:          req.Side,
				Price:         restingOrder.price,
				ExecQty:       fill,
				LeavesQty:     residual,
			})
			resp.EmitResponse(protocol.MEClientResponse{
				Type:          protocol.ResponseFilled,
				ClientID:      restingOrder.clientID,
				TickerID:      req.TickerID,
				ClientOrderID: restingOrder.clientOrderID,
				MarketOrderID: restingOrder.marketOrderID,
				Side:          restingOrder.side,
				Price:         restingOrder.price,
				ExecQty:       fill,
				LeavesQty:     restingOrder.qty,
			})
			upd.EmitUpdate(protocol.MEMarketUpdate{
				Type:     protocol.UpdateTrade,
				OrderID:  protocol.InvalidOrderID,
				TickerID: req.TickerID,
				Side:     restingOrder.side,
				Price:    restingOrder.price,
				Qty:      fill,
			})

			if restingOrder.qty == 0 {
				b.clientIndex.Clear(restingOrder.clientID, restingOrder.clientOrderID)
				b.unlinkOrder(restingIdx)
				b.orders.Deallocate(restingIdx)
				upd.EmitUpdate(protocol.MEMarketUpdate{
					Type:     protocol.UpdateCancel,
					OrderID:  restingOrder.marketOrderID,
					TickerID: req.TickerID,
					Side:     restingOrder.side,
					Price:    restingOrder.price,
				})
			} else {
				upd.EmitUpdate(protocol.MEMarketUpdate{
					Type:     protocol.UpdateModify,
					OrderID:  restingOrder.marketOrderID,
					TickerID: req.TickerID,
					Side:     restingOrder.side,
					Price:    restingOrder.price,
					Qty:      restingOrder.qty,
				})
			}
		}

		if level.count == 0 {
			b.removeLevel(oppositeSide, levelIdx)
		}
	}

	return residual
}

// crosses reports whether an aggressor on side at price would match a
// resting level at oppPrice.
func crosses(side protocol.Side, price, oppPrice protocol.Price) bool {
	if side == protocol.SideBuy {
		return price >= oppPrice
	}
	return price <= oppPrice
}

// ProcessCancel handles a CANCEL request: look the order up
// by (clientId, clientOrderId); emit CANCEL_REJECTED if it is not
// resting in this book (already filled, already canceled, or was never
// accepted), otherwise remove it and emit CANCELED plus a market data
// CANCEL update.
func (b *Book) ProcessCancel(req protocol.MEClientRequest, resp ResponseSink, upd UpdateSink) {
	orderIdx, ok := b.clientIndex.Get(req.ClientID, req.OrderID)
	if !ok {
		resp.EmitResponse(protocol.MEClientResponse{
			Type:          protocol.ResponseCancelRejected,
			ClientID:      req.ClientID,
			TickerID:      req.TickerID,
			ClientOrderID: req.OrderID,
			MarketOrderID: protocol.InvalidOrderID,
			Side:          req.Side,
		})
		return
	}

	o := b.orders.Get(orderIdx)
	side, price, qty, marketOrderID := o.side, o.price, o.qty, o.marketOrderID

	levelIdx := b.unlinkOrder(orderIdx)
	b.clientIndex.Clear(req.ClientID, req.OrderID)
	b.orders.Deallocate(orderIdx)

	level := b.levels.Get(levelIdx)
	if level.count == 0 {
		b.removeLevel(side, levelIdx)
	}

	resp.EmitResponse(protocol.MEClientResponse{
		Type:          protocol.ResponseCanceled,
		ClientID:      req.ClientID,
		TickerID:      req.TickerID,
		ClientOrderID: req.OrderID,
		MarketOrderID: marketOrderID,
		Side:          side,
		Price:         price,
		ExecQty:       0,
		LeavesQty:     0,
	})
	upd.EmitUpdate(protocol.MEMarketUpdate{
		Type:     protocol.UpdateCancel,
		OrderID:  marketOrderID,
		TickerID: req.TickerID,
		Side:     side,
		Price:    price,
		Qty:      qty,
	})

	b.refreshBBO()
}
