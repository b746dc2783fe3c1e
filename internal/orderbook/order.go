package orderbook

import "github.com/femtoex/femtoex/internal/protocol"

// noLink marks the absence of a next/prev order or price level.
const noLink = -1

// order is a pool-resident node of an intrusive doubly-linked list of
// orders resting at the same price level, with prev/next as pool
// indices rather than pointers.
type order struct {
	tickerID      protocol.TickerID
	clientID      protocol.ClientID
	clientOrderID protocol.ClientOrderID
	marketOrderID protocol.MarketOrderID
	side          protocol.Side
	price         protocol.Price
	qty           protocol.Qty
	priority      protocol.Priority

	prev  int // pool index of the previous order at this price level
	next  int // pool index of the next order at this price level
	level int // pool index of the containing price level
}

// priceLevel is a FIFO queue of orders resting at one price, spliced
// into its side's price-sorted list (best price at the head). The list
// is a plain, non-circular doubly-linked list: the head/tail fields on
// Book give O(1) access to the best level without needing to wrap.
type priceLevel struct {
	side  protocol.Side
	price protocol.Price

	firstOrder int // pool index of the head order, or noLink if empty
	lastOrder  int // pool index of the tail order, for O(1) append

	prevLevel int // pool index of the next-more-aggressive level (toward head), or noLink
	nextLevel int // pool index of the next-less-aggressive level (toward tail), or noLink

	lastPriority protocol.Priority // priority assigned to the most recently added order at this price

	totalQty int64 // sum of resting quantities, for BBO without a scan
	count    int   // number of orders at this level
}
