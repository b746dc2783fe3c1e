package orderbook

import "github.com/femtoex/femtoex/internal/protocol"

// clientOrderIndex is the per-book (clientId, clientOrderId) -> order
// mapping, backed by a flat preallocated array sized
// maxClients x maxOrderIDs rather than a hash map, giving O(1) lookup
// for cancel without per-entry allocation. A zero entry means "no
// resting order"; entries store the order pool index plus one so that
// pool index 0 (a valid index) is distinguishable from "absent".
//
// ClientOrderID values are assumed to fall within [0, maxOrderIDs) for
// a given client; an out-of-range id is treated the same as "not
// found" (surfaces as CANCEL_REJECTED) rather than panicking, since an
// unknown order id is a normal business rejection, not a resource
// exhaustion condition.
type clientOrderIndex struct {
	maxClients  int
	maxOrderIDs int
	table       []int32
}

func newClientOrderIndex(maxClients, maxOrderIDs int) *clientOrderIndex {
	return &clientOrderIndex{
		maxClients:  maxClients,
		maxOrderIDs: maxOrderIDs,
		table:       make([]int32, maxClients*maxOrderIDs),
	}
}

func (c *clientOrderIndex) slot(clientID protocol.ClientID, orderID protocol.ClientOrderID) (int, bool) {
	ci, oi := int(clientID), int(orderID)
	if ci < 0 || ci >= c.maxClients || oi < 0 || oi >= c.maxOrderIDs {
		return 0, false
	}
	return ci*c.maxOrderIDs + oi, true
}

// Set records that (clientID, orderID) now resolves to the order at
// poolIdx. It is a no-op (silently dropped, not fatal) if the ids fall
// outside the preallocated range.
func (c *clientOrderIndex) Set(clientID protocol.ClientID, orderID protocol.ClientOrderID, poolIdx int) {
	if idx, ok := c.slot(clientID, orderID); ok {
		c.table[idx] = int32(poolIdx) + 1
	}
}

// Get returns the order pool index for (clientID, orderID) and whether
// an entry exists — an entry is present iff the corresponding order is
// currently resting in the book.
func (c *clientOrderIndex) Get(clientID protocol.ClientID, orderID protocol.ClientOrderID) (int, bool) {
	idx, ok := c.slot(clientID, orderID)
	if !ok {
		return 0, false
	}
	v := c.table[idx]
	if v == 0 {
		return 0, false
	}
	return int(v - 1), true
}

// Clear removes the (clientID, orderID) entry.
func (c *clientOrderIndex) Clear(clientID protocol.ClientID, orderID protocol.ClientOrderID) {
	if idx, ok := c.slot(clientID, orderID); ok {
		c.table[idx] = 0
	}
}
