// Package pool implements a fixed-size object pool: cursor-based
// allocate and O(1) deallocate of domain objects from a preallocated
// array, with no runtime heap traffic on the hot path. A single generic type backs
// every arena in the system (order book orders and price levels alike).
package pool

import "fmt"

// block wraps a pooled object with its free/used bit.
type block[T any] struct {
	obj    T
	isFree bool
}

// Pool is a preallocated vector of blocks plus a rotating next-free
// cursor. Allocation scans from the cursor, wrapping, for the first free
// block, hands back its index and moves the cursor just past it; this is
// O(1) when the cursor addresses a free block and up to O(capacity)
// otherwise. Exhaustion is fatal — the caller
// is expected to let Allocate's panic propagate to the top of its
// goroutine's run loop and bring the process down.
type Pool[T any] struct {
	blocks []block[T]
	next   int
	free   int // number of free blocks remaining
	name   string
}

// New preallocates a pool of the given capacity. name is used only to
// make an exhaustion panic legible (e.g. "orders", "price-levels").
func New[T any](capacity int, name string) *Pool[T] {
	blocks := make([]block[T], capacity)
	for i := range blocks {
		blocks[i].isFree = true
	}
	return &Pool[T]{blocks: blocks, free: capacity, name: name}
}

// Capacity returns the total number of blocks owned by the pool.
func (p *Pool[T]) Capacity() int {
	return len(p.blocks)
}

// Free returns the number of blocks not currently allocated.
func (p *Pool[T]) Free() int {
	return p.free
}

// Allocate returns the index of a free block and marks it used. It
// panics if the pool is exhausted — pool exhaustion is a design-time
// sizing error, not a runtime condition callers are expected to handle.
func (p *Pool[T]) Allocate() int {
	if p.free == 0 {
		panic(fmt.Sprintf("pool %q exhausted: capacity %d", p.name, len(p.blocks)))
	}
	n := len(p.blocks)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if p.blocks[idx].isFree {
			p.blocks[idx].isFree = false
			p.next = (idx + 1) % n
			p.free--
			var zero T
			p.blocks[idx].obj = zero
			return idx
		}
	}
	// Unreachable if p.free was accurate, but guards against drift.
	panic(fmt.Sprintf("pool %q exhausted: capacity %d", p.name, len(p.blocks)))
}

// Get returns a pointer to the object stored at idx. The caller must
// only call this with an index it currently owns (returned by Allocate
// and not yet Deallocate'd).
func (p *Pool[T]) Get(idx int) *T {
	return &p.blocks[idx].obj
}

// Deallocate returns the block at idx to the pool. It requires idx to
// address a block owned by this pool and currently allocated.
func (p *Pool[T]) Deallocate(idx int) {
	if idx < 0 || idx >= len(p.blocks) {
		panic(fmt.Sprintf("pool %q: index %d out of range", p.name, idx))
	}
	if p.blocks[idx].isFree {
		panic(fmt.Sprintf("pool %q: double free of index %d", p.name, idx))
	}
	p.blocks[idx].isFree = true
	p.free++
}

// IsFree reports whether idx currently addresses an unallocated block.
func (p *Pool[T]) IsFree(idx int) bool {
	return p.blocks[idx].isFree
}
