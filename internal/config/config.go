// Package config holds the process-wide capacity constants that must
// agree on every side of every wire interface, plus the small literal
// Config consumed by cmd/exchange and cmd/participant. There is
// deliberately no CLI/env parsing here.
package config

// Fixed capacities shared by every component that indexes by them.
const (
	// MaxInstruments bounds TickerID; books, position slots and risk
	// rows are all indexable by TickerID without a lookup.
	MaxInstruments = 8

	// MaxClients bounds ClientID for the client-order index.
	MaxClients = 256

	// MaxOrderIDsPerClient bounds ClientOrderID for the client-order
	// index (sized by MaxClients x MaxOrderIDsPerClient). Scaled down
	// from a production exchange's limit to keep the demo's
	// preallocated arrays in the tens of megabytes.
	MaxOrderIDsPerClient = 1 << 12

	// MaxOrdersPerInstrument sizes each instrument's order pool.
	MaxOrdersPerInstrument = 1 << 20

	// MaxPriceLevels bounds how many simultaneous price levels may
	// exist per instrument, bids and asks together (see DESIGN.md for the
	// collision-free price-to-level indexing this bounds).
	MaxPriceLevels = 1 << 16

	// RingCapacity is the slot count for the requests, responses,
	// updates, publisher-to-snapshot and participant book-update rings.
	// The logger's own ring is sized separately in internal/xlog.
	RingCapacity = 1 << 16

	// SequencerScratchCapacity bounds the number of requests the FIFO
	// sequencer may accumulate within a single poll batch before
	// publishing; overflow here is fatal.
	SequencerScratchCapacity = 1 << 12

	// SnapshotCadenceSeconds is how often the snapshot synthesizer
	// publishes a new snapshot cycle.
	SnapshotCadenceSeconds = 60
)

// Config is the literal, code-level configuration for one exchange
// process or one participant process.
type Config struct {
	// OrderGatewayAddr is the TCP listen address for the order gateway
	// server.
	OrderGatewayAddr string

	// IncrementalMcastAddr / SnapshotMcastAddr are "ip:port" multicast
	// group addresses for the incremental and snapshot channels.
	IncrementalMcastAddr string
	SnapshotMcastAddr    string

	// Iface is the network interface multicast group membership is
	// joined on; empty selects the default interface.
	Iface string
}

// Default returns the configuration used by the bundled cmd/exchange and
// cmd/participant entry points.
func Default() Config {
	return Config{
		OrderGatewayAddr:     "127.0.0.1:9000",
		IncrementalMcastAddr: "239.0.0.1:20000",
		SnapshotMcastAddr:    "239.0.0.2:20001",
		Iface:                "",
	}
}
