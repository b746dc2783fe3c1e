// Package tcpsession implements a TCP session layer used by both the
// order gateway (server side) and an order-gateway client (client
// side). Each accepted connection gets its own goroutine whose only job
// is to Read and forward bytes onto a shared events channel; a single
// caller-owned goroutine then consumes that channel and drives the
// protocol on top.
package tcpsession

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/xlog"
)

// recvBufferSize bounds a single Read call; frame reassembly across
// reads (for fixed-width request/response records) is the caller's
// job, keeping this package limited to raw byte delivery.
const recvBufferSize = 64 * 1024

// Session wraps one accepted or dialed TCP connection. Send is safe
// for concurrent use; everything else is only ever touched by the
// single goroutine that owns the session's recv loop.
type Session struct {
	conn   net.Conn
	log    *xlog.Logger
	sendMu sync.Mutex

	// ID is an opaque identifier stable for the lifetime of the
	// connection, used in log lines: a per-server counter for accepted
	// connections, always 1 for a dialed one. The gateway binds clients
	// to sessions by *Session, not by ID.
	ID uint32
}

// Send writes data to the connection. A short write or any write
// error is logged and swallowed: send failures are not retried, and
// the caller continues.
func (s *Session) Send(data []byte) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	n, err := s.conn.Write(data)
	if err != nil {
		s.log.Warn("tcpsession: send failed", zap.Uint32("sessionId", s.ID), zap.Error(err))
		return
	}
	if n != len(data) {
		s.log.Warn("tcpsession: short write", zap.Uint32("sessionId", s.ID), zap.Int("wrote", n), zap.Int("wanted", len(data)))
	}
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// RecvEvent is one batch of bytes read from one session, paired with
// the wall-clock timestamp at which the read returned, which the FIFO
// sequencer uses to restore arrival order across sessions.
type RecvEvent struct {
	Session  *Session
	Data     []byte
	RxTimeNs int64
}

// Disconnect reports that a session's recv loop has ended.
type Disconnect struct {
	Session *Session
	Err     error
}
