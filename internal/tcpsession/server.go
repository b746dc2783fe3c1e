package tcpsession

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/xlog"
)

// eventBacklog bounds how many RecvEvents may be queued ahead of the
// single consuming network thread before a producing goroutine blocks
// on its send — a backpressure valve, not a ring (multiple
// per-connection goroutines fan into one channel, which is not a
// single-producer shape).
const eventBacklog = 4096

// Server accepts TCP connections and fans their received bytes into a
// single Events channel, so that all session I/O across every client
// is still observed by exactly one consumer goroutine, even though each
// connection's blocking Read runs on its own goroutine.
type Server struct {
	listener net.Listener
	log      *xlog.Logger

	Events      chan RecvEvent
	Disconnects chan Disconnect

	nextID uint32
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, log *xlog.Logger) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:    l,
		log:         log,
		Events:      make(chan RecvEvent, eventBacklog),
		Disconnects: make(chan Disconnect, eventBacklog),
	}, nil
}

// Serve accepts connections until ctx is canceled or Accept fails.
// Each accepted connection gets its own recv goroutine; Serve itself
// returns once the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		sess := &Session{conn: conn, log: s.log, ID: atomic.AddUint32(&s.nextID, 1)}
		go s.recvLoop(sess)
	}
}

// Dial connects to addr and returns a Session plus the events and
// disconnects channels that a background read goroutine feeds with the
// session's received bytes and its closure, for use by a client
// connecting to an order gateway.
func Dial(addr string, log *xlog.Logger) (*Session, chan RecvEvent, chan Disconnect, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, nil, nil, err
	}
	events := make(chan RecvEvent, eventBacklog)
	disconnects := make(chan Disconnect, 1)
	sess := &Session{conn: conn, log: log, ID: 1}

	go func() {
		recvLoopInto(sess, events, disconnects)
	}()

	return sess, events, disconnects, nil
}

func (s *Server) recvLoop(sess *Session) {
	recvLoopInto(sess, s.Events, s.Disconnects)
}

// recvLoopInto is the per-connection blocking read loop: each Read
// that returns data is timestamped and forwarded as one RecvEvent.
func recvLoopInto(sess *Session, events chan<- RecvEvent, disconnects chan<- Disconnect) {
	buf := make([]byte, recvBufferSize)
	for {
		n, err := sess.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			events <- RecvEvent{Session: sess, Data: data, RxTimeNs: time.Now().UnixNano()}
		}
		if err != nil {
			sess.log.Info("tcpsession: connection closed", zap.Uint32("sessionId", sess.ID), zap.Error(err))
			disconnects <- Disconnect{Session: sess, Err: err}
			return
		}
	}
}

// Close closes the listener, causing Serve to return.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Addr returns the listener's bound address, useful when Listen was
// given port 0 and the actual port must be discovered.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
