// Package gateway implements the order gateway server: the single
// network thread that reassembles fixed-width OMClientRequest frames
// off each client's TCP session, binds a client to its session on
// first sight, enforces per-client sequence numbers, hands validated
// requests to the FIFO sequencer, and drains the matching engine's
// responses ring back out to the right session.
package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/config"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/sequencer"
	"github.com/femtoex/femtoex/internal/tcpsession"
	"github.com/femtoex/femtoex/internal/xlog"
)

// Gateway is the order-server network thread: exactly one per exchange
// process.
type Gateway struct {
	server    *tcpsession.Server
	seq       *sequencer.Sequencer
	responses *ring.Buffer[protocol.MEClientResponse]
	log       *xlog.Logger

	sessionOf   [config.MaxClients]*tcpsession.Session
	expectedSeq [config.MaxClients]uint64
	outgoingSeq [config.MaxClients]uint64

	carry map[*tcpsession.Session][]byte
}

// New wires a Gateway to its TCP server, FIFO sequencer and the
// responses ring the matching engine writes to.
func New(server *tcpsession.Server, seq *sequencer.Sequencer, responses *ring.Buffer[protocol.MEClientResponse], log *xlog.Logger) *Gateway {
	g := &Gateway{
		server:    server,
		seq:       seq,
		responses: responses,
		log:       log,
		carry:     make(map[*tcpsession.Session][]byte),
	}
	for i := range g.expectedSeq {
		g.expectedSeq[i] = 1
		g.outgoingSeq[i] = 1
	}
	return g
}

// Run is the gateway's single-threaded loop: drain whatever session
// events are currently queued as one batch, sequence and publish them
// once, handle disconnects, and drain the responses ring back out to
// clients, until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-g.server.Events:
			g.handleRecv(ev)
		drainBatch:
			for {
				select {
				case ev := <-g.server.Events:
					g.handleRecv(ev)
				default:
					break drainBatch
				}
			}
			g.seq.SequenceAndPublish()
		case d := <-g.server.Disconnects:
			g.handleDisconnect(d)
		default:
		}

		g.drainResponses()
	}
}

// handleRecv appends received bytes to the session's reassembly buffer
// and peels off as many complete OMClientRequest frames as are
// available.
func (g *Gateway) handleRecv(ev tcpsession.RecvEvent) {
	buf := append(g.carry[ev.Session], ev.Data...)

	for len(buf) >= protocol.SizeOMClientRequest {
		frame := protocol.UnmarshalOMClientRequest(buf[:protocol.SizeOMClientRequest])
		buf = buf[protocol.SizeOMClientRequest:]
		g.handleFrame(ev.Session, ev.RxTimeNs, frame)
	}

	g.carry[ev.Session] = buf
}

// handleFrame validates one client request frame: the client id must
// be in range, the session must be the one already bound to that
// client (or becomes so on first sight), and the sequence number must
// be the next one expected from that client, before it is handed to
// the sequencer.
func (g *Gateway) handleFrame(sess *tcpsession.Session, rxTimeNs int64, frame protocol.OMClientRequest) {
	cid := frame.Request.ClientID
	if int(cid) < 0 || int(cid) >= config.MaxClients {
		g.log.Warn("gateway: request from out-of-range clientId, dropping", zap.Uint32("clientId", uint32(cid)))
		return
	}

	if g.sessionOf[cid] == nil {
		g.sessionOf[cid] = sess
	} else if g.sessionOf[cid] != sess {
		g.log.Warn("gateway: client seen on a different session, dropping", zap.Uint32("clientId", uint32(cid)))
		return
	}

	if frame.SeqNum != g.expectedSeq[cid] {
		g.log.Warn("gateway: out-of-sequence request, dropping",
			zap.Uint32("clientId", uint32(cid)),
			zap.Uint64("got", frame.SeqNum),
			zap.Uint64("want", g.expectedSeq[cid]))
		return
	}
	g.expectedSeq[cid]++

	g.seq.AddClientRequest(rxTimeNs, frame.Request)
}

// handleDisconnect drops any client binding and reassembly state tied
// to the now-closed session; the client may reconnect and the gateway
// will bind it to the new session on its next seen request.
func (g *Gateway) handleDisconnect(d tcpsession.Disconnect) {
	delete(g.carry, d.Session)
	for cid, sess := range g.sessionOf {
		if sess == d.Session {
			g.sessionOf[cid] = nil
		}
	}
}

// drainResponses forwards every currently queued response to its
// client's bound session, framed with that client's outgoing sequence
// number. A response for a client with no bound session is fatal: it
// can only happen if the matching engine accepted a request the
// gateway never actually bound to a session, a wiring invariant
// violation rather than a recoverable condition.
func (g *Gateway) drainResponses() {
	for {
		resp, ok := g.responses.TryPop()
		if !ok {
			return
		}

		cid := resp.ClientID
		if int(cid) < 0 || int(cid) >= config.MaxClients || g.sessionOf[cid] == nil {
			g.log.Error("gateway: no session bound for response's clientId", zap.Uint32("clientId", uint32(cid)))
			panic("gateway: missing session for outbound response")
		}

		wire := protocol.OMClientResponse{OutgoingSeqNum: g.outgoingSeq[cid], Response: resp}
		buf := make([]byte, protocol.SizeOMClientResponse)
		wire.Marshal(buf)
		g.sessionOf[cid].Send(buf)
		g.outgoingSeq[cid]++
	}
}
