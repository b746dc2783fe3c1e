// Package mcast implements a UDP multicast datagram transport, used by
// the market-data publisher, the snapshot synthesizer, and the
// consumer's recovery path.
package mcast

import (
	"net"
	"time"
)

// recvBufferSize bounds a single UDP multicast datagram; every
// MDPMarketUpdate frame fits comfortably inside it.
const recvBufferSize = 64 * 1024

// pollTimeout is how long a single Recv call blocks waiting for a
// datagram before returning, allowing callers to check for
// cancellation between reads without a dedicated select goroutine.
const pollTimeout = 100 * time.Millisecond

// Socket is a joined multicast group, usable for sending or receiving
// (never both directions on the incremental/snapshot channels in
// practice, but the type does not enforce that split).
type Socket struct {
	conn *net.UDPConn
	addr *net.UDPAddr
	buf  []byte
}

// Join resolves groupAddr ("ip:port") and joins it on iface (empty for
// the default interface), returning a Socket ready to Recv. This is
// the receive-side equivalent of init+join in mcast_socket.cpp.
func Join(groupAddr string, iface string) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", groupAddr)
	if err != nil {
		return nil, err
	}

	var ifi *net.Interface
	if iface != "" {
		ifi, err = net.InterfaceByName(iface)
		if err != nil {
			return nil, err
		}
	}

	conn, err := net.ListenMulticastUDP("udp", ifi, addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(recvBufferSize)

	return &Socket{conn: conn, addr: addr, buf: make([]byte, recvBufferSize)}, nil
}

// Dial resolves groupAddr and returns a Socket usable only for Send —
// the sender of a multicast group does not join it, it merely targets
// the group address in each datagram (init without join, per
// mcast_socket.cpp's is_listening=false path).
func Dial(groupAddr string) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", groupAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	return &Socket{conn: conn, addr: addr}, nil
}

// Send copies data into a single datagram addressed to the group.
func (s *Socket) Send(data []byte) error {
	_, err := s.conn.WriteToUDP(data, s.addr)
	return err
}

// Recv blocks up to pollTimeout for one datagram and returns its
// payload (a slice into the Socket's reusable buffer, valid only until
// the next Recv call) and whether one arrived. A timeout is reported
// as (nil, false, nil) so callers can loop and re-check cancellation,
// matching sendAndRecv's non-blocking poll semantics.
func (s *Socket) Recv() ([]byte, bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		return nil, false, err
	}
	n, err := s.conn.Read(s.buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	return s.buf[:n], true, nil
}

// Leave closes the socket, dropping group membership.
func (s *Socket) Leave() error {
	return s.conn.Close()
}
