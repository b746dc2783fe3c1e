package tcpsession

import (
	"context"
	"testing"
	"time"

	"github.com/femtoex/femtoex/internal/xlog"
)

func newTestLogger(t *testing.T) *xlog.Logger {
	t.Helper()
	log, err := xlog.New("tcpsession-test")
	if err != nil {
		t.Fatalf("xlog.New: %v", err)
	}
	return log
}

func TestServeForwardsReceivedBytes(t *testing.T) {
	log := newTestLogger(t)
	srv, err := Listen("127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	clientSess, clientEvents, _, err := Dial(srv.listener.Addr().String(), log)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientSess.Close()

	clientSess.Send([]byte("ping"))

	select {
	case ev := <-srv.Events:
		if string(ev.Data) != "ping" {
			t.Fatalf("server got %q, want %q", ev.Data, "ping")
		}
		ev.Session.Send([]byte("pong"))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server to observe the client's bytes")
	}

	select {
	case ev := <-clientEvents:
		if string(ev.Data) != "pong" {
			t.Fatalf("client got %q, want %q", ev.Data, "pong")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the client to observe the server's reply")
	}
}

func TestDisconnectIsReported(t *testing.T) {
	log := newTestLogger(t)
	srv, err := Listen("127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	clientSess, _, _, err := Dial(srv.listener.Addr().String(), log)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	clientSess.Close()

	select {
	case <-srv.Disconnects:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a disconnect notification")
	}
}
