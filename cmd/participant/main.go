// Command participant runs a minimal femtoex market participant: it
// connects to the order gateway, sends a handful of sample orders, and
// runs the market-data consumer, logging every reconciled update.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/config"
	"github.com/femtoex/femtoex/internal/marketdata/consumer"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/runctl"
	"github.com/femtoex/femtoex/internal/tcpsession"
	"github.com/femtoex/femtoex/internal/xlog"
)

const participantClientID protocol.ClientID = 1

func main() {
	cfg := config.Default()

	log, err := xlog.New("participant")
	if err != nil {
		panic(err)
	}
	stopLogger := log.Start(10 * time.Millisecond)
	defer stopLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, events, disconnects, err := tcpsession.Dial(cfg.OrderGatewayAddr, log)
	if err != nil {
		panic(err)
	}

	bookUpdates := ring.New[protocol.MEMarketUpdate](config.RingCapacity)
	mdConsumer, err := consumer.New(cfg.IncrementalMcastAddr, cfg.SnapshotMcastAddr, cfg.Iface, bookUpdates, log)
	if err != nil {
		panic(err)
	}

	group, gctx := runctl.New(ctx)
	group.Go(func(ctx context.Context) error { return mdConsumer.Run(ctx) })
	group.Go(func(ctx context.Context) error { return reportResponses(ctx, events, log) })
	group.Go(func(ctx context.Context) error { return reportBookUpdates(ctx, bookUpdates, log) })
	group.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		case d := <-disconnects:
			log.Warn("participant: gateway session closed")
			_ = d
		}
		return nil
	})

	sendSampleOrders(sess)

	fmt.Println("femtoex participant connected to", cfg.OrderGatewayAddr)

	<-gctx.Done()
	_ = group.Wait()
}

func sendSampleOrders(sess *tcpsession.Session) {
	orders := []protocol.MEClientRequest{
		{Type: protocol.RequestNew, ClientID: participantClientID, TickerID: 0, OrderID: 1, Side: protocol.SideBuy, Price: 100, Qty: 10},
		{Type: protocol.RequestNew, ClientID: participantClientID, TickerID: 0, OrderID: 2, Side: protocol.SideSell, Price: 101, Qty: 5},
		{Type: protocol.RequestCancel, ClientID: participantClientID, TickerID: 0, OrderID: 1},
	}

	for i, req := range orders {
		frame := protocol.OMClientRequest{SeqNum: uint64(i) + 1, Request: req}
		buf := make([]byte, protocol.SizeOMClientRequest)
		frame.Marshal(buf)
		sess.Send(buf)
	}
}

func reportResponses(ctx context.Context, events <-chan tcpsession.RecvEvent, log *xlog.Logger) error {
	var carry []byte
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			carry = append(carry, ev.Data...)
			for len(carry) >= protocol.SizeOMClientResponse {
				frame := protocol.UnmarshalOMClientResponse(carry[:protocol.SizeOMClientResponse])
				carry = carry[protocol.SizeOMClientResponse:]
				log.Info("participant: response",
					zap.Uint8("type", uint8(frame.Response.Type)),
					zap.Uint64("clientOrderId", uint64(frame.Response.ClientOrderID)),
					zap.Uint32("execQty", uint32(frame.Response.ExecQty)),
					zap.Uint32("leavesQty", uint32(frame.Response.LeavesQty)))
			}
		}
	}
}

func reportBookUpdates(ctx context.Context, bookUpdates *ring.Buffer[protocol.MEMarketUpdate], log *xlog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		upd, ok := bookUpdates.TryPop()
		if !ok {
			continue
		}
		log.Info("participant: book update",
			zap.Uint8("type", uint8(upd.Type)),
			zap.Uint32("tickerId", uint32(upd.TickerID)),
			zap.Int64("price", int64(upd.Price)),
			zap.Uint32("qty", uint32(upd.Qty)))
	}
}
