// Command exchange runs one femtoex matching engine process: the
// order gateway, the FIFO sequencer, one limit order book per
// configured instrument, the matching engine dispatch loop, the
// market-data publisher and the snapshot synthesizer, all joined under
// a single runctl.Group.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/femtoex/femtoex/internal/config"
	"github.com/femtoex/femtoex/internal/gateway"
	"github.com/femtoex/femtoex/internal/mcast"
	"github.com/femtoex/femtoex/internal/matching"
	"github.com/femtoex/femtoex/internal/orderbook"
	"github.com/femtoex/femtoex/internal/protocol"
	"github.com/femtoex/femtoex/internal/ring"
	"github.com/femtoex/femtoex/internal/runctl"
	"github.com/femtoex/femtoex/internal/sequencer"
	"github.com/femtoex/femtoex/internal/tcpsession"
	"github.com/femtoex/femtoex/internal/xlog"

	"github.com/femtoex/femtoex/internal/marketdata/publisher"
	"github.com/femtoex/femtoex/internal/marketdata/snapshot"
)

func main() {
	cfg := config.Default()

	log, err := xlog.New("exchange")
	if err != nil {
		panic(err)
	}
	stopLogger := log.Start(10 * time.Millisecond)
	defer stopLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requests := ring.New[protocol.MEClientRequest](config.RingCapacity)
	responses := ring.New[protocol.MEClientResponse](config.RingCapacity)
	updates := ring.New[protocol.MEMarketUpdate](config.RingCapacity)
	toSnapshot := ring.New[protocol.MEMarketUpdate](config.RingCapacity)

	engine := matching.NewEngine(requests, responses, updates, log)
	for t := protocol.TickerID(0); t < config.MaxInstruments; t++ {
		book := orderbook.NewBook(t, config.MaxOrdersPerInstrument, config.MaxPriceLevels, config.MaxClients, config.MaxOrderIDsPerClient)
		engine.RegisterBook(t, book)
	}

	server, err := tcpsession.Listen(cfg.OrderGatewayAddr, log)
	if err != nil {
		panic(err)
	}
	seq := sequencer.New(config.SequencerScratchCapacity, requests)
	gw := gateway.New(server, seq, responses, log)

	incrementalSock, err := mcast.Dial(cfg.IncrementalMcastAddr)
	if err != nil {
		panic(err)
	}
	pub := publisher.New(updates, toSnapshot, incrementalSock, log)

	snapshotSock, err := mcast.Dial(cfg.SnapshotMcastAddr)
	if err != nil {
		panic(err)
	}
	synth := snapshot.New(toSnapshot, snapshotSock, config.SnapshotCadenceSeconds*time.Second)

	group, gctx := runctl.New(ctx)
	group.Go(func(ctx context.Context) error { return engine.Run(ctx) })
	group.Go(func(ctx context.Context) error { return server.Serve(ctx) })
	group.Go(func(ctx context.Context) error { return gw.Run(ctx) })
	group.Go(func(ctx context.Context) error { return pub.Run(ctx) })
	group.Go(func(ctx context.Context) error { return synth.Run(ctx) })

	fmt.Printf("femtoex exchange listening on %s (incremental %s, snapshot %s)\n",
		cfg.OrderGatewayAddr, cfg.IncrementalMcastAddr, cfg.SnapshotMcastAddr)

	<-gctx.Done()
	if err := group.Wait(); err != nil {
		log.Error("exchange: a component exited with an error")
	}
}
