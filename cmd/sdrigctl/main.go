// Command sdrigctl opens one connection, runs discovery, and prints every
// module the registry heard from, mirroring the teacher's flag-based
// cmd/sdo_client layout (no cobra, no subcommand framework).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sdrig/sdrig-go"
)

func main() {
	iface := flag.String("i", "eth0", "ethernet interface (e.g. eth0, eth0.100)")
	streamID := flag.Uint64("stream", 0, "AVTP stream id")
	dbcPath := flag.String("dbc", "", "path to the DBC signal catalog")
	linEnabled := flag.Bool("lin", false, "enable LIN operations on connected IfMux devices")
	debug := flag.Bool("debug", false, "verbose per-frame logging")
	waitSeconds := flag.Int("wait", 3, "discovery collection window, seconds")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := sdrig.NewConfig(
		sdrig.WithInterface(*iface),
		sdrig.WithStreamID(*streamID),
		sdrig.WithDBCPath(*dbcPath),
		sdrig.WithLinEnabled(*linEnabled),
		sdrig.WithDebug(*debug),
	)

	client, err := sdrig.New(cfg, logger)
	if err != nil {
		logger.Error("failed to open connection", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Start(ctx); err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer client.Stop()

	macs, err := client.Discover(ctx, time.Duration(*waitSeconds)*time.Second)
	if err != nil {
		logger.Error("discovery failed", "error", err)
		os.Exit(1)
	}

	for _, mac := range macs {
		entry, ok := client.Registry().Get(mac)
		if !ok {
			continue
		}
		fmt.Printf("%x  kind=%-7s app=%-24s hw=%-24s ip=%s\n",
			mac, entry.Kind, entry.AppName, entry.HardwareName, entry.IPAddress)
	}
}
