// Package sdrig is the host-side control facade for UIO, ELoad and IfMux
// modules (spec.md §1): it owns one raw-Ethernet transport, one DBC signal
// codec, the device registry, the periodic-task scheduler and a connected
// device map, and exposes idempotent connect/disconnect plus discovery.
package sdrig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/avtp"
	"github.com/sdrig/sdrig-go/pkg/config"
	"github.com/sdrig/sdrig-go/pkg/dbc"
	"github.com/sdrig/sdrig-go/pkg/discovery"
	"github.com/sdrig/sdrig-go/pkg/eload"
	"github.com/sdrig/sdrig-go/pkg/ident"
	"github.com/sdrig/sdrig-go/pkg/ifmux"
	"github.com/sdrig/sdrig-go/pkg/metrics"
	"github.com/sdrig/sdrig-go/pkg/pgn"
	"github.com/sdrig/sdrig-go/pkg/scheduler"
	"github.com/sdrig/sdrig-go/pkg/transport"
	"github.com/sdrig/sdrig-go/pkg/uio"
)

// ModuleInfoHeartbeat and ParameterSnapshotCadence are the two scheduler
// cadences spec.md §8 scenario 4 names: a 9 s MODULE_INFO_REQ heartbeat
// (module dormancy threshold 10 s) and a 3 s full parameter snapshot
// (module auto-disable threshold 4 s).
const (
	ModuleInfoHeartbeat     = 9 * time.Second
	ParameterSnapshotCadence = 3 * time.Second
	watchdogTickPeriod       = 2 * time.Second
)

// kind tags which device-engine type a connected MAC holds.
type kind int

const (
	kindUIO kind = iota
	kindELoad
	kindIfMux
)

type connectedDevice struct {
	kind  kind
	dev   *devbase.Device
	uio   *uio.Engine
	eload *eload.Engine
	ifmux *ifmux.Engine
}

// Client is one open connection: a transport bound to an interface, a
// codec built from one DBC catalog, and every device connected on it.
type Client struct {
	cfg       *config.Config
	transport *transport.Transport
	codec     *dbc.Codec
	logger    *slog.Logger
	registry  *discovery.Registry
	sched     *scheduler.Scheduler
	counters  *metrics.Counters

	mu      sync.Mutex
	devices map[[6]byte]*connectedDevice

	onStale   func(mac [6]byte, entry discovery.Entry)
	staleSeen map[[6]byte]bool

	lastRxDropsLength uint64
	lastRxDropsOther  uint64
	lastRxAccepted    uint64

	started bool
}

// New opens cfg's interface, loads its DBC catalog, and returns a Client
// ready to Connect* devices and Start.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sdrig")

	catalog, err := dbc.ParseFile(cfg.DBCPath)
	if err != nil {
		return nil, fmt.Errorf("sdrig: loading dbc catalog: %w", err)
	}
	codec := dbc.NewCodec(catalog)

	t, err := transport.Open(cfg.Interface, logger)
	if err != nil {
		return nil, fmt.Errorf("sdrig: opening transport: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		transport: t,
		codec:     codec,
		logger:    logger,
		registry:  discovery.New(t, logger),
		sched:     scheduler.New(logger),
		counters:  metrics.New(),
		devices:   map[[6]byte]*connectedDevice{},
		staleSeen: map[[6]byte]bool{},
	}
	c.sched.Add(registryWatchdogTask, watchdogTickPeriod, c.watchdogTick)
	return c, nil
}

// Start begins receiving frames and runs the scheduler until ctx is
// cancelled or Stop is called.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.transport.StartReceiving(c.cfg.StreamID, true, c.handleFrame); err != nil {
		return err
	}
	c.sched.Start(ctx)
	return nil
}

// Stop stops the scheduler and the receive loop, within their respective
// cooperative shutdown bounds.
func (c *Client) Stop() error {
	c.sched.Stop()
	return c.transport.StopReceiving()
}

// Close releases the underlying transport handle. Callers should Stop
// first.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Discover broadcasts the discovery procedure (spec.md §3) and returns
// every MAC the registry has heard from once wait elapses. Start must
// already be running so inbound MODULE_INFO responses reach Apply; for the
// collection window the receive loop accepts frames from any stream, and
// Start's stream-id-filtered loop is restored before Discover returns.
func (c *Client) Discover(ctx context.Context, wait time.Duration) ([][6]byte, error) {
	if wait <= 0 {
		wait = c.cfg.DiscoverWait
	}
	if err := c.transport.StopReceiving(); err != nil {
		return nil, err
	}
	if err := c.transport.StartReceiving(c.cfg.StreamID, false, c.handleFrame); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.transport.StopReceiving(); err != nil {
			c.logger.Warn("stopping unfiltered discovery receive failed", "err", err)
			return
		}
		if err := c.transport.StartReceiving(c.cfg.StreamID, true, c.handleFrame); err != nil {
			c.logger.Warn("restoring filtered receive failed", "err", err)
		}
	}()
	return c.registry.Discover(ctx, c.cfg.StreamID, wait)
}

// SendRaw passes an arbitrary CAN id/payload straight to the transport,
// bypassing every device shadow (bus sniffing/diagnostics, SPEC_FULL.md
// §4.11).
func (c *Client) SendRaw(dstMAC [6]byte, busID uint8, canID uint32, data []byte) error {
	return c.transport.SendRaw(dstMAC, 0, c.cfg.StreamID, busID, canID, data)
}

func (c *Client) newDevice(mac [6]byte) *devbase.Device {
	return devbase.NewDevice(c.transport, c.codec, mac, c.cfg.StreamID, 0, c.logger)
}

// ConnectUIO idempotently connects mac as a UIO device: calling it twice
// for the same MAC returns the same engine.
func (c *Client) ConnectUIO(mac [6]byte) (*uio.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.devices[mac]; ok {
		if existing.kind != kindUIO {
			return nil, ErrAlreadyConnected
		}
		c.logger.Warn("uio already connected, returning existing engine", "mac", fmt.Sprintf("%x", mac))
		return existing.uio, nil
	}
	dev := c.newDevice(mac)
	engine := uio.New(dev)
	c.devices[mac] = &connectedDevice{kind: kindUIO, dev: dev, uio: engine}
	c.scheduleDeviceTasksLocked(mac, dev, engine.Snapshot)
	return engine, nil
}

// ConnectELoad idempotently connects mac as an ELoad device.
func (c *Client) ConnectELoad(mac [6]byte) (*eload.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.devices[mac]; ok {
		if existing.kind != kindELoad {
			return nil, ErrAlreadyConnected
		}
		c.logger.Warn("eload already connected, returning existing engine", "mac", fmt.Sprintf("%x", mac))
		return existing.eload, nil
	}
	dev := c.newDevice(mac)
	engine := eload.New(dev)
	c.devices[mac] = &connectedDevice{kind: kindELoad, dev: dev, eload: engine}
	c.scheduleDeviceTasksLocked(mac, dev, engine.Snapshot)
	return engine, nil
}

// ConnectIfMux idempotently connects mac as an IfMux device.
func (c *Client) ConnectIfMux(mac [6]byte) (*ifmux.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.devices[mac]; ok {
		if existing.kind != kindIfMux {
			return nil, ErrAlreadyConnected
		}
		c.logger.Warn("ifmux already connected, returning existing engine", "mac", fmt.Sprintf("%x", mac))
		return existing.ifmux, nil
	}
	dev := c.newDevice(mac)
	engine := ifmux.New(dev, c.cfg.LinEnabled)
	c.devices[mac] = &connectedDevice{kind: kindIfMux, dev: dev, ifmux: engine}
	c.scheduleDeviceTasksLocked(mac, dev, engine.Snapshot)
	return engine, nil
}

// scheduleDeviceTasksLocked registers mac's heartbeat and parameter
// snapshot tasks on the scheduler. Must be called with c.mu held.
//
// The snapshot task is the one periodic path that can tolerate the
// bundling window spec.md §4.2 describes (unlike the setter-triggered
// SendPhases path, nothing depends on the snapshot's messages landing
// as separate AVTP frames), so it accumulates each tick's encoded
// blocks through an avtp.Bundler and flushes once per tick instead of
// sending one frame per message.
func (c *Client) scheduleDeviceTasksLocked(mac [6]byte, dev *devbase.Device, snapshot func() []devbase.Message) {
	bundler := avtp.NewBundler(func(payload []byte) {
		if err := dev.SendBundledPayload(payload); err != nil {
			c.logger.Warn("bundled snapshot send failed", "mac", fmt.Sprintf("%x", mac), "err", err)
		}
	})

	name := fmt.Sprintf("%x-snapshot", mac)
	c.sched.Add(name, ParameterSnapshotCadence, func() error {
		for _, msg := range snapshot() {
			block, err := dev.EncodeBlock(msg)
			if err != nil {
				continue
			}
			bundler.Add(block)
		}
		bundler.FlushNow()
		return nil
	})

	heartbeatName := fmt.Sprintf("%x-heartbeat", mac)
	c.sched.Add(heartbeatName, ModuleInfoHeartbeat, func() error {
		block := avtp.BuildCANBrief(0, ident.Build(pgn.ModuleInfoReq, devbase.HostSourceAddress, devbase.BroadcastDestination, ident.DefaultPriority), nil, 0)
		return c.transport.Send(mac, 0, c.cfg.StreamID, block)
	})
}

// Disconnect removes mac's device and its scheduled tasks.
func (c *Client) Disconnect(mac [6]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.devices[mac]; !ok {
		return ErrUnknownDevice
	}
	delete(c.devices, mac)
	c.sched.Remove(fmt.Sprintf("%x-snapshot", mac))
	c.sched.Remove(fmt.Sprintf("%x-heartbeat", mac))
	return nil
}

// DisconnectAll removes every connected device and its scheduled tasks.
func (c *Client) DisconnectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for mac := range c.devices {
		delete(c.devices, mac)
		c.sched.Remove(fmt.Sprintf("%x-snapshot", mac))
		c.sched.Remove(fmt.Sprintf("%x-heartbeat", mac))
	}
}

// handleFrame is the C4 receive callback: it walks every ACF-CAN Brief
// block in the frame and routes each to the matching connected device's
// ApplyInbound, or to the registry if it carries a MODULE_INFO PGN.
func (c *Client) handleFrame(frame avtp.Frame) {
	avtp.IterCANBriefs(frame.ACFPayload, func(block avtp.CANBrief) {
		c.routeInbound(frame.SrcMAC, block)
	})
}

func (c *Client) routeInbound(srcMAC [6]byte, block avtp.CANBrief) {
	c.mu.Lock()
	device, ok := c.devices[srcMAC]
	c.mu.Unlock()

	pgnValue := ident.ExtractPGN(block.CANID)
	switch pgnValue {
	case pgn.ModuleInfoReq, pgn.ModuleInfoAns, pgn.ModuleInfoEx, pgn.ModuleInfoBoot:
		signals, _ := c.codec.DecodeByID(block.CANID, block.Data)
		c.registry.Apply(srcMAC, pgnValue, signals, time.Now())
		return
	}

	if !ok {
		if device, ok2 := c.ifmuxRawTarget(srcMAC); ok2 {
			device.DeliverRawCAN(int(block.BusID), block.CANID, block.Data)
		}
		return
	}

	signals, err := c.codec.DecodeByID(block.CANID, block.Data)
	if err != nil || len(signals) == 0 {
		c.counters.Inc(fmt.Sprintf("decode_drops:%05X", pgnValue))
	}

	switch device.kind {
	case kindUIO:
		device.uio.ApplyInbound(pgnValue, signals)
	case kindELoad:
		device.eload.ApplyInbound(pgnValue, signals)
	case kindIfMux:
		device.ifmux.ApplyInbound(pgnValue, signals)
		if len(signals) == 0 {
			device.ifmux.DeliverRawCAN(int(block.BusID), block.CANID, block.Data)
		}
	}
}

func (c *Client) ifmuxRawTarget(mac [6]byte) (*ifmux.Engine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[mac]
	if !ok || d.kind != kindIfMux {
		return nil, false
	}
	return d.ifmux, true
}
