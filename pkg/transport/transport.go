// Package transport binds the AVTP framer to a raw Ethernet interface: one
// synchronous sender and one background receive loop with a toggleable
// stream-ID filter, grounded on the teacher's socketcanv3 bus (context +
// WaitGroup receive goroutine, slog logging, cooperative shutdown) but
// carried over raw L2 sockets via gopacket/afpacket instead of SocketCAN.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"github.com/sdrig/sdrig-go/pkg/avtp"
)

// Errors surfaced at the C4 boundary (spec.md §4.4, §7).
var (
	ErrMacUnavailable          = errors.New("transport: interface MAC unavailable")
	ErrReceiverShutdownTimeout = errors.New("transport: receiver did not stop within the shutdown bound")
	ErrAlreadyReceiving        = errors.New("transport: already receiving")
	ErrNotReceiving            = errors.New("transport: not receiving")
)

// ReceiverShutdownBound is the cooperative join timeout for stop_receiving,
// per spec.md §4.4/§5.
const ReceiverShutdownBound = 5 * time.Second

// snaplen covers the largest NTSCF frame this module ever builds or parses
// with room to spare: 14-byte Ethernet header + 13-byte AVTP common header +
// at most 4095 payload bytes (data_length is a 12-bit field).
const snaplen = 65536

// FrameHandler receives one parsed AVTP frame, already validated by
// avtp.Parse (ethertype, subtype, length, optional stream-id filter).
type FrameHandler func(avtp.Frame)

// Transport owns a raw Ethernet handle bound to one interface: synchronous
// sends, and a single background receiver goroutine.
type Transport struct {
	ifaceName string
	srcMAC    [6]byte
	tpacket   *afpacket.TPacket

	logger *slog.Logger

	sendMu sync.Mutex
	pcap   *PcapRecorder

	recvMu     sync.Mutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	receiving  bool

	rxDropsLength uint64
	rxDropsOther  uint64
	rxAccepted    uint64
}

// Open resolves ifaceName's MAC address and opens an AF_PACKET handle bound
// to it, applying the scapy-style dotted-VLAN fallback spec.md §4.2
// describes: if the interface's own MAC is the zero address (or its lookup
// fails) and its name contains a dot, retry against the parent interface
// before the dot; if that also yields no MAC, fail with ErrMacUnavailable.
func Open(ifaceName string, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mac, err := resolveMAC(ifaceName)
	if err != nil {
		return nil, err
	}

	tpacket, err := afpacket.NewTPacket(
		afpacket.OptInterface(ifaceName),
		afpacket.OptFrameSize(4096),
		afpacket.OptBlockSize(4096*128),
		afpacket.OptNumBlocks(4),
		afpacket.OptPollTimeout(100*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", ifaceName, err)
	}

	return &Transport{
		ifaceName: ifaceName,
		srcMAC:    mac,
		tpacket:   tpacket,
		logger:    logger.With("component", "transport", "iface", ifaceName),
	}, nil
}

func resolveMAC(ifaceName string) ([6]byte, error) {
	var zero [6]byte
	mac, zeroed, err := lookupMAC(ifaceName)
	if err == nil && !zeroed {
		return mac, nil
	}
	if dot := strings.IndexByte(ifaceName, '.'); dot > 0 {
		parent := ifaceName[:dot]
		mac, zeroed, perr := lookupMAC(parent)
		if perr == nil && !zeroed {
			return mac, nil
		}
		return zero, ErrMacUnavailable
	}
	if err != nil {
		return zero, err
	}
	return zero, ErrMacUnavailable
}

func lookupMAC(name string) ([6]byte, bool, error) {
	var mac [6]byte
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return mac, false, err
	}
	copy(mac[:], iface.HardwareAddr)
	zeroed := mac == [6]byte{}
	return mac, zeroed, nil
}

// SourceMAC returns the interface MAC resolved at Open time.
func (t *Transport) SourceMAC() [6]byte { return t.srcMAC }

// Send builds one NTSCF frame addressed to dstMAC and writes it synchronously.
// Callers own sequence number bookkeeping (spec.md §5: "sequence number
// counter... owned by the sending component").
func (t *Transport) Send(dstMAC [6]byte, sequence uint8, streamID uint64, acfPayload []byte) error {
	raw := avtp.Build(dstMAC, t.srcMAC, sequence, streamID, acfPayload)
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.pcap != nil {
		if err := t.pcap.Capture(raw); err != nil {
			t.logger.Warn("pcap capture failed", "error", err)
		}
	}
	return t.tpacket.WritePacketData(raw)
}

// SendRaw builds and sends an ACF-CAN Brief frame carrying an arbitrary CAN
// identifier/payload without going through a device shadow, for bus
// sniffing/diagnostics (the Go equivalent of the Python SDK's
// scripts/can_send.py, SPEC_FULL.md §4.11).
func (t *Transport) SendRaw(dstMAC [6]byte, sequence uint8, streamID uint64, busID uint8, canID uint32, data []byte) error {
	block := avtp.BuildCANBrief(busID, canID, data, 0)
	return t.Send(dstMAC, sequence, streamID, block)
}

// StartReceiving launches the background receive goroutine. filterStreamID
// selects whether frames are matched against streamID (normal operation,
// spec.md §4.4) or accepted from any stream (discovery).
func (t *Transport) StartReceiving(streamID uint64, filterStreamID bool, handler FrameHandler) error {
	t.recvMu.Lock()
	defer t.recvMu.Unlock()
	if t.receiving {
		return ErrAlreadyReceiving
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.receiving = true

	var filter *uint64
	if filterStreamID {
		filter = &streamID
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.receiveLoop(ctx, filter, handler)
	}()
	return nil
}

// StopReceiving cancels the background goroutine and waits up to
// ReceiverShutdownBound for it to exit, per spec.md §4.4/§5.
func (t *Transport) StopReceiving() error {
	t.recvMu.Lock()
	if !t.receiving {
		t.recvMu.Unlock()
		return ErrNotReceiving
	}
	cancel := t.cancel
	t.recvMu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.recvMu.Lock()
		t.receiving = false
		t.recvMu.Unlock()
		return nil
	case <-time.After(ReceiverShutdownBound):
		t.logger.Warn("receiver did not stop within bound", "bound", ReceiverShutdownBound)
		return ErrReceiverShutdownTimeout
	}
}

func (t *Transport) receiveLoop(ctx context.Context, filter *uint64, handler FrameHandler) {
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("receiver stopped")
			return
		default:
		}

		data, _, err := t.tpacket.ZeroCopyReadPacketData()
		if err != nil {
			// OptPollTimeout causes a recurring, expected empty read; it is
			// not a drop, just a chance to check ctx.Done again.
			continue
		}
		if len(data) == 0 {
			continue
		}

		frame, err := avtp.Parse(data, filter)
		if err != nil {
			if errors.Is(err, avtp.ErrBadDataLength) || errors.Is(err, avtp.ErrFrameTooShort) {
				atomic.AddUint64(&t.rxDropsLength, 1)
			} else {
				atomic.AddUint64(&t.rxDropsOther, 1)
			}
			continue
		}

		atomic.AddUint64(&t.rxAccepted, 1)
		handler(frame)
	}
}

// RxDropsLength is the rx_drops_length counter from spec.md §8 scenario 6.
func (t *Transport) RxDropsLength() uint64 { return atomic.LoadUint64(&t.rxDropsLength) }

// RxDropsOther counts frames dropped for any other reason (wrong ethertype,
// subtype, or stream-id mismatch).
func (t *Transport) RxDropsOther() uint64 { return atomic.LoadUint64(&t.rxDropsOther) }

// RxAccepted counts frames successfully parsed and handed to the callback.
func (t *Transport) RxAccepted() uint64 { return atomic.LoadUint64(&t.rxAccepted) }

// Close releases the underlying AF_PACKET handle. Callers must StopReceiving
// first if a receive loop is running.
func (t *Transport) Close() error {
	t.tpacket.Close()
	return nil
}
