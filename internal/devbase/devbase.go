// Package devbase holds the state shared by the three device engines
// (pkg/uio, pkg/eload, pkg/ifmux): feature-state enums, the shadow's
// last-sent/last-measured value pair, and a Device base that wires a
// transport + codec pair into a three-phase command send, grounded on
// the teacher's TPDO (pkg/pdo/tpdo.go: mutex-guarded send state, slog
// per-component logger) generalized from one periodic PDO to an
// arbitrary named outbound message.
package devbase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sdrig/sdrig-go/pkg/avtp"
	"github.com/sdrig/sdrig-go/pkg/dbc"
	"github.com/sdrig/sdrig-go/pkg/ident"
)

// Sender is the narrow interface Device needs from pkg/transport.Transport;
// accepting it here (rather than the concrete type) lets device-engine
// tests exercise Send without an open raw-Ethernet handle.
type Sender interface {
	Send(dstMAC [6]byte, sequence uint8, streamID uint64, acfPayload []byte) error
}

// ErrOutOfRange is raised at the device-engine boundary before any shadow
// write, per spec.md §4.6.
var ErrOutOfRange = errors.New("devbase: value out of range")

// HostSourceAddress is this module's own J1939 source address, used as the
// SA field of every outbound identifier. 0xF9 is the conventional
// off-board diagnostic tool address in the J1939 address table.
const HostSourceAddress uint8 = 0xF9

// BroadcastDestination is used as the DA field whenever a Device's
// NodeAddress is 0 (spec.md §9 leaves the exact addressing scheme open).
// Nothing in this module sets NodeAddress, so outbound frames are broadcast
// unless a caller assigns it.
const BroadcastDestination uint8 = 0xFF

// FeatureState is the per-feature state machine value from spec.md §3/§4.6.
// Its numeric value is the wire encoding every *_op_mode signal uses, so the
// values here are load-bearing and set explicitly rather than left to iota:
// Idle is both the quiescent state of a feature nobody has touched and the
// state a feature is forced into when another mutually-exclusive feature on
// the same pin/channel takes over (spec.md §8's ELoad mode-switch scenario
// requires the displaced feature's op_mode to read 2, the same value as an
// untouched one — there is no separate wire-distinguishable "disabled").
// Operate is 3, matching the catalog's [0|5] range.
type FeatureState int

const (
	FeatureUnknown FeatureState = 0
	FeatureIdle    FeatureState = 2
	FeatureOperate FeatureState = 3
	FeatureWarning FeatureState = 4
	FeatureError   FeatureState = 5
)

func (s FeatureState) String() string {
	switch s {
	case FeatureIdle:
		return "idle"
	case FeatureOperate:
		return "operate"
	case FeatureWarning:
		return "warning"
	case FeatureError:
		return "error"
	default:
		return "unknown"
	}
}

// RelayState is a pin/channel relay's reported position.
type RelayState int

const (
	RelayUnknown RelayState = iota
	RelayOpen
	RelayClosed
)

// ValuePair tracks a value's last-commanded and last-measured readings, the
// basis for change-detection per spec.md §3's invariant.
type ValuePair struct {
	Sent     float64
	Measured float64
}

// Message is one named, signal-mapped outbound payload: a PGN plus the DBC
// message name that carries it (they may differ for ELoad's PGN-sharing
// messages, spec.md §9).
type Message struct {
	PGN         uint32
	MessageName string
	Signals     map[string]float64
}

// Device is the shared plumbing every device engine embeds: the transport
// and codec it talks through, its own sequence counter, and the three-phase
// send helper from spec.md §4.6/§5.
type Device struct {
	MAC      [6]byte
	StreamID uint64
	BusID    uint8

	transport Sender
	codec     *dbc.Codec
	logger    *slog.Logger

	sequence uint32 // atomic, wraps mod 256 per spec.md §3

	mu sync.Mutex

	// NodeAddress is the device's own J1939 source address, used as the DA
	// field when non-zero; 0 means "use broadcast". It is not learned from
	// MODULE_INFO responses or set anywhere else in this module.
	NodeAddress uint8
}

// NewDevice builds a Device bound to mac over t, encoding/decoding with
// codec, addressed on streamID/busID.
func NewDevice(t Sender, codec *dbc.Codec, mac [6]byte, streamID uint64, busID uint8, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		MAC:       mac,
		StreamID:  streamID,
		BusID:     busID,
		transport: t,
		codec:     codec,
		logger:    logger,
	}
}

func (d *Device) destinationAddress() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NodeAddress != 0 {
		return d.NodeAddress
	}
	return BroadcastDestination
}

func (d *Device) nextSequence() uint8 {
	return uint8(atomic.AddUint32(&d.sequence, 1) - 1)
}

// EncodeBlock runs msg's encode step and frames the result as a single
// ACF-CAN Brief block, without transmitting it. Callers that send one
// message at a time should use Send; EncodeBlock exists for callers that
// bundle several blocks into one NTSCF frame via pkg/avtp.Bundler (spec.md
// §4.2's bundling allowance for the periodic snapshot path). Per spec.md
// §4.6's failure semantics: an encode failure is logged and dropped, not
// retried, and the caller's last-sent mirror must not be updated on error.
func (d *Device) EncodeBlock(msg Message) ([]byte, error) {
	_, data, err := d.codec.EncodeByName(msg.MessageName, msg.Signals)
	if err != nil {
		d.logger.Error("encode failed, dropping send", "pgn", msg.MessageName, "signals", msg.Signals, "err", err)
		return nil, err
	}
	id := ident.Build(msg.PGN, HostSourceAddress, d.destinationAddress(), ident.DefaultPriority)
	return avtp.BuildCANBrief(d.BusID, id, data, 0), nil
}

// Send encodes msg's signals against its catalog message, frames it as a
// single ACF-CAN Brief block inside its own NTSCF frame, and transmits it
// synchronously.
func (d *Device) Send(msg Message) error {
	block, err := d.EncodeBlock(msg)
	if err != nil {
		return err
	}
	if err := d.SendBundledPayload(block); err != nil {
		d.logger.Warn("send failed, will retry on next periodic tick", "pgn", msg.MessageName, "err", err)
		return err
	}
	return nil
}

// SendBundledPayload transmits a pre-built ACF payload, possibly several
// blocks concatenated by pkg/avtp.Bundler, under the device's own sequence
// counter. This is the flush side of EncodeBlock + Bundler.
func (d *Device) SendBundledPayload(payload []byte) error {
	seq := d.nextSequence()
	return d.transport.Send(d.MAC, seq, d.StreamID, payload)
}

// SendPhases runs the mode -> routing -> value ordering spec.md §4.6/§5
// requires: each phase is one message describing all eight elements, sent
// in order before the call returns. A nil phase (e.g. no routing change was
// needed) is skipped.
func (d *Device) SendPhases(mode, routing, value *Message) error {
	for _, phase := range []*Message{mode, routing, value} {
		if phase == nil {
			continue
		}
		if err := d.Send(*phase); err != nil {
			return fmt.Errorf("devbase: phase %s: %w", phase.MessageName, err)
		}
	}
	return nil
}

// CheckRange validates v against [min,max], returning ErrOutOfRange before
// any shadow mutation, per spec.md §4.6.
func CheckRange(v, min, max float64) error {
	if v < min || v > max {
		return fmt.Errorf("%w: %g not in [%g,%g]", ErrOutOfRange, v, min, max)
	}
	return nil
}

// Changed reports whether v differs from mirror, the single change-detection
// test every setter uses before emitting an immediate send (spec.md §3).
func Changed(mirror, v float64) bool { return mirror != v }

// SigName builds a catalog signal name following spec.md §6's
// "{prefix}_{1..8}_{suffix}" convention; index is zero-based, the wire name
// is one-based.
func SigName(prefix string, index int, suffix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, index+1, suffix)
}

// SelName builds a "sel_{vector}_{1..8}" switch-vector signal name.
func SelName(vector string, index int) string {
	return fmt.Sprintf("sel_%s_%d", vector, index+1)
}
