// Package ifmux implements the IfMux device engine (spec.md §3/§4.6): eight
// CAN channels with classic/FD speed codes, internal/external relay
// routing, an optional LIN sub-bus, and a raw-CAN callback path for
// non-system PGNs, reusing brutella/can.Frame as the callback payload shape
// (see SPEC_FULL.md's domain-stack wiring section).
package ifmux

import (
	"errors"
	"fmt"
	"sync"

	brutellacan "github.com/brutella/can"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/pgn"
)

// ErrLinDisabled is returned by LIN operations when the connection's
// lin_enabled option (spec.md §6) is off.
var ErrLinDisabled = errors.New("ifmux: LIN is not enabled on this connection")

// NumChannels is the fixed IfMux CAN channel count (spec.md §3).
const NumChannels = 8

// NumLinFrames is the maximum LIN frame descriptor count (spec.md §3).
const NumLinFrames = 62

// Speed code bounds (spec.md §3).
const (
	MaxClassicSpeedCode = 3
	MaxFDSpeedCode       = 5
)

// Channel is one CAN channel's shadow state.
type Channel struct {
	ClassicSpeedCode int
	FDSpeedCode      int
	ControllerState  uint32
	LEC              uint32
	TxCount          uint32
	RxCount          uint32
	ErrCount         uint32

	InternalRelay bool
	ExternalMask  uint8
}

// LinFrame is one LIN frame descriptor slot.
type LinFrame struct {
	Enable          bool
	Direction       bool // true = transmit
	ChecksumClassic bool
	Length          int
	ID              uint32
	Data            [8]byte
}

// Engine is one connected IfMux device.
type Engine struct {
	dev *devbase.Device

	mu         sync.Mutex
	channels   [NumChannels]Channel
	linEnabled bool
	linFrames  [NumLinFrames]LinFrame

	lastSentMode  [NumChannels]struct{ classic, fd int }
	lastSentMux   [NumChannels]struct {
		internal bool
		external uint8
	}

	// OnRawCAN delivers a non-system PGN's CAN id/data to the user,
	// invoked outside any internal lock (spec.md §4.6 point 6).
	OnRawCAN func(channel int, frame brutellacan.Frame)
	// OnLinFrameReceived delivers a decoded LIN_FRAME_RCVD_ANS.
	OnLinFrameReceived func(frame LinFrame)
}

// New wraps dev with the IfMux shadow. linEnabled mirrors the per-connection
// lin_enabled configuration option (spec.md §6).
func New(dev *devbase.Device, linEnabled bool) *Engine {
	return &Engine{dev: dev, linEnabled: linEnabled}
}

func validateChannel(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return devbase.CheckRange(float64(ch), 0, NumChannels-1)
	}
	return nil
}

// SetSpeed sets channel ch's classic and FD speed codes and emits the
// mode (CAN_INFO_REQ) phase if either code changed. There is no distinct
// "value" message for plain CAN configuration (spec.md §4.6 lists only
// LIN_FRAME_SET as the value-phase message for this engine).
func (e *Engine) SetSpeed(ch, classicCode, fdCode int) error {
	if err := validateChannel(ch); err != nil {
		return err
	}
	if err := devbase.CheckRange(float64(classicCode), 0, MaxClassicSpeedCode); err != nil {
		return err
	}
	if err := devbase.CheckRange(float64(fdCode), 0, MaxFDSpeedCode); err != nil {
		return err
	}

	e.mu.Lock()
	c := &e.channels[ch]
	c.ClassicSpeedCode = classicCode
	c.FDSpeedCode = fdCode
	last := &e.lastSentMode[ch]
	var mode *devbase.Message
	if last.classic != classicCode || last.fd != fdCode {
		mode = &devbase.Message{PGN: pgn.CanInfoReq, MessageName: "CAN_INFO_REQ", Signals: e.infoSignals()}
		last.classic, last.fd = classicCode, fdCode
	}
	e.mu.Unlock()

	if mode == nil {
		return nil
	}
	return e.dev.Send(*mode)
}

// SetRelays sets channel ch's internal (bool) and external (8-bit mask)
// relay routing and emits CAN_MUX_REQ if either changed.
func (e *Engine) SetRelays(ch int, internal bool, external uint8) error {
	if err := validateChannel(ch); err != nil {
		return err
	}

	e.mu.Lock()
	c := &e.channels[ch]
	c.InternalRelay = internal
	c.ExternalMask = external
	last := &e.lastSentMux[ch]
	var routing *devbase.Message
	if last.internal != internal || last.external != external {
		routing = &devbase.Message{PGN: pgn.CanMuxReq, MessageName: "CAN_MUX_REQ", Signals: e.muxSignals()}
		last.internal, last.external = internal, external
	}
	e.mu.Unlock()

	if routing == nil {
		return nil
	}
	return e.dev.Send(*routing)
}

// ConfigureLinFrame sets descriptor slot idx's enable/direction/checksum/
// length fields and emits LIN_CFG_REQ unconditionally (spec.md §3 describes
// up to 62 configurable descriptors; this is the "mode" side of LIN, the
// frame payload itself is set separately via SendLinFrame).
func (e *Engine) ConfigureLinFrame(idx int, enable, direction, checksumClassic bool, length int) error {
	if !e.linEnabled {
		return ErrLinDisabled
	}
	if idx < 0 || idx >= NumLinFrames {
		return devbase.CheckRange(float64(idx), 0, NumLinFrames-1)
	}
	if err := devbase.CheckRange(float64(length), 0, 8); err != nil {
		return err
	}

	e.mu.Lock()
	f := &e.linFrames[idx]
	f.Enable, f.Direction, f.ChecksumClassic, f.Length = enable, direction, checksumClassic, length
	signals := e.linCfgSignals()
	e.mu.Unlock()

	return e.dev.Send(devbase.Message{PGN: pgn.LinCfgReq, MessageName: "LIN_CFG_REQ", Signals: signals})
}

// SendLinFrame sets descriptor slot idx's outbound id/data and emits
// LIN_FRAME_SET_REQ, the "value" phase spec.md §4.6 names for this engine.
func (e *Engine) SendLinFrame(idx int, linID uint32, data []byte) error {
	if !e.linEnabled {
		return ErrLinDisabled
	}
	if idx < 0 || idx >= NumLinFrames {
		return devbase.CheckRange(float64(idx), 0, NumLinFrames-1)
	}
	if len(data) > 8 {
		return devbase.CheckRange(float64(len(data)), 0, 8)
	}

	e.mu.Lock()
	f := &e.linFrames[idx]
	f.ID = linID
	var buf [8]byte
	copy(buf[:], data)
	f.Data = buf
	signals := map[string]float64{"lin_frame_id": float64(linID)}
	for i := 0; i < 8; i++ {
		signals[fmt.Sprintf("lin_frame_data%d", i)] = float64(buf[i])
	}
	e.mu.Unlock()

	return e.dev.Send(devbase.Message{PGN: pgn.LinFrameSetReq, MessageName: "LIN_FRAME_SET_REQ", Signals: signals})
}

// DisableAllFeatures resets every channel's speed codes and relay routing
// to their just-connected zero values, and every configured LIN frame
// descriptor to disabled, emitting the same mode/routing/LIN-config
// messages a fresh connection's first Snapshot would (spec.md §8's
// disable_all_features idempotence law, generalized from pkg/uio/pkg/eload's
// feature-state reset to IfMux's routing/LIN shadow).
func (e *Engine) DisableAllFeatures() error {
	e.mu.Lock()
	for i := range e.channels {
		e.channels[i].ClassicSpeedCode = 0
		e.channels[i].FDSpeedCode = 0
		e.channels[i].InternalRelay = false
		e.channels[i].ExternalMask = 0
	}
	for i := range e.lastSentMode {
		e.lastSentMode[i] = struct{ classic, fd int }{}
	}
	for i := range e.lastSentMux {
		e.lastSentMux[i] = struct {
			internal bool
			external uint8
		}{}
	}
	for i := range e.linFrames {
		e.linFrames[i] = LinFrame{}
	}
	msgs := []devbase.Message{
		{PGN: pgn.CanInfoReq, MessageName: "CAN_INFO_REQ", Signals: e.infoSignals()},
		{PGN: pgn.CanMuxReq, MessageName: "CAN_MUX_REQ", Signals: e.muxSignals()},
	}
	if e.linEnabled {
		msgs = append(msgs, devbase.Message{PGN: pgn.LinCfgReq, MessageName: "LIN_CFG_REQ", Signals: e.linCfgSignals()})
	}
	e.mu.Unlock()

	for _, msg := range msgs {
		if err := e.dev.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// DeliverRawCAN hands a non-system CAN id/data pair to OnRawCAN, reusing
// brutella/can.Frame as the payload shape. A nil OnRawCAN is a no-op.
func (e *Engine) DeliverRawCAN(channel int, canID uint32, data []byte) {
	if e.OnRawCAN == nil {
		return
	}
	frame := brutellacan.Frame{ID: canID, Length: uint8(len(data))}
	copy(frame.Data[:], data)
	e.OnRawCAN(channel, frame)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) infoSignals() map[string]float64 {
	out := make(map[string]float64, NumChannels*2)
	for i := 0; i < NumChannels; i++ {
		out[devbase.SigName("can", i, "speed")] = float64(e.channels[i].ClassicSpeedCode)
		out[devbase.SigName("can", i, "speed_fd")] = float64(e.channels[i].FDSpeedCode)
	}
	return out
}

func (e *Engine) muxSignals() map[string]float64 {
	out := make(map[string]float64, NumChannels*2)
	for i := 0; i < NumChannels; i++ {
		out[devbase.SigName("can_mux_int_can", i, "en")] = boolToFloat(e.channels[i].InternalRelay)
		out[devbase.SigName("can_mux_ext_can", i, "out")] = float64(e.channels[i].ExternalMask)
	}
	return out
}

func (e *Engine) linCfgSignals() map[string]float64 {
	out := make(map[string]float64, NumLinFrames*4)
	for i := 0; i < NumLinFrames; i++ {
		f := e.linFrames[i]
		out[linFrameSigName(i, "enable")] = boolToFloat(f.Enable)
		out[linFrameSigName(i, "dir_transmit")] = boolToFloat(f.Direction)
		out[linFrameSigName(i, "cst_classic")] = boolToFloat(f.ChecksumClassic)
		out[linFrameSigName(i, "len")] = float64(f.Length)
	}
	return out
}

// linFrameSigName builds "lin_cfg_frm{0..61}_{suffix}" (spec.md §6): a
// 0-based index directly concatenated onto the prefix, unlike
// devbase.SigName's 1-based "{prefix}_{n}_{suffix}" convention.
func linFrameSigName(index int, suffix string) string {
	return fmt.Sprintf("lin_cfg_frm%d_%s", index, suffix)
}

// Snapshot renders the full parameter-cadence keepalive (spec.md §4.6 point 3).
func (e *Engine) Snapshot() []devbase.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := []devbase.Message{
		{PGN: pgn.CanInfoReq, MessageName: "CAN_INFO_REQ", Signals: e.infoSignals()},
		{PGN: pgn.CanMuxReq, MessageName: "CAN_MUX_REQ", Signals: e.muxSignals()},
	}
	if e.linEnabled {
		msgs = append(msgs, devbase.Message{PGN: pgn.LinCfgReq, MessageName: "LIN_CFG_REQ", Signals: e.linCfgSignals()})
	}
	return msgs
}

// ApplyInbound dispatches a decoded ANS message into the shadow by PGN.
// LIN_FRAME_RCVD_ANS is handled outside the lock: OnLinFrameReceived is a
// user callback and must not run while e.mu is held (spec.md §4.6 point 6,
// the same rule DeliverRawCAN follows for OnRawCAN).
func (e *Engine) ApplyInbound(pgnValue uint32, signals map[string]float64) {
	if pgnValue == pgn.LinFrameRcvdAns {
		e.applyLinFrameReceived(signals)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch pgnValue {
	case pgn.CanStateAns:
		for i := 0; i < NumChannels; i++ {
			if v, ok := signals[devbase.SigName("can", i, "state")]; ok {
				e.channels[i].ControllerState = uint32(v)
			}
			if v, ok := signals[devbase.SigName("can", i, "lec")]; ok {
				e.channels[i].LEC = uint32(v)
			}
			if v, ok := signals[devbase.SigName("can", i, "tx_count")]; ok {
				e.channels[i].TxCount = uint32(v)
			}
			if v, ok := signals[devbase.SigName("can", i, "rx_count")]; ok {
				e.channels[i].RxCount = uint32(v)
			}
			if v, ok := signals[devbase.SigName("can", i, "err_count")]; ok {
				e.channels[i].ErrCount = uint32(v)
			}
		}
	}
}

// applyLinFrameReceived decodes a LIN_FRAME_RCVD_ANS signal set and, if
// OnLinFrameReceived is set, invokes it with the decoded frame.
func (e *Engine) applyLinFrameReceived(signals map[string]float64) {
	linID, ok := signals["lin_frame_id"]
	if !ok {
		return
	}
	var data [8]byte
	for i := 0; i < 8; i++ {
		if v, ok := signals[fmt.Sprintf("lin_frame_data%d", i)]; ok {
			data[i] = byte(v)
		}
	}
	frame := LinFrame{Direction: false, ID: uint32(linID), Data: data}

	e.mu.Lock()
	cb := e.OnLinFrameReceived
	e.mu.Unlock()

	if cb != nil {
		cb(frame)
	}
}

// Channel returns a copy of channel index c's shadow state.
func (e *Engine) Channel(c int) Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[c]
}
