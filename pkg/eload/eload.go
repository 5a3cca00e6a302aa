// Package eload implements the ELoad device engine (spec.md §3/§4.6):
// eight channels, each mutually exclusive between voltage-sink and
// current-sink operating modes, four digital-output relays, driven through
// the same mode -> routing -> value three-phase send as pkg/uio.
package eload

import (
	"sync"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/pgn"
)

// NumChannels is the fixed ELoad channel count (spec.md §3).
const NumChannels = 8

// NumRelays is the fixed digital-output relay count.
const NumRelays = 4

// Limits from spec.md §3: per-channel and aggregate power are advisory, not
// enforced by the engine itself; MaxCurrentAmps/MaxVoltage are the hard bounds
// CheckRange does enforce.
const (
	MaxVoltage            = 24.0
	MaxCurrentAmps        = 20.0
	PerChannelPowerAdvice = 200.0
	AggregatePowerAdvice  = 600.0
)

// Channel is one ELoad channel's shadow state.
type Channel struct {
	SetVoltageState devbase.FeatureState
	SetCurrentState devbase.FeatureState

	VoltageSet  devbase.ValuePair
	CurrentSet  devbase.ValuePair
	VoltageMeas float64
	CurrentMeas float64
	Temperature float64
}

// Power is the derived voltage_meas * current_meas instantaneous reading.
func (c Channel) Power() float64 { return c.VoltageMeas * c.CurrentMeas }

// Engine is one connected ELoad device.
type Engine struct {
	dev *devbase.Device

	mu       sync.Mutex
	channels [NumChannels]Channel
	relays   [NumRelays]bool

	lastSentSwitchVoltage [NumChannels]bool
	lastSentSwitchCurrent [NumChannels]bool
	lastSentMode          [NumChannels]struct{ voltage, current devbase.FeatureState }
}

// New wraps dev with the ELoad shadow. Every channel's feature states start
// Idle (an untouched channel's op_mode reads 2, not 0).
func New(dev *devbase.Device) *Engine {
	e := &Engine{dev: dev}
	for i := range e.channels {
		e.channels[i].SetVoltageState = devbase.FeatureIdle
		e.channels[i].SetCurrentState = devbase.FeatureIdle
	}
	for i := range e.lastSentMode {
		e.lastSentMode[i] = struct{ voltage, current devbase.FeatureState }{devbase.FeatureIdle, devbase.FeatureIdle}
	}
	return e
}

func validateChannel(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return devbase.CheckRange(float64(ch), 0, NumChannels-1)
	}
	return nil
}

// SetVoltage puts channel ch into voltage-sink mode at volts, forcing
// current-sink mode off and its set-value to 0 in shadow, per spec.md §3's
// mutual-exclusion invariant.
func (e *Engine) SetVoltage(ch int, volts float64) error {
	if err := validateChannel(ch); err != nil {
		return err
	}
	if err := devbase.CheckRange(volts, 0, MaxVoltage); err != nil {
		return err
	}

	e.mu.Lock()
	c := &e.channels[ch]
	changed := devbase.Changed(c.VoltageSet.Sent, volts) || c.SetCurrentState == devbase.FeatureOperate
	c.VoltageSet.Sent = volts
	c.CurrentSet.Sent = 0
	c.SetVoltageState = devbase.FeatureOperate
	c.SetCurrentState = devbase.FeatureIdle
	mode, routing, value := e.buildPhases(ch, true, changed)
	e.mu.Unlock()

	return e.dev.SendPhases(mode, routing, value)
}

// SetCurrent is SetVoltage's mirror image for current-sink mode.
func (e *Engine) SetCurrent(ch int, amps float64) error {
	if err := validateChannel(ch); err != nil {
		return err
	}
	if err := devbase.CheckRange(amps, 0, MaxCurrentAmps); err != nil {
		return err
	}

	e.mu.Lock()
	c := &e.channels[ch]
	changed := devbase.Changed(c.CurrentSet.Sent, amps) || c.SetVoltageState == devbase.FeatureOperate
	c.CurrentSet.Sent = amps
	c.VoltageSet.Sent = 0
	c.SetCurrentState = devbase.FeatureOperate
	c.SetVoltageState = devbase.FeatureIdle
	mode, routing, value := e.buildPhases(ch, false, changed)
	e.mu.Unlock()

	return e.dev.SendPhases(mode, routing, value)
}

// SetRelay sets one of the four digital-output relays.
func (e *Engine) SetRelay(relay int, on bool) error {
	if relay < 0 || relay >= NumRelays {
		return devbase.CheckRange(float64(relay), 0, NumRelays-1)
	}
	e.mu.Lock()
	e.relays[relay] = on
	signals := e.relaySignals()
	e.mu.Unlock()
	return e.dev.Send(devbase.Message{PGN: pgn.SwitchElmDoutReq, MessageName: "SWITCH_ELM_DOUT_REQ", Signals: signals})
}

// DisableAllFeatures resets every channel back to its just-connected shadow:
// both feature states Idle, every set value zero, every switch off, and
// every last-sent mirror cleared, so that a following SetVoltage/SetCurrent
// call behaves exactly as it would on a freshly connected engine (spec.md
// §8's disable_all_features idempotence law). Relays are untouched; they
// are not a "feature" in the mode/routing/value sense.
func (e *Engine) DisableAllFeatures() error {
	e.mu.Lock()
	for i := range e.channels {
		e.channels[i].SetVoltageState = devbase.FeatureIdle
		e.channels[i].SetCurrentState = devbase.FeatureIdle
		e.channels[i].VoltageSet.Sent = 0
		e.channels[i].CurrentSet.Sent = 0
	}
	for i := range e.lastSentSwitchVoltage {
		e.lastSentSwitchVoltage[i] = false
		e.lastSentSwitchCurrent[i] = false
	}
	for i := range e.lastSentMode {
		e.lastSentMode[i] = struct{ voltage, current devbase.FeatureState }{devbase.FeatureIdle, devbase.FeatureIdle}
	}
	msgs := []devbase.Message{
		{PGN: pgn.OpModeReq, MessageName: "OP_MODE_REQ", Signals: e.opModeSignals()},
		{PGN: pgn.SwitchOutputReq, MessageName: "SWITCH_OUTPUT_REQ", Signals: e.switchSignals()},
		{PGN: pgn.VoltageElmOutReq, MessageName: "VOLTAGE_ELM_OUT_REQ", Signals: e.voltageSignals()},
		{PGN: pgn.CurElmOutReq, MessageName: "CUR_ELM_OUT_REQ", Signals: e.currentSignals()},
	}
	e.mu.Unlock()

	for _, msg := range msgs {
		if err := e.dev.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// buildPhases must be called with e.mu held.
func (e *Engine) buildPhases(ch int, voltageMode bool, valueChanged bool) (mode, routing, value *devbase.Message) {
	c := &e.channels[ch]
	last := &e.lastSentMode[ch]
	if c.SetVoltageState != last.voltage || c.SetCurrentState != last.current {
		mode = &devbase.Message{PGN: pgn.OpModeReq, MessageName: "OP_MODE_REQ", Signals: e.opModeSignals()}
		last.voltage = c.SetVoltageState
		last.current = c.SetCurrentState
	}

	wantVoltage := c.SetVoltageState == devbase.FeatureOperate
	wantCurrent := c.SetCurrentState == devbase.FeatureOperate
	if wantVoltage != e.lastSentSwitchVoltage[ch] || wantCurrent != e.lastSentSwitchCurrent[ch] {
		routing = &devbase.Message{PGN: pgn.SwitchOutputReq, MessageName: "SWITCH_OUTPUT_REQ", Signals: e.switchSignals()}
		e.lastSentSwitchVoltage[ch] = wantVoltage
		e.lastSentSwitchCurrent[ch] = wantCurrent
	}

	if valueChanged {
		if voltageMode {
			value = &devbase.Message{PGN: pgn.VoltageElmOutReq, MessageName: "VOLTAGE_ELM_OUT_REQ", Signals: e.voltageSignals()}
		} else {
			value = &devbase.Message{PGN: pgn.CurElmOutReq, MessageName: "CUR_ELM_OUT_REQ", Signals: e.currentSignals()}
		}
	}
	return
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) opModeSignals() map[string]float64 {
	out := make(map[string]float64, NumChannels*2)
	for i := 0; i < NumChannels; i++ {
		out[devbase.SigName("vlt_o", i, "op_mode")] = float64(e.channels[i].SetVoltageState)
		out[devbase.SigName("cur_o", i, "op_mode")] = float64(e.channels[i].SetCurrentState)
	}
	return out
}

func (e *Engine) switchSignals() map[string]float64 {
	out := make(map[string]float64, NumChannels*2)
	for i := 0; i < NumChannels; i++ {
		out[devbase.SelName("vlt_o", i)] = boolToFloat(e.channels[i].SetVoltageState == devbase.FeatureOperate)
		out[devbase.SelName("cur_o", i)] = boolToFloat(e.channels[i].SetCurrentState == devbase.FeatureOperate)
	}
	return out
}

func (e *Engine) voltageSignals() map[string]float64 {
	out := make(map[string]float64, NumChannels)
	for i := 0; i < NumChannels; i++ {
		out[devbase.SigName("vlt_elm_o", i, "value")] = e.channels[i].VoltageSet.Sent
	}
	return out
}

func (e *Engine) currentSignals() map[string]float64 {
	out := make(map[string]float64, NumChannels)
	for i := 0; i < NumChannels; i++ {
		out[devbase.SigName("cur_elm", i, "value")] = e.channels[i].CurrentSet.Sent
	}
	return out
}

func (e *Engine) relaySignals() map[string]float64 {
	out := make(map[string]float64, NumRelays)
	for i := 0; i < NumRelays; i++ {
		out[devbase.SigName("dout", i, "en")] = boolToFloat(e.relays[i])
	}
	return out
}

// Snapshot renders the full parameter-cadence keepalive (spec.md §4.6 point 3).
func (e *Engine) Snapshot() []devbase.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return []devbase.Message{
		{PGN: pgn.OpModeReq, MessageName: "OP_MODE_REQ", Signals: e.opModeSignals()},
		{PGN: pgn.VoltageElmOutReq, MessageName: "VOLTAGE_ELM_OUT_REQ", Signals: e.voltageSignals()},
		{PGN: pgn.CurElmOutReq, MessageName: "CUR_ELM_OUT_REQ", Signals: e.currentSignals()},
		{PGN: pgn.SwitchOutputReq, MessageName: "SWITCH_OUTPUT_REQ", Signals: e.switchSignals()},
		{PGN: pgn.SwitchElmDoutReq, MessageName: "SWITCH_ELM_DOUT_REQ", Signals: e.relaySignals()},
	}
}

// ApplyInbound dispatches a decoded ANS message into the shadow by PGN.
func (e *Engine) ApplyInbound(pgnValue uint32, signals map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch pgnValue {
	case pgn.CurElmOutAns, pgn.CurElmOutInAns:
		for i := 0; i < NumChannels; i++ {
			if v, ok := signals[devbase.SigName("cur_elm", i, "value")]; ok {
				e.channels[i].CurrentMeas = v
			}
		}
	case pgn.TempElmInAns:
		for i := 0; i < NumChannels; i++ {
			if v, ok := signals[devbase.SigName("temp_elm", i, "value")]; ok {
				e.channels[i].Temperature = v
			}
		}
	}
}

// Channel returns a copy of channel index c's shadow state.
func (e *Engine) Channel(c int) Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[c]
}

// AggregatePower sums Power() across all channels, for callers that want to
// log against AggregatePowerAdvice themselves (the engine does not enforce it).
func (e *Engine) AggregatePower() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total float64
	for _, c := range e.channels {
		total += c.Power()
	}
	return total
}
