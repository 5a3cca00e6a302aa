// Package uio implements the UIO device engine (spec.md §3/§4.6): eight
// pins, each exposing voltage-out, current-loop-out and PWM-out features
// plus a relay, driven through the mode -> routing -> value three-phase
// send and dispatched to from decoded inbound ANS messages.
package uio

import (
	"sync"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/pgn"
)

// NumPins is the fixed UIO pin count (spec.md §3).
const NumPins = 8

// Output ranges and the fixed PWM output voltage (spec.md §3/§4.6).
const (
	MaxVoltage       = 24.0
	MaxCurrentLoopMA = 20.0
	MaxPWMFrequency  = 5000.0
	MaxPWMDuty       = 100.0
	FixedPWMVoltage  = 5.0
)

// Pin is one UIO pin's shadow state.
type Pin struct {
	GetVoltageState devbase.FeatureState
	SetVoltageState devbase.FeatureState
	GetCurrentState devbase.FeatureState
	SetCurrentState devbase.FeatureState
	GetPWMState     devbase.FeatureState
	SetPWMState     devbase.FeatureState

	Voltage     devbase.ValuePair // volts
	CurrentLoop devbase.ValuePair // milliamps
	PWMFreq     devbase.ValuePair // hertz
	PWMDuty     devbase.ValuePair // percent
	PWMVoltage  devbase.ValuePair // volts, fixed at FixedPWMVoltage

	Relay        devbase.RelayState
	Capabilities uint8
}

type switchVectors struct {
	icu, pwm, voltageOut, currentOut, currentIn [NumPins]bool
}

// Engine is one connected UIO device.
type Engine struct {
	dev *devbase.Device

	mu      sync.Mutex
	pins    [NumPins]Pin
	switchV switchVectors

	lastSentSwitch switchVectors
	lastSentMode   [NumPins]struct{ voltage, current, pwm devbase.FeatureState }
}

// New wraps dev with the UIO shadow. Every pin's feature states start Idle
// (spec.md §8 scenario 1: an untouched pin's op_mode reads 2, not 0), with
// the relay left Unknown until a measurement is received.
func New(dev *devbase.Device) *Engine {
	e := &Engine{dev: dev}
	for i := range e.pins {
		e.pins[i].Relay = devbase.RelayUnknown
		e.pins[i].GetVoltageState = devbase.FeatureIdle
		e.pins[i].SetVoltageState = devbase.FeatureIdle
		e.pins[i].GetCurrentState = devbase.FeatureIdle
		e.pins[i].SetCurrentState = devbase.FeatureIdle
		e.pins[i].GetPWMState = devbase.FeatureIdle
		e.pins[i].SetPWMState = devbase.FeatureIdle
	}
	for i := range e.lastSentMode {
		e.lastSentMode[i] = struct{ voltage, current, pwm devbase.FeatureState }{
			devbase.FeatureIdle, devbase.FeatureIdle, devbase.FeatureIdle,
		}
	}
	return e
}

func validatePin(pin int) error {
	if pin < 0 || pin >= NumPins {
		return devbase.CheckRange(float64(pin), 0, NumPins-1)
	}
	return nil
}

// SetVoltage commands pin's voltage output, validating range, transitioning
// its SetVoltageState to Operate, and emitting the mode/routing/value
// three-phase send for whichever phases actually changed.
func (e *Engine) SetVoltage(pin int, volts float64) error {
	if err := validatePin(pin); err != nil {
		return err
	}
	if err := devbase.CheckRange(volts, 0, MaxVoltage); err != nil {
		return err
	}

	e.mu.Lock()
	changed := devbase.Changed(e.pins[pin].Voltage.Sent, volts)
	e.pins[pin].Voltage.Sent = volts
	e.pins[pin].SetVoltageState = devbase.FeatureOperate
	e.switchV.voltageOut[pin] = true
	mode, routing, value := e.buildPhases(pin, "vlt_o", changed)
	e.mu.Unlock()

	return e.dev.SendPhases(mode, routing, value)
}

// SetCurrentLoop commands pin's current-loop output, same shape as SetVoltage.
func (e *Engine) SetCurrentLoop(pin int, milliamps float64) error {
	if err := validatePin(pin); err != nil {
		return err
	}
	if err := devbase.CheckRange(milliamps, 0, MaxCurrentLoopMA); err != nil {
		return err
	}

	e.mu.Lock()
	changed := devbase.Changed(e.pins[pin].CurrentLoop.Sent, milliamps)
	e.pins[pin].CurrentLoop.Sent = milliamps
	e.pins[pin].SetCurrentState = devbase.FeatureOperate
	e.switchV.currentOut[pin] = true
	mode, routing, value := e.buildPhases(pin, "cur_o", changed)
	e.mu.Unlock()

	return e.dev.SendPhases(mode, routing, value)
}

// SetPWM commands pin's PWM output; voltage is clamped to FixedPWMVoltage
// regardless of hardware intent (spec.md §4.6 hardware limitation).
func (e *Engine) SetPWM(pin int, frequencyHz, dutyPercent float64) error {
	if err := validatePin(pin); err != nil {
		return err
	}
	if err := devbase.CheckRange(frequencyHz, 0, MaxPWMFrequency); err != nil {
		return err
	}
	if err := devbase.CheckRange(dutyPercent, 0, MaxPWMDuty); err != nil {
		return err
	}

	e.mu.Lock()
	changed := devbase.Changed(e.pins[pin].PWMFreq.Sent, frequencyHz) ||
		devbase.Changed(e.pins[pin].PWMDuty.Sent, dutyPercent)
	e.pins[pin].PWMFreq.Sent = frequencyHz
	e.pins[pin].PWMDuty.Sent = dutyPercent
	e.pins[pin].PWMVoltage.Sent = FixedPWMVoltage
	e.pins[pin].SetPWMState = devbase.FeatureOperate
	e.switchV.pwm[pin] = true
	mode, routing, value := e.buildPhases(pin, "pwm", changed)
	e.mu.Unlock()

	return e.dev.SendPhases(mode, routing, value)
}

// DisableAllFeatures resets every pin back to its just-connected shadow:
// every feature Idle, every value zero, every switch off, and every
// last-sent mirror cleared, so that a following SetVoltage/SetCurrentLoop/
// SetPWM call behaves exactly as it would on a freshly connected engine
// (spec.md §8's disable_all_features idempotence law).
func (e *Engine) DisableAllFeatures() error {
	e.mu.Lock()
	for i := range e.pins {
		e.pins[i].SetVoltageState = devbase.FeatureIdle
		e.pins[i].SetCurrentState = devbase.FeatureIdle
		e.pins[i].SetPWMState = devbase.FeatureIdle
		e.pins[i].Voltage.Sent = 0
		e.pins[i].CurrentLoop.Sent = 0
		e.pins[i].PWMFreq.Sent = 0
		e.pins[i].PWMDuty.Sent = 0
		e.pins[i].PWMVoltage.Sent = 0
	}
	e.switchV = switchVectors{}
	e.lastSentSwitch = switchVectors{}
	for i := range e.lastSentMode {
		e.lastSentMode[i] = struct{ voltage, current, pwm devbase.FeatureState }{
			devbase.FeatureIdle, devbase.FeatureIdle, devbase.FeatureIdle,
		}
	}
	msgs := []devbase.Message{
		{PGN: pgn.OpModeReq, MessageName: "OP_MODE_REQ", Signals: e.opModeSignals()},
		{PGN: pgn.SwitchOutputReq, MessageName: "SWITCH_OUTPUT_REQ", Signals: e.switchSignals()},
		{PGN: pgn.VoltageOutReq, MessageName: "VOLTAGE_OUT_REQ", Signals: e.voltageSignals()},
		{PGN: pgn.CurLoopOutReq, MessageName: "CUR_LOOP_OUT_REQ", Signals: e.currentLoopSignals()},
		{PGN: pgn.PwmOutReq, MessageName: "PWM_OUT_REQ", Signals: e.pwmSignals()},
	}
	e.mu.Unlock()

	for _, msg := range msgs {
		if err := e.dev.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// buildPhases must be called with e.mu held. It returns the mode, routing
// and value phase messages for the feature named by prefix on pin, each nil
// unless its own last-sent mirror actually differs (independent
// change-detection per phase, generalizing spec.md §9's shadow-as-source-
// of-truth design note).
func (e *Engine) buildPhases(pin int, prefix string, valueChanged bool) (mode, routing, value *devbase.Message) {
	modeState := e.currentModeFor(pin, prefix)
	if modeState != e.lastSentModeFor(pin, prefix) {
		mode = &devbase.Message{PGN: pgn.OpModeReq, MessageName: "OP_MODE_REQ", Signals: e.opModeSignals()}
		e.setLastSentModeFor(pin, prefix, modeState)
	}

	if e.switchChanged(prefix) {
		routing = &devbase.Message{PGN: pgn.SwitchOutputReq, MessageName: "SWITCH_OUTPUT_REQ", Signals: e.switchSignals()}
		e.commitSwitchMirror(prefix)
	}

	if valueChanged {
		switch prefix {
		case "vlt_o":
			value = &devbase.Message{PGN: pgn.VoltageOutReq, MessageName: "VOLTAGE_OUT_REQ", Signals: e.voltageSignals()}
		case "cur_o":
			value = &devbase.Message{PGN: pgn.CurLoopOutReq, MessageName: "CUR_LOOP_OUT_REQ", Signals: e.currentLoopSignals()}
		case "pwm":
			value = &devbase.Message{PGN: pgn.PwmOutReq, MessageName: "PWM_OUT_REQ", Signals: e.pwmSignals()}
		}
	}
	return
}

func (e *Engine) currentModeFor(pin int, prefix string) devbase.FeatureState {
	switch prefix {
	case "vlt_o":
		return e.pins[pin].SetVoltageState
	case "cur_o":
		return e.pins[pin].SetCurrentState
	case "pwm":
		return e.pins[pin].SetPWMState
	}
	return devbase.FeatureUnknown
}

func (e *Engine) lastSentModeFor(pin int, prefix string) devbase.FeatureState {
	switch prefix {
	case "vlt_o":
		return e.lastSentMode[pin].voltage
	case "cur_o":
		return e.lastSentMode[pin].current
	case "pwm":
		return e.lastSentMode[pin].pwm
	}
	return devbase.FeatureUnknown
}

func (e *Engine) setLastSentModeFor(pin int, prefix string, state devbase.FeatureState) {
	switch prefix {
	case "vlt_o":
		e.lastSentMode[pin].voltage = state
	case "cur_o":
		e.lastSentMode[pin].current = state
	case "pwm":
		e.lastSentMode[pin].pwm = state
	}
}

func (e *Engine) switchChanged(prefix string) bool {
	cur, last := e.switchArrays(prefix)
	return cur != last
}

func (e *Engine) commitSwitchMirror(prefix string) {
	switch prefix {
	case "vlt_o":
		e.lastSentSwitch.voltageOut = e.switchV.voltageOut
	case "cur_o":
		e.lastSentSwitch.currentOut = e.switchV.currentOut
	case "cur_i":
		e.lastSentSwitch.currentIn = e.switchV.currentIn
	case "pwm":
		e.lastSentSwitch.pwm = e.switchV.pwm
	case "icu":
		e.lastSentSwitch.icu = e.switchV.icu
	}
}

func (e *Engine) switchArrays(prefix string) (cur, last [NumPins]bool) {
	switch prefix {
	case "vlt_o":
		return e.switchV.voltageOut, e.lastSentSwitch.voltageOut
	case "cur_o":
		return e.switchV.currentOut, e.lastSentSwitch.currentOut
	case "cur_i":
		return e.switchV.currentIn, e.lastSentSwitch.currentIn
	case "pwm":
		return e.switchV.pwm, e.lastSentSwitch.pwm
	case "icu":
		return e.switchV.icu, e.lastSentSwitch.icu
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
	out := make(map[string]float64, NumPins*3)
	for i := 0; i < NumPins; i++ {
		out[devbase.SigName("vlt_o", i, "op_mode")] = float64(e.pins[i].SetVoltageState)
		out[devbase.SigName("cur_o", i, "op_mode")] = float64(e.pins[i].SetCurrentState)
		out[devbase.SigName("pwm", i, "op_mode")] = float64(e.pins[i].SetPWMState)
	}
	return out
}

func (e *Engine) switchSignals() map[string]float64 {
	out := make(map[string]float64, NumPins*5)
	for i := 0; i < NumPins; i++ {
		out[devbase.SelName("icu", i)] = boolToFloat(e.switchV.icu[i])
		out[devbase.SelName("pwm", i)] = boolToFloat(e.switchV.pwm[i])
		out[devbase.SelName("vlt_o", i)] = boolToFloat(e.switchV.voltageOut[i])
		out[devbase.SelName("cur_o", i)] = boolToFloat(e.switchV.currentOut[i])
		out[devbase.SelName("cur_i", i)] = boolToFloat(e.switchV.currentIn[i])
	}
	return out
}

func (e *Engine) voltageSignals() map[string]float64 {
	out := make(map[string]float64, NumPins)
	for i := 0; i < NumPins; i++ {
		out[devbase.SigName("vlt_o", i, "value")] = e.pins[i].Voltage.Sent
	}
	return out
}

func (e *Engine) currentLoopSignals() map[string]float64 {
	out := make(map[string]float64, NumPins)
	for i := 0; i < NumPins; i++ {
		out[devbase.SigName("cur_ma_o", i, "value")] = e.pins[i].CurrentLoop.Sent
	}
	return out
}

func (e *Engine) pwmSignals() map[string]float64 {
	out := make(map[string]float64, NumPins*3)
	for i := 0; i < NumPins; i++ {
		out[devbase.SigName("pwm", i, "frequency")] = e.pins[i].PWMFreq.Sent
		out[devbase.SigName("pwm", i, "duty")] = e.pins[i].PWMDuty.Sent
		out[devbase.SigName("pwm", i, "voltage")] = e.pins[i].PWMVoltage.Sent
	}
	return out
}

// Snapshot renders the full parameter-cadence keepalive spec.md §4.6 point 3
// describes: mode, then every value message, then the switch vector, all
// unconditionally — the periodic counterpart to the change-gated setters.
func (e *Engine) Snapshot() []devbase.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return []devbase.Message{
		{PGN: pgn.OpModeReq, MessageName: "OP_MODE_REQ", Signals: e.opModeSignals()},
		{PGN: pgn.VoltageOutReq, MessageName: "VOLTAGE_OUT_REQ", Signals: e.voltageSignals()},
		{PGN: pgn.CurLoopOutReq, MessageName: "CUR_LOOP_OUT_REQ", Signals: e.currentLoopSignals()},
		{PGN: pgn.PwmOutReq, MessageName: "PWM_OUT_REQ", Signals: e.pwmSignals()},
		{PGN: pgn.SwitchOutputReq, MessageName: "SWITCH_OUTPUT_REQ", Signals: e.switchSignals()},
	}
}

// ApplyInbound dispatches one decoded ANS message's signals into the shadow
// by PGN (spec.md §4.6 point 5). PGNs it does not handle, and signals it does
// not recognise, are ignored; the facade counts decode misses before calling
// it.
func (e *Engine) ApplyInbound(pgnValue uint32, signals map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch pgnValue {
	case pgn.VoltageOutAns, pgn.VoltageOutInAns:
		for i := 0; i < NumPins; i++ {
			if v, ok := signals[devbase.SigName("vlt_o", i, "value")]; ok {
				e.pins[i].Voltage.Measured = v
			}
		}
	case pgn.CurLoopOutAns, pgn.CurLoopOutInAns:
		for i := 0; i < NumPins; i++ {
			if v, ok := signals[devbase.SigName("cur_ma_o", i, "value")]; ok {
				e.pins[i].CurrentLoop.Measured = v
			}
		}
	case pgn.OpModeAns:
		for i := 0; i < NumPins; i++ {
			if v, ok := signals[devbase.SigName("vlt_o", i, "op_mode")]; ok {
				e.pins[i].GetVoltageState = devbase.FeatureState(v)
			}
			if v, ok := signals[devbase.SigName("cur_o", i, "op_mode")]; ok {
				e.pins[i].GetCurrentState = devbase.FeatureState(v)
			}
			if v, ok := signals[devbase.SigName("pwm", i, "op_mode")]; ok {
				e.pins[i].GetPWMState = devbase.FeatureState(v)
			}
		}
	}
}

// Pin returns a copy of pin index p's shadow state.
func (e *Engine) Pin(p int) Pin {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pins[p]
}
