package uio

// ApplyAllVoltage sets every pin to the same output voltage in one call,
// the Go equivalent of the Python SDK's "all pins 12V" preset
// (SPEC_FULL.md §4.11 device presets). It is a plain loop over the public
// API, not a DSL.
func ApplyAllVoltage(e *Engine, volts float64) error {
	for pin := 0; pin < NumPins; pin++ {
		if err := e.SetVoltage(pin, volts); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAllCurrentLoop sets every pin's current-loop output to the same
// value.
func ApplyAllCurrentLoop(e *Engine, milliamps float64) error {
	for pin := 0; pin < NumPins; pin++ {
		if err := e.SetCurrentLoop(pin, milliamps); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAllPWM sets every pin's PWM output to the same frequency/duty pair.
func ApplyAllPWM(e *Engine, frequencyHz, dutyPercent float64) error {
	for pin := 0; pin < NumPins; pin++ {
		if err := e.SetPWM(pin, frequencyHz, dutyPercent); err != nil {
			return err
		}
	}
	return nil
}
