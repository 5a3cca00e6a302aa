package eload

// ApplyAllConstantCurrent puts every channel into constant-current mode
// at the same setpoint, the Go equivalent of the Python SDK's "eload 5A
// CC" preset (SPEC_FULL.md §4.11 device presets). Plain loop over the
// public API, not a DSL.
func ApplyAllConstantCurrent(e *Engine, amps float64) error {
	for ch := 0; ch < NumChannels; ch++ {
		if err := e.SetCurrent(ch, amps); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAllConstantVoltage puts every channel into constant-voltage mode
// at the same setpoint.
func ApplyAllConstantVoltage(e *Engine, volts float64) error {
	for ch := 0; ch < NumChannels; ch++ {
		if err := e.SetVoltage(ch, volts); err != nil {
			return err
		}
	}
	return nil
}

// DisableAllRelays opens every configured relay.
func DisableAllRelays(e *Engine) error {
	for r := 0; r < NumRelays; r++ {
		if err := e.SetRelay(r, false); err != nil {
			return err
		}
	}
	return nil
}
