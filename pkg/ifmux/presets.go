package ifmux

// ApplyAllSpeed sets every channel to the same classic/FD speed code pair,
// the Go equivalent of the Python SDK's mux presets (SPEC_FULL.md §4.11
// device presets). Plain loop over the public API, not a DSL.
func ApplyAllSpeed(e *Engine, classicCode, fdCode int) error {
	for ch := 0; ch < NumChannels; ch++ {
		if err := e.SetSpeed(ch, classicCode, fdCode); err != nil {
			return err
		}
	}
	return nil
}

// RouteAllInternal closes every channel's internal relay and clears its
// external mask.
func RouteAllInternal(e *Engine) error {
	for ch := 0; ch < NumChannels; ch++ {
		if err := e.SetRelays(ch, true, 0); err != nil {
			return err
		}
	}
	return nil
}
