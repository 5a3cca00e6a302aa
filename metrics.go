package sdrig

// Metrics returns a snapshot of every counter the client has tracked so
// far: rx_drops_length, rx_drops_other, rx_accepted and one decode_drops:<pgn> entry
// per PGN that has ever failed to decode (spec.md §4.2/§4.6, promoted to
// pkg/metrics per SPEC_FULL.md §4.11).
func (c *Client) Metrics() map[string]uint64 {
	c.refreshTransportMetrics()
	return c.counters.Snapshot()
}

func (c *Client) refreshTransportMetrics() {
	c.counters.Add("rx_drops_length", c.transport.RxDropsLength()-c.lastRxDropsLength)
	c.lastRxDropsLength = c.transport.RxDropsLength()
	c.counters.Add("rx_drops_other", c.transport.RxDropsOther()-c.lastRxDropsOther)
	c.lastRxDropsOther = c.transport.RxDropsOther()
	c.counters.Add("rx_accepted", c.transport.RxAccepted()-c.lastRxAccepted)
	c.lastRxAccepted = c.transport.RxAccepted()
}
