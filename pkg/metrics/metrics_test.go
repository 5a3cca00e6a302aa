package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/pkg/metrics"
)

func TestIncAndAddAccumulate(t *testing.T) {
	c := metrics.New()
	c.Inc("rx_drops_length")
	c.Add("rx_drops_length", 3)
	require.Equal(t, uint64(4), c.Get("rx_drops_length"))
}

func TestSnapshotIsACopy(t *testing.T) {
	c := metrics.New()
	c.Inc("decode_drops:121FE")
	snap := c.Snapshot()
	snap["decode_drops:121FE"] = 999
	require.Equal(t, uint64(1), c.Get("decode_drops:121FE"))
}

func TestGetUnknownCounterIsZero(t *testing.T) {
	c := metrics.New()
	require.Equal(t, uint64(0), c.Get("nonexistent"))
}
