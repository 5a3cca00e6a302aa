package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveMACFailsForUnknownInterface(t *testing.T) {
	_, err := resolveMAC("sdrig-test-iface-does-not-exist0")
	require.Error(t, err)
}

func TestResolveMACFallsBackToParentOnDottedVLANName(t *testing.T) {
	// lo.100 does not exist, so resolveMAC falls back to the parent "lo",
	// whose hardware address on Linux is the zero MAC: the fallback is taken
	// and still leaves the MAC unresolved.
	_, err := resolveMAC("lo.100")
	require.ErrorIs(t, err, ErrMacUnavailable)
}
