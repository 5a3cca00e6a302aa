package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/pkg/config"
)

func TestNewAppliesOptions(t *testing.T) {
	c := config.New(
		config.WithInterface("eth0"),
		config.WithStreamID(0x1234),
		config.WithDBCPath("catalog.dbc"),
		config.WithLinEnabled(true),
	)
	require.Equal(t, "eth0", c.Interface)
	require.Equal(t, uint64(0x1234), c.StreamID)
	require.Equal(t, "catalog.dbc", c.DBCPath)
	require.True(t, c.LinEnabled)
	require.NoError(t, c.Validate())
}

func TestValidateRejectsMissingInterface(t *testing.T) {
	c := config.New()
	require.ErrorIs(t, c.Validate(), config.ErrMissingInterface)
}

func TestLoadReadsIniFileAndAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sdrig.ini")
	contents := `[sdrig]
iface = eth1
stream_id = 42
dbc_path = /etc/sdrig/catalog.dbc
lin_enabled = true
debug = false
discover_wait_ms = 1500
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	c, err := config.Load(path, config.WithDebug(true))
	require.NoError(t, err)
	require.Equal(t, "eth1", c.Interface)
	require.Equal(t, uint64(42), c.StreamID)
	require.Equal(t, "/etc/sdrig/catalog.dbc", c.DBCPath)
	require.True(t, c.LinEnabled)
	require.True(t, c.Debug)
	require.Equal(t, 1500*time.Millisecond, c.DiscoverWait)
}

func TestLoadFailsForMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	require.Error(t, err)
}
