package discovery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/pkg/discovery"
)

type recordingSender struct {
	mu    sync.Mutex
	sends int
}

func (r *recordingSender) Send(_ [6]byte, _ uint8, _ uint64, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends++
	return nil
}

func (r *recordingSender) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends
}

func TestDiscoverSendsThreeFramesAndWaits(t *testing.T) {
	sender := &recordingSender{}
	reg := discovery.New(sender, nil)

	start := time.Now()
	_, err := reg.Discover(context.Background(), 0xABCD, 20*time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Equal(t, 3, sender.Count())
}

func TestDiscoverRespectsContextCancellation(t *testing.T) {
	sender := &recordingSender{}
	reg := discovery.New(sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Discover(ctx, 0xABCD, time.Second)
	require.Error(t, err)
}

func TestApplyCreatesEntryAndSetAppNameClassifies(t *testing.T) {
	sender := &recordingSender{}
	reg := discovery.New(sender, nil)
	mac := [6]byte{0x82, 0x7B, 0xC4, 0xB1, 0x92, 0xF2}

	now := time.Now()
	reg.Apply(mac, 1, map[string]float64{}, now)
	reg.SetAppName(mac, "SDRIG-UIO-FW")

	entry, ok := reg.Get(mac)
	require.True(t, ok)
	require.Equal(t, discovery.KindUIO, entry.Kind)
	require.True(t, entry.IsAlive(now))
	require.False(t, entry.IsAlive(now.Add(discovery.AliveThreshold+time.Second)))
}

func TestApplyDecodesAppNameAndClassifiesFromModuleInfoAns(t *testing.T) {
	sender := &recordingSender{}
	reg := discovery.New(sender, nil)
	mac := [6]byte{0x82, 0x7B, 0xC4, 0xB1, 0x92, 0xF2}

	signals := map[string]float64{
		"app_name_byte0": 'S', "app_name_byte1": 'D', "app_name_byte2": 'R',
		"app_name_byte3": 'I', "app_name_byte4": 'G', "app_name_byte5": '-',
		"app_name_byte6": 'U', "app_name_byte7": 'I', "app_name_byte8": 'O',
		"version_1": 1, "version_2": 2, "version_3": 3, "version_4": 0, "version_5": 0,
		"crc": 0xDEADBEEF,
	}
	reg.Apply(mac, 0x001FE, signals, time.Now())

	entry, ok := reg.Get(mac)
	require.True(t, ok)
	require.Equal(t, "SDRIG-UIO", entry.AppName)
	require.Equal(t, discovery.KindUIO, entry.Kind)
	require.Equal(t, [5]int{1, 2, 3, 0, 0}, entry.Version)
	require.Equal(t, uint32(0xDEADBEEF), entry.CRC)
}

func TestRecordDecodeErrorIncrementsKnownEntryOnly(t *testing.T) {
	sender := &recordingSender{}
	reg := discovery.New(sender, nil)
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	reg.Apply(mac, 1, map[string]float64{}, time.Now())

	reg.RecordDecodeError(mac)
	entry, _ := reg.Get(mac)
	require.Equal(t, uint64(1), entry.ErrorCount)

	unknown := [6]byte{9, 9, 9, 9, 9, 9}
	reg.RecordDecodeError(unknown)
	_, ok := reg.Get(unknown)
	require.False(t, ok)
}
