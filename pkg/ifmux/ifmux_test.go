package ifmux_test

import (
	"strings"
	"sync"
	"testing"

	brutellacan "github.com/brutella/can"
	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/dbc"
	"github.com/sdrig/sdrig-go/pkg/ifmux"
)

type recordingSender struct {
	mu    sync.Mutex
	count int
}

func (r *recordingSender) Send(_ [6]byte, _ uint8, _ uint64, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *recordingSender) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

const ifmuxTestDBC = `VERSION ""

BU_: Vector__XXX IFMUX

BO_ 300 CAN_INFO_REQ: 16 Vector__XXX
 SG_ can_1_speed : 0|4@1+ (1,0) [0|3] "" Vector__XXX

BO_ 301 CAN_MUX_REQ: 16 Vector__XXX
 SG_ can_mux_int_can_1_en : 0|1@1+ (1,0) [0|1] "" Vector__XXX

BO_ 302 LIN_CFG_REQ: 64 Vector__XXX
 SG_ lin_cfg_frm0_enable : 0|1@1+ (1,0) [0|1] "" Vector__XXX

BO_ 303 LIN_FRAME_SET_REQ: 16 Vector__XXX
 SG_ lin_frame_id : 0|32@1+ (1,0) [0|2147483647] "" Vector__XXX
`

func newTestEngine(t *testing.T, linEnabled bool) (*ifmux.Engine, *recordingSender) {
	t.Helper()
	cat, err := dbc.Parse(strings.NewReader(ifmuxTestDBC))
	require.NoError(t, err)
	codec := dbc.NewCodec(cat)
	sender := &recordingSender{}
	dev := devbase.NewDevice(sender, codec, [6]byte{1, 2, 3, 4, 5, 6}, 1, 0, nil)
	return ifmux.New(dev, linEnabled), sender
}

func TestSetSpeedSendsModeOnceForSameValue(t *testing.T) {
	e, sender := newTestEngine(t, false)
	require.NoError(t, e.SetSpeed(0, 2, 3))
	require.Equal(t, 1, sender.Count())
	require.NoError(t, e.SetSpeed(0, 2, 3))
	require.Equal(t, 1, sender.Count())
}

func TestSetSpeedRejectsOutOfRangeCode(t *testing.T) {
	e, _ := newTestEngine(t, false)
	require.ErrorIs(t, e.SetSpeed(0, ifmux.MaxClassicSpeedCode+1, 0), devbase.ErrOutOfRange)
}

func TestSetRelaysSendsOnChange(t *testing.T) {
	e, sender := newTestEngine(t, false)
	require.NoError(t, e.SetRelays(0, true, 0xFF))
	require.Equal(t, 1, sender.Count())
	require.NoError(t, e.SetRelays(0, true, 0xFF))
	require.Equal(t, 1, sender.Count())
}

func TestLinOperationsFailWhenDisabled(t *testing.T) {
	e, _ := newTestEngine(t, false)
	require.ErrorIs(t, e.ConfigureLinFrame(0, true, true, true, 8), ifmux.ErrLinDisabled)
	require.ErrorIs(t, e.SendLinFrame(0, 0x10, []byte{1, 2, 3}), ifmux.ErrLinDisabled)
}

func TestLinOperationsSucceedWhenEnabled(t *testing.T) {
	e, sender := newTestEngine(t, true)
	require.NoError(t, e.ConfigureLinFrame(0, true, true, true, 8))
	require.NoError(t, e.SendLinFrame(0, 0x10, []byte{1, 2, 3}))
	require.Equal(t, 2, sender.Count())
}

func TestDeliverRawCANInvokesCallbackWithBrutellaFrame(t *testing.T) {
	e, _ := newTestEngine(t, false)
	var got brutellacan.Frame
	var gotChannel int
	e.OnRawCAN = func(channel int, frame brutellacan.Frame) {
		gotChannel = channel
		got = frame
	}
	e.DeliverRawCAN(3, 0x1ABCDE00, []byte{9, 9})
	require.Equal(t, 3, gotChannel)
	require.Equal(t, uint32(0x1ABCDE00), got.ID)
	require.Equal(t, uint8(2), got.Length)
}

func TestSnapshotOmitsLinWhenDisabled(t *testing.T) {
	e, _ := newTestEngine(t, false)
	require.Len(t, e.Snapshot(), 2)
}

func TestSnapshotIncludesLinWhenEnabled(t *testing.T) {
	e, _ := newTestEngine(t, true)
	require.Len(t, e.Snapshot(), 3)
}

func TestApplyInboundLinFrameRcvdInvokesCallbackOutsideLock(t *testing.T) {
	e, _ := newTestEngine(t, true)
	var got ifmux.LinFrame
	received := make(chan struct{})
	e.OnLinFrameReceived = func(frame ifmux.LinFrame) {
		got = frame
		close(received)
	}

	signals := map[string]float64{"lin_frame_id": 0x20, "lin_frame_data0": 7, "lin_frame_data1": 8}
	e.ApplyInbound(0x043FE, signals)

	<-received
	require.Equal(t, uint32(0x20), got.ID)
	require.Equal(t, byte(7), got.Data[0])
	require.Equal(t, byte(8), got.Data[1])
}

func TestDisableAllFeaturesMatchesFreshChannel(t *testing.T) {
	fresh, _ := newTestEngine(t, false)
	require.NoError(t, fresh.SetSpeed(0, 2, 3))

	e, _ := newTestEngine(t, false)
	require.NoError(t, e.SetSpeed(0, 1, 1))
	require.NoError(t, e.SetRelays(0, true, 0xFF))
	require.NoError(t, e.DisableAllFeatures())
	require.NoError(t, e.SetSpeed(0, 2, 3))

	require.Equal(t, fresh.Channel(0), e.Channel(0))
}
