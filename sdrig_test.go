package sdrig

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/internal/devbase"
	"github.com/sdrig/sdrig-go/pkg/avtp"
	"github.com/sdrig/sdrig-go/pkg/config"
	"github.com/sdrig/sdrig-go/pkg/dbc"
	"github.com/sdrig/sdrig-go/pkg/discovery"
	"github.com/sdrig/sdrig-go/pkg/ident"
	"github.com/sdrig/sdrig-go/pkg/metrics"
	"github.com/sdrig/sdrig-go/pkg/pgn"
	"github.com/sdrig/sdrig-go/pkg/scheduler"
)

const facadeTestDBC = `VERSION ""

BU_: Vector__XXX NODE

BO_ 100 MODULE_INFO_REQ: 8 Vector__XXX
 SG_ boot_count : 0|8@1+ (1,0) [0|255] "" Vector__XXX

BO_ 101 MODULE_INFO_EX: 8 Vector__XXX
 SG_ ip_address : 0|32@1+ (1,0) [0|4294967295] "" Vector__XXX

BO_ 2367749886 OP_MODE_ANS: 16 Vector__XXX
 SG_ vlt_o_1_op_mode : 0|4@1+ (1,0) [0|5] "" Vector__XXX
`

func testClient(t *testing.T) *Client {
	t.Helper()
	cat, err := dbc.Parse(strings.NewReader(facadeTestDBC))
	require.NoError(t, err)
	codec := dbc.NewCodec(cat)

	c := &Client{
		cfg:       config.New(config.WithInterface("test0")),
		codec:     codec,
		logger:    slog.Default(),
		registry:  discovery.New(nullSender{}, nil),
		sched:     scheduler.New(nil),
		counters:  metrics.New(),
		devices:   map[[6]byte]*connectedDevice{},
		staleSeen: map[[6]byte]bool{},
	}
	return c
}

type nullSender struct{}

func (nullSender) Send(_ [6]byte, _ uint8, _ uint64, _ []byte) error { return nil }

func TestConnectUIOIsIdempotent(t *testing.T) {
	c := testClient(t)
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	c.transport = nil
	e1, err := c.ConnectUIO(mac)
	require.NoError(t, err)
	e2, err := c.ConnectUIO(mac)
	require.NoError(t, err)
	require.Same(t, e1, e2)
}

func TestConnectSameMACDifferentKindFails(t *testing.T) {
	c := testClient(t)
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	_, err := c.ConnectUIO(mac)
	require.NoError(t, err)
	_, err = c.ConnectELoad(mac)
	require.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestDisconnectRemovesDeviceAndRejectsSecondCall(t *testing.T) {
	c := testClient(t)
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	_, err := c.ConnectUIO(mac)
	require.NoError(t, err)
	require.NoError(t, c.Disconnect(mac))
	require.ErrorIs(t, c.Disconnect(mac), ErrUnknownDevice)
}

func TestRouteInboundModuleInfoUpdatesRegistry(t *testing.T) {
	c := testClient(t)
	srcMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	canID := ident.Build(pgn.ModuleInfoReq, 0x50, devbase.BroadcastDestination, ident.DefaultPriority)

	c.routeInbound(srcMAC, avtp.CANBrief{CANID: canID, Data: make([]byte, 8)})

	entry, ok := c.registry.Get(srcMAC)
	require.True(t, ok)
	require.WithinDuration(t, time.Now(), entry.LastSeen, time.Second)
}

func TestRouteInboundDispatchesToConnectedUIOEngine(t *testing.T) {
	c := testClient(t)
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	engine, err := c.ConnectUIO(mac)
	require.NoError(t, err)

	canID := ident.Build(pgn.OpModeAns, 0x50, devbase.BroadcastDestination, ident.DefaultPriority)
	data := make([]byte, 8)
	data[0] = 3 // vlt_o_1_op_mode = Operate

	c.routeInbound(mac, avtp.CANBrief{CANID: canID, Data: data})

	require.Equal(t, 3, int(engine.Pin(0).GetVoltageState))
}
