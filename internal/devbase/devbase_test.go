package devbase

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/pkg/dbc"
)

type recordingSender struct {
	mu    sync.Mutex
	sends []string
}

func (r *recordingSender) Send(_ [6]byte, _ uint8, _ uint64, acfPayload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, string(acfPayload))
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

const testDBC = `VERSION ""

BU_: Vector__XXX UIO

BO_ 100 OP_MODE_REQ: 8 Vector__XXX
 SG_ vlt_o_1_op_mode : 0|4@1+ (1,0) [0|5] "" Vector__XXX
`

func newTestDevice(t *testing.T, sender Sender) *Device {
	t.Helper()
	cat, err := dbc.Parse(strings.NewReader(testDBC))
	require.NoError(t, err)
	codec := dbc.NewCodec(cat)
	return NewDevice(sender, codec, [6]byte{1, 2, 3, 4, 5, 6}, 0xABCD, 0, nil)
}

func TestSendPhasesSendsInOrderSkippingNil(t *testing.T) {
	sender := &recordingSender{}
	dev := newTestDevice(t, sender)

	mode := &Message{PGN: 0x121FE, MessageName: "OP_MODE_REQ", Signals: map[string]float64{"vlt_o_1_op_mode": 3}}
	value := &Message{PGN: 0x121FE, MessageName: "OP_MODE_REQ", Signals: map[string]float64{"vlt_o_1_op_mode": 2}}
	err := dev.SendPhases(mode, nil, value)
	require.NoError(t, err)
	require.Equal(t, 2, sender.count())
	// Byte 8 is the first data byte after the 8-byte ACF-CAN Brief header.
	require.Equal(t, byte(3), sender.sends[0][8])
	require.Equal(t, byte(2), sender.sends[1][8])
}

func TestSendFailsOnUnknownMessage(t *testing.T) {
	dev := newTestDevice(t, &recordingSender{})
	err := dev.Send(Message{PGN: 0x999FE, MessageName: "NOT_REAL", Signals: nil})
	require.Error(t, err)
}

func TestSequenceWrapsModulo256(t *testing.T) {
	dev := newTestDevice(t, &recordingSender{})
	for i := 0; i < 256; i++ {
		dev.nextSequence()
	}
	require.Equal(t, uint8(0), dev.nextSequence())
}

func TestCheckRangeRejectsOutOfBounds(t *testing.T) {
	require.NoError(t, CheckRange(5, 0, 10))
	require.ErrorIs(t, CheckRange(11, 0, 10), ErrOutOfRange)
	require.ErrorIs(t, CheckRange(-1, 0, 10), ErrOutOfRange)
}

func TestChanged(t *testing.T) {
	require.True(t, Changed(1.0, 2.0))
	require.False(t, Changed(1.0, 1.0))
}
