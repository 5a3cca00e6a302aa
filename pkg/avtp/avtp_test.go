package avtp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdrig/sdrig-go/pkg/avtp"
)

func TestCANBriefRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	block := avtp.BuildCANBrief(3, 0x18FEF100, data, avtp.FlagExtendedID)

	decoded, n, err := avtp.ParseCANBrief(block)
	require.NoError(t, err)
	require.Equal(t, len(block), n)
	require.Equal(t, uint8(3), decoded.BusID)
	require.Equal(t, uint32(0x18FEF100), decoded.CANID)
	require.True(t, decoded.Extended())

	// Quadlet alignment invariant from spec.md §8.
	require.Equal(t, n, 8+((len(data)+3)&^3))
}

func TestIterCANBriefsBundled(t *testing.T) {
	b1 := avtp.BuildCANBrief(0, 0x100, []byte{0xAA}, 0)
	b2 := avtp.BuildCANBrief(1, 0x200, []byte{0xBB, 0xCC}, avtp.FlagExtendedID)
	payload := append(append([]byte{}, b1...), b2...)

	var got []avtp.CANBrief
	avtp.IterCANBriefs(payload, func(c avtp.CANBrief) { got = append(got, c) })

	require.Len(t, got, 2)
	require.Equal(t, uint32(0x100), got[0].CANID)
	require.Equal(t, uint32(0x200), got[1].CANID)
}

func TestIterCANBriefsStopsOnTruncation(t *testing.T) {
	b1 := avtp.BuildCANBrief(0, 0x100, []byte{1, 2, 3, 4}, 0)
	truncated := append(append([]byte{}, b1...), 0x04, 0x04, 0x00, 0x00)[:len(b1)+2]

	var count int
	avtp.IterCANBriefs(truncated, func(avtp.CANBrief) { count++ })
	require.Equal(t, 1, count)
}

func TestFrameBuildParseRoundTrip(t *testing.T) {
	dst := [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	src := [6]byte{0x82, 0x7b, 0xc4, 0xb1, 0x92, 0xf2}
	acf := avtp.BuildCANBrief(1, 0x18FEF100, []byte{1, 2, 3}, avtp.FlagExtendedID)

	raw := avtp.Build(dst, src, 7, 0x0102030405060708, acf)

	f, err := avtp.Parse(raw, nil)
	require.NoError(t, err)
	require.Equal(t, dst, f.DstMAC)
	require.Equal(t, src, f.SrcMAC)
	require.Equal(t, uint8(7), f.Sequence)
	require.Equal(t, uint64(0x0102030405060708), f.StreamID)
	require.Equal(t, acf, f.ACFPayload)
}

func TestParseRejectsWrongEtherTypeAndSubtype(t *testing.T) {
	dst := [6]byte{1, 2, 3, 4, 5, 6}
	src := [6]byte{6, 5, 4, 3, 2, 1}
	acf := avtp.BuildCANBrief(0, 1, []byte{1}, 0)
	raw := avtp.Build(dst, src, 0, 1, acf)

	raw[12] = 0x08 // corrupt ethertype
	_, err := avtp.Parse(raw, nil)
	require.ErrorIs(t, err, avtp.ErrBadEtherType)

	raw[12], raw[13] = 0x22, 0xF0
	raw[14] = 0x00 // corrupt subtype
	_, err = avtp.Parse(raw, nil)
	require.ErrorIs(t, err, avtp.ErrBadSubtype)
}

func TestParseRejectsShortFrame(t *testing.T) {
	_, err := avtp.Parse(make([]byte, 10), nil)
	require.ErrorIs(t, err, avtp.ErrFrameTooShort)
}

func TestParseRejectsImpossibleDataLength(t *testing.T) {
	dst := [6]byte{1, 2, 3, 4, 5, 6}
	src := [6]byte{6, 5, 4, 3, 2, 1}
	acf := avtp.BuildCANBrief(0, 1, []byte{1}, 0)
	raw := avtp.Build(dst, src, 0, 1, acf)
	raw[16] = 0xFF // inflate data_length beyond available bytes
	raw[17] = 0xFF
	_, err := avtp.Parse(raw, nil)
	require.ErrorIs(t, err, avtp.ErrBadDataLength)
}

func TestParseStreamIDFilter(t *testing.T) {
	dst := [6]byte{1, 2, 3, 4, 5, 6}
	src := [6]byte{6, 5, 4, 3, 2, 1}
	acf := avtp.BuildCANBrief(0, 1, []byte{1}, 0)
	raw := avtp.Build(dst, src, 0, 42, acf)

	other := uint64(7)
	_, err := avtp.Parse(raw, &other)
	require.ErrorIs(t, err, avtp.ErrStreamIDMismatch)

	match := uint64(42)
	_, err = avtp.Parse(raw, &match)
	require.NoError(t, err)
}

func TestBundlerFlushesOnCap(t *testing.T) {
	var flushed [][]byte
	b := avtp.NewBundler(func(payload []byte) { flushed = append(flushed, payload) })
	b.Cap = 16

	b.Add(avtp.BuildCANBrief(0, 1, []byte{1, 2, 3, 4}, 0))  // 12 bytes
	b.Add(avtp.BuildCANBrief(0, 2, []byte{1, 2, 3, 4}, 0))  // would be 24 > 16, flush old then add

	require.Len(t, flushed, 1)
	b.FlushNow()
	require.Len(t, flushed, 2)
}
