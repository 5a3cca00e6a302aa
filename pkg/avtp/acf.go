package avtp

import (
	"encoding/binary"
	"errors"
)

// ACF message types (IEEE 1722 ACF header, high 7 bits of acf_header).
const (
	AcfMsgTypeCANBrief uint16 = 0b010
)

// ACF-CAN Brief flags byte bit positions.
const (
	FlagESI          uint8 = 1 << 0
	FlagFDF          uint8 = 1 << 1
	FlagBRS          uint8 = 1 << 2
	FlagExtendedID   uint8 = 1 << 3
	FlagTimestampVal uint8 = 1 << 5
	// padding length occupies bits [7:6], two bits
)

// ErrBlockTooSmall is returned when a byte slice is too short to contain
// even an ACF-CAN Brief header.
var ErrBlockTooSmall = errors.New("avtp: acf block too small")

// CANBrief is a decoded (or about-to-be-encoded) ACF-CAN Brief block: one
// CAN frame's worth of bus id, 32-bit CAN identifier, flags and data.
type CANBrief struct {
	BusID   uint8
	CANID   uint32
	Flags   uint8
	Data    []byte
	MsgType uint16
}

// Extended reports whether the EFF (extended-id) flag is set.
func (b CANBrief) Extended() bool { return b.Flags&FlagExtendedID != 0 }

// quadletLen rounds n up to the next multiple of 4.
func quadletLen(n int) int {
	return (n + 3) &^ 3
}

// BuildCANBrief serializes one ACF-CAN Brief block: a 16-bit acf_header
// (7-bit msg_type, 9-bit length in quadlets), an 8-bit flags byte, an
// 8-bit bus id (low 5 bits significant), a 32-bit CAN id, and the data
// payload padded to the next quadlet boundary.
func BuildCANBrief(busID uint8, canID uint32, data []byte, flags uint8) []byte {
	headerBytes := 8 // acf_header(2) + flags(1) + bus_id(1) + can_id(4)
	total := quadletLen(headerBytes + len(data))
	quadlets := total / 4

	block := make([]byte, total)
	acfHeader := (AcfMsgTypeCANBrief&0x7F)<<9 | (uint16(quadlets) & 0x1FF)
	binary.BigEndian.PutUint16(block[0:2], acfHeader)
	block[2] = flags
	block[3] = busID & 0x1F
	binary.BigEndian.PutUint32(block[4:8], canID)
	copy(block[8:], data)
	return block
}

// ParseCANBrief parses a single ACF-CAN Brief block from the front of
// buf. It returns the decoded block and the number of bytes consumed
// (length_quadlets * 4), so callers can advance to the next concatenated
// block.
func ParseCANBrief(buf []byte) (CANBrief, int, error) {
	if len(buf) < 8 {
		return CANBrief{}, 0, ErrBlockTooSmall
	}
	acfHeader := binary.BigEndian.Uint16(buf[0:2])
	msgType := (acfHeader >> 9) & 0x7F
	quadlets := int(acfHeader & 0x1FF)
	lengthBytes := quadlets * 4
	if lengthBytes < 8 || lengthBytes > len(buf) {
		// Truncated final block: stop without error (spec.md §4.2).
		return CANBrief{}, 0, ErrBlockTooSmall
	}
	flags := buf[2]
	busID := buf[3] & 0x1F
	canID := binary.BigEndian.Uint32(buf[4:8])
	data := make([]byte, lengthBytes-8)
	copy(data, buf[8:lengthBytes])
	return CANBrief{
		BusID:   busID,
		CANID:   canID,
		Flags:   flags,
		Data:    data,
		MsgType: msgType,
	}, lengthBytes, nil
}

// IterCANBriefs walks a concatenated ACF payload (possibly several Brief
// blocks bundled into one NTSCF frame, spec.md §3) and invokes fn for
// each one it can fully parse. Iteration stops silently (no error) at the
// first truncated or malformed trailing block.
func IterCANBriefs(payload []byte, fn func(CANBrief)) {
	off := 0
	for off < len(payload) {
		block, consumed, err := ParseCANBrief(payload[off:])
		if err != nil {
			return
		}
		fn(block)
		off += consumed
	}
}
