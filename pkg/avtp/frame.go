// Package avtp implements the IEEE 1722 NTSCF framer carrying ACF-CAN
// Brief blocks (spec.md §4.2), independent of any particular transport.
package avtp

import (
	"encoding/binary"
	"errors"
)

// EtherType is the Ethernet type value reserved for AVTP.
const EtherType uint16 = 0x22F0

// Subtype is the AVTP subtype for Non-Time-Synchronous Control Format.
const Subtype uint8 = 0x82

// versionCD is version 0 with the stream-id-valid bit set, matching the
// source's AVTPPacket.version_cd default (spec.md §4.2, §6).
const versionCD uint8 = 0x80

// commonHeaderLen is the AVTP common header length in bytes: subtype(1) +
// version_cd(1) + data_length(2, 12 bits significant) + sequence_number(1)
// + stream_id(8, split high/low for wire layout per spec.md §3).
const commonHeaderLen = 13

// MinFrameLen is the minimum number of bytes an AVTP-bearing Ethernet
// payload must have to be considered for parsing (spec.md §4.2).
const MinFrameLen = 26

// Errors returned by Parse. Each corresponds to one of the rx_drops_*
// counters in spec.md §4.2; Parse never returns these as fatal errors to
// callers expecting a frame — transport.go increments the matching
// counter and drops the frame instead of propagating.
var (
	ErrFrameTooShort   = errors.New("avtp: frame shorter than minimum length")
	ErrBadEtherType    = errors.New("avtp: unexpected ethertype")
	ErrBadSubtype      = errors.New("avtp: unexpected avtp subtype")
	ErrBadDataLength   = errors.New("avtp: data_length exceeds available bytes")
	ErrStreamIDMismatch = errors.New("avtp: stream id does not match filter")
)

// Frame is a decoded NTSCF frame: Ethernet addressing plus the AVTP
// common header fields and the raw ACF payload (one or more concatenated
// ACF-CAN Brief blocks, see IterCANBriefs).
type Frame struct {
	DstMAC     [6]byte
	SrcMAC     [6]byte
	Sequence   uint8
	StreamID   uint64
	ACFPayload []byte
}

// Build serializes an Ethernet+AVTP/NTSCF frame carrying acfPayload
// (normally produced by BuildCANBrief, possibly several bundled blocks
// concatenated together).
func Build(dstMAC, srcMAC [6]byte, sequence uint8, streamID uint64, acfPayload []byte) []byte {
	out := make([]byte, 14+commonHeaderLen+len(acfPayload))
	copy(out[0:6], dstMAC[:])
	copy(out[6:12], srcMAC[:])
	binary.BigEndian.PutUint16(out[12:14], EtherType)

	h := out[14:]
	h[0] = Subtype
	h[1] = versionCD
	dataLength := uint16(len(acfPayload)) & 0x0FFF
	binary.BigEndian.PutUint16(h[2:4], dataLength)
	h[4] = sequence
	binary.BigEndian.PutUint32(h[5:9], uint32(streamID>>32))
	binary.BigEndian.PutUint32(h[9:13], uint32(streamID))
	copy(out[14+commonHeaderLen:], acfPayload)
	return out[:14+commonHeaderLen+len(acfPayload)]
}

// Parse validates and decodes the Ethernet+AVTP/NTSCF header of raw and
// returns the decoded Frame. filterStreamID, when non-nil, causes frames
// whose stream id does not match to be rejected with ErrStreamIDMismatch
// (discovery disables this filter per spec.md §4.4).
func Parse(raw []byte, filterStreamID *uint64) (Frame, error) {
	if len(raw) < MinFrameLen {
		return Frame{}, ErrFrameTooShort
	}
	etherType := binary.BigEndian.Uint16(raw[12:14])
	if etherType != EtherType {
		return Frame{}, ErrBadEtherType
	}
	h := raw[14:]
	if h[0] != Subtype {
		return Frame{}, ErrBadSubtype
	}
	dataLength := int(binary.BigEndian.Uint16(h[2:4]) & 0x0FFF)
	sequence := h[4]
	streamID := uint64(binary.BigEndian.Uint32(h[5:9]))<<32 | uint64(binary.BigEndian.Uint32(h[9:13]))

	payloadStart := 14 + commonHeaderLen
	available := len(raw) - payloadStart
	if dataLength > available {
		return Frame{}, ErrBadDataLength
	}
	if filterStreamID != nil && streamID != *filterStreamID {
		return Frame{}, ErrStreamIDMismatch
	}

	f := Frame{Sequence: sequence, StreamID: streamID}
	copy(f.DstMAC[:], raw[0:6])
	copy(f.SrcMAC[:], raw[6:12])
	f.ACFPayload = append([]byte(nil), raw[payloadStart:payloadStart+dataLength]...)
	return f, nil
}
