// Package ident implements the J1939-style 29-bit identifier algebra used
// to build, parse and normalize the CAN identifiers this module tunnels
// inside AVTP ACF-CAN Brief blocks.
//
// A 29-bit identifier decomposes as priority:3 | reserved:1 | dp:1 | pf:8 |
// ps:8 | sa:8. PDU1 (pf < 0xF0) is destination-specific: ps carries the
// destination address. PDU2 (pf >= 0xF0) is broadcast: ps carries the
// group extension.
package ident

// ExtendedFrameBit marks a normalized identifier as having come from a
// 29-bit (extended) CAN frame, so the zero value of a standard 11-bit ID
// can never collide with it.
const ExtendedFrameBit uint32 = 0x80000000

// Wildcard is the placeholder byte stored in a catalog PGN for the
// source (and, for PDU1, destination) address that gets substituted when
// the identifier is built for the wire.
const Wildcard uint32 = 0xFE

// DefaultPriority is the priority used when the caller does not care.
const DefaultPriority = 3

// IsExtended reports whether id is a 29-bit (extended) identifier.
func IsExtended(id uint32) bool {
	return id > 0x7FF
}

// pf returns the PDU format byte (bits 23:16) of a 29-bit identifier.
func pf(id uint32) uint32 {
	return (id >> 16) & 0xFF
}

// IsPDU1 reports whether id uses the destination-specific PDU1 encoding.
// A PF of exactly 0xF0 is treated as PDU2 (broadcast) per the tie-break
// rule in spec.md §4.1.
func IsPDU1(id uint32) bool {
	return pf(id) < 0xF0
}

// ExtractPriority returns the 3-bit priority field.
func ExtractPriority(id uint32) uint8 {
	return uint8((id >> 26) & 0x7)
}

// ExtractSA returns the source address (low byte) of id.
func ExtractSA(id uint32) uint8 {
	return uint8(id & 0xFF)
}

// ExtractDA returns the destination address for a PDU1 identifier. It is
// only meaningful when IsPDU1(id) is true.
func ExtractDA(id uint32) uint8 {
	return uint8((id >> 8) & 0xFF)
}

// ExtractPGN extracts the Parameter Group Number from a 29-bit identifier.
// For PDU1 the destination-address byte is not part of the semantic PGN
// and is replaced by the wildcard placeholder; for PDU2 the group
// extension byte is preserved as-is.
func ExtractPGN(id uint32) uint32 {
	if IsPDU1(id) {
		return ((id >> 8) & 0x3FF00) | Wildcard
	}
	return (id >> 8) & 0x3FFFF
}

// Build composes a 29-bit identifier from a catalog PGN (low byte 0xFE
// wildcard for PDU1, real group-extension for PDU2), a source address, a
// destination address (used only for PDU1) and a priority.
//
// When the PGN's PDU format byte is < 0xF0 (PDU1) the low byte of pgn is
// the wildcard placeholder and is replaced by da; otherwise (PDU2) the
// PGN's low byte (group extension) is preserved verbatim.
func Build(pgn uint32, sa, da uint8, priority uint8) uint32 {
	pduFormat := (pgn >> 8) & 0xFF
	id := (uint32(priority&0x7) << 26) | uint32(sa)
	if pduFormat < 0xF0 {
		return id | ((pgn & 0x3FF00) << 8) | (uint32(da) << 8)
	}
	return id | ((pgn & 0x3FFFF) << 8)
}

// BuildDefault calls Build with spec.md's default priority of 3.
func BuildDefault(pgn uint32, sa, da uint8) uint32 {
	return Build(pgn, sa, da, DefaultPriority)
}

// NormalizeForDBC produces the key used to look up a message descriptor
// in the signal catalog (pkg/dbc). Standard 11-bit identifiers pass
// through unchanged. Extended identifiers are normalized so that for
// PDU1 both the destination and source address bytes become the
// wildcard, and for PDU2 only the source address does; the extended
// frame marker bit is OR-ed in so the result is well-defined and
// idempotent (NormalizeForDBC(NormalizeForDBC(x)) == NormalizeForDBC(x)).
func NormalizeForDBC(id uint32) uint32 {
	if !IsExtended(id) {
		return id
	}
	var normalized uint32
	if IsPDU1(id) {
		normalized = (id & 0xFFFF0000) | (Wildcard << 8) | Wildcard
	} else {
		normalized = (id & 0xFFFFFF00) | Wildcard
	}
	return normalized | ExtendedFrameBit
}
