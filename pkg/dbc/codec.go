package dbc

import (
	"errors"
	"math"
	"sync"

	"github.com/sdrig/sdrig-go/pkg/ident"
)

// Errors surfaced at the C3 boundary (spec.md §4.3, §7).
var (
	ErrEncodeUnknownMessage = errors.New("dbc: encode: unknown message")
	ErrDecodeUnknownMessage = errors.New("dbc: decode: unknown message")
)

// minPayloadLen is the ACF-CAN Brief minimum payload length.
const minPayloadLen = 8

// Codec is the signal-level encoder/decoder fronting a Catalog. It caches
// normalized-id -> message descriptor lookups the first time each id is
// seen, per spec.md §4.3.
type Codec struct {
	catalog *Catalog

	mu    sync.Mutex
	cache map[uint32]*Message
}

// NewCodec wraps catalog with the id-normalized lookup cache.
func NewCodec(catalog *Catalog) *Codec {
	return &Codec{catalog: catalog, cache: map[uint32]*Message{}}
}

func (c *Codec) lookupByID(id uint32) (*Message, bool) {
	norm := ident.NormalizeForDBC(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.cache[norm]; ok {
		return m, true
	}
	m, ok := c.catalog.ByID(norm)
	if ok {
		c.cache[norm] = m
	}
	return m, ok
}

// EncodeByName encodes a partial (or complete) named-signal map against
// the message registered under messageName, filling any signal the
// caller omitted per spec.md §4.3's defaulting rule. It returns the
// message's wire CAN id (as stored in the catalog, i.e. with the
// wildcard byte still present) and the encoded payload, zero-padded to
// the ACF-CAN minimum of 8 bytes.
func (c *Codec) EncodeByName(messageName string, signals map[string]float64) (uint32, []byte, error) {
	msg, ok := c.catalog.ByName(messageName)
	if !ok {
		return 0, nil, ErrEncodeUnknownMessage
	}
	return msg.ID, c.encode(msg, signals), nil
}

func (c *Codec) encode(msg *Message, signals map[string]float64) []byte {
	filled := fillDefaults(msg, signals)

	length := msg.Length
	if length < minPayloadLen {
		length = minPayloadLen
	}
	data := make([]byte, length)

	for _, sig := range msg.Signals {
		value, present := filled[sig.Name]
		if !present {
			continue
		}
		putSignal(data, sig, value)
	}
	return data
}

// fillDefaults implements the "remaining signals filled with initial,
// else 0 clamped to [min,max]" rule from spec.md §4.3, grounded on
// original_source/sdrig/transport/dbc_codec.py's _fill_required.
// Multiplexed signals are filled only for the branch the caller-supplied
// selector picks; when the selector is absent from the caller-supplied map,
// every multiplexed branch is left unfilled (and therefore not encoded).
func fillDefaults(msg *Message, signals map[string]float64) map[string]float64 {
	filled := make(map[string]float64, len(msg.Signals))
	for k, v := range signals {
		filled[k] = v
	}
	selector, selectorSupplied := 0, false
	for _, sig := range msg.Signals {
		if v, ok := signals[sig.Name]; ok && sig.IsMultiplexer {
			selector, selectorSupplied = int(v), true
		}
	}
	for _, sig := range msg.Signals {
		if _, ok := filled[sig.Name]; ok {
			continue
		}
		if sig.IsMultiplexer {
			filled[sig.Name] = 0
			continue
		}
		if sig.MultiplexedBy != nil && (!selectorSupplied || *sig.MultiplexedBy != selector) {
			// Selector not supplied, or it picks another branch: left out entirely.
			continue
		}
		var val float64
		if sig.HasInitial {
			val = *sig.Initial
		} else {
			val = 0
			if val < sig.Min {
				val = sig.Min
			}
			if val > sig.Max {
				val = sig.Max
			}
		}
		filled[sig.Name] = val
	}
	return filled
}

// DecodeByID decodes data against the message registered under the
// normalized form of id. A miss (unknown message) is a soft failure: it
// returns an empty map and a nil error, as spec.md §4.3 requires for the
// decode path, so to the caller a miss looks the same as a message that
// decoded to zero signals.
func (c *Codec) DecodeByID(id uint32, data []byte) (map[string]float64, error) {
	msg, ok := c.lookupByID(id)
	if !ok {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64, len(msg.Signals))
	activeMux := -1
	for _, sig := range msg.Signals {
		if sig.IsMultiplexer {
			v := getSignal(data, sig)
			activeMux = int(v)
		}
	}
	for _, sig := range msg.Signals {
		if sig.MultiplexedBy != nil && *sig.MultiplexedBy != activeMux {
			continue
		}
		out[sig.Name] = getSignal(data, sig)
	}
	return out, nil
}

// bitPositions returns, for sig, the flat (byte*8+bitInByte, bit 0 = LSB
// of that byte) positions the signal occupies, ordered from the value's
// LSB (index 0) to its MSB (index length-1).
//
// Intel (little-endian) signals number bits consecutively upward from
// start_bit — the DBC start bit is already the value's LSB position.
//
// Motorola (big-endian) signals use the conventional DBC bit numbering
// where bit 0 is byte 0's most significant bit, bit 7 is byte 0's least
// significant bit, bit 8 is byte 1's most significant bit, and so on:
// start_bit is the value's MSB in that numbering, and increasing bit
// numbers walk toward the value's LSB. This module converts that walk
// into flat LSB-based positions and reverses it to get LSB-first order.
func bitPositions(sig Signal) []int {
	positions := make([]int, sig.Length)
	if sig.ByteOrder == LittleEndian {
		for i := 0; i < sig.Length; i++ {
			positions[i] = sig.StartBit + i
		}
		return positions
	}
	for i := 0; i < sig.Length; i++ {
		n := sig.StartBit + i
		byteIdx := n / 8
		bitFromMSB := n % 8
		positions[i] = byteIdx*8 + (7 - bitFromMSB)
	}
	// positions is currently MSB-first; reverse to LSB-first.
	for l, r := 0, len(positions)-1; l < r; l, r = l+1, r-1 {
		positions[l], positions[r] = positions[r], positions[l]
	}
	return positions
}

func getSignal(data []byte, sig Signal) float64 {
	positions := bitPositions(sig)
	var raw uint64
	for i, pos := range positions {
		byteIdx := pos / 8
		if byteIdx >= len(data) {
			continue
		}
		bit := (data[byteIdx] >> uint(pos%8)) & 1
		raw |= uint64(bit) << uint(i)
	}
	if sig.Signed && sig.Length < 64 && raw&(1<<uint(sig.Length-1)) != 0 {
		raw |= ^uint64(0) << uint(sig.Length)
	}
	var signedRaw int64 = int64(raw)
	var phys float64
	if sig.Signed {
		phys = float64(signedRaw)*sig.Factor + sig.Offset
	} else {
		phys = float64(raw)*sig.Factor + sig.Offset
	}
	return phys
}

func putSignal(data []byte, sig Signal, value float64) {
	raw := int64(math.Round((value - sig.Offset) / nonZero(sig.Factor)))
	mask := uint64(1)<<uint(sig.Length) - 1
	bits := uint64(raw) & mask

	positions := bitPositions(sig)
	for i, pos := range positions {
		byteIdx := pos / 8
		if byteIdx >= len(data) {
			continue
		}
		bit := (bits >> uint(i)) & 1
		if bit != 0 {
			data[byteIdx] |= 1 << uint(pos%8)
		} else {
			data[byteIdx] &^= 1 << uint(pos%8)
		}
	}
}

func nonZero(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}
