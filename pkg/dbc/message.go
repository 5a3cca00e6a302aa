// Package dbc implements the signal-level codec (spec.md §4.3): a
// minimal parser for the subset of the Vector DBC format this catalog
// uses (BO_/SG_ records), plus encode/decode against named signal maps.
//
// No DBC-parsing library appears anywhere in the retrieved example
// corpus (see DESIGN.md), so this parser is hand-written in the style of
// the teacher's own catalog parser (pkg/od/parser.go: bufio.Scanner over
// a text format, regexp-matched record headers, struct-field assembly).
package dbc

// ByteOrder mirrors a DBC signal's @0 (big-endian/Motorola) vs @1
// (little-endian/Intel) byte order marker.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Signal describes one named field inside a Message.
type Signal struct {
	Name        string
	StartBit    int
	Length      int
	ByteOrder   ByteOrder
	Signed      bool
	Factor      float64
	Offset      float64
	Min         float64
	Max         float64
	Initial     *float64
	HasInitial  bool
	IsMultiplexer bool
	// MultiplexedBy, when non-nil, is the multiplexer selector value this
	// signal is only present for; nil means the signal is always present.
	MultiplexedBy *int
}

// Message is one catalog entry: a CAN id (as stored, wildcard low byte)
// and its signal layout.
type Message struct {
	Name    string
	ID      uint32
	Length  int // byte length of the message, from the DBC BO_ record
	Signals []Signal
}

// FindSignal returns the named signal, or (Signal{}, false).
func (m *Message) FindSignal(name string) (Signal, bool) {
	for _, s := range m.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return Signal{}, false
}
