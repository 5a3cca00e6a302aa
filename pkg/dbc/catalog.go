package dbc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	boLineRE = regexp.MustCompile(`^BO_\s+(\d+)\s+([A-Za-z0-9_]+)\s*:\s*(\d+)\s+\S+`)
	sgLineRE = regexp.MustCompile(`^\s*SG_\s+([A-Za-z0-9_]+)\s*(m(\d+)|M)?\s*:\s*(\d+)\|(\d+)@([01])([+-])\s*\(([-0-9.eE]+),([-0-9.eE]+)\)\s*\[([-0-9.eE]+)\|([-0-9.eE]+)\]`)
	baLineRE = regexp.MustCompile(`^BA_\s+"GenSigStartValue"\s+SG_\s+(\d+)\s+([A-Za-z0-9_]+)\s+([-0-9.eE]+)\s*;`)
)

// Catalog is a parsed DBC file: messages indexed by their BO_ identifier
// exactly as written in the file, for O(1) decode lookups, plus a name index
// for encode-by-name. The codec looks up the normalized form of an inbound
// id (see ident.NormalizeForDBC), so only BO_ ids already written in that
// form are found on decode.
type Catalog struct {
	byID   map[uint32]*Message
	byName map[string]*Message
}

// Parse reads a DBC-subset source (BO_/SG_/BA_ GenSigStartValue records)
// from r and returns the assembled Catalog.
func Parse(r io.Reader) (*Catalog, error) {
	cat := &Catalog{byID: map[uint32]*Message{}, byName: map[string]*Message{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var current *Message
	type pendingInitial struct {
		id, signal string
		value      float64
	}
	var initials []pendingInitial

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if m := boLineRE.FindStringSubmatch(line); m != nil {
			id, err := strconv.ParseUint(m[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("dbc: bad BO_ id %q: %w", m[1], err)
			}
			length, _ := strconv.Atoi(m[3])
			current = &Message{Name: m[2], ID: uint32(id), Length: length}
			cat.byID[current.ID] = current
			cat.byName[current.Name] = current
			continue
		}

		if m := sgLineRE.FindStringSubmatch(line); m != nil && current != nil {
			sig := Signal{Name: m[1]}
			if m[2] == "M" {
				sig.IsMultiplexer = true
			} else if m[3] != "" {
				v, _ := strconv.Atoi(m[3])
				sig.MultiplexedBy = &v
			}
			sig.StartBit, _ = strconv.Atoi(m[4])
			sig.Length, _ = strconv.Atoi(m[5])
			if m[6] == "0" {
				sig.ByteOrder = BigEndian
			} else {
				sig.ByteOrder = LittleEndian
			}
			sig.Signed = m[7] == "-"
			sig.Factor, _ = strconv.ParseFloat(m[8], 64)
			sig.Offset, _ = strconv.ParseFloat(m[9], 64)
			sig.Min, _ = strconv.ParseFloat(m[10], 64)
			sig.Max, _ = strconv.ParseFloat(m[11], 64)
			current.Signals = append(current.Signals, sig)
			continue
		}

		if m := baLineRE.FindStringSubmatch(line); m != nil {
			val, err := strconv.ParseFloat(m[3], 64)
			if err == nil {
				initials = append(initials, pendingInitial{id: m[1], signal: m[2], value: val})
			}
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, p := range initials {
		id, err := strconv.ParseUint(p.id, 10, 32)
		if err != nil {
			continue
		}
		msg, ok := cat.byID[uint32(id)]
		if !ok {
			continue
		}
		for i := range msg.Signals {
			if msg.Signals[i].Name == p.signal {
				v := p.value
				msg.Signals[i].Initial = &v
				msg.Signals[i].HasInitial = true
			}
		}
	}

	return cat, nil
}

// ParseFile loads a DBC catalog from path. This is the read-only startup
// artifact load described in spec.md §6 ("Configuration: dbc_path").
func ParseFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ByID looks up a message descriptor by its BO_ id as written in the DBC file.
func (c *Catalog) ByID(id uint32) (*Message, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// ByName looks up a message descriptor by DBC message name.
func (c *Catalog) ByName(name string) (*Message, bool) {
	m, ok := c.byName[name]
	return m, ok
}
