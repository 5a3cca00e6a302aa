// Package discovery implements the broadcast module-info elicitation and
// per-MAC registry from spec.md §3/§4.7: three broadcast discovery frames,
// a default 3 s collection window, and classification of responding
// modules by app-name substring.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sdrig/sdrig-go/pkg/avtp"
	"github.com/sdrig/sdrig-go/pkg/ident"
	"github.com/sdrig/sdrig-go/pkg/pgn"
)

// hostSourceAddress and broadcastDestination mirror
// internal/devbase.HostSourceAddress / BroadcastDestination; discovery does
// not import internal/devbase, so the same J1939 addressing constants are
// restated here and must be kept in step with it.
const (
	hostSourceAddress  uint8 = 0xF9
	broadcastDestination uint8 = 0xFF
)

// DefaultWaitDuration is the collection window discover() waits after
// sending its broadcast frames (spec.md §8 scenario 3).
const DefaultWaitDuration = 3 * time.Second

// discoveryFrameCount and discoveryFrameSpacing describe the three
// ~50 ms-apart elicitation frames spec.md §3 requires.
const (
	discoveryFrameCount   = 3
	discoveryFrameSpacing = 50 * time.Millisecond
)

// AliveThreshold is the module-dormancy window: a registry entry is alive
// iff last_seen + AliveThreshold > now (spec.md §3).
const AliveThreshold = 10 * time.Second

// appNameBytes and hwNameBytes are the "firmware-name tri-quads" spec.md §3
// describes: three 32-bit words of packed ASCII, decoded here as individual
// byte signals ("app_name_byte0".."app_name_byte11") per the DBC signal
// catalog's per-byte convention for variable-length ASCII fields (the same
// convention pkg/ifmux uses for lin_frame_data0..7).
const (
	appNameBytes = 12
	hwNameBytes  = 12
)

// versionFieldCount is the version quintuple's integer field count
// (spec.md §3: "version string (five integer fields + target)").
const versionFieldCount = 5

// Kind classifies a responding module by its reported app name.
type Kind int

const (
	KindUnknown Kind = iota
	KindUIO
	KindELoad
	KindIfMux
)

func (k Kind) String() string {
	switch k {
	case KindUIO:
		return "uio"
	case KindELoad:
		return "eload"
	case KindIfMux:
		return "ifmux"
	default:
		return "unknown"
	}
}

// classify matches the app-firmware name against the substrings the source
// modules are known to report (spec.md §3's "classify device type").
func classify(appName string) Kind {
	lower := strings.ToLower(appName)
	switch {
	case strings.Contains(lower, "uio"):
		return KindUIO
	case strings.Contains(lower, "eload"):
		return KindELoad
	case strings.Contains(lower, "ifmux"), strings.Contains(lower, "mux"):
		return KindIfMux
	default:
		return KindUnknown
	}
}

// Entry is one module registry record, per spec.md §3's Module registry
// entry. Lifetime: created on first MODULE_INFO from that MAC, never
// destroyed while the facade lives.
type Entry struct {
	MAC           [6]byte
	AppName       string
	HardwareName  string
	Version       [5]int
	VersionTarget string
	BuildDate     string
	CRC           uint32
	IPAddress     string // populated only by MODULE_INFO_EX
	ChipUIDHigh   uint64
	ChipUIDLow    uint64
	LastSeen      time.Time
	MessageCount  uint64
	ErrorCount    uint64
	Kind          Kind
}

// IsAlive reports whether the entry was seen within AliveThreshold of now.
func (e Entry) IsAlive(now time.Time) bool {
	return e.LastSeen.Add(AliveThreshold).After(now)
}

// Sender is the narrow transport surface discovery needs to broadcast.
type Sender interface {
	Send(dstMAC [6]byte, sequence uint8, streamID uint64, acfPayload []byte) error
}

// BroadcastMAC is the Ethernet broadcast address discovery frames target.
var BroadcastMAC = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Registry aggregates MODULE_INFO / MODULE_INFO_EX responses per source MAC.
type Registry struct {
	sender Sender
	logger *slog.Logger

	mu      sync.Mutex
	entries map[[6]byte]*Entry
	seq     uint8
}

// New builds a Registry that broadcasts discovery frames through sender.
func New(sender Sender, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sender: sender, logger: logger.With("component", "discovery"), entries: map[[6]byte]*Entry{}}
}

// Discover transmits discoveryFrameCount broadcast MODULE_INFO_REQ frames
// ~discoveryFrameSpacing apart, waits, then returns every MAC whose
// MODULE_INFO decode has been applied via Apply by the time wait finishes.
// Callers are expected to have the transport's receive loop already running
// (with filter_stream_id = false, spec.md §4.4) and feeding Apply.
func (r *Registry) Discover(ctx context.Context, streamID uint64, wait time.Duration) ([][6]byte, error) {
	if wait <= 0 {
		wait = DefaultWaitDuration
	}

	canID := ident.Build(pgn.ModuleInfoReq, hostSourceAddress, broadcastDestination, ident.DefaultPriority)
	block := avtp.BuildCANBrief(0, canID, nil, 0)
	for i := 0; i < discoveryFrameCount; i++ {
		r.mu.Lock()
		seq := r.seq
		r.seq++
		r.mu.Unlock()

		if err := r.sender.Send(BroadcastMAC, seq, streamID, block); err != nil {
			return nil, err
		}
		if i < discoveryFrameCount-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(discoveryFrameSpacing):
			}
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	return r.MACs(), nil
}

// Apply updates (or creates) the registry entry for srcMAC from a decoded
// MODULE_INFO / MODULE_INFO_EX / MODULE_INFO_BOOT signal map, decoding and
// reclassifying the app name whenever the message carries one (spec.md §3's
// "classify device type" responsibility).
func (r *Registry) Apply(srcMAC [6]byte, pgnValue uint32, signals map[string]float64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[srcMAC]
	if !ok {
		e = &Entry{MAC: srcMAC}
		r.entries[srcMAC] = e
	}
	e.LastSeen = now
	e.MessageCount++

	if pgnValue == pgn.ModuleInfoAns || pgnValue == pgn.ModuleInfoBoot {
		if name := decodeASCIIField(signals, "app_name_byte", appNameBytes); name != "" {
			r.setAppNameLocked(e, name)
		}
		if hw := decodeASCIIField(signals, "hw_name_byte", hwNameBytes); hw != "" {
			e.HardwareName = hw
		}
		for i := 0; i < versionFieldCount; i++ {
			if v, ok := signals[fmt.Sprintf("version_%d", i+1)]; ok {
				e.Version[i] = int(v)
			}
		}
		if v, ok := signals["version_target"]; ok {
			e.VersionTarget = fmt.Sprintf("%d", int(v))
		}
		if y, ok := signals["build_date_year"]; ok {
			m := signals["build_date_month"]
			d := signals["build_date_day"]
			e.BuildDate = fmt.Sprintf("%04d-%02d-%02d", int(y), int(m), int(d))
		}
		if v, ok := signals["crc"]; ok {
			e.CRC = uint32(v)
		}
	}

	if pgnValue == pgn.ModuleInfoEx {
		if ip, ok := signals["ip_address"]; ok {
			e.IPAddress = ipString(uint32(ip))
		}
		if v, ok := signals["chip_uid_high"]; ok {
			e.ChipUIDHigh = uint64(v)
		}
		if v, ok := signals["chip_uid_low"]; ok {
			e.ChipUIDLow = uint64(v)
		}
	}
}

// decodeASCIIField reassembles a NUL-terminated ASCII string from n
// per-byte signals named "{prefix}{0..n-1}".
func decodeASCIIField(signals map[string]float64, prefix string, n int) string {
	var b []byte
	for i := 0; i < n; i++ {
		v, ok := signals[fmt.Sprintf("%s%d", prefix, i)]
		if !ok {
			break
		}
		c := byte(v)
		if c == 0 {
			break
		}
		b = append(b, c)
	}
	return string(b)
}

// RecordDecodeError increments srcMAC's error counter without touching
// last_seen, for a decode failure attributed to a known module.
func (r *Registry) RecordDecodeError(srcMAC [6]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[srcMAC]; ok {
		e.ErrorCount++
	}
}

// Get returns a copy of the registry entry for mac.
func (r *Registry) Get(mac [6]byte) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[mac]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// MACs returns every MAC currently registered, discovered or not.
func (r *Registry) MACs() [][6]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][6]byte, 0, len(r.entries))
	for mac := range r.entries {
		out = append(out, mac)
	}
	return out
}

// SetAppName records the module's reported application-firmware name and
// reclassifies its Kind. The DBC signal codec only produces numeric
// values, so the caller is responsible for reassembling the ASCII app-name
// bytes from the decoded MODULE_INFO payload before calling this.
func (r *Registry) SetAppName(mac [6]byte, appName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[mac]
	if !ok {
		e = &Entry{MAC: mac}
		r.entries[mac] = e
	}
	r.setAppNameLocked(e, appName)
}

// setAppNameLocked must be called with r.mu held.
func (r *Registry) setAppNameLocked(e *Entry, appName string) {
	e.AppName = appName
	e.Kind = classify(appName)
}

func ipString(v uint32) string {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).String()
}
