package transport

import (
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapRecorder buffers every frame a Transport sends to a pcapgo writer,
// the Go equivalent of the Python SDK's ad hoc pcap_capture_v2 helper
// (SPEC_FULL.md §4.11): additive instrumentation the core transport never
// depends on.
type PcapRecorder struct {
	mu     sync.Mutex
	writer *pcapgo.Writer
}

// NewPcapRecorder writes an Ethernet-linktype pcap file header to w and
// returns a recorder ready to capture frames.
func NewPcapRecorder(w *pcapgo.Writer) (*PcapRecorder, error) {
	if err := w.WriteFileHeader(snaplen, layers.LinkTypeEthernet); err != nil {
		return nil, err
	}
	return &PcapRecorder{writer: w}, nil
}

// Capture appends one raw Ethernet frame to the pcap stream.
func (p *PcapRecorder) Capture(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}, frame)
}

// AttachPcapRecorder arranges for every frame t.Send builds to also be
// handed to rec, in addition to being written to the wire. A nil rec
// detaches capture.
func (t *Transport) AttachPcapRecorder(rec *PcapRecorder) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	t.pcap = rec
}
