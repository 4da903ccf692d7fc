// Package frame reassembles device reply packets from an arbitrarily-chunked
// byte stream and validates them against the fixed wire format.
//
// The device frames every reply as a 15-byte packet: a 6-byte header, a
// 16-bit payload, three don't-care bytes, and a 4-byte footer. Serial reads
// deliver chunks of whatever size the OS hands back, so packets routinely
// arrive split across reads or glued to garbage; the Reassembler buffers
// chunks and scans for well-formed packets.
package frame

import (
	"bytes"

	"github.com/freqsweep/freqsweep/internal/wire"
)

// Wire format constants for strict (framed) validation mode.
var (
	// Header marks the start of a reply packet.
	Header = []byte{0xFF, 0xFE, 0xFD, 0xFC, 0x02, 0x56}
	// Footer closes a reply packet, at FooterOffset relative to the header.
	Footer = []byte{0xFB, 0xFA, 0xF9, 0xF8}
)

const (
	// PacketLen is the fixed length of a framed reply packet.
	PacketLen = 15
	// PayloadOffset is where the 16-bit measurement sits within a packet.
	PayloadOffset = 6
	// FooterOffset is where the footer begins within a packet.
	FooterOffset = 11
	// MaxValue is the largest payload the device can legitimately produce.
	MaxValue = 4096
)

// Measurement is one decoded reply payload. Valid is false when the payload
// decoded but fell outside the accepted range.
type Measurement struct {
	Value uint16
	Valid bool
}

// Stats counts accepted and rejected packets since the last Reset.
type Stats struct {
	RxValid   uint64
	RxInvalid uint64
}

// Config selects the parsing mode for a Reassembler.
type Config struct {
	// Strict enables header/footer framed validation. When false, the
	// reassembler blindly decodes a byte pair at RxOffset.
	Strict bool
	// RxOffset is the index of the payload pair in non-strict mode.
	RxOffset int
	// RxEndianness is the byte order of the reply payload.
	RxEndianness wire.Endianness
	// TrimConsumedOnly changes non-strict mode to keep bytes beyond the
	// decoded pair instead of clearing the whole buffer. The historical
	// behavior discards them, so this defaults to off.
	TrimConsumedOnly bool
}

// Reassembler accumulates received chunks and extracts measurements. It owns
// its buffer exclusively; callers interact only through Ingest and Reset.
// Not safe for concurrent use; the owning device serializes access.
type Reassembler struct {
	cfg   Config
	buf   []byte
	stats Stats
}

// NewReassembler returns an empty Reassembler for the given config.
func NewReassembler(cfg Config) *Reassembler {
	return &Reassembler{cfg: cfg}
}

// Ingest appends a received chunk and scans for measurements. In strict mode
// at most one valid measurement is returned per call (the device answers one
// command at a time); packets that match the header but fail footer or range
// checks are counted as invalid. Bytes that cannot be decided yet are kept
// for the next call.
func (r *Reassembler) Ingest(chunk []byte) []Measurement {
	r.buf = append(r.buf, chunk...)

	if r.cfg.Strict {
		return r.scanStrict()
	}
	return r.scanRaw()
}

// scanStrict walks the buffer looking for header/footer-delimited packets.
func (r *Reassembler) scanStrict() []Measurement {
	var out []Measurement

	i := 0
	for i+PacketLen <= len(r.buf) {
		if !bytes.Equal(r.buf[i:i+len(Header)], Header) {
			i++
			continue
		}

		if !bytes.Equal(r.buf[i+FooterOffset:i+FooterOffset+len(Footer)], Footer) {
			// Header false-positive. Resume scanning one byte past the
			// failed header start, not past the whole packet length.
			r.stats.RxInvalid++
			i++
			continue
		}

		value := wire.Decode16(r.buf[i+PayloadOffset], r.buf[i+PayloadOffset+1], r.cfg.RxEndianness)
		if value > MaxValue {
			r.stats.RxInvalid++
			out = append(out, Measurement{Value: value, Valid: false})
			i += PacketLen
			continue
		}

		// Valid packet. Drop it and everything before it, keep any trailing
		// bytes for the next call, and stop: the device sends one reply per
		// command, so anything after this packet is stale.
		r.stats.RxValid++
		r.buf = append(r.buf[:0], r.buf[i+PacketLen:]...)
		return append(out, Measurement{Value: value, Valid: true})
	}

	// No valid packet. Discard the scanned prefix, keep the undecided tail.
	r.buf = append(r.buf[:0], r.buf[i:]...)
	return out
}

// scanRaw decodes the byte pair at RxOffset without any framing checks.
func (r *Reassembler) scanRaw() []Measurement {
	if len(r.buf) <= r.cfg.RxOffset+1 {
		return nil
	}

	value := wire.Decode16(r.buf[r.cfg.RxOffset], r.buf[r.cfg.RxOffset+1], r.cfg.RxEndianness)
	r.stats.RxValid++

	if r.cfg.TrimConsumedOnly {
		r.buf = append(r.buf[:0], r.buf[r.cfg.RxOffset+2:]...)
	} else {
		// Historical behavior: everything already buffered past the pair is
		// thrown away with it.
		r.buf = r.buf[:0]
	}

	return []Measurement{{Value: value, Valid: true}}
}

// Reset clears the buffer and zeroes the packet counters.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.stats = Stats{}
}

// Stats returns a snapshot of the packet counters.
func (r *Reassembler) Stats() Stats {
	return r.stats
}

// Buffered reports how many undecided bytes are held for the next chunk.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}
