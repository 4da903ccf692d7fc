package frame

import (
	"testing"

	"github.com/freqsweep/freqsweep/internal/wire"
)

// validFrame returns a well-formed 15-byte packet carrying the given payload
// bytes at offsets 6-7.
func validFrame(p1, p2 byte) []byte {
	return []byte{
		0xFF, 0xFE, 0xFD, 0xFC, 0x02, 0x56, // header
		p1, p2, // payload
		0xAA, 0xBB, 0xCC, // don't care
		0xFB, 0xFA, 0xF9, 0xF8, // footer
	}
}

func TestStrictValidFrame(t *testing.T) {
	tests := []struct {
		name   string
		e      wire.Endianness
		p1, p2 byte
		want   uint16
	}{
		{"high first", wire.HighFirst, 0x00, 0x64, 100},
		{"low first", wire.LowFirst, 0x64, 0x00, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReassembler(Config{Strict: true, RxEndianness: tt.e})
			ms := r.Ingest(validFrame(tt.p1, tt.p2))
			if len(ms) != 1 {
				t.Fatalf("got %d measurements, want 1", len(ms))
			}
			if !ms[0].Valid || ms[0].Value != tt.want {
				t.Errorf("got %+v, want valid value %d", ms[0], tt.want)
			}
			if r.Buffered() != 0 {
				t.Errorf("buffer holds %d bytes after valid frame, want 0", r.Buffered())
			}
			if s := r.Stats(); s.RxValid != 1 || s.RxInvalid != 0 {
				t.Errorf("stats = %+v, want RxValid=1 RxInvalid=0", s)
			}
		})
	}
}

func TestStrictSplitAcrossChunks(t *testing.T) {
	full := validFrame(0x00, 0x64)

	for split := 1; split < len(full); split++ {
		r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

		ms := r.Ingest(full[:split])
		if len(ms) != 0 {
			t.Fatalf("split %d: partial frame yielded %d measurements", split, len(ms))
		}

		ms = r.Ingest(full[split:])
		if len(ms) != 1 || !ms[0].Valid || ms[0].Value != 100 {
			t.Fatalf("split %d: got %+v, want one valid measurement of 100", split, ms)
		}
		if r.Buffered() != 0 {
			t.Errorf("split %d: buffer holds %d bytes, want 0", split, r.Buffered())
		}
	}
}

func TestStrictLeadingGarbage(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	chunk := append([]byte{0x01, 0x02, 0xFF, 0x03}, validFrame(0x0F, 0xA0)...)
	ms := r.Ingest(chunk)
	if len(ms) != 1 || !ms[0].Valid || ms[0].Value != 4000 {
		t.Fatalf("got %+v, want one valid measurement of 4000", ms)
	}
	if r.Buffered() != 0 {
		t.Errorf("buffer holds %d bytes, want 0", r.Buffered())
	}
}

func TestStrictFooterMismatch(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	bad := validFrame(0x00, 0x64)
	bad[11] = 0x00 // corrupt the footer

	ms := r.Ingest(bad)
	if len(ms) != 0 {
		t.Fatalf("footer mismatch yielded %d measurements, want 0", len(ms))
	}
	if s := r.Stats(); s.RxInvalid != 1 || s.RxValid != 0 {
		t.Errorf("stats = %+v, want RxInvalid=1 RxValid=0", s)
	}

	// The scan advanced one byte past the failed header start, so all but
	// the first byte is still buffered awaiting more data.
	if r.Buffered() != len(bad)-1 {
		t.Errorf("buffer holds %d bytes, want %d", r.Buffered(), len(bad)-1)
	}
}

func TestStrictFooterMismatchResumesOneBytePast(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	// A corrupt frame immediately followed by a good one. If scanning
	// skipped the whole packet length after the failed footer check it
	// would still find the good frame, but the invalid count proves the
	// byte-by-byte resume visited the corrupt header.
	bad := validFrame(0x00, 0x01)
	bad[12] = 0x00
	chunk := append(bad, validFrame(0x00, 0x64)...)

	ms := r.Ingest(chunk)
	if len(ms) != 1 || !ms[0].Valid || ms[0].Value != 100 {
		t.Fatalf("got %+v, want one valid measurement of 100", ms)
	}
	if s := r.Stats(); s.RxInvalid != 1 || s.RxValid != 1 {
		t.Errorf("stats = %+v, want RxInvalid=1 RxValid=1", s)
	}
}

func TestStrictPayloadOutOfRange(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	// 5000 > 4096, so the packet frames correctly but fails range validation.
	ms := r.Ingest(validFrame(0x13, 0x88))
	if len(ms) != 1 {
		t.Fatalf("got %d measurements, want 1", len(ms))
	}
	if ms[0].Valid || ms[0].Value != 5000 {
		t.Errorf("got %+v, want invalid value 5000", ms[0])
	}
	if s := r.Stats(); s.RxInvalid != 1 || s.RxValid != 0 {
		t.Errorf("stats = %+v, want RxInvalid=1 RxValid=0", s)
	}
}

func TestStrictBoundaryValue(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	// 4096 is inclusive and must be accepted.
	ms := r.Ingest(validFrame(0x10, 0x00))
	if len(ms) != 1 || !ms[0].Valid || ms[0].Value != 4096 {
		t.Fatalf("got %+v, want valid value 4096", ms)
	}
}

func TestStrictOutOfRangeThenValid(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	chunk := append(validFrame(0x13, 0x88), validFrame(0x00, 0x64)...)
	ms := r.Ingest(chunk)
	if len(ms) != 2 {
		t.Fatalf("got %d measurements, want 2", len(ms))
	}
	if ms[0].Valid || ms[0].Value != 5000 {
		t.Errorf("first = %+v, want invalid 5000", ms[0])
	}
	if !ms[1].Valid || ms[1].Value != 100 {
		t.Errorf("second = %+v, want valid 100", ms[1])
	}
}

func TestStrictKeepsTailAfterValidPacket(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})

	chunk := append(validFrame(0x00, 0x64), 0x01, 0x02, 0x03)
	ms := r.Ingest(chunk)
	if len(ms) != 1 || !ms[0].Valid {
		t.Fatalf("got %+v, want one valid measurement", ms)
	}
	if r.Buffered() != 3 {
		t.Errorf("buffer holds %d bytes, want the 3 trailing bytes", r.Buffered())
	}
}

func TestRawMode(t *testing.T) {
	r := NewReassembler(Config{RxOffset: 2, RxEndianness: wire.HighFirst})

	if ms := r.Ingest([]byte{0x01, 0x02, 0x03}); len(ms) != 0 {
		t.Fatalf("short buffer yielded %d measurements", len(ms))
	}

	ms := r.Ingest([]byte{0x04, 0x05, 0x06})
	if len(ms) != 1 || !ms[0].Valid || ms[0].Value != 0x0304 {
		t.Fatalf("got %+v, want valid value 0x0304", ms)
	}

	// Historical behavior: the whole buffer is cleared, including the bytes
	// past the decoded pair.
	if r.Buffered() != 0 {
		t.Errorf("buffer holds %d bytes, want 0", r.Buffered())
	}
}

func TestRawModeTrimConsumedOnly(t *testing.T) {
	r := NewReassembler(Config{RxOffset: 0, RxEndianness: wire.LowFirst, TrimConsumedOnly: true})

	ms := r.Ingest([]byte{0x64, 0x00, 0xDE, 0xAD})
	if len(ms) != 1 || ms[0].Value != 100 {
		t.Fatalf("got %+v, want value 100", ms)
	}
	if r.Buffered() != 2 {
		t.Errorf("buffer holds %d bytes, want the 2 unconsumed bytes", r.Buffered())
	}
}

func TestReset(t *testing.T) {
	r := NewReassembler(Config{Strict: true, RxEndianness: wire.HighFirst})
	r.Ingest(validFrame(0x00, 0x64))
	r.Ingest([]byte{0x01, 0x02})
	r.Reset()

	if r.Buffered() != 0 {
		t.Errorf("buffer holds %d bytes after reset", r.Buffered())
	}
	if s := r.Stats(); s != (Stats{}) {
		t.Errorf("stats = %+v after reset, want zeroes", s)
	}
}
