package ptpip

import "fmt"

// Framer reassembles a byte stream into whole PTP/IP frames, tolerating
// arbitrary chunk boundaries: a frame split across many reads, or many
// frames delivered in one read (spec.md §4.2 Framing rule).
//
// A Framer is single-producer: only the owning Transport feeds it.
type Framer struct {
	buf []byte
}

// Feed appends newly-read bytes to the accumulator.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Pop detaches one complete frame from the front of the accumulator, if
// one is available. ok is false when more bytes are needed. A declared
// length below the 8-byte minimum header is a protocol error, not a
// "need more bytes" condition.
func (f *Framer) Pop() (frame []byte, ok bool, err error) {
	if len(f.buf) < 4 {
		return nil, false, nil
	}
	n := TotalLen(f.buf)
	if n < 8 {
		return nil, false, &ProtocolError{Reason: fmt.Sprintf("frame length %d below the 8-byte minimum", n)}
	}
	if uint64(len(f.buf)) < uint64(n) {
		return nil, false, nil
	}
	packet := make([]byte, n)
	copy(packet, f.buf[:n])
	f.buf = f.buf[n:]
	return packet, true, nil
}
