package ptpip

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// NewClientGUID generates the 16-byte GUID carried in InitCommandRequest.
// A random UUID's binary form is exactly the wire field, grounded on the
// teacher's crypto/rand-backed NewToken (vens/discovery.go).
func NewClientGUID() [16]byte {
	id := uuid.New()
	var guid [16]byte
	copy(guid[:], id[:])
	return guid
}

// NewSessionID picks a random non-zero 24-bit session id, as spec.md
// §4.3 OpeningSession requires.
func NewSessionID() uint32 {
	for {
		var b [3]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		id := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		if id != 0 {
			return id
		}
	}
}
