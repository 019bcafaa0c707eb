package ptpip

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions spec.md §7 calls out as observable
// kinds rather than distinct Go types.
var (
	ErrNotConnected   = errors.New("ptpip: not connected")
	ErrConnectFailed  = errors.New("ptpip: connect failed")
	ErrConnectionLost = errors.New("ptpip: connection lost")
	ErrTimeout        = errors.New("ptpip: receive timeout")
)

// HandshakeError reports a fatal failure during InitCommand, InitEvent,
// OpeningSession or SdioSetup (spec.md §4.3 stages 2–5).
type HandshakeError struct {
	Stage  State
	Reason string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("ptpip: handshake failed at %s: %s", e.Stage, e.Reason)
}

// OperationError reports an OperationResponse carrying a code other than
// OK (or SessionAlreadyOpen, where that is acceptable).
type OperationError struct {
	Opcode Opcode
	Code   ResponseCode
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("ptpip: operation 0x%04X failed: %s (0x%04X)", uint16(e.Opcode), e.Code, uint16(e.Code))
}

// InvalidArgumentError reports a Device API caller supplying a value
// outside the enumerated or range-bounded set for a property.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("ptpip: invalid %s: %s", e.Field, e.Reason)
}

// ProtocolError reports a structural invariant violation in the wire
// format (e.g. a StartData packet shorter than its fixed header).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "ptpip: protocol error: " + e.Reason
}
