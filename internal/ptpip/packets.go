package ptpip

import (
	"encoding/binary"
	"unicode/utf16"
)

// --------------------------------------------------------------------------
// Header helpers
// --------------------------------------------------------------------------

const headerSize = 8

func writeHeader(buf []byte, packetType PacketType) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(packetType))
}

// --------------------------------------------------------------------------
// Builders — outbound packets, little-endian throughout.
// --------------------------------------------------------------------------

// InitCommandRequest builds the handshake packet that opens the command
// channel: header | 16-byte GUID | UTF-16LE friendly_name + NUL terminator
// | u32 protocol_version.
func InitCommandRequest(guid [16]byte, friendlyName string) []byte {
	nameUTF16 := utf16.Encode([]rune(friendlyName))
	nameBytes := 2*len(nameUTF16) + 2 // + NUL terminator

	total := headerSize + 16 + nameBytes + 4
	buf := make([]byte, total)
	writeHeader(buf, PacketInitCommandRequest)

	copy(buf[8:24], guid[:])

	off := 24
	for _, u := range nameUTF16 {
		binary.LittleEndian.PutUint16(buf[off:off+2], u)
		off += 2
	}
	binary.LittleEndian.PutUint16(buf[off:off+2], 0) // NUL terminator
	off += 2

	binary.LittleEndian.PutUint32(buf[off:off+4], ProtocolVersion)
	return buf
}

// InitEventRequest builds the 12-byte packet that opens the event channel.
func InitEventRequest(connectionID uint32) []byte {
	buf := make([]byte, 12)
	writeHeader(buf, PacketInitEventRequest)
	binary.LittleEndian.PutUint32(buf[8:12], connectionID)
	return buf
}

// Data-phase indicators for OperationRequest.
const (
	DataPhaseNone = 1 // command only
	DataPhaseData = 2 // command followed by a data phase
)

// OperationRequest builds: header | u32 phase | u16 opcode | u32 txn | N × u32 param.
func OperationRequest(opcode Opcode, txn uint32, params []uint32, dataPhase uint32) []byte {
	total := headerSize + 4 + 2 + 4 + 4*len(params)
	buf := make([]byte, total)
	writeHeader(buf, PacketOperationRequest)

	binary.LittleEndian.PutUint32(buf[8:12], dataPhase)
	binary.LittleEndian.PutUint16(buf[12:14], uint16(opcode))
	binary.LittleEndian.PutUint32(buf[14:18], txn)

	off := 18
	for _, p := range params {
		binary.LittleEndian.PutUint32(buf[off:off+4], p)
		off += 4
	}
	return buf
}

// StartData builds the 20-byte packet announcing an outbound data phase's
// total size. The size is advisory (see spec Design Notes).
func StartData(txn uint32, payloadSize uint64) []byte {
	buf := make([]byte, 20)
	writeHeader(buf, PacketStartData)
	binary.LittleEndian.PutUint32(buf[8:12], txn)
	binary.LittleEndian.PutUint64(buf[12:20], payloadSize)
	return buf
}

// EndData builds: header | u32 txn | payload, carrying the entire outbound
// data-phase payload as a single packet.
func EndData(txn uint32, payload []byte) []byte {
	buf := make([]byte, headerSize+4+len(payload))
	writeHeader(buf, PacketEndData)
	binary.LittleEndian.PutUint32(buf[8:12], txn)
	copy(buf[12:], payload)
	return buf
}

// ProbeRequest builds the 8-byte keep-alive probe; no response is awaited.
func ProbeRequest() []byte {
	buf := make([]byte, headerSize)
	writeHeader(buf, PacketProbeRequest)
	return buf
}

// --------------------------------------------------------------------------
// Field readers — fixed offsets of inbound packets. Each returns the zero
// value when the buffer is too short for the field to fit; callers detect
// truncation with their own length checks.
// --------------------------------------------------------------------------

// TotalLen reads the total frame length at offset 0.
func TotalLen(buf []byte) uint32 {
	if len(buf) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[0:4])
}

// TypeOf reads the packet type at offset 4.
func TypeOf(buf []byte) PacketType {
	if len(buf) < 8 {
		return 0
	}
	return PacketType(binary.LittleEndian.Uint32(buf[4:8]))
}

// ConnectionIDFrom reads the connection id from an InitCommandAck, at
// offset 8..12.
func ConnectionIDFrom(buf []byte) uint32 {
	if len(buf) < 12 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[8:12])
}

// ResponseCodeFrom reads the u16 response code carried by an
// OperationResponse, at offset 10.
func ResponseCodeFrom(buf []byte) ResponseCode {
	if len(buf) < 12 {
		return 0
	}
	return ResponseCode(binary.LittleEndian.Uint16(buf[10:12]))
}

// TxnFrom reads the transaction id carried by a data-phase packet
// (StartData, Data, EndData), at offset 8..12.
func TxnFrom(buf []byte) uint32 {
	if len(buf) < 12 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[8:12])
}

// AnnouncedSize reads the advisory u64 total size carried by StartData, at
// offset 12..20.
func AnnouncedSize(buf []byte) uint64 {
	if len(buf) < 20 {
		return 0
	}
	return binary.LittleEndian.Uint64(buf[12:20])
}

// DataPayload returns the payload bytes of a Data or EndData packet
// (everything after offset 12).
func DataPayload(buf []byte) []byte {
	if len(buf) < 12 {
		return nil
	}
	return buf[12:]
}
