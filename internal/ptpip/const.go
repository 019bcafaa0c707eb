package ptpip

import "time"

// PacketType identifies the payload shape of a PTP/IP frame (§3).
type PacketType uint32

const (
	PacketInitCommandRequest PacketType = 0x0001
	PacketInitCommandAck     PacketType = 0x0002
	PacketInitEventRequest   PacketType = 0x0003
	PacketInitEventAck       PacketType = 0x0004
	PacketInitFail           PacketType = 0x0005
	PacketOperationRequest   PacketType = 0x0006
	PacketOperationResponse  PacketType = 0x0007
	PacketEvent              PacketType = 0x0008
	PacketStartData          PacketType = 0x0009
	PacketData               PacketType = 0x000A
	PacketCancel             PacketType = 0x000B
	PacketEndData            PacketType = 0x000C
	PacketProbeRequest       PacketType = 0x000D
	PacketProbeResponse      PacketType = 0x000E
)

// Opcode is a 16-bit PTP/SDIO operation code.
type Opcode uint16

const (
	OpGetDeviceInfo              Opcode = 0x1001
	OpOpenSession                Opcode = 0x1002
	OpGetStorageIDs              Opcode = 0x1004
	OpGetObjectInfo              Opcode = 0x1008
	OpGetObject                  Opcode = 0x1009
	OpSdioConnect                Opcode = 0x9201
	OpSdioGetExtDeviceInfo       Opcode = 0x9202
	OpSdioControlDevice          Opcode = 0x9207
	OpSdioGetAllExtDevicePropInfo Opcode = 0x9209
	OpSdioGetExtDeviceProp       Opcode = 0x9251
)

// ResponseCode is the 16-bit PTP response code carried by OperationResponse.
type ResponseCode uint16

const (
	RespOK                     ResponseCode = 0x2001
	RespGeneralError           ResponseCode = 0x2002
	RespSessionNotOpen         ResponseCode = 0x2003
	RespOperationNotSupported  ResponseCode = 0x2005
	RespParameterNotSupported  ResponseCode = 0x2006
	RespDeviceBusy             ResponseCode = 0x2019
	RespSessionAlreadyOpen     ResponseCode = 0x201E
)

func (r ResponseCode) String() string {
	switch r {
	case RespOK:
		return "OK"
	case RespGeneralError:
		return "GeneralError"
	case RespSessionNotOpen:
		return "SessionNotOpen"
	case RespOperationNotSupported:
		return "OperationNotSupported"
	case RespParameterNotSupported:
		return "ParameterNotSupported"
	case RespDeviceBusy:
		return "DeviceBusy"
	case RespSessionAlreadyOpen:
		return "SessionAlreadyOpen"
	default:
		return "Unknown"
	}
}

// Object handle reserved for the live-view preview frame.
const LiveViewHandle uint32 = 0xFFFFC002

// Property codes used by the convenience setters in package device.
const (
	PropISO            uint16 = 0xD21E
	PropShutterSpeed   uint16 = 0xD20D
	PropFNumber        uint16 = 0xD1F2
	PropWhiteBalance   uint16 = 0x5005
	PropFocusMode      uint16 = 0xD1F4
	PropExposureBiasCompensation uint16 = 0x5010
	PropMovieRecord    uint16 = 0xD2C8
	PropZoom           uint16 = 0xD2DD
	PropBatteryLevel   uint16 = 0xD218
	PropRecordingState uint16 = 0xD21D
)

// PTP/IP protocol version carried in InitCommandRequest.
const ProtocolVersion uint32 = 0x00010000

// FriendlyName is sent in InitCommandRequest; any value is accepted by the
// camera, this one just identifies the client in camera-side logs.
const FriendlyName = "ptpipcam"

// Default port for both PTP/IP channels.
const DefaultPort = 15740

// Timing constants (§4.2, §4.3, §5).
const (
	ConnectTimeout   = 10 * time.Second
	ReceiveTimeout   = 15 * time.Second
	KeepAliveInterval = 15 * time.Second
	LiveViewFrameInterval = 33 * time.Millisecond
	LiveViewErrorBackoff  = 100 * time.Millisecond
)
