package ptpip

import (
	"encoding/binary"
	"fmt"
)

// valueSizeFor maps a descriptor's data_type to its wire width (spec.md
// §3 Property descriptor). Unknown types are treated as 4-byte, as the
// spec requires.
func valueSizeFor(dataType uint16) int {
	switch dataType {
	case 2, 3:
		return 1
	case 4, 5:
		return 2
	case 6, 7:
		return 4
	default:
		return 4
	}
}

func readUint(buf []byte, size int) uint32 {
	switch size {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf))
	default:
		return binary.LittleEndian.Uint32(buf)
	}
}

const (
	formNone = 0x00
	formRange = 0x01
	formEnum  = 0x02
)

// parseOneDescriptor parses a single property descriptor from the front of
// data and returns the property code, its parsed value, and the number of
// bytes consumed.
func parseOneDescriptor(data []byte) (code uint16, pv PropertyValue, consumed int, err error) {
	const fixedHeader = 2 + 2 + 1 + 1 // prop_code, data_type, get_set, is_enabled
	if len(data) < fixedHeader {
		return 0, PropertyValue{}, 0, &ProtocolError{Reason: "property descriptor shorter than fixed header"}
	}

	code = binary.LittleEndian.Uint16(data[0:2])
	dataType := binary.LittleEndian.Uint16(data[2:4])
	getSet := data[4]
	isEnabled := data[5]
	valueSize := valueSizeFor(dataType)

	off := 6
	// default_value, skipped
	if len(data) < off+valueSize {
		return 0, PropertyValue{}, 0, &ProtocolError{Reason: "property descriptor truncated before default_value"}
	}
	off += valueSize

	// current_value
	if len(data) < off+valueSize {
		return 0, PropertyValue{}, 0, &ProtocolError{Reason: "property descriptor truncated before current_value"}
	}
	currentValue := readUint(data[off:off+valueSize], valueSize)
	off += valueSize

	if len(data) < off+1 {
		return 0, PropertyValue{}, 0, &ProtocolError{Reason: "property descriptor truncated before form_flag"}
	}
	formFlag := data[off]
	off++

	switch formFlag {
	case formNone:
		// no form payload
	case formRange:
		if len(data) < off+3*valueSize {
			return 0, PropertyValue{}, 0, &ProtocolError{Reason: "range form payload truncated"}
		}
		off += 3 * valueSize
	case formEnum:
		if len(data) < off+2 {
			return 0, PropertyValue{}, 0, &ProtocolError{Reason: "enum form count truncated"}
		}
		count := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2
		if len(data) < off+count*valueSize {
			return 0, PropertyValue{}, 0, &ProtocolError{Reason: "enum form payload truncated"}
		}
		off += count * valueSize
	default:
		return 0, PropertyValue{}, 0, &ProtocolError{Reason: fmt.Sprintf("unknown form_flag 0x%02X", formFlag)}
	}

	pv = PropertyValue{
		DataType:     dataType,
		CurrentValue: currentValue,
		Writable:     getSet == 0x01,
		Enabled:      isEnabled == 0x01,
	}
	return code, pv, off, nil
}

// ParseAllPropDesc parses the payload of SdioGetAllExtDevicePropInfo: a
// u32 descriptor count followed by that many back-to-back descriptors.
func ParseAllPropDesc(data []byte) (map[uint16]PropertyValue, error) {
	if len(data) < 4 {
		return nil, &ProtocolError{Reason: "property list shorter than the count prefix"}
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	rest := data[4:]

	result := make(map[uint16]PropertyValue, count)
	for i := uint32(0); i < count; i++ {
		code, pv, consumed, err := parseOneDescriptor(rest)
		if err != nil {
			return nil, err
		}
		result[code] = pv
		rest = rest[consumed:]
	}
	return result, nil
}
