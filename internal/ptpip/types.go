package ptpip

// State is a node in the Session state machine (spec.md §4.3).
type State int

const (
	Disconnected State = iota
	Connecting
	InitCommand
	InitEvent
	OpeningSession
	SdioSetup
	Ready
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case InitCommand:
		return "InitCommand"
	case InitEvent:
		return "InitEvent"
	case OpeningSession:
		return "OpeningSession"
	case SdioSetup:
		return "SdioSetup"
	case Ready:
		return "Ready"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// PropertyValue is one entry of the parsed property descriptor table
// (spec.md §3 Property descriptor).
type PropertyValue struct {
	DataType     uint16
	CurrentValue uint32
	Writable     bool
	Enabled      bool
}

// SignedInt32 reinterprets CurrentValue as a two's-complement 32-bit
// integer, for properties whose data_type is one of the signed widths
// (0x03, 0x05, 0x07).
func (p PropertyValue) SignedInt32() int32 {
	return int32(p.CurrentValue)
}
