package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ptpipcam/internal/ptpip"
)

// Settings is the formatted snapshot returned by GetSettings (spec.md §6
// "Public operations consumed by the shell").
type Settings struct {
	ISO             string
	ShutterSpeed    string
	Aperture        string
	WhiteBalance    string
	FocusMode       string
	ExposureComp    string
	BatteryLevel    int
	IsRecording     bool
}

// EncodeISO implements spec.md §4.4: "auto" (any case) encodes to 0xFFFFFF;
// a non-negative decimal integer encodes to itself.
func EncodeISO(s string) (uint32, error) {
	if strings.EqualFold(s, "auto") {
		return 0xFFFFFF, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, &ptpip.InvalidArgumentError{Field: "iso", Reason: "not \"auto\" or a non-negative integer"}
	}
	return uint32(n), nil
}

// FormatISO implements the §6 ISO display rule.
func FormatISO(raw uint32) string {
	if raw == 0xFFFFFF {
		return "Auto"
	}
	return strconv.FormatUint(uint64(raw), 10)
}

type shutterRatio struct {
	text string
	num  uint32
	den  uint32
}

// shutterSpeeds is the closed enumeration of spec.md §4.4.
var shutterSpeeds = []shutterRatio{
	{"1/24", 1, 24}, {"1/30", 1, 30}, {"1/48", 1, 48}, {"1/50", 1, 50},
	{"1/60", 1, 60}, {"1/100", 1, 100}, {"1/120", 1, 120}, {"1/250", 1, 250},
	{"1/500", 1, 500}, {"1/1000", 1, 1000},
}

// EncodeShutterSpeed rejects anything outside the closed enumeration.
func EncodeShutterSpeed(s string) (uint32, error) {
	for _, r := range shutterSpeeds {
		if r.text == s {
			return r.num<<16 | r.den, nil
		}
	}
	return 0, &ptpip.InvalidArgumentError{Field: "shutter_speed", Reason: "not one of the enumerated ratios"}
}

// FormatShutterSpeed implements the §6 display rule: num=raw>>16,
// den=raw&0xFFFF; den==0 is a whole-second exposure.
func FormatShutterSpeed(raw uint32) string {
	num := raw >> 16
	den := raw & 0xFFFF
	switch {
	case den == 0:
		return fmt.Sprintf("%d\"", num)
	case num == 1:
		return fmt.Sprintf("1/%d", den)
	default:
		return fmt.Sprintf("%d/%d", num, den)
	}
}

// EncodeAperture accepts "f/N", "fN", or bare "N".
func EncodeAperture(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "f/"), "f")
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || n < 0 {
		return 0, &ptpip.InvalidArgumentError{Field: "aperture", Reason: "not a recognised f-number"}
	}
	return uint32(math.Round(n * 100)), nil
}

// FormatAperture implements the §6 display rule.
func FormatAperture(raw uint32) string {
	if raw == 0 {
		return "--"
	}
	return fmt.Sprintf("f/%.1f", float64(raw)/100)
}

// EncodeExposureBias implements spec.md §4.4: EV in [-3.0, +3.0] encodes to
// the two's-complement u32 of round(ev*1000).
func EncodeExposureBias(ev float64) (uint32, error) {
	if ev < -3.0 || ev > 3.0 {
		return 0, &ptpip.InvalidArgumentError{Field: "exposure_compensation", Reason: "outside [-3.0, +3.0]"}
	}
	return uint32(int32(math.Round(ev * 1000))), nil
}

// DecodeExposureBias reverses EncodeExposureBias for display and for the
// value-codec round-trip law.
func DecodeExposureBias(raw uint32) float64 {
	return float64(int32(raw)) / 1000
}

// FormatExposureBias implements the §6 display rule: one decimal, explicit
// sign for non-negative values.
func FormatExposureBias(raw uint32) string {
	return fmt.Sprintf("%+.1f", DecodeExposureBias(raw))
}

var whiteBalanceCodes = map[string]uint32{
	"auto":        0x0002,
	"daylight":    0x0004,
	"shade":       0x8011,
	"cloudy":      0x8010,
	"tungsten":    0x0006,
	"fluorescent": 0x0001,
	"flash":       0x0007,
	"custom":      0x8020,
}

var whiteBalanceNames = map[uint32]string{}

func init() {
	for name, code := range whiteBalanceCodes {
		whiteBalanceNames[code] = capitalize(name)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// EncodeWhiteBalance looks up a case-insensitive name in the §4.4 table.
func EncodeWhiteBalance(s string) (uint32, error) {
	code, ok := whiteBalanceCodes[strings.ToLower(s)]
	if !ok {
		return 0, &ptpip.InvalidArgumentError{Field: "white_balance", Reason: "not a recognised white-balance name"}
	}
	return code, nil
}

// FormatWhiteBalance returns the canonical name for a raw code, or the
// hex code itself if the camera reports a value outside the known table.
func FormatWhiteBalance(raw uint32) string {
	if name, ok := whiteBalanceNames[raw]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", raw)
}

var focusModeCodes = map[string]uint32{
	"mf":    0x0001,
	"af-s":  0x0002,
	"af-c":  0x8004,
	"dmf":   0x8005,
}

var focusModeNames = map[uint32]string{
	0x0001: "MF",
	0x0002: "AF-S",
	0x8004: "AF-C",
	0x8005: "DMF",
}

// EncodeFocusMode looks up a case-insensitive name in the §4.4 table.
func EncodeFocusMode(s string) (uint32, error) {
	code, ok := focusModeCodes[strings.ToLower(s)]
	if !ok {
		return 0, &ptpip.InvalidArgumentError{Field: "focus_mode", Reason: "not a recognised focus mode"}
	}
	return code, nil
}

// FormatFocusMode returns the canonical name for a raw code.
func FormatFocusMode(raw uint32) string {
	if name, ok := focusModeNames[raw]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", raw)
}

// Recording start/stop values for property MovieRecord (spec.md §4.4).
const (
	recordingStart uint32 = 0x0002
	recordingStop  uint32 = 0x0001
)

// EncodeZoom packs direction into the high 16 bits and speed into the low
// 16 bits (spec.md §4.4). direction must be "in" (tele) or "out" (wide);
// speed must be in [1, 7].
func EncodeZoom(direction string, speed int) (uint32, error) {
	var dir uint32
	switch strings.ToLower(direction) {
	case "in":
		dir = 0x0001
	case "out":
		dir = 0x0002
	default:
		return 0, &ptpip.InvalidArgumentError{Field: "zoom_direction", Reason: "must be \"in\" or \"out\""}
	}
	if speed < 1 || speed > 7 {
		return 0, &ptpip.InvalidArgumentError{Field: "zoom_speed", Reason: "must be in [1, 7]"}
	}
	return dir<<16 | uint32(speed), nil
}

// zoomHalt is the value that stops an in-progress zoom.
const zoomHalt uint32 = 0

// FormatBatteryLevel implements the §6 display rule: -1 when the property
// is absent or unreadable.
func FormatBatteryLevel(props map[uint16]ptpip.PropertyValue) int {
	pv, ok := props[ptpip.PropBatteryLevel]
	if !ok || !pv.Enabled {
		return -1
	}
	return int(pv.CurrentValue)
}

// IsRecording implements the §6 rule: true iff property RecordingState's
// current value is 0x01.
func IsRecording(props map[uint16]ptpip.PropertyValue) bool {
	pv, ok := props[ptpip.PropRecordingState]
	return ok && pv.CurrentValue == 0x01
}
