package device

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"ptpipcam/internal/ptpip"
)

var deviceLog = logrus.WithField("component", "device")

// Device is the typed contract callers use (spec.md §4.4), wrapping a
// ptpip.Session the way the teacher's Scanner wraps a vens.ControlSession.
type Device struct {
	session *ptpip.Session

	liveViewFPS atomic.Int64
}

// New creates a Device targeting host; Connect must be called before any
// other operation.
func New(host string) *Device {
	return &Device{session: ptpip.NewSession(host)}
}

// NewWithPort creates a Device targeting a non-standard port, for tests
// driving a loopback mock camera.
func NewWithPort(host string, port int) *Device {
	return &Device{session: ptpip.NewSessionWithPort(host, port)}
}

// Connect runs the session state machine to Ready and primes live-view by
// probing the reserved object handle, per spec.md §4.4 connect(ip).
func (d *Device) Connect(ctx context.Context) error {
	if err := d.session.Connect(ctx); err != nil {
		return err
	}
	if _, _, err := d.session.Do(ctx, ptpip.OpGetObjectInfo, []uint32{ptpip.LiveViewHandle}, nil, true); err != nil {
		d.session.Disconnect()
		return fmt.Errorf("priming live-view handle: %w", err)
	}
	deviceLog.Info("connected")
	return nil
}

// Disconnect tears the session down.
func (d *Device) Disconnect() error {
	return d.session.Disconnect()
}

// IsConnected reports whether the session is in the Ready state.
func (d *Device) IsConnected() bool {
	return d.session.State() == ptpip.Ready
}

// GetAllProperties issues SdioGetAllExtDevicePropInfo and returns the
// parsed property table.
func (d *Device) GetAllProperties(ctx context.Context) (map[uint16]ptpip.PropertyValue, error) {
	_, payload, err := d.session.Do(ctx, ptpip.OpSdioGetAllExtDevicePropInfo, nil, nil, true)
	if err != nil {
		return nil, err
	}
	return ptpip.ParseAllPropDesc(payload)
}

// SetPropertyU16 writes a 2-byte little-endian property value via
// SdioControlDevice, per spec.md §4.4.
func (d *Device) SetPropertyU16(ctx context.Context, code uint16, value uint16) error {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, value)
	_, _, err := d.session.Do(ctx, ptpip.OpSdioControlDevice, []uint32{uint32(code), 0}, payload, false)
	return err
}

// SetPropertyU32 writes a 4-byte little-endian property value via
// SdioControlDevice, per spec.md §4.4.
func (d *Device) SetPropertyU32(ctx context.Context, code uint16, value uint32) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, value)
	_, _, err := d.session.Do(ctx, ptpip.OpSdioControlDevice, []uint32{uint32(code), 0}, payload, false)
	return err
}

// GetLiveFrame issues GetObject(LiveViewHandle) and extracts the JPEG
// sub-region, returning ok=false when the frame is invalid or absent
// (spec.md §3 Live-view frame — invalid frames are never an error).
func (d *Device) GetLiveFrame(ctx context.Context) (frame []byte, ok bool, err error) {
	_, payload, err := d.session.Do(ctx, ptpip.OpGetObject, []uint32{ptpip.LiveViewHandle}, nil, true)
	if err != nil {
		return nil, false, err
	}
	frame, ok = ExtractLiveViewFrame(payload)
	return frame, ok, nil
}

// GetSettings performs one property round trip and formats every field
// spec.md §6 names, sparing the caller from repeating the formatting
// rules for every embedding.
func (d *Device) GetSettings(ctx context.Context) (Settings, error) {
	props, err := d.GetAllProperties(ctx)
	if err != nil {
		return Settings{}, err
	}
	return FormatSettings(props), nil
}

// FormatSettings applies the §6 formatting rules to an already-fetched
// property table.
func FormatSettings(props map[uint16]ptpip.PropertyValue) Settings {
	return Settings{
		ISO:          FormatISO(props[ptpip.PropISO].CurrentValue),
		ShutterSpeed: FormatShutterSpeed(props[ptpip.PropShutterSpeed].CurrentValue),
		Aperture:     FormatAperture(props[ptpip.PropFNumber].CurrentValue),
		WhiteBalance: FormatWhiteBalance(props[ptpip.PropWhiteBalance].CurrentValue),
		FocusMode:    FormatFocusMode(props[ptpip.PropFocusMode].CurrentValue),
		ExposureComp: FormatExposureBias(props[ptpip.PropExposureBiasCompensation].CurrentValue),
		BatteryLevel: FormatBatteryLevel(props),
		IsRecording:  IsRecording(props),
	}
}

// SetISO implements set_iso.
func (d *Device) SetISO(ctx context.Context, value string) error {
	v, err := EncodeISO(value)
	if err != nil {
		return err
	}
	return d.SetPropertyU32(ctx, ptpip.PropISO, v)
}

// SetShutterSpeed implements set_shutter_speed.
func (d *Device) SetShutterSpeed(ctx context.Context, value string) error {
	v, err := EncodeShutterSpeed(value)
	if err != nil {
		return err
	}
	return d.SetPropertyU32(ctx, ptpip.PropShutterSpeed, v)
}

// SetAperture implements set_aperture.
func (d *Device) SetAperture(ctx context.Context, value string) error {
	v, err := EncodeAperture(value)
	if err != nil {
		return err
	}
	return d.SetPropertyU32(ctx, ptpip.PropFNumber, v)
}

// SetWhiteBalance implements set_white_balance.
func (d *Device) SetWhiteBalance(ctx context.Context, value string) error {
	v, err := EncodeWhiteBalance(value)
	if err != nil {
		return err
	}
	return d.SetPropertyU16(ctx, ptpip.PropWhiteBalance, uint16(v))
}

// SetFocusMode implements set_focus_mode.
func (d *Device) SetFocusMode(ctx context.Context, value string) error {
	v, err := EncodeFocusMode(value)
	if err != nil {
		return err
	}
	return d.SetPropertyU16(ctx, ptpip.PropFocusMode, uint16(v))
}

// SetExposureCompensation implements set_exposure_compensation.
func (d *Device) SetExposureCompensation(ctx context.Context, ev float64) error {
	v, err := EncodeExposureBias(ev)
	if err != nil {
		return err
	}
	return d.SetPropertyU32(ctx, ptpip.PropExposureBiasCompensation, v)
}

// StartRecording implements start_recording.
func (d *Device) StartRecording(ctx context.Context) error {
	return d.SetPropertyU16(ctx, ptpip.PropMovieRecord, uint16(recordingStart))
}

// StopRecording implements stop_recording.
func (d *Device) StopRecording(ctx context.Context) error {
	return d.SetPropertyU16(ctx, ptpip.PropMovieRecord, uint16(recordingStop))
}

// StartZoom implements start_zoom("in"|"out", speed).
func (d *Device) StartZoom(ctx context.Context, direction string, speed int) error {
	v, err := EncodeZoom(direction, speed)
	if err != nil {
		return err
	}
	return d.SetPropertyU32(ctx, ptpip.PropZoom, v)
}

// StopZoom implements stop_zoom.
func (d *Device) StopZoom(ctx context.Context) error {
	return d.SetPropertyU32(ctx, ptpip.PropZoom, zoomHalt)
}

// PropertyUpdates relays the session's event-triggered property refreshes.
func (d *Device) PropertyUpdates() <-chan map[uint16]ptpip.PropertyValue {
	return d.session.PropertyUpdates()
}
