package rift

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/hmdkit/hmdkit/internal/buttons"
	"github.com/hmdkit/hmdkit/internal/hid"
)

// radioTransferRetries bounds the busy-bit wait so a wedged radio
// cannot stall the setup phase forever.
const radioTransferRetries = 256

var remoteButtonMap = []buttons.MapEntry{
	{Mask: remoteBitUp, Button: buttons.Up},
	{Mask: remoteBitDown, Button: buttons.Down},
	{Mask: remoteBitLeft, Button: buttons.Left},
	{Mask: remoteBitRight, Button: buttons.Right},
	{Mask: remoteBitOK, Button: buttons.OK},
	{Mask: remoteBitVolumeUp, Button: buttons.VolumeUp},
	{Mask: remoteBitVolumeDown, Button: buttons.VolumeDown},
	{Mask: remoteBitHome, Button: buttons.Home},
}

// wirelessDevice is the shared state of a radio-connected peripheral.
type wirelessDevice struct {
	name            string
	id              byte
	active          bool
	serial          string
	firmwareDate    string
	firmwareVersion string
	buttons         uint32
}

// touchController carries the Touch-specific decode state on top of the
// common wireless fields.
type touchController struct {
	wirelessDevice

	accel [3]int16
	gyro  [3]int16

	trigger uint16
	grip    uint16
	stick   [2]uint16

	capAX      uint16
	capBY      uint16
	capRest    uint16
	capStick   uint16
	capTrigger uint16
}

// radio tracks the wireless peripherals paired to a CV1 headset.
type radio struct {
	name   string
	remote wirelessDevice
	touch  [2]touchController
}

func (ra *radio) init(name string) {
	ra.name = name
	ra.remote.name = "Remote"
	ra.remote.id = deviceTypeRemote
	ra.touch[0].name = "Left Touch Controller"
	ra.touch[0].id = deviceTypeTouchLeft
	ra.touch[1].name = "Right Touch Controller"
	ra.touch[1].id = deviceTypeTouchRight
}

// radioTransfer issues a radio control command and waits for the radio
// to clear the busy bit.
func radioTransfer(dev hid.Device, a, b, c byte) error {
	if err := dev.SendFeatureReport([]byte{radioControlReportID, a, b, c}); err != nil {
		return fmt.Errorf("radio control: %w", err)
	}

	for i := 0; i < radioTransferRetries; i++ {
		rep, err := dev.GetFeatureReport(radioControlReportID, radioControlReportLen)
		if err != nil {
			return fmt.Errorf("radio control: %w", err)
		}
		if len(rep) < 2 {
			return fmt.Errorf("radio control: short report (%d bytes)", len(rep))
		}
		if rep[1]&radioStatusBusy != 0 {
			continue
		}
		if rep[1]&radioStatusError != 0 {
			return fmt.Errorf("radio control: device reported error")
		}
		return nil
	}
	return fmt.Errorf("radio control: busy after %d reads", radioTransferRetries)
}

// radioRead performs a control transfer and fetches the resulting data
// report.
func radioRead(dev hid.Device, a, b, c byte) ([]byte, error) {
	if err := radioTransfer(dev, a, b, c); err != nil {
		return nil, err
	}
	rep, err := dev.GetFeatureReport(radioDataReportID, radioDataReportLen)
	if err != nil {
		return nil, fmt.Errorf("radio data: %w", err)
	}
	if len(rep) < 2 {
		return nil, fmt.Errorf("radio data: short report (%d bytes)", len(rep))
	}
	return rep[1:], nil
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isPrint(b byte) bool { return b >= 0x20 && b < 0x7f }

// asciiPrefix extracts the leading run of bytes accepted by ok.
func asciiPrefix(data []byte, max int, ok func(byte) bool) string {
	if len(data) > max {
		data = data[:max]
	}
	n := 0
	for n < len(data) && ok(data[n]) {
		n++
	}
	return string(data[:n])
}

func radioGetSerial(dev hid.Device, deviceType byte) (string, error) {
	data, err := radioRead(dev, 0x03, radioSerialNumberControl, deviceType)
	if err != nil {
		return "", err
	}
	return asciiPrefix(data, 14, isAlnum), nil
}

func radioGetFirmwareVersion(dev hid.Device, deviceType byte) (date, version string, err error) {
	data, err := radioRead(dev, 0x03, radioFirmwareVersionControl, deviceType)
	if err != nil {
		return "", "", err
	}
	date = asciiPrefix(data, 11, isPrint)
	if len(data) > 11 {
		version = asciiPrefix(data[11:], 10, isAlnum)
	}
	return date, version, nil
}

// activate reads the peripheral's identity over the radio the first
// time a message from it arrives.
func (w *wirelessDevice) activate(dev hid.Device) {
	serial, err := radioGetSerial(dev, w.id)
	if err != nil {
		slog.Warn("failed to read serial number",
			slog.String("device", w.name),
			slog.Any("error", err))
		return
	}
	w.serial = serial

	date, version, err := radioGetFirmwareVersion(dev, w.id)
	if err != nil {
		slog.Warn("failed to read firmware version",
			slog.String("device", w.name),
			slog.Any("error", err))
		return
	}
	w.firmwareDate = date
	w.firmwareVersion = version

	slog.Info("wireless device active",
		slog.String("device", w.name),
		slog.String("serial", w.serial),
		slog.String("firmware", w.firmwareVersion))

	w.active = true
}

// Radio message payload layout (after the report ID byte):
//
//	0   device_type u8
//	1   reserved    u8
//	2   body        per device type
//
// Remote body: buttons le16.
// Touch body: accel[3] le16, gyro[3] le16, buttons u8,
// trigger_grip_stick u8[5], adc_channel u8, adc_value le16.
const radioMessageMin = 23

// decodeRadioMessage routes one wireless message to the owning
// peripheral's decoder. Unknown device types are protocol faults:
// logged with the raw bytes, then discarded.
func (r *Rift) decodeRadioMessage(data []byte) {
	if len(data) < radioMessageMin {
		return
	}

	switch data[0] {
	case deviceTypeRemote:
		r.decodeRemoteMessage(data[2:])
	case deviceTypeTouchLeft:
		r.decodeTouchMessage(&r.radio.touch[0], data[2:])
	case deviceTypeTouchRight:
		r.decodeTouchMessage(&r.radio.touch[1], data[2:])
	default:
		slog.Warn("unknown wireless device",
			slog.String("device", r.name),
			slog.Int("type", int(data[0])),
			slog.String("report", hid.DumpReport(data)))
	}
}

func (r *Rift) decodeRemoteMessage(body []byte) {
	mask := uint32(binary.LittleEndian.Uint16(body[0:2]))
	if mask == r.radio.remote.buttons {
		return
	}
	if r.buttonSink != nil {
		buttons.Diff(r.radio.remote.name, r.radio.remote.buttons, mask,
			remoteButtonMap, r.buttonSink)
	}
	r.radio.remote.buttons = mask
}

func (r *Rift) decodeTouchMessage(touch *touchController, body []byte) {
	if !touch.active {
		touch.activate(r.dev)
	}

	for axis := 0; axis < 3; axis++ {
		touch.accel[axis] = int16(binary.LittleEndian.Uint16(body[2*axis:]))
		touch.gyro[axis] = int16(binary.LittleEndian.Uint16(body[6+2*axis:]))
	}

	touch.buttons = uint32(body[12])

	// Trigger, grip, and both stick axes are 10-bit values packed
	// into five bytes.
	tgs := body[13:18]
	touch.trigger = uint16(tgs[0]) | uint16(tgs[1]&0x03)<<8
	touch.grip = uint16(tgs[1]&0xfc)>>2 | uint16(tgs[2]&0x0f)<<6
	touch.stick[0] = uint16(tgs[2]&0xf0)>>4 | uint16(tgs[3]&0x3f)<<4
	touch.stick[1] = uint16(tgs[3]&0xc0)>>6 | uint16(tgs[4])<<2

	adcValue := binary.LittleEndian.Uint16(body[19:21])
	switch body[18] {
	case adcChannelAX:
		touch.capAX = adcValue
	case adcChannelBY:
		touch.capBY = adcValue
	case adcChannelRest:
		touch.capRest = adcValue
	case adcChannelStick:
		touch.capStick = adcValue
	case adcChannelTrigger:
		touch.capTrigger = adcValue
	}
}
