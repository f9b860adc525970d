package vive

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hmdkit/hmdkit/internal/hid"
)

// maxConfigSize bounds the config blob readout so a misbehaving device
// cannot grow it forever.
const maxConfigSize = 64 * 1024

// DeviceConfig is the JSON configuration document stored on the device:
// factory calibration vectors plus identity fields that are checked
// against the expected device.
type DeviceConfig struct {
	AccBias   [3]float64 `json:"acc_bias"`
	AccScale  [3]float64 `json:"acc_scale"`
	GyroBias  [3]float64 `json:"gyro_bias"`
	GyroScale [3]float64 `json:"gyro_scale"`

	DeviceClass  string `json:"device_class"`
	DevicePID    int64  `json:"device_pid"`
	DeviceVID    int64  `json:"device_vid"`
	SerialNumber string `json:"device_serial_number"`
}

// fetchConfigBlob downloads the zlib-compressed configuration blob over
// feature reports: one start report arms the read pointer, then each
// read report carries a length byte and up to 62 payload bytes until a
// zero length marks the end.
func fetchConfigBlob(dev hid.Device) ([]byte, error) {
	if _, err := dev.GetFeatureReport(configStartReportID, configReportLen); err != nil {
		return nil, fmt.Errorf("config start: %w", err)
	}

	var blob []byte
	for {
		rep, err := dev.GetFeatureReport(configReadReportID, configReportLen)
		if err != nil {
			return nil, fmt.Errorf("config read: %w", err)
		}
		if len(rep) < 2 {
			return nil, fmt.Errorf("config read: short report (%d bytes)", len(rep))
		}

		n := int(rep[1])
		if n == 0 {
			break
		}
		if n > len(rep)-2 {
			return nil, fmt.Errorf("config read: length byte %d exceeds report", n)
		}

		blob = append(blob, rep[2:2+n]...)
		if len(blob) > maxConfigSize {
			return nil, fmt.Errorf("config read: blob exceeds %d bytes", maxConfigSize)
		}
	}

	return blob, nil
}

// ReadDeviceConfig downloads and parses the device configuration.
func ReadDeviceConfig(dev hid.Device) (*DeviceConfig, error) {
	blob, err := fetchConfigBlob(dev)
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("config inflate: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("config inflate: %w", err)
	}

	cfg := &DeviceConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	return cfg, nil
}
