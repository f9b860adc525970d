package vive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hmdkit/hmdkit/internal/buttons"
	"github.com/hmdkit/hmdkit/internal/device"
	"github.com/hmdkit/hmdkit/internal/hid"
	"github.com/hmdkit/hmdkit/internal/imu"
	"github.com/hmdkit/hmdkit/internal/lighthouse"
	"github.com/hmdkit/hmdkit/internal/usbenum"
)

// Controller is a wired Vive controller. It exposes three HID
// interfaces: IMU samples, Lighthouse pulse timings, and buttons.
type Controller struct {
	name   string
	serial string

	imuDev    hid.Device
	pulseDev  hid.Device
	buttonDev hid.Device

	imu        *IMU
	watchman   lighthouse.Watchman
	buttonSink buttons.Sink

	config  *DeviceConfig
	buttons uint32
}

// NewController wires a controller from its three HID interfaces in
// interface order (IMU, Lighthouse receiver, buttons).
func NewController(serial string, ifaces []hid.Device, sink imu.Sink,
	watchman lighthouse.Watchman, buttonSink buttons.Sink) (*Controller, error) {

	if len(ifaces) != 3 {
		return nil, fmt.Errorf("vive controller: want 3 HID interfaces, got %d", len(ifaces))
	}

	c := &Controller{
		name:       fmt.Sprintf("Vive Controller %s USB", serial),
		serial:     serial,
		imuDev:     ifaces[0],
		pulseDev:   ifaces[1],
		buttonDev:  ifaces[2],
		watchman:   watchman,
		buttonSink: buttonSink,
	}
	c.imu = NewIMU(sink)
	return c, nil
}

func (c *Controller) Name() string { return c.name }

// Start downloads the stored configuration. Calibration is nice to
// have: parse failures and identity mismatches are logged and the
// device continues with degraded calibration.
func (c *Controller) Start(ctx context.Context) error {
	cfg, err := ReadDeviceConfig(c.imuDev)
	if err != nil {
		slog.Warn("parsing configuration data failed",
			slog.String("device", c.name),
			slog.Any("error", err))
		return nil
	}
	c.config = cfg
	c.checkIdentity(cfg)
	return nil
}

func (c *Controller) checkIdentity(cfg *DeviceConfig) {
	if cfg.DeviceClass != "controller" {
		slog.Warn("unknown device class",
			slog.String("device", c.name),
			slog.String("class", cfg.DeviceClass))
	}
	if cfg.DevicePID != usbenum.ProductViveController {
		slog.Warn("unknown device PID",
			slog.String("device", c.name),
			slog.String("pid", fmt.Sprintf("0x%04x", cfg.DevicePID)))
	}
	if cfg.DeviceVID != usbenum.VendorValve {
		slog.Warn("unknown device VID",
			slog.String("device", c.name),
			slog.String("vid", fmt.Sprintf("0x%04x", cfg.DeviceVID)))
	}
	if cfg.SerialNumber != c.serial {
		slog.Warn("configuration serial number differs",
			slog.String("device", c.name),
			slog.String("serial", cfg.SerialNumber))
	}
}

// Config returns the parsed device configuration, or nil when the
// download failed and the device runs uncalibrated.
func (c *Controller) Config() *DeviceConfig { return c.config }

// RunLoop dispatches reports from the three interfaces until
// cancellation or a transport fault.
func (c *Controller) RunLoop(ctx context.Context) error {
	loop := &device.Loop{
		Name: c.name,
		Endpoints: []device.Endpoint{
			{
				Name:    "imu",
				Dev:     c.imuDev,
				Reports: map[byte]int{imuReportID: imuReportLen},
				Handle:  c.handleIMUReport,
			},
			{
				Name:    "lighthouse",
				Dev:     c.pulseDev,
				Reports: map[byte]int{pulseReportID: pulseReportLen},
				Handle:  c.handlePulseReport,
			},
			{
				Name:    "buttons",
				Dev:     c.buttonDev,
				Reports: map[byte]int{buttonReportID: buttonReportLen},
				Handle:  c.handleButtonReport,
			},
		},
	}
	return loop.Run(ctx)
}

func (c *Controller) handleIMUReport(rep hid.Report) {
	if !c.ensureRanges() {
		return
	}
	c.imu.DecodeSensorReport(rep.Data)
}

// ensureRanges lazily fetches the full-scale ranges from the run loop;
// the device only answers the feature report reliably once it streams.
func (c *Controller) ensureRanges() bool {
	if c.imu.RangesKnown() {
		return true
	}
	if err := c.imu.FetchRanges(c.name, c.imuDev); err != nil {
		slog.Warn("failed to get gyro/accelerometer range modes",
			slog.String("device", c.name),
			slog.Any("error", err))
		return false
	}
	return true
}

func (c *Controller) handlePulseReport(rep hid.Report) {
	DecodePulseReport(c.name, rep, c.watchman)
}

func (c *Controller) handleButtonReport(rep hid.Report) {
	c.decodeButtonReport(rep.Data)
}

func (c *Controller) Stop() error {
	c.imuDev.Close()
	c.pulseDev.Close()
	c.buttonDev.Close()
	return nil
}

// Headset is the Vive HMD. Only its IMU interface streams telemetry
// relevant here; the Lighthouse receiver of the headset speaks a
// different protocol revision and is not handled yet.
type Headset struct {
	name   string
	serial string

	imuDev hid.Device
	imu    *IMU
}

func NewHeadset(serial string, imuDev hid.Device, sink imu.Sink) *Headset {
	h := &Headset{
		name:   fmt.Sprintf("Vive %s", serial),
		serial: serial,
		imuDev: imuDev,
	}
	h.imu = NewIMU(sink)
	return h
}

func (h *Headset) Name() string { return h.name }

func (h *Headset) Start(ctx context.Context) error {
	if err := h.imu.FetchRanges(h.name, h.imuDev); err != nil {
		slog.Warn("failed to get gyro/accelerometer range modes",
			slog.String("device", h.name),
			slog.Any("error", err))
	}
	return nil
}

func (h *Headset) RunLoop(ctx context.Context) error {
	loop := &device.Loop{
		Name: h.name,
		Endpoints: []device.Endpoint{
			{
				Name:    "imu",
				Dev:     h.imuDev,
				Reports: map[byte]int{imuReportID: imuReportLen},
				Handle:  h.handleIMUReport,
			},
		},
	}
	return loop.Run(ctx)
}

func (h *Headset) handleIMUReport(rep hid.Report) {
	if !h.imu.RangesKnown() {
		if err := h.imu.FetchRanges(h.name, h.imuDev); err != nil {
			slog.Warn("failed to get gyro/accelerometer range modes",
				slog.String("device", h.name),
				slog.Any("error", err))
			return
		}
	}
	h.imu.DecodeSensorReport(rep.Data)
}

func (h *Headset) Stop() error {
	return h.imuDev.Close()
}
