package rift

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/hmdkit/hmdkit/internal/buttons"
	"github.com/hmdkit/hmdkit/internal/device"
	"github.com/hmdkit/hmdkit/internal/hid"
	"github.com/hmdkit/hmdkit/internal/imu"
)

// Type selects the headset generation. The protocol is shared; the two
// differ in LED count and in the CV1's radio and power control.
type Type int

const (
	TypeDK2 Type = iota
	TypeCV1
)

// Options carries per-device tuning passed in at construction.
type Options struct {
	// Flicker enables the auto-incrementing LED blink pattern.
	Flicker bool

	// ReportRate is the requested sensor report rate in Hz. The
	// device clamps it to [5, sample_rate]. Zero keeps the device's
	// current rate.
	ReportRate int
}

// Rift drives an Oculus Rift DK2 or CV1 headset over a single HID
// interface: feature-report setup, the streamed sensor and radio
// messages, and periodic keepalives.
type Rift struct {
	name string
	typ  Type
	dev  hid.Device

	sink       imu.Sink
	buttonSink buttons.Sink

	leds        LEDModel
	imuPosition [3]float64

	clock imu.Clock
	radio radio

	flicker             bool
	wantRate            int
	reportRate          int
	reportInterval      int
	lastSampleTimestamp uint32
	count               int
}

// New wires a Rift decoder to its HID interface. sink receives decoded
// IMU samples; buttonSink, if non-nil, receives remote button events.
func New(typ Type, dev hid.Device, sink imu.Sink, buttonSink buttons.Sink, opts Options) *Rift {
	name := "Rift DK2"
	if typ == TypeCV1 {
		name = "Rift CV1"
	}
	r := &Rift{
		name:       name,
		typ:        typ,
		dev:        dev,
		sink:       sink,
		buttonSink: buttonSink,
		flicker:    opts.Flicker,
		wantRate:   opts.ReportRate,
	}
	r.radio.init(name)
	return r
}

func (r *Rift) Name() string { return r.name }

// LEDs returns the geometry and blink patterns read during setup.
func (r *Rift) LEDs() *LEDModel { return &r.leds }

// Sensor config report payload offsets (after the report ID byte):
// command le16, flags u8, packet_interval u8, sample_rate le16.
const (
	cfgOffFlags    = 2
	cfgOffInterval = 3
	cfgOffRate     = 4
)

// getConfig reads the current sensor configuration and derives the
// effective report rate from the packet interval.
func (r *Rift) getConfig() error {
	rep, err := r.dev.GetFeatureReport(configReportID, configReportLen)
	if err != nil {
		return fmt.Errorf("config report: %w", err)
	}
	if len(rep) < configReportLen {
		return fmt.Errorf("config report: short report (%d bytes)", len(rep))
	}
	data := rep[1:]

	sampleRate := int(binary.LittleEndian.Uint16(data[cfgOffRate:]))
	reportRate := sampleRate / (int(data[cfgOffInterval]) + 1)

	slog.Info("sensor configuration",
		slog.String("device", r.name),
		slog.Int("sample_rate_hz", sampleRate),
		slog.Int("report_rate_hz", reportRate),
		slog.String("flags", fmt.Sprintf("0x%02x", data[cfgOffFlags])))

	r.reportRate = reportRate
	r.reportInterval = 1000000 / reportRate

	return nil
}

// setReportRate configures the sensor report rate, clamped to
// [5 Hz, sample rate].
func (r *Rift) setReportRate(rate int) error {
	rep, err := r.dev.GetFeatureReport(configReportID, configReportLen)
	if err != nil {
		return fmt.Errorf("config report: %w", err)
	}
	if len(rep) < configReportLen {
		return fmt.Errorf("config report: short report (%d bytes)", len(rep))
	}

	sampleRate := int(binary.LittleEndian.Uint16(rep[1+cfgOffRate:]))
	if rate > sampleRate {
		rate = sampleRate
	}
	if rate < 5 {
		rate = 5
	}

	rep[1+cfgOffInterval] = byte(sampleRate/rate - 1)

	if err := r.dev.SendFeatureReport(rep); err != nil {
		return fmt.Errorf("config report: %w", err)
	}

	r.reportRate = rate
	r.reportInterval = 1000000 / rate

	return nil
}

// sendKeepalive keeps the device streaming for another 10 seconds.
func (r *Rift) sendKeepalive() error {
	buf := make([]byte, keepaliveReportLen)
	buf[0] = keepaliveReportID
	buf[3] = keepaliveType
	binary.LittleEndian.PutUint16(buf[4:6], keepaliveTimeoutMs)
	return r.dev.SendFeatureReport(buf)
}

// sendTracking enables the IR tracking LEDs, either with the
// auto-incrementing blink pattern or constantly lit.
func (r *Rift) sendTracking(blink bool) error {
	buf := make([]byte, trackingReportLen)
	buf[0] = trackingReportID
	if blink {
		buf[3] = 0
		buf[4] = trackingEnable | trackingUseCarrier | trackingAutoIncrement
	} else {
		buf[3] = 0xff
		buf[4] = trackingEnable | trackingUseCarrier
	}
	binary.LittleEndian.PutUint16(buf[6:8], trackingExposureUs)
	binary.LittleEndian.PutUint16(buf[8:10], trackingPeriodUs)
	binary.LittleEndian.PutUint16(buf[10:12], trackingVsyncOffset)
	buf[12] = trackingDutyCycle
	return r.dev.SendFeatureReport(buf)
}

// Display report payload offsets (after the report ID byte):
// command le16, brightness u8, mode u8, flags1 u8, flags2 u8,
// persistence le16, total_rows le16.
const (
	dispOffBrightness  = 2
	dispOffFlags2      = 5
	dispOffPersistence = 6
	dispOffTotalRows   = 8
)

// sendDisplay configures low persistence and pixel readback for
// latency measurement.
func (r *Rift) sendDisplay(lowPersistence, pixelReadback bool) error {
	rep, err := r.dev.GetFeatureReport(displayReportID, displayReportLen)
	if err != nil {
		return fmt.Errorf("display report: %w", err)
	}
	if len(rep) < displayReportLen {
		return fmt.Errorf("display report: short report (%d bytes)", len(rep))
	}
	data := rep[1:]

	totalRows := binary.LittleEndian.Uint16(data[dispOffTotalRows:])

	var persistence uint16
	if lowPersistence {
		data[dispOffBrightness] = 255
		persistence = totalRows * 18 / 100
	} else {
		data[dispOffBrightness] = 0
		persistence = totalRows
	}
	if pixelReadback {
		data[dispOffFlags2] |= displayReadPixel
	} else {
		data[dispOffFlags2] &^= displayReadPixel
	}
	data[dispOffFlags2] &^= displayDirectPentile

	binary.LittleEndian.PutUint16(data[dispOffPersistence:], persistence)

	if err := r.dev.SendFeatureReport(rep); err != nil {
		return fmt.Errorf("display report: %w", err)
	}
	return nil
}

// cv1Power sets or clears CV1 power components with a get-modify-send
// cycle.
func (r *Rift) cv1Power(components byte, up bool) error {
	rep, err := r.dev.GetFeatureReport(cv1PowerReportID, cv1PowerReportLen)
	if err != nil {
		return fmt.Errorf("power report: %w", err)
	}
	if len(rep) < cv1PowerReportLen {
		return fmt.Errorf("power report: short report (%d bytes)", len(rep))
	}

	if up {
		rep[3] |= components
	} else {
		rep[3] &^= components
	}

	if err := r.dev.SendFeatureReport(rep); err != nil {
		return fmt.Errorf("power report: %w", err)
	}
	return nil
}

// logRadioFirmware reads and logs the headset radio firmware version.
func (r *Rift) logRadioFirmware() {
	data, err := radioRead(r.dev, 0x05, radioFirmwareVersionControl, 0x05)
	if err != nil {
		slog.Warn("failed to read radio firmware version",
			slog.String("device", r.name),
			slog.Any("error", err))
		return
	}
	if len(data) < 14 {
		return
	}
	slog.Info("radio firmware",
		slog.String("device", r.name),
		slog.String("version", asciiPrefix(data[14:], 10, isAlnum)))
}

// SetFlicker switches the LED blink pattern at runtime.
func (r *Rift) SetFlicker(flicker bool) error {
	if r.flicker == flicker {
		return nil
	}
	r.flicker = flicker
	return r.sendTracking(flicker)
}

// expectedLEDs is the factory LED count per generation.
func (r *Rift) expectedLEDs() int {
	if r.typ == TypeCV1 {
		return 44
	}
	return 40
}

// Start reads the factory calibration and configures tracking, report
// rate, and display before streaming begins.
func (r *Rift) Start(ctx context.Context) error {
	if err := r.getPositions(); err != nil {
		return fmt.Errorf("read calibrated positions: %w", err)
	}
	if err := r.getLEDPatterns(); err != nil {
		return fmt.Errorf("read led patterns: %w", err)
	}
	if r.leds.Num != r.expectedLEDs() {
		slog.Warn("unexpected ir led count",
			slog.String("device", r.name),
			slog.Int("leds", r.leds.Num))
	}

	if err := r.getConfig(); err != nil {
		return err
	}
	if r.wantRate > 0 {
		if err := r.setReportRate(r.wantRate); err != nil {
			return err
		}
	}

	if err := r.sendTracking(r.flicker); err != nil {
		return err
	}
	if err := r.sendDisplay(true, true); err != nil {
		return err
	}

	if r.typ == TypeCV1 {
		if err := r.cv1Power(powerDisplay|powerLEDs, true); err != nil {
			return err
		}
		r.logRadioFirmware()
	}

	return nil
}

// RunLoop streams sensor and radio messages until cancellation or a
// transport fault, resending keepalives on poll timeouts and after
// nine seconds' worth of reports.
func (r *Rift) RunLoop(ctx context.Context) error {
	slog.Info("sending keepalive", slog.String("device", r.name))
	if err := r.sendKeepalive(); err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}
	r.count = 0

	loop := device.Loop{
		Name: r.name,
		Endpoints: []device.Endpoint{{
			Name: "sensor",
			Dev:  r.dev,
			Reports: map[byte]int{
				sensorMessageID: sensorMessageLen,
				radioMessageID:  radioMessageLen,
			},
			Handle: r.handleReport,
		}},
		OnTimeout: func() {
			slog.Debug("resending keepalive", slog.String("device", r.name))
			if err := r.sendKeepalive(); err != nil {
				slog.Warn("keepalive failed",
					slog.String("device", r.name),
					slog.Any("error", err))
			}
			r.count = 0
		},
	}

	return loop.Run(ctx)
}

func (r *Rift) handleReport(rep hid.Report) {
	switch rep.ID {
	case sensorMessageID:
		r.decodeSensorMessage(rep.Data)
		r.count++
		if r.count > 9*r.reportRate {
			if err := r.sendKeepalive(); err != nil {
				slog.Warn("keepalive failed",
					slog.String("device", r.name),
					slog.Any("error", err))
			}
			r.count = 0
		}
	case radioMessageID:
		r.decodeRadioMessage(rep.Data)
	}
}

// Stop disables the tracking LEDs, drops the report rate, and closes
// the interface. Teardown is best effort; the first error is returned
// after all steps ran.
func (r *Rift) Stop() error {
	var firstErr error

	rep, err := r.dev.GetFeatureReport(trackingReportID, trackingReportLen)
	if err == nil && len(rep) >= trackingReportLen {
		rep[4] &^= trackingEnable
		err = r.dev.SendFeatureReport(rep)
	}
	if err != nil {
		firstErr = fmt.Errorf("disable tracking: %w", err)
	}

	if err := r.setReportRate(50); err != nil && firstErr == nil {
		firstErr = err
	}

	if r.typ == TypeCV1 {
		if err := r.cv1Power(powerLEDs, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := r.dev.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close: %w", err)
	}
	return firstErr
}
