// Package rift decodes the USB HID telemetry of Oculus Rift headsets
// (DK2 and CV1) and their wireless peripherals: periodic sensor
// messages with 21-bit packed IMU triples, radio messages from the
// remote and Touch controllers, and the feature-report setup surface
// (configuration, report rate, tracking LEDs, display, keepalive).
package rift

// Streamed input reports on the headset interface.
const (
	sensorMessageID  = 0x0b
	sensorMessageLen = 64

	radioMessageID  = 0x0c
	radioMessageLen = 64
)

// Feature reports.
const (
	configReportID  = 0x02
	configReportLen = 7

	displayReportID  = 0x0d
	displayReportLen = 11

	trackingReportID  = 0x0e
	trackingReportLen = 13

	positionReportID  = 0x0f
	positionReportLen = 30

	ledPatternReportID  = 0x10
	ledPatternReportLen = 12

	keepaliveReportID  = 0x11
	keepaliveReportLen = 6

	radioControlReportID  = 0x1a
	radioControlReportLen = 4

	radioDataReportID  = 0x1b
	radioDataReportLen = 64

	cv1PowerReportID  = 0x1d
	cv1PowerReportLen = 4
)

// Sensor config flags.
const (
	configRawMode           = 0x01
	configCalibrationTest   = 0x02
	configUseCalibration    = 0x04
	configAutoCalibration   = 0x08
	configMotionKeepalive   = 0x10
	configCommandKeepalive  = 0x20
	configSensorCoordinates = 0x40
)

// Tracking report flags and defaults.
const (
	trackingEnable        = 0x01
	trackingAutoIncrement = 0x02
	trackingUseCarrier    = 0x04
	trackingSyncInput     = 0x08
	trackingVsyncLock     = 0x10
	trackingCustomPattern = 0x20

	trackingExposureUs  = 350
	trackingPeriodUs    = 16666
	trackingVsyncOffset = 0
	trackingDutyCycle   = 0x7f
)

// Display report flags.
const (
	displayReadPixel     = 0x04
	displayDirectPentile = 0x08
)

// Keepalive.
const (
	keepaliveType      = 0x0b
	keepaliveTimeoutMs = 10000
)

// CV1 power components.
const (
	powerDisplay   = 0x01
	powerAudio     = 0x02
	powerLEDs      = 0x04
	powerProximity = 0x08
)

// Radio transfer selectors and status bits.
const (
	radioSerialNumberControl    = 0x81
	radioFirmwareVersionControl = 0x82

	radioStatusBusy  = 0x80
	radioStatusError = 0x08
)

// Wireless device types carried in radio messages.
const (
	deviceTypeRemote     = 0x01
	deviceTypeTouchLeft  = 0x02
	deviceTypeTouchRight = 0x03
)

// Touch controller ADC channels.
const (
	adcChannelAX      = 0x01
	adcChannelBY      = 0x02
	adcChannelRest    = 0x03
	adcChannelStick   = 0x04
	adcChannelTrigger = 0x05
)

// Remote button bits.
const (
	remoteBitUp         = 1 << 0
	remoteBitDown       = 1 << 1
	remoteBitLeft       = 1 << 2
	remoteBitRight      = 1 << 3
	remoteBitOK         = 1 << 4
	remoteBitVolumeUp   = 1 << 5
	remoteBitVolumeDown = 1 << 6
	remoteBitHome       = 1 << 7
)

// Wire scale factors for this protocol family. The accelerometer and
// gyroscope report in units of 10⁻⁴ m/s² and 10⁻⁴ rad/s; these are not
// shared with other hardware families.
const (
	sensorScale      = 1e-4
	magScale         = 1e-4
	temperatureScale = 0.01
	positionScale    = 1e-6 // µm to m
)

const (
	maxPositions = 64
	maxLEDs      = 64
)
