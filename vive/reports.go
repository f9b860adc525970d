// Package vive decodes the USB HID telemetry of HTC Vive headsets and
// wired controllers: round-robin IMU sample reports, Lighthouse pulse
// timing reports, button reports, and the feature-report configuration
// exchanges.
package vive

// Streamed input reports, one per HID interface. Lengths are the exact
// wire sizes including the leading report ID byte.
const (
	imuReportID  = 0x20
	imuReportLen = 52
	imuSampleLen = 17

	pulseReportID    = 0x21
	pulseReportLen   = 58
	pulseCount       = 7
	pulseRecordLen   = 8
	pulseSentinelID  = 0xffff
	maxPulseSensorID = 31

	buttonReportID  = 0x01
	buttonReportLen = 64
)

// Feature reports.
const (
	rangeModesReportID  = 0x01
	rangeModesReportLen = 64

	configStartReportID = 0x10
	configReadReportID  = 0x11
	configReportLen     = 64
)

// Button report wire bits.
const (
	buttonBitTrigger = 1 << 0
	buttonBitGrip    = 1 << 2
	buttonBitSystem  = 1 << 3
	buttonBitMenu    = 1 << 4
	buttonBitThumb   = 1 << 5
	buttonBitTouch   = 1 << 6
)
