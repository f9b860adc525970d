package vive

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/hmdkit/hmdkit/internal/hid"
	"github.com/hmdkit/hmdkit/internal/imu"
)

// IMU holds the decode state for one device's inertial stream: the last
// accepted sequence number, the accumulated 64-bit time, and the
// full-scale ranges fetched once per session.
type IMU struct {
	gyroRange  float64 // rad/s full scale
	accelRange float64 // m/s² full scale

	sequence uint8
	clock    imu.Clock
	sink     imu.Sink
}

func NewIMU(sink imu.Sink) *IMU {
	return &IMU{sink: sink}
}

// RangesKnown reports whether the full-scale ranges have been fetched.
func (m *IMU) RangesKnown() bool {
	return m.gyroRange != 0
}

// FetchRanges reads the gyro/accelerometer range mode feature report
// and caches the full-scale ranges for the session. The device
// occasionally answers with an all-zero report right after power-up;
// one retry covers that.
func (m *IMU) FetchRanges(name string, dev hid.Device) error {
	rep, err := dev.GetFeatureReport(rangeModesReportID, rangeModesReportLen)
	if err != nil {
		return fmt.Errorf("range modes: %w", err)
	}

	if len(rep) < 3 || rep[1] == 0 || rep[2] == 0 {
		rep, err = dev.GetFeatureReport(rangeModesReportID, rangeModesReportLen)
		if err != nil {
			return fmt.Errorf("range modes: %w", err)
		}
		if len(rep) < 3 || rep[1] == 0 || rep[2] == 0 {
			slog.Warn("unexpected range mode report",
				slog.String("device", name),
				slog.String("report", hid.DumpReport(rep)))
		}
	}
	if len(rep) < 3 {
		return fmt.Errorf("range modes: short report (%d bytes)", len(rep))
	}

	gyroMode := rep[1]
	accelMode := rep[2]
	if gyroMode > 4 || accelMode > 4 {
		return fmt.Errorf("range modes: out of range (gyro %d, accel %d)", gyroMode, accelMode)
	}

	// MPU-6500 full scale ranges: gyro ±250°/s..±2000°/s into rad/s,
	// accel ±2g..±16g into m/s².
	m.gyroRange = math.Pi / 180.0 * float64(uint32(250)<<gyroMode)
	m.accelRange = 9.80665 * float64(uint32(2)<<accelMode)

	return nil
}

// oldestSequenceIndex finds the round-robin slot whose sequence trails
// the other two by exactly 2 (mod 256): three slots cycle, so the
// freshest slot's sequence is 2 greater than the oldest's. When no
// 2-apart relation holds the first slot is assumed oldest; under sensor
// corruption this may start at the wrong slot, which is accepted.
func oldestSequenceIndex(a, b, c uint8) int {
	switch {
	case a == b+2:
		return 1
	case b == c+2:
		return 2
	default:
		return 0
	}
}

// DecodeSensorReport reassembles the three round-robin sample slots of
// one IMU report. New messages can repeat already seen samples in any
// slot, but sequence numbers are consecutive across the triple, so the
// walk starts at the oldest slot and replays only samples newer than
// the last accepted sequence. A hardware gap wider than the 3-slot
// window silently drops samples; the window cannot disambiguate more.
//
// data is the report payload without the leading report ID byte.
func (m *IMU) DecodeSensorReport(data []byte) {
	lastSeq := m.sequence

	i := oldestSequenceIndex(
		data[0*imuSampleLen+16],
		data[1*imuSampleLen+16],
		data[2*imuSampleLen+16],
	)

	for j := 0; j < 3; j, i = j+1, (i+1)%3 {
		slot := data[i*imuSampleLen : (i+1)*imuSampleLen]
		seq := slot[16]

		// Skip already seen samples.
		if seq == lastSeq || seq == lastSeq-1 || seq == lastSeq-2 {
			continue
		}

		var sample imu.RawSample
		for axis := 0; axis < 3; axis++ {
			sample.Acceleration[axis] = imu.ScaleInt16(slot[2*axis:], m.accelRange)
			sample.AngularVelocity[axis] = imu.ScaleInt16(slot[6+2*axis:], m.gyroRange)
		}
		sample.Time = m.clock.Advance(binary.LittleEndian.Uint32(slot[12:16]))

		m.sequence = seq
		m.sink.HandleSample(sample)
	}
}
