package rift

import (
	"encoding/binary"
	"log/slog"

	"github.com/hmdkit/hmdkit/internal/imu"
)

// Sensor message payload layout (after the report ID byte):
//
//	0      num_samples  u8
//	1      sample_count le16
//	3      temperature  le16, 10⁻² °C
//	5      timestamp    le32, µs
//	9      sample[0]    accel be64 + gyro be64, 3x21-bit packed each
//	25     sample[1]    same
//	41     mag[3]       le16, 10⁻⁴ T
//	47     frame_count  le16
//	49     frame_timestamp le32
//	53     frame_id     u8
//	54     led_pattern_phase u8
//	55     exposure_count le16
//	57     exposure_timestamp le32
const sensorMessageMin = 61

// decodeSensorMessage decodes the periodic message containing IMU
// sample(s) and frame timing data. Without onboard calibration the
// accelerometer reports in the accelerometer frame (x forward, y
// right, z down); with calibration enabled the headset's local frame
// is used instead.
func (r *Rift) decodeSensorMessage(data []byte) {
	if len(data) < sensorMessageMin {
		return
	}

	numSamples := data[0]
	temperature := int16(binary.LittleEndian.Uint16(data[3:5]))
	timestamp := binary.LittleEndian.Uint32(data[5:9])

	dt := int32(timestamp - r.lastSampleTimestamp)
	first := r.lastSampleTimestamp == 0 && r.clock.Now() == 0
	r.lastSampleTimestamp = timestamp
	if !first &&
		(int(dt) < r.reportInterval-1 || int(dt) > r.reportInterval+1 ||
			1000*int(numSamples) != r.reportInterval) {
		slog.Debug("unexpected sample timing",
			slog.String("device", r.name),
			slog.Int("samples", int(numSamples)),
			slog.Int("dt_us", int(dt)))
	}

	base := imu.RawSample{
		Temperature: temperatureScale * float64(temperature),
		Time:        r.clock.Advance(timestamp),
	}
	for axis := 0; axis < 3; axis++ {
		raw := int16(binary.LittleEndian.Uint16(data[41+2*axis : 43+2*axis]))
		base.MagneticField[axis] = magScale * float64(raw)
	}

	// The message buffers at most two samples; a higher count only
	// means samples were dropped on the device.
	n := 1
	if numSamples > 1 {
		n = 2
	}
	for i := 0; i < n; i++ {
		sample := base
		sample.Acceleration = imu.Unpack3x21(data[9+16*i:17+16*i], sensorScale)
		sample.AngularVelocity = imu.Unpack3x21(data[17+16*i:25+16*i], sensorScale)
		r.sink.HandleSample(sample)
	}
}
