// Package imu holds the device-independent pieces of inertial telemetry
// decoding: the calibrated sample model, wraparound-safe timestamp
// accumulation, and fixed-point field extraction.
package imu

import (
	"encoding/binary"
)

// RawSample is one decoded inertial sample in physical units. It is
// immutable once produced and handed to a Sink.
type RawSample struct {
	Acceleration    [3]float64 // m/s²
	AngularVelocity [3]float64 // rad/s
	MagneticField   [3]float64 // T
	Temperature     float64    // °C
	Time            uint64     // device µs, monotonic across counter wraps
}

// Sink consumes decoded samples. Fusion filters and debug taps
// implement it; decoders never retain the sample after the call.
type Sink interface {
	HandleSample(s RawSample)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s RawSample)

func (f SinkFunc) HandleSample(s RawSample) { f(s) }

// Clock accumulates a free-running 32-bit hardware microsecond counter
// into a 64-bit timeline. The counter wraps roughly every 71.6 minutes;
// at most one wrap may occur between consecutive readings. Longer
// stalls are indistinguishable from a single wrap and are out of scope.
type Clock struct {
	now uint64
}

// Now returns the accumulated time of the last committed reading.
func (c *Clock) Now() uint64 { return c.now }

// Extend maps a raw 32-bit reading onto the timeline without advancing
// it. The high bits are taken from the last committed time, bumped by
// one 32-bit span when the raw reading is numerically below the
// previous low word.
func (c *Clock) Extend(raw uint32) uint64 {
	t := c.now &^ 0xffffffff
	if uint64(raw) < c.now&0xffffffff {
		t += 1 << 32
	}
	return t | uint64(raw)
}

// Advance extends the raw reading and commits it as the new current
// time.
func (c *Clock) Advance(raw uint32) uint64 {
	c.now = c.Extend(raw)
	return c.now
}

// Unpack3x21 splits three signed 21-bit two's-complement fields packed
// MSB-first into a big-endian 64-bit word (the top 63 bits; the unused
// low bit is discarded) and scales each to a float. The shifts must be
// arithmetic so the sign extends through the unused high bits.
func Unpack3x21(buf []byte, scale float64) [3]float64 {
	xyz := binary.BigEndian.Uint64(buf)

	return [3]float64{
		scale * float64(int64(xyz)>>43),
		scale * float64(int64(xyz<<21)>>43),
		scale * float64(int64(xyz<<42)>>43),
	}
}

// ScaleInt16 converts a raw little-endian int16 wire field into
// physical units given the full-scale range of the sensor. The wire
// value spans [-32768, 32767] over ±fullScale.
func ScaleInt16(b []byte, fullScale float64) float64 {
	raw := int16(binary.LittleEndian.Uint16(b))
	return fullScale / 32768.0 * float64(raw)
}
