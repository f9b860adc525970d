package rift

import (
	"encoding/binary"
	"fmt"
)

// LEDModel holds the factory-calibrated IR LED geometry and blinking
// patterns read from the headset. Positions are in meters in the
// headset's local frame: positive x left, y up, z forward.
type LEDModel struct {
	Positions  [][3]float64
	Directions [][3]float64
	Patterns   []uint16
	Num        int
}

// Position report payload layout (after the report ID byte):
//
//	0   command  le16
//	2   flags    u8
//	3   pos[3]   le32, µm
//	15  dir[3]   le16
//	21  reserved le16
//	23  index    le16
//	25  num      le16
//	27  type     le16
const (
	posOffPos   = 3
	posOffDir   = 15
	posOffIndex = 23
	posOffNum   = 25
	posOffType  = 27
	posMinLen   = 29
)

// getPositions obtains the calibrated positions of the IR LEDs and the
// IMU. The device answers the same feature report repeatedly, cycling
// through one entry per read; entry type 0 is an LED, type 1 the IMU.
func (r *Rift) getPositions() error {
	rep, err := r.dev.GetFeatureReport(positionReportID, positionReportLen)
	if err != nil {
		return fmt.Errorf("position report: %w", err)
	}

	var num int
	for i := 0; ; i++ {
		if len(rep) < 1+posMinLen {
			return fmt.Errorf("position report: short report (%d bytes)", len(rep))
		}
		data := rep[1:]

		num = int(binary.LittleEndian.Uint16(data[posOffNum:]))
		if num > maxPositions {
			return fmt.Errorf("position report: %d entries exceeds limit", num)
		}
		index := int(binary.LittleEndian.Uint16(data[posOffIndex:]))
		if index >= num {
			return fmt.Errorf("position report: index %d out of %d entries", index, num)
		}

		var pos [3]float64
		for a := 0; a < 3; a++ {
			raw := int32(binary.LittleEndian.Uint32(data[posOffPos+4*a:]))
			pos[a] = positionScale * float64(raw)
		}

		switch binary.LittleEndian.Uint16(data[posOffType:]) {
		case 0:
			if r.leds.Positions == nil {
				r.leds.Positions = make([][3]float64, num)
				r.leds.Directions = make([][3]float64, num)
			}
			r.leds.Positions[index] = pos

			var dir [3]float64
			for a := 0; a < 3; a++ {
				raw := int16(binary.LittleEndian.Uint16(data[posOffDir+2*a:]))
				dir[a] = positionScale * float64(raw)
			}
			r.leds.Directions[index] = dir
		case 1:
			r.imuPosition = pos
		}

		// Break out before reading the first entry again.
		if i+1 == num {
			break
		}

		rep, err = r.dev.GetFeatureReport(positionReportID, positionReportLen)
		if err != nil {
			return fmt.Errorf("position report: %w", err)
		}
	}

	// One entry was the IMU.
	r.leds.Num = num - 1

	return nil
}

// LED pattern report payload layout (after the report ID byte):
//
//	0   command        le16
//	2   pattern_length u8
//	3   pattern        le32
//	7   index          le16
//	9   num            le16
const (
	patOffLength = 2
	patOffBits   = 3
	patOffIndex  = 7
	patOffNum    = 9
	patMinLen    = 11
)

// foldPattern converts the wire blink pattern, ten 2-bit values that
// are either 1 (dark) or 3 (bright), into ten single-bit values.
func foldPattern(pattern uint32) (uint16, error) {
	if pattern&^0xaaaaa != 0x55555 {
		return 0, fmt.Errorf("unexpected pattern 0x%x", pattern)
	}

	pattern &= 0xaaaaa
	pattern |= pattern >> 1
	pattern &= 0x66666
	pattern |= pattern >> 2
	pattern &= 0xe1e1e
	pattern |= pattern >> 4
	pattern &= 0xe01fe
	pattern |= pattern >> 8

	return uint16((pattern >> 1) & 0x3ff), nil
}

// getLEDPatterns obtains the blinking patterns of the IR LEDs, one
// entry per feature report read like getPositions.
func (r *Rift) getLEDPatterns() error {
	rep, err := r.dev.GetFeatureReport(ledPatternReportID, ledPatternReportLen)
	if err != nil {
		return fmt.Errorf("led pattern report: %w", err)
	}

	for i := 0; ; i++ {
		if len(rep) < 1+patMinLen {
			return fmt.Errorf("led pattern report: short report (%d bytes)", len(rep))
		}
		data := rep[1:]

		num := int(binary.LittleEndian.Uint16(data[patOffNum:]))
		if num > maxLEDs {
			return fmt.Errorf("led pattern report: %d entries exceeds limit", num)
		}
		index := int(binary.LittleEndian.Uint16(data[patOffIndex:]))
		if index >= num {
			return fmt.Errorf("led pattern report: index %d out of %d entries", index, num)
		}

		if length := data[patOffLength]; length != 10 {
			return fmt.Errorf("led pattern report: unexpected pattern length %d", length)
		}

		pattern, err := foldPattern(binary.LittleEndian.Uint32(data[patOffBits:]))
		if err != nil {
			return fmt.Errorf("led pattern report: %w", err)
		}

		if r.leds.Patterns == nil {
			r.leds.Patterns = make([]uint16, num)
		}
		r.leds.Patterns[index] = pattern

		if i+1 == num {
			break
		}

		rep, err = r.dev.GetFeatureReport(ledPatternReportID, ledPatternReportLen)
		if err != nil {
			return fmt.Errorf("led pattern report: %w", err)
		}
	}

	return nil
}
