package rift

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmdkit/hmdkit/internal/hid"
)

func TestFoldPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern uint32
		want    uint16
	}{
		{"all dark", 0x55555, 0x000},
		{"all bright", 0xfffff, 0x3ff},
		{"first bright", 0x55557, 0x001},
		{"last bright", 0xd5555, 0x200},
		{"scattered bright", 0x5dd75, 0x0a4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := foldPattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFoldPatternInvalid(t *testing.T) {
	for _, pattern := range []uint32{0, 0x55554, 0x155555, 0xfffffff} {
		_, err := foldPattern(pattern)
		assert.Error(t, err, "pattern 0x%x", pattern)
	}
}

func buildPositionReport(index, num, typ uint16, pos [3]int32, dir [3]int16) []byte {
	rep := make([]byte, positionReportLen)
	rep[0] = positionReportID
	data := rep[1:]
	for a := 0; a < 3; a++ {
		binary.LittleEndian.PutUint32(data[posOffPos+4*a:], uint32(pos[a]))
		binary.LittleEndian.PutUint16(data[posOffDir+2*a:], uint16(dir[a]))
	}
	binary.LittleEndian.PutUint16(data[posOffIndex:], index)
	binary.LittleEndian.PutUint16(data[posOffNum:], num)
	binary.LittleEndian.PutUint16(data[posOffType:], typ)
	return rep
}

func TestGetPositions(t *testing.T) {
	dev := hid.NewMockDevice()
	r := New(TypeDK2, dev, nil, nil, Options{})

	// Two LEDs and the IMU, cycled over three reads.
	dev.StubFeature(positionReportID,
		buildPositionReport(0, 3, 0, [3]int32{10000, -20000, 30000}, [3]int16{1, 2, 3}))
	dev.StubFeature(positionReportID,
		buildPositionReport(1, 3, 0, [3]int32{-40000, 50000, -60000}, [3]int16{-1, -2, -3}))
	dev.StubFeature(positionReportID,
		buildPositionReport(2, 3, 1, [3]int32{100, 200, 300}, [3]int16{}))

	require.NoError(t, r.getPositions())

	assert.Equal(t, 2, r.leds.Num)
	require.Len(t, r.leds.Positions, 3)
	assert.InDelta(t, 0.01, r.leds.Positions[0][0], 1e-9)
	assert.InDelta(t, -0.02, r.leds.Positions[0][1], 1e-9)
	assert.InDelta(t, 0.03, r.leds.Positions[0][2], 1e-9)
	assert.InDelta(t, -0.04, r.leds.Positions[1][0], 1e-9)
	assert.InDelta(t, 1e-6, r.leds.Directions[0][0], 1e-12)
	assert.InDelta(t, 1e-4, r.imuPosition[0], 1e-12)
	assert.InDelta(t, 2e-4, r.imuPosition[1], 1e-12)
	assert.InDelta(t, 3e-4, r.imuPosition[2], 1e-12)
}

func TestGetPositionsRejectsBadEntries(t *testing.T) {
	t.Run("too many entries", func(t *testing.T) {
		dev := hid.NewMockDevice()
		r := New(TypeDK2, dev, nil, nil, Options{})
		dev.StubFeature(positionReportID,
			buildPositionReport(0, maxPositions+1, 0, [3]int32{}, [3]int16{}))
		assert.Error(t, r.getPositions())
	})

	t.Run("index out of range", func(t *testing.T) {
		dev := hid.NewMockDevice()
		r := New(TypeDK2, dev, nil, nil, Options{})
		dev.StubFeature(positionReportID,
			buildPositionReport(2, 2, 0, [3]int32{}, [3]int16{}))
		assert.Error(t, r.getPositions())
	})
}

func buildPatternReport(index, num uint16, length byte, pattern uint32) []byte {
	rep := make([]byte, ledPatternReportLen)
	rep[0] = ledPatternReportID
	data := rep[1:]
	data[patOffLength] = length
	binary.LittleEndian.PutUint32(data[patOffBits:], pattern)
	binary.LittleEndian.PutUint16(data[patOffIndex:], index)
	binary.LittleEndian.PutUint16(data[patOffNum:], num)
	return rep
}

func TestGetLEDPatterns(t *testing.T) {
	dev := hid.NewMockDevice()
	r := New(TypeDK2, dev, nil, nil, Options{})

	dev.StubFeature(ledPatternReportID, buildPatternReport(0, 2, 10, 0x55557))
	dev.StubFeature(ledPatternReportID, buildPatternReport(1, 2, 10, 0xd5555))

	require.NoError(t, r.getLEDPatterns())

	require.Len(t, r.leds.Patterns, 2)
	assert.Equal(t, uint16(0x001), r.leds.Patterns[0])
	assert.Equal(t, uint16(0x200), r.leds.Patterns[1])
}

func TestGetLEDPatternsRejectsWrongLength(t *testing.T) {
	dev := hid.NewMockDevice()
	r := New(TypeDK2, dev, nil, nil, Options{})

	dev.StubFeature(ledPatternReportID, buildPatternReport(0, 1, 12, 0x55555))

	assert.Error(t, r.getLEDPatterns())
}
