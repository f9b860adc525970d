package rift

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmdkit/hmdkit/internal/hid"
)

func stubConfigReport(dev *hid.MockDevice, sampleRate uint16, interval byte) {
	rep := make([]byte, configReportLen)
	rep[0] = configReportID
	rep[1+cfgOffInterval] = interval
	binary.LittleEndian.PutUint16(rep[1+cfgOffRate:], sampleRate)
	dev.StubFeature(configReportID, rep)
}

func TestSetReportRate(t *testing.T) {
	tests := []struct {
		name         string
		rate         int
		wantInterval byte
		wantRate     int
	}{
		{"nominal", 500, 1, 500},
		{"clamped to sample rate", 5000, 0, 1000},
		{"clamped to minimum", 1, 199, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := hid.NewMockDevice()
			r := New(TypeDK2, dev, nil, nil, Options{})
			stubConfigReport(dev, 1000, 0)

			require.NoError(t, r.setReportRate(tt.rate))

			sent := dev.SentFeatures()
			require.Len(t, sent, 1)
			assert.Equal(t, byte(configReportID), sent[0][0])
			assert.Equal(t, tt.wantInterval, sent[0][1+cfgOffInterval])
			assert.Equal(t, tt.wantRate, r.reportRate)
			assert.Equal(t, 1000000/tt.wantRate, r.reportInterval)
		})
	}
}

func TestSendKeepalive(t *testing.T) {
	dev := hid.NewMockDevice()
	r := New(TypeDK2, dev, nil, nil, Options{})

	require.NoError(t, r.sendKeepalive())

	sent := dev.SentFeatures()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{keepaliveReportID, 0, 0, keepaliveType, 0x10, 0x27}, sent[0])
}

func TestSendTracking(t *testing.T) {
	dev := hid.NewMockDevice()
	r := New(TypeDK2, dev, nil, nil, Options{})

	require.NoError(t, r.sendTracking(true))
	require.NoError(t, r.sendTracking(false))

	sent := dev.SentFeatures()
	require.Len(t, sent, 2)

	blink := sent[0]
	assert.Equal(t, byte(0), blink[3])
	assert.Equal(t, byte(trackingEnable|trackingUseCarrier|trackingAutoIncrement), blink[4])

	lit := sent[1]
	assert.Equal(t, byte(0xff), lit[3])
	assert.Equal(t, byte(trackingEnable|trackingUseCarrier), lit[4])

	assert.Equal(t, uint16(trackingExposureUs), binary.LittleEndian.Uint16(blink[6:8]))
	assert.Equal(t, uint16(trackingPeriodUs), binary.LittleEndian.Uint16(blink[8:10]))
	assert.Equal(t, byte(trackingDutyCycle), blink[12])
}

func TestStartConfiguresDevice(t *testing.T) {
	dev := hid.NewMockDevice()
	r := New(TypeDK2, dev, nil, nil, Options{Flicker: true, ReportRate: 500})

	// One LED and the IMU.
	dev.StubFeature(positionReportID,
		buildPositionReport(0, 2, 0, [3]int32{1000, 0, 0}, [3]int16{0, 0, 1}))
	dev.StubFeature(positionReportID,
		buildPositionReport(1, 2, 1, [3]int32{0, 0, 0}, [3]int16{}))
	dev.StubFeature(ledPatternReportID, buildPatternReport(0, 1, 10, 0x55555))
	stubConfigReport(dev, 1000, 0)

	display := make([]byte, displayReportLen)
	display[0] = displayReportID
	binary.LittleEndian.PutUint16(display[1+dispOffTotalRows:], 1080)
	dev.StubFeature(displayReportID, display)

	require.NoError(t, r.Start(context.Background()))

	byID := map[byte][]byte{}
	for _, rep := range dev.SentFeatures() {
		byID[rep[0]] = rep
	}

	cfg := byID[configReportID]
	require.NotNil(t, cfg, "report rate must be configured")
	assert.Equal(t, byte(1), cfg[1+cfgOffInterval])

	tracking := byID[trackingReportID]
	require.NotNil(t, tracking, "tracking LEDs must be enabled")
	assert.NotZero(t, tracking[4]&trackingEnable)
	assert.NotZero(t, tracking[4]&trackingAutoIncrement)

	disp := byID[displayReportID]
	require.NotNil(t, disp, "display must be configured")
	assert.Equal(t, byte(255), disp[1+dispOffBrightness])
	assert.Equal(t, uint16(1080*18/100), binary.LittleEndian.Uint16(disp[1+dispOffPersistence:]))
	assert.NotZero(t, disp[1+dispOffFlags2]&displayReadPixel)

	// DK2 has no power management report.
	assert.Nil(t, byID[cv1PowerReportID])
}
