package vive

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"strings"
	"testing"

	"github.com/hmdkit/hmdkit/internal/hid"
	"github.com/hmdkit/hmdkit/internal/lighthouse"
)

type pulseRecorder struct {
	pulses []lighthouse.Pulse
}

func (r *pulseRecorder) HandlePulse(p lighthouse.Pulse) { r.pulses = append(r.pulses, p) }

type pulseSlot struct {
	id        uint16
	duration  uint16
	timestamp uint32
}

func buildPulseReport(slots []pulseSlot) hid.Report {
	data := make([]byte, pulseReportLen-1)
	for i := range data[:pulseCount*pulseRecordLen] {
		data[i] = 0xff // unused slots default to the sentinel
	}
	for i, s := range slots {
		off := i * pulseRecordLen
		binary.LittleEndian.PutUint16(data[off:], s.id)
		binary.LittleEndian.PutUint16(data[off+2:], s.duration)
		binary.LittleEndian.PutUint32(data[off+4:], s.timestamp)
	}
	return hid.Report{ID: pulseReportID, Data: data}
}

func TestDecodePulseReportAllSentinel(t *testing.T) {
	var rec pulseRecorder
	DecodePulseReport("ctrl", buildPulseReport(nil), &rec)
	if len(rec.pulses) != 0 {
		t.Fatalf("sentinel-only report forwarded %d pulses", len(rec.pulses))
	}
}

func TestDecodePulseReportSevenValid(t *testing.T) {
	var rec pulseRecorder
	slots := make([]pulseSlot, pulseCount)
	for i := range slots {
		// Arbitrary slot order: ids do not ascend.
		slots[i] = pulseSlot{
			id:        uint16((i*11 + 5) % 32),
			duration:  uint16(100 + i),
			timestamp: uint32(1000 * (i + 1)),
		}
	}

	DecodePulseReport("ctrl", buildPulseReport(slots), &rec)

	if len(rec.pulses) != pulseCount {
		t.Fatalf("forwarded %d pulses, want %d", len(rec.pulses), pulseCount)
	}
	for i, p := range rec.pulses {
		if p.SensorID != slots[i].id || p.Duration != slots[i].duration ||
			p.Timestamp != slots[i].timestamp {
			t.Fatalf("pulse %d mismatch: %+v vs slot %+v", i, p, slots[i])
		}
	}
}

func TestDecodePulseReportOutOfRangeAborts(t *testing.T) {
	var logBuf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuf, nil)))
	defer slog.SetDefault(prev)

	var rec pulseRecorder
	slots := []pulseSlot{
		{id: 3, duration: 50, timestamp: 100},
		{id: 32, duration: 60, timestamp: 200}, // corrupt: above the sensor range
		{id: 4, duration: 70, timestamp: 300},  // must not be trusted
	}

	DecodePulseReport("ctrl", buildPulseReport(slots), &rec)

	if len(rec.pulses) != 1 {
		t.Fatalf("forwarded %d pulses, want 1 (decode must abort at the corrupt slot)",
			len(rec.pulses))
	}
	if rec.pulses[0].SensorID != 3 {
		t.Fatalf("forwarded pulse has sensor %d, want 3", rec.pulses[0].SensorID)
	}
	// The diagnostic must dump the whole report, report ID byte first.
	if !strings.Contains(logBuf.String(), "report=21-03-00") {
		t.Fatalf("corrupt-report log misses the full raw dump: %s", logBuf.String())
	}
}

func TestDecodePulseReportSentinelGaps(t *testing.T) {
	var rec pulseRecorder
	slots := []pulseSlot{
		{id: 0xffff},
		{id: 7, duration: 42, timestamp: 99},
		{id: 0xffff},
		{id: 31, duration: 43, timestamp: 100},
	}

	DecodePulseReport("ctrl", buildPulseReport(slots), &rec)

	if len(rec.pulses) != 2 {
		t.Fatalf("forwarded %d pulses, want 2", len(rec.pulses))
	}
}
