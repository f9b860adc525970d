package vive

import (
	"encoding/binary"
	"testing"

	"github.com/hmdkit/hmdkit/internal/buttons"
)

func buildButtonPayload(mask uint32, battery byte) []byte {
	data := make([]byte, buttonReportLen-1)
	binary.LittleEndian.PutUint32(data[0:4], mask)
	data[4] = battery
	return data
}

type buttonRecorder struct {
	events []buttons.Event
}

func (r *buttonRecorder) HandleButtonEvent(e buttons.Event) { r.events = append(r.events, e) }

func newButtonTestController(rec *buttonRecorder) *Controller {
	return &Controller{name: "ctrl", buttonSink: rec}
}

func TestButtonReportSingleToggle(t *testing.T) {
	var rec buttonRecorder
	c := newButtonTestController(&rec)

	c.decodeButtonReport(buildButtonPayload(buttonBitTrigger, 0))
	if len(rec.events) != 1 {
		t.Fatalf("press: got %d events, want 1", len(rec.events))
	}
	if e := rec.events[0]; e.Button != buttons.Trigger || !e.Pressed {
		t.Fatalf("press event mismatch: %+v", e)
	}

	c.decodeButtonReport(buildButtonPayload(0, 0))
	if len(rec.events) != 2 {
		t.Fatalf("release: got %d events, want 2", len(rec.events))
	}
	if e := rec.events[1]; e.Button != buttons.Trigger || e.Pressed {
		t.Fatalf("release event mismatch: %+v", e)
	}
}

func TestButtonReportUnchangedMask(t *testing.T) {
	var rec buttonRecorder
	c := newButtonTestController(&rec)
	c.buttons = buttonBitGrip

	c.decodeButtonReport(buildButtonPayload(buttonBitGrip, 0))
	if len(rec.events) != 0 {
		t.Fatalf("unchanged mask emitted %d events", len(rec.events))
	}
}

func TestButtonReportBatteryStatusSuppressed(t *testing.T) {
	var rec buttonRecorder
	c := newButtonTestController(&rec)
	c.buttons = buttonBitTrigger | buttonBitMenu

	// Idle battery status: battery byte set, zero button field. Must
	// not fake a release of the held buttons.
	c.decodeButtonReport(buildButtonPayload(0, 0x42))

	if len(rec.events) != 0 {
		t.Fatalf("battery report emitted %d events", len(rec.events))
	}
	if c.buttons != buttonBitTrigger|buttonBitMenu {
		t.Fatalf("battery report overwrote button state: 0x%x", c.buttons)
	}
}

func TestButtonReportZeroMaskWithoutBattery(t *testing.T) {
	var rec buttonRecorder
	c := newButtonTestController(&rec)
	c.buttons = buttonBitThumb

	// A genuine all-release report (battery byte clear) still counts.
	c.decodeButtonReport(buildButtonPayload(0, 0))

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	if e := rec.events[0]; e.Button != buttons.Thumb || e.Pressed {
		t.Fatalf("event mismatch: %+v", e)
	}
}
