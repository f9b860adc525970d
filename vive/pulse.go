package vive

import (
	"encoding/binary"
	"log/slog"

	"github.com/hmdkit/hmdkit/internal/hid"
	"github.com/hmdkit/hmdkit/internal/lighthouse"
)

// DecodePulseReport extracts the seven pulse slots of a Lighthouse
// receiver report and forwards each valid one to the watchman. Slot
// order carries no temporal meaning. A sensor ID above 31 marks the
// report as corrupt: the remaining slots are not trusted and decoding
// stops, leaving the full raw report (ID byte included) in the log
// for offline inspection.
func DecodePulseReport(name string, rep hid.Report, watchman lighthouse.Watchman) {
	for i := 0; i < pulseCount; i++ {
		slot := rep.Data[i*pulseRecordLen : (i+1)*pulseRecordLen]

		sensorID := binary.LittleEndian.Uint16(slot[0:2])
		if sensorID == pulseSentinelID {
			continue
		}
		if sensorID > maxPulseSensorID {
			slog.Warn("unhandled sensor id",
				slog.String("device", name),
				slog.Int("sensor", int(sensorID)),
				slog.String("report", hid.DumpReport(rep.Bytes())))
			return
		}

		watchman.HandlePulse(lighthouse.Pulse{
			SensorID:  sensorID,
			Duration:  binary.LittleEndian.Uint16(slot[2:4]),
			Timestamp: binary.LittleEndian.Uint32(slot[4:8]),
		})
	}
}
