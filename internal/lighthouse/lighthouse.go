// Package lighthouse defines the contract between pulse report decoders
// and the watchman, the component that correlates IR pulse timings
// across sensors to recover base station sweep angles. The correlation
// itself lives outside this module.
package lighthouse

import "log/slog"

// Pulse is one IR pulse timing measurement from a single optical
// sensor: which sensor saw it, for how many ticks, and when.
type Pulse struct {
	SensorID  uint16 // 0–31
	Duration  uint16 // ticks
	Timestamp uint32 // ticks, device clock
}

// Watchman accumulates pulse timings. Pulses arrive in arbitrary order
// and each is delivered exactly once; buffering and temporal
// correlation are the accumulator's job.
type Watchman interface {
	HandlePulse(p Pulse)
}

// Tracer is a Watchman that logs every pulse at debug level. It stands
// in when no tracking backend is attached.
type Tracer struct {
	Name string
}

func (t *Tracer) HandlePulse(p Pulse) {
	slog.Debug("pulse",
		slog.String("device", t.Name),
		slog.Int("sensor", int(p.SensorID)),
		slog.Int("duration", int(p.Duration)),
		slog.Uint64("timestamp", uint64(p.Timestamp)))
}
