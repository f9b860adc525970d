package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hmdkit/hmdkit/internal/hid"
)

// DefaultTimeout bounds every blocking read so the loop checks for
// cancellation at least once per second even with no data.
const DefaultTimeout = time.Second

// Endpoint describes one polled HID interface and the reports expected
// on it. Reports maps a report ID to its exact wire length including
// the ID byte; anything else read from the interface is discarded.
// Handle runs on the loop goroutine and must not retain the report's
// data past the call: it may alias the transport's read buffer.
type Endpoint struct {
	Name    string
	Dev     hid.Device
	Reports map[byte]int
	Handle  func(rep hid.Report)
}

// Loop is the report dispatch loop: it waits on up to three endpoints
// with a bounded timeout, validates length and leading report ID per
// endpoint, and routes matching reports to the endpoint's decoder.
//
// Protocol faults (wrong length, unexpected ID) and transient read
// errors are logged and the buffer discarded. A disconnect on any
// endpoint is the single fatal transition: Run returns and the
// device's loop terminates.
type Loop struct {
	Name      string
	Endpoints []Endpoint
	Timeout   time.Duration

	// OnTimeout, when set, runs each time an endpoint's bounded wait
	// elapses with no data. The Rift uses it to resend keepalives.
	OnTimeout func()
}

type loopMsg struct {
	ep  int
	rep hid.Report
	err error

	// done is signalled once the report has been fully decoded. The
	// reader holds off its next read until then, so transports may
	// hand out reports aliasing a reusable buffer.
	done chan<- struct{}
}

// Run blocks until the context is cancelled (returns nil) or an
// endpoint fails (returns the transport error).
func (l *Loop) Run(ctx context.Context) error {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan loopMsg)
	for i := range l.Endpoints {
		go l.readEndpoint(readCtx, i, timeout, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case m := <-msgs:
			if m.err == hid.ErrTimeout {
				slog.Debug("poll timeout",
					slog.String("device", l.Name),
					slog.String("endpoint", l.Endpoints[m.ep].Name))
				if l.OnTimeout != nil {
					l.OnTimeout()
				}
				m.done <- struct{}{}
				continue
			}
			if errors.Is(m.err, hid.ErrDisconnect) {
				return fmt.Errorf("%s: %w", l.Endpoints[m.ep].Name, m.err)
			}
			if m.err != nil {
				slog.Warn("read error",
					slog.String("device", l.Name),
					slog.String("endpoint", l.Endpoints[m.ep].Name),
					slog.Any("err", m.err))
				m.done <- struct{}{}
				continue
			}
			l.dispatch(m.ep, m.rep)
			m.done <- struct{}{}
		}
	}
}

func (l *Loop) dispatch(ep int, rep hid.Report) {
	endpoint := &l.Endpoints[ep]

	want, ok := endpoint.Reports[rep.ID]
	if !ok || rep.Len() != want {
		slog.Warn("invalid report",
			slog.String("device", l.Name),
			slog.String("endpoint", endpoint.Name),
			slog.Int("len", rep.Len()),
			slog.String("id", fmt.Sprintf("0x%02x", rep.ID)))
		return
	}

	endpoint.Handle(rep)
}

func (l *Loop) readEndpoint(ctx context.Context, ep int, timeout time.Duration, msgs chan<- loopMsg) {
	dev := l.Endpoints[ep].Dev
	done := make(chan struct{}, 1)
	for {
		rep, err := dev.ReadReport(timeout)

		select {
		case msgs <- loopMsg{ep: ep, rep: rep, err: err, done: done}:
		case <-ctx.Done():
			return
		}

		select {
		case <-done:
		case <-ctx.Done():
			return
		}

		if errors.Is(err, hid.ErrDisconnect) {
			return
		}
	}
}
