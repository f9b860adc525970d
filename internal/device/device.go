// Package device holds the generic lifecycle around per-device protocol
// decoders: the capability interface every device variant implements
// and the report dispatch loop that feeds decoders from polled HID
// interfaces.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Device is the capability interface implemented by each device
// variant. Start performs the one-shot setup phase (configuration and
// calibration feature reports), RunLoop blocks decoding streamed
// reports until cancellation or a transport fault, Stop performs
// best-effort teardown.
type Device interface {
	Name() string
	Start(ctx context.Context) error
	RunLoop(ctx context.Context) error
	Stop() error
}

// Runner drives one Device on its own goroutine. Decoder state is owned
// by that goroutine alone; Runner only carries the lifecycle.
type Runner struct {
	dev    Device
	cancel context.CancelFunc

	done    chan struct{}
	mu      sync.Mutex
	loopErr error
}

// Start runs the device's setup phase and, on success, launches its run
// loop. Setup failures abort the device without side effects.
func Start(ctx context.Context, dev Device) (*Runner, error) {
	if err := dev.Start(ctx); err != nil {
		return nil, fmt.Errorf("%s: start: %w", dev.Name(), err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r := &Runner{
		dev:    dev,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		err := dev.RunLoop(loopCtx)
		if err != nil && loopCtx.Err() == nil {
			slog.Error("device loop terminated",
				slog.String("device", dev.Name()),
				slog.Any("error", err))
		}
		r.mu.Lock()
		r.loopErr = err
		r.mu.Unlock()

		if err := dev.Stop(); err != nil {
			slog.Warn("device stop failed",
				slog.String("device", dev.Name()),
				slog.Any("error", err))
		}
	}()

	return r, nil
}

// Stop requests cooperative cancellation and waits for the loop to
// drain. In-flight reads complete before the request takes effect.
func (r *Runner) Stop() error {
	r.cancel()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loopErr
}

// Done is closed once the run loop has exited and teardown ran.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Err returns the run loop's terminal error, if any. Valid after Done
// is closed.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loopErr
}
