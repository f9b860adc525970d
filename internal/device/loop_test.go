package device

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmdkit/hmdkit/internal/hid"
)

func TestLoopDispatchesValidReport(t *testing.T) {
	mock := hid.NewMockDevice()

	var handled atomic.Int32
	loop := &Loop{
		Name: "test",
		Endpoints: []Endpoint{{
			Name:    "imu",
			Dev:     mock,
			Reports: map[byte]int{0x20: 52},
			Handle: func(rep hid.Report) {
				assert.Equal(t, byte(0x20), rep.ID)
				assert.Equal(t, 52, rep.Len())
				handled.Add(1)
			},
		}},
		Timeout: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	mock.Emit(hid.Report{ID: 0x20, Data: make([]byte, 51)})

	require.Eventually(t, func() bool { return handled.Load() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestLoopDiscardsWrongReportID(t *testing.T) {
	mock := hid.NewMockDevice()

	var handled atomic.Int32
	loop := &Loop{
		Name: "test",
		Endpoints: []Endpoint{{
			Name:    "imu",
			Dev:     mock,
			Reports: map[byte]int{0x20: 52},
			Handle:  func(hid.Report) { handled.Add(1) },
		}},
		Timeout: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Correct length, wrong leading report ID: must be discarded.
	mock.Emit(hid.Report{ID: 0x21, Data: make([]byte, 51)})
	// Correct ID, wrong length: must be discarded.
	mock.Emit(hid.Report{ID: 0x20, Data: make([]byte, 40)})
	// Valid report afterwards still gets through.
	mock.Emit(hid.Report{ID: 0x20, Data: make([]byte, 51)})

	require.Eventually(t, func() bool { return handled.Load() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), handled.Load())
}

func TestLoopRecoversFromReadError(t *testing.T) {
	mock := hid.NewMockDevice()

	var handled atomic.Int32
	loop := &Loop{
		Name: "test",
		Endpoints: []Endpoint{{
			Name:    "imu",
			Dev:     mock,
			Reports: map[byte]int{0x20: 52},
			Handle:  func(hid.Report) { handled.Add(1) },
		}},
		Timeout: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// A transient read fault (e.g. read(2) returning EINTR) must not
	// kill the loop; the next report still gets through.
	mock.FailRead(errors.New("read: interrupted system call"))
	mock.Emit(hid.Report{ID: 0x20, Data: make([]byte, 51)})

	require.Eventually(t, func() bool { return handled.Load() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestLoopTerminatesOnHangup(t *testing.T) {
	mock := hid.NewMockDevice()

	loop := &Loop{
		Name: "test",
		Endpoints: []Endpoint{{
			Name:    "buttons",
			Dev:     mock,
			Reports: map[byte]int{0x01: 64},
			Handle:  func(hid.Report) {},
		}},
		Timeout: 50 * time.Millisecond,
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	mock.Hangup(errors.New("device unplugged"))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device unplugged")
	case <-time.After(time.Second):
		t.Fatal("loop did not terminate after hang-up")
	}
}

func TestLoopOnTimeout(t *testing.T) {
	mock := hid.NewMockDevice()

	var timeouts atomic.Int32
	loop := &Loop{
		Name: "test",
		Endpoints: []Endpoint{{
			Name:    "sensor",
			Dev:     mock,
			Reports: map[byte]int{0x0b: 64},
			Handle:  func(hid.Report) {},
		}},
		Timeout:   10 * time.Millisecond,
		OnTimeout: func() { timeouts.Add(1) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return timeouts.Load() >= 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

type fakeDevice struct {
	name     string
	startErr error
	loopDone chan struct{}
	stopped  atomic.Bool
}

func (f *fakeDevice) Name() string { return f.name }

func (f *fakeDevice) Start(context.Context) error { return f.startErr }

func (f *fakeDevice) Stop() error { f.stopped.Store(true); return nil }
func (f *fakeDevice) RunLoop(ctx context.Context) error {
	defer close(f.loopDone)
	<-ctx.Done()
	return nil
}

func TestRunnerLifecycle(t *testing.T) {
	dev := &fakeDevice{name: "fake", loopDone: make(chan struct{})}

	r, err := Start(context.Background(), dev)
	require.NoError(t, err)

	require.NoError(t, r.Stop())
	<-dev.loopDone
	assert.True(t, dev.stopped.Load())
}

func TestRunnerStartFailure(t *testing.T) {
	dev := &fakeDevice{
		name:     "fake",
		startErr: errors.New("no calibration"),
		loopDone: make(chan struct{}),
	}

	_, err := Start(context.Background(), dev)
	require.Error(t, err)
	assert.False(t, dev.stopped.Load())
}
