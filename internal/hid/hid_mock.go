package hid

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockDevice is an in-memory Device for decoder and loop tests. Input
// reports are injected with Emit, feature report exchanges are scripted
// with StubFeature and recorded for inspection.
type MockDevice struct {
	reads chan mockRead

	mu       sync.Mutex
	features map[byte][][]byte
	sent     [][]byte
	hangup   error
}

type mockRead struct {
	rep Report
	err error
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		reads:    make(chan mockRead, 16),
		features: make(map[byte][][]byte),
	}
}

// Emit queues an input report for the next ReadReport call.
func (m *MockDevice) Emit(r Report) {
	m.reads <- mockRead{rep: r}
}

// FailRead queues a transient read error: the next ReadReport call
// returns it, later calls read normally again.
func (m *MockDevice) FailRead(err error) {
	m.reads <- mockRead{err: err}
}

// Hangup makes every subsequent ReadReport fail like a disconnected
// interface.
func (m *MockDevice) Hangup(err error) {
	m.mu.Lock()
	if m.hangup == nil {
		if err == nil {
			m.hangup = ErrDisconnect
		} else {
			m.hangup = fmt.Errorf("%w: %v", ErrDisconnect, err)
		}
		close(m.reads)
	}
	m.mu.Unlock()
}

// StubFeature queues a response for feature report reads of the given
// ID. Queued responses are consumed in order; the last one sticks, so a
// single stub answers repeated reads. The payload must include the
// report ID byte.
func (m *MockDevice) StubFeature(reportID byte, payload []byte) {
	m.mu.Lock()
	m.features[reportID] = append(m.features[reportID], payload)
	m.mu.Unlock()
}

// SentFeatures returns all feature reports written so far.
func (m *MockDevice) SentFeatures() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockDevice) ReadReport(timeout time.Duration) (Report, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r, ok := <-m.reads:
		if !ok {
			m.mu.Lock()
			err := m.hangup
			m.mu.Unlock()
			return Report{}, err
		}
		return r.rep, r.err
	case <-timer.C:
		return Report{}, ErrTimeout
	}
}

func (m *MockDevice) GetFeatureReport(reportID byte, size int) ([]byte, error) {
	m.mu.Lock()
	queue, ok := m.features[reportID]
	if !ok || len(queue) == 0 {
		m.mu.Unlock()
		return nil, errors.New("mock: no feature report stubbed")
	}
	payload := queue[0]
	if len(queue) > 1 {
		m.features[reportID] = queue[1:]
	}
	m.mu.Unlock()

	out := make([]byte, len(payload))
	copy(out, payload)
	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}

func (m *MockDevice) SendFeatureReport(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.sent = append(m.sent, cp)
	m.mu.Unlock()
	return nil
}

func (m *MockDevice) Close() error { return nil }
