// Package hid abstracts the HID transport underneath the device decoders:
// streamed input reports read from an interrupt endpoint, and synchronous
// feature report exchanges used for configuration and calibration.
package hid

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrTimeout is returned by ReadReport when no input report arrived
// within the given bound. It is a liveness signal, not a failure.
var ErrTimeout = errors.New("hid: read timeout")

// ErrDisconnect marks the interface as gone: the descriptor reported
// hang-up or the transport's reader terminated. ReadReport errors that
// do not wrap it are transient and the caller may keep reading.
var ErrDisconnect = errors.New("hid: interface disconnected")

// Report represents an individual input report: the leading report ID
// byte plus the remaining payload.
type Report struct {
	ID   byte
	Data []byte
}

func (r Report) Bytes() []byte {
	b := make([]byte, len(r.Data)+1)
	b[0] = r.ID
	copy(b[1:], r.Data)
	return b
}

// Len is the wire length of the report including the report ID byte.
func (r Report) Len() int {
	return len(r.Data) + 1
}

// Device represents one opened HID interface of a physical device.
// VR devices expose up to three interfaces (IMU, optical receiver,
// buttons), each opened as its own Device.
type Device interface {
	// ReadReport blocks until an input report arrives, the timeout
	// elapses (ErrTimeout), or the transport fails. Errors wrapping
	// ErrDisconnect mean the interface is gone; anything else is a
	// transient fault and reading may continue. The returned report
	// may alias a buffer reused by the next ReadReport call; callers
	// decode it before reading again.
	ReadReport(timeout time.Duration) (Report, error)

	// GetFeatureReport performs a synchronous feature report read.
	// The returned buffer starts with the report ID byte.
	GetFeatureReport(reportID byte, size int) ([]byte, error)

	// SendFeatureReport writes a feature report. data[0] must be the
	// report ID byte.
	SendFeatureReport(data []byte) error

	Close() error
}

// Info represents a HID interface descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

// Manager enumerates and opens HID interfaces.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)

	// OpenVIDPID opens every interface matching the vendor/product
	// pair, ordered by path. Multi-interface devices rely on the
	// enumeration order matching the interface numbering.
	OpenVIDPID(vendorID, productID uint16) ([]Device, error)
}

// NewManager returns the OS-specific HID manager.
func NewManager() (Manager, error) {
	return newManager()
}

// DumpReport renders raw report bytes as dash-separated hex for
// protocol fault diagnostics.
func DumpReport(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
