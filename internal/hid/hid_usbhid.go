//go:build !linux

package hid

import (
	"fmt"
	"sync"
	"time"

	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct{}

func newManager() (Manager, error) { return &usbManager{}, nil }

func (m *usbManager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Product:      d.Product(),
			Manufacturer: d.Manufacturer(),
		})
	}
	return out, nil
}

func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, false)
	if err != nil {
		return nil, err
	}
	return newUSBDevice(d), nil
}

func (m *usbManager) OpenVIDPID(vendorID, productID uint16) ([]Device, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	var devs []Device
	for _, info := range infos {
		if info.VendorID != vendorID || info.ProductID != productID {
			continue
		}
		d, err := m.Open(info)
		if err != nil {
			for _, o := range devs {
				o.Close()
			}
			return nil, err
		}
		devs = append(devs, d)
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no HID interface found for %04x:%04x", vendorID, productID)
	}
	return devs, nil
}

type usbDevice struct {
	d *usbhid.Device

	readOnce sync.Once
	reports  chan Report
	readErr  chan error
}

func newUSBDevice(d *usbhid.Device) *usbDevice {
	return &usbDevice{
		d:       d,
		reports: make(chan Report),
		readErr: make(chan error, 1),
	}
}

// ReadReport emulates a bounded wait on top of the library's blocking
// GetInputReport by running a dedicated reader goroutine per interface.
func (d *usbDevice) ReadReport(timeout time.Duration) (Report, error) {
	d.readOnce.Do(func() {
		go func() {
			for {
				id, buf, err := d.d.GetInputReport()
				if err != nil {
					// The reader is gone for good, so this is a
					// disconnect regardless of the library error.
					d.readErr <- fmt.Errorf("%w: %v", ErrDisconnect, err)
					close(d.reports)
					return
				}
				d.reports <- Report{ID: id, Data: buf}
			}
		}()
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rep, ok := <-d.reports:
		if !ok {
			return Report{}, <-d.readErr
		}
		return rep, nil
	case <-timer.C:
		return Report{}, ErrTimeout
	}
}

func (d *usbDevice) GetFeatureReport(reportID byte, size int) ([]byte, error) {
	buf, err := d.d.GetFeatureReport(reportID)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1, size)
	out[0] = reportID
	out = append(out, buf...)
	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}

func (d *usbDevice) SendFeatureReport(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty feature report")
	}
	return d.d.SetFeatureReport(data[0], data[1:])
}

func (d *usbDevice) Close() error { return d.d.Close() }
