// Package usbenum discovers supported VR devices on the USB bus. It
// only answers "what is plugged in"; report I/O goes through the HID
// transport.
package usbenum

import (
	"fmt"

	"github.com/karalabe/usb"
)

// Vendor and product IDs of supported devices.
const (
	VendorHTC    = 0x0bb4
	VendorValve  = 0x28de
	VendorOculus = 0x2833

	ProductVive           = 0x2c87
	ProductViveController = 0x2012
	ProductRiftDK2        = 0x0021
	ProductRiftCV1        = 0x0031
)

// Match describes one recognized device on the bus.
type Match struct {
	Name      string
	VendorID  uint16
	ProductID uint16
	Serial    string
}

type known struct {
	vid  uint16
	pid  uint16
	name string
}

var knownDevices = []known{
	{VendorHTC, ProductVive, "HTC Vive"},
	{VendorValve, ProductViveController, "Vive Controller"},
	{VendorOculus, ProductRiftDK2, "Rift DK2"},
	{VendorOculus, ProductRiftCV1, "Rift CV1"},
}

// Scan enumerates the USB bus and returns every recognized device.
func Scan() ([]Match, error) {
	infos, err := usb.Enumerate(0, 0)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	var out []Match
	for _, info := range infos {
		for _, k := range knownDevices {
			if info.VendorID != k.vid || info.ProductID != k.pid {
				continue
			}
			out = append(out, Match{
				Name:      k.name,
				VendorID:  info.VendorID,
				ProductID: info.ProductID,
				Serial:    info.Serial,
			})
			break
		}
	}
	return out, nil
}

// Present reports whether at least one device with the given IDs is on
// the bus.
func Present(vendorID, productID uint16) (bool, error) {
	infos, err := usb.Enumerate(vendorID, productID)
	if err != nil {
		return false, fmt.Errorf("usb enumerate: %w", err)
	}
	return len(infos) > 0, nil
}
