//go:build linux

package hid

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hidraw ioctl numbers, linux/hidraw.h
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

func hidiocGRawInfo() uintptr { return ioc(iocRead, 'H', 0x03, unsafe.Sizeof(hidrawDevinfo{})) }

func hidiocGRawName(n int) uintptr { return ioc(iocRead, 'H', 0x04, uintptr(n)) }

func hidiocSFeature(n int) uintptr { return ioc(iocRead|iocWrite, 'H', 0x06, uintptr(n)) }

func hidiocGFeature(n int) uintptr { return ioc(iocRead|iocWrite, 'H', 0x07, uintptr(n)) }

type hidrawDevinfo struct {
	Bustype uint32
	Vendor  int16
	Product int16
}

func ioctl(fd uintptr, op uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, uintptr(arg))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

type rawManager struct{}

func newManager() (Manager, error) { return &rawManager{}, nil }

func (m *rawManager) List() ([]Info, error) {
	nodes, err := filepath.Glob("/dev/hidraw*")
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)

	var out []Info
	for _, node := range nodes {
		info, err := probe(node)
		if err != nil {
			// Nodes we cannot open (permissions, races with unplug)
			// are skipped, not fatal.
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func probe(node string) (Info, error) {
	f, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	var di hidrawDevinfo
	if _, err := ioctl(f.Fd(), hidiocGRawInfo(), unsafe.Pointer(&di)); err != nil {
		return Info{}, fmt.Errorf("HIDIOCGRAWINFO %s: %w", node, err)
	}

	name := make([]byte, 256)
	n, err := ioctl(f.Fd(), hidiocGRawName(len(name)), unsafe.Pointer(&name[0]))
	if err != nil {
		n = 0
	}
	for n > 0 && name[n-1] == 0 {
		n--
	}

	return Info{
		Path:      node,
		VendorID:  uint16(di.Vendor),
		ProductID: uint16(di.Product),
		Product:   string(name[:n]),
	}, nil
}

func (m *rawManager) Open(info Info) (Device, error) {
	f, err := os.OpenFile(info.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.Path, err)
	}
	return &rawDevice{f: f}, nil
}

func (m *rawManager) OpenVIDPID(vendorID, productID uint16) ([]Device, error) {
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

type rawDevice struct {
	f *os.File

	// buf is reused across reads; the dispatch loop decodes each
	// report before requesting the next one, so returned reports may
	// alias it.
	buf [64]byte
}

func (d *rawDevice) ReadReport(timeout time.Duration) (Report, error) {
	fds := []unix.PollFd{{Fd: int32(d.f.Fd()), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err == unix.EINTR {
		return Report{}, ErrTimeout
	}
	if err != nil {
		return Report{}, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return Report{}, ErrTimeout
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return Report{}, fmt.Errorf("%w (revents 0x%x)", ErrDisconnect, fds[0].Revents)
	}

	rn, err := unix.Read(int(d.f.Fd()), d.buf[:])
	if err != nil {
		return Report{}, fmt.Errorf("read: %w", err)
	}
	if rn < 1 {
		return Report{}, fmt.Errorf("read: empty report")
	}
	return Report{ID: d.buf[0], Data: d.buf[1:rn]}, nil
}

func (d *rawDevice) GetFeatureReport(reportID byte, size int) ([]byte, error) {
	buf := make([]byte, size)
	buf[0] = reportID
	n, err := ioctl(d.f.Fd(), hidiocGFeature(size), unsafe.Pointer(&buf[0]))
	if err != nil {
		return nil, fmt.Errorf("HIDIOCGFEATURE 0x%02x: %w", reportID, err)
	}
	if n > size {
		n = size
	}
	return buf[:n], nil
}

func (d *rawDevice) SendFeatureReport(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty feature report")
	}
	if _, err := ioctl(d.f.Fd(), hidiocSFeature(len(data)), unsafe.Pointer(&data[0])); err != nil {
		return fmt.Errorf("HIDIOCSFEATURE 0x%02x: %w", data[0], err)
	}
	return nil
}

func (d *rawDevice) Close() error { return d.f.Close() }
