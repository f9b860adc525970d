// hmdtrackd brings up every supported VR device found on the USB bus
// and streams decoded telemetry: IMU samples, Lighthouse pulse
// timings, and button events.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/hmdkit/hmdkit/internal/buttons"
	"github.com/hmdkit/hmdkit/internal/config"
	"github.com/hmdkit/hmdkit/internal/device"
	"github.com/hmdkit/hmdkit/internal/hid"
	"github.com/hmdkit/hmdkit/internal/imu"
	"github.com/hmdkit/hmdkit/internal/lighthouse"
	"github.com/hmdkit/hmdkit/internal/usbenum"
	"github.com/hmdkit/hmdkit/rift"
	"github.com/hmdkit/hmdkit/vive"
)

var cli struct {
	LogLevel string `help:"Log level." enum:"debug,info,warn,error" default:"info"`

	List listCmd `cmd:"" help:"List recognized VR devices on the USB bus."`
	Run  runCmd  `cmd:"" default:"withargs" help:"Bring up devices and stream telemetry."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("hmdtrackd"),
		kong.Description("VR HMD and controller telemetry daemon."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
	return nil
}

type listCmd struct{}

func (l *listCmd) Run() error {
	matches, err := usbenum.Scan()
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("no supported devices found")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%04x:%04x  %-16s %s\n", m.VendorID, m.ProductID, m.Name, m.Serial)
	}
	return nil
}

type runCmd struct {
	Config string `help:"Path to the YAML configuration file." type:"path"`
}

func (r *runCmd) Run() error {
	cfg, err := config.Load(r.Config)
	if err != nil {
		return err
	}
	level := cli.LogLevel
	if cfg.LogLevel != "" {
		level = cfg.LogLevel
	}
	if err := setupLogging(level); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := hid.NewManager()
	if err != nil {
		return fmt.Errorf("hid manager: %w", err)
	}

	sink := imu.SinkFunc(func(s imu.RawSample) {
		slog.Debug("imu sample",
			slog.Uint64("time_us", s.Time),
			slog.Any("accel", s.Acceleration),
			slog.Any("gyro", s.AngularVelocity))
	})
	buttonSink := buttons.SinkFunc(func(e buttons.Event) {
		slog.Info("button event",
			slog.String("device", e.Device),
			slog.String("button", e.Button.String()),
			slog.Bool("pressed", e.Pressed))
	})
	watchman := &lighthouse.Tracer{Name: "lighthouse"}

	devs, err := bringUp(cfg, mgr, sink, watchman, buttonSink)
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		slog.Info("no supported devices found")
		return nil
	}

	var runners []*device.Runner
	for _, dev := range devs {
		runner, err := device.Start(ctx, dev)
		if err != nil {
			slog.Error("device bring-up failed", slog.Any("error", err))
			continue
		}
		slog.Info("device started", slog.String("device", dev.Name()))
		runners = append(runners, runner)
	}
	if len(runners) == 0 {
		return fmt.Errorf("no device started")
	}

	<-ctx.Done()
	slog.Info("shutting down")
	for _, runner := range runners {
		if err := runner.Stop(); err != nil {
			slog.Warn("device terminated with error", slog.Any("error", err))
		}
	}
	return nil
}

// openAll opens every HID interface of one device type. Absence is
// normal, not an error: the daemon brings up whatever is plugged in.
func openAll(mgr hid.Manager, vendorID, productID uint16) []hid.Device {
	ifaces, err := mgr.OpenVIDPID(vendorID, productID)
	if err != nil {
		slog.Debug("device not available",
			slog.String("id", fmt.Sprintf("%04x:%04x", vendorID, productID)),
			slog.Any("error", err))
		return nil
	}
	return ifaces
}

// bringUp opens every recognized device the config allows and
// constructs its decoder. Interfaces of skipped devices are closed
// again.
func bringUp(cfg *config.Config, mgr hid.Manager, sink imu.Sink,
	watchman lighthouse.Watchman, buttonSink buttons.Sink) ([]device.Device, error) {

	var devs []device.Device

	serials := scanSerials()

	// Vive headset: only the first interface carries IMU reports.
	ifaces := openAll(mgr, usbenum.VendorHTC, usbenum.ProductVive)
	if len(ifaces) > 0 {
		serial := serials[key{usbenum.VendorHTC, usbenum.ProductVive}]
		if cfg.WantsSerial(serial) {
			devs = append(devs, vive.NewHeadset(serial, ifaces[0], sink))
			ifaces = ifaces[1:]
		}
		for _, d := range ifaces {
			d.Close()
		}
	}

	// Vive controllers expose three interfaces each, in interface
	// order: IMU, Lighthouse receiver, buttons.
	ifaces = openAll(mgr, usbenum.VendorValve, usbenum.ProductViveController)
	for len(ifaces) >= 3 {
		group := ifaces[:3]
		ifaces = ifaces[3:]

		serial := serials[key{usbenum.VendorValve, usbenum.ProductViveController}]
		if !cfg.WantsSerial(serial) {
			for _, d := range group {
				d.Close()
			}
			continue
		}
		ctrl, err := vive.NewController(serial, group, sink, watchman, buttonSink)
		if err != nil {
			return nil, err
		}
		devs = append(devs, ctrl)
	}
	for _, d := range ifaces {
		d.Close()
	}

	for _, rt := range []struct {
		pid uint16
		typ rift.Type
	}{
		{usbenum.ProductRiftDK2, rift.TypeDK2},
		{usbenum.ProductRiftCV1, rift.TypeCV1},
	} {
		for _, d := range openAll(mgr, usbenum.VendorOculus, rt.pid) {
			serial := serials[key{usbenum.VendorOculus, rt.pid}]
			if !cfg.WantsSerial(serial) {
				d.Close()
				continue
			}
			devs = append(devs, rift.New(rt.typ, d, sink, buttonSink, rift.Options{
				Flicker:    cfg.Rift.Flicker,
				ReportRate: cfg.Rift.ReportRateOrDefault(),
			}))
		}
	}

	return devs, nil
}

type key struct {
	vid uint16
	pid uint16
}

// scanSerials maps vendor/product pairs to the serial number reported
// on the USB bus. HID enumeration does not expose serials on every
// platform; bus enumeration failing only costs the serial allowlist.
func scanSerials() map[key]string {
	serials := make(map[key]string)
	matches, err := usbenum.Scan()
	if err != nil {
		slog.Warn("usb scan failed", slog.Any("error", err))
		return serials
	}
	for _, m := range matches {
		if _, ok := serials[key{m.VendorID, m.ProductID}]; !ok {
			serials[key{m.VendorID, m.ProductID}] = m.Serial
		}
	}
	return serials
}
