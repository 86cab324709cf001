package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	colorable "github.com/mattn/go-colorable"

	"caprand/core"
	"caprand/host/capture"
	"caprand/host/config"
	"caprand/host/device"
	"caprand/host/serial"
	"caprand/host/usbdev"
)

const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
)

var (
	stdout = colorable.NewColorableStdout()
	logger = log.New(colorable.NewColorableStderr(), "caprand: ", log.LstdFlags)
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: caprand-host [-config file] [-device path] <command> [flags]

commands:
  list       list candidate serial ports and USB devices
  dict       print the device data dictionary
  status     print the generator status
  random     capture random bytes   (-total, -batch, -interval, -out)
  raw        capture raw samples    (-low, -timer, -total, -batch, -interval, -out)
  analyze    histogram report of a .bin file (-xlsx)
  calibrate  sweep forced-low times (-lo, -hi, -step)
  reseed     rebuild the generator  (-low, -calibrate)
  check      time a full capacitor recharge
  events     dump the device event ring
  reset      reboot the device
`)
}

func main() {
	configPath := flag.String("config", "caprand.yaml", "YAML config file")
	devicePath := flag.String("device", "", "serial device (default: config, then first Pico found)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *devicePath != "" {
		cfg.Device = *devicePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := run(ctx, cfg, cmd, args); err != nil {
		logger.Printf("%s%s: %v%s", colorRed, cmd, err, colorReset)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "list":
		return cmdList()
	case "analyze":
		return cmdAnalyze(args)
	}

	dev, release, err := open(cfg)
	if err != nil {
		return err
	}
	defer release()

	switch cmd {
	case "dict":
		return cmdDict(dev)
	case "status":
		return cmdStatus(dev)
	case "random":
		return cmdCapture(ctx, dev, cfg, capture.ModeRandom, args)
	case "raw":
		return cmdCapture(ctx, dev, cfg, capture.ModeRaw, args)
	case "calibrate":
		return cmdCalibrate(dev, cfg, args)
	case "reseed":
		return cmdReseed(dev, cfg, args)
	case "check":
		return cmdCheck(dev)
	case "events":
		return cmdEvents(dev)
	case "reset":
		return dev.Reset()
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// open locks and connects the configured or discovered device
func open(cfg *config.Config) (*device.Client, func(), error) {
	path := cfg.Device
	if path == "" {
		p, err := serial.FindPort()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}

	lock, err := serial.AcquireLock(cfg.LockDir, path)
	if err != nil {
		return nil, nil, err
	}

	logger.Printf("connecting to %s", path)
	dev, err := device.Connect(serial.DefaultConfig(path), device.WithTimeouts(cfg.Timeout, cfg.SlowTimeout))
	if err != nil {
		lock.Release()
		return nil, nil, err
	}
	return dev, func() {
		dev.Close()
		lock.Release()
	}, nil
}

func cmdList() error {
	ports, err := serial.Discover("", "")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "serial ports:")
	for _, p := range ports {
		mark := " "
		if p.Matches(serial.PicoVID, serial.PicoPID) {
			mark = colorGreen + "*" + colorReset
		}
		fmt.Fprintf(stdout, " %s %-16s %s:%s %s %s\n", mark, p.Name, p.VID, p.PID, p.Product, p.SerialNumber)
	}

	devs, err := usbdev.Probe(usbdev.Pico)
	if err != nil {
		// libusb is optional; the serial listing above is the main answer
		logger.Printf("usb probe: %v", err)
		return nil
	}
	fmt.Fprintln(stdout, "usb devices:")
	for _, d := range devs {
		fmt.Fprintf(stdout, "   %s\n", d)
	}
	return nil
}

func cmdDict(dev *device.Client) error {
	d := dev.Dictionary()
	fmt.Fprintf(stdout, "version  %s\nbuild    %s\n\nconfig:\n", d.Version, d.BuildVersions)
	for k, v := range d.Config {
		fmt.Fprintf(stdout, "  %-16s %s\n", k, v)
	}
	fmt.Fprintln(stdout, "\ncommands:")
	for sig, id := range d.Commands {
		fmt.Fprintf(stdout, "  [%2d] %s\n", id, sig)
	}
	fmt.Fprintln(stdout, "\nresponses:")
	for sig, id := range d.Responses {
		fmt.Fprintf(stdout, "  [%2d] %s\n", id, sig)
	}
	return nil
}

func printStatus(st device.Status) {
	state := colorGreen + "seeded" + colorReset
	if !st.Seeded {
		state = colorRed + "not seeded" + colorReset
	}
	fmt.Fprintf(stdout, "%s  pin=%d low_cycles=%d validated=%d hashed=%d failures=%d\n",
		state, st.Pin, st.LowCycles, st.Validated, st.Hashed, st.Failures)
	if st.Err != nil {
		fmt.Fprintf(stdout, "%slast error: %v%s\n", colorRed, st.Err, colorReset)
	}
}

func cmdStatus(dev *device.Client) error {
	st, err := dev.Status()
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func cmdCapture(ctx context.Context, dev *device.Client, cfg *config.Config, mode capture.Mode, args []string) error {
	c := cfg.Capture
	fs := flag.NewFlagSet(string(mode), flag.ExitOnError)
	low := fs.Uint("low", uint(c.LowCycles), "forced-low cycles (raw)")
	timer := fs.Bool("timer", c.Timer, "timer-augmented samples (raw)")
	total := fs.String("total", "", "stop after this many bytes, e.g. 1MB (default: config, 0 = until interrupted)")
	batch := fs.String("batch", "", "bytes per batch, e.g. 4KB (default: config)")
	interval := fs.Duration("interval", c.Interval, "time between batches")
	outDir := fs.String("out", c.OutDir, "output directory")
	fs.Parse(args)

	if *total != "" {
		v, err := config.ParseSize(*total)
		if err != nil {
			return err
		}
		c.Total = v
	}
	if *batch != "" {
		v, err := config.ParseSize(*batch)
		if err != nil {
			return err
		}
		c.Batch = v
	}

	sess, err := capture.NewSession(time.Now(), mode, uint32(*low), *interval)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("creating outdir: %w", err)
	}
	w, err := capture.Create(*outDir, sess)
	if err != nil {
		return err
	}

	read := dev.Random
	if mode == capture.ModeRaw {
		read = func(n int) ([]byte, error) {
			return dev.Raw(uint32(*low), n, *timer)
		}
	}

	logger.Printf("session %s: %s batches of %s every %v", sess.ID, mode, c.Batch, *interval)
	col := &capture.Collector{
		Read:     read,
		Sink:     w,
		Batch:    int(c.Batch),
		Interval: *interval,
		Total:    int(c.Total),
	}
	n, err := col.Run(ctx)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	logger.Printf("wrote %s to %s", config.Size(n), sess.Path(*outDir, "bin"))
	return err
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	xlsx := fs.Bool("xlsx", false, "also write an .xlsx workbook next to the input")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("analyze needs one .bin file")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return err
	}

	r := capture.Analyze(data)
	if err := r.WriteText(stdout); err != nil {
		return err
	}
	if *xlsx {
		out := strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx"
		if err := r.WriteXLSX(out, filepath.Base(path)); err != nil {
			return err
		}
		logger.Printf("wrote %s", out)
	}
	return nil
}

func cmdCalibrate(dev *device.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	lo := fs.Uint("lo", uint(cfg.Calibrate.Low), "first forced-low time")
	hi := fs.Uint("hi", uint(cfg.Calibrate.High), "last forced-low time")
	step := fs.Uint("step", uint(cfg.Calibrate.Step), "sweep step")
	fs.Parse(args)

	res, err := dev.Calibrate(uint32(*lo), uint32(*hi), uint32(*step))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "best low_cycles=%d max_bucket=%d min-entropy=%.3f bits/sample\n",
		res.LowCycles, res.MaxBucket, res.MinEntropy)
	return nil
}

func cmdReseed(dev *device.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reseed", flag.ExitOnError)
	low := fs.Uint("low", 0, "forced-low cycles (0 = board default)")
	cal := fs.Bool("calibrate", false, "calibrate before seeding")
	fs.Parse(args)

	st, err := dev.Reseed(uint32(*low), *cal)
	if err != nil {
		return err
	}
	printStatus(st)
	return st.Err
}

func cmdCheck(dev *device.Client) error {
	ticks, err := dev.CheckCapacitor()
	fmt.Fprintf(stdout, "recharge %d cycles (%d ns)\n", ticks, core.CyclesToNS(ticks))
	return err
}

func cmdEvents(dev *device.Client) error {
	events, err := dev.Events()
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Fprintln(stdout, core.FormatEvent(e))
	}
	return nil
}
