// eeprom-sim runs the 24Cxx read path against the simulated USCI_B0
// controller and prints what came back and what crossed the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eepromcode-go/config"
	"eepromcode-go/drivers/at24"
	"eepromcode-go/errcode"
	"eepromcode-go/internal/demo"
	"eepromcode-go/usci"
	"eepromcode-go/usci/usim"
	"eepromcode-go/x/conv"
)

type options struct {
	config string
	offset int64
	n      int
	step   int
	trace  bool
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: eeprom-sim [flags]\n\nRead a simulated 24Cxx EEPROM through the USCI_B0 transaction engine.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	var o options
	flag.StringVar(&o.config, "config", "", "path to YAML configuration (default: built-in demo image)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	flag.Int64Var(&o.offset, "offset", demo.Word, "array offset to read from")
	flag.IntVar(&o.n, "n", 3, "number of bytes to read")
	flag.IntVar(&o.step, "step", 0, "run one bring-up step (1-5) instead of a read")
	flag.BoolVar(&o.trace, "trace", false, "print the bus trace")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := config.LoadEnv(*envFile); err != nil {
		log.Error("load env", "path", *envFile, "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, os.Stdout, o); err != nil {
		log.Error("run", "code", string(errcode.Of(err)), "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, out io.Writer, o options) error {
	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return err
		}
	}

	c := usim.New(cfg.NewTarget(), cfg.Timing())
	c.SetStrict(cfg.Sim.Strict)
	if err := usci.Configure(c, cfg.BringUp()); err != nil {
		return err
	}
	ecfg := cfg.EngineConfig()
	e := at24.New(c, ecfg)
	log.Debug("bus up",
		"target", ecfg.Target, "part_size", cfg.DeviceConfig().Part.Size,
		"poll_budget", ecfg.PollBudget, "timeout", ecfg.Timeout, "check_nack", ecfg.CheckNACK)

	var err error
	if o.step > 0 {
		err = runStep(out, e, o.step)
	} else {
		err = runRead(ctx, out, e, cfg.DeviceConfig(), o)
	}

	if o.trace {
		for _, ev := range c.Trace() {
			fmt.Fprintln(out, ev)
		}
	}
	for _, v := range c.Violations() {
		log.Warn("bus violation", "msg", v)
	}
	log.Debug("done", "polls", c.Polls(), "phase", e.Phase().String())
	return err
}

func runStep(out io.Writer, e *at24.Engine, n int) error {
	if n < 1 || n > len(demo.Steps) {
		return errcode.New(errcode.InvalidParams, "eeprom-sim", fmt.Sprintf("step %d not in 1..%d", n, len(demo.Steps)))
	}
	s := demo.Steps[n-1]
	data, err := s.Run(e, demo.Word)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "step %d %s ok\n", n, s.Name)
	dump(out, demo.Word, data)
	return nil
}

func runRead(ctx context.Context, out io.Writer, e *at24.Engine, dc at24.DeviceConfig, o options) error {
	if o.n <= 0 {
		return errcode.New(errcode.InvalidParams, "eeprom-sim", "n must be positive")
	}
	owner := at24.NewOwner(e, at24.OwnerConfig{})
	defer owner.Close()

	d, err := at24.NewDevice(owner, dc)
	if err != nil {
		return err
	}
	buf := make([]byte, o.n)
	n, err := d.WithContext(ctx).ReadAt(buf, o.offset)
	dump(out, o.offset, buf[:n])
	if err == io.EOF {
		return nil
	}
	return err
}

func dump(out io.Writer, off int64, data []byte) {
	for _, l := range conv.Dump(uint16(off), data, 16) {
		fmt.Fprintln(out, l)
	}
}
