package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/diag-logger/internal/controller"
	"github.com/sweeney/diag-logger/internal/engine"
	"github.com/sweeney/diag-logger/internal/gpio"
	"github.com/sweeney/diag-logger/internal/logger"
	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/mqtt"
	"github.com/sweeney/diag-logger/internal/operator"
	"github.com/sweeney/diag-logger/internal/power"
	"github.com/sweeney/diag-logger/internal/reset"
	"github.com/sweeney/diag-logger/internal/rtc"
	"github.com/sweeney/diag-logger/internal/status"
	"github.com/sweeney/diag-logger/internal/storage"
	"github.com/sweeney/diag-logger/internal/tick"
	"github.com/sweeney/diag-logger/internal/web"
)

// statusRefresh is how often MQTT and network state are copied into the tracker.
const statusRefresh = 5 * time.Second

// signalError ends the daemon on SIGINT or SIGTERM.
type signalError struct {
	sig os.Signal
}

func (e *signalError) Error() string {
	return "received " + e.sig.String()
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func isReset(err error) bool {
	return errors.Is(err, reset.ErrReset)
}

// daemon is the wired process. Hardware is opened by run; tests build one
// from fakes.
type daemon struct {
	counters   *tick.Counters
	tickPeriod time.Duration
	button     *operator.Button
	ctrl       *controller.Controller
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	forwarder  *mqtt.Forwarder
	web        *web.Server
	heartbeat  time.Duration
	now        func() time.Time
}

func run(ctx context.Context, o options, sig <-chan os.Signal) error {
	if o.console != "" {
		con, err := logger.OpenConsole(o.console)
		if err != nil {
			return err
		}
		defer con.Close()
		logger.Init(con)
	} else {
		logger.Init()
	}

	chip, err := gpio.OpenChip(o.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	output := func(pin int, activeLow bool) (gpio.Output, error) {
		out, err := chip.Output(pin, activeLow, false)
		if err != nil {
			return nil, fmt.Errorf("init gpio line %d: %w", pin, err)
		}
		closers = append(closers, out)
		return out, nil
	}

	btn, err := chip.Input(o.pinButton, true)
	if err != nil {
		return fmt.Errorf("init gpio line %d: %w", o.pinButton, err)
	}
	closers = append(closers, btn)
	led, err := output(o.pinLED, false)
	if err != nil {
		return err
	}
	buzzer, err := output(o.pinBuzzer, false)
	if err != nil {
		return err
	}
	supply, err := output(o.pinSupply, true)
	if err != nil {
		return err
	}
	cs, err := output(o.pinCardCS, false)
	if err != nil {
		return err
	}

	resetter, err := reset.New(o.resetMode)
	if err != nil {
		return err
	}

	counters := tick.New()
	mailbox := &operator.Mailbox{}
	pwr := power.New(supply, cs)
	clock := openClock(o.rtc, o.i2cBus)
	closers = appendCloser(closers, clock)

	tracker := status.NewTracker(time.Now(), status.Config{
		Card:       o.card,
		EnginePort: o.enginePort,
		Broker:     o.broker,
		HTTPAddr:   o.httpAddr,
		ResetMode:  o.resetMode,
		TickMs:     o.tick.Milliseconds(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := &daemon{
		counters:   counters,
		tickPeriod: o.tick,
		button:     operator.NewButton(btn, counters, mailbox),
		tracker:    tracker,
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}

	observers := logic.Observers{tracker}
	if o.broker != "" {
		pub := mqtt.NewRealPublisher(o.broker)
		d.publisher = pub
		d.mqttStatus = pub
		d.forwarder = mqtt.NewForwarder(pub, mqtt.DefaultQueueSize)
		observers = append(observers, d.forwarder)
	}
	if o.httpAddr != "" {
		d.web = web.New(o.httpAddr, tracker)
	}

	d.ctrl = controller.New(controller.SystemContext{
		Counters:  counters,
		Mailbox:   mailbox,
		Power:     pwr,
		Panel:     operator.NewPanel(led, buzzer),
		Medium:    storage.NewDirMedium(o.card, pwr),
		Clock:     clock,
		Engine:    engine.NewSerial(o.enginePort, counters),
		Resetter:  resetter,
		Observer:  observers,
		HWVersion: hwVersion,
		SWVersion: version,
	})

	return d.serve(ctx, sig)
}

// openClock prefers the battery-backed RTC and falls back to the system clock.
func openClock(mode, bus string) rtc.Clock {
	if mode == "ds3231" {
		c, err := rtc.OpenDS3231(bus, time.Local)
		if err == nil {
			return c
		}
		log.Printf("rtc: %v, using system clock", err)
	}
	return rtc.NewSystem()
}

// appendCloser adds v to closers if it holds a resource.
func appendCloser(closers []io.Closer, v any) []io.Closer {
	if c, ok := v.(io.Closer); ok {
		return append(closers, c)
	}
	return closers
}

// serve runs every component until the controller stops, a component fails
// or a signal arrives. The publisher is closed on return.
func (d *daemon) serve(ctx context.Context, sig <-chan os.Signal) error {
	if d.publisher != nil {
		defer d.publisher.Close()
	}
	d.publishSystem("STARTUP", "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tick.RunTicker(gctx, d.counters, d.tickPeriod) })
	g.Go(func() error { return d.button.Run(gctx) })
	g.Go(func() error { return d.ctrl.Run(gctx) })
	if d.forwarder != nil {
		g.Go(func() error { return d.forwarder.Run(gctx) })
	}
	if d.web != nil {
		g.Go(func() error { return d.web.Run(gctx) })
		log.Printf("http status server listening on %s", d.tracker.Snapshot().Config.HTTPAddr)
	}
	g.Go(func() error { return d.monitor(gctx) })
	g.Go(func() error {
		select {
		case s := <-sig:
			return &signalError{sig: s}
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	err := g.Wait()

	var se *signalError
	switch {
	case errors.As(err, &se):
		log.Printf("%v, shutting down", se)
		d.publishSystem("SHUTDOWN", signalName(se.sig))
		return nil
	case isReset(err):
		d.publishSystem("SHUTDOWN", "RESET")
		return err
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		d.publishSystem("SHUTDOWN", "CANCELLED")
		return nil
	default:
		d.publishSystem("SHUTDOWN", "ERROR")
		return err
	}
}

// monitor keeps the tracker's MQTT and network view fresh and publishes
// heartbeats.
func (d *daemon) monitor(ctx context.Context) error {
	refresh := time.NewTicker(statusRefresh)
	defer refresh.Stop()

	var hb <-chan time.Time
	if d.heartbeat > 0 && d.publisher != nil {
		t := time.NewTicker(d.heartbeat)
		defer t.Stop()
		hb = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			d.refreshStatus()
		case <-hb:
			d.refreshStatus()
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			d.publishSystem("HEARTBEAT", "")
		}
	}
}

func (d *daemon) refreshStatus() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (d *daemon) publishSystem(event, reason string) {
	if d.publisher == nil {
		return
	}
	d.refreshStatus()
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}
