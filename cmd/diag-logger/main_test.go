package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/diag-logger/internal/controller"
	"github.com/sweeney/diag-logger/internal/engine"
	"github.com/sweeney/diag-logger/internal/gpio"
	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/mqtt"
	"github.com/sweeney/diag-logger/internal/operator"
	"github.com/sweeney/diag-logger/internal/power"
	"github.com/sweeney/diag-logger/internal/profile"
	"github.com/sweeney/diag-logger/internal/reset"
	"github.com/sweeney/diag-logger/internal/rtc"
	"github.com/sweeney/diag-logger/internal/status"
	"github.com/sweeney/diag-logger/internal/storage"
	"github.com/sweeney/diag-logger/internal/tick"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil without NETWORK_STATUS, got %+v", info)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	if code, ok := exitCode(fmt.Errorf("controller: %w", reset.ErrReset)); !ok || code != reset.ExitCode {
		t.Errorf("reset: got (%d, %v), want (%d, true)", code, ok, reset.ExitCode)
	}
	if _, ok := exitCode(errors.New("boom")); ok {
		t.Error("plain errors should not map to an exit code")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(out.String(), "sw_ver: "+version) {
		t.Errorf("version output: got %q", out.String())
	}
}

func TestPrintProfiles(t *testing.T) {
	store, err := profile.Load(strings.NewReader(`
[profile1]
name = "engine"
ecu = 0x10
groups = [1, 2]
interval_ms = 250
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var out bytes.Buffer
	printProfiles(&out, store)

	for _, want := range []string{"engine", "ecu=0x10", "groups=1,2", "interval=250ms", "bitrate=500000"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q: %q", want, out.String())
		}
	}
}

func TestNextFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"001.TXT", "002.TXT", "CONFIG.TOML"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	name, err := nextFile(cmd, dir)
	if err != nil {
		t.Fatalf("nextFile: %v", err)
	}
	if name != "003.TXT" {
		t.Errorf("got %q, want 003.TXT", name)
	}
}

const oneProfile = `
[profile1]
name = "engine"
ecu = 1
groups = [1]
`

type testDaemon struct {
	*daemon
	pub      *mqtt.FakePublisher
	medium   *storage.FakeMedium
	resetter *reset.Fake
}

// newTestDaemon wires the daemon from fakes.
func newTestDaemon(t *testing.T, medium *storage.FakeMedium, button *gpio.FakeInput) *testDaemon {
	t.Helper()
	counters := tick.New()
	box := &operator.Mailbox{}
	pwr := power.New(gpio.NewFakeOutput(false), gpio.NewFakeOutput(false))
	medium.Gate = pwr
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(time.Now(), status.Config{Card: "fake"})
	fw := mqtt.NewForwarder(pub, 64)
	resetter := &reset.Fake{}

	d := &daemon{
		counters:   counters,
		tickPeriod: 100 * time.Microsecond,
		button:     operator.NewButton(button, counters, box),
		tracker:    tracker,
		publisher:  pub,
		mqttStatus: pub,
		forwarder:  fw,
		heartbeat:  0,
		now:        time.Now,
	}
	d.ctrl = controller.New(controller.SystemContext{
		Counters:  counters,
		Mailbox:   box,
		Power:     pwr,
		Panel:     operator.NewPanel(gpio.NewFakeOutput(false), gpio.NewFakeOutput(false)),
		Medium:    medium,
		Clock:     rtc.NewSystem(),
		Engine:    engine.NewScript(engine.Step{UntilCancel: true}),
		Resetter:  resetter,
		Observer:  logic.Observers{tracker, fw},
		HWVersion: "DL-1",
		SWVersion: "test",
	})
	return &testDaemon{daemon: d, pub: pub, medium: medium, resetter: resetter}
}

func waitPhase(t *testing.T, tr *status.Tracker, phase logic.Phase) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		if tr.Snapshot().Phase == phase {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, at %s", phase, tr.Snapshot().Phase)
}

func TestServeShutsDownOnSignal(t *testing.T) {
	medium := storage.NewFakeMedium("001.TXT")
	medium.Put("CONFIG.TOML", oneProfile)
	d := newTestDaemon(t, medium, gpio.NewFakeInput(false))

	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- d.serve(context.Background(), sig) }()

	waitPhase(t, d.tracker, logic.PhaseAwaitingStart)
	if got := d.tracker.Snapshot().NextFile; got != 2 {
		t.Errorf("NextFile: got %d, want 2", got)
	}

	sig <- syscall.SIGTERM
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after SIGTERM")
	}

	sys := d.pub.PublishedSystem()
	if len(sys) != 2 {
		t.Fatalf("expected STARTUP and SHUTDOWN, got %d system events", len(sys))
	}
	if sys[0].Event != "STARTUP" || !sys[0].Retained {
		t.Errorf("first system event: got %+v", sys[0])
	}
	if sys[1].Event != "SHUTDOWN" || sys[1].Reason != "SIGTERM" {
		t.Errorf("last system event: got %s/%s", sys[1].Event, sys[1].Reason)
	}
	if !d.pub.Closed {
		t.Error("publisher not closed")
	}

	var booted bool
	for _, ev := range d.pub.Published() {
		if ev.Type == logic.EventPhase {
			t.Error("phase events must not be published")
		}
		if ev.Type == logic.EventBooted {
			booted = true
		}
	}
	if !booted {
		t.Error("BOOTED event not published")
	}
}

func TestServeResetsAfterFatal(t *testing.T) {
	// No configuration file: boot halts. The button is pressed well after
	// the halt starts waiting and held into a long press.
	samples := make([]bool, 301)
	samples[300] = true
	d := newTestDaemon(t, storage.NewFakeMedium(), gpio.NewFakeInput(samples...))

	errCh := make(chan error, 1)
	go func() { errCh <- d.serve(context.Background(), make(chan os.Signal)) }()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(30 * time.Second):
		t.Fatal("serve did not return after the confirm press")
	}
	if !isReset(err) {
		t.Fatalf("serve: expected reset, got %v", err)
	}
	if d.resetter.Count() != 1 {
		t.Errorf("resets: got %d, want 1", d.resetter.Count())
	}

	snap := d.tracker.Snapshot()
	if snap.Phase != logic.PhaseHalted || snap.FatalReason == "" {
		t.Errorf("tracker: phase=%s fatal=%q", snap.Phase, snap.FatalReason)
	}

	sys := d.pub.PublishedSystem()
	if last := sys[len(sys)-1]; last.Event != "SHUTDOWN" || last.Reason != "RESET" {
		t.Errorf("last system event: got %s/%s", last.Event, last.Reason)
	}
	var fatal bool
	for _, ev := range d.pub.Published() {
		if ev.Type == logic.EventFatal {
			fatal = true
		}
	}
	if !fatal {
		t.Error("FATAL event not published")
	}
}

type closingClock struct {
	*rtc.System
	closed bool
}

func (c *closingClock) Close() error {
	c.closed = true
	return nil
}

func TestAppendCloserKeepsClockResources(t *testing.T) {
	closers := appendCloser(nil, rtc.NewSystem())
	if len(closers) != 0 {
		t.Fatalf("system clock holds nothing to close, got %d closers", len(closers))
	}

	var clock rtc.Clock = &closingClock{System: rtc.NewSystem()}
	closers = appendCloser(closers, clock)
	if len(closers) != 1 {
		t.Fatalf("expected the clock to be tracked, got %d closers", len(closers))
	}
	closers[0].Close()
	if !clock.(*closingClock).closed {
		t.Error("closing the tracked closer should close the clock")
	}

	var _ io.Closer = (*rtc.DS3231)(nil)
}
