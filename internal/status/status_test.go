package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/diag-logger/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Card: "/media/card", EnginePort: "/dev/ttyUSB0", Broker: "tcp://localhost:1883", HTTPAddr: ":80", TickMs: 1}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Phase != logic.PhaseBooting {
		t.Errorf("Phase: got %q, want BOOTING", snap.Phase)
	}
	if snap.Config.EnginePort != "/dev/ttyUSB0" {
		t.Errorf("Config.EnginePort: got %q", snap.Config.EnginePort)
	}
	if snap.Running != nil || snap.Last != nil {
		t.Error("expected no sessions initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func bootedEvent() logic.Event {
	return logic.Event{
		Type:       logic.EventBooted,
		Phase:      logic.PhaseBooting,
		Profiles:   []string{"engine", "gearbox"},
		Selected:   1,
		FileNumber: 4,
		CardTotal:  1 << 30,
		CardFree:   1 << 29,
	}
}

func TestObserveBooted(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Observe(bootedEvent())

	snap := tr.Snapshot()
	if len(snap.Profiles) != 2 || snap.Profiles[1] != "gearbox" {
		t.Errorf("Profiles: got %v", snap.Profiles)
	}
	if snap.NextFile != 4 {
		t.Errorf("NextFile: got %d, want 4", snap.NextFile)
	}
	if snap.SelectedName() != "engine" {
		t.Errorf("SelectedName: got %q, want engine", snap.SelectedName())
	}
	if snap.CardTotal != 1<<30 {
		t.Errorf("CardTotal: got %d", snap.CardTotal)
	}
}

func TestObserveSessionLifecycle(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Observe(bootedEvent())

	tr.Observe(logic.Event{
		Type:        logic.EventSessionStart,
		Phase:       logic.PhaseLogging,
		Selected:    2,
		ProfileName: "engine",
		FileNumber:  4,
		FileName:    "004.TXT",
		SessionID:   "abc",
	})
	snap := tr.Snapshot()
	if snap.Running == nil || snap.Running.File != "004.TXT" {
		t.Fatalf("Running: got %+v", snap.Running)
	}
	if snap.Phase != logic.PhaseLogging {
		t.Errorf("Phase: got %q, want LOGGING", snap.Phase)
	}

	ended := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	tr.Observe(logic.Event{
		Timestamp:   ended,
		Type:        logic.EventSessionEnd,
		Phase:       logic.PhaseRecoveryDelay,
		Selected:    2,
		ProfileName: "engine",
		FileNumber:  4,
		FileName:    "004.TXT",
		SessionID:   "abc",
		Result:      logic.SessionResult{Kind: logic.ResultConnectionLost},
		WriteErrors: 2,
	})
	snap = tr.Snapshot()
	if snap.Running != nil {
		t.Error("expected Running cleared after SessionEnd")
	}
	if snap.Last == nil || snap.Last.Result.Kind != logic.ResultConnectionLost {
		t.Fatalf("Last: got %+v", snap.Last)
	}
	if !snap.Last.Ended.Equal(ended) {
		t.Errorf("Last.Ended: got %v", snap.Last.Ended)
	}
	if snap.Sessions != 1 || snap.Results[logic.ResultConnectionLost] != 1 {
		t.Errorf("counts: sessions=%d results=%v", snap.Sessions, snap.Results)
	}
	if snap.NextFile != 5 {
		t.Errorf("NextFile: got %d, want 5", snap.NextFile)
	}
}

func TestObserveSessionEndWrapsFileNumber(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Observe(logic.Event{Type: logic.EventSessionEnd, FileNumber: 999})

	if got := tr.Snapshot().NextFile; got != 1 {
		t.Errorf("NextFile: got %d, want 1", got)
	}
}

func TestObserveFatal(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Observe(logic.Event{Type: logic.EventSessionStart, SessionID: "x"})
	tr.Observe(logic.Event{Type: logic.EventFatal, Phase: logic.PhaseHalted, Reason: "error mounting card"})

	snap := tr.Snapshot()
	if snap.FatalReason != "error mounting card" {
		t.Errorf("FatalReason: got %q", snap.FatalReason)
	}
	if snap.Running != nil {
		t.Error("expected Running cleared on fatal")
	}
	if snap.Phase != logic.PhaseHalted {
		t.Errorf("Phase: got %q, want HALTED", snap.Phase)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSubscribeNotifiesOnChange(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ch := tr.Subscribe()
	defer tr.Unsubscribe(ch)

	tr.Observe(bootedEvent())
	tr.Observe(logic.Event{Type: logic.EventPhase, Phase: logic.PhaseAwaitingStart})

	select {
	case <-ch:
	default:
		t.Fatal("expected a notification")
	}
	// Notifications coalesce into one pending value.
	select {
	case <-ch:
		t.Fatal("expected notifications to coalesce")
	default:
	}
	if got := tr.Snapshot().Seq; got != 2 {
		t.Errorf("Seq: got %d, want 2", got)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ch := tr.Subscribe()
	tr.Unsubscribe(ch)

	tr.Observe(bootedEvent())
	select {
	case <-ch:
		t.Error("unexpected notification after Unsubscribe")
	default:
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSelectedNameOutOfRange(t *testing.T) {
	snap := Snapshot{Profiles: []string{"a"}, Selected: 2}
	if got := snap.SelectedName(); got != "" {
		t.Errorf("SelectedName: got %q, want empty", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Observe(bootedEvent())
	tr.Observe(logic.Event{Type: logic.EventSessionEnd, FileNumber: 4, Result: logic.SessionResult{Kind: logic.ResultUserTerminated}})

	snap1 := tr.Snapshot()
	snap1.Profiles[0] = "mutated"
	snap1.Results[logic.ResultUserTerminated] = 99
	snap1.Last.File = "mutated"

	snap2 := tr.Snapshot()
	if snap2.Profiles[0] != "engine" {
		t.Error("snapshot profiles share storage with tracker")
	}
	if snap2.Results[logic.ResultUserTerminated] != 1 {
		t.Error("snapshot results share storage with tracker")
	}
	if snap2.Last.File == "mutated" {
		t.Error("snapshot last session shares storage with tracker")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Phase:    logic.PhaseAwaitingStart,
		Profiles: []string{"engine", "gearbox"},
		Selected: 2,
		NextFile: 12,
		Last: &Session{
			ID:      "abc",
			Profile: "engine",
			File:    "011.TXT",
			Result:  logic.SessionResult{Kind: logic.ResultCommError, Code: 7},
			Ended:   start.Add(10 * time.Minute),
		},
		Sessions:      1,
		Results:       map[logic.ResultKind]int{logic.ResultCommError: 1},
		CardTotal:     1000,
		CardFree:      400,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Card: "/media/card", Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Phase != "AWAITING_START" {
		t.Errorf("Phase: got %q", s.Phase)
	}
	if s.SelectedName != "gearbox" {
		t.Errorf("SelectedName: got %q, want gearbox", s.SelectedName)
	}
	if s.NextFile != 12 {
		t.Errorf("NextFile: got %d, want 12", s.NextFile)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Last == nil || s.Last.Result != "COMMUNICATION_ERROR(7)" {
		t.Errorf("Last: got %+v", s.Last)
	}
	if s.Results["COMMUNICATION_ERROR"] != 1 {
		t.Errorf("Results: got %v", s.Results)
	}
	if s.Card == nil || s.Card.FreeBytes != 400 {
		t.Errorf("Card: got %+v", s.Card)
	}
	if s.Running != nil {
		t.Error("expected no running session")
	}
	// Event and Reason should be omitted
	if s.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", s.Event)
	}
	if s.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", s.Reason)
	}
}

func TestFormatJSONEmptySnapshot(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, ok := status["profiles"].([]interface{}); !ok {
		t.Errorf("profiles should be an empty array, got %v", status["profiles"])
	}
	for _, key := range []string{"card", "running", "last", "fatal", "network"} {
		if _, exists := status[key]; exists {
			t.Errorf("%s should be omitted", key)
		}
	}
}

func TestFormatCompactJSONMatchesFormatJSON(t *testing.T) {
	snap := Snapshot{
		Phase:     logic.PhaseLogging,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var a, b StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(FormatCompactJSON(snap), &b); err != nil {
		t.Fatal(err)
	}
	if a.Status.Phase != b.Status.Phase || a.Status.Timestamp != b.Status.Timestamp {
		t.Errorf("compact differs: %+v vs %+v", a.Status, b.Status)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Phase:         logic.PhaseAwaitingStart,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Phase:     logic.PhaseAwaitingStart,
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ch := tr.Subscribe()
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Observe(logic.Event{Type: logic.EventSessionEnd, FileNumber: uint32(i%999 + 1)})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			select {
			case <-ch:
			default:
			}
		}
	}()

	wg.Wait()
	tr.Unsubscribe(ch)
}
