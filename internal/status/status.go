// Package status provides a thread-safe status tracker for the logger daemon.
// It is fed by controller events and read by HTTP handlers and MQTT.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/storage"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Card       string
	EnginePort string
	Broker     string
	HTTPAddr   string
	ResetMode  string
	TickMs     int64
}

// Session summarises the most recent logging session.
type Session struct {
	ID          string
	Profile     string
	File        string
	Result      logic.SessionResult
	WriteErrors int
	Ended       time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and remains valid after the lock is released.
type Snapshot struct {
	Phase         logic.Phase
	Profiles      []string
	Selected      int
	NextFile      uint32
	Debug         bool
	Running       *Session
	Last          *Session
	Sessions      int
	Results       map[logic.ResultKind]int
	FatalReason   string
	CardTotal     uint64
	CardFree      uint64
	Seq           uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// SelectedName returns the name of the selected profile, or "".
func (s Snapshot) SelectedName() string {
	if s.Selected < 1 || s.Selected > len(s.Profiles) {
		return ""
	}
	return s.Profiles[s.Selected-1]
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	subs map[chan struct{}]struct{}
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:     logic.PhaseBooting,
			Results:   make(map[logic.ResultKind]int),
			StartTime: startTime,
			Config:    cfg,
		},
		subs: make(map[chan struct{}]struct{}),
	}
}

// Observe applies a controller event.
func (t *Tracker) Observe(ev logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	s.Phase = ev.Phase
	s.Selected = ev.Selected
	s.Debug = ev.Debug
	if ev.CardTotal > 0 {
		s.CardTotal = ev.CardTotal
		s.CardFree = ev.CardFree
	}

	switch ev.Type {
	case logic.EventBooted:
		s.Profiles = append([]string(nil), ev.Profiles...)
		s.NextFile = ev.FileNumber
	case logic.EventSessionStart:
		s.Running = &Session{ID: ev.SessionID, Profile: ev.ProfileName, File: ev.FileName}
	case logic.EventSessionEnd:
		s.Running = nil
		s.Last = &Session{
			ID:          ev.SessionID,
			Profile:     ev.ProfileName,
			File:        ev.FileName,
			Result:      ev.Result,
			WriteErrors: ev.WriteErrors,
			Ended:       ev.Timestamp,
		}
		s.Sessions++
		s.Results[ev.Result.Kind]++
		s.NextFile = ev.FileNumber%storage.MaxFileNumber + 1
	case logic.EventFatal:
		s.Running = nil
		s.FatalReason = ev.Reason
	}
	t.changed()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	if t.snap.MQTTConnected != connected {
		t.snap.MQTTConnected = connected
		t.changed()
	}
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Subscribe returns a channel that receives a value whenever the state
// changes. Notifications coalesce; read Snapshot after each one.
func (t *Tracker) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe stops notifications on ch.
func (t *Tracker) Unsubscribe(ch chan struct{}) {
	t.mu.Lock()
	delete(t.subs, ch)
	t.mu.Unlock()
}

// changed bumps the sequence number and notifies subscribers. Caller holds mu.
func (t *Tracker) changed() {
	t.snap.Seq++
	for ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Profiles = append([]string(nil), t.snap.Profiles...)
	s.Results = make(map[logic.ResultKind]int, len(t.snap.Results))
	for k, v := range t.snap.Results {
		s.Results[k] = v
	}
	if t.snap.Running != nil {
		r := *t.snap.Running
		s.Running = &r
	}
	if t.snap.Last != nil {
		l := *t.snap.Last
		s.Last = &l
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
