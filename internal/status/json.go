package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Phase         string         `json:"phase"`
	Profiles      []string       `json:"profiles"`
	Selected      int            `json:"selected"`
	SelectedName  string         `json:"selected_name,omitempty"`
	NextFile      uint32         `json:"next_file"`
	Debug         bool           `json:"debug"`
	Running       *SessionJSON   `json:"running,omitempty"`
	Last          *SessionJSON   `json:"last,omitempty"`
	Sessions      int            `json:"sessions"`
	Results       map[string]int `json:"results"`
	Fatal         string         `json:"fatal,omitempty"`
	Card          *CardJSON      `json:"card,omitempty"`
	Seq           uint64         `json:"seq"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// SessionJSON is the JSON representation of a session.
type SessionJSON struct {
	ID          string `json:"id"`
	Profile     string `json:"profile"`
	File        string `json:"file"`
	Result      string `json:"result,omitempty"`
	WriteErrors int    `json:"write_errors,omitempty"`
	Ended       string `json:"ended,omitempty"`
}

// CardJSON reports card capacity.
type CardJSON struct {
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Card       string `json:"card"`
	EnginePort string `json:"engine_port"`
	Broker     string `json:"broker"`
	HTTPAddr   string `json:"http_addr"`
	ResetMode  string `json:"reset_mode"`
	TickMs     int64  `json:"tick_ms"`
}

func sessionJSON(s *Session) *SessionJSON {
	if s == nil {
		return nil
	}
	out := &SessionJSON{
		ID:          s.ID,
		Profile:     s.Profile,
		File:        s.File,
		WriteErrors: s.WriteErrors,
	}
	if !s.Ended.IsZero() {
		out.Result = s.Result.String()
		out.Ended = s.Ended.UTC().Format(time.RFC3339)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	results := make(map[string]int, len(snap.Results))
	for k, v := range snap.Results {
		results[string(k)] = v
	}
	profiles := snap.Profiles
	if profiles == nil {
		profiles = []string{}
	}

	inner := StatusInner{
		Phase:         string(snap.Phase),
		Profiles:      profiles,
		Selected:      snap.Selected,
		SelectedName:  snap.SelectedName(),
		NextFile:      snap.NextFile,
		Debug:         snap.Debug,
		Running:       sessionJSON(snap.Running),
		Last:          sessionJSON(snap.Last),
		Sessions:      snap.Sessions,
		Results:       results,
		Fatal:         snap.FatalReason,
		Seq:           snap.Seq,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Card:       snap.Config.Card,
			EnginePort: snap.Config.EnginePort,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
			ResetMode:  snap.Config.ResetMode,
			TickMs:     snap.Config.TickMs,
		},
	}
	if snap.CardTotal > 0 {
		inner.Card = &CardJSON{TotalBytes: snap.CardTotal, FreeBytes: snap.CardFree}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCompactJSON returns the same document as FormatJSON without
// indentation, for websocket frames.
func FormatCompactJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
