package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/diag-logger/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"bytes": func(n uint64) string {
		const unit = 1024
		if n < unit {
			return fmt.Sprintf("%d B", n)
		}
		div, exp := uint64(unit), 0
		for m := n / unit; m >= unit; m /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Diag Logger</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.logging { color: green; font-weight: bold; }
.halted { color: red; font-weight: bold; }
.selected { font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Diag Logger<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Logger</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{if eq (printf "%s" .Phase) "LOGGING"}}logging{{else if eq (printf "%s" .Phase) "HALTED"}}halted{{end}}">{{.Phase}}</td></tr>
<tr><th>Selected</th><td id="selected">{{.SelectedName}}</td></tr>
<tr><th>Next file</th><td id="next-file">{{printf "%03d" .NextFile}}.TXT</td></tr>
<tr><th>Debug</th><td>{{if .Debug}}on{{else}}off{{end}}</td></tr>
{{if .FatalReason}}<tr><th>Fatal</th><td class="halted">{{.FatalReason}}</td></tr>{{end}}
</table>

<h2>Profiles</h2>
<table>
{{range $i, $name := .Profiles}}<tr><th>{{inc $i}}</th><td class="{{if eq (inc $i) $.Selected}}selected{{end}}">{{$name}}</td></tr>
{{else}}<tr><td>none loaded</td></tr>
{{end}}</table>

<h2>Sessions</h2>
<table>
{{if .Running}}<tr><th>Running</th><td>{{.Running.File}} ({{.Running.Profile}})</td></tr>{{end}}
{{if .Last}}<tr><th>Last</th><td>{{.Last.File}} ({{.Last.Profile}}): {{.Last.Result}}{{if .Last.WriteErrors}}, {{.Last.WriteErrors}} write errors{{end}}</td></tr>{{end}}
<tr><th>Completed</th><td>{{.Sessions}}</td></tr>
{{range $kind, $n := .Results}}<tr><th>{{$kind}}</th><td>{{$n}}</td></tr>
{{end}}</table>

<h2>Card</h2>
<table>
<tr><th>Path</th><td>{{.Config.Card}}</td></tr>
{{if .CardTotal}}<tr><th>Free</th><td>{{bytes .CardFree}} of {{bytes .CardTotal}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Engine</th><td>{{.Config.EnginePort}}</td></tr>
<tr><th>Reset</th><td>{{.Config.ResetMode}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var phaseEl = document.getElementById("phase");
  var selEl = document.getElementById("selected");
  var nextEl = document.getElementById("next-file");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function pad(n) { return ("00" + n).slice(-3); }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var s = JSON.parse(e.data).status;
        phaseEl.textContent = s.phase;
        phaseEl.className = s.phase === "LOGGING" ? "logging" : s.phase === "HALTED" ? "halted" : "";
        selEl.textContent = s.selected_name || "";
        nextEl.textContent = pad(s.next_file) + ".TXT";
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("http: render: %v", err)
	}
}
