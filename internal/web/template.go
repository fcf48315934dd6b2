package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/wheel-pulse/internal/status"
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
	"f2": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"us": func(d time.Duration) string {
		if d == 0 {
			return "—"
		}
		return fmt.Sprintf("%dµs", d.Microseconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Wheel Pulse</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.moving { color: green; font-weight: bold; }
.stopped { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Wheel Pulse</h1>

<h2>Motion</h2>
<table>
<tr><th>State</th><td class="{{if .Speed.Stalled}}stopped{{else}}moving{{end}}">{{if .Speed.Stalled}}STOPPED{{else}}MOVING{{end}}</td></tr>
<tr><th>Speed</th><td>{{f2 .Speed.SpeedKMH}} km/h</td></tr>
<tr><th>RPM</th><td>{{f2 .Speed.RPMAvg}} (instant {{f2 .Speed.RPM}})</td></tr>
<tr><th>Input frequency</th><td>{{f2 .Speed.FrequencyHz}} Hz</td></tr>
<tr><th>Output period</th><td>{{us .Speed.OutputPeriod}}</td></tr>
<tr><th>Averaging window</th><td>{{.Window}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} — {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Pulse Counts</h2>
<table>
<tr><th>Accepted</th><td>{{.Counts.Accepted}}</td></tr>
<tr><th>Ignored (bounce)</th><td>{{.Counts.Ignored}}</td></tr>
<tr><th>Stalls</th><td>{{.Counts.Stalls}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollUs}}µs</td></tr>
<tr><th>Ratio</th><td>{{.Config.PulsesIn}} in : {{.Config.PulsesOut}} out</td></tr>
<tr><th>Duty</th><td>{{.Config.DutyPercent}}%</td></tr>
<tr><th>Stall timeout</th><td>{{.Config.StallTimeoutMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
	indexTmpl.Execute(w, data)
}
