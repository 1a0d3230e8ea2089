package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/vcu-core/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>VCU Core</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.warn { color: orange; font-weight: bold; }
.fault { color: red; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Vigilance Control Unit</h1>

<h2>State</h2>
<table>
<tr><th>Operating Mode</th><td class="{{if eq .Unit.Mode.String "MAJOR_FAULT"}}fault{{else if eq .Unit.Mode.String "NORMAL"}}ok{{else}}warn{{end}}">{{.Unit.Mode}}</td></tr>
<tr><th>Vigilance Timer</th><td class="{{if eq .Unit.Vcut.String "NORMAL"}}ok{{else}}warn{{end}}">{{.Unit.Vcut}}</td></tr>
<tr><th>Countdown</th><td>{{if .Unit.TimerArmed}}{{.Unit.TimerTicks}} ticks{{else}}disarmed{{end}}</td></tr>
<tr><th>Penalty Brake</th><td class="{{if .Unit.BrakeEnergized}}ok{{else}}fault{{end}}">{{if .Unit.BrakeEnergized}}RELEASED{{else}}APPLIED{{end}}</td></tr>
</table>

<h2>Faults</h2>
<table>
<tr><th>CH1 Group</th><td class="{{if .Unit.Ch1Masked}}fault{{else}}ok{{end}}">{{if .Unit.Ch1Masked}}MASKED{{else}}healthy{{end}}</td></tr>
<tr><th>CH2 Group</th><td class="{{if .Unit.Ch2Masked}}fault{{else}}ok{{end}}">{{if .Unit.Ch2Masked}}MASKED{{else}}healthy{{end}}</td></tr>
<tr><th>Minor Fault</th><td class="{{if .Unit.MinorFault}}fault{{else}}ok{{end}}">{{if .Unit.MinorFault}}FAULTED{{else}}clear{{end}}</td></tr>
<tr><th>Major Fault</th><td class="{{if .Unit.MajorFault}}fault{{else}}ok{{end}}">{{if .Unit.MajorFault}}FAULTED{{else}}clear{{end}}</td></tr>
</table>

<h2>Input Channels</h2>
<table>
<tr><th>Channel</th><td>Group</td><td>Level</td><td>Fault</td></tr>
{{range .Unit.Channels}}<tr><th>{{.Name}}{{if .Spare}} (spare){{end}}</th><td>{{.Group}}</td><td class="{{if .Level}}ok{{else}}off{{end}}">{{onOff .Level}}</td><td class="{{if .Fault}}fault{{else}}ok{{end}}">{{if .Fault}}FAULT{{else}}-{{end}}</td></tr>
{{end}}</table>

<h2>Outputs</h2>
<table>
<tr><th>Output</th><td>Driven</td><td>Fault</td></tr>
{{range .Unit.Outputs}}<tr><th>{{.Name}}{{if .PenaltyBrake}} (penalty){{end}}</th><td class="{{if .Energized}}ok{{else}}off{{end}}">{{if .Energized}}ENERGIZED{{else}}DE-ENERGIZED{{end}}</td><td class="{{if .Fault}}fault{{else}}ok{{end}}">{{if .Fault}}FAULT{{else}}-{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Mode changes</th><td>{{.Counts.ModeChanges}}</td></tr>
<tr><th>Vcut changes</th><td>{{.Counts.VcutChanges}}</td></tr>
<tr><th>Minor faults</th><td>{{.Counts.MinorFaults}}</td></tr>
<tr><th>Major faults</th><td>{{.Counts.MajorFaults}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Batch</th><td>{{.Config.BatchMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/status.json">JSON</a> &middot; <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but the template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
