package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	State          string       `json:"state"` // MOVING or STOPPED
	RPM            float64      `json:"rpm"`
	RPMAvg         float64      `json:"rpm_avg"`
	FrequencyHz    float64      `json:"frequency_hz"`
	SpeedKMH       float64      `json:"speed_kmh"`
	OutputPeriodUs int64        `json:"output_period_us"`
	Window         int          `json:"averaging_window"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"pulse_counts"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of edge counts.
type CountsJSON struct {
	Accepted uint64 `json:"accepted"`
	Ignored  uint64 `json:"ignored"`
	Stalls   int    `json:"stalls"`
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
	PollUs         int64  `json:"poll_us"`
	PulsesIn       int    `json:"pulses_in"`
	PulsesOut      int    `json:"pulses_out"`
	DutyPercent    int    `json:"duty_percent"`
	StallTimeoutMs int64  `json:"stall_timeout_ms"`
	Broker         string `json:"broker"`
	HTTPPort       string `json:"http_port"`
}

// StateString returns MOVING or STOPPED for a speed snapshot.
func StateString(sp Speed) string {
	if sp.Stalled {
		return "STOPPED"
	}
	return "MOVING"
}

// round2 keeps the JSON readable; the raw floats carry meaningless digits.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		State:          StateString(snap.Speed),
		RPM:            round2(snap.Speed.RPM),
		RPMAvg:         round2(snap.Speed.RPMAvg),
		FrequencyHz:    round2(snap.Speed.FrequencyHz),
		SpeedKMH:       round2(snap.Speed.SpeedKMH),
		OutputPeriodUs: snap.Speed.OutputPeriod.Microseconds(),
		Window:         snap.Window,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Accepted: snap.Counts.Accepted,
			Ignored:  snap.Counts.Ignored,
			Stalls:   snap.Counts.Stalls,
		},
		Config: ConfigJSON{
			PollUs:         snap.Config.PollUs,
			PulsesIn:       snap.Config.PulsesIn,
			PulsesOut:      snap.Config.PulsesOut,
			DutyPercent:    snap.Config.DutyPercent,
			StallTimeoutMs: snap.Config.StallTimeoutMs,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
		},
	}
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

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
