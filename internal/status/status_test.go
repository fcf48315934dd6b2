package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollUs: 1000, PulsesIn: 3, PulsesOut: 4, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollUs != 1000 {
		t.Errorf("Config.PollUs: got %d, want 1000", snap.Config.PollUs)
	}
	if snap.Config.HTTPPort != ":80" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":80")
	}
	if !snap.Speed.Stalled {
		t.Error("expected Stalled=true initially (no motion observed)")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(Speed{
		Stalled:      false,
		RPM:          1200,
		RPMAvg:       1180.5,
		FrequencyHz:  60,
		SpeedKMH:     12.4,
		OutputPeriod: 7500 * time.Microsecond,
	}, 7, Counts{Accepted: 42, Ignored: 3, Stalls: 1})

	snap := tr.Snapshot()
	if snap.Speed.Stalled {
		t.Error("expected Stalled=false")
	}
	if snap.Speed.RPM != 1200 {
		t.Errorf("RPM: got %v, want 1200", snap.Speed.RPM)
	}
	if snap.Speed.RPMAvg != 1180.5 {
		t.Errorf("RPMAvg: got %v, want 1180.5", snap.Speed.RPMAvg)
	}
	if snap.Window != 7 {
		t.Errorf("Window: got %d, want 7", snap.Window)
	}
	if snap.Counts.Accepted != 42 {
		t.Errorf("Counts.Accepted: got %d, want 42", snap.Counts.Accepted)
	}
	if snap.Counts.Ignored != 3 {
		t.Errorf("Counts.Ignored: got %d, want 3", snap.Counts.Ignored)
	}
	if snap.Counts.Stalls != 1 {
		t.Errorf("Counts.Stalls: got %d, want 1", snap.Counts.Stalls)
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
		t.Fatal("expected Network to be set")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q", snap.Network.IP)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(Speed{RPM: 100}, 1, Counts{})

	snap := tr.Snapshot()
	tr.Update(Speed{RPM: 200}, 1, Counts{})

	if snap.Speed.RPM != 100 {
		t.Errorf("snapshot must not see later updates, got %v", snap.Speed.RPM)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Update(Speed{RPM: float64(j)}, 1, Counts{Accepted: uint64(j)})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{
		PollUs:         1000,
		PulsesIn:       3,
		PulsesOut:      4,
		DutyPercent:    50,
		StallTimeoutMs: 500,
		Broker:         "tcp://localhost:1883",
		HTTPPort:       ":80",
	})
	tr.Update(Speed{
		Stalled:      false,
		RPM:          1200.123,
		RPMAvg:       1180.456,
		FrequencyHz:  60.01,
		OutputPeriod: 7500 * time.Microsecond,
	}, 9, Counts{Accepted: 10})

	data := FormatJSON(tr.Snapshot())

	var sj StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if sj.Status.State != "MOVING" {
		t.Errorf("State: got %q, want MOVING", sj.Status.State)
	}
	if sj.Status.RPM != 1200.12 {
		t.Errorf("RPM should round to 2 decimals: got %v", sj.Status.RPM)
	}
	if sj.Status.OutputPeriodUs != 7500 {
		t.Errorf("OutputPeriodUs: got %d, want 7500", sj.Status.OutputPeriodUs)
	}
	if sj.Status.Window != 9 {
		t.Errorf("Window: got %d, want 9", sj.Status.Window)
	}
	if sj.Status.Config.PulsesIn != 3 || sj.Status.Config.PulsesOut != 4 {
		t.Errorf("Config ratio: got %d:%d, want 3:4", sj.Status.Config.PulsesIn, sj.Status.Config.PulsesOut)
	}
	if sj.Status.Event != "" {
		t.Errorf("web JSON must not carry an event, got %q", sj.Status.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Broker: "tcp://localhost:1883"})

	data := FormatStatusEvent(tr.Snapshot(), "STARTUP", "")

	var sj StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Event != "STARTUP" {
		t.Errorf("Event: got %q, want STARTUP", sj.Status.Event)
	}
	if sj.Status.State != "STOPPED" {
		t.Errorf("State before any motion: got %q, want STOPPED", sj.Status.State)
	}

	// Event payloads are single-line (no indentation) for MQTT.
	if strings.Contains(string(data), "\n") {
		t.Error("status event payload should be compact JSON")
	}
}

func TestUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}
