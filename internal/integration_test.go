package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/wheel-pulse/internal/gpio"
	"github.com/sweeney/wheel-pulse/internal/mqtt"
	"github.com/sweeney/wheel-pulse/internal/pulse"
)

func testConfig() pulse.Config {
	cfg := pulse.DefaultConfig()
	cfg.PulsesIn = 3
	cfg.PulsesOut = 4
	cfg.DutyPercent = 50
	cfg.StallTimeout = 100 * time.Millisecond
	cfg.StallMargin = 10 * time.Millisecond
	return cfg
}

// TestIntegrationSteadyState drives the full pipeline with fakes: edges into
// the capture, ticks through the synthesizer, levels into the fake driver.
// Input pulses at 10,000µs with a 3:4 ratio must come out as a 7,500µs
// square wave at 50% duty.
func TestIntegrationSteadyState(t *testing.T) {
	cfg := testConfig()
	capture := pulse.NewCapture(cfg)
	synth := pulse.NewSynth(cfg)
	driver := gpio.NewFakeDriver()
	watcher := gpio.NewFakeWatcher(capture.Pulse)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	const inPeriod = 10000 * time.Microsecond
	const tick = 250 * time.Microsecond

	// Interleave edges and ticks on one timeline, as the daemon would
	// see them: an edge every 10ms, a tick every 250µs.
	nextEdge := start
	for d := time.Duration(0); d <= 200*time.Millisecond; d += tick {
		now := start.Add(d)
		for !nextEdge.After(now) {
			watcher.Edge(nextEdge)
			nextEdge = nextEdge.Add(inPeriod)
		}
		out := synth.Tick(now, capture.Snapshot())
		driver.Now = now
		if err := driver.Set(out.High); err != nil {
			t.Fatalf("driver set: %v", err)
		}
	}

	// Discard the first few spans while the averaging warms up; steady
	// state must be exact.
	spans := driver.HighSpans()
	if len(spans) < 10 {
		t.Fatalf("expected a sustained pulse train, got %d high spans", len(spans))
	}
	for i, span := range spans[5:] {
		if span != 3750*time.Microsecond {
			t.Errorf("high span %d: got %v, want 3750µs", i+5, span)
		}
	}

	edges := driver.RisingEdges()
	for i := 6; i < len(edges); i++ {
		if got := edges[i].Sub(edges[i-1]); got != 7500*time.Microsecond {
			t.Errorf("output period %d: got %v, want 7500µs", i, got)
		}
	}
}

// TestIntegrationStall runs the pipeline into a stall and back out,
// asserting the motion events a broker would see.
func TestIntegrationStall(t *testing.T) {
	cfg := testConfig()
	capture := pulse.NewCapture(cfg)
	synth := pulse.NewSynth(cfg)
	driver := gpio.NewFakeDriver()
	watcher := gpio.NewFakeWatcher(capture.Pulse)
	pub := mqtt.NewFakePublisher()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	const tick = time.Millisecond

	// Phase 1: 50ms of 10ms pulses. Phase 2: 300ms of silence.
	// Phase 3: pulses resume for 100ms.
	edgeAt := func(d time.Duration) bool {
		if d <= 50*time.Millisecond {
			return d%(10*time.Millisecond) == 0
		}
		if d >= 350*time.Millisecond {
			return (d-350*time.Millisecond)%(10*time.Millisecond) == 0
		}
		return false
	}

	stalled := true
	for d := time.Duration(0); d <= 450*time.Millisecond; d += tick {
		now := start.Add(d)
		if edgeAt(d) {
			watcher.Edge(now)
		}
		out := synth.Tick(now, capture.Snapshot())
		driver.Now = now
		driver.Set(out.High)

		if out.Stalled != stalled {
			stalled = out.Stalled
			typ := mqtt.EventMotionStart
			if stalled {
				typ = mqtt.EventMotionStop
			}
			if err := pub.Publish(mqtt.Event{Timestamp: now, Type: typ, RPM: out.RPMAvg}); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}

		// While stalled the output must be held low.
		if out.Stalled && driver.Level {
			t.Fatalf("at %v: output high during stall", d)
		}
	}

	if len(pub.Events) != 3 {
		t.Fatalf("expected START/STOP/START, got %d events", len(pub.Events))
	}
	if pub.Events[0].Type != mqtt.EventMotionStart {
		t.Errorf("event 0: got %s, want MOTION_START", pub.Events[0].Type)
	}
	if pub.Events[1].Type != mqtt.EventMotionStop {
		t.Errorf("event 1: got %s, want MOTION_STOP", pub.Events[1].Type)
	}
	if pub.Events[2].Type != mqtt.EventMotionStart {
		t.Errorf("event 2: got %s, want MOTION_START", pub.Events[2].Type)
	}

	// The stop event must have arrived within one tick of the timeout.
	stopAt := pub.Events[1].Timestamp.Sub(start)
	want := 50*time.Millisecond + cfg.StallTimeout
	if stopAt < want || stopAt > want+2*tick {
		t.Errorf("MOTION_STOP at %v, want within one tick after %v", stopAt, want)
	}

	// Payloads parse as the documented JSON shape.
	var parsed mqtt.Payload
	if err := json.Unmarshal(pub.Payloads[0], &parsed); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if parsed.Wheel.Event != "MOTION_START" {
		t.Errorf("payload event: got %s", parsed.Wheel.Event)
	}
}

// TestIntegrationSlowCrawl verifies the validity gate: pulses slow enough
// that the output period exceeds its bound keep the output low even though
// the input is not stalled.
func TestIntegrationSlowCrawl(t *testing.T) {
	cfg := testConfig()
	cfg.StallTimeout = 2 * time.Second
	cfg.StallMargin = 100 * time.Millisecond
	cfg.MaxOutputPeriod = 200 * time.Millisecond
	cfg.SlowPeriodRef = 500 * time.Millisecond
	capture := pulse.NewCapture(cfg)
	synth := pulse.NewSynth(cfg)
	driver := gpio.NewFakeDriver()
	watcher := gpio.NewFakeWatcher(capture.Pulse)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// 400ms input period: implied output period 300ms > 200ms bound.
	const inPeriod = 400 * time.Millisecond
	nextEdge := start
	const tick = 10 * time.Millisecond
	for d := time.Duration(0); d <= 4*time.Second; d += tick {
		now := start.Add(d)
		for !nextEdge.After(now) {
			watcher.Edge(nextEdge)
			nextEdge = nextEdge.Add(inPeriod)
		}
		out := synth.Tick(now, capture.Snapshot())
		driver.Now = now
		driver.Set(out.High)
	}

	if len(driver.Transitions) != 0 {
		t.Errorf("expected output held low for over-limit periods, got %d transitions", len(driver.Transitions))
	}
}
