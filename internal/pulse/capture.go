// Package pulse contains the pure converter core: pulse-period capture with
// adaptive averaging, and output pulse synthesis with stall detection.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package pulse

import (
	"sync/atomic"
	"time"
)

// Reading is an immutable snapshot of the capture state, published by the
// edge handler and consumed by the synthesizer. Fields are committed
// together so the reader never sees a half-updated average.
type Reading struct {
	// LastPulse is the time of the most recent accepted input edge.
	// Zero until the first edge arrives.
	LastPulse time.Time
	// Period is the most recent single inter-pulse interval.
	Period time.Duration
	// PeriodAvg is the period averaged over the adaptive window. Before
	// any average completes it holds a no-signal sentinel larger than
	// the stall timeout.
	PeriodAvg time.Duration
}

// Capture accumulates inter-pulse periods from the input edge handler and
// publishes averaged readings.
//
// Access discipline: Pulse is called only from the GPIO event goroutine
// (single writer); Snapshot may be called from any goroutine (the main
// cycle is the only reader in practice). The atomic pointer is the sole
// synchronization between them.
type Capture struct {
	cfg Config

	lastPulse  time.Time
	pulseCount int
	periodSum  time.Duration
	window     int // readings per average, adaptively resized

	accepted uint64 // edges accepted
	ignored  uint64 // edges rejected by the glitch gate

	reading atomic.Pointer[Reading]
}

// NewCapture creates a Capture. The config must already be validated.
func NewCapture(cfg Config) *Capture {
	c := &Capture{
		cfg:    cfg,
		window: MinWindow,
	}
	c.reading.Store(&Reading{PeriodAvg: noSignalPeriod(cfg)})
	return c
}

// noSignalPeriod is the sentinel average held before any pulse arrives.
// It must exceed the stall timeout so the synthesizer reports zero speed.
func noSignalPeriod(cfg Config) time.Duration {
	return 2 * cfg.StallTimeout
}

// Pulse records one falling edge at the given time. It is the hot path of
// the daemon and does no allocation beyond the published snapshot.
func (c *Capture) Pulse(now time.Time) {
	if c.lastPulse.IsZero() {
		// First edge ever: no prior timestamp to measure against.
		// Discard it so a spurious startup interval never reaches
		// the average.
		c.lastPulse = now
		return
	}

	period := now.Sub(c.lastPulse)
	if period < c.cfg.MinPeriod {
		// Contact bounce. Do not advance lastPulse: the bounce edge
		// merges into the next real period.
		c.ignored++
		return
	}
	c.lastPulse = now
	c.accepted++

	prev := c.reading.Load()
	avg := prev.PeriodAvg

	if c.pulseCount < c.window {
		c.pulseCount++
		c.periodSum += period
	} else {
		avg = c.periodSum / time.Duration(c.window)
		c.pulseCount = 1
		c.periodSum = period
		c.window = remapWindow(period, c.cfg)
	}

	c.reading.Store(&Reading{
		LastPulse: now,
		Period:    period,
		PeriodAvg: avg,
	})
}

// Snapshot returns the latest fully-committed reading.
func (c *Capture) Snapshot() Reading {
	return *c.reading.Load()
}

// Window returns the current adaptive window length.
func (c *Capture) Window() int {
	return c.window
}

// Counts returns the number of accepted and glitch-rejected edges.
func (c *Capture) Counts() (accepted, ignored uint64) {
	return c.accepted, c.ignored
}

// remapWindow maps a single period linearly from the fast reference (window
// = MaxWindow, maximum smoothing) to the slow reference (window = MinWindow,
// fastest response), clamped to [MinWindow, MaxWindow]. Faster pulses get a
// larger window: at speed there are plenty of samples to spend on stability,
// while at low speed each pulse is precious for responsiveness.
func remapWindow(period time.Duration, cfg Config) int {
	span := cfg.SlowPeriodRef - cfg.FastPeriodRef
	pos := period - cfg.FastPeriodRef
	w := MaxWindow - int(int64(pos)*int64(MaxWindow-MinWindow)/int64(span))
	if w < MinWindow {
		return MinWindow
	}
	if w > MaxWindow {
		return MaxWindow
	}
	return w
}
