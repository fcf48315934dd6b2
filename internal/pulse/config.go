package pulse

import (
	"fmt"
	"time"
)

// Default configuration values. Pulse ratios match a 3-pulse wheel sensor
// feeding a 4-pulse-per-revolution speedometer head.
const (
	DefaultPulsesIn        = 3
	DefaultPulsesOut       = 4
	DefaultDutyPercent     = 50
	DefaultStallTimeout    = 500 * time.Millisecond
	DefaultSmoothingWindow = 2
	DefaultMinPeriod       = 500 * time.Microsecond
	DefaultMaxOutputPeriod = 400 * time.Millisecond
	DefaultFastPeriodRef   = 2 * time.Millisecond
	DefaultSlowPeriodRef   = 50 * time.Millisecond
	DefaultWheelDiameterMM = 559 // 26" wheel
)

// Adaptive window bounds. The remap in Capture clamps to this range.
const (
	MinWindow = 1
	MaxWindow = 10
)

// Config holds all tuning parameters for the converter core.
// It is immutable after Validate; misconfiguration is a startup error,
// never a runtime one.
type Config struct {
	// PulsesIn is the number of sensor pulses per wheel revolution.
	PulsesIn int
	// PulsesOut is the number of output pulses per wheel revolution.
	PulsesOut int
	// DutyPercent is the output high-phase fraction, in percent.
	DutyPercent int
	// StallTimeout is the longest gap between input pulses still
	// considered motion.
	StallTimeout time.Duration
	// StallMargin tightens the effective timeout while stalled, so the
	// stalled/moving decision does not oscillate near the boundary.
	StallMargin time.Duration
	// SmoothingWindow is the length of the second-stage RPM moving average.
	SmoothingWindow int
	// MinPeriod rejects implausibly short periods as contact bounce.
	MinPeriod time.Duration
	// MaxOutputPeriod is the longest output period still driven; anything
	// slower is reported as zero speed (output held low).
	MaxOutputPeriod time.Duration
	// FastPeriodRef and SlowPeriodRef anchor the adaptive-window remap:
	// periods at or below FastPeriodRef average MaxWindow readings,
	// periods at or above SlowPeriodRef average MinWindow.
	FastPeriodRef time.Duration
	SlowPeriodRef time.Duration
	// WheelDiameterMM is used only to derive a display road speed; it
	// never enters the period math.
	WheelDiameterMM int
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		PulsesIn:        DefaultPulsesIn,
		PulsesOut:       DefaultPulsesOut,
		DutyPercent:     DefaultDutyPercent,
		StallTimeout:    DefaultStallTimeout,
		StallMargin:     DefaultStallTimeout / 10,
		SmoothingWindow: DefaultSmoothingWindow,
		MinPeriod:       DefaultMinPeriod,
		MaxOutputPeriod: DefaultMaxOutputPeriod,
		FastPeriodRef:   DefaultFastPeriodRef,
		SlowPeriodRef:   DefaultSlowPeriodRef,
		WheelDiameterMM: DefaultWheelDiameterMM,
	}
}

// Validate checks the configuration for values that would cause undefined
// arithmetic during steady-state operation. The daemon must refuse to start
// on any error returned here.
func (c Config) Validate() error {
	if c.PulsesIn <= 0 {
		return fmt.Errorf("pulses-in must be > 0, got %d", c.PulsesIn)
	}
	if c.PulsesOut <= 0 {
		return fmt.Errorf("pulses-out must be > 0, got %d", c.PulsesOut)
	}
	if c.DutyPercent < 1 || c.DutyPercent > 99 {
		return fmt.Errorf("duty percent must be in [1,99], got %d", c.DutyPercent)
	}
	if c.StallTimeout <= 0 {
		return fmt.Errorf("stall timeout must be > 0, got %v", c.StallTimeout)
	}
	if c.StallMargin < 0 || c.StallMargin >= c.StallTimeout {
		return fmt.Errorf("stall margin must be in [0, stall timeout), got %v", c.StallMargin)
	}
	if c.SmoothingWindow <= 0 {
		return fmt.Errorf("smoothing window must be > 0, got %d", c.SmoothingWindow)
	}
	if c.MinPeriod < 0 {
		return fmt.Errorf("min period must be >= 0, got %v", c.MinPeriod)
	}
	if c.MaxOutputPeriod <= 0 {
		return fmt.Errorf("max output period must be > 0, got %v", c.MaxOutputPeriod)
	}
	if c.FastPeriodRef <= 0 || c.SlowPeriodRef <= c.FastPeriodRef {
		// The remap direction (faster pulses -> larger window) is a
		// deliberate tradeoff; reversed references would silently
		// invert it.
		return fmt.Errorf("remap references must satisfy 0 < fast (%v) < slow (%v)",
			c.FastPeriodRef, c.SlowPeriodRef)
	}
	if c.WheelDiameterMM <= 0 {
		return fmt.Errorf("wheel diameter must be > 0, got %d", c.WheelDiameterMM)
	}
	return nil
}

// WheelCircumferenceMM returns the wheel circumference derived from the
// configured diameter, in millimetres.
func (c Config) WheelCircumferenceMM() float64 {
	return float64(c.WheelDiameterMM) * 3.14159265358979
}
