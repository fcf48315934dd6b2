package pulse

import "time"

// Output is the result of one synthesizer tick: the desired output pin
// level plus the metrics derived along the way.
type Output struct {
	// High is the level the output pin should be driven to.
	High bool
	// Stalled reports whether the input is considered stopped.
	Stalled bool
	// FrequencyHz is the input pulse frequency (zero while stalled).
	FrequencyHz float64
	// RPM is the instantaneous wheel speed derived from FrequencyHz.
	RPM float64
	// RPMAvg is RPM smoothed over the second-stage window.
	RPMAvg float64
	// OutputPeriod is the synthesized pulse period (zero while the
	// output is held low).
	OutputPeriod time.Duration
}

// Synth converts averaged input periods into an output pulse train at the
// configured pulses-per-revolution ratio. It is pure state-machine logic
// driven by Tick; it never sleeps or reads the clock itself.
//
// Owned entirely by the main cycle — no synchronization needed.
type Synth struct {
	cfg   Config
	ratio float64 // pulsesIn / pulsesOut

	// Second-stage smoothing: fixed-length ring of RPM samples with an
	// incrementally maintained sum, O(1) per tick.
	rpmRing []float64
	rpmHead int
	rpmFill int
	rpmSum  float64

	stalled  bool
	lastEdge time.Time // last output rising edge; zero while held low
	high     bool
}

// NewSynth creates a Synth. The config must already be validated
// (PulsesOut > 0 in particular — the ratio is computed here).
func NewSynth(cfg Config) *Synth {
	return &Synth{
		cfg:     cfg,
		ratio:   float64(cfg.PulsesIn) / float64(cfg.PulsesOut),
		rpmRing: make([]float64, cfg.SmoothingWindow),
	}
}

// Tick advances the synthesizer to the given time using the latest capture
// reading and returns the desired output state. Call once per poll
// interval; the poll interval bounds the output timing resolution.
func (s *Synth) Tick(now time.Time, r Reading) Output {
	var out Output

	// Clock-overflow clamp: a last-pulse timestamp in the future would
	// otherwise produce a nonsensical negative elapsed time.
	base := r.LastPulse
	if base.After(now) {
		base = now
	}
	elapsed := now.Sub(base)

	// While stalled the effective timeout is tightened by the margin, so
	// a pulse train hovering at the boundary cannot flap the state.
	threshold := s.cfg.StallTimeout
	if s.stalled {
		threshold -= s.cfg.StallMargin
	}
	s.stalled = r.LastPulse.IsZero() || elapsed > threshold || r.PeriodAvg > threshold
	out.Stalled = s.stalled

	if !s.stalled && r.PeriodAvg > 0 {
		out.FrequencyHz = float64(time.Second) / float64(r.PeriodAvg)
		out.RPM = out.FrequencyHz * 60 / float64(s.cfg.PulsesIn)
	}
	out.RPMAvg = s.smooth(out.RPM)

	period := time.Duration(float64(r.PeriodAvg) * s.ratio)
	if s.stalled || period <= 0 || period > s.cfg.MaxOutputPeriod {
		// Too slow to be valid motion: hold low. Indistinguishable
		// from a stall on the output side, by contract.
		s.high = false
		s.lastEdge = time.Time{}
		return out
	}
	out.OutputPeriod = period

	highPhase := period * time.Duration(s.cfg.DutyPercent) / 100
	if s.lastEdge.IsZero() || now.Sub(s.lastEdge) >= period {
		// Rising edge; also restarts the free-running period timer.
		s.lastEdge = now
		s.high = true
	} else if now.Sub(s.lastEdge) >= highPhase {
		s.high = false
	}
	out.High = s.high
	return out
}

func (s *Synth) smooth(rpm float64) float64 {
	evicted := 0.0
	if s.rpmFill == len(s.rpmRing) {
		evicted = s.rpmRing[s.rpmHead]
	} else {
		s.rpmFill++
	}
	s.rpmRing[s.rpmHead] = rpm
	s.rpmSum = s.rpmSum - evicted + rpm
	s.rpmHead = (s.rpmHead + 1) % len(s.rpmRing)
	return s.rpmSum / float64(s.rpmFill)
}

// SpeedKMH derives a road speed for display from a smoothed RPM value and
// the configured wheel geometry. Never used in the period math.
func (s *Synth) SpeedKMH(rpmAvg float64) float64 {
	return rpmAvg * s.cfg.WheelCircumferenceMM() * 60 / 1e6
}
