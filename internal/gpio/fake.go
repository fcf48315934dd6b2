package gpio

import "time"

// FakeWatcher is a test double that lets tests inject edges directly.
type FakeWatcher struct {
	handler EdgeHandler

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWatcher creates a FakeWatcher delivering edges to handler.
func NewFakeWatcher(handler EdgeHandler) *FakeWatcher {
	return &FakeWatcher{handler: handler}
}

// Edge simulates a falling edge at the given time.
func (f *FakeWatcher) Edge(t time.Time) {
	f.handler(t)
}

// EdgeTrain simulates n edges starting at start, spaced by period.
// Returns the time of the last edge.
func (f *FakeWatcher) EdgeTrain(start time.Time, period time.Duration, n int) time.Time {
	t := start
	for i := 0; i < n; i++ {
		f.handler(t)
		if i < n-1 {
			t = t.Add(period)
		}
	}
	return t
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.Closed = true
	return nil
}

// Transition records a single output level change.
type Transition struct {
	Time time.Time
	High bool
}

// FakeDriver records output transitions for test assertions. Tests that
// need timing set Now before each Set call (the main loop's tick time).
type FakeDriver struct {
	// Now is the timestamp recorded with the next transition.
	Now time.Time

	// Level is the current output level.
	Level bool

	// Transitions contains every level change, in order.
	Transitions []Transition

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver with the output low.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// Set records the level change (no-op if the level is unchanged).
func (f *FakeDriver) Set(high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if high == f.Level {
		return nil
	}
	f.Level = high
	f.Transitions = append(f.Transitions, Transition{Time: f.Now, High: high})
	return nil
}

// Close marks the driver as closed and drives the output low.
func (f *FakeDriver) Close() error {
	f.Level = false
	f.Closed = true
	return nil
}

// HighSpans returns the duration of each completed high phase, in order.
func (f *FakeDriver) HighSpans() []time.Duration {
	var spans []time.Duration
	var rise time.Time
	up := false
	for _, tr := range f.Transitions {
		if tr.High {
			rise = tr.Time
			up = true
		} else if up {
			spans = append(spans, tr.Time.Sub(rise))
			up = false
		}
	}
	return spans
}

// RisingEdges returns the timestamps of all rising edges.
func (f *FakeDriver) RisingEdges() []time.Time {
	var edges []time.Time
	for _, tr := range f.Transitions {
		if tr.High {
			edges = append(edges, tr.Time)
		}
	}
	return edges
}
