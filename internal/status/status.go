// Package status provides a thread-safe status tracker for the wheel-pulse daemon.
// It is read by HTTP handlers and serialized into MQTT system events.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollUs         int64
	PulsesIn       int
	PulsesOut      int
	DutyPercent    int
	StallTimeoutMs int64
	Broker         string
	HTTPPort       string
}

// Speed is the latest set of derived motion metrics.
type Speed struct {
	Stalled      bool
	RPM          float64
	RPMAvg       float64
	FrequencyHz  float64
	SpeedKMH     float64
	OutputPeriod time.Duration
}

// Counts tracks input edge statistics since startup.
type Counts struct {
	Accepted uint64 // edges accepted by the capture handler
	Ignored  uint64 // edges rejected as contact bounce
	Stalls   int    // debounced stall transitions
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Speed         Speed
	Window        int // current adaptive averaging window
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Speed:     Speed{Stalled: true},
		},
	}
}

// Update sets the motion metrics, adaptive window, and edge counts.
// Called from the run loop on every tick.
func (t *Tracker) Update(speed Speed, window int, counts Counts) {
	t.mu.Lock()
	t.snap.Speed = speed
	t.snap.Window = window
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
