// Command wheel-pulse converts a wheel-speed sensor pulse train on one GPIO
// pin into a rescaled pulse train on another, and publishes motion telemetry
// to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/wheel-pulse/internal/gpio"
	"github.com/sweeney/wheel-pulse/internal/mqtt"
	"github.com/sweeney/wheel-pulse/internal/pulse"
	"github.com/sweeney/wheel-pulse/internal/status"
	"github.com/sweeney/wheel-pulse/internal/web"
)

func main() {
	poll := flag.Duration("poll", time.Millisecond, "Output synthesis tick interval")
	pulsesIn := flag.Int("pulses-in", pulse.DefaultPulsesIn, "Sensor pulses per wheel revolution")
	pulsesOut := flag.Int("pulses-out", pulse.DefaultPulsesOut, "Output pulses per wheel revolution")
	duty := flag.Int("duty", pulse.DefaultDutyPercent, "Output duty cycle percent")
	stallTimeout := flag.Duration("stall-timeout", pulse.DefaultStallTimeout, "Longest pulse gap still considered motion")
	stallMargin := flag.Duration("stall-margin", pulse.DefaultStallTimeout/10, "Debounce margin applied while stalled")
	window := flag.Int("window", pulse.DefaultSmoothingWindow, "Second-stage RPM smoothing window length")
	minPeriod := flag.Duration("min-period", pulse.DefaultMinPeriod, "Shortest period accepted (bounce filter)")
	maxOutPeriod := flag.Duration("max-out-period", pulse.DefaultMaxOutputPeriod, "Longest output period still driven")
	fastRef := flag.Duration("fast-ref", pulse.DefaultFastPeriodRef, "Adaptive window fast-period reference")
	slowRef := flag.Duration("slow-ref", pulse.DefaultSlowPeriodRef, "Adaptive window slow-period reference")
	wheelDiameter := flag.Int("wheel-diameter-mm", pulse.DefaultWheelDiameterMM, "Wheel diameter in mm (display speed only)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	pinIn := flag.Int("pin-in", gpio.DefaultPinIn, "BCM pin number for the wheel sensor input")
	pinOut := flag.Int("pin-out", gpio.DefaultPinOut, "BCM pin number for the pulse output")
	pinLED := flag.Int("pin-led", gpio.DefaultPinLED, "BCM pin number for the status LED (-1 to disable)")
	printState := flag.Bool("print-state", false, "Print current sensor pin level and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")

	flag.Parse()

	cfg := pulse.Config{
		PulsesIn:        *pulsesIn,
		PulsesOut:       *pulsesOut,
		DutyPercent:     *duty,
		StallTimeout:    *stallTimeout,
		StallMargin:     *stallMargin,
		SmoothingWindow: *window,
		MinPeriod:       *minPeriod,
		MaxOutputPeriod: *maxOutPeriod,
		FastPeriodRef:   *fastRef,
		SlowPeriodRef:   *slowRef,
		WheelDiameterMM: *wheelDiameter,
	}

	if err := run(cfg, *poll, *broker, *heartbeat, *pinIn, *pinOut, *pinLED, *printState, *httpAddr); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg pulse.Config, poll time.Duration, broker string, heartbeat time.Duration, pinIn, pinOut, pinLED int, printState bool, httpAddr string) error {
	// Refuse to start on a config that would mean undefined arithmetic later.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if poll <= 0 {
		return fmt.Errorf("config: poll interval must be > 0, got %v", poll)
	}

	// Print state mode
	if printState {
		level, err := gpio.ReadLevel(pinIn)
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("sensor pin %d: %d\n", pinIn, level)
		return nil
	}

	// The capture handler runs on the gpiocdev event goroutine; the run
	// loop reads its snapshots. Single writer, single reader.
	capture := pulse.NewCapture(cfg)
	watcher, err := gpio.NewRealWatcher(pinIn, capture.Pulse)
	if err != nil {
		return fmt.Errorf("init sensor input: %w", err)
	}
	defer watcher.Close()

	driver, err := gpio.NewRealDriver(pinOut, pinLED)
	if err != nil {
		return fmt.Errorf("init pulse output: %w", err)
	}
	defer driver.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollUs:         poll.Microseconds(),
		PulsesIn:       cfg.PulsesIn,
		PulsesOut:      cfg.PulsesOut,
		DutyPercent:    cfg.DutyPercent,
		StallTimeoutMs: cfg.StallTimeout.Milliseconds(),
		Broker:         broker,
		HTTPPort:       httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: poll=%v ratio=%d:%d duty=%d%% stall=%v broker=%s",
		poll, cfg.PulsesIn, cfg.PulsesOut, cfg.DutyPercent, cfg.StallTimeout, broker)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	synth := pulse.NewSynth(cfg)
	return runLoop(capture, synth, driver, publisher, publisher, tracker, heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(capture *pulse.Capture, synth *pulse.Synth, driver gpio.Driver, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	lastHeartbeat := startTime
	stalled := true // no motion observed yet
	level := false
	stallCount := 0

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			// Leave the output idle for whatever reads it next.
			if err := driver.Set(false); err != nil {
				log.Printf("drive output low: %v", err)
			}
			return nil

		case <-tick:
			t := now()
			out := synth.Tick(t, capture.Snapshot())

			if out.High != level {
				level = out.High
				if err := driver.Set(level); err != nil {
					log.Printf("gpio write error: %v", err)
					// Don't crash on a write failure
				}
			}

			if out.Stalled != stalled {
				stalled = out.Stalled
				event := mqtt.Event{
					Timestamp:    t,
					Type:         mqtt.EventMotionStart,
					RPM:          out.RPMAvg,
					FrequencyHz:  out.FrequencyHz,
					OutputPeriod: out.OutputPeriod,
					SpeedKMH:     synth.SpeedKMH(out.RPMAvg),
				}
				if stalled {
					event.Type = mqtt.EventMotionStop
					stallCount++
				}
				log.Printf("event: %s (rpm=%.1f freq=%.1fHz)", event.Type, event.RPM, event.FrequencyHz)
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				accepted, ignored := capture.Counts()
				tracker.Update(status.Speed{
					Stalled:      out.Stalled,
					RPM:          out.RPM,
					RPMAvg:       out.RPMAvg,
					FrequencyHz:  out.FrequencyHz,
					SpeedKMH:     synth.SpeedKMH(out.RPMAvg),
					OutputPeriod: out.OutputPeriod,
				}, capture.Window(), status.Counts{
					Accepted: accepted,
					Ignored:  ignored,
					Stalls:   stallCount,
				})
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			// Check for heartbeat
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				log.Printf("heartbeat: uptime=%v rpm=%.1f stalled=%v", t.Sub(startTime), out.RPMAvg, out.Stalled)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
