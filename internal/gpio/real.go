//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches the sensor line on actual hardware using Linux GPIO
// character device edge events.
type RealWatcher struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealWatcher requests the input pin with a pull-up (open-collector hall
// sensors idle high) and registers handler for falling edges. The handler
// runs on the gpiocdev event goroutine.
func NewRealWatcher(pin int, handler EdgeHandler) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			// Kernel event timestamps are durations since boot; the
			// converter core works in wall-clock time, so stamp here.
			// The jitter this adds is well below the poll interval.
			handler(time.Now())
		}))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor pin %d: %w", pin, err)
	}

	return &RealWatcher{chip: chip, line: line}, nil
}

// Close releases the input line.
func (w *RealWatcher) Close() error {
	var errs []error
	if w.line != nil {
		if err := w.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pin: %w", err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// ReadLevel returns the current raw level of an input pin. Used by the
// one-shot --print-state mode.
func ReadLevel(pin int) (int, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return 0, fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return 0, fmt.Errorf("request pin %d: %w", pin, err)
	}
	defer line.Close()

	return line.Value()
}

// RealDriver drives the output pulse line and an optional status LED.
type RealDriver struct {
	chip *gpiocdev.Chip
	out  *gpiocdev.Line
	led  *gpiocdev.Line
}

// NewRealDriver requests the output pin (and the LED pin if ledPin >= 0)
// as outputs, initially low.
func NewRealDriver(outPin, ledPin int) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	out, err := chip.RequestLine(outPin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", outPin, err)
	}

	var led *gpiocdev.Line
	if ledPin >= 0 {
		led, err = chip.RequestLine(ledPin, gpiocdev.AsOutput(0))
		if err != nil {
			out.Close()
			chip.Close()
			return nil, fmt.Errorf("request led pin %d: %w", ledPin, err)
		}
	}

	return &RealDriver{chip: chip, out: out, led: led}, nil
}

// Set drives the output line (and the LED, if configured) high or low.
func (d *RealDriver) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := d.out.SetValue(v); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	if d.led != nil {
		if err := d.led.SetValue(v); err != nil {
			return fmt.Errorf("set led: %w", err)
		}
	}
	return nil
}

// Close drives the lines low and releases GPIO resources. The output is
// reconfigured to input with pull-down (Pi boot default) so downstream
// hardware sees a clean idle state across restarts.
func (d *RealDriver) Close() error {
	var errs []error
	for _, l := range []*gpiocdev.Line{d.out, d.led} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive low: %w", err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure: %w", err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
