// Package led drives the session status LED through a sysfs brightness file.
package led

import (
	"fmt"
	"os"
	"sync"
)

// LED is a single on/off indicator.
type LED struct {
	path      string
	activeLow bool

	mu sync.Mutex
	on bool
}

// New returns an LED writing to path, e.g. /sys/class/leds/led0/brightness.
// With activeLow set, "on" writes 0 and "off" writes 1.
func New(path string, activeLow bool) *LED {
	return &LED{path: path, activeLow: activeLow}
}

// Set switches the LED on or off.
func (l *LED) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	level := on != l.activeLow
	value := "0"
	if level {
		value = "1"
	}

	if err := os.WriteFile(l.path, []byte(value), 0); err != nil {
		return fmt.Errorf("led: writing %s: %w", l.path, err)
	}
	l.on = on
	return nil
}

// On reports the last state successfully written.
func (l *LED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}
