package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"

	"github.com/nerrad567/gray-logic-blegw/internal/device"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/config"
)

// HCI LE scan parameters. Interval and window are in 0.625 ms units;
// equal values keep the radio listening continuously.
const (
	scanTypePassive = 0x00
	scanTypeActive  = 0x01
	scanInterval    = 0x0060
	scanWindow      = 0x0060
)

// Radio is the part of a BLE device the scanner uses.
// *linux.Device satisfies it.
type Radio interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Stop() error
}

// Logger defines the logging interface used by the Scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RadioFactory opens the HCI device. It is a variable so tests can
// substitute a fake radio.
var RadioFactory = func(cfg config.BluetoothConfig) (Radio, error) {
	scanType := uint8(scanTypePassive)
	if cfg.ActiveScan {
		scanType = scanTypeActive
	}

	dev, err := linux.NewDevice(
		ble.OptDeviceID(cfg.DeviceID),
		ble.OptScanParams(cmd.LESetScanParameters{
			LEScanType:     scanType,
			LEScanInterval: scanInterval,
			LEScanWindow:   scanWindow,
		}),
	)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// Scanner runs scan windows on a Radio.
type Scanner struct {
	radio  Radio
	logger Logger

	observations chan device.Observation
	done         chan error

	scanning atomic.Bool
	seen     atomic.Uint64
	dropped  atomic.Uint64
}

// Open opens the configured HCI device and returns a Scanner whose
// observation channel holds up to buffer reports.
func Open(cfg config.BluetoothConfig, buffer int) (*Scanner, error) {
	radio, err := RadioFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: hci%d: %w", ErrDeviceUnavailable, cfg.DeviceID, err)
	}
	return New(radio, buffer), nil
}

// New creates a Scanner on an already opened radio.
func New(radio Radio, buffer int) *Scanner {
	if buffer < 1 {
		buffer = 1
	}
	return &Scanner{
		radio:        radio,
		logger:       noopLogger{},
		observations: make(chan device.Observation, buffer),
		done:         make(chan error, 1),
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Observations returns the channel advertisement reports are delivered on.
func (s *Scanner) Observations() <-chan device.Observation {
	return s.observations
}

// Done returns the channel that receives one value when a scan window
// closes: nil for a normal end, or the radio error.
func (s *Scanner) Done() <-chan error {
	return s.done
}

// Scanning reports whether a scan window is open.
func (s *Scanner) Scanning() bool {
	return s.scanning.Load()
}

// Seen returns the number of advertisement reports received.
func (s *Scanner) Seen() uint64 {
	return s.seen.Load()
}

// Dropped returns the number of reports discarded on a full buffer.
func (s *Scanner) Dropped() uint64 {
	return s.dropped.Load()
}

// Start opens a scan window of the given duration and returns at once.
//
// Duplicate reports are kept so payload changes from an already-seen
// transmitter are observed within the same window.
//
// Returns:
//   - error: ErrScanInProgress if the previous window is still open,
//     ErrInvalidDuration for a non-positive duration
func (s *Scanner) Start(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ErrInvalidDuration
	}
	if !s.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}

	go s.run(ctx, duration)
	return nil
}

func (s *Scanner) run(ctx context.Context, duration time.Duration) {
	scanCtx, cancel := context.WithTimeout(ctx, duration)
	err := s.radio.Scan(scanCtx, true, s.handleAdvertisement)
	cancel()

	// The window closing is how every scan ends.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		s.logger.Warn("scan ended with error", "error", err)
	}

	s.scanning.Store(false)
	select {
	case s.done <- err:
	default:
		// Slot still holds an unconsumed notification; one is enough.
	}
}

// handleAdvertisement runs in the radio's context and must not block.
func (s *Scanner) handleAdvertisement(a ble.Advertisement) {
	s.seen.Add(1)

	md := a.ManufacturerData()
	obs := device.Observation{
		Address:    a.Addr().String(),
		HasPayload: md != nil,
	}
	if md != nil {
		obs.Payload = append([]byte(nil), md...)
	}

	select {
	case s.observations <- obs:
	default:
		s.dropped.Add(1)
	}
}

// Close stops the radio.
func (s *Scanner) Close() error {
	if err := s.radio.Stop(); err != nil {
		return fmt.Errorf("stopping bluetooth device: %w", err)
	}
	return nil
}
