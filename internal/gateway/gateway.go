package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-blegw/internal/device"
	"github.com/nerrad567/gray-logic-blegw/internal/scanner"
)

// Default timings.
const (
	DefaultScanDuration  = 5 * time.Second
	DefaultCycleInterval = 100 * time.Millisecond
)

// Scanner is the radio side of the loop. *scanner.Scanner satisfies it.
type Scanner interface {
	Start(ctx context.Context, duration time.Duration) error
	Observations() <-chan device.Observation
	Done() <-chan error
}

// Connectivity is the network side of the loop. *connectivity.Machine satisfies it.
type Connectivity interface {
	Check(ctx context.Context) error
	Publish(address string, p device.Payload) bool
}

// Logger defines the logging interface used by the Gateway.
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

// Config holds the loop timings.
type Config struct {
	ScanDuration  time.Duration
	CycleInterval time.Duration
}

// ClassifiedFunc observes every accepted observation. forwarded reports
// whether the message was handed to the broker session.
type ClassifiedFunc func(address string, p device.Payload, c device.Classification, forwarded bool)

// ScanFunc observes every completed scan window.
type ScanFunc func(err error)

// Gateway is the supervisor.
type Gateway struct {
	registry *device.Registry
	conn     Connectivity
	scanner  Scanner
	cfg      Config
	logger   Logger

	scanning bool

	onClassified []ClassifiedFunc
	onScan       []ScanFunc
}

// New creates a Gateway. Zero timings take the defaults.
func New(registry *device.Registry, conn Connectivity, sc Scanner, cfg Config) *Gateway {
	if cfg.ScanDuration <= 0 {
		cfg.ScanDuration = DefaultScanDuration
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = DefaultCycleInterval
	}

	return &Gateway{
		registry: registry,
		conn:     conn,
		scanner:  sc,
		cfg:      cfg,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	g.logger = logger
}

// OnClassified registers fn for every accepted observation.
// Register observers before Run.
func (g *Gateway) OnClassified(fn ClassifiedFunc) {
	g.onClassified = append(g.onClassified, fn)
}

// OnScan registers fn for every completed scan window.
// Register observers before Run.
func (g *Gateway) OnScan(fn ScanFunc) {
	g.onScan = append(g.onScan, fn)
}

// Run executes cycles until ctx is cancelled.
//
// Nothing but cancellation stops the loop; link failures and scan errors
// are logged and retried on later cycles.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("gateway loop started",
		"scan_duration", g.cfg.ScanDuration,
		"cycle_interval", g.cfg.CycleInterval,
	)

	ticker := time.NewTicker(g.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		g.Cycle(ctx)

		select {
		case <-ctx.Done():
			g.logger.Info("gateway loop stopped", "devices", g.registry.Len())
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle runs one supervisory cycle.
func (g *Gateway) Cycle(ctx context.Context) {
	if err := g.conn.Check(ctx); err != nil {
		g.logger.Debug("connectivity check incomplete", "error", err)
	}

	g.drain()

	select {
	case err := <-g.scanner.Done():
		g.scanning = false
		if err != nil {
			g.logger.Warn("scan window failed", "error", err)
		} else {
			g.logger.Debug("scan window complete", "devices", g.registry.Len())
		}
		for _, fn := range g.onScan {
			fn(err)
		}
	default:
	}

	if !g.scanning && ctx.Err() == nil {
		g.startScan(ctx)
	}
}

// drain classifies the observations queued when the cycle reached it.
// Reports arriving meanwhile wait for the next cycle.
func (g *Gateway) drain() {
	ch := g.scanner.Observations()
	for n := len(ch); n > 0; n-- {
		select {
		case obs := <-ch:
			g.handle(obs)
		default:
			return
		}
	}
}

// handle filters, classifies and forwards one observation.
func (g *Gateway) handle(obs device.Observation) {
	p, ok := device.Filter(obs)
	if !ok {
		return
	}

	c := g.registry.ClassifyAndStore(obs.Address, p)
	forwarded := false
	if c.Forward() {
		forwarded = g.conn.Publish(obs.Address, p)
	}

	for _, fn := range g.onClassified {
		fn(obs.Address, p, c, forwarded)
	}
}

func (g *Gateway) startScan(ctx context.Context) {
	err := g.scanner.Start(ctx, g.cfg.ScanDuration)
	switch {
	case err == nil:
		g.scanning = true
	case errors.Is(err, scanner.ErrScanInProgress):
		g.scanning = true
	default:
		g.logger.Warn("failed to start scan", "error", err)
	}
}
