package wifi

import (
	"context"
	"fmt"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-blegw/internal/process"
)

const (
	// settleTimeout bounds how long one Associate waits for the BSS to report associated.
	settleTimeout = 2 * time.Second

	// settlePoll is the interval between association checks while settling.
	settlePoll = 100 * time.Millisecond
)

// nl80211 is the part of *wifi.Client the link uses.
type nl80211 interface {
	Interfaces() ([]*wifi.Interface, error)
	BSS(ifi *wifi.Interface) (*wifi.BSS, error)
	Connect(ifi *wifi.Interface, ssid string) error
	ConnectWPAPSK(ifi *wifi.Interface, ssid, psk string) error
	Close() error
}

// supervisor is the part of *process.Manager the link uses.
type supervisor interface {
	Start(ctx context.Context) error
	IsRunning() bool
	Stop() error
}

// Logger defines the logging interface used by the Link.
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

// Link is the nl80211-backed wireless association.
type Link struct {
	cfg        config.WiFiConfig
	client     nl80211
	supplicant supervisor
	logger     Logger

	settleTimeout time.Duration
}

// Open creates a Link on a new nl80211 client.
func Open(cfg config.WiFiConfig) (*Link, error) {
	client, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("opening nl80211: %w", err)
	}

	l := newLink(cfg, client)
	if cfg.Supplicant.Managed {
		l.supplicant = newSupplicantManager(cfg)
	}
	return l, nil
}

func newLink(cfg config.WiFiConfig, client nl80211) *Link {
	return &Link{
		cfg:           cfg,
		client:        client,
		logger:        noopLogger{},
		settleTimeout: settleTimeout,
	}
}

// SetLogger sets the logger for the link and its supervised supplicant.
func (l *Link) SetLogger(logger Logger) {
	l.logger = logger
	if m, ok := l.supplicant.(*process.Manager); ok {
		m.SetLogger(logger)
	}
}

// Associated reports whether the configured interface is associated with
// the configured SSID. Any nl80211 error counts as not associated.
func (l *Link) Associated() bool {
	ifi, err := l.iface()
	if err != nil {
		return false
	}

	bss, err := l.client.BSS(ifi)
	if err != nil || bss == nil {
		return false
	}
	if bss.Status != wifi.BSSStatusAssociated {
		return false
	}
	return l.cfg.SSID == "" || bss.SSID == l.cfg.SSID
}

// Associate makes one attempt to join the configured network and waits
// up to settleTimeout for the association to show.
//
// Returns:
//   - error: ErrInterfaceNotFound, ErrNotAssociated, or the nl80211/supplicant error
func (l *Link) Associate(ctx context.Context) error {
	if l.Associated() {
		return nil
	}

	if l.supplicant != nil {
		if err := l.ensureSupplicant(ctx); err != nil {
			return err
		}
	} else if err := l.connect(); err != nil {
		return err
	}

	return l.settle(ctx)
}

func (l *Link) connect() error {
	ifi, err := l.iface()
	if err != nil {
		return err
	}

	l.logger.Debug("requesting wifi association", "interface", ifi.Name, "ssid", l.cfg.SSID)
	if l.cfg.Passphrase != "" {
		err = l.client.ConnectWPAPSK(ifi, l.cfg.SSID, l.cfg.Passphrase)
	} else {
		err = l.client.Connect(ifi, l.cfg.SSID)
	}
	if err != nil {
		return fmt.Errorf("connecting %s to %q: %w", ifi.Name, l.cfg.SSID, err)
	}
	return nil
}

// ensureSupplicant (re)starts wpa_supplicant when it is not running.
func (l *Link) ensureSupplicant(ctx context.Context) error {
	if l.supplicant.IsRunning() {
		return nil
	}

	if err := writeSupplicantConfig(l.cfg.Supplicant.ConfigPath, l.cfg.SSID, l.cfg.Passphrase); err != nil {
		return err
	}
	if err := l.supplicant.Start(ctx); err != nil {
		return fmt.Errorf("starting wpa_supplicant: %w", err)
	}
	l.logger.Info("wpa_supplicant started", "interface", l.cfg.Interface)
	return nil
}

// settle polls Associated until it holds, ctx ends or settleTimeout passes.
func (l *Link) settle(ctx context.Context) error {
	deadline := time.NewTimer(l.settleTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()

	for {
		if l.Associated() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s after %v", ErrNotAssociated, l.cfg.Interface, l.settleTimeout)
		case <-ticker.C:
		}
	}
}

// iface looks up the configured interface by name.
func (l *Link) iface() (*wifi.Interface, error) {
	ifis, err := l.client.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing wifi interfaces: %w", err)
	}
	for _, ifi := range ifis {
		if ifi.Name == l.cfg.Interface {
			return ifi, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, l.cfg.Interface)
}

// Close stops a managed supplicant and releases the nl80211 socket.
func (l *Link) Close() error {
	if l.supplicant != nil {
		if err := l.supplicant.Stop(); err != nil {
			l.logger.Warn("stopping wpa_supplicant", "error", err)
		}
	}
	if err := l.client.Close(); err != nil {
		return fmt.Errorf("closing nl80211: %w", err)
	}
	return nil
}

// HostManaged is a link owned by the host operating system. It is always
// associated and Associate never does anything.
type HostManaged struct{}

// Associate does nothing.
func (HostManaged) Associate(context.Context) error { return nil }

// Associated always reports true.
func (HostManaged) Associated() bool { return true }
