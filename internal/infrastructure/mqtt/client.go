package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the gateway's broker session.
//
// Unlike a typical long-lived paho client, Client never reconnects on its
// own. Connect makes exactly one attempt and Connected reports the live
// socket state, which lets the caller drive a bounded retry policy.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// pending holds publish tokens not yet reaped by Service.
	pending []pendingPublish
	pendMu  sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// pendingPublish is an in-flight publish awaiting its delivery token.
type pendingPublish struct {
	topic string
	token pahomqtt.Token
}

// New creates a disconnected session for cfg. Call Connect to open it.
func New(cfg config.MQTTConfig) *Client {
	return newWithClient(cfg, pahomqtt.NewClient(buildClientOptions(cfg)))
}

// newWithClient builds a Client around an existing paho client.
func newWithClient(cfg config.MQTTConfig, pc pahomqtt.Client) *Client {
	return &Client{
		client: pc,
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// Connect makes one attempt to open the broker session.
//
// It returns immediately if the session is already open. The attempt is
// bounded by the paho connect timeout and by ctx. After a successful
// connect a retained online status is published to the status topic.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: ErrConnectionFailed or ErrTimeout wrapping the cause
func (c *Client) Connect(ctx context.Context) error {
	if c.Connected() {
		return nil
	}

	token := c.client.Connect()
	if err := waitToken(ctx, token, defaultConnectTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.publishStatus(statusOnline, "")
	c.getLogger().Info("mqtt session established",
		"client_id", c.cfg.Broker.ClientID,
		"broker", fmt.Sprintf("%s:%d", c.cfg.Broker.Host, c.cfg.Broker.Port),
	)
	return nil
}

// Connected reports whether the broker session is currently open.
func (c *Client) Connected() bool {
	return c.client.IsConnectionOpen()
}

// Close publishes a graceful offline status and disconnects.
//
// Returns:
//   - error: Always nil; a closed connection is not an error
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.Connected() && c.cfg.StatusTopic != "" {
		token := c.client.Publish(c.cfg.StatusTopic, statusQoS, true,
			buildStatusPayload(statusOffline, c.cfg.Broker.ClientID, reasonShutdown))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// HealthCheck reports ErrNotConnected when the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.Connected() {
		return ErrNotConnected
	}
	return nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// publishStatus publishes a retained status message without waiting.
func (c *Client) publishStatus(status, reason string) {
	if c.cfg.StatusTopic == "" {
		return
	}
	c.client.Publish(c.cfg.StatusTopic, statusQoS, true,
		buildStatusPayload(status, c.cfg.Broker.ClientID, reason))
}

// waitToken blocks until token completes, ctx ends or timeout elapses.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
