package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Send publishes msg to topic with the configured QoS, not retained.
//
// Send does not wait for delivery. The returned token is kept and its
// outcome surfaces in the next Service call, so a slow broker never stalls
// the caller.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrPublishFailed
func (c *Client) Send(topic, msg string) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(msg) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(msg), maxPayloadSize)
	}
	if !c.Connected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), false, msg)

	c.pendMu.Lock()
	c.pending = append(c.pending, pendingPublish{topic: topic, token: token})
	c.pendMu.Unlock()

	return nil
}

// Service performs per-cycle session housekeeping.
//
// It reaps every completed publish token and returns their failures
// joined into one error. Tokens still in flight are kept for the next call.
// Keepalive pings are handled by paho's own goroutines.
func (c *Client) Service(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.pendMu.Lock()
	defer c.pendMu.Unlock()

	var errs []error
	kept := c.pending[:0]
	for _, p := range c.pending {
		select {
		case <-p.token.Done():
			if err := p.token.Error(); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %w", ErrPublishFailed, p.topic, err))
			}
		default:
			kept = append(kept, p)
		}
	}
	clear(c.pending[len(kept):])
	c.pending = kept

	return errors.Join(errs...)
}

// Pending returns the number of publishes awaiting completion.
func (c *Client) Pending() int {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	return len(c.pending)
}
