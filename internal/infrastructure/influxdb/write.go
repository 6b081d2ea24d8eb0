package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementClassification = "ble_classification"
	measurementConnectivity   = "ble_connectivity"
	measurementGateway        = "ble_gateway"
)

// GatewayStats is one sample of the gateway counters.
type GatewayStats struct {
	Devices    int
	Published  uint64
	Suppressed uint64
	SendErrors uint64
	Seen       uint64
	Dropped    uint64
	State      string
}

// WriteClassification records a NEW or CHANGED classification.
func (c *Client) WriteClassification(address, classification, payloadHex string) {
	c.writePoint(classificationPoint(address, classification, payloadHex, time.Now()))
}

// WriteTransition records a connectivity state change.
func (c *Client) WriteTransition(from, to string) {
	c.writePoint(transitionPoint(from, to, time.Now()))
}

// WriteGatewayStats records a sample of the gateway counters.
func (c *Client) WriteGatewayStats(stats GatewayStats) {
	c.writePoint(gatewayPoint(stats, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func classificationPoint(address, classification, payloadHex string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementClassification,
		map[string]string{
			"address":        address,
			"classification": classification,
		},
		map[string]interface{}{
			"payload": payloadHex,
		},
		ts,
	)
}

func transitionPoint(from, to string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementConnectivity,
		map[string]string{
			"to": to,
		},
		map[string]interface{}{
			"from": from,
		},
		ts,
	)
}

func gatewayPoint(s GatewayStats, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementGateway,
		map[string]string{
			"state": s.State,
		},
		map[string]interface{}{
			"devices":     s.Devices,
			"published":   s.Published,
			"suppressed":  s.Suppressed,
			"send_errors": s.SendErrors,
			"seen":        s.Seen,
			"dropped":     s.Dropped,
		},
		ts,
	)
}
