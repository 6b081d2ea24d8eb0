package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-blegw/internal/connectivity"
	"github.com/nerrad567/gray-logic-blegw/internal/device"
	"github.com/nerrad567/gray-logic-blegw/internal/gateway"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/logging"
)

// journalTimeout bounds a single journal insert on the supervisor goroutine.
const journalTimeout = 2 * time.Second

// statusLight drives the session indicator.
type statusLight interface {
	Set(on bool) error
}

// counters receives event counts for the metrics endpoint.
type counters interface {
	ObserveClassification(classification string)
	ObserveTransition(to string)
	ObserveScan(err error)
}

// timeSeries receives events for historical storage.
type timeSeries interface {
	WriteClassification(address, classification, payloadHex string)
	WriteTransition(from, to string)
	WriteGatewayStats(stats influxdb.GatewayStats)
}

// observers fans gateway events out to the optional sinks.
// Every sink may be nil.
type observers struct {
	log     *logging.Logger
	led     statusLight
	metrics counters
	influx  timeSeries
	journal device.Journal
}

// attach registers the observers on the machine and gateway hooks.
func (o *observers) attach(m *connectivity.Machine, g *gateway.Gateway) {
	m.OnTransition(o.transition)
	m.OnSent(o.sent)
	g.OnClassified(o.classified)
	g.OnScan(o.scan)
}

func (o *observers) transition(from, to connectivity.State) {
	if o.led != nil {
		if err := o.led.Set(to == connectivity.AssocUpSessionUp); err != nil {
			o.log.Warn("failed to set status LED", "error", err)
		}
	}
	if o.metrics != nil {
		o.metrics.ObserveTransition(to.String())
	}
	if o.influx != nil {
		o.influx.WriteTransition(from.String(), to.String())
	}
}

func (o *observers) classified(address string, p device.Payload, c device.Classification, forwarded bool) {
	if o.metrics != nil {
		o.metrics.ObserveClassification(c.String())
	}
	if !c.Forward() {
		return
	}
	if o.influx != nil {
		o.influx.WriteClassification(address, c.String(), p.Hex())
	}
	if forwarded {
		o.record(address, device.Format(address, p), journalReason(c))
	}
}

// sent journals replayed messages; live messages are journalled by classified.
func (o *observers) sent(address, msg string, replay bool) {
	if replay {
		o.record(address, msg, device.JournalReasonReplay)
	}
}

func (o *observers) scan(err error) {
	if o.metrics != nil {
		o.metrics.ObserveScan(err)
	}
}

func (o *observers) record(address, msg, reason string) {
	if o.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := o.journal.Record(ctx, address, msg, reason); err != nil {
		o.log.Warn("failed to record journal entry", "address", address, "error", err)
	}
}

func journalReason(c device.Classification) string {
	if c == device.ClassNew {
		return device.JournalReasonNew
	}
	return device.JournalReasonChanged
}
