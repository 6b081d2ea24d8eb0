// Package mqtt provides the MQTT session used by the BLE gateway to forward
// device messages to a broker.
//
// This package manages:
//   - Single connect attempts against the configured broker
//   - Fire-and-forget publishing with tracked delivery tokens
//   - Last Will and Testament (LWT) plus retained online/offline status
//
// # Reconnection
//
// Paho's own auto-reconnect is switched off. Reconnecting is owned by the
// connectivity state machine, which calls Connect under its bounded retry
// policy and replays the device registry once the session is back. Letting
// paho reconnect in the background would bring the session up without a
// replay.
//
// # Status Topic
//
// On every successful connect the client publishes a retained
// {"status":"online"} message to mqtt.status_topic. The broker publishes the
// LWT {"status":"offline","reason":"unexpected_disconnect"} if the gateway
// drops off the network, and Close publishes a graceful offline message.
//
// # Usage
//
//	session := mqtt.New(cfg.MQTT)
//	session.SetLogger(log)
//	defer session.Close()
//
//	if err := session.Connect(ctx); err != nil {
//	    // retried later by the state machine
//	}
//	_ = session.Send(cfg.MQTT.Topic, "AA:BB:CC:DD:EE:FF010203040506070809")
//	_ = session.Service(ctx)
package mqtt
