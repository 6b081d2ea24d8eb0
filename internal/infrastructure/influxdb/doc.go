// Package influxdb records gateway telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with a non-blocking,
// batched write API. Three measurements are written:
//
//   - ble_classification: one point per NEW or CHANGED classification,
//     tagged with the address and classification, payload hex as a field
//   - ble_connectivity: one point per state machine transition
//   - ble_gateway: periodic counters (devices, published, suppressed, dropped)
//
// Telemetry is optional and best-effort: write failures are reported via
// the SetOnError callback and never affect forwarding.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteClassification("AA:BB:CC:DD:EE:FF", "new", "010203040506070809")
package influxdb
