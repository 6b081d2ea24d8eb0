// Package api provides the read-only HTTP status API of the BLE gateway.
//
// Endpoints:
//
//	GET /api/v1/health                     connectivity state and device count
//	GET /api/v1/devices                    every registry entry, sorted by address
//	GET /api/v1/devices/{address}          one registry entry
//	GET /api/v1/devices/{address}/journal  recent forwarded messages (journal enabled)
//	GET /metrics                           Prometheus exposition
//
// The API never writes to the registry or the state machine; it only reads
// through their concurrency-safe accessors.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
