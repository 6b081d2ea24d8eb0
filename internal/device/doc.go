// Package device holds the gateway's view of observed BLE transmitters.
//
// It contains the three pure pieces of the data path and the journal:
//
//	Observation ──▶ Filter ──▶ Registry.ClassifyAndStore ──▶ Format ──▶ session
//	                 (9-byte     (NEW / CHANGED / UNCHANGED)   (addr + hex)
//	                  payload)
//
// The Registry is the only stateful piece. It maps a hardware address to the
// last accepted 9-byte manufacturer payload, grows monotonically for the
// life of the process and is never persisted. Only NEW and CHANGED results
// are forwarded, so outbound traffic tracks state transitions rather than
// the raw advertisement rate.
//
// The SQLite journal records what was forwarded for later diagnosis. It is
// append-only and is never read back into the Registry.
package device
