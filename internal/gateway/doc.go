// Package gateway runs the supervisory loop of the BLE gateway.
//
// One goroutine owns the loop. Each cycle it:
//
//  1. runs one connectivity check (may block for the retry budget)
//  2. classifies the observations the scanner has queued so far
//  3. consumes the scan-complete notification, if any
//  4. starts the next scan window when none is in flight
//
// Classification happens only here, never in the radio's context, and the
// registry has no other writer.
package gateway
