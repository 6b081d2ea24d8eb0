// Package scanner drives the Bluetooth LE radio and hands advertisement
// reports to the gateway supervisor.
//
// A scan runs for a fixed window in its own goroutine. The advertisement
// handler only copies the address and manufacturer data into an
// Observation and offers it on a buffered channel; when the buffer is full
// the report is dropped and counted. When the window closes, exactly one
// value is delivered on the capacity-1 Done channel. No classification or
// publishing happens in the radio's context.
//
// Usage:
//
//	s, err := scanner.Open(cfg.Bluetooth, cfg.Gateway.ObservationBuffer)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	_ = s.Start(ctx, 5*time.Second)
//	for obs := range s.Observations() { ... }
package scanner
