// Package logging provides structured logging for the BLE gateway.
//
// It wraps log/slog so every component logs the same way: JSON on a
// deployed device, text while developing on a workstation.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	scanLog := logger.Component("scanner")
//	scanLog.Info("scan started", "duration", cfg.Gateway.ScanDuration)
//
// Never log the Wi-Fi passphrase or MQTT password.
package logging
