// Package process supervises a long-running child process.
//
// The gateway uses it to keep wpa_supplicant alive when the wireless
// link is configured as managed. The child runs in its own process group
// so Stop can signal everything it spawned, and its output is forwarded
// line by line to the logger.
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "wpa_supplicant",
//	    Binary:           "/sbin/wpa_supplicant",
//	    Args:             []string{"-i", "wlan0", "-c", "/run/blegateway/wpa_supplicant.conf"},
//	    RestartOnFailure: true,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
