package wifi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-blegw/internal/process"
)

const (
	supplicantDirPermissions  = 0750
	supplicantFilePermissions = 0600

	// WPA-PSK passphrases are 8..63 printable ASCII characters.
	minPassphraseLen = 8
	maxPassphraseLen = 63
)

// renderSupplicantConfig builds a wpa_supplicant.conf for a single network.
func renderSupplicantConfig(ssid, passphrase string) (string, error) {
	if ssid == "" || strings.ContainsAny(ssid, "\"\n\r") {
		return "", fmt.Errorf("%w: ssid", ErrInvalidCredentials)
	}
	if passphrase != "" {
		if len(passphrase) < minPassphraseLen || len(passphrase) > maxPassphraseLen ||
			strings.ContainsAny(passphrase, "\"\n\r") {
			return "", fmt.Errorf("%w: passphrase must be 8-63 characters without quotes", ErrInvalidCredentials)
		}
	}

	var b strings.Builder
	b.WriteString("ctrl_interface=/run/wpa_supplicant\n")
	b.WriteString("update_config=0\n\n")
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=\"%s\"\n", ssid)
	if passphrase != "" {
		fmt.Fprintf(&b, "\tpsk=\"%s\"\n", passphrase)
	} else {
		b.WriteString("\tkey_mgmt=NONE\n")
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// writeSupplicantConfig writes the rendered configuration with owner-only permissions.
func writeSupplicantConfig(path, ssid, passphrase string) error {
	content, err := renderSupplicantConfig(ssid, passphrase)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), supplicantDirPermissions); err != nil {
		return fmt.Errorf("creating supplicant config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), supplicantFilePermissions); err != nil {
		return fmt.Errorf("writing supplicant config: %w", err)
	}
	return nil
}

// newSupplicantManager returns a process manager for wpa_supplicant on cfg.Interface.
func newSupplicantManager(cfg config.WiFiConfig) *process.Manager {
	return process.NewManager(process.Config{
		Name:   "wpa_supplicant",
		Binary: cfg.Supplicant.Binary,
		Args: []string{
			"-i", cfg.Interface,
			"-c", cfg.Supplicant.ConfigPath,
			"-D", "nl80211",
		},
		RestartOnFailure: true,
	})
}
