// Package wifi manages the gateway's wireless association.
//
// Association state is read over nl80211 with github.com/mdlayher/wifi: the
// link counts as associated when the configured interface reports an
// associated BSS whose SSID matches the configured network.
//
// Associate makes one attempt to join the network, in one of two modes:
//
//   - unmanaged (default): issue an nl80211 connect request directly
//     (WPA-PSK when a passphrase is configured, open otherwise)
//   - managed: write a wpa_supplicant configuration and keep a supervised
//     wpa_supplicant process running via the process package
//
// Either way Associate then waits briefly for the association to settle.
// Retrying is left to the connectivity state machine.
//
// When wifi.enabled is false the host owns the link; HostManaged stands
// in and always reports associated.
package wifi
