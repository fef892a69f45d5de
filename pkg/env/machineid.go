// Package env provides facilities shared by the daemon and client configs.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// AppID scopes the machine ID so the raw ID is never exposed.
const AppID = "chanmux"

// MachineID retrieves a stable ID identifying the machine, falling back to
// the hostname.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil && len(id) >= 12 {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return AppID
}
