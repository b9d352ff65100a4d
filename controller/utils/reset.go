// Package utils holds the small host-integration helpers.
package utils

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Reboot asks logind for an immediate system reboot over D-Bus. It is the
// production crash-recovery action: a clean restart beats limping on with
// hardware in an unknown state.
func Reboot() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("utils: system bus: %w", err)
	}
	obj := conn.Object("org.freedesktop.login1", "/org/freedesktop/login1")
	if call := obj.Call("org.freedesktop.login1.Manager.Reboot", 0, false); call.Err != nil {
		return fmt.Errorf("utils: logind reboot: %w", call.Err)
	}
	return nil
}
