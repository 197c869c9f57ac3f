//go:build tinygo

package platform

import "eepromcode-go/usci"

// Bus stops the watchdog, routes P1.6/P1.7 to USCI_B0 and brings the
// controller up in I²C master mode.
func Bus(b usci.BringUp) (usci.Controller, error) {
	usci.HoldWatchdog()
	if err := usci.Configure(usci.B0, b); err != nil {
		return nil, err
	}
	return usci.B0, nil
}

// Halt parks the CPU. The status is only meaningful on the host.
func Halt(status int) {
	_ = status
	select {}
}
