//go:build !tinygo

package platform

import (
	"os"

	"eepromcode-go/usci"
	"eepromcode-go/usci/usim"
)

// DemoImage is what the host bus has at 0xE0 of block 0.
var DemoImage = []byte{0x11, 0x22, 0x33}

// Bus returns a simulated controller with an AT24C16 attached at the
// bring-up target, already configured.
func Bus(b usci.BringUp) (usci.Controller, error) {
	base := b.Target
	if base == 0 {
		base = usci.DefaultTarget
	}
	dev := usim.NewEEPROM(uint8(base), 2048)
	dev.Load(0xE0, DemoImage)
	c := usim.New(dev, usim.Timing{})
	if err := usci.Configure(c, b); err != nil {
		return nil, err
	}
	return c, nil
}

// Halt exits the process with status.
func Halt(status int) { os.Exit(status) }
