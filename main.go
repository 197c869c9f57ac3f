package main

import (
	"eepromcode-go/drivers/at24"
	"eepromcode-go/errcode"
	"eepromcode-go/internal/demo"
	"eepromcode-go/internal/platform"
	"eepromcode-go/usci"
	"eepromcode-go/x/conv"
)

func main() {
	c, err := platform.Bus(usci.BringUp{})
	if err != nil {
		fail("bring-up", err)
	}
	e := at24.New(c, at24.Config{})

	for i, s := range demo.Steps {
		data, err := s.Run(e, demo.Word)
		if err != nil {
			fail(s.Name, err)
		}
		println("step", i+1, s.Name, "ok")
		for _, l := range conv.Dump(demo.Word, data, 16) {
			println("  ", l)
		}
	}

	platform.Halt(0)
}

func fail(what string, err error) {
	println(what, "failed:", string(errcode.Of(err)), err.Error())
	platform.Halt(1)
}
