// Package demo holds the bring-up walk-through: five transactions, each one
// phase longer than the last, ending in full random reads.
package demo

import "eepromcode-go/drivers/at24"

// Word is the word address the steps use.
const Word = 0xE0

// Step is one walk-through transaction. Run returns the bytes read, if any,
// and leaves the engine idle.
type Step struct {
	Name string
	Run  func(e *at24.Engine, word uint8) ([]byte, error)
}

// Steps in bring-up order.
var Steps = []Step{
	{Name: "start+addr(W)", Run: address},
	{Name: "word address", Run: wordAddress},
	{Name: "repeated start+addr(R)", Run: repeatedStart},
	{Name: "read 2", Run: read(2)},
	{Name: "read 3", Run: read(3)},
}

// address: START + device address (W), then STOP.
func address(e *at24.Engine, _ uint8) ([]byte, error) {
	if err := e.BeginWrite(); err != nil {
		return nil, err
	}
	return nil, e.Stop()
}

// wordAddress: START + device address (W) + word address, then STOP.
func wordAddress(e *at24.Engine, word uint8) ([]byte, error) {
	if err := e.BeginWrite(); err != nil {
		return nil, err
	}
	if err := e.SendByte(word); err != nil {
		return nil, err
	}
	return nil, e.Stop()
}

// repeatedStart primes the word address, turns the bus round and closes it
// without reading.
func repeatedStart(e *at24.Engine, word uint8) ([]byte, error) {
	if err := e.BeginWrite(); err != nil {
		return nil, err
	}
	if err := e.SendByte(word); err != nil {
		return nil, err
	}
	if err := e.BeginRead(); err != nil {
		return nil, err
	}
	return nil, e.Stop()
}

func read(n int) func(*at24.Engine, uint8) ([]byte, error) {
	return func(e *at24.Engine, word uint8) ([]byte, error) {
		buf := make([]byte, n)
		if err := e.ReadBlock(word, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
}
