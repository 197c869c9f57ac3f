package usim

import (
	"eepromcode-go/x/conv"
)

// Kind classifies a bus event.
type Kind uint8

const (
	EvStart         Kind = iota // START + address byte
	EvRepeatedStart             // START without an intervening STOP
	EvWrite                     // data byte, master to target
	EvRead                      // data byte, target to master
	EvStop
)

func (k Kind) String() string {
	switch k {
	case EvStart:
		return "START"
	case EvRepeatedStart:
		return "RSTART"
	case EvWrite:
		return "WRITE"
	case EvRead:
		return "READ"
	case EvStop:
		return "STOP"
	}
	return "unknown"
}

// Event is one observable bus condition. Addr and Read are set for the two
// start kinds; B for data bytes. Ack is the level the receiver drove in the
// ninth clock.
type Event struct {
	Kind Kind
	Addr uint8
	Read bool
	B    byte
	Ack  bool
}

func (e Event) String() string {
	var hb [2]byte
	s := e.Kind.String()
	switch e.Kind {
	case EvStart, EvRepeatedStart:
		dir := " W"
		if e.Read {
			dir = " R"
		}
		s += " 0x" + string(conv.U8Hex(hb[:], e.Addr)) + dir
	case EvWrite, EvRead:
		s += " 0x" + string(conv.U8Hex(hb[:], e.B))
	default:
		return s
	}
	if e.Ack {
		return s + " ack"
	}
	return s + " nack"
}

// Trace is an ordered list of bus events.
type Trace []Event

// Count returns how many events of kind k are in t.
func (t Trace) Count(k Kind) int {
	n := 0
	for _, e := range t {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Reads returns how many received bytes were answered with ack (or nack).
func (t Trace) Reads(ack bool) int {
	n := 0
	for _, e := range t {
		if e.Kind == EvRead && e.Ack == ack {
			n++
		}
	}
	return n
}

// Bytes returns the data bytes read, in order.
func (t Trace) Bytes() []byte {
	var out []byte
	for _, e := range t {
		if e.Kind == EvRead {
			out = append(out, e.B)
		}
	}
	return out
}

// Equal reports whether t and o hold the same events.
func (t Trace) Equal(o Trace) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}
