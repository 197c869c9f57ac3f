// Package usim is a host-side double of the USCI_B controller in I²C master
// mode with an optional 24Cxx target attached.
//
// The simulated hardware only moves when it is polled: every read of CTL1,
// STAT or IFG2 advances the in-flight bus activity by one tick. Pending bits
// self-clear and flags set exactly as the engine expects from silicon, so a
// driver that skips a wait observes stale state, as it would on hardware.
// Requests the hardware would not honour (a START while START/STOP is
// pending, writing a full TXBUF, ...) are recorded as violations.
package usim

import (
	"sync"

	"eepromcode-go/usci"
)

// Timing is the number of polls each activity takes. Zero fields take the
// defaults.
type Timing struct {
	Address uint // START + address byte + ack window
	Byte    uint // one data byte + ack window
	Stop    uint // STOP after the final byte
}

// DefaultTiming is used for zero Timing fields.
var DefaultTiming = Timing{Address: 2, Byte: 3, Stop: 2}

func (t Timing) withDefaults() Timing {
	if t.Address == 0 {
		t.Address = DefaultTiming.Address
	}
	if t.Byte == 0 {
		t.Byte = DefaultTiming.Byte
	}
	if t.Stop == 0 {
		t.Stop = DefaultTiming.Stop
	}
	return t
}

type jobKind uint8

const (
	jobNone jobKind = iota
	jobAddress
	jobTx
	jobRx
	jobStop
)

type job struct {
	kind     jobKind
	left     uint
	b        byte
	read     bool
	repeated bool
}

// Registers is a snapshot of the register file taken without advancing the
// simulation.
type Registers struct {
	Ctl0, Ctl1 uint8
	Stat       uint8
	Flags      uint8
	Baud       uint16
	Target     uint16
	Pins       uint8
}

// Controller simulates USCI_B0. It is safe for concurrent use, although the
// driver contract only ever has one caller at a time.
type Controller struct {
	mu     sync.Mutex
	timing Timing
	dev    *EEPROM
	strict bool
	frozen bool

	ctl0, ctl1 uint8
	stat, ifg  uint8
	baud       uint16
	target     uint16
	pins       uint8
	rxbuf      byte

	busy      bool // between START and STOP on the wire
	addressed bool // target acknowledged the current address phase
	cur       job

	trace      Trace
	violations []string
	polls      uint64
}

var _ usci.Configurator = (*Controller)(nil)

// New returns a controller in its power-on state (held in reset) with dev
// attached. dev may be nil, in which case every address is NACKed.
func New(dev *EEPROM, t Timing) *Controller {
	return &Controller{
		timing: t.withDefaults(),
		dev:    dev,
		ctl1:   usci.UCSWRST,
	}
}

// SetStrict makes violations panic instead of being recorded.
func (c *Controller) SetStrict(v bool) {
	c.mu.Lock()
	c.strict = v
	c.mu.Unlock()
}

// Freeze stops all bus activity from progressing; pending bits stay set.
func (c *Controller) Freeze(v bool) {
	c.mu.Lock()
	c.frozen = v
	c.mu.Unlock()
}

// SetTiming replaces the latencies used for activities started from now on.
func (c *Controller) SetTiming(t Timing) {
	c.mu.Lock()
	c.timing = t.withDefaults()
	c.mu.Unlock()
}

// Device returns the attached target.
func (c *Controller) Device() *EEPROM { return c.dev }

// ---- usci.Controller ----

func (c *Controller) Ctl1() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step()
	return c.ctl1
}

func (c *Controller) Stat() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step()
	return c.stat
}

func (c *Controller) Flags() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step()
	return c.ifg
}

func (c *Controller) ClearStat(mask uint8) {
	c.mu.Lock()
	c.stat &^= mask
	c.mu.Unlock()
}

func (c *Controller) SetCtl1(mask uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mask&usci.UCTXSTT != 0 {
		c.requestStart(mask)
		mask &^= usci.UCTXSTT
	}
	if mask&usci.UCTXSTP != 0 {
		c.requestStop()
		mask &^= usci.UCTXSTP
	}
	c.ctl1 |= mask
}

func (c *Controller) ClearCtl1(mask uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mask&(usci.UCTXSTT|usci.UCTXSTP) != 0 {
		c.violate("START/STOP bits cannot be cleared by software")
		mask &^= usci.UCTXSTT | usci.UCTXSTP
	}
	if mask&usci.UCSWRST != 0 && c.ctl1&usci.UCSWRST != 0 {
		c.ctl1 &^= usci.UCSWRST
		c.ifg = 0
		c.stat = 0
	}
	c.ctl1 &^= mask
}

func (c *Controller) WriteTX(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl1&usci.UCTR == 0 {
		c.violate("TXBUF written in receive mode")
	}
	if c.ifg&usci.UCB0TXIFG == 0 {
		c.violate("TXBUF written while full")
	}
	if c.cur.kind != jobNone {
		c.violate("TXBUF written while the bus is active")
	}
	c.ifg &^= usci.UCB0TXIFG
	c.cur = job{kind: jobTx, left: c.timing.Byte, b: b}
}

func (c *Controller) ReadRX() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ifg&usci.UCB0RXIFG == 0 {
		c.violate("RXBUF read while empty")
	}
	b := c.rxbuf
	c.ifg &^= usci.UCB0RXIFG
	// SCL is held low while RXBUF is full; reading it releases the next byte.
	if c.busy && c.addressed && c.ctl1&usci.UCTR == 0 &&
		c.ctl1&usci.UCTXSTP == 0 && c.cur.kind == jobNone {
		c.cur = job{kind: jobRx, left: c.timing.Byte}
	}
	return b
}

// ---- usci.Configurator ----

func (c *Controller) SetTarget(addr uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		c.violate("I2CSA written while the bus is busy")
	}
	c.target = addr
}

func (c *Controller) WriteCtl0(v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl1&usci.UCSWRST == 0 {
		c.violate("CTL0 written outside reset")
	}
	c.ctl0 = v
}

func (c *Controller) WriteCtl1(v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v&(usci.UCTXSTT|usci.UCTXSTP) != 0 {
		c.violate("START/STOP must be requested with SetCtl1")
		v &^= usci.UCTXSTT | usci.UCTXSTP
	}
	c.ctl1 = v | (c.ctl1 & (usci.UCTXSTT | usci.UCTXSTP))
}

func (c *Controller) WriteBaud(div uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl1&usci.UCSWRST == 0 {
		c.violate("BR0/BR1 written outside reset")
	}
	c.baud = div
}

func (c *Controller) SelectPins(mask uint8) {
	c.mu.Lock()
	c.pins |= mask
	c.mu.Unlock()
}

// ---- inspection ----

// Registers returns the register file without advancing the simulation.
func (c *Controller) Registers() Registers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Registers{
		Ctl0: c.ctl0, Ctl1: c.ctl1, Stat: c.stat, Flags: c.ifg,
		Baud: c.baud, Target: c.target, Pins: c.pins,
	}
}

// Idle reports whether the bus is released with nothing pending.
func (c *Controller) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.busy && c.cur.kind == jobNone && c.ctl1&(usci.UCTXSTT|usci.UCTXSTP) == 0
}

// Trace returns a copy of the events recorded so far.
func (c *Controller) Trace() Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(Trace(nil), c.trace...)
}

// TakeTrace returns the recorded events and starts a new trace.
func (c *Controller) TakeTrace() Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.trace
	c.trace = nil
	return t
}

// Violations returns the protocol violations seen so far.
func (c *Controller) Violations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.violations...)
}

// Polls returns the number of status register reads so far.
func (c *Controller) Polls() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// ---- internals (c.mu held) ----

func (c *Controller) violate(msg string) {
	if c.strict {
		panic("usim: " + msg)
	}
	c.violations = append(c.violations, msg)
}

func (c *Controller) configured() bool {
	return c.ctl1&usci.UCSWRST == 0 &&
		c.ctl0&(usci.UCMST|usci.UCMODE_3|usci.UCSYNC) == usci.UCMST|usci.UCMODE_3|usci.UCSYNC
}

func (c *Controller) requestStart(mask uint8) {
	if !c.configured() {
		c.violate("START requested on an unconfigured controller")
	}
	if c.ctl1&(usci.UCTXSTT|usci.UCTXSTP) != 0 {
		c.violate("START requested while START or STOP is pending")
	}
	if c.cur.kind != jobNone {
		c.violate("START requested while the bus is active")
	}
	dir := (c.ctl1 | mask) & usci.UCTR
	c.ctl1 |= usci.UCTXSTT
	c.stat &^= usci.UCNACKIFG
	c.ifg &^= usci.UCB0TXIFG | usci.UCB0RXIFG
	c.cur = job{
		kind:     jobAddress,
		left:     c.timing.Address,
		read:     dir == 0,
		repeated: c.busy,
	}
	c.busy = true
	c.stat |= usci.UCBBUSY
}

func (c *Controller) requestStop() {
	if !c.busy {
		c.violate("STOP requested on an idle bus")
	}
	if c.ctl1&usci.UCTXSTP != 0 {
		c.violate("STOP requested twice")
		return
	}
	c.ctl1 |= usci.UCTXSTP
	if c.cur.kind == jobNone {
		c.cur = job{kind: jobStop, left: c.timing.Stop}
	}
	// Otherwise the STOP follows the activity in flight; a byte being
	// received at this point is answered with NACK.
}

func (c *Controller) step() {
	c.polls++
	if c.frozen || c.cur.kind == jobNone {
		return
	}
	if c.cur.left > 1 {
		c.cur.left--
		return
	}
	j := c.cur
	c.cur = job{}
	switch j.kind {
	case jobAddress:
		c.completeAddress(j)
	case jobTx:
		c.completeTx(j)
	case jobRx:
		c.completeRx()
	case jobStop:
		c.completeStop()
	}
}

func (c *Controller) completeAddress(j job) {
	addr := uint8(c.target & 0x7F)
	ack := c.dev != nil && c.dev.address(addr, j.read)
	kind := EvStart
	if j.repeated {
		kind = EvRepeatedStart
	}
	c.trace = append(c.trace, Event{Kind: kind, Addr: addr, Read: j.read, Ack: ack})
	c.ctl1 &^= usci.UCTXSTT
	c.addressed = ack

	switch {
	case !ack:
		c.stat |= usci.UCNACKIFG
		if !j.read {
			// TXIFG does not depend on the ack; a driver that ignores
			// UCNACKIFG carries on transmitting into the void.
			c.ifg |= usci.UCB0TXIFG
		}
		c.stopIfRequested()
	case j.read:
		// The first byte is clocked in straight after the address.
		c.cur = job{kind: jobRx, left: c.timing.Byte}
	default:
		c.ifg |= usci.UCB0TXIFG
		c.stopIfRequested()
	}
}

func (c *Controller) completeTx(j job) {
	ack := c.addressed && c.dev.write(j.b)
	c.trace = append(c.trace, Event{Kind: EvWrite, B: j.b, Ack: ack})
	if !ack {
		c.stat |= usci.UCNACKIFG
	}
	c.ifg |= usci.UCB0TXIFG
	c.stopIfRequested()
}

func (c *Controller) completeRx() {
	if c.ifg&usci.UCB0RXIFG != 0 {
		c.violate("RXBUF overrun")
	}
	b := c.dev.next()
	last := c.ctl1&usci.UCTXSTP != 0
	c.rxbuf = b
	c.ifg |= usci.UCB0RXIFG
	c.trace = append(c.trace, Event{Kind: EvRead, B: b, Ack: !last})
	if last {
		c.cur = job{kind: jobStop, left: c.timing.Stop}
	}
}

func (c *Controller) completeStop() {
	c.trace = append(c.trace, Event{Kind: EvStop})
	c.ctl1 &^= usci.UCTXSTP
	c.stat &^= usci.UCBBUSY
	c.stat |= usci.UCSTPIFG
	c.busy = false
	c.addressed = false
}

func (c *Controller) stopIfRequested() {
	if c.ctl1&usci.UCTXSTP != 0 {
		c.cur = job{kind: jobStop, left: c.timing.Stop}
	}
}
