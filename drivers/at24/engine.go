// Package at24 reads 24Cxx serial EEPROMs through a USCI_B controller in
// I²C master mode.
//
// The Engine exposes the individual bus phases of a random read:
//
//	e.BeginWrite()      // START + address(W)
//	e.SendByte(word)    // word address
//	e.BeginRead()       // repeated START + address(R)
//	b, _ := e.ReceiveNext()  // ACKed bytes
//	b, _ = e.ReceiveLast()   // NACK + STOP requested before the byte lands
//	e.AwaitStop()       // STOP is on the wire
//
// and ReadBlock, which runs the whole sequence. Every wait is a busy poll on
// a controller status bit. By default the waits are unbounded, as on the
// bare hardware; Config.PollBudget and Config.Timeout turn a stuck bus into
// errcode.BusTimeout instead.
//
// The Engine is not safe for concurrent use. Owner serialises whole
// transactions when several goroutines share one controller.
package at24

import (
	"time"

	"eepromcode-go/errcode"
	"eepromcode-go/usci"
	"eepromcode-go/x/conv"
)

// DefaultTarget is the 7-bit address of an AT24C16, block 0.
const DefaultTarget = usci.DefaultTarget

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Target is the 7-bit address programmed at bring-up. Defaults to 0x50.
	// The engine only records it; SetTarget changes it.
	Target uint8
	// PollBudget bounds the number of status polls per wait. 0 = unbounded.
	PollBudget uint32
	// Timeout bounds the wall-clock time per wait. 0 = unbounded.
	Timeout time.Duration
	// CheckNACK inspects UCNACKIFG after each address and data phase and
	// reports errcode.AddrNACK / errcode.DataNACK. When false a NACKing
	// target is indistinguishable from success.
	CheckNACK bool
}

// Engine drives one controller through random-read transactions.
type Engine struct {
	c      usci.Controller
	cfg    Config
	phase  Phase
	target uint8
}

// New creates an engine on a controller that has already been through
// usci.Configure. It does not touch the hardware.
func New(c usci.Controller, cfg Config) *Engine {
	if cfg.Target == 0 {
		cfg.Target = DefaultTarget
	}
	return &Engine{c: c, cfg: cfg, target: cfg.Target}
}

// Phase returns the current transaction phase.
func (e *Engine) Phase() Phase { return e.phase }

// Target returns the 7-bit address transactions are sent to.
func (e *Engine) Target() uint8 { return e.target }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Reset forgets the current phase. Call it only after the controller has been
// reset externally, e.g. following errcode.BusTimeout.
func (e *Engine) Reset() { e.phase = PhaseIdle }

// SetTarget reprograms the target address. The controller must implement
// usci.Targeter and the engine must be idle.
func (e *Engine) SetTarget(addr uint8) error {
	const op = "at24.SetTarget"
	if err := e.expect(op, PhaseIdle); err != nil {
		return err
	}
	if addr > 0x7F {
		return errcode.New(errcode.InvalidParams, op, "not a 7-bit address")
	}
	t, ok := e.c.(usci.Targeter)
	if !ok {
		return errcode.New(errcode.Unsupported, op, "controller cannot be retargeted")
	}
	t.SetTarget(uint16(addr))
	e.target = addr
	return nil
}

// BeginWrite issues START with the target address in transmit direction and
// waits for the address phase to finish.
func (e *Engine) BeginWrite() error {
	const op = "at24.BeginWrite"
	if err := e.expect(op, PhaseIdle); err != nil {
		return err
	}
	if usci.Pending(e.c) {
		return errcode.New(errcode.WrongPhase, op, "START or STOP still pending")
	}
	e.c.SetCtl1(usci.UCTR | usci.UCTXSTT)
	if err := e.waitCtl1Clear(op, usci.UCTXSTT); err != nil {
		return err
	}
	e.phase = PhaseAddressedWrite
	return e.checkNACK(op, errcode.AddrNACK)
}

// SendByte transmits v and returns once it has been clocked out. TXIFG is
// awaited twice: once to admit the byte, once after it left the shifter.
func (e *Engine) SendByte(v byte) error {
	const op = "at24.SendByte"
	if err := e.expect(op, PhaseAddressedWrite); err != nil {
		return err
	}
	if err := e.waitFlag(op, usci.UCB0TXIFG); err != nil {
		return err
	}
	e.c.WriteTX(v)
	if err := e.waitFlag(op, usci.UCB0TXIFG); err != nil {
		return err
	}
	e.phase = PhaseWordAddrSent
	return e.checkNACK(op, errcode.DataNACK)
}

// BeginRead switches to receive and issues a repeated START, then waits for
// the read address phase to finish.
func (e *Engine) BeginRead() error {
	const op = "at24.BeginRead"
	if err := e.expect(op, PhaseWordAddrSent); err != nil {
		return err
	}
	if usci.Pending(e.c) {
		return errcode.New(errcode.WrongPhase, op, "START or STOP still pending")
	}
	e.c.ClearCtl1(usci.UCTR)
	e.c.SetCtl1(usci.UCTXSTT)
	if err := e.waitCtl1Clear(op, usci.UCTXSTT); err != nil {
		return err
	}
	e.phase = PhaseAddressedRead
	return e.checkNACK(op, errcode.AddrNACK)
}

// ReceiveNext returns the next byte of a burst. The controller ACKs it.
func (e *Engine) ReceiveNext() (byte, error) {
	const op = "at24.ReceiveNext"
	if err := e.expect(op, PhaseAddressedRead); err != nil {
		return 0, err
	}
	if err := e.waitFlag(op, usci.UCB0RXIFG); err != nil {
		return 0, err
	}
	return e.c.ReadRX(), nil
}

// ReceiveLast returns the final byte of a burst. STOP is requested before
// the byte arrives so the controller answers it with NACK and then releases
// the bus.
func (e *Engine) ReceiveLast() (byte, error) {
	const op = "at24.ReceiveLast"
	if err := e.expect(op, PhaseAddressedRead); err != nil {
		return 0, err
	}
	e.c.SetCtl1(usci.UCTXSTP)
	if err := e.waitFlag(op, usci.UCB0RXIFG); err != nil {
		return 0, err
	}
	b := e.c.ReadRX()
	e.phase = PhaseStopPending
	return b, nil
}

// AwaitStop waits until the controller reports STOP on the wire.
func (e *Engine) AwaitStop() error {
	const op = "at24.AwaitStop"
	if err := e.expect(op, PhaseStopPending); err != nil {
		return err
	}
	if err := e.waitCtl1Clear(op, usci.UCTXSTP); err != nil {
		return err
	}
	e.phase = PhaseIdle
	return nil
}

// Stop ends a transaction that has not reached ReceiveLast.
func (e *Engine) Stop() error {
	const op = "at24.Stop"
	if err := e.expect(op, PhaseAddressedWrite, PhaseWordAddrSent, PhaseAddressedRead); err != nil {
		return err
	}
	e.c.SetCtl1(usci.UCTXSTP)
	if err := e.waitCtl1Clear(op, usci.UCTXSTP); err != nil {
		return err
	}
	// A byte clocked in behind the STOP is discarded.
	if e.c.Flags()&usci.UCB0RXIFG != 0 {
		_ = e.c.ReadRX()
	}
	e.phase = PhaseIdle
	return nil
}

// Abort releases the bus from whatever state a failed transaction left it
// in: STOP is requested if the bus is still held, a stray received byte is
// discarded and UCNACKIFG is cleared. The engine is Idle afterwards even when
// STOP never appears; that case returns errcode.BusTimeout and the
// controller needs an external reset.
func (e *Engine) Abort() error {
	const op = "at24.Abort"
	defer e.Reset()
	if e.c.Stat()&usci.UCBBUSY != 0 && e.c.Ctl1()&usci.UCTXSTP == 0 {
		e.c.SetCtl1(usci.UCTXSTP)
	}
	if err := e.waitCtl1Clear(op, usci.UCTXSTT|usci.UCTXSTP); err != nil {
		return err
	}
	if e.c.Flags()&usci.UCB0RXIFG != 0 {
		_ = e.c.ReadRX()
	}
	e.c.ClearStat(usci.UCNACKIFG)
	return nil
}

// ReadBlock reads len(buf) bytes starting at word address word. It returns
// once STOP has been sent.
func (e *Engine) ReadBlock(word uint8, buf []byte) error {
	if len(buf) == 0 {
		return errcode.New(errcode.InvalidParams, "at24.ReadBlock", "empty buffer")
	}
	if err := e.BeginWrite(); err != nil {
		return err
	}
	if err := e.SendByte(word); err != nil {
		return err
	}
	if err := e.BeginRead(); err != nil {
		return err
	}
	last := len(buf) - 1
	for i := 0; i < last; i++ {
		b, err := e.ReceiveNext()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	b, err := e.ReceiveLast()
	if err != nil {
		return err
	}
	buf[last] = b
	return e.AwaitStop()
}

func (e *Engine) expect(op string, want ...Phase) error {
	for _, p := range want {
		if e.phase == p {
			return nil
		}
	}
	return errcode.New(errcode.WrongPhase, op, "phase "+e.phase.String())
}

// checkNACK closes the transaction and reports c if the last phase was not
// acknowledged. It is a no-op unless Config.CheckNACK is set.
func (e *Engine) checkNACK(op string, c errcode.Code) error {
	if !e.cfg.CheckNACK || e.c.Stat()&usci.UCNACKIFG == 0 {
		return nil
	}
	e.c.SetCtl1(usci.UCTXSTP)
	err := e.waitCtl1Clear(op, usci.UCTXSTP)
	e.c.ClearStat(usci.UCNACKIFG)
	if err != nil {
		return err
	}
	e.phase = PhaseIdle
	var hb [2]byte
	return errcode.New(c, op, "target 0x"+string(conv.U8Hex(hb[:], e.target)))
}
