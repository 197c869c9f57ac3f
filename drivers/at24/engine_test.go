package at24

import (
	"bytes"
	"testing"
	"time"

	"eepromcode-go/errcode"
	"eepromcode-go/usci"
	"eepromcode-go/usci/usim"
)

// newSimBus returns a configured simulated controller with an AT24C16 whose
// 0xE0..0xE2 hold 11 22 33.
func newSimBus(t *testing.T, tm usim.Timing, b usci.BringUp) *usim.Controller {
	t.Helper()
	dev := usim.NewEEPROM(0x50, 2048)
	dev.Load(0xE0, []byte{0x11, 0x22, 0x33})
	c := usim.New(dev, tm)
	if err := usci.Configure(c, b); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return c
}

// requireClean fails the test if the controller saw a protocol violation or
// the bus is still held.
func requireClean(t *testing.T, c *usim.Controller) {
	t.Helper()
	if v := c.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
	if !c.Idle() {
		t.Fatalf("bus left busy: %+v", c.Registers())
	}
}

func wantCode(t *testing.T, err error, want errcode.Code) {
	t.Helper()
	if got := errcode.Of(err); got != want {
		t.Fatalf("expected %s, got %v", want, err)
	}
}

func wantPhase(t *testing.T, e *Engine, want Phase) {
	t.Helper()
	if e.Phase() != want {
		t.Fatalf("phase = %s, want %s", e.Phase(), want)
	}
}

func wantTrace(t *testing.T, got, want usim.Trace) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("trace\n got %v\nwant %v", got, want)
	}
}

func TestReadBlockPhaseSequence(t *testing.T) {
	for _, word := range []uint8{0x00, 0x7F, 0xE0, 0xFE} {
		for n := 1; n <= 6; n++ {
			c := newSimBus(t, usim.Timing{}, usci.BringUp{})
			e := New(c, Config{})

			buf := make([]byte, n)
			if err := e.ReadBlock(word, buf); err != nil {
				t.Fatalf("word %#02x n %d: %v", word, n, err)
			}
			wantPhase(t, e, PhaseIdle)
			requireClean(t, c)

			tr := c.TakeTrace()
			if len(tr) != n+4 {
				t.Fatalf("word %#02x n %d: %d events: %v", word, n, len(tr), tr)
			}
			head := usim.Trace{
				{Kind: usim.EvStart, Addr: 0x50, Ack: true},
				{Kind: usim.EvWrite, B: word, Ack: true},
				{Kind: usim.EvRepeatedStart, Addr: 0x50, Read: true, Ack: true},
			}
			wantTrace(t, tr[:3], head)
			for i := 0; i < n-1; i++ {
				if ev := tr[3+i]; ev.Kind != usim.EvRead || !ev.Ack {
					t.Fatalf("intermediate byte %d: %v", i, ev)
				}
			}
			if ev := tr[n+2]; ev.Kind != usim.EvRead || ev.Ack {
				t.Fatalf("final byte must be NACKed: %v", ev)
			}
			if tr[n+3].Kind != usim.EvStop {
				t.Fatalf("last event %v, want STOP", tr[n+3])
			}

			if tr.Count(usim.EvStart) != 1 || tr.Count(usim.EvWrite) != 1 ||
				tr.Count(usim.EvRepeatedStart) != 1 || tr.Count(usim.EvStop) != 1 {
				t.Fatalf("condition counts wrong: %v", tr)
			}
			if tr.Reads(true) != n-1 || tr.Reads(false) != 1 {
				t.Fatalf("ack counts wrong: %d acked, %d nacked", tr.Reads(true), tr.Reads(false))
			}
			if !bytes.Equal(buf, tr.Bytes()) {
				t.Fatalf("buffer %X, bus carried %X", buf, tr.Bytes())
			}
		}
	}
}

func TestReadBlockContent(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{})

	buf := make([]byte, 3)
	if err := e.ReadBlock(0xE0, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0x11, 0x22, 0x33}) {
		t.Fatalf("read % X", buf)
	}

	// 0xE0, 0xE1 only, as in the two-byte bring-up step.
	two := make([]byte, 2)
	if err := e.ReadBlock(0xE0, two); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(two, []byte{0x11, 0x22}) {
		t.Fatalf("read % X", two)
	}
	requireClean(t, c)
}

func TestReadBlockSingleByte(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{})

	var b [1]byte
	if err := e.ReadBlock(0xE1, b[:]); err != nil {
		t.Fatal(err)
	}
	if b[0] != 0x22 {
		t.Fatalf("read %#02x, want 0x22", b[0])
	}

	tr := c.TakeTrace()
	if tr.Reads(true) != 0 || tr.Reads(false) != 1 {
		t.Fatalf("single byte must be one NACKed read: %v", tr)
	}
	if tr[len(tr)-1].Kind != usim.EvStop {
		t.Fatalf("no STOP at the end: %v", tr)
	}
	requireClean(t, c)
}

func TestReadBlockIsRepeatable(t *testing.T) {
	c := newSimBus(t, usim.Timing{Address: 3, Byte: 2, Stop: 5}, usci.BringUp{})
	e := New(c, Config{})

	a := make([]byte, 4)
	if err := e.ReadBlock(0xE0, a); err != nil {
		t.Fatal(err)
	}
	first := c.TakeTrace()
	if !c.Idle() {
		t.Fatal("bus busy between reads")
	}

	b := make([]byte, 4)
	if err := e.ReadBlock(0xE0, b); err != nil {
		t.Fatal(err)
	}
	second := c.TakeTrace()

	wantTrace(t, second, first)
	if !bytes.Equal(a, b) {
		t.Fatalf("reads differ: % X vs % X", a, b)
	}
	requireClean(t, c)
}

func TestReadBlockWaitsForStop(t *testing.T) {
	c := newSimBus(t, usim.Timing{Stop: 40}, usci.BringUp{})
	e := New(c, Config{})

	// Drive the phases by hand: the final byte is ready long before STOP.
	for _, step := range []func() error{e.BeginWrite, func() error { return e.SendByte(0xE0) }, e.BeginRead} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	b, err := e.ReceiveLast()
	if err != nil {
		t.Fatal(err)
	}
	if b != 0x11 {
		t.Fatalf("read %#02x, want 0x11", b)
	}
	wantPhase(t, e, PhaseStopPending)
	if c.Registers().Ctl1&usci.UCTXSTP == 0 {
		t.Fatal("STOP should still be pending")
	}
	if err := e.AwaitStop(); err != nil {
		t.Fatal(err)
	}
	if c.Registers().Ctl1&usci.UCTXSTP != 0 {
		t.Fatal("AwaitStop returned with STOP pending")
	}
	c.TakeTrace()

	// ReadBlock must not return before the same bit clears.
	buf := make([]byte, 3)
	if err := e.ReadBlock(0xE0, buf); err != nil {
		t.Fatal(err)
	}
	if c.Registers().Ctl1&usci.UCTXSTP != 0 {
		t.Fatal("ReadBlock returned with STOP pending")
	}
	if tr := c.Trace(); tr[len(tr)-1].Kind != usim.EvStop {
		t.Fatalf("no STOP at the end: %v", tr)
	}
	requireClean(t, c)
}

func TestPrimitivesRejectWrongPhase(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{})

	wrong := func(err error) {
		t.Helper()
		wantCode(t, err, errcode.WrongPhase)
	}
	wrong(e.SendByte(0))
	wrong(e.BeginRead())
	_, err := e.ReceiveNext()
	wrong(err)
	_, err = e.ReceiveLast()
	wrong(err)
	wrong(e.AwaitStop())
	wrong(e.Stop())
	if tr := c.Trace(); len(tr) != 0 {
		t.Fatalf("rejected calls touched the bus: %v", tr)
	}

	if err := e.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	wrong(e.BeginWrite())
	wrong(e.BeginRead())
	wrong(e.SetTarget(0x51))
	if err := e.SendByte(0xE0); err != nil {
		t.Fatal(err)
	}
	wrong(e.SendByte(0xE1))
	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	requireClean(t, c)

	wantCode(t, e.ReadBlock(0, nil), errcode.InvalidParams)
}

func TestBeginReadRejectsPendingCondition(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{})

	if err := e.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	if err := e.SendByte(0xE0); err != nil {
		t.Fatal(err)
	}

	// Something else requested STOP and the bus has not finished it.
	c.Freeze(true)
	c.SetCtl1(usci.UCTXSTP)
	wantCode(t, e.BeginRead(), errcode.WrongPhase)
	wantPhase(t, e, PhaseWordAddrSent)

	// The raw controller flags the same request as a violation.
	c.SetCtl1(usci.UCTXSTT)
	if len(c.Violations()) == 0 {
		t.Fatal("START over a pending STOP not recorded")
	}
}

func TestBusTimeout(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	c.Freeze(true)

	e := New(c, Config{PollBudget: 50})
	before := c.Polls()
	wantCode(t, e.BeginWrite(), errcode.BusTimeout)
	wantPhase(t, e, PhaseIdle)
	if n := c.Polls() - before; n > 51 {
		t.Fatalf("%d polls for a budget of 50", n)
	}

	e = New(c, Config{Timeout: 5 * time.Millisecond})
	e.phase = PhaseAddressedRead
	start := time.Now()
	_, err := e.ReceiveNext()
	wantCode(t, err, errcode.BusTimeout)
	if d := time.Since(start); d >= time.Second {
		t.Fatalf("timeout took %s", d)
	}

	e.Reset()
	wantPhase(t, e, PhaseIdle)
}

func TestAbortReleasesBus(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{Target: 0x60, PollBudget: 200})
	if err := e.SetTarget(0x60); err != nil {
		t.Fatal(err)
	}

	// Nobody at 0x60 and NACKs unchecked: the read side times out.
	wantCode(t, e.ReadBlock(0xE0, make([]byte, 2)), errcode.BusTimeout)
	wantPhase(t, e, PhaseAddressedRead)
	if err := e.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	wantPhase(t, e, PhaseIdle)
	if c.Registers().Stat&usci.UCNACKIFG != 0 {
		t.Fatal("UCNACKIFG left set")
	}

	// Mid-transaction, the bus is still held and Abort sends STOP.
	if err := e.SetTarget(0x50); err != nil {
		t.Fatal(err)
	}
	c.TakeTrace()
	if err := e.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	if err := e.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	wantTrace(t, c.TakeTrace(), usim.Trace{
		{Kind: usim.EvStart, Addr: 0x50, Ack: true},
		{Kind: usim.EvStop},
	})

	buf := make([]byte, 3)
	if err := e.ReadBlock(0xE0, buf); err != nil {
		t.Fatalf("read after Abort: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x11, 0x22, 0x33}) {
		t.Fatalf("read % X", buf)
	}
	requireClean(t, c)
}

func TestAbortOnStuckBus(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{PollBudget: 20})
	if err := e.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	c.Freeze(true)
	wantCode(t, e.Abort(), errcode.BusTimeout)
	wantPhase(t, e, PhaseIdle)
}

func TestAddressNACK(t *testing.T) {
	// Nothing answers at 0x60.
	c := newSimBus(t, usim.Timing{}, usci.BringUp{Target: 0x60})
	e := New(c, Config{Target: 0x60, CheckNACK: true})

	err := e.ReadBlock(0xE0, make([]byte, 2))
	wantCode(t, err, errcode.AddrNACK)
	if !errcode.IsNACK(err) {
		t.Fatal("IsNACK false for an address NACK")
	}
	wantPhase(t, e, PhaseIdle)
	if c.Registers().Stat&usci.UCNACKIFG != 0 {
		t.Fatal("UCNACKIFG left set")
	}

	wantTrace(t, c.TakeTrace(), usim.Trace{
		{Kind: usim.EvStart, Addr: 0x60},
		{Kind: usim.EvStop},
	})
	requireClean(t, c)
}

func TestAddressNACKIgnoredByDefault(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{Target: 0x60})
	e := New(c, Config{Target: 0x60, PollBudget: 200})

	// Write side carries on regardless; the read side never sees a byte.
	wantCode(t, e.ReadBlock(0xE0, make([]byte, 1)), errcode.BusTimeout)
	wantPhase(t, e, PhaseAddressedRead)

	tr := c.Trace()
	if tr[0].Kind != usim.EvStart || tr[0].Ack {
		t.Fatalf("first event %v, want unacknowledged START", tr[0])
	}
	if tr[2].Kind != usim.EvRepeatedStart || tr[2].Ack {
		t.Fatalf("third event %v, want unacknowledged repeated START", tr[2])
	}
}

func TestDataNACK(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	c.Device().RejectWord = true
	e := New(c, Config{CheckNACK: true})

	wantCode(t, e.ReadBlock(0xE0, make([]byte, 3)), errcode.DataNACK)
	wantPhase(t, e, PhaseIdle)
	wantTrace(t, c.TakeTrace(), usim.Trace{
		{Kind: usim.EvStart, Addr: 0x50, Ack: true},
		{Kind: usim.EvWrite, B: 0xE0},
		{Kind: usim.EvStop},
	})
	requireClean(t, c)
}

func TestStopClosesEachPhase(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	e := New(c, Config{})

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	// START + address(W), then STOP.
	must(e.BeginWrite())
	must(e.Stop())
	wantTrace(t, c.TakeTrace(), usim.Trace{
		{Kind: usim.EvStart, Addr: 0x50, Ack: true},
		{Kind: usim.EvStop},
	})

	// + word address.
	must(e.BeginWrite())
	must(e.SendByte(0xE0))
	must(e.Stop())
	if n := c.TakeTrace().Count(usim.EvWrite); n != 1 {
		t.Fatalf("%d data bytes written, want 1", n)
	}

	// + repeated START + address(R); the byte already in flight is NACKed.
	must(e.BeginWrite())
	must(e.SendByte(0xE0))
	must(e.BeginRead())
	must(e.Stop())
	tr := c.TakeTrace()
	if tr.Count(usim.EvRepeatedStart) != 1 || tr.Reads(false) != 1 || tr[len(tr)-1].Kind != usim.EvStop {
		t.Fatalf("unexpected trace %v", tr)
	}

	wantPhase(t, e, PhaseIdle)
	requireClean(t, c)
}

func TestSetTargetSelectsBlock(t *testing.T) {
	c := newSimBus(t, usim.Timing{}, usci.BringUp{})
	c.Device().Load(0x1E0, []byte{0xA1, 0xA2})
	e := New(c, Config{})

	if err := e.SetTarget(0x51); err != nil {
		t.Fatal(err)
	}
	if e.Target() != 0x51 {
		t.Fatalf("Target() = %#02x", e.Target())
	}
	buf := make([]byte, 2)
	if err := e.ReadBlock(0xE0, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0xA1, 0xA2}) {
		t.Fatalf("read % X from block 1", buf)
	}
	if got := c.Registers().Target; got != 0x51 {
		t.Fatalf("I2CSA = %#02x", got)
	}

	wantCode(t, e.SetTarget(0x80), errcode.InvalidParams)
	requireClean(t, c)
}

func TestPhaseString(t *testing.T) {
	names := map[Phase]string{
		PhaseIdle:           "idle",
		PhaseAddressedWrite: "addressed_write",
		PhaseWordAddrSent:   "word_addr_sent",
		PhaseAddressedRead:  "addressed_read",
		PhaseStopPending:    "stop_pending",
		Phase(42):           "unknown",
	}
	for p, want := range names {
		if p.String() != want {
			t.Errorf("Phase(%d) = %q, want %q", p, p.String(), want)
		}
	}
}
