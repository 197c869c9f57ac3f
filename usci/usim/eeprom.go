package usim

// EEPROM models a 24Cxx serial EEPROM on the bus. Parts larger than 256
// bytes answer on consecutive 7-bit addresses, one per 256-byte block, with
// the block number folded into the low address bits.
type EEPROM struct {
	// Base is the 7-bit address of block 0.
	Base uint8
	// Mem is the array; its length is the part size.
	Mem []byte
	// RejectWord makes the part NACK the word address byte.
	RejectWord bool

	ptr       uint // internal address counter
	wantWord  bool // next written byte is the word address
	blockBase uint // block selected by the last address phase
}

// NewEEPROM returns a part of the given size filled with 0xFF (erased).
func NewEEPROM(base uint8, size int) *EEPROM {
	e := &EEPROM{Base: base, Mem: make([]byte, size)}
	for i := range e.Mem {
		e.Mem[i] = 0xFF
	}
	return e
}

// Load copies b into the array starting at off.
func (e *EEPROM) Load(off int, b []byte) {
	copy(e.Mem[off:], b)
}

func (e *EEPROM) blocks() uint {
	n := uint(len(e.Mem)+255) / 256
	if n == 0 {
		return 1
	}
	return n
}

// address handles the address byte; it returns the ack level.
func (e *EEPROM) address(addr uint8, read bool) bool {
	if addr < e.Base || uint(addr-e.Base) >= e.blocks() {
		return false
	}
	e.blockBase = uint(addr-e.Base) << 8
	e.wantWord = !read
	return true
}

// write handles a data byte from the master.
func (e *EEPROM) write(b byte) bool {
	if e.wantWord {
		if e.RejectWord {
			return false
		}
		e.ptr = e.blockBase | uint(b)
		e.wantWord = false
		return true
	}
	// Array writes are not modelled.
	return true
}

// next returns the byte at the address counter and advances it, rolling
// over at the end of the array.
func (e *EEPROM) next() byte {
	if len(e.Mem) == 0 {
		return 0xFF
	}
	e.ptr %= uint(len(e.Mem))
	b := e.Mem[e.ptr]
	e.ptr = (e.ptr + 1) % uint(len(e.Mem))
	return b
}
