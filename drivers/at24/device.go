package at24

import (
	"context"
	"io"

	"eepromcode-go/errcode"
	"eepromcode-go/x/mathx"
)

const blockSize = 256 // bytes per 7-bit device address

// Part describes a 24Cxx array. Parts above 256 bytes fold the block number
// into the low bits of the device address.
type Part struct {
	Size int   // bytes
	Base uint8 // 7-bit address of block 0
}

var (
	AT24C02 = Part{Size: 256, Base: 0x50}
	AT24C04 = Part{Size: 512, Base: 0x50}
	AT24C08 = Part{Size: 1024, Base: 0x50}
	AT24C16 = Part{Size: 2048, Base: 0x50}
)

// BlockReader performs one random read. Owner implements it.
type BlockReader interface {
	ReadAt(ctx context.Context, target, word uint8, buf []byte) error
}

// DeviceConfig controls non-hardware behaviour. All fields are optional.
type DeviceConfig struct {
	// Part defaults to AT24C16.
	Part Part
	// MaxBurst caps the bytes per transaction. Default 255.
	MaxBurst int
}

// Device presents a 24Cxx array as io.ReaderAt and io.ReadSeeker.
type Device struct {
	r        BlockReader
	part     Part
	maxBurst int
	ctx      context.Context
	pos      int64
}

var (
	_ io.ReaderAt   = (*Device)(nil)
	_ io.ReadSeeker = (*Device)(nil)
)

// NewDevice creates a Device. It does not touch the bus.
func NewDevice(r BlockReader, cfg DeviceConfig) (*Device, error) {
	const op = "at24.NewDevice"
	p := cfg.Part
	if p.Size == 0 {
		p = AT24C16
	}
	if p.Size < 0 || (p.Size > blockSize && p.Size%blockSize != 0) {
		return nil, errcode.New(errcode.InvalidParams, op, "size must be a multiple of 256")
	}
	blocks := mathx.CeilDiv(uint(p.Size), blockSize)
	if p.Base > 0x7F || uint(p.Base)+blocks-1 > 0x7F {
		return nil, errcode.New(errcode.InvalidParams, op, "device address out of 7-bit range")
	}
	burst := cfg.MaxBurst
	if burst <= 0 {
		burst = 255
	}
	return &Device{
		r:        r,
		part:     p,
		maxBurst: mathx.Clamp(burst, 1, blockSize),
		ctx:      context.Background(),
	}, nil
}

// WithContext returns a shallow copy of d whose transactions use ctx.
func (d *Device) WithContext(ctx context.Context) *Device {
	c := *d
	c.ctx = ctx
	return &c
}

// Size returns the array size in bytes.
func (d *Device) Size() int64 { return int64(d.part.Size) }

// ReadAt reads len(p) bytes from offset off. Reads are split at block
// boundaries; fewer than len(p) bytes are returned with io.EOF at the end of
// the array.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errcode.New(errcode.InvalidParams, "at24.ReadAt", "negative offset")
	}
	size := d.Size()
	if off >= size {
		return 0, io.EOF
	}
	end := mathx.Min(off+int64(len(p)), size)

	n := 0
	for pos := off; pos < end; {
		word := int(pos % blockSize)
		chunk := mathx.Min(int(end-pos), blockSize-word)
		chunk = mathx.Min(chunk, d.maxBurst)
		target := d.part.Base + uint8(pos/blockSize)

		if err := d.r.ReadAt(d.ctx, target, uint8(word), p[n:n+chunk]); err != nil {
			return n, err
		}
		n += chunk
		pos += int64(chunk)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Read reads from the current position and advances it.
func (d *Device) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := d.ReadAt(p, d.pos)
	d.pos += int64(n)
	return n, err
}

// Seek sets the position for the next Read.
func (d *Device) Seek(offset int64, whence int) (int64, error) {
	const op = "at24.Seek"
	var np int64
	switch whence {
	case io.SeekStart:
		np = offset
	case io.SeekCurrent:
		np = d.pos + offset
	case io.SeekEnd:
		np = d.Size() + offset
	default:
		return d.pos, errcode.New(errcode.InvalidParams, op, "invalid whence")
	}
	if np < 0 {
		return d.pos, errcode.New(errcode.InvalidParams, op, "negative position")
	}
	if np > d.Size() {
		return d.pos, errcode.New(errcode.InvalidParams, op, "position beyond end of array")
	}
	d.pos = np
	return np, nil
}
