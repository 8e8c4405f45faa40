package emu

import (
	"fmt"

	"github.com/openreil/reilvm/reil"
)

// DefAllocBase is the default base address Memory's bump allocator starts
// handing out addresses from, chosen well clear of the low address range a
// loaded image typically occupies.
const DefAllocBase uint64 = 0x11000000

// MemReadError reports a read from an address Memory has no byte for and,
// if a Reader is attached, that the Reader also could not supply.
type MemReadError struct {
	Addr uint64
}

// Error implements error.
func (e *MemReadError) Error() string {
	return fmt.Sprintf("reil: read fault at 0x%x: address not mapped", e.Addr)
}

// MemWriteError reports a write rejected by strict-mode mapping checks: the
// address was neither already known to Memory nor confirmed mapped by the
// attached Reader.
type MemWriteError struct {
	Addr uint64
}

// Error implements error.
func (e *MemWriteError) Error() string {
	return fmt.Sprintf("reil: write fault at 0x%x: address not mapped", e.Addr)
}

// Memory is a sparse, byte-addressable address space. Bytes that have never
// been written, allocated or demand-filled simply don't exist in the map; reading one
// either demand-fills it from the attached Reader or faults.
//
// Two write policies are supported. In lenient mode, any write succeeds and
// implicitly maps the written address. In strict mode, a write to an
// address Memory has no record of is rejected unless the Reader confirms
// the address is mapped — but note that confirmation only licenses the
// write, it does not make Memory use the Reader's byte: the caller's value
// is what ends up stored, exactly as if the address had been unmapped and
// freshly allocated.
type Memory struct {
	data      map[uint64]byte
	reader    reil.Reader
	strict    bool
	allocLast uint64
}

// MemoryOption configures a Memory at construction time.
type MemoryOption func(*Memory)

// WithReader attaches a Reader that demand-fills reads (and licenses
// strict-mode writes) for addresses Memory has no byte of its own for.
func WithReader(r reil.Reader) MemoryOption {
	return func(m *Memory) { m.reader = r }
}

// WithStrictWrites switches Memory into strict write mode: see Memory's
// doc comment for exactly what that does and doesn't guarantee.
func WithStrictWrites() MemoryOption {
	return func(m *Memory) { m.strict = true }
}

// NewMemory creates an empty sparse Memory, lenient by default, with its
// bump allocator starting at DefAllocBase.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		data:      make(map[uint64]byte),
		allocLast: DefAllocBase,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// known reports whether addr has a byte recorded directly, without
// consulting the Reader.
func (m *Memory) known(addr uint64) bool {
	_, ok := m.data[addr]
	return ok
}

// ReadByte reads a single byte, demand-filling from the Reader (and caching
// the result) if Memory has no byte of its own for addr.
func (m *Memory) ReadByte(addr uint64) (byte, error) {
	if b, ok := m.data[addr]; ok {
		return b, nil
	}
	if m.reader != nil {
		if data, ok := m.reader.Read(addr, 1); ok && len(data) > 0 {
			m.data[addr] = data[0]
			return data[0], nil
		}
	}
	return 0, &MemReadError{Addr: addr}
}

// WriteByte writes a single byte, subject to the strict/lenient write
// policy described on Memory.
func (m *Memory) WriteByte(addr uint64, val byte) error {
	if m.strict && !m.known(addr) {
		if m.reader == nil {
			return &MemWriteError{Addr: addr}
		}
		if _, ok := m.reader.Read(addr, 1); !ok {
			return &MemWriteError{Addr: addr}
		}
	}
	m.data[addr] = val
	return nil
}

// Read loads width's byte length starting at addr, little-endian, returning
// the assembled value. It fails on the first byte that can't be supplied,
// leaving any bytes already cached in the demand-fill path in place.
func (m *Memory) Read(addr uint64, width reil.Width) (uint64, error) {
	n := width.ByteLen()
	var val uint64
	for i := 0; i < n; i++ {
		b, err := m.ReadByte(addr + uint64(i))
		if err != nil {
			return 0, err
		}
		val |= uint64(b) << (8 * uint(i))
	}
	return val, nil
}

// Write stores val's low width.ByteLen() bytes at addr, little-endian, via
// WriteBytes.
func (m *Memory) Write(addr uint64, width reil.Width, val uint64) error {
	n := width.ByteLen()
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		data[i] = byte(val >> (8 * uint(i)))
	}
	return m.WriteBytes(addr, data)
}

// WriteBytes writes data at addr in order, one byte at a time under the
// normal write policy, stopping at the first rejected byte.
func (m *Memory) WriteBytes(addr uint64, data []byte) error {
	for i, b := range data {
		if err := m.WriteByte(addr+uint64(i), b); err != nil {
			return err
		}
	}
	return nil
}

// Alloc bumps the allocator by size bytes, zero-fills the new region so
// every byte of it is known, and returns the region's base address.
func (m *Memory) Alloc(size uint64) uint64 {
	addr := m.allocLast
	m.allocLast += size
	for i := uint64(0); i < size; i++ {
		m.data[addr+i] = 0
	}
	return addr
}

// AllocAt marks size bytes starting at addr as known, zero-filling any byte
// of the range Memory doesn't already hold. Unlike Alloc, addr is supplied
// by the caller rather than drawn from the bump allocator — this is what
// lets a strict-mode Memory be told "this range exists" directly, without
// going through a Reader.
func (m *Memory) AllocAt(addr uint64, size uint64) uint64 {
	for i := uint64(0); i < size; i++ {
		if _, ok := m.data[addr+i]; !ok {
			m.data[addr+i] = 0
		}
	}
	return addr
}

// Read8 reads a single byte at addr. It is a thin alias over ReadByte for
// callers that think in terms of the typed load/store API's byte case.
func (m *Memory) Read8(addr uint64) (byte, error) {
	return m.ReadByte(addr)
}

// Write8 writes a single byte at addr. It is a thin alias over WriteByte
// for callers that think in terms of the typed load/store API's byte case.
func (m *Memory) Write8(addr uint64, val byte) error {
	return m.WriteByte(addr, val)
}

// AllocData allocates len(data) bytes and writes data into the new region,
// bypassing the write policy the way a freshly allocated, definitionally
// unmapped region always would.
func (m *Memory) AllocData(data []byte) uint64 {
	addr := m.Alloc(uint64(len(data)))
	for i, b := range data {
		m.data[addr+uint64(i)] = b
	}
	return addr
}

// Clear discards every byte Memory holds. It does not reset the bump
// allocator: addresses already handed out by Alloc/AllocData are never
// reused, even across a Clear.
func (m *Memory) Clear() {
	m.data = make(map[uint64]byte)
}
