// Package reiltest provides a minimal in-memory reil.Storage/reil.Reader
// double for exercising the emu package's execution core without a real
// lifter or disassembler, neither of which is in scope for this module.
package reiltest

import (
	"fmt"

	"github.com/openreil/reilvm/reil"
)

// Storage is a fixed, hand-built REIL code store plus a byte-addressable
// data image, used by emu's tests to play the part of a real lifted binary.
type Storage struct {
	insns map[uint64][]reil.Instruction
	mem   map[uint64]byte
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{
		insns: make(map[uint64][]reil.Instruction),
		mem:   make(map[uint64]byte),
	}
}

// Add registers insns as the REIL expansion of the native instruction at
// addr.
func (s *Storage) Add(addr uint64, insns ...reil.Instruction) {
	s.insns[addr] = insns
}

// GetInsn implements reil.Storage.
func (s *Storage) GetInsn(addr uint64) ([]reil.Instruction, error) {
	insns, ok := s.insns[addr]
	if !ok {
		return nil, fmt.Errorf("reiltest: no instructions recorded at 0x%x", addr)
	}
	return insns, nil
}

// SetBytes installs data as readable bytes starting at addr, for tests
// where executing code also reads itself (or other image data) via
// Memory's demand-fill.
func (s *Storage) SetBytes(addr uint64, data []byte) {
	for i, b := range data {
		s.mem[addr+uint64(i)] = b
	}
}

// Read implements reil.Reader.
func (s *Storage) Read(addr uint64, nbytes int) ([]byte, bool) {
	out := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		b, ok := s.mem[addr+uint64(i)]
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// Reader implements reil.ReaderStorage.
func (s *Storage) Reader() reil.Reader {
	return s
}
