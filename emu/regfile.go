// Package emu implements the REIL execution core: the register file, the
// arithmetic/logic evaluator, sparse memory, the CPU run loop, the stack
// helper, and the ABI calling-convention façade built on top of them.
package emu

import "strings"

// Register is a single named storage cell. Value is always kept
// zero-extended to 64 bits; the width a given read/write observes comes
// from the Operand referencing the register, not from the register itself.
type Register struct {
	Name   string
	Value  uint64
	IsTemp bool
}

// RegisterFile is the named register store for a CPU. It holds two disjoint
// subsets distinguished by name prefix: R_* registers persist across native
// instructions, V_* registers are scratch space scoped to a single native
// instruction and are dropped by ResetTemp at the end of each one.
type RegisterFile struct {
	regs map[string]*Register
}

// NewRegisterFile creates an empty register file. Registers are created
// lazily on first reference (via Reg), not up front.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{regs: make(map[string]*Register)}
}

// canonicalName upper-cases name and, if it doesn't already carry the R_/V_
// convention, prefixes it according to isTemp. The prefix already present on
// a name is authoritative: Reg("v_foo", false) still yields a temp register.
func canonicalName(name string, isTemp bool) string {
	name = strings.ToUpper(name)
	if strings.HasPrefix(name, "R_") || strings.HasPrefix(name, "V_") {
		return name
	}
	if isTemp {
		return "V_" + name
	}
	return "R_" + name
}

// Reg looks up (or lazily creates) the register named name. On first
// reference the register is created with value val and temp-ness derived
// from the canonical name (the name's own R_/V_ prefix wins over isTemp if
// present). On subsequent calls val and isTemp are ignored and the existing
// register is returned — callers mutate Value directly on the pointer.
func (rf *RegisterFile) Reg(name string, val uint64, isTemp bool) *Register {
	canon := canonicalName(name, isTemp)
	if r, ok := rf.regs[canon]; ok {
		return r
	}
	r := &Register{Name: canon, Value: val, IsTemp: strings.HasPrefix(canon, "V_")}
	rf.regs[canon] = r
	return r
}

// Read is a convenience for Reg(name, 0, false).Value — reading a register
// never needs to specify a default or temp-ness since both only matter on
// first creation and persistent registers are the common case.
func (rf *RegisterFile) Read(name string) uint64 {
	return rf.Reg(name, 0, false).Value
}

// Write sets name's value, creating the register first if this is its
// first reference.
func (rf *RegisterFile) Write(name string, isTemp bool, val uint64) {
	rf.Reg(name, val, isTemp).Value = val
}

// Reset replaces the entire register set. If regs is non-nil, each entry is
// installed as a persistent register with that value; a nil map clears the
// file to empty.
func (rf *RegisterFile) Reset(regs map[string]uint64) {
	rf.regs = make(map[string]*Register, len(regs))
	for name, val := range regs {
		rf.Reg(name, val, false)
	}
}

// ResetTemp drops every V_* register, as the CPU does at the end of each
// native instruction's REIL expansion.
func (rf *RegisterFile) ResetTemp() {
	for name, r := range rf.regs {
		if r.IsTemp {
			delete(rf.regs, name)
		}
	}
}

// Snapshot returns a defensive copy of the persistent (R_*) registers keyed
// by canonical name, for callers and tests that want to inspect final state
// without holding a reference into the live register map.
func (rf *RegisterFile) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	for name, r := range rf.regs {
		if !r.IsTemp {
			out[name] = r.Value
		}
	}
	return out
}
