package reil

import "fmt"

// Instruction is a single REIL instruction belonging to the native
// instruction at Addr. Inum is its index within that native instruction's
// expansion (0-based).
//
// NextAddr is the address of the REIL instruction that follows this one
// when no branch is taken. The CPU never derives it itself — it is opaque,
// set by whatever produced the instruction list (Storage), since only the
// producer knows whether the next REIL index belongs to the same native
// instruction or the first index of the following one.
type Instruction struct {
	Addr     uint64
	Inum     uint8
	Op       Opcode
	A, B, C  Operand
	NextAddr uint64
}

// Next returns the fallthrough address, i.e. the address to fetch from when
// this instruction does not redirect control flow.
func (i Instruction) Next() uint64 {
	return i.NextAddr
}

// String renders the instruction for diagnostics, e.g. "41414141.00: I_ADD
// R_EAX:U32, R_ECX:U32, R_EAX:U32".
func (i Instruction) String() string {
	return fmt.Sprintf("%x.%02d: %v %v, %v, %v", i.Addr, i.Inum, i.Op, i.A, i.B, i.C)
}
