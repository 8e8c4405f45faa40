// Package arch describes the register-name tables and pointer width the CPU
// and ABI need from a target architecture. Producing these tables for a
// given binary (disassembling it, naming its registers) is out of scope for
// this module; arch only carries the conventions, the way the reference
// codebase's latency tables carry timing conventions without owning
// decoding.
package arch

import "github.com/openreil/reilvm/reil"

// Description names the registers and pointer width a CPU/ABI pairing needs.
// Register names are matched case-insensitively and canonicalized by the
// register file; Description itself stores them in whatever case is
// convenient to read.
type Description struct {
	// PointerWidth is the architecture's pointer size in bytes (4 for x86,
	// 8 for x86-64).
	PointerWidth int

	// General lists the architecturally visible general-purpose registers.
	General []string

	// Flags lists the architecturally visible flag registers.
	Flags []string

	// IP is the instruction pointer register name.
	IP string

	// SP is the stack pointer register name.
	SP string

	// Accum is the register ABI.Stdcall reads the return value from.
	Accum string

	// FastCallArgs names the first two integer argument registers used by
	// the ms_fastcall convention, in order.
	FastCallArgs [2]string
}

// PointerTag returns the reil.Width that matches PointerWidth, for callers
// (the ABI, mainly) that need to read or write a pointer-sized value
// through the register file or memory.
func (d Description) PointerTag() reil.Width {
	switch d.PointerWidth {
	case 1:
		return reil.U8
	case 2:
		return reil.U16
	case 8:
		return reil.U64
	default:
		return reil.U32
	}
}

// X86 is the default 32-bit x86 architecture description, sufficient for the
// calling-convention tests and for callers that don't need a custom table.
var X86 = Description{
	PointerWidth: 4,
	General:      []string{"eax", "ebx", "ecx", "edx", "esi", "edi", "ebp", "esp"},
	Flags:        []string{"cf", "pf", "af", "zf", "sf", "of"},
	IP:           "eip",
	SP:           "esp",
	Accum:        "eax",
	FastCallArgs: [2]string{"ecx", "edx"},
}
