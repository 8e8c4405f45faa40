package emu

import (
	"errors"
	"fmt"
	"io"

	"github.com/openreil/reilvm/arch"
	"github.com/openreil/reilvm/reil"
)

// CpuReadError reports that the execution loop could not fetch a REIL
// expansion for an address — either because Storage has none, or (the
// expected, deliberate case) because the address is the sentinel return
// address a call was set up to terminate at.
type CpuReadError struct {
	Addr uint64
}

// Error implements error.
func (e *CpuReadError) Error() string {
	return fmt.Sprintf("reil: cpu fetch fault at 0x%x", e.Addr)
}

// CpuInstructionError reports an instruction this CPU doesn't know how to
// execute: an opcode outside the I_NONE..I_LT set, or a non-arithmetic
// opcode reaching the arithmetic dispatch path.
type CpuInstructionError struct {
	Addr uint64
	Inum uint8
}

// Error implements error.
func (e *CpuInstructionError) Error() string {
	return fmt.Sprintf("reil: invalid instruction at 0x%x.%02x", e.Addr, e.Inum)
}

// ErrInstructionLimitExceeded is returned by Run when it executes the
// configured limit of native instructions (see WithMaxInstructions and
// DefMaxInstructions) without the program faulting on its
// own. It guards a library caller against a REIL expansion that never
// reaches its sentinel return address.
var ErrInstructionLimitExceeded = errors.New("reil: instruction limit exceeded")

// DefMaxInstructions is the default cap Run places on the number of native
// instructions a single call executes, absent a WithMaxInstructions option.
const DefMaxInstructions = 1 << 20

// CPU is the REIL execution core: it drives an instruction stream fetched
// from a Storage, dispatching each REIL instruction to the register file,
// memory, or the arithmetic evaluator, and clears temp registers at the
// boundary between native instructions.
type CPU struct {
	Regs *RegisterFile
	Mem  *Memory

	arch arch.Description
	eval *Evaluator

	maxInstructions int
	trace           io.Writer
}

// CPUOption configures a CPU at construction time.
type CPUOption func(*CPU)

// WithMaxInstructions overrides the default native-instruction execution
// cap for Run. A limit of 0 disables the cap entirely.
func WithMaxInstructions(n int) CPUOption {
	return func(c *CPU) { c.maxInstructions = n }
}

// WithTrace makes Run write one line per native instruction boundary (its
// address) to w, for debugging a run gone wrong.
func WithTrace(w io.Writer) CPUOption {
	return func(c *CPU) { c.trace = w }
}

// NewCPU creates a CPU over the given register file, memory and
// architecture description.
func NewCPU(regs *RegisterFile, mem *Memory, a arch.Description, opts ...CPUOption) *CPU {
	c := &CPU{
		Regs:            regs,
		Mem:             mem,
		arch:            a,
		eval:            NewEvaluator(),
		maxInstructions: DefMaxInstructions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetIP reads the architecture's instruction pointer register.
func (c *CPU) GetIP() uint64 {
	return c.Regs.Read(c.arch.IP)
}

// SetIP writes the architecture's instruction pointer register.
func (c *CPU) SetIP(addr uint64) {
	c.Regs.Write(c.arch.IP, false, addr)
}

// arg resolves an operand to a concrete value: AConst is returned as-is,
// AReg/ATemp are read from the register file and repackaged as a constant
// at the operand's declared width, and ANone has no defined value.
func (c *CPU) arg(o reil.Operand) reil.Operand {
	switch o.Kind {
	case reil.AConst:
		return o
	case reil.AReg:
		return reil.Const(c.Regs.Reg(o.Name, 0, false).Value, o.Width)
	case reil.ATemp:
		return reil.Const(c.Regs.Reg(o.Name, 0, true).Value, o.Width)
	default:
		return reil.None()
	}
}

// setReg writes val into the register o names, honoring ATemp vs AReg.
func (c *CPU) setReg(o reil.Operand, val uint64) {
	c.Regs.Write(o.Name, o.Kind == reil.ATemp, o.Width.Truncate(val))
}

// execOne executes a single REIL instruction. It returns a non-nil branch
// target if the instruction is a taken I_JCC.
func (c *CPU) execOne(insn reil.Instruction) (*uint64, error) {
	switch insn.Op {
	case reil.INone:
		return nil, nil

	case reil.IJcc:
		cond := c.arg(insn.A)
		if cond.Value == 0 {
			return nil, nil
		}
		target := c.arg(insn.C)
		t := target.Value
		return &t, nil

	case reil.IStm:
		addr := c.arg(insn.C)
		val := c.arg(insn.A)
		if err := c.Mem.Write(addr.Value, val.Width, val.Value); err != nil {
			return nil, err
		}
		return nil, nil

	case reil.ILdm:
		addr := c.arg(insn.A)
		val, err := c.Mem.Read(addr.Value, insn.C.Width)
		if err != nil {
			return nil, err
		}
		c.setReg(insn.C, val)
		return nil, nil

	default:
		if !insn.Op.IsArithmetic() {
			return nil, &CpuInstructionError{Addr: insn.Addr, Inum: insn.Inum}
		}
		a, b := c.arg(insn.A), c.arg(insn.B)
		res, err := c.eval.Eval(insn.Op, insn.C.Width, a, b)
		if err != nil {
			return nil, err
		}
		c.setReg(insn.C, res)
		return nil, nil
	}
}

// Run drives execution from startAddr until Storage can no longer supply
// an expansion for the current instruction pointer — the expected way a
// call ends, by reaching a sentinel address Storage deliberately has no
// code for — or until an error or the instruction limit cuts it short.
func (c *CPU) Run(storage reil.Storage, startAddr uint64) error {
	c.SetIP(startAddr)

	for i := 0; c.maxInstructions == 0 || i < c.maxInstructions; i++ {
		addr := c.GetIP()
		if c.trace != nil {
			fmt.Fprintf(c.trace, "%#x\n", addr)
		}

		insns, err := storage.GetInsn(addr)
		if err != nil {
			return &CpuReadError{Addr: addr}
		}

		// IP tracks whichever address comes next after every single REIL
		// step, branch or fallthrough, so external inspection mid-list
		// always sees the address about to execute — not just the address
		// the native instruction as a whole lands on.
		for _, insn := range insns {
			branch, err := c.execOne(insn)
			if err != nil {
				return err
			}
			if branch != nil {
				c.SetIP(*branch)
				break
			}
			c.SetIP(insn.Next())
		}
		c.Regs.ResetTemp()
	}

	return ErrInstructionLimitExceeded
}
