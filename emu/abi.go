package emu

import (
	"errors"
	"fmt"

	"github.com/openreil/reilvm/reil"
)

// DummyRetAddr is the sentinel return address ABI calls push in place of a
// real caller. It is deliberately never mapped in Storage, so Run's fetch
// for it fails with a CpuReadError — the expected, successful end of a
// call, not a fault to propagate.
const DummyRetAddr uint64 = 0xcafebabe

// ABI marshals high-level calls — a target address and a list of
// arguments — into the register and stack state a given calling
// convention expects, runs the CPU to completion, and recovers the return
// value from the accumulator register. It owns no state of its own beyond
// a Stack convenience wrapper; all register and memory effects land on the
// CPU it was built with.
type ABI struct {
	cpu     *CPU
	stack   *Stack
	storage reil.Storage
}

// NewABI builds an ABI façade over cpu, fetching code from storage when a
// call runs.
func NewABI(cpu *CPU, storage reil.Storage) *ABI {
	return &ABI{cpu: cpu, stack: NewStack(cpu), storage: storage}
}

// Reset clears memory, replaces the entire register file with a fresh
// zeroed General/Flags/IP/SP set, and reinitializes the stack, giving each
// call a clean slate independent of whatever a previous call left behind —
// including any register outside that set a previous call happened to
// touch.
func (a *ABI) Reset() {
	a.cpu.Mem.Clear()

	initial := make(map[string]uint64, len(a.cpu.arch.General)+len(a.cpu.arch.Flags)+2)
	for _, name := range a.cpu.arch.General {
		initial[name] = 0
	}
	for _, name := range a.cpu.arch.Flags {
		initial[name] = 0
	}
	initial[a.cpu.arch.IP] = 0
	initial[a.cpu.arch.SP] = 0
	a.cpu.Regs.Reset(initial)

	a.stack.Reset()
}

// Buff allocates len(data) fresh bytes of memory, writes data into them,
// and returns the base address — for passing a byte buffer argument by
// reference.
func (a *ABI) Buff(data []byte) uint64 {
	return a.cpu.Mem.AllocData(data)
}

// String allocates s followed by four NUL bytes, returning the base
// address — for passing a C-style string argument by reference. Four
// terminator bytes, not one, so the same buffer is also valid as a
// wide-char string.
func (a *ABI) String(s string) uint64 {
	buf := append([]byte(s), 0, 0, 0, 0)
	return a.Buff(buf)
}

// resolveArgs turns a mixed argument list into plain register/stack-sized
// words, allocating memory for any string or byte-slice argument so its
// address can be passed instead of its contents.
func (a *ABI) resolveArgs(args []interface{}) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, v := range args {
		switch t := v.(type) {
		case string:
			out[i] = a.String(t)
		case []byte:
			out[i] = a.Buff(t)
		case uint64:
			out[i] = t
		case uint32:
			out[i] = uint64(t)
		case uint:
			out[i] = uint64(t)
		case int:
			out[i] = uint64(t)
		case int64:
			out[i] = uint64(t)
		default:
			return nil, fmt.Errorf("reil: unsupported abi argument type %T", v)
		}
	}
	return out, nil
}

// PushArgs pushes args onto the stack right-to-left, so the first argument
// ends up at the lowest address — the order every convention here agrees
// on for whichever arguments aren't passed in registers.
func (a *ABI) PushArgs(args []uint64) error {
	for i := len(args) - 1; i >= 0; i-- {
		if err := a.stack.Push(args[i]); err != nil {
			return err
		}
	}
	return nil
}

// run pushes DummyRetAddr as the return address, starts the CPU at target,
// and recovers the accumulator register if and only if execution ends by
// faulting on DummyRetAddr — any other outcome (a different fetch fault, an
// arithmetic or memory error, or the instruction limit) is returned as-is.
func (a *ABI) run(target uint64) (uint64, error) {
	if err := a.stack.Push(DummyRetAddr); err != nil {
		return 0, err
	}
	err := a.cpu.Run(a.storage, target)

	var readErr *CpuReadError
	if errors.As(err, &readErr) && readErr.Addr == DummyRetAddr {
		return a.cpu.Regs.Read(a.cpu.arch.Accum), nil
	}
	return 0, err
}

// Call invokes target with args passed entirely on the stack, the default
// convention for a target whose calling convention isn't otherwise known.
// It is equivalent to Stdcall.
func (a *ABI) Call(target uint64, args ...interface{}) (uint64, error) {
	return a.Stdcall(target, args...)
}

// Stdcall invokes target stdcall-style: every argument on the stack,
// first argument at the lowest address, callee responsible for cleanup
// (which, since the call never returns to real code, has no observable
// effect here beyond argument placement).
func (a *ABI) Stdcall(target uint64, args ...interface{}) (uint64, error) {
	a.Reset()
	words, err := a.resolveArgs(args)
	if err != nil {
		return 0, err
	}
	if err := a.PushArgs(words); err != nil {
		return 0, err
	}
	return a.run(target)
}

// Cdecl invokes target cdecl-style. Argument placement is identical to
// Stdcall; the two conventions only differ in which side is nominally
// responsible for stack cleanup, which this emulator has no need to model.
func (a *ABI) Cdecl(target uint64, args ...interface{}) (uint64, error) {
	a.Reset()
	words, err := a.resolveArgs(args)
	if err != nil {
		return 0, err
	}
	if err := a.PushArgs(words); err != nil {
		return 0, err
	}
	return a.run(target)
}

// MsFastcall invokes target ms_fastcall-style: the first two arguments are
// passed in the architecture's FastCallArgs registers, and any remaining
// arguments are pushed on the stack as in Stdcall.
func (a *ABI) MsFastcall(target uint64, args ...interface{}) (uint64, error) {
	a.Reset()
	words, err := a.resolveArgs(args)
	if err != nil {
		return 0, err
	}

	regArgs := words
	if len(regArgs) > 2 {
		regArgs = words[:2]
	}
	for i, w := range regArgs {
		a.cpu.Regs.Write(a.cpu.arch.FastCallArgs[i], false, w)
	}

	var stackArgs []uint64
	if len(words) > 2 {
		stackArgs = words[2:]
	}
	if err := a.PushArgs(stackArgs); err != nil {
		return 0, err
	}
	return a.run(target)
}
