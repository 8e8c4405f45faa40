package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openreil/reilvm/arch"
	"github.com/openreil/reilvm/emu"
	"github.com/openreil/reilvm/internal/reiltest"
	"github.com/openreil/reilvm/reil"
)

var _ = Describe("CPU", func() {
	var (
		regs    *emu.RegisterFile
		mem     *emu.Memory
		storage *reiltest.Storage
		cpu     *emu.CPU
	)

	BeforeEach(func() {
		regs = emu.NewRegisterFile()
		storage = reiltest.New()
		mem = emu.NewMemory(emu.WithReader(storage.Reader()))
		cpu = emu.NewCPU(regs, mem, arch.X86)
	})

	It("adds two registers and ends the run at the sentinel fetch fault", func() {
		regs.Write("eax", false, 2)
		regs.Write("ecx", false, 3)
		storage.Add(0x1000, reil.Instruction{
			Addr: 0x1000, Inum: 0, Op: reil.IAdd,
			A: reil.Reg("eax", reil.U32), B: reil.Reg("ecx", reil.U32), C: reil.Reg("eax", reil.U32),
			NextAddr: emu.DummyRetAddr,
		})

		err := cpu.Run(storage, 0x1000)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(err.(*emu.CpuReadError).Addr).To(Equal(emu.DummyRetAddr))
		Expect(regs.Read("R_EAX")).To(Equal(uint64(5)))
	})

	It("scopes temp registers to a single native instruction", func() {
		regs.Write("eax", false, 2)
		regs.Write("ecx", false, 3)
		storage.Add(0x1000, reil.Instruction{
			Addr: 0x1000, Inum: 0, Op: reil.IAdd,
			A: reil.Reg("eax", reil.U32), B: reil.Reg("ecx", reil.U32), C: reil.Temp("t0", reil.U32),
			NextAddr: 0x1001,
		})
		storage.Add(0x1001, reil.Instruction{
			Addr: 0x1001, Inum: 0, Op: reil.IStr,
			A: reil.Temp("t0", reil.U32), C: reil.Reg("eax", reil.U32),
			NextAddr: emu.DummyRetAddr,
		})

		err := cpu.Run(storage, 0x1000)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(regs.Read("R_EAX")).To(Equal(uint64(0)))
	})

	It("follows a taken I_JCC branch instead of the fallthrough address", func() {
		storage.Add(0x1000, reil.Instruction{
			Addr: 0x1000, Inum: 0, Op: reil.IJcc,
			A: reil.Const(1, reil.U1), C: reil.Const(0x2000, reil.U32),
			NextAddr: 0x1001,
		})
		storage.Add(0x2000, reil.Instruction{
			Addr: 0x2000, Inum: 0, Op: reil.IStr,
			A: reil.Const(0x99, reil.U32), C: reil.Reg("eax", reil.U32),
			NextAddr: emu.DummyRetAddr,
		})

		err := cpu.Run(storage, 0x1000)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(regs.Read("R_EAX")).To(Equal(uint64(0x99)))
	})

	It("does not branch on a not-taken I_JCC", func() {
		storage.Add(0x1000, reil.Instruction{
			Addr: 0x1000, Inum: 0, Op: reil.IJcc,
			A: reil.Const(0, reil.U1), C: reil.Const(0x2000, reil.U32),
			NextAddr: emu.DummyRetAddr,
		})

		err := cpu.Run(storage, 0x1000)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(err.(*emu.CpuReadError).Addr).To(Equal(emu.DummyRetAddr))
	})

	It("lets code read itself back as memory through the shared reader", func() {
		storage.SetBytes(0x3000, []byte{0x78, 0x56, 0x34, 0x12})
		storage.Add(0x1000, reil.Instruction{
			Addr: 0x1000, Inum: 0, Op: reil.ILdm,
			A: reil.Const(0x3000, reil.U32), C: reil.Reg("eax", reil.U32),
			NextAddr: emu.DummyRetAddr,
		})

		err := cpu.Run(storage, 0x1000)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(regs.Read("R_EAX")).To(Equal(uint64(0x12345678)))
	})

	It("writes to memory with I_STM and reads it back with I_LDM", func() {
		storage.Add(0x1000, reil.Instruction{
			Addr: 0x1000, Inum: 0, Op: reil.IStm,
			A: reil.Const(0xAABBCCDD, reil.U32), C: reil.Const(0x4000, reil.U32),
			NextAddr: 0x1001,
		})
		storage.Add(0x1001, reil.Instruction{
			Addr: 0x1001, Inum: 0, Op: reil.ILdm,
			A: reil.Const(0x4000, reil.U32), C: reil.Reg("ebx", reil.U32),
			NextAddr: emu.DummyRetAddr,
		})

		err := cpu.Run(storage, 0x1000)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(regs.Read("R_EBX")).To(Equal(uint64(0xAABBCCDD)))
	})

	It("surfaces a CpuReadError for a genuinely unmapped fetch", func() {
		err := cpu.Run(storage, 0x9999)
		var readErr *emu.CpuReadError
		Expect(err).To(BeAssignableToTypeOf(readErr))
		Expect(err.(*emu.CpuReadError).Addr).To(Equal(uint64(0x9999)))
	})
})
