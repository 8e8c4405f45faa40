package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openreil/reilvm/emu"
	"github.com/openreil/reilvm/reil"
)

type fakeReader struct {
	data map[uint64]byte
}

func (f *fakeReader) Read(addr uint64, nbytes int) ([]byte, bool) {
	out := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		b, ok := f.data[addr+uint64(i)]
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

var _ = Describe("Memory", func() {
	It("faults reading an address nothing has ever mapped", func() {
		m := emu.NewMemory()
		_, err := m.ReadByte(0x1000)
		Expect(err).To(HaveOccurred())
		var re *emu.MemReadError
		Expect(err).To(BeAssignableToTypeOf(re))
	})

	It("round-trips a little-endian U32 write/read", func() {
		m := emu.NewMemory()
		Expect(m.Write(0x1000, reil.U32, 0xDEADBEEF)).To(Succeed())
		b0, _ := m.ReadByte(0x1000)
		b3, _ := m.ReadByte(0x1003)
		Expect(b0).To(Equal(byte(0xEF)))
		Expect(b3).To(Equal(byte(0xDE)))

		v, err := m.Read(0x1000, reil.U32)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(0xDEADBEEF)))
	})

	It("demand-fills from the reader and caches the result", func() {
		reader := &fakeReader{data: map[uint64]byte{0x2000: 0x42}}
		m := emu.NewMemory(emu.WithReader(reader))

		b, err := m.ReadByte(0x2000)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(0x42)))

		delete(reader.data, 0x2000)
		b, err = m.ReadByte(0x2000)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(0x42)))
	})

	It("rejects a strict write to an address the reader doesn't know either", func() {
		reader := &fakeReader{data: map[uint64]byte{}}
		m := emu.NewMemory(emu.WithReader(reader), emu.WithStrictWrites())

		err := m.WriteByte(0x3000, 0xAA)
		Expect(err).To(HaveOccurred())
		var we *emu.MemWriteError
		Expect(err).To(BeAssignableToTypeOf(we))
	})

	It("lets a strict write through once the reader confirms the address, and the caller's byte wins", func() {
		reader := &fakeReader{data: map[uint64]byte{0x4000: 0x11}}
		m := emu.NewMemory(emu.WithReader(reader), emu.WithStrictWrites())

		Expect(m.WriteByte(0x4000, 0x99)).To(Succeed())
		b, err := m.ReadByte(0x4000)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(0x99)))
	})

	It("lets a strict write through once AllocAt has marked the range known", func() {
		m := emu.NewMemory(emu.WithStrictWrites())

		err := m.Write(0x2000, reil.U32, 0)
		Expect(err).To(HaveOccurred())

		m.AllocAt(0x2000, 4)
		Expect(m.Write(0x2000, reil.U32, 0)).To(Succeed())
	})

	It("allows any write in lenient mode", func() {
		m := emu.NewMemory()
		Expect(m.WriteByte(0x5000, 0x7)).To(Succeed())
	})

	It("hands out non-overlapping regions from Alloc", func() {
		m := emu.NewMemory()
		a := m.Alloc(16)
		b := m.Alloc(16)
		Expect(b).To(Equal(a + 16))
	})

	It("writes AllocData's bytes at the returned base", func() {
		m := emu.NewMemory()
		addr := m.AllocData([]byte{1, 2, 3})
		v, err := m.Read(addr, reil.U16)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(0x0201)))
	})

	It("clears stored bytes but not the allocator cursor", func() {
		m := emu.NewMemory()
		first := m.Alloc(8)
		Expect(m.WriteByte(0x6000, 1)).To(Succeed())
		m.Clear()
		_, err := m.ReadByte(0x6000)
		Expect(err).To(HaveOccurred())
		Expect(m.Alloc(8)).To(Equal(first + 8))
	})
})
