package eval

import (
	"fortio.org/safecast"
)

// memBase keeps address zero and the page after it unmapped so nil and
// small offsets from nil trap.
const memBase uint64 = 0x1000

// poison fills fresh stack slots so reads of uninitialised bytes are
// visible in tests.
const poison byte = 0xAA

// memory is a bump-allocated flat address space. Nothing is ever freed; a
// VM lives for one test or one check run.
type memory struct {
	data []byte
}

func (m *memory) alloc(size, align int, fill byte) uint64 {
	if align <= 0 {
		align = 1
	}
	off := len(m.data)
	if rem := off % align; rem != 0 {
		off += align - rem
	}
	// One guard byte between allocations keeps distinct objects at
	// distinct addresses even when they are empty.
	end := off + max(size, 1)
	grown := make([]byte, end-len(m.data))
	m.data = append(m.data, grown...)
	for i := off; i < off+size; i++ {
		m.data[i] = fill
	}
	return memBase + uint64(off) //nolint:gosec // off is non-negative
}

func (m *memory) span(addr uint64, n int) (int, *TrapError) {
	if addr < memBase {
		return 0, trapf(TrapNullAccess, "access of %d bytes at %#x through nil", n, addr)
	}
	off, err := safecast.Conv[int](addr - memBase)
	if err != nil || n < 0 || off+n > len(m.data) {
		return 0, trapf(TrapOutOfBounds, "access [%#x, +%d) outside memory", addr, n)
	}
	return off, nil
}

func (m *memory) read(addr uint64, n int) ([]byte, *TrapError) {
	off, trap := m.span(addr, n)
	if trap != nil {
		return nil, trap
	}
	out := make([]byte, n)
	copy(out, m.data[off:off+n])
	return out, nil
}

func (m *memory) write(addr uint64, b []byte) *TrapError {
	off, trap := m.span(addr, len(b))
	if trap != nil {
		return trap
	}
	copy(m.data[off:], b)
	return nil
}

func (m *memory) fill(addr uint64, n int, v byte) *TrapError {
	off, trap := m.span(addr, n)
	if trap != nil {
		return trap
	}
	for i := off; i < off+n; i++ {
		m.data[i] = v
	}
	return nil
}

// cstringLen counts bytes up to the first NUL.
func (m *memory) cstringLen(addr uint64) (int, *TrapError) {
	off, trap := m.span(addr, 0)
	if trap != nil {
		return 0, trap
	}
	for i := off; i < len(m.data); i++ {
		if m.data[i] == 0 {
			return i - off, nil
		}
	}
	return 0, trapf(TrapOutOfBounds, "unterminated cstring at %#x", addr)
}
