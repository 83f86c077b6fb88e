package flash

import (
	"encoding/binary"
	"fmt"
)

// Mem is a host-backed NOR flash simulator implementing [Device].
//
// It enforces the part's programming model (erase granularity, 1 -> 0
// programming, lock gating) and counts operations so tests can observe
// wear and idempotence. Failpoints inject controller failures and power
// cuts at chosen operation boundaries.
//
// Mem is not safe for concurrent use, matching the single-owner model of
// the engine that drives it.
type Mem struct {
	geo Geometry
	buf []byte

	locked bool

	programs   int
	erases     int
	pageErases []int

	// Failpoint countdowns. Zero means disarmed; armed values count down
	// on each matching operation and fire when they reach zero.
	failProgramIn int
	failEraseIn   int
	cutPowerIn    int
	powerLost     bool
}

// NewMem returns a fully erased simulated part.
func NewMem(geo Geometry) (*Mem, error) {
	if err := geo.validate(); err != nil {
		return nil, fmt.Errorf("flash geometry: %w", err)
	}

	buf := make([]byte, geo.Size())
	for i := range buf {
		buf[i] = ErasedByte
	}

	return &Mem{
		geo:        geo,
		buf:        buf,
		locked:     true,
		pageErases: make([]int, geo.Pages),
	}, nil
}

// Geometry returns the part geometry.
func (m *Mem) Geometry() Geometry { return m.geo }

// Erase implements [Device].
func (m *Mem) Erase(base uint32, pages int) error {
	if pages <= 0 || base%m.geo.PageSize != 0 {
		return fmt.Errorf("erase at %#x: %w", base, ErrBadArgument)
	}

	first, ok := m.pageIndex(base)
	if !ok || first+pages > m.geo.Pages {
		return fmt.Errorf("erase at %#x (%d pages): %w", base, pages, ErrOutOfRange)
	}

	// Pages erase in ascending order; a power cut or injected failure
	// leaves the preceding pages erased and the rest untouched.
	for p := first; p < first+pages; p++ {
		if m.powerLost {
			return ErrPowerLost
		}

		if m.cutPowerIn > 0 {
			m.cutPowerIn--
			if m.cutPowerIn == 0 {
				m.powerLost = true

				return ErrPowerLost
			}
		}

		if m.failEraseIn > 0 {
			m.failEraseIn--
			if m.failEraseIn == 0 {
				return fmt.Errorf("erase page %d: %w", p, ErrIO)
			}
		}

		off := uint32(p) * m.geo.PageSize
		for i := off; i < off+m.geo.PageSize; i++ {
			m.buf[i] = ErasedByte
		}

		m.erases++
		m.pageErases[p]++
	}

	return nil
}

// Program implements [Device].
func (m *Mem) Program(addr uint32, data uint32, halfWords int) error {
	if halfWords != 1 && halfWords != 2 {
		return fmt.Errorf("program %d halfwords: %w", halfWords, ErrBadArgument)
	}

	if addr%2 != 0 {
		return fmt.Errorf("program at %#x: %w", addr, ErrBadArgument)
	}

	n := uint32(halfWords) * 2

	off, ok := m.offset(addr)
	if !ok || off+n > uint32(len(m.buf)) {
		return fmt.Errorf("program at %#x: %w", addr, ErrOutOfRange)
	}

	if m.locked {
		return fmt.Errorf("program at %#x: %w", addr, ErrLocked)
	}

	if m.powerLost {
		return ErrPowerLost
	}

	if m.cutPowerIn > 0 {
		m.cutPowerIn--
		if m.cutPowerIn == 0 {
			// Word programming is atomic: the cut happens before any
			// bit of this program reaches the array.
			m.powerLost = true

			return ErrPowerLost
		}
	}

	if m.failProgramIn > 0 {
		m.failProgramIn--
		if m.failProgramIn == 0 {
			return fmt.Errorf("program at %#x: %w", addr, ErrIO)
		}
	}

	var src [4]byte

	binary.LittleEndian.PutUint32(src[:], data)

	// NOR programming can only clear bits.
	for i := uint32(0); i < n; i++ {
		if src[i]&^m.buf[off+i] != 0 {
			return fmt.Errorf("program at %#x: %w", addr+i, ErrNotErased)
		}
	}

	for i := uint32(0); i < n; i++ {
		m.buf[off+i] &= src[i]
	}

	m.programs++

	return nil
}

// Unlock implements [Device].
func (m *Mem) Unlock() { m.locked = false }

// Lock implements [Device].
func (m *Mem) Lock() { m.locked = true }

// Uint16 implements [Device]. Out-of-range loads return the erased pattern.
func (m *Mem) Uint16(addr uint32) uint16 {
	off, ok := m.offset(addr)
	if !ok || off+2 > uint32(len(m.buf)) {
		return 0xFFFF
	}

	return binary.LittleEndian.Uint16(m.buf[off:])
}

// Uint32 implements [Device]. Out-of-range loads return the erased pattern.
func (m *Mem) Uint32(addr uint32) uint32 {
	off, ok := m.offset(addr)
	if !ok || off+4 > uint32(len(m.buf)) {
		return 0xFFFFFFFF
	}

	return binary.LittleEndian.Uint32(m.buf[off:])
}

// Programs returns the number of successful word programs.
func (m *Mem) Programs() int { return m.programs }

// Erases returns the number of pages erased across the part's lifetime.
func (m *Mem) Erases() int { return m.erases }

// PageErases returns how many times the given page has been erased.
func (m *Mem) PageErases(page int) int { return m.pageErases[page] }

// FailProgramAfter arms a one-shot failpoint: the next n Program calls
// succeed and the one after reports [ErrIO] without touching the array.
func (m *Mem) FailProgramAfter(n int) { m.failProgramIn = n + 1 }

// FailEraseAfter arms a one-shot failpoint: the next n page erases succeed
// and the one after reports [ErrIO] with that page untouched.
func (m *Mem) FailEraseAfter(n int) { m.failEraseIn = n + 1 }

// CutPowerAfter arms a power cut: the next n mutating operations (word
// programs and single-page erases each count as one) succeed, then power
// is lost. Every mutation after that fails with [ErrPowerLost] until
// Restore is called. Loads keep working, like reading the part after
// a reboot.
func (m *Mem) CutPowerAfter(n int) { m.cutPowerIn = n + 1 }

// PowerLost reports whether a power-cut failpoint has fired.
func (m *Mem) PowerLost() bool { return m.powerLost }

// Restore turns the power back on after a cut. Lock state resets to
// locked, as it would on a real part after reset.
func (m *Mem) Restore() {
	m.powerLost = false
	m.cutPowerIn = 0
	m.locked = true
}

// Snapshot returns a copy of the array contents.
func (m *Mem) Snapshot() []byte {
	out := make([]byte, len(m.buf))
	copy(out, m.buf)

	return out
}

// RestoreFrom overwrites the array contents from a snapshot.
func (m *Mem) RestoreFrom(snap []byte) {
	copy(m.buf, snap)
}

// Corrupt writes raw bytes at addr, bypassing the programming model.
// Test backdoor for constructing damaged flash states.
func (m *Mem) Corrupt(addr uint32, b ...byte) {
	off, ok := m.offset(addr)
	if !ok {
		panic(fmt.Sprintf("flash: corrupt at %#x outside device", addr))
	}

	copy(m.buf[off:], b)
}

func (m *Mem) offset(addr uint32) (uint32, bool) {
	base := m.geo.Base()
	if addr < base || addr >= m.geo.EndAddr {
		return 0, false
	}

	return addr - base, true
}

func (m *Mem) pageIndex(addr uint32) (int, bool) {
	off, ok := m.offset(addr)
	if !ok {
		return 0, false
	}

	return int(off / m.geo.PageSize), true
}
