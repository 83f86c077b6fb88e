package eeprom

import "fmt"

// On-flash layout constants. All multi-byte values are little-endian.
const (
	// pageHeaderSize covers the 16-bit status word plus a reserved halfword.
	pageHeaderSize = 4

	// entrySize is one (logical_addr, value) record.
	entrySize = 4

	// erasedHalfWord / erasedWord are the flash-erased patterns. A freshly
	// erased page is implicitly status-erased, and an entry slot whose
	// logical address reads 0xFFFF is empty.
	erasedHalfWord = 0xFFFF
	erasedWord     = 0xFFFFFFFF

	// statusActive marks the page currently receiving appends. Any header
	// value that is neither active nor erased is stale and gets reclaimed
	// by the swap pre-erase.
	statusActive uint16 = 0x0000
	statusErased uint16 = 0xFFFF
)

// Params are the build-time constants of the emulated part.
type Params struct {
	// PageSize is the flash erase-unit size in bytes.
	PageSize uint32
	// EndAddr is one past the last flash byte; the emulated region sits
	// at the top of flash, ending here.
	EndAddr uint32
	// Sectors is the number of independent wear-leveling rings.
	Sectors int
	// PagesPerSector is the ring length P.
	PagesPerSector int
}

// EntriesPerPage returns N, the number of entry slots per page.
func (p Params) EntriesPerPage() int {
	return int((p.PageSize - pageHeaderSize) / entrySize)
}

// Capacity returns the number of logical addresses the part stores.
// Address space is partitioned per sector: sector s owns [s*N, (s+1)*N).
func (p Params) Capacity() int {
	return p.Sectors * p.EntriesPerPage()
}

func (p Params) validate() error {
	if p.PageSize < pageHeaderSize+entrySize || p.PageSize%4 != 0 {
		return fmt.Errorf("%w: page size %d", ErrBadParams, p.PageSize)
	}

	if p.Sectors < 1 {
		return fmt.Errorf("%w: %d sectors", ErrBadParams, p.Sectors)
	}

	if p.PagesPerSector < 2 {
		return fmt.Errorf("%w: %d pages per sector", ErrBadParams, p.PagesPerSector)
	}

	size := uint64(p.Sectors) * uint64(p.PagesPerSector) * uint64(p.PageSize)
	if size > uint64(p.EndAddr) {
		return fmt.Errorf("%w: region size %d exceeds end address %#x", ErrBadParams, size, p.EndAddr)
	}

	// Logical addresses are 16-bit and 0xFFFF is the empty marker.
	if p.Capacity() > erasedHalfWord {
		return fmt.Errorf("%w: capacity %d exceeds the 16-bit address space", ErrBadParams, p.Capacity())
	}

	return nil
}

// layout derives flash addresses from Params. Entries are addressed by
// explicit byte offsets; nothing relies on in-memory struct layout.
type layout struct {
	Params

	entriesPerPage int
	start          uint32
}

func newLayout(p Params) layout {
	return layout{
		Params:         p,
		entriesPerPage: p.EntriesPerPage(),
		start:          p.EndAddr - uint32(p.Sectors)*uint32(p.PagesPerSector)*p.PageSize,
	}
}

// pageBase returns the address of the page's status word.
func (l layout) pageBase(sector, page int) uint32 {
	return l.start + uint32(sector)*uint32(l.PagesPerSector)*l.PageSize + uint32(page)*l.PageSize
}

// firstEntryAddr returns the address of the page's entry slot 0.
func (l layout) firstEntryAddr(sector, page int) uint32 {
	return l.pageBase(sector, page) + pageHeaderSize
}

// entryAddr returns the address of entry slot i within the page.
func (l layout) entryAddr(sector, page, i int) uint32 {
	return l.firstEntryAddr(sector, page) + uint32(i)*entrySize
}

// sectorOf maps a logical address to its owning sector.
func (l layout) sectorOf(addr uint16) int {
	return int(addr) / l.entriesPerPage
}

// nextPage returns the ring successor of page.
func (l layout) nextPage(page int) int {
	return (page + 1) % l.PagesPerSector
}
