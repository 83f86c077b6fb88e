package eeprom

import (
	"fmt"

	"github.com/calvinalkan/eeflash/pkg/flash"
)

// Status is the outcome of a Read.
type Status uint8

const (
	// Found means the latest value for the address was returned.
	Found Status = iota
	// Empty means the address has never been written; the value is 0xFFFF.
	Empty
	// Fault means the sector state was inconsistent and has been
	// re-initialized, losing its contents.
	Fault
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Empty:
		return "empty"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// sectorContext is the per-sector RAM state. Flash is the system of
// record; this is a cache rebuilt from flash alone at Open.
type sectorContext struct {
	// activePage is the ring index of the page receiving appends.
	activePage int
	// firstEmpty is the flash address of the first empty entry slot in
	// the active page. Equal to the page end when the page is full.
	firstEmpty uint32
}

// EEPROM is the wear-leveled engine over one flash device.
//
// Not safe for concurrent use; see the package documentation.
type EEPROM struct {
	dev flash.Device
	lay layout
	ctx []sectorContext
}

// Open validates params and recovers every sector from whatever state the
// flash is in: a clean part is initialized, a part interrupted mid-swap is
// reconciled back to exactly one active page per sector.
func Open(dev flash.Device, params Params) (*EEPROM, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	e := &EEPROM{
		dev: dev,
		lay: newLayout(params),
		ctx: make([]sectorContext, params.Sectors),
	}

	for sector := range e.ctx {
		if err := e.recoverSector(sector); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Params returns the engine parameters.
func (e *EEPROM) Params() Params { return e.lay.Params }

// recoverSector scans the sector's page headers and leaves it with
// exactly one active page and a matching RAM context.
//
// Two active pages mean a crash happened between the swap's header commit
// and the old-page erase: the destination of that swap is authoritative.
// In linear scan order the lower index is the older page, except when the
// ring wrapped (active pages at both ends), where the last page is the
// one that predates page 0.
func (e *EEPROM) recoverSector(sector int) error {
	active := 0
	found := false

	for page := 0; page < e.lay.PagesPerSector; page++ {
		switch e.pageStatus(sector, page) {
		case statusActive:
			if !found {
				active = page
				found = true

				continue
			}

			loser := active

			if active == 0 && page == e.lay.PagesPerSector-1 {
				loser = page
			}

			if err := e.erasePage(sector, loser); err != nil {
				return err
			}

			if loser == active {
				active = page
			}

		case statusErased:
			// Nothing to do.

		default:
			// Stale or torn header. Leave it; the swap pre-erase
			// reclaims the page before reuse.
		}
	}

	if !found {
		return e.initSector(sector)
	}

	e.ctx[sector] = sectorContext{
		activePage: active,
		firstEmpty: e.firstEmptyAddr(sector, active),
	}

	return nil
}

// initSector erases the whole sector and activates page 0. Last-resort
// recovery: any previous contents are gone.
func (e *EEPROM) initSector(sector int) error {
	err := e.dev.Erase(e.lay.pageBase(sector, 0), e.lay.PagesPerSector)
	if err != nil {
		return fmt.Errorf("init sector %d: %w: %w", sector, ErrFlashErase, err)
	}

	if err := e.setPageStatus(sector, 0, statusActive); err != nil {
		return fmt.Errorf("init sector %d: %w", sector, err)
	}

	e.ctx[sector] = sectorContext{
		activePage: 0,
		firstEmpty: e.lay.firstEntryAddr(sector, 0),
	}

	return nil
}

// firstEmptyAddr forward-scans the page for the first empty entry slot.
// Returns the page end address when the page is full.
func (e *EEPROM) firstEmptyAddr(sector, page int) uint32 {
	for i := 0; i < e.lay.entriesPerPage; i++ {
		addr := e.lay.entryAddr(sector, page, i)
		if e.dev.Uint16(addr) == erasedHalfWord {
			return addr
		}
	}

	return e.lay.pageBase(sector, page) + e.lay.PageSize
}

// Read returns the latest value written to addr.
//
// Status is [Found], [Empty] (value 0xFFFF), or [Fault]. On Fault the
// sector has been re-initialized; a non-nil error then reports a flash
// failure during that recovery. An address outside the configured
// sectors returns [Fault] with an error wrapping [ErrAddressRange] and
// no recovery is attempted.
func (e *EEPROM) Read(addr uint16) (uint16, Status, error) {
	sector := e.lay.sectorOf(addr)
	if sector >= e.lay.Sectors {
		return erasedHalfWord, Fault, fmt.Errorf("read %#x: %w", addr, ErrAddressRange)
	}

	ctx := e.ctx[sector]

	if !e.contextValid(sector, ctx) {
		if err := e.initSector(sector); err != nil {
			return erasedHalfWord, Fault, err
		}

		return erasedHalfWord, Fault, nil
	}

	first := e.lay.firstEntryAddr(sector, ctx.activePage)

	// Walk the log backward; the first match is the latest value.
	for a := ctx.firstEmpty; a > first; {
		a -= entrySize

		if e.dev.Uint16(a) == addr {
			return e.dev.Uint16(a + 2), Found, nil
		}
	}

	return erasedHalfWord, Empty, nil
}

// Write durably stores value at addr.
//
// Writing the value the address already holds is a no-op success.
// A full active page triggers a compacting swap to the next page in the
// ring; the swap's commit protocol keeps every acknowledged write
// observable across power loss at any point.
func (e *EEPROM) Write(addr uint16, value uint16) error {
	sector := e.lay.sectorOf(addr)
	if sector >= e.lay.Sectors {
		return fmt.Errorf("write %#x: %w", addr, ErrAddressRange)
	}

	old, status, err := e.Read(addr)
	if err != nil {
		return fmt.Errorf("write %#x: %w", addr, err)
	}

	if status == Fault {
		// Read re-initialized the sector; the caller may retry.
		return fmt.Errorf("write %#x: %w", addr, ErrInconsistent)
	}

	if status == Found && old == value {
		return nil
	}

	ctx := e.ctx[sector]
	pageEnd := e.lay.pageBase(sector, ctx.activePage) + e.lay.PageSize

	if ctx.firstEmpty >= pageEnd {
		return e.swapToNextPage(sector, ctx.activePage, addr, value)
	}

	e.dev.Unlock()
	err = e.dev.Program(ctx.firstEmpty, entryWord(addr, value), 2)
	e.dev.Lock()

	if err != nil {
		return fmt.Errorf("write %#x: %w: %w", addr, ErrFlashProgram, err)
	}

	e.ctx[sector].firstEmpty += entrySize

	return nil
}

// contextValid checks the RAM context against the sector geometry.
func (e *EEPROM) contextValid(sector int, ctx sectorContext) bool {
	if ctx.activePage < 0 || ctx.activePage >= e.lay.PagesPerSector {
		return false
	}

	base := e.lay.pageBase(sector, ctx.activePage)

	return ctx.firstEmpty >= base+pageHeaderSize && ctx.firstEmpty <= base+e.lay.PageSize
}

// entryWord packs an entry as it is programmed: address in the low
// halfword, value in the high one.
func entryWord(addr, value uint16) uint32 {
	return uint32(addr) | uint32(value)<<16
}

// SectorStats describes one sector's runtime state.
type SectorStats struct {
	Sector     int
	ActivePage int
	// UsedSlots is the number of programmed entry slots in the active page.
	UsedSlots int
	// LiveKeys is the number of distinct logical addresses stored.
	LiveKeys int
}

// Stats reports per-sector usage, for tooling and tests.
func (e *EEPROM) Stats() []SectorStats {
	out := make([]SectorStats, e.lay.Sectors)

	for sector := range out {
		ctx := e.ctx[sector]
		first := e.lay.firstEntryAddr(sector, ctx.activePage)
		used := int(ctx.firstEmpty-first) / entrySize

		seen := make(map[uint16]struct{}, used)

		for i := 0; i < used; i++ {
			a := e.dev.Uint16(first + uint32(i)*entrySize)
			if a != erasedHalfWord {
				seen[a] = struct{}{}
			}
		}

		out[sector] = SectorStats{
			Sector:     sector,
			ActivePage: ctx.activePage,
			UsedSlots:  used,
			LiveKeys:   len(seen),
		}
	}

	return out
}
