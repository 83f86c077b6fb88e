package eeprom

import "fmt"

// entry is one (logical address, value) record in the compaction image.
type entry struct {
	addr  uint16
	value uint16
}

// swapToNextPage compacts the full active page plus one new entry into
// the ring successor and retires the old page.
//
// Ordering is what makes this crash-consistent: destination data is
// durable before the destination header commits, and the header commits
// before the old page is erased. A crash before the header commit leaves
// the old page authoritative; a crash after it leaves two active pages,
// which recoverSector resolves in the destination's favor.
func (e *EEPROM) swapToNextPage(sector, page int, addr, value uint16) error {
	next := e.lay.nextPage(page)

	img, err := e.buildCompactionImage(sector, page, addr, value)
	if err != nil {
		return err
	}

	destBase := e.lay.pageBase(sector, next)
	destFirst := e.lay.firstEntryAddr(sector, next)

	if e.dev.Uint32(destBase) == erasedWord && e.entriesMatch(sector, next, img) {
		// A swap that crashed after programming the data but before the
		// header commit already wrote exactly this image. Skip straight
		// to the commit.
		e.ctx[sector].firstEmpty = e.firstEmptyAddr(sector, next)
	} else {
		if err := e.erasePage(sector, next); err != nil {
			return fmt.Errorf("swap sector %d: %w", sector, err)
		}

		e.dev.Unlock()

		for i, en := range img {
			err := e.dev.Program(destFirst+uint32(i)*entrySize, entryWord(en.addr, en.value), 2)
			if err != nil {
				e.dev.Lock()

				return fmt.Errorf("swap sector %d: %w: %w", sector, ErrFlashProgram, err)
			}
		}

		e.dev.Lock()

		e.ctx[sector].firstEmpty = destFirst + uint32(len(img))*entrySize
	}

	// Commit: the destination becomes active. Two pages are briefly
	// active until the old one is erased below.
	if err := e.setPageStatus(sector, next, statusActive); err != nil {
		return fmt.Errorf("swap sector %d: %w", sector, err)
	}

	e.ctx[sector].activePage = next

	if err := e.erasePage(sector, page); err != nil {
		return fmt.Errorf("swap sector %d: retire: %w", sector, err)
	}

	return nil
}

// buildCompactionImage collects the new entry plus the latest live value
// of every other address in the old page. The old page is walked from the
// highest slot down so the first occurrence seen for an address is its
// most recent value; the new entry sits at slot 0 and shadows any prior
// value for its address.
func (e *EEPROM) buildCompactionImage(sector, page int, addr, value uint16) ([]entry, error) {
	img := make([]entry, 1, e.lay.entriesPerPage)
	img[0] = entry{addr: addr, value: value}

	for i := e.lay.entriesPerPage - 1; i >= 0; i-- {
		slot := e.lay.entryAddr(sector, page, i)

		a := e.dev.Uint16(slot)
		if a == erasedHalfWord || containsAddr(img, a) {
			continue
		}

		// One sector stores at most entriesPerPage distinct addresses,
		// so overflow here means foreign or corrupted entries.
		if len(img) == e.lay.entriesPerPage {
			return nil, fmt.Errorf("compact sector %d: %w", sector, ErrInconsistent)
		}

		img = append(img, entry{addr: a, value: e.dev.Uint16(slot + 2)})
	}

	return img, nil
}

// entriesMatch reports whether the page's entry array equals the image:
// programmed slots match the image words and the rest are erased.
func (e *EEPROM) entriesMatch(sector, page int, img []entry) bool {
	for i := 0; i < e.lay.entriesPerPage; i++ {
		want := uint32(erasedWord)
		if i < len(img) {
			want = entryWord(img[i].addr, img[i].value)
		}

		if e.dev.Uint32(e.lay.entryAddr(sector, page, i)) != want {
			return false
		}
	}

	return true
}

func containsAddr(img []entry, addr uint16) bool {
	for _, en := range img {
		if en.addr == addr {
			return true
		}
	}

	return false
}
