package eeprom

import "fmt"

// pageStatus loads the page's 16-bit status word.
func (e *EEPROM) pageStatus(sector, page int) uint16 {
	return e.dev.Uint16(e.lay.pageBase(sector, page))
}

// setPageStatus programs the page's status word. Programming is bracketed
// by unlock/lock; erase locking is the driver's own concern.
func (e *EEPROM) setPageStatus(sector, page int, status uint16) error {
	e.dev.Unlock()
	err := e.dev.Program(e.lay.pageBase(sector, page), uint32(status), 1)
	e.dev.Lock()

	if err != nil {
		return fmt.Errorf("page %d/%d header: %w: %w", sector, page, ErrFlashProgram, err)
	}

	return nil
}

// erasePage erases a single page of the sector.
func (e *EEPROM) erasePage(sector, page int) error {
	if err := e.dev.Erase(e.lay.pageBase(sector, page), 1); err != nil {
		return fmt.Errorf("page %d/%d: %w: %w", sector, page, ErrFlashErase, err)
	}

	return nil
}
