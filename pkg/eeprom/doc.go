// Package eeprom provides durable halfword key/value storage on top of a
// page-erasable NOR flash device.
//
// Each sector is a ring of flash pages. Writes append (address, value)
// entries to the log inside the sector's active page; when the page fills
// up, the live entries are compacted into the next page of the ring. The
// commit protocol around that swap tolerates power loss at any point:
// after a crash, Open reconciles the sector back to exactly one active
// page and every previously acknowledged write stays readable.
//
// # Basic Usage
//
//	dev, _ := flash.NewMem(flash.Geometry{PageSize: 2048, Pages: 6, EndAddr: 0x08020000})
//	e, err := eeprom.Open(dev, eeprom.Params{
//	    PageSize:       2048,
//	    EndAddr:        0x08020000,
//	    Sectors:        1,
//	    PagesPerSector: 6,
//	})
//	if err != nil {
//	    // flash failed during recovery
//	}
//
//	err = e.Write(0x10, 0xBEEF)
//	value, status, err := e.Read(0x10)
//
// # Concurrency
//
// An EEPROM is owned by a single logical caller; its methods are not safe
// for concurrent use. This mirrors the bare-metal component it models,
// where operations on a sector are serialized by the calling thread.
//
// # Error Handling
//
// Flash failures surface as errors wrapping [ErrFlashProgram] or
// [ErrFlashErase]; the operation aborts and the on-flash state is left
// for the next Open (or the next swap's pre-erase) to reclaim. An invalid
// RAM context re-initializes the affected sector, losing its data; a Read
// that detects it reports [Fault], a Write returns an error wrapping
// [ErrInconsistent]. A compaction image that would overflow a page also
// fails with [ErrInconsistent], without re-initializing the sector.
package eeprom
