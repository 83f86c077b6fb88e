package eeprom

import "errors"

// Error classification codes.
//
// Errors returned by this package wrap these sentinels with context.
// Callers MUST classify errors using errors.Is.
var (
	// ErrBadParams indicates invalid engine parameters.
	ErrBadParams = errors.New("eeprom: bad params")
	// ErrAddressRange indicates a logical address outside the configured sectors.
	ErrAddressRange = errors.New("eeprom: logical address out of range")

	// ErrFlashProgram indicates the flash driver failed a program.
	ErrFlashProgram = errors.New("eeprom: flash program failed")
	// ErrFlashErase indicates the flash driver failed an erase.
	ErrFlashErase = errors.New("eeprom: flash erase failed")

	// ErrInconsistent indicates an inconsistent sector state: a RAM context
	// that forced a re-init, or old-page entries that do not fit a
	// compaction image.
	ErrInconsistent = errors.New("eeprom: inconsistent sector state")
)
