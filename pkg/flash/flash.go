package flash

import "errors"

// Device errors.
//
// Implementations MAY wrap these with additional context.
// Callers MUST classify errors using errors.Is.
var (
	// ErrLocked indicates a program was attempted while the part is locked.
	ErrLocked = errors.New("flash: locked")
	// ErrNotErased indicates a program would need to set a cleared bit.
	ErrNotErased = errors.New("flash: target not erased")
	// ErrOutOfRange indicates an address outside the device.
	ErrOutOfRange = errors.New("flash: address out of range")
	// ErrBadArgument indicates a malformed erase/program request.
	ErrBadArgument = errors.New("flash: bad argument")
	// ErrIO indicates a controller failure (injected in tests).
	ErrIO = errors.New("flash: io failure")
	// ErrPowerLost indicates the simulated part lost power mid-workload.
	ErrPowerLost = errors.New("flash: power lost")
)

// ErasedByte is the value of every cell after an erase.
const ErasedByte = 0xFF

// Device is the NOR flash driver contract.
//
// Program may only clear bits (1 -> 0); the target cells must be erased.
// A two-halfword program is atomic with respect to power loss: either the
// whole 32-bit word is observable afterwards or none of it is.
//
// Addresses are absolute part addresses, not offsets. Loads on addresses
// outside the device return the erased pattern.
type Device interface {
	// Erase erases pages contiguous pages starting at base, which must be
	// page-aligned. All bits of the erased range become 1.
	Erase(base uint32, pages int) error

	// Program writes halfWords (1 or 2) 16-bit units of data at addr,
	// little-endian, lowest halfword first. addr must be halfword-aligned
	// and the part must be unlocked.
	Program(addr uint32, data uint32, halfWords int) error

	// Unlock enables programming. Lock disables it again.
	Unlock()
	Lock()

	// Uint16 and Uint32 are little-endian loads.
	Uint16(addr uint32) uint16
	Uint32(addr uint32) uint32
}

// Geometry describes the region of the part backing a device.
type Geometry struct {
	// PageSize is the erase-unit size in bytes.
	PageSize uint32
	// Pages is the number of pages backing the device.
	Pages int
	// EndAddr is one past the last byte of the part.
	EndAddr uint32
}

// Base returns the address of the first backed byte:
// the region is [Base, EndAddr).
func (g Geometry) Base() uint32 {
	return g.EndAddr - uint32(g.Pages)*g.PageSize
}

// Size returns the backed region size in bytes.
func (g Geometry) Size() uint32 {
	return uint32(g.Pages) * g.PageSize
}

func (g Geometry) validate() error {
	if g.PageSize == 0 || g.PageSize%4 != 0 {
		return ErrBadArgument
	}

	if g.Pages <= 0 {
		return ErrBadArgument
	}

	if uint64(g.Pages)*uint64(g.PageSize) > uint64(g.EndAddr) {
		return ErrBadArgument
	}

	return nil
}
