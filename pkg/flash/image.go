package flash

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Image file format constants.
const (
	// Magic bytes at the start of every image file.
	imageMagic = "EEF1"

	// Image format version.
	imageVersion = 1

	// Fixed header size in bytes.
	imageHeaderSize = 32
)

// Header field offsets (bytes from file start).
const (
	offMagic    = 0  // [4]byte
	offVersion  = 4  // uint16
	offReserved = 6  // uint16, zero
	offPageSize = 8  // uint32
	offPages    = 12 // uint32
	offEndAddr  = 16 // uint32
	// Bytes 20..31 are reserved and zero.
)

// Image file errors.
var (
	// ErrImageCorrupt indicates the file is not a valid image.
	ErrImageCorrupt = errors.New("flash: image corrupt")
	// ErrImageVersion indicates an image with an unsupported version.
	ErrImageVersion = errors.New("flash: image version mismatch")
)

// LoadImage reads an image file and returns a [Mem] holding its contents.
// Operation counters start at zero; they are not persisted.
func LoadImage(path string) (*Mem, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	if len(data) < imageHeaderSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrImageCorrupt, len(data))
	}

	if !bytes.Equal(data[offMagic:offMagic+4], []byte(imageMagic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrImageCorrupt)
	}

	version := binary.LittleEndian.Uint16(data[offVersion:])
	if version != imageVersion {
		return nil, fmt.Errorf("%w: version %d", ErrImageVersion, version)
	}

	geo := Geometry{
		PageSize: binary.LittleEndian.Uint32(data[offPageSize:]),
		Pages:    int(binary.LittleEndian.Uint32(data[offPages:])),
		EndAddr:  binary.LittleEndian.Uint32(data[offEndAddr:]),
	}

	if err := geo.validate(); err != nil {
		return nil, fmt.Errorf("%w: bad geometry", ErrImageCorrupt)
	}

	if uint32(len(data)-imageHeaderSize) != geo.Size() {
		return nil, fmt.Errorf("%w: payload size %d, geometry wants %d",
			ErrImageCorrupt, len(data)-imageHeaderSize, geo.Size())
	}

	mem, err := NewMem(geo)
	if err != nil {
		return nil, err
	}

	mem.RestoreFrom(data[imageHeaderSize:])

	return mem, nil
}

// SaveImage writes the device contents to path. The write is an atomic
// replace guarded by an advisory lock on a sibling .lock file, so two
// concurrent savers cannot interleave.
func SaveImage(path string, m *Mem) error {
	lock, lockErr := acquireLock(path)
	if lockErr != nil {
		return fmt.Errorf("acquiring image lock: %w", lockErr)
	}

	defer lock.release()

	geo := m.Geometry()

	buf := make([]byte, imageHeaderSize+int(geo.Size()))
	copy(buf[offMagic:], imageMagic)
	binary.LittleEndian.PutUint16(buf[offVersion:], imageVersion)
	binary.LittleEndian.PutUint32(buf[offPageSize:], geo.PageSize)
	binary.LittleEndian.PutUint32(buf[offPages:], uint32(geo.Pages))
	binary.LittleEndian.PutUint32(buf[offEndAddr:], geo.EndAddr)
	copy(buf[imageHeaderSize:], m.Snapshot())

	return writeFileAtomic(path, buf)
}
