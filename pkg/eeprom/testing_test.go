package eeprom_test

import (
	"testing"

	"github.com/calvinalkan/eeflash/pkg/eeprom"
	"github.com/calvinalkan/eeflash/pkg/flash"
)

// Standard geometry matching the reference part: 2048-byte pages, one
// sector of six pages at the top of a 128K part. N = 511 entries/page.
const (
	stdPageSize = 2048
	stdEndAddr  = 0x08020000
	stdPages    = 6
)

// Small geometry for swap-heavy and crash-sweep tests: 32-byte pages,
// N = 7 entries/page.
const (
	smallPageSize = 32
	smallEndAddr  = 0x1000
	smallPages    = 6
)

type testGeo struct {
	pageSize uint32
	endAddr  uint32
	sectors  int
	pages    int
}

func stdGeo(sectors int) testGeo {
	return testGeo{pageSize: stdPageSize, endAddr: stdEndAddr, sectors: sectors, pages: stdPages}
}

func smallGeo(sectors int) testGeo {
	return testGeo{pageSize: smallPageSize, endAddr: smallEndAddr, sectors: sectors, pages: smallPages}
}

func (g testGeo) params() eeprom.Params {
	return eeprom.Params{
		PageSize:       g.pageSize,
		EndAddr:        g.endAddr,
		Sectors:        g.sectors,
		PagesPerSector: g.pages,
	}
}

func (g testGeo) start() uint32 {
	return g.endAddr - uint32(g.sectors*g.pages)*g.pageSize
}

func (g testGeo) pageBase(sector, page int) uint32 {
	return g.start() + uint32(sector*g.pages+page)*g.pageSize
}

func (g testGeo) entryAddr(sector, page, slot int) uint32 {
	return g.pageBase(sector, page) + 4 + uint32(slot)*4
}

func (g testGeo) entriesPerPage() int {
	return int((g.pageSize - 4) / 4)
}

// newMem returns a fully erased simulated part for the geometry.
func newMem(t *testing.T, g testGeo) *flash.Mem {
	t.Helper()

	mem, err := flash.NewMem(flash.Geometry{
		PageSize: g.pageSize,
		Pages:    g.sectors * g.pages,
		EndAddr:  g.endAddr,
	})
	if err != nil {
		t.Fatalf("NewMem failed: %v", err)
	}

	return mem
}

// openEngine opens an engine over the device, failing the test on error.
func openEngine(t *testing.T, mem *flash.Mem, g testGeo) *eeprom.EEPROM {
	t.Helper()

	e, err := eeprom.Open(mem, g.params())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	return e
}

// mustWrite writes and fails the test on error.
func mustWrite(t *testing.T, e *eeprom.EEPROM, addr, value uint16) {
	t.Helper()

	if err := e.Write(addr, value); err != nil {
		t.Fatalf("Write(%#x, %#x) failed: %v", addr, value, err)
	}
}

// requireFound asserts a Read returns Found with the given value.
func requireFound(t *testing.T, e *eeprom.EEPROM, addr, want uint16) {
	t.Helper()

	got, status, err := e.Read(addr)
	if err != nil {
		t.Fatalf("Read(%#x) failed: %v", addr, err)
	}

	if status != eeprom.Found {
		t.Fatalf("Read(%#x) status mismatch: got=%v want=found", addr, status)
	}

	if got != want {
		t.Fatalf("Read(%#x) value mismatch: got=%#x want=%#x", addr, got, want)
	}
}

// requireEmpty asserts a Read returns Empty.
func requireEmpty(t *testing.T, e *eeprom.EEPROM, addr uint16) {
	t.Helper()

	got, status, err := e.Read(addr)
	if err != nil {
		t.Fatalf("Read(%#x) failed: %v", addr, err)
	}

	if status != eeprom.Empty {
		t.Fatalf("Read(%#x) status mismatch: got=%v want=empty", addr, status)
	}

	if got != 0xFFFF {
		t.Fatalf("Read(%#x) empty value mismatch: got=%#x want=0xffff", addr, got)
	}
}

// setHeader writes a raw page status word, bypassing the programming model.
func setHeader(mem *flash.Mem, g testGeo, sector, page int, status uint16) {
	mem.Corrupt(g.pageBase(sector, page), byte(status), byte(status>>8))
}

// setEntry writes a raw entry into a slot, bypassing the programming model.
func setEntry(mem *flash.Mem, g testGeo, sector, page, slot int, addr, value uint16) {
	mem.Corrupt(g.entryAddr(sector, page, slot),
		byte(addr), byte(addr>>8), byte(value), byte(value>>8))
}

// activeStats returns the stats of the given sector.
func activeStats(t *testing.T, e *eeprom.EEPROM, sector int) eeprom.SectorStats {
	t.Helper()

	stats := e.Stats()
	if sector >= len(stats) {
		t.Fatalf("no stats for sector %d", sector)
	}

	return stats[sector]
}
