package eeprom_test

import (
	"testing"

	"github.com/calvinalkan/eeflash/pkg/eeprom"
	"github.com/calvinalkan/eeflash/pkg/flash"
)

func newBenchEngine(b *testing.B) *eeprom.EEPROM {
	b.Helper()

	mem, err := flash.NewMem(flash.Geometry{
		PageSize: stdPageSize,
		Pages:    stdPages,
		EndAddr:  stdEndAddr,
	})
	if err != nil {
		b.Fatalf("NewMem failed: %v", err)
	}

	e, err := eeprom.Open(mem, stdGeo(1).params())
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}

	return e
}

func Benchmark_Write_SameKey(b *testing.B) {
	e := newBenchEngine(b)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := e.Write(0, uint16(i)); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
}

func Benchmark_Write_KeySpread(b *testing.B) {
	e := newBenchEngine(b)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := e.Write(uint16(i%511), uint16(i)); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
}

func Benchmark_Read_RecentlyWritten(b *testing.B) {
	e := newBenchEngine(b)

	if err := e.Write(7, 0x1234); err != nil {
		b.Fatalf("Write failed: %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, _, err := e.Read(7); err != nil {
			b.Fatalf("Read failed: %v", err)
		}
	}
}
