// Model-based and wear-leveling property tests.
//
// Oracle: a plain map updated on every acknowledged write. The engine
// must agree with the map after any workload, and again after a reopen.

package eeprom_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/eeflash/pkg/eeprom"
)

// readAll reads every address the params cover and returns the Found ones.
func readAll(t *testing.T, e *eeprom.EEPROM, capacity int) map[uint16]uint16 {
	t.Helper()

	out := make(map[uint16]uint16)

	for addr := 0; addr < capacity; addr++ {
		value, status, err := e.Read(uint16(addr))
		require.NoError(t, err)

		switch status {
		case eeprom.Found:
			out[uint16(addr)] = value
		case eeprom.Empty:
			// not in the model either
		case eeprom.Fault:
			t.Fatalf("Read(%#x) faulted", addr)
		}
	}

	return out
}

func Test_Engine_Matches_Map_Model_Across_Random_Workload(t *testing.T) {
	t.Parallel()

	g := smallGeo(2)
	mem := newMem(t, g)
	e := openEngine(t, mem, g)

	capacity := g.params().Capacity() // 14 addresses across 2 sectors

	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test workload

	model := make(map[uint16]uint16)

	for i := 0; i < 500; i++ {
		addr := uint16(rng.Intn(capacity))
		value := uint16(rng.Intn(0xFFFF)) // never the erased pattern

		require.NoError(t, e.Write(addr, value))

		model[addr] = value
	}

	if diff := cmp.Diff(model, readAll(t, e, capacity)); diff != "" {
		t.Fatalf("engine diverges from model (-want +got):\n%s", diff)
	}

	// A clean reboot changes nothing.
	e2 := openEngine(t, mem, g)

	if diff := cmp.Diff(model, readAll(t, e2, capacity)); diff != "" {
		t.Fatalf("engine diverges from model after reopen (-want +got):\n%s", diff)
	}
}

func Test_Wear_Spreads_Erases_Evenly_Across_The_Ring(t *testing.T) {
	t.Parallel()

	g := smallGeo(1)
	mem := newMem(t, g)
	e := openEngine(t, mem, g)

	// Alternating values on one key: every write appends one entry, the
	// 7-slot page fills, and each swap compacts down to a single entry.
	// 91 writes drive exactly 12 swaps, two full trips around the ring.
	values := []uint16{0xAAAA, 0x5555}

	for i := 0; i < 91; i++ {
		require.NoError(t, e.Write(3, values[i%2]))
	}

	assert.Equal(t, 0, activeStats(t, e, 0).ActivePage,
		"12 swaps must land back on page 0")

	// Every page was erased once at init, twice as a swap destination,
	// and twice as a retired old page.
	for page := 0; page < g.pages; page++ {
		assert.Equal(t, 5, mem.PageErases(page), "page %d erase count", page)
	}
}

func Test_Compaction_Keeps_Exactly_The_Live_Set(t *testing.T) {
	t.Parallel()

	g := smallGeo(1)
	mem := newMem(t, g)
	e := openEngine(t, mem, g)

	model := make(map[uint16]uint16)

	write := func(addr, value uint16) {
		require.NoError(t, e.Write(addr, value))
		model[addr] = value
	}

	// Churn three keys until the page fills, then trigger the swap.
	write(4, 0x0001)
	write(5, 0x0002)
	write(4, 0x0003)
	write(6, 0x0004)
	write(4, 0x0005)
	write(5, 0x0006)
	write(6, 0x0007)
	write(4, 0x0008) // page full -> swap

	stats := activeStats(t, e, 0)
	require.Equal(t, 1, stats.ActivePage)

	// The compacted page holds one entry per live key, nothing else.
	assert.Equal(t, len(model), stats.UsedSlots)
	assert.Equal(t, len(model), stats.LiveKeys)

	if diff := cmp.Diff(model, readAll(t, e, g.params().Capacity())); diff != "" {
		t.Fatalf("live set mismatch (-want +got):\n%s", diff)
	}
}
