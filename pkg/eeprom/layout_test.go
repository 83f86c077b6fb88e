package eeprom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/eeflash/pkg/eeprom"
)

func Test_Open_Returns_Error_When_Params_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		params eeprom.Params
	}{
		{
			name: "ZeroPageSize",
			params: eeprom.Params{
				PageSize: 0, EndAddr: 0x1000, Sectors: 1, PagesPerSector: 6,
			},
		},
		{
			name: "UnalignedPageSize",
			params: eeprom.Params{
				PageSize: 30, EndAddr: 0x1000, Sectors: 1, PagesPerSector: 6,
			},
		},
		{
			name: "PageTooSmallForHeaderAndEntry",
			params: eeprom.Params{
				PageSize: 4, EndAddr: 0x1000, Sectors: 1, PagesPerSector: 6,
			},
		},
		{
			name: "ZeroSectors",
			params: eeprom.Params{
				PageSize: 32, EndAddr: 0x1000, Sectors: 0, PagesPerSector: 6,
			},
		},
		{
			name: "SinglePageRing",
			params: eeprom.Params{
				PageSize: 32, EndAddr: 0x1000, Sectors: 1, PagesPerSector: 1,
			},
		},
		{
			name: "RegionLargerThanFlash",
			params: eeprom.Params{
				PageSize: 2048, EndAddr: 0x2000, Sectors: 2, PagesPerSector: 6,
			},
		},
		{
			name: "CapacityExceedsSixteenBitAddressSpace",
			params: eeprom.Params{
				PageSize: 2048, EndAddr: 0x08020000, Sectors: 129, PagesPerSector: 6,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			mem := newMem(t, smallGeo(1))

			_, err := eeprom.Open(mem, testCase.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, eeprom.ErrBadParams)
		})
	}
}

func Test_Params_Derive_Reference_Geometry(t *testing.T) {
	t.Parallel()

	p := eeprom.Params{
		PageSize:       2048,
		EndAddr:        0x08020000,
		Sectors:        1,
		PagesPerSector: 6,
	}

	// The reference part: (2048 - 4) / 4 entry slots per page.
	assert.Equal(t, 511, p.EntriesPerPage())
	assert.Equal(t, 511, p.Capacity())

	p.Sectors = 3
	assert.Equal(t, 1533, p.Capacity())
}
