package uom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToBase(t *testing.T) {
	require.EqualValues(t, 96, ToBase(8, 12))
	require.EqualValues(t, 8, ToBase(8, 1))
	require.EqualValues(t, 8, ToBase(8, 0))
	require.EqualValues(t, 8, ToBase(8, -3))
}

func TestToPackagesFloors(t *testing.T) {
	require.EqualValues(t, 8, ToPackages(100, 12))
	require.EqualValues(t, 0, ToPackages(11, 12))
	require.EqualValues(t, 100, ToPackages(100, 1))
}

func TestRoundTrip(t *testing.T) {
	factors := []int64{1, 2, 6, 12, 24, 48}
	for _, factor := range factors {
		for qty := int64(0); qty <= 50; qty++ {
			require.EqualValues(t, qty, ToPackages(ToBase(qty, factor), factor),
				"qty=%d factor=%d", qty, factor)
		}
	}
}

func TestHasPackageUnit(t *testing.T) {
	require.False(t, HasPackageUnit(0))
	require.False(t, HasPackageUnit(1))
	require.True(t, HasPackageUnit(12))
}
