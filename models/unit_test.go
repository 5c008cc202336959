package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryForArea(t *testing.T) {
	tests := []struct {
		area     float64
		expected UnitCategory
	}{
		{0.5, UnitCategoryXS},
		{1.99, UnitCategoryXS},
		{2.0, UnitCategorySmall},
		{4.99, UnitCategorySmall},
		{5.0, UnitCategoryMedium},
		{9.99, UnitCategoryMedium},
		{10.0, UnitCategoryLarge},
		{19.99, UnitCategoryLarge},
		{20.0, UnitCategoryXL},
		{29.99, UnitCategoryXL},
		{30.0, UnitCategoryXXL},
		{120.0, UnitCategoryXXL},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CategoryForArea(tt.area), "area %v", tt.area)
	}
}

func TestUnitCategoryValid(t *testing.T) {
	for _, c := range []UnitCategory{
		UnitCategoryXS, UnitCategorySmall, UnitCategoryMedium,
		UnitCategoryLarge, UnitCategoryXL, UnitCategoryXXL,
	} {
		assert.True(t, c.Valid(), "category %s", c)
	}

	assert.False(t, UnitCategory("huge").Valid())
	assert.False(t, UnitCategory("").Valid())
}

func TestUnitStatusScanValue(t *testing.T) {
	var status UnitStatus
	require.NoError(t, status.Scan("occupied"))
	assert.Equal(t, UnitStatusOccupied, status)

	require.NoError(t, status.Scan([]byte("available")))
	assert.Equal(t, UnitStatusAvailable, status)

	require.NoError(t, status.Scan(nil))
	assert.Equal(t, UnitStatus(""), status)

	assert.Error(t, status.Scan(42))

	v, err := UnitStatusMaintenance.Value()
	require.NoError(t, err)
	assert.Equal(t, "maintenance", v)

	_, err = UnitStatus("demolished").Value()
	assert.Error(t, err)
}
