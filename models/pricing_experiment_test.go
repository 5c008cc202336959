package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExperimentVariantLookup(t *testing.T) {
	experiment := &PricingExperiment{
		Variants: VariantList{
			{Name: "control", Weight: 50, PriceModifier: 0, ModifierType: ModifierTypePercentage},
			{Name: "plus_ten", Weight: 50, PriceModifier: 10, ModifierType: ModifierTypePercentage},
		},
	}

	control := experiment.Control()
	require.NotNil(t, control)
	assert.Equal(t, "control", control.Name)

	variant := experiment.VariantByName("plus_ten")
	require.NotNil(t, variant)
	assert.Equal(t, 10.0, variant.PriceModifier)

	assert.Nil(t, experiment.VariantByName("missing"))

	empty := &PricingExperiment{}
	assert.Nil(t, empty.Control())
}

func TestExperimentStatusValid(t *testing.T) {
	for _, s := range []ExperimentStatus{
		ExperimentStatusDraft, ExperimentStatusRunning,
		ExperimentStatusPaused, ExperimentStatusCompleted,
	} {
		assert.True(t, s.Valid(), "status %s", s)
	}

	assert.False(t, ExperimentStatus("archived").Valid())
}
