package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureFlags_DefaultsOn(t *testing.T) {
	t.Setenv("FEATURE_SHADE_NORMALIZATION", "")
	t.Setenv("FEATURE_STATUS_STREAM", "")

	flags := NewFeatureFlags()

	assert.True(t, flags.ShadeNormalizationEnabled())
	assert.True(t, flags.StatusStreamEnabled())
}

func TestFeatureFlags_Disabled(t *testing.T) {
	t.Setenv("FEATURE_SHADE_NORMALIZATION", "false")
	t.Setenv("FEATURE_STATUS_STREAM", "false")

	flags := NewFeatureFlags()

	assert.False(t, flags.ShadeNormalizationEnabled())
	assert.False(t, flags.StatusStreamEnabled())
}
