package services

import (
	"os"
)

// FeatureFlags toggles optional stages of the protocol pipeline
type FeatureFlags struct {
	shadeNormalizationEnabled bool
	statusStreamEnabled       bool
}

// NewFeatureFlags reads the flags from the environment. Both stages are on
// unless explicitly disabled.
func NewFeatureFlags() *FeatureFlags {
	return &FeatureFlags{
		shadeNormalizationEnabled: os.Getenv("FEATURE_SHADE_NORMALIZATION") != "false",
		statusStreamEnabled:       os.Getenv("FEATURE_STATUS_STREAM") != "false",
	}
}

// ShadeNormalizationEnabled reports whether generated layers are checked
// against the shade catalog
func (f *FeatureFlags) ShadeNormalizationEnabled() bool {
	return f.shadeNormalizationEnabled
}

// StatusStreamEnabled reports whether session status events are published
// and streamed
func (f *FeatureFlags) StatusStreamEnabled() bool {
	return f.statusStreamEnabled
}
