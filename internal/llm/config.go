// Package llm provides the reasoning-service client and helpers for
// recovering structured data from its free-text replies.
package llm

// ModelTier represents the capability level requested for a task.
type ModelTier string

const (
	// TierLite is for cheap tasks: classification, relevance judging.
	TierLite ModelTier = "lite"
	// TierStandard is for structured extraction from raw document text.
	TierStandard ModelTier = "standard"
)

// Config holds the model configuration for the process.
type Config struct {
	Models map[ModelTier]string
}

// DefaultConfig returns the default Gemini model mapping.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
	}
}

// GetModel returns the model name for a tier, falling back to the
// standard tier when a tier has no mapping.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return ""
}
