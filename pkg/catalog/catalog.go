// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Well-known model identifiers in the default catalog.
const (
	ModelFastChat  = "gpt-4o-mini"
	ModelReasoning = "gpt-4o"
	ModelVoice     = "elevenlabs-tts"
)

// Output channels the workflow routes completed decisions to.
const (
	ChannelFastModel      = "fast-model"
	ChannelReasoningModel = "reasoning-model"
	ChannelVoice          = "voice"
	ChannelDefault        = "default"
)

// Default returns the built-in model catalog.
func Default() *Catalog {
	return &Catalog{
		Version: "1.0",
		Models: []ModelSpec{
			{
				ID:                 ModelFastChat,
				DisplayName:        "Fast Chat",
				OutputChannel:      ChannelFastModel,
				BaseCostPer1K:      0.0002,
				Quality:            0.62,
				Speed:              0.95,
				PriorSuccessRate:   0.92,
				PriorAvgCost:       0.0003,
				PriorAvgResponseMs: 900,
			},
			{
				ID:                 ModelReasoning,
				DisplayName:        "Reasoning",
				OutputChannel:      ChannelReasoningModel,
				BaseCostPer1K:      0.005,
				Quality:            0.95,
				Speed:              0.55,
				PriorSuccessRate:   0.95,
				PriorAvgCost:       0.004,
				PriorAvgResponseMs: 2600,
				Reasoning:          true,
			},
			{
				ID:                 ModelVoice,
				DisplayName:        "Voice Synthesis",
				OutputChannel:      ChannelVoice,
				BaseCostPer1K:      0.008,
				Quality:            0.85,
				Speed:              0.70,
				PriorSuccessRate:   0.90,
				PriorAvgCost:       0.006,
				PriorAvgResponseMs: 1800,
				Voice:              true,
			},
		},
	}
}

// Load reads a catalog override file. An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Models) == 0 {
		return nil, fmt.Errorf("catalog %s contains no models", path)
	}
	for i, m := range cat.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog model %d is missing an id", i)
		}
		if m.BaseCostPer1K < 0 {
			return nil, fmt.Errorf("catalog model %s has negative base cost", m.ID)
		}
	}

	return &cat, nil
}

// Get returns the spec for id, or nil for unknown models.
func (c *Catalog) Get(id string) *ModelSpec {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}

// Channel maps a model id to its output channel; unknown ids and the empty
// id fall through to the default channel.
func (c *Catalog) Channel(id string) string {
	if m := c.Get(id); m != nil && m.OutputChannel != "" {
		return m.OutputChannel
	}
	return ChannelDefault
}

// MaxBaseCost returns the highest per-1K base cost across the given ids,
// used to normalize the cost axis.
func (c *Catalog) MaxBaseCost(ids []string) float64 {
	max := 0.0
	for _, id := range ids {
		if m := c.Get(id); m != nil && m.BaseCostPer1K > max {
			max = m.BaseCostPer1K
		}
	}
	return max
}
