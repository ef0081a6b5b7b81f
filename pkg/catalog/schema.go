// pkg/catalog/schema.go
package catalog

// Catalog is the ordered set of AI models the router can choose between.
// Slice order is significant: scoring ties are broken by the first model
// whose score exceeds the running best.
type Catalog struct {
	Version string      `json:"version"`
	Models  []ModelSpec `json:"models"`
}

// ModelSpec carries every per-model table the decision engines consult:
// pricing, axis scores, historical priors and output routing. Adding a
// provider is one entry here instead of edits to parallel tables.
type ModelSpec struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	OutputChannel string `json:"outputChannel"`

	// Cost per 1K estimated tokens, used for request cost estimates.
	BaseCostPer1K float64 `json:"baseCostPer1k"`

	// Static axis scores in [0,1].
	Quality float64 `json:"quality"`
	Speed   float64 `json:"speed"`

	// Priors substituted when a salon has no usage history yet.
	PriorSuccessRate   float64 `json:"priorSuccessRate"`
	PriorAvgCost       float64 `json:"priorAvgCost"`
	PriorAvgResponseMs float64 `json:"priorAvgResponseMs"`

	// Capability flags.
	Reasoning bool `json:"reasoning"`
	Voice     bool `json:"voice"`
}
