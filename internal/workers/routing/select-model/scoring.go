// internal/workers/routing/select-model/scoring.go
package selectmodel

import (
	"fmt"

	"salon-workers/internal/models"
	"salon-workers/pkg/catalog"
)

// Weights is one optimization-mode preset over the four scoring axes.
// Each preset sums to 1.
type Weights struct {
	Quality    float64
	Speed      float64
	Cost       float64
	Historical float64
}

var modeWeights = map[string]Weights{
	ModeCostEfficiency: {Quality: 0.2, Speed: 0.2, Cost: 0.5, Historical: 0.1},
	ModeQuality:        {Quality: 0.5, Speed: 0.15, Cost: 0.15, Historical: 0.2},
	ModeBalanced:       {Quality: 0.3, Speed: 0.25, Cost: 0.25, Historical: 0.2},
	ModeSpeed:          {Quality: 0.15, Speed: 0.5, Cost: 0.2, Historical: 0.15},
	ModePremium:        {Quality: 0.6, Speed: 0.1, Cost: 0.05, Historical: 0.25},
}

// weightsFor falls back to balanced for unknown or empty modes.
func weightsFor(mode string) Weights {
	if w, ok := modeWeights[mode]; ok {
		return w
	}
	return modeWeights[ModeBalanced]
}

// Reasoning complexity above this threshold boosts the reasoning model's
// quality axis.
const reasoningComplexityThreshold = 0.7

// Normalization ceilings for historical sub-scores.
const (
	histCostCeiling   = 0.01
	histLatencyCeilMs = 5000
)

// estimateCost approximates the request cost for one model: rough token
// count from message length plus a fixed completion allowance.
func estimateCost(spec *catalog.ModelSpec, message string) float64 {
	tokens := float64(len(message))/4 + 300
	return spec.BaseCostPer1K * tokens / 1000
}

// scoredModel is one Phase B candidate with its axis breakdown.
type scoredModel struct {
	Spec          *catalog.ModelSpec
	EstimatedCost float64

	QualityScore    float64
	SpeedScore      float64
	CostScore       float64
	HistoricalScore float64

	Weighted       float64
	ReasoningBoost bool
}

// scoreModels evaluates every enabled model. Candidates come back in
// catalog order so ties resolve to the first model exceeding the
// running best.
func scoreModels(
	cat *catalog.Catalog,
	enabledIDs []string,
	message string,
	complexity float64,
	perf map[string]models.ModelPerformance,
	w Weights,
) []scoredModel {
	maxBase := cat.MaxBaseCost(enabledIDs)
	if maxBase <= 0 {
		maxBase = histCostCeiling
	}

	enabled := make(map[string]bool, len(enabledIDs))
	for _, id := range enabledIDs {
		enabled[id] = true
	}

	var candidates []scoredModel
	for i := range cat.Models {
		spec := &cat.Models[i]
		if !enabled[spec.ID] {
			continue
		}

		sm := scoredModel{
			Spec:          spec,
			EstimatedCost: estimateCost(spec, message),
			QualityScore:  spec.Quality,
			SpeedScore:    spec.Speed,
		}

		if complexity > reasoningComplexityThreshold && spec.Reasoning {
			sm.QualityScore = clamp01(sm.QualityScore + 0.15)
			sm.ReasoningBoost = true
		}

		// Higher complexity inflates expected cost, penalizing the
		// expensive models more.
		scaled := spec.BaseCostPer1K * (1 + complexity*0.5)
		sm.CostScore = clamp01(1 - scaled/(maxBase*1.5))

		sm.HistoricalScore = historicalScore(spec, perf)

		sm.Weighted = w.Quality*sm.QualityScore +
			w.Speed*sm.SpeedScore +
			w.Cost*sm.CostScore +
			w.Historical*sm.HistoricalScore

		candidates = append(candidates, sm)
	}

	return candidates
}

// historicalScore blends success rate, cost and latency from the trailing
// usage window, substituting catalog priors when no history exists.
func historicalScore(spec *catalog.ModelSpec, perf map[string]models.ModelPerformance) float64 {
	successRate := spec.PriorSuccessRate
	avgCost := spec.PriorAvgCost
	avgRespMs := spec.PriorAvgResponseMs

	if p, ok := perf[spec.ID]; ok && p.Requests > 0 {
		successRate = p.SuccessRate
		avgCost = p.AvgCost
		avgRespMs = p.AvgResponseMs
	}

	return clamp01(0.6*successRate +
		0.2*(1-clamp01(avgCost/histCostCeiling)) +
		0.2*(1-clamp01(avgRespMs/histLatencyCeilMs)))
}

// pickBest returns the index of the highest-scoring candidate. Only a
// strictly greater score displaces the running best.
func pickBest(candidates []scoredModel) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Weighted > candidates[best].Weighted {
			best = i
		}
	}
	return best
}

// scoreReasoning names the two dominant weighted contributions.
func scoreReasoning(sm scoredModel, w Weights, mode string) string {
	type factor struct {
		phrase       string
		contribution float64
	}

	qualityPhrase := "high answer quality"
	if sm.ReasoningBoost {
		qualityPhrase = "complex reasoning required"
	}

	factors := []factor{
		{qualityPhrase, w.Quality * sm.QualityScore},
		{"fast response time", w.Speed * sm.SpeedScore},
		{"cost-effective", w.Cost * sm.CostScore},
		{"strong historical performance", w.Historical * sm.HistoricalScore},
	}

	first, second := 0, 1
	if factors[second].contribution > factors[first].contribution {
		first, second = second, first
	}
	for i := 2; i < len(factors); i++ {
		switch {
		case factors[i].contribution > factors[first].contribution:
			second = first
			first = i
		case factors[i].contribution > factors[second].contribution:
			second = i
		}
	}

	return fmt.Sprintf("selected %s (%s mode): %s, %s",
		sm.Spec.DisplayName, mode, factors[first].phrase, factors[second].phrase)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
