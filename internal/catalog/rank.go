package catalog

import (
	"cmp"
	"slices"
	"strings"
)

// IsRelevant keeps every free model and any paid model from a recognized family.
func IsRelevant(m ClassifiedModel, opts Options) bool {
	if m.Tier == TierFree {
		return true
	}
	id := strings.ToLower(m.ID)
	for _, kw := range opts.Keywords {
		if kw != "" && strings.Contains(id, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Rank filters irrelevant models and orders the rest by tier, then prompt
// cost. Exact ties keep their input order. The input slice is not modified.
func Rank(models []ClassifiedModel, opts Options) []ClassifiedModel {
	opts = opts.WithDefaults()

	ranked := make([]ClassifiedModel, 0, len(models))
	for _, m := range models {
		if IsRelevant(m, opts) {
			ranked = append(ranked, m)
		}
	}

	slices.SortStableFunc(ranked, func(a, b ClassifiedModel) int {
		if c := cmp.Compare(a.Tier.Rank(), b.Tier.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.PromptCost, b.PromptCost)
	})
	return ranked
}

// Pipeline runs normalize, classify and rank over a raw catalog.
func Pipeline(raws []RawModel, opts Options) []ClassifiedModel {
	return RankModels(NormalizeAll(raws), opts)
}

func NormalizeAll(raws []RawModel) []Model {
	models := make([]Model, 0, len(raws))
	for _, raw := range raws {
		models = append(models, Normalize(raw))
	}
	return models
}

// RankModels classifies already normalized models and ranks them.
func RankModels(models []Model, opts Options) []ClassifiedModel {
	opts = opts.WithDefaults()

	classified := make([]ClassifiedModel, 0, len(models))
	for _, m := range models {
		classified = append(classified, Classify(m, opts))
	}
	return Rank(classified, opts)
}

// Filter narrows a ranked catalog by tier and provider. Empty criteria match
// everything; provider matching ignores case.
func Filter(models []ClassifiedModel, tier Tier, provider string) []ClassifiedModel {
	out := make([]ClassifiedModel, 0, len(models))
	for _, m := range models {
		if tier != "" && m.Tier != tier {
			continue
		}
		if provider != "" && !strings.EqualFold(m.Provider, provider) {
			continue
		}
		out = append(out, m)
	}
	return out
}
