// internal/suggest/ranker.go
package suggest

import (
	"sort"

	"go.uber.org/zap"

	"github.com/korhaliv/mend-cli/api/schemas"
)

// Ranker merges rule-based and AI suggestions per failure, deduplicates by
// fingerprint, ranks by confidence and truncates to the configured maximum.
type Ranker struct {
	minConfidence float64
	maxPerFailure int
	logger        *zap.Logger
}

// NewRanker builds a ranker with the configured thresholds.
func NewRanker(minConfidence float64, maxPerFailure int, logger *zap.Logger) *Ranker {
	return &Ranker{
		minConfidence: minConfidence,
		maxPerFailure: maxPerFailure,
		logger:        logger.Named("ranker"),
	}
}

// provenanceOrder breaks confidence ties deterministically: rule-based
// suggestions sort before AI ones because they are cheaper to re-derive.
func provenanceOrder(p schemas.Provenance) int {
	if p == schemas.ProvenanceRule {
		return 0
	}
	return 1
}

// Rank processes the merged suggestion set. After ranking, no failure has two
// suggestions sharing a fingerprint, nothing below the minimum confidence
// survives, at most maxPerFailure suggestions remain per failure, and output
// is sorted by confidence descending with a stable provenance tie-break.
// Relative failure order follows first appearance in the input.
func (r *Ranker) Rank(suggestions []schemas.FixSuggestion) []schemas.FixSuggestion {
	perFailure := make(map[string][]schemas.FixSuggestion)
	var order []string
	for _, s := range suggestions {
		if _, seen := perFailure[s.TestID]; !seen {
			order = append(order, s.TestID)
		}
		perFailure[s.TestID] = append(perFailure[s.TestID], s)
	}

	var out []schemas.FixSuggestion
	dropped := 0
	for _, testID := range order {
		group := perFailure[testID]

		// Duplicate fingerprints collapse onto the highest-confidence copy,
		// regardless of which engine produced it.
		byFingerprint := make(map[string]schemas.FixSuggestion, len(group))
		var fpOrder []string
		for _, s := range group {
			existing, ok := byFingerprint[s.Fingerprint]
			if !ok {
				fpOrder = append(fpOrder, s.Fingerprint)
				byFingerprint[s.Fingerprint] = s
				continue
			}
			dropped++
			if s.Confidence > existing.Confidence {
				byFingerprint[s.Fingerprint] = s
			}
		}

		deduped := make([]schemas.FixSuggestion, 0, len(fpOrder))
		for _, fp := range fpOrder {
			s := byFingerprint[fp]
			if s.Confidence < r.minConfidence {
				continue
			}
			deduped = append(deduped, s)
		}

		sort.SliceStable(deduped, func(i, j int) bool {
			if deduped[i].Confidence != deduped[j].Confidence {
				return deduped[i].Confidence > deduped[j].Confidence
			}
			return provenanceOrder(deduped[i].Provenance) < provenanceOrder(deduped[j].Provenance)
		})

		if r.maxPerFailure > 0 && len(deduped) > r.maxPerFailure {
			deduped = deduped[:r.maxPerFailure]
		}
		out = append(out, deduped...)
	}

	r.logger.Debug("Ranked suggestions",
		zap.Int("in", len(suggestions)),
		zap.Int("out", len(out)),
		zap.Int("duplicates_dropped", dropped))
	return out
}
