package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/taru-edu/taru/internal/assessment"
)

// HeuristicScorer scores without any model: the score is the share of
// questions answered rather than skipped. It keeps results available when
// no LLM or workflow is configured.
type HeuristicScorer struct {
	now func() time.Time
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{now: time.Now}
}

func (s *HeuristicScorer) Score(_ context.Context, input ScoreInput) (*assessment.Result, error) {
	total := input.TotalQuestions
	if total == 0 {
		total = len(input.Responses)
	}

	answered := 0
	categories := make(map[string]int)
	var skippedCats []string
	for _, r := range input.Responses {
		if r.Skipped() {
			if r.Category != "" {
				skippedCats = append(skippedCats, r.Category)
			}
			continue
		}
		answered++
		if r.Category != "" {
			categories[r.Category]++
		}
	}

	score := 0
	if total > 0 {
		score = answered * 100 / total
	}

	res := &assessment.Result{
		Score:          assessment.ClampScore(score),
		TotalQuestions: total,
		Summary:        fmt.Sprintf("You answered %d of %d questions in the %s.", answered, total, input.Type.Title()),
		ScoredAt:       s.now().UTC(),
	}
	if top := topCategory(categories); top != "" {
		res.Classification = top
	}
	for _, c := range dedupe(skippedCats) {
		res.Recommendations = append(res.Recommendations, fmt.Sprintf("Revisit the %s questions you skipped.", c))
	}
	return res, nil
}

// topCategory returns the most answered category, ties broken by name.
func topCategory(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
