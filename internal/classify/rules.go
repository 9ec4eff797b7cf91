package classify

import (
	"sort"
	"strings"

	"github.com/webingest/core/internal/domain"
)

// ruleThreshold is the minimum confidence a category must clear to be
// reported by the rule pass.
const ruleThreshold = 0.3

// ruleResult is the rule pass's raw output before weighted merge with
// the LLM pass.
type ruleResult struct {
	Categories []domain.ScoredLabel
	Tags       []domain.ScoredLabel
}

// classifyRules scores content against the fixed system category
// keyword/pattern lists. Confidence combines a keyword/pattern score
// with a keyword-density multiplier, capped at 1.0.
func classifyRules(content string) ruleResult {
	lower := strings.ToLower(content)
	wordCount := len(strings.Fields(lower))
	var result ruleResult

	for name, def := range systemCategories {
		score := 0.0
		matches := 0

		for _, kw := range def.Keywords {
			if strings.Contains(lower, kw) {
				score += 0.1
				matches += strings.Count(lower, kw)
			}
		}

		for _, pattern := range def.Patterns {
			n := len(pattern.FindAllString(lower, -1))
			if n > 0 {
				capped := n
				if capped > 3 {
					capped = 3
				}
				score += 0.2 * float64(capped)
			}
		}

		if matches == 0 || wordCount == 0 {
			continue
		}

		density := float64(matches) / float64(wordCount)
		confidence := score * (1 + density*10)
		if confidence > 1.0 {
			confidence = 1.0
		}

		if confidence > ruleThreshold {
			result.Categories = append(result.Categories, domain.ScoredLabel{
				Name: name, Confidence: confidence,
			})

			matched := matchedKeywords(def.Keywords, lower, 3)
			for _, kw := range matched {
				result.Tags = append(result.Tags, domain.ScoredLabel{
					Name: kw, Confidence: confidence * 0.8,
				})
			}
		}
	}

	sort.Slice(result.Categories, func(i, j int) bool {
		return result.Categories[i].Confidence > result.Categories[j].Confidence
	})
	sort.Slice(result.Tags, func(i, j int) bool {
		return result.Tags[i].Confidence > result.Tags[j].Confidence
	})

	return result
}

func matchedKeywords(keywords []string, lower string, limit int) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
