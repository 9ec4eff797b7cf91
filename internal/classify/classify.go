// Package classify implements the hybrid document classifier: a fast,
// deterministic rule pass over fixed keyword/pattern category
// definitions, combined with an LLM pass for nuance, merged by a fixed
// weighted formula. The LLM pass never blocks a page or document from
// being ingested — a failure there falls back to rule-only output with
// safe content-type/language/sentiment defaults.
package classify

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/webingest/core/internal/domain"
)

const (
	mergedCategoryThreshold = 0.4
	mergedTagThreshold      = 0.3
	maxMergedCategories     = 3
	maxMergedTags           = 5

	ruleCategoryWeight = 0.4
	aiCategoryWeight   = 0.6
	ruleTagWeight      = 0.3
	aiTagWeight        = 0.7
)

// SourceKind tells the AI pass how much of the content to preview:
// uploaded documents tend to front-load their subject matter less than
// web pages do, so they get a longer preview.
type SourceKind string

const (
	SourceDocument SourceKind = "document"
	SourceWebPage  SourceKind = "page"
)

// previewChars returns the AI pass's content preview length for kind.
func (k SourceKind) previewChars() int {
	if k == SourceDocument {
		return documentPreviewChars
	}
	return pagePreviewChars
}

// Classifier runs the rule pass unconditionally and the AI passes best
// effort, merging both into a single Classification.
type Classifier struct {
	ai *aiClassifier
}

// New builds a Classifier. Either key may be empty; the corresponding
// AI call is still made, and when it fails Classify degrades as
// described on Classify.
func New(openAIKey, anthropicKey string) *Classifier {
	return &Classifier{ai: newAIClassifier(openAIKey, anthropicKey)}
}

// Classify scores content with the rule pass, then attempts the LLM
// category/tag/metadata pass and the entity-extraction pass. Either AI
// call failing degrades gracefully. If the category/tag/metadata call
// fails, only the rule pass's categories/tags apply, content_type/
// language/sentiment fall back to "document"/"en"/"neutral", and no
// entities are extracted. If only entity extraction fails, the merged
// result is returned without entities.
func (c *Classifier) Classify(ctx context.Context, content string, kind SourceKind, customCategories []string) domain.Classification {
	rules := classifyRules(content)

	ai, err := c.ai.classify(ctx, content, kind, customCategories)
	if err != nil {
		logrus.WithError(err).Warn("ai classification failed, falling back to rule-only result")
		return domain.Classification{
			Categories:  capLabels(rules.Categories, maxMergedCategories),
			Tags:        capLabels(rules.Tags, maxMergedTags),
			ContentType: "document",
			Language:    "en",
			Sentiment:   domain.SentimentNeutral,
		}
	}

	entities, err := c.ai.extractEntities(ctx, content, kind)
	if err != nil {
		logrus.WithError(err).Warn("entity extraction failed, continuing without entities")
	}

	return domain.Classification{
		Categories:  mergeLabels(rules.Categories, ai.Categories, ruleCategoryWeight, aiCategoryWeight, mergedCategoryThreshold, maxMergedCategories),
		Tags:        mergeLabels(rules.Tags, ai.Tags, ruleTagWeight, aiTagWeight, mergedTagThreshold, maxMergedTags),
		ContentType: ai.ContentType,
		Language:    ai.Language,
		Sentiment:   ai.Sentiment,
		KeyEntities: entities,
	}
}

// mergeLabels combines a rule-pass and an AI-pass label set by name,
// weighting each side's confidence, then keeps only the labels above
// threshold, sorted descending, capped at limit.
func mergeLabels(rule, ai []domain.ScoredLabel, ruleWeight, aiWeight, threshold float64, limit int) []domain.ScoredLabel {
	scores := make(map[string]float64)
	for _, l := range rule {
		scores[l.Name] += l.Confidence * ruleWeight
	}
	for _, l := range ai {
		scores[l.Name] += l.Confidence * aiWeight
	}

	merged := make([]domain.ScoredLabel, 0, len(scores))
	for name, score := range scores {
		if score > threshold {
			merged = append(merged, domain.ScoredLabel{Name: name, Confidence: score})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return capLabels(merged, limit)
}

func capLabels(labels []domain.ScoredLabel, limit int) []domain.ScoredLabel {
	if len(labels) > limit {
		return labels[:limit]
	}
	return labels
}
