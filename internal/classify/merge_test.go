package classify

import (
	"testing"

	"github.com/webingest/core/internal/domain"
)

func TestMergeLabelsWeightsRuleAndAI(t *testing.T) {
	rule := []domain.ScoredLabel{{Name: "Legal", Confidence: 1.0}}
	ai := []domain.ScoredLabel{{Name: "Legal", Confidence: 1.0}}

	merged := mergeLabels(rule, ai, ruleCategoryWeight, aiCategoryWeight, mergedCategoryThreshold, maxMergedCategories)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged category, got %d", len(merged))
	}
	want := ruleCategoryWeight*1.0 + aiCategoryWeight*1.0
	if merged[0].Confidence != want {
		t.Fatalf("confidence = %v, want %v", merged[0].Confidence, want)
	}
}

func TestMergeLabelsDropsBelowThreshold(t *testing.T) {
	rule := []domain.ScoredLabel{{Name: "Marketing", Confidence: 0.1}}
	merged := mergeLabels(rule, nil, ruleCategoryWeight, aiCategoryWeight, mergedCategoryThreshold, maxMergedCategories)
	if len(merged) != 0 {
		t.Fatalf("expected labels below threshold to be dropped, got %v", merged)
	}
}

func TestMergeLabelsCapsAtLimit(t *testing.T) {
	var ai []domain.ScoredLabel
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		ai = append(ai, domain.ScoredLabel{Name: name, Confidence: 1.0})
	}
	merged := mergeLabels(nil, ai, ruleTagWeight, aiTagWeight, mergedTagThreshold, maxMergedTags)
	if len(merged) != maxMergedTags {
		t.Fatalf("merged has %d labels, want capped at %d", len(merged), maxMergedTags)
	}
}

func TestValidateAIResultFillsDefaultsAndClamps(t *testing.T) {
	r := aiResponse{
		Categories: []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		}{{Name: "Legal", Confidence: 1.5}},
	}
	out := validateAIResult(r)
	if out.ContentType != "document" || out.Language != "en" || out.Sentiment != domain.SentimentNeutral {
		t.Fatalf("unexpected defaults: %+v", out)
	}
	if len(out.Categories) != 1 || out.Categories[0].Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %+v", out.Categories)
	}
}

func TestTruncateContentRespectsRuneBoundary(t *testing.T) {
	text := "日本語のテキストです"
	got := truncateContent(text, 3)
	if len([]rune(got)) != 3 {
		t.Fatalf("truncateContent returned %d runes, want 3", len([]rune(got)))
	}
}

func TestSourceKindPreviewCharsDiffersByKind(t *testing.T) {
	if SourceDocument.previewChars() != documentPreviewChars {
		t.Fatalf("document preview = %d, want %d", SourceDocument.previewChars(), documentPreviewChars)
	}
	if SourceWebPage.previewChars() != pagePreviewChars {
		t.Fatalf("page preview = %d, want %d", SourceWebPage.previewChars(), pagePreviewChars)
	}
	if documentPreviewChars <= pagePreviewChars {
		t.Fatalf("expected document preview to be longer than page preview")
	}
}
