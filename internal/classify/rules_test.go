package classify

import "testing"

func TestClassifyRulesDetectsLegalContent(t *testing.T) {
	text := `WHEREAS the parties hereby agree to the terms of this agreement, and WHEREAS
	this contract establishes a confidentiality clause and non-disclosure obligations
	under the jurisdiction of the applicable statute. Section 4 governs termination
	and the effective date of this agreement. The parties hereby acknowledge and
	represent that this constitutes a binding legal agreement between the parties.`

	result := classifyRules(text)
	if len(result.Categories) == 0 {
		t.Fatalf("expected at least one category, got none")
	}
	if result.Categories[0].Name != "Legal" {
		t.Fatalf("top category = %q, want Legal", result.Categories[0].Name)
	}
	if len(result.Tags) == 0 {
		t.Fatalf("expected tags from matched keywords, got none")
	}
}

func TestClassifyRulesIgnoresUnrelatedContent(t *testing.T) {
	result := classifyRules("the quick brown fox jumps over the lazy dog")
	if len(result.Categories) != 0 {
		t.Fatalf("expected no categories for unrelated text, got %v", result.Categories)
	}
}

func TestClassifyRulesSortsCategoriesByConfidenceDescending(t *testing.T) {
	text := `invoice payment financial budget revenue cost expense profit loss balance
	statement quarterly report tax accounting audit fiscal $1,200.00 net income.
	employee hiring policy benefits payroll onboarding.`

	result := classifyRules(text)
	for i := 1; i < len(result.Categories); i++ {
		if result.Categories[i-1].Confidence < result.Categories[i].Confidence {
			t.Fatalf("categories not sorted descending: %v", result.Categories)
		}
	}
}

func TestMatchedKeywordsRespectsLimit(t *testing.T) {
	keywords := []string{"invoice", "payment", "budget", "revenue"}
	got := matchedKeywords(keywords, "invoice payment budget revenue", 2)
	if len(got) != 2 {
		t.Fatalf("matchedKeywords returned %d keywords, want 2", len(got))
	}
}
