package classify

import "regexp"

// categoryDef is one system category's keyword/pattern definition.
type categoryDef struct {
	Keywords      []string
	Patterns      []*regexp.Regexp
	Subcategories []string
}

// systemCategories is the fixed set of tenant-independent categories
// the rule-based pass scores content against.
var systemCategories = map[string]categoryDef{
	"Legal": {
		Keywords: []string{
			"contract", "agreement", "terms", "liability", "clause", "legal",
			"whereas", "therefore", "party", "parties", "jurisdiction",
			"confidentiality", "non-disclosure", "nda", "license", "copyright",
			"trademark", "patent", "compliance", "regulation", "statute",
			"amendment", "addendum", "exhibit", "schedule", "appendix",
		},
		Patterns: compilePatterns(
			`\b(whereas|therefore|party|parties|agreement)\b`,
			`\b(section|clause|subsection)\s+\d+`,
			`\b(effective date|execution date|termination)\b`,
			`\bhereby\s+(agree|acknowledge|represent)\b`,
		),
		Subcategories: []string{"Contracts", "Compliance", "Policies", "Legal Notices"},
	},
	"Financial": {
		Keywords: []string{
			"invoice", "payment", "financial", "budget", "revenue", "cost",
			"expense", "profit", "loss", "balance", "statement", "report",
			"tax", "accounting", "audit", "fiscal", "quarterly", "annual",
			"accounts", "payable", "receivable", "cash", "flow", "forecast",
		},
		Patterns: compilePatterns(
			`\$[\d,]+\.?\d*`,
			`\b(payment|invoice|receipt)\b`,
			`\b(quarterly|annual)\s+(report|statement)\b`,
			`\b(net|gross)\s+(income|profit)\b`,
		),
		Subcategories: []string{"Invoices", "Reports", "Budgets", "Tax Documents"},
	},
	"HR": {
		Keywords: []string{
			"employee", "hiring", "policy", "benefits", "payroll", "recruitment",
			"performance", "review", "evaluation", "training", "development",
			"onboarding", "termination", "resignation", "vacation", "leave",
			"handbook", "manual", "personnel", "staff", "team", "manager",
		},
		Patterns: compilePatterns(
			`\b(employee|staff|hr|human resources)\b`,
			`\b(job description|position)\b`,
			`\b(annual review|performance evaluation)\b`,
		),
		Subcategories: []string{"Policies", "Onboarding", "Performance", "Benefits"},
	},
	"Technical": {
		Keywords: []string{
			"specification", "manual", "documentation", "technical", "api",
			"software", "hardware", "system", "architecture", "design",
			"implementation", "configuration", "installation", "setup",
			"troubleshooting", "maintenance", "upgrade", "migration",
		},
		Patterns: compilePatterns(
			`\b(api|endpoint|function|method|class)\b`,
			`\b(version|release)\s+\d+\.\d+`,
			`\b(install|configure|setup)\b`,
		),
		Subcategories: []string{"Manuals", "Specifications", "Documentation", "APIs"},
	},
	"Marketing": {
		Keywords: []string{
			"marketing", "campaign", "brand", "content", "social", "media",
			"advertising", "promotion", "strategy", "analysis", "metrics",
			"conversion", "engagement", "reach", "impression", "click",
			"email", "newsletter", "blog", "seo", "sem", "ppc",
		},
		Patterns: compilePatterns(
			`\b(campaign|marketing|brand|content)\b`,
			`\b(click.through|conversion) rate\b`,
			`\b(social media|email marketing)\b`,
		),
		Subcategories: []string{"Campaigns", "Content", "Analysis", "Social Media"},
	},
}

// SystemCategoryNames returns the fixed set of system category names,
// in a stable order, for seeding a tenant's category table.
func SystemCategoryNames() []string {
	return []string{"Legal", "Financial", "HR", "Technical", "Marketing"}
}

// Subcategories returns the seed subcategories for a system category.
func Subcategories(name string) []string {
	return systemCategories[name].Subcategories
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// categoryColors and categoryIcons mirror the seed UI metadata from the
// original tenant category bootstrap.
var categoryColors = map[string]string{
	"Legal":     "#1E40AF",
	"Financial": "#059669",
	"HR":        "#DC2626",
	"Technical": "#7C3AED",
	"Marketing": "#EA580C",
}

var categoryIcons = map[string]string{
	"Legal":     "legal",
	"Financial": "financial",
	"HR":        "users",
	"Technical": "code",
	"Marketing": "megaphone",
}

// CategoryColor returns the seed UI color for a system category, or a
// neutral default for anything else.
func CategoryColor(name string) string {
	if c, ok := categoryColors[name]; ok {
		return c
	}
	return "#6B7280"
}

// CategoryIcon returns the seed UI icon for a system category, or a
// neutral default for anything else.
func CategoryIcon(name string) string {
	if c, ok := categoryIcons[name]; ok {
		return c
	}
	return "document"
}
