package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sirupsen/logrus"
	"github.com/webingest/core/internal/domain"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultClaudeModel = "claude-3-5-haiku-latest"
	maxEntities        = 10

	// documentPreviewChars and pagePreviewChars bound how much content
	// the AI pass previews. Uploaded documents front-load their subject
	// matter less predictably than a web page's lede, so they get a
	// longer preview.
	documentPreviewChars = 4000
	pagePreviewChars     = 2000
)

// aiResult is the LLM pass's raw output before weighted merge with the
// rule pass. Confidence defaults are filled in by validateAIResult when
// the model omits them.
type aiResult struct {
	Categories  []domain.ScoredLabel
	Tags        []domain.ScoredLabel
	ContentType string
	Language    string
	Sentiment   domain.Sentiment
	Summary     string
}

// aiResponse is the JSON shape requested from the chat completion. Field
// names match the prompt's schema description exactly so the model has
// no ambiguity about what to emit.
type aiResponse struct {
	Categories []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"categories"`
	Tags []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	ContentType string `json:"content_type"`
	Language    string `json:"language"`
	Sentiment   string `json:"sentiment"`
	Summary     string `json:"summary"`
}

// aiClassifier wraps the OpenAI chat completions call used for the
// category/tag/content-type/sentiment pass, and the separate Anthropic
// call used for entity extraction.
type aiClassifier struct {
	openai      sdk.Client
	openaiModel string
	anthropic   anthropic.Client
	claudeModel string
}

func newAIClassifier(openAIKey, anthropicKey string) *aiClassifier {
	return &aiClassifier{
		openai:      sdk.NewClient(option.WithAPIKey(openAIKey)),
		openaiModel: defaultOpenAIModel,
		anthropic:   anthropic.NewClient(aoption.WithAPIKey(anthropicKey)),
		claudeModel: defaultClaudeModel,
	}
}

// newAIClassifierWithBaseURLs builds an aiClassifier pointed at
// alternate API base URLs, for tests exercising the request/response
// shape against an httptest server instead of the real APIs.
func newAIClassifierWithBaseURLs(openAIBaseURL, anthropicBaseURL string) *aiClassifier {
	return &aiClassifier{
		openai:      sdk.NewClient(option.WithAPIKey("test"), option.WithBaseURL(openAIBaseURL)),
		openaiModel: defaultOpenAIModel,
		anthropic:   anthropic.NewClient(aoption.WithAPIKey("test"), aoption.WithBaseURL(anthropicBaseURL)),
		claudeModel: defaultClaudeModel,
	}
}

// classify runs the category/tag/content-type/sentiment pass. customCategories
// are tenant-defined category names injected into the prompt alongside the
// fixed system categories, so the model can choose either.
func (a *aiClassifier) classify(ctx context.Context, content string, kind SourceKind, customCategories []string) (aiResult, error) {
	truncated := truncateContent(content, kind.previewChars())
	prompt := buildClassificationPrompt(truncated, customCategories)

	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(a.openaiModel),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage("You are a document classification assistant. Respond with JSON only, matching the requested schema exactly."),
			sdk.UserMessage(prompt),
		},
	}
	params.SetExtraFields(map[string]any{
		"response_format": map[string]any{"type": "json_object"},
	})

	comp, err := a.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return aiResult{}, fmt.Errorf("openai classification: %w", err)
	}
	if len(comp.Choices) == 0 {
		return aiResult{}, fmt.Errorf("openai classification: no choices returned")
	}

	var parsed aiResponse
	raw := comp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return aiResult{}, fmt.Errorf("openai classification: decode response: %w", err)
	}
	return validateAIResult(parsed), nil
}

// extractEntities runs the Anthropic pass, asked to return at most
// maxEntities short proper-noun-like strings (people, organizations,
// products, locations) found in the content.
func (a *aiClassifier) extractEntities(ctx context.Context, content string, kind SourceKind) ([]string, error) {
	truncated := truncateContent(content, kind.previewChars())
	prompt := fmt.Sprintf(
		"Extract up to %d key entities (people, organizations, products, locations) from the following document. "+
			"Respond with a JSON array of strings only, no other text.\n\nDocument:\n%s",
		maxEntities, truncated,
	)

	resp, err := a.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.claudeModel),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic entity extraction: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	var entities []string
	raw := strings.TrimSpace(text.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &entities); err != nil {
		logrus.WithError(err).Warn("entity extraction: could not parse entity list, returning none")
		return nil, nil
	}
	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}
	return entities, nil
}

// validateAIResult clamps confidences to [0,1] and fills defaults for
// any field the model omitted, so a partially-malformed response never
// propagates nulls into the merge step.
func validateAIResult(r aiResponse) aiResult {
	out := aiResult{
		ContentType: "document",
		Language:    "en",
		Sentiment:   domain.SentimentNeutral,
		Summary:     strings.TrimSpace(r.Summary),
	}
	if ct := strings.TrimSpace(r.ContentType); ct != "" {
		out.ContentType = ct
	}
	if lang := strings.TrimSpace(r.Language); lang != "" {
		out.Language = lang
	}
	switch domain.Sentiment(strings.ToLower(strings.TrimSpace(r.Sentiment))) {
	case domain.SentimentPositive:
		out.Sentiment = domain.SentimentPositive
	case domain.SentimentNegative:
		out.Sentiment = domain.SentimentNegative
	case domain.SentimentNeutral:
		out.Sentiment = domain.SentimentNeutral
	}

	for _, c := range r.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		out.Categories = append(out.Categories, domain.ScoredLabel{
			Name:       name,
			Confidence: clamp01(c.Confidence),
		})
	}
	for _, t := range r.Tags {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		out.Tags = append(out.Tags, domain.ScoredLabel{
			Name:       name,
			Confidence: clamp01(t.Confidence),
		})
	}
	return out
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

func truncateContent(content string, maxChars int) string {
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars])
}

func buildClassificationPrompt(content string, customCategories []string) string {
	var sb strings.Builder
	sb.WriteString("Classify the following document. Choose categories from this fixed list when they apply: ")
	sb.WriteString(strings.Join(SystemCategoryNames(), ", "))
	if len(customCategories) > 0 {
		sb.WriteString(". You may also use these tenant-specific categories when they fit better: ")
		sb.WriteString(strings.Join(customCategories, ", "))
	}
	sb.WriteString(".\n\n")
	sb.WriteString("Respond with a JSON object with exactly these fields:\n")
	sb.WriteString(`{"categories": [{"name": string, "confidence": number 0-1}], ` +
		`"tags": [{"name": string, "confidence": number 0-1}], ` +
		`"content_type": string, "language": string (ISO 639-1 code), ` +
		`"sentiment": "positive"|"neutral"|"negative", "summary": string (one or two sentences)}` + "\n\n")
	sb.WriteString("Document (truncated):\n")
	sb.WriteString(content)
	return sb.String()
}
