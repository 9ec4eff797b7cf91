// Package domain holds the entities shared across the ingestion, crawl,
// classification, and vector-write components. None of these types own
// persistence — stores in internal/store read and write them.
package domain

import "time"

// IngestionStatus is the lifecycle state of a website ingestion attempt.
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "pending"
	IngestionInProgress IngestionStatus = "in_progress"
	IngestionCompleted  IngestionStatus = "completed"
	IngestionFailed     IngestionStatus = "failed"
)

// PageStatus is the lifecycle state of one crawled URL.
type PageStatus string

const (
	PagePending    PageStatus = "pending"
	PageProcessing PageStatus = "processing"
	PageCompleted  PageStatus = "completed"
	PageFailed     PageStatus = "failed"
)

// ScrapingStrategy selects how the crawler chooses between fetchers.
type ScrapingStrategy string

const (
	StrategyAuto           ScrapingStrategy = "auto"
	StrategyRequestsFirst  ScrapingStrategy = "requests_first"
	StrategyPlaywrightOnly ScrapingStrategy = "playwright_only"
	StrategyRequestsOnly   ScrapingStrategy = "requests_only"
)

// Ingestion is one crawl attempt over one base URL, scoped to a tenant.
type Ingestion struct {
	ID                string
	TenantID          string
	BaseURL           string
	Status            IngestionStatus
	ScrapingStrategy  ScrapingStrategy
	PagesDiscovered   int
	PagesProcessed    int
	PagesFailed       int
	StartedAt         time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
}

// CanTransitionTo reports whether status s2 is a legal successor of s1.
// Terminal states (completed, failed) never move again except through an
// explicit retry, which is modeled as creating a fresh pending state.
func (s IngestionStatus) CanTransitionTo(next IngestionStatus) bool {
	switch s {
	case IngestionPending:
		return next == IngestionInProgress
	case IngestionInProgress:
		return next == IngestionCompleted || next == IngestionFailed
	case IngestionCompleted, IngestionFailed:
		return false
	default:
		return false
	}
}

// Page is one URL visited during an ingestion.
type Page struct {
	ID           string
	TenantID     string
	IngestionID  string
	URL          string
	Title        string
	ContentHash  string
	Status       PageStatus
	ScrapedAt    *time.Time
	ErrorMessage string
}

// DocumentStatus mirrors PageStatus for the uploaded-file path.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is one uploaded file, the non-web ingestion path.
type Document struct {
	ID               string
	TenantID         string
	Filename         string
	OriginalFilename string
	StoragePath      string
	MimeType         string
	Status           DocumentStatus
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Sentiment is a coarse classification of document tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ScoredLabel is a category or tag name with a confidence in [0,1].
type ScoredLabel struct {
	Name       string
	Confidence float64
}

// Classification is the output of the hybrid classifier for one document
// or page. It is a value object: callers decide whether/how to persist it
// as Category/Tag assignments.
type Classification struct {
	Categories  []ScoredLabel
	Tags        []ScoredLabel
	ContentType string
	Language    string
	Sentiment   Sentiment
	KeyEntities []string
}

// AssignedBy records who or what produced a Category/Tag assignment.
type AssignedBy string

const (
	AssignedByUser AssignedBy = "user"
	AssignedByAI   AssignedBy = "ai"
	AssignedByRule AssignedBy = "rule"
)

// Category is a tenant-scoped label, uniquely named within a tenant and
// optional parent. System categories are pre-seeded and immutable.
type Category struct {
	ID              string
	TenantID        string
	Name            string
	Description     string
	ParentID        string
	IsSystem        bool
	Color           string
	Icon            string
}

// Tag is a tenant-scoped label with a running usage counter.
type Tag struct {
	ID         string
	TenantID   string
	Name       string
	TagType    string
	UsageCount int
}

// CategoryAssignment links a document to a category with a confidence
// and provenance.
type CategoryAssignment struct {
	DocumentID       string
	CategoryID       string
	ConfidenceScore  float64
	AssignedBy       AssignedBy
}

// TagAssignment links a document to a tag with a confidence and
// provenance.
type TagAssignment struct {
	DocumentID      string
	TagID           string
	ConfidenceScore float64
	AssignedBy      AssignedBy
}

// VectorChunk is one embedding-sized window of cleaned text, ready for
// the vector store.
type VectorChunk struct {
	ID            string
	TenantID      string
	DocumentID    string
	IngestionID   string
	ChunkIndex    int
	Content       string
	ContentHash   string
	Embedding     []float32
	SourceType    string // "website" | "document"
	SourceName    string
	PageNumber    int
	SectionTitle  string
	CategoryIDs   []string
	TagIDs        []string
	ContentType   string
	UploadDate    *time.Time
	ScrapedDate   *time.Time
}

// CleanedDoc is one page's cleaned content ready for chunking, produced
// by the strategy selector / content cleaner pair.
type CleanedDoc struct {
	URL         string
	Title       string
	Text        string
	ContentHash string
	Method      string // "requests" | "playwright"
	RawHTML     []byte
}
