package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

// External collaborator interfaces that our domain services depend on

// FieldValue is one extracted field and the extractor's confidence in it.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractionProvider turns raw document bytes into candidate fields for a
// document class. Errors wrapping apperrors.ErrExtractionFailure mean the
// document itself is unusable; anything else is treated as the provider
// being unavailable.
type ExtractionProvider interface {
	Extract(ctx context.Context, content []byte, class models.DocumentClass) (map[string]FieldValue, error)
}

// RecognizedText is the text layer of a document with the recognizer's
// overall confidence.
type RecognizedText struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TextRecognizer reads the text layer out of a document (OCR or plain text).
type TextRecognizer interface {
	Recognize(ctx context.Context, content []byte) (*RecognizedText, error)
}

// TextFlag is a label produced by comment analysis. Category is empty when
// the label is not tied to a rating category.
type TextFlag struct {
	Label    string
	Category models.Category
}

// CommentAnalysis holds the labels a CommentAnalyzer found in free text.
type CommentAnalysis struct {
	Green []TextFlag
	Red   []TextFlag
}

// CommentAnalyzer extracts green and red labels from review comments.
type CommentAnalyzer interface {
	Analyze(ctx context.Context, comments string) (*CommentAnalysis, error)
}

// KeyedLocker serializes work on a shared key. The returned release func
// must be called exactly once.
type KeyedLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// CollectionSource fetches the full, unfiltered collections the view filter
// projects from. Failures surface as apperrors.ErrDependencyFailure.
type CollectionSource interface {
	Fetch(ctx context.Context) (*Collections, error)
}

// EngineMetrics receives counters from the engine's services.
type EngineMetrics interface {
	RecordScan(class models.DocumentClass, status models.ScanStatus, duration time.Duration)
	RecordReconcileField(field string, applied bool)
	RecordReviewSubmission(risk models.RiskLevel)
	RecordReviewExpired(count int)
	RecordLockWait(key string, duration time.Duration)
}

// Lock key patterns
const (
	ReviewRequestLockKeyPattern = "review_request:%s"
	ProfileLockKeyPattern       = "profile:%s"
	PropertyLockKeyPattern      = "property:%s"
	AgreementLockKeyPattern     = "agreement:%s"
	ScanLockKeyPattern          = "scan:%s"
)

// NoopMetrics discards everything. Used when metrics are disabled and in tests.
type NoopMetrics struct{}

func (NoopMetrics) RecordScan(models.DocumentClass, models.ScanStatus, time.Duration) {}
func (NoopMetrics) RecordReconcileField(string, bool)                                 {}
func (NoopMetrics) RecordReviewSubmission(models.RiskLevel)                           {}
func (NoopMetrics) RecordReviewExpired(int)                                           {}
func (NoopMetrics) RecordLockWait(string, time.Duration)                              {}

func lockKey(pattern string, id uuid.UUID) string {
	return fmt.Sprintf(pattern, id)
}
