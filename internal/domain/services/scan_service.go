package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

var (
	ErrScanNotFound     = fmt.Errorf("%w: document scan not found", apperrors.ErrNotFound)
	ErrDocumentTooLarge = fmt.Errorf("%w: document exceeds maximum size", apperrors.ErrValidation)
)

// ScanServiceConfig holds configuration for document scans
type ScanServiceConfig struct {
	MaxDocumentBytes int
}

// ScanService runs the extract-then-reconcile pipeline for uploaded documents
type ScanService struct {
	scanRepo      repositories.DocumentScanRepository
	userRepo      repositories.UserRepository
	propertyRepo  repositories.PropertyRepository
	agreementRepo repositories.AgreementRepository

	extractor  *FieldExtractor
	reconciler *Reconciler
	metrics    EngineMetrics
	logger     *logger.Logger
	config     ScanServiceConfig
}

// NewScanService creates a new scan service
func NewScanService(
	scanRepo repositories.DocumentScanRepository,
	userRepo repositories.UserRepository,
	propertyRepo repositories.PropertyRepository,
	agreementRepo repositories.AgreementRepository,
	extractor *FieldExtractor,
	reconciler *Reconciler,
	metrics EngineMetrics,
	log *logger.Logger,
	config ScanServiceConfig,
) *ScanService {
	return &ScanService{
		scanRepo:      scanRepo,
		userRepo:      userRepo,
		propertyRepo:  propertyRepo,
		agreementRepo: agreementRepo,
		extractor:     extractor,
		reconciler:    reconciler,
		metrics:       metrics,
		logger:        log,
		config:        config,
	}
}

// ProcessScanParams contains parameters for processing an uploaded document
type ProcessScanParams struct {
	UserID        uuid.UUID            `json:"user_id"`
	DocumentClass models.DocumentClass `json:"document_class"`
	Content       []byte               `json:"-"`
	PropertyID    *uuid.UUID           `json:"property_id,omitempty"`
	AgreementID   *uuid.UUID           `json:"agreement_id,omitempty"`
}

// ScanResult is the outcome of ProcessScan. Reconciliation is nil for
// failed scans.
type ScanResult struct {
	Scan           *models.DocumentScan `json:"scan"`
	Reconciliation *ReconcileResult     `json:"reconciliation,omitempty"`
}

// ProcessScan persists a pending scan, extracts fields and finalizes the
// scan as completed or failed. Only completed scans are reconciled.
//
// An unreadable document is a recorded outcome: the failed scan is returned
// with a nil error. An unavailable extraction provider also fails the scan
// but is returned as an error.
func (s *ScanService) ProcessScan(ctx context.Context, params ProcessScanParams) (*ScanResult, error) {
	if err := s.validate(ctx, params); err != nil {
		return nil, err
	}

	start := time.Now()
	scan := &models.DocumentScan{
		UserID:          params.UserID,
		DocumentClass:   params.DocumentClass,
		Status:          models.ScanPending,
		ExtractedFields: models.StringMap{},
		FieldConfidence: models.ConfidenceMap{},
		PropertyID:      params.PropertyID,
		AgreementID:     params.AgreementID,
	}
	if err := s.scanRepo.Create(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to create document scan: %w", err)
	}

	log := s.logger.With("scan_id", scan.ID, "document_class", scan.DocumentClass)

	extraction, extractErr := s.extractor.Extract(ctx, params.Content, params.DocumentClass)
	if extractErr != nil {
		scan.Status = models.ScanFailed
		scan.FailureReason = extractErr.Error()
		if err := s.scanRepo.Finalize(ctx, scan); err != nil {
			return nil, fmt.Errorf("failed to record scan failure: %w", err)
		}
		s.metrics.RecordScan(scan.DocumentClass, scan.Status, time.Since(start))
		log.Warn("document extraction failed", "error", extractErr)

		if errors.Is(extractErr, apperrors.ErrExtractionFailure) {
			return &ScanResult{Scan: scan}, nil
		}
		return nil, extractErr
	}

	scan.Status = models.ScanCompleted
	for name, field := range extraction.Fields {
		scan.ExtractedFields[name] = field.Value
		scan.FieldConfidence[name] = field.Confidence
	}
	scan.NeedsReview = s.reconciler.Plan(scan).NeedsReview
	if err := s.scanRepo.Finalize(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to complete document scan: %w", err)
	}
	s.metrics.RecordScan(scan.DocumentClass, scan.Status, time.Since(start))

	reconciliation, err := s.reconciler.Apply(ctx, scan)
	if err != nil {
		log.Error("reconciliation failed", "error", err)
		return nil, fmt.Errorf("failed to reconcile scan: %w", err)
	}

	log.Info("document scan processed",
		"fields", len(scan.ExtractedFields),
		"needs_review", scan.NeedsReview,
	)
	return &ScanResult{Scan: scan, Reconciliation: reconciliation}, nil
}

// Reconcile re-runs reconciliation for a completed scan. Re-applying a scan
// targets the agreement it created the first time.
func (s *ScanService) Reconcile(ctx context.Context, scanID uuid.UUID) (*ReconcileResult, error) {
	scan, err := s.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Apply(ctx, scan)
}

// GetScan returns a scan by id
func (s *ScanService) GetScan(ctx context.Context, scanID uuid.UUID) (*models.DocumentScan, error) {
	scan, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get document scan: %w", err)
	}
	return scan, nil
}

// GetScanFor returns a scan the caller is allowed to see. Scans hidden from
// the caller are reported as not found.
func (s *ScanService) GetScanFor(ctx context.Context, scanID uuid.UUID, caller *Caller) (*models.DocumentScan, error) {
	scan, err := s.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !PolicyFor(caller).CanSeeScan(scan) {
		return nil, ErrScanNotFound
	}
	return scan, nil
}

func (s *ScanService) validate(ctx context.Context, params ProcessScanParams) error {
	if params.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", apperrors.ErrValidation)
	}
	if !params.DocumentClass.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownDocumentClass, params.DocumentClass)
	}
	if s.config.MaxDocumentBytes > 0 && len(params.Content) > s.config.MaxDocumentBytes {
		return ErrDocumentTooLarge
	}

	if _, err := s.userRepo.GetByID(ctx, params.UserID); err != nil {
		return fmt.Errorf("failed to resolve scan owner: %w", err)
	}
	if params.PropertyID != nil {
		property, err := s.propertyRepo.GetByID(ctx, *params.PropertyID)
		if err != nil {
			return fmt.Errorf("failed to resolve target property: %w", err)
		}
		if property.OwnerID != params.UserID {
			return fmt.Errorf("%w: property %s", ErrRecordAccessDenied, property.ID)
		}
	}
	if params.AgreementID != nil {
		agreement, err := s.agreementRepo.GetByID(ctx, *params.AgreementID)
		if err != nil {
			return fmt.Errorf("failed to resolve target agreement: %w", err)
		}
		if !agreement.HasParty(params.UserID) {
			return fmt.Errorf("%w: agreement %s", ErrRecordAccessDenied, agreement.ID)
		}
	}
	return nil
}
