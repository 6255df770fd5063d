package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

var (
	ErrScanNotCompleted   = fmt.Errorf("%w: only completed scans can be reconciled", apperrors.ErrInvalidState)
	ErrRecordAccessDenied = fmt.Errorf("%w: scan owner may not update this record", apperrors.ErrNotAuthorized)
)

// Canonical record fields the reconciler writes
const (
	RecordAddress           = "address"
	RecordPropertyType      = "property_type"
	RecordRent              = "rent"
	RecordDeposit           = "deposit"
	RecordStartDate         = "start_date"
	RecordEndDate           = "end_date"
	RecordClauseText        = "clause_text"
	RecordLandlordName      = "landlord_name"
	RecordTenantName        = "tenant_name"
	RecordPropertyAddress   = "property_address"
	RecordUtilitiesIncluded = "utilities_included"
	RecordPetPolicy         = "pet_policy"
)

// DefaultReviewThreshold is the document-level average confidence below which
// a reconciliation is flagged for review.
const DefaultReviewThreshold = 0.7

type fieldMapping struct {
	source string
	target string
}

var agreementMappings = []fieldMapping{
	{FieldRentAmount, RecordRent},
	{FieldSecurityDeposit, RecordDeposit},
	{FieldLeaseStartDate, RecordStartDate},
	{FieldLeaseEndDate, RecordEndDate},
	{FieldKeyTerms, RecordClauseText},
	{FieldLandlordName, RecordLandlordName},
	{FieldTenantName, RecordTenantName},
	{FieldPropertyAddress, RecordPropertyAddress},
	{FieldPropertyType, RecordPropertyType},
	{FieldUtilitiesIncluded, RecordUtilitiesIncluded},
	{FieldPetPolicy, RecordPetPolicy},
}

var propertyMappings = []fieldMapping{
	{FieldPropertyAddress, RecordAddress},
	{FieldPropertyType, RecordPropertyType},
}

// FieldPatch is a proposed write of one canonical field.
type FieldPatch struct {
	Field      string  `json:"field"`
	Source     string  `json:"source"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ReconcilePlan is the pure mapping of a scan onto canonical records.
type ReconcilePlan struct {
	PropertyPatch     []FieldPatch `json:"property_patch"`
	AgreementPatch    []FieldPatch `json:"agreement_patch"`
	NeedsReview       bool         `json:"needs_review"`
	AverageConfidence float64      `json:"average_confidence"`
}

// ReconcileResult reports what Apply did with each patched field. Field
// names are prefixed with the record kind, e.g. "agreement.rent".
type ReconcileResult struct {
	ScanID            uuid.UUID  `json:"scan_id"`
	PropertyID        *uuid.UUID `json:"property_id,omitempty"`
	AgreementID       *uuid.UUID `json:"agreement_id,omitempty"`
	Applied           []string   `json:"applied"`
	Kept              []string   `json:"kept"`
	Skipped           []string   `json:"skipped"`
	NeedsReview       bool       `json:"needs_review"`
	AverageConfidence float64    `json:"average_confidence"`
}

// ReconcilerConfig holds tunables for reconciliation
type ReconcilerConfig struct {
	ReviewThreshold float64
}

// Reconciler merges completed scans into Property and Agreement records
// under a last-confident-write-wins policy.
type Reconciler struct {
	tx            repositories.Transactor
	userRepo      repositories.UserRepository
	propertyRepo  repositories.PropertyRepository
	agreementRepo repositories.AgreementRepository

	locker  KeyedLocker
	metrics EngineMetrics
	logger  *logger.Logger
	config  ReconcilerConfig
}

// NewReconciler creates a new reconciler
func NewReconciler(
	tx repositories.Transactor,
	userRepo repositories.UserRepository,
	propertyRepo repositories.PropertyRepository,
	agreementRepo repositories.AgreementRepository,
	locker KeyedLocker,
	metrics EngineMetrics,
	log *logger.Logger,
	config ReconcilerConfig,
) *Reconciler {
	if config.ReviewThreshold <= 0 {
		config.ReviewThreshold = DefaultReviewThreshold
	}
	return &Reconciler{
		tx:            tx,
		userRepo:      userRepo,
		propertyRepo:  propertyRepo,
		agreementRepo: agreementRepo,
		locker:        locker,
		metrics:       metrics,
		logger:        log,
		config:        config,
	}
}

// Plan maps the scan's extracted fields onto canonical fields. Only rental
// agreements produce patches; other classes are informational.
func (r *Reconciler) Plan(scan *models.DocumentScan) ReconcilePlan {
	plan := ReconcilePlan{
		PropertyPatch:  []FieldPatch{},
		AgreementPatch: []FieldPatch{},
	}

	if len(scan.ExtractedFields) > 0 {
		var sum float64
		for field := range scan.ExtractedFields {
			sum += scan.FieldConfidence.Get(field)
		}
		plan.AverageConfidence = sum / float64(len(scan.ExtractedFields))
	}
	plan.NeedsReview = plan.AverageConfidence < r.config.ReviewThreshold

	if scan.DocumentClass != models.DocClassRentalAgreement {
		return plan
	}

	plan.AgreementPatch = buildPatch(scan, agreementMappings)
	plan.PropertyPatch = buildPatch(scan, propertyMappings)
	return plan
}

func buildPatch(scan *models.DocumentScan, mappings []fieldMapping) []FieldPatch {
	patch := make([]FieldPatch, 0, len(mappings))
	for _, m := range mappings {
		value, ok := scan.ExtractedFields[m.source]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		patch = append(patch, FieldPatch{
			Field:      m.target,
			Source:     m.source,
			Value:      value,
			Confidence: scan.FieldConfidence.Get(m.source),
		})
	}
	return patch
}

// Apply reconciles a completed scan. Locks are taken in the order scan,
// agreement, property before the transaction opens.
func (r *Reconciler) Apply(ctx context.Context, scan *models.DocumentScan) (*ReconcileResult, error) {
	if scan.Status != models.ScanCompleted {
		return nil, ErrScanNotCompleted
	}

	plan := r.Plan(scan)
	result := &ReconcileResult{
		ScanID:            scan.ID,
		Applied:           []string{},
		Kept:              []string{},
		Skipped:           []string{},
		NeedsReview:       plan.NeedsReview,
		AverageConfidence: plan.AverageConfidence,
	}
	if len(plan.AgreementPatch) == 0 && len(plan.PropertyPatch) == 0 {
		return result, nil
	}

	var releases []func()
	defer func() { releaseAll(releases) }()

	release, err := acquire(ctx, r.locker, r.metrics, lockKey(ScanLockKeyPattern, scan.ID))
	if err != nil {
		return nil, err
	}
	releases = append(releases, release)

	agreementID, err := r.resolveAgreementTarget(ctx, scan)
	if err != nil {
		return nil, err
	}

	propertyID := scan.PropertyID
	if agreementID != nil {
		release, err := acquire(ctx, r.locker, r.metrics, lockKey(AgreementLockKeyPattern, *agreementID))
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)

		if propertyID == nil {
			existing, err := r.agreementRepo.GetByID(ctx, *agreementID)
			if err != nil {
				return nil, fmt.Errorf("failed to load agreement: %w", err)
			}
			propertyID = existing.PropertyID
		}
	}
	if propertyID != nil {
		release, err := acquire(ctx, r.locker, r.metrics, lockKey(PropertyLockKeyPattern, *propertyID))
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}

	err = r.tx.Transaction(ctx, func(ctx context.Context) error {
		agreement, err := r.mergeAgreement(ctx, scan, agreementID, propertyID, plan.AgreementPatch, result)
		if err != nil {
			return err
		}
		result.AgreementID = &agreement.ID

		if propertyID == nil {
			for _, p := range plan.PropertyPatch {
				result.Skipped = append(result.Skipped, "property."+p.Field)
			}
			return nil
		}
		result.PropertyID = propertyID
		return r.mergeProperty(ctx, scan, *propertyID, plan.PropertyPatch, result)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("scan reconciled",
		"scan_id", scan.ID,
		"agreement_id", result.AgreementID,
		"property_id", result.PropertyID,
		"applied", len(result.Applied),
		"kept", len(result.Kept),
		"needs_review", result.NeedsReview,
	)
	return result, nil
}

func (r *Reconciler) resolveAgreementTarget(ctx context.Context, scan *models.DocumentScan) (*uuid.UUID, error) {
	if scan.AgreementID != nil {
		return scan.AgreementID, nil
	}
	existing, err := r.agreementRepo.FindBySourceDocument(ctx, scan.ID)
	if err == nil {
		return &existing.ID, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to look up agreement for scan: %w", err)
}

func (r *Reconciler) mergeAgreement(
	ctx context.Context,
	scan *models.DocumentScan,
	agreementID *uuid.UUID,
	propertyID *uuid.UUID,
	patch []FieldPatch,
	result *ReconcileResult,
) (*models.Agreement, error) {
	var agreement *models.Agreement
	if agreementID != nil {
		existing, err := r.agreementRepo.GetByID(ctx, *agreementID)
		if err != nil {
			return nil, fmt.Errorf("failed to load agreement: %w", err)
		}
		if !existing.HasParty(scan.UserID) {
			return nil, ErrRecordAccessDenied
		}
		agreement = existing
	} else {
		created, err := r.newAgreement(ctx, scan)
		if err != nil {
			return nil, err
		}
		agreement = created
	}
	if agreement.PropertyID == nil && propertyID != nil {
		agreement.PropertyID = propertyID
	}
	ensureProvenance(&agreement.Details, &agreement.FieldConfidence, &agreement.FieldSources)

	for _, p := range patch {
		key := "agreement." + p.Field
		if p.Confidence < agreement.FieldConfidence.Get(p.Field) {
			result.Kept = append(result.Kept, key)
			r.metrics.RecordReconcileField(p.Field, false)
			continue
		}
		if err := setAgreementField(agreement, p.Field, p.Value); err != nil {
			result.Skipped = append(result.Skipped, key)
			r.logger.Debug("skipping unparseable field", "scan_id", scan.ID, "field", p.Field, "error", err)
			continue
		}
		agreement.FieldConfidence[p.Field] = p.Confidence
		agreement.FieldSources[p.Field] = scan.ID.String()
		result.Applied = append(result.Applied, key)
		r.metrics.RecordReconcileField(p.Field, true)
	}

	if agreementID == nil {
		if err := r.agreementRepo.Create(ctx, agreement); err != nil {
			return nil, fmt.Errorf("failed to create agreement: %w", err)
		}
		return agreement, nil
	}
	if err := r.agreementRepo.Update(ctx, agreement); err != nil {
		return nil, fmt.Errorf("failed to update agreement: %w", err)
	}
	return agreement, nil
}

// newAgreement starts an agreement sourced from scan. The scan owner becomes
// the tenant when they are a tenant and the landlord otherwise.
func (r *Reconciler) newAgreement(ctx context.Context, scan *models.DocumentScan) (*models.Agreement, error) {
	owner, err := r.userRepo.GetByID(ctx, scan.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan owner: %w", err)
	}

	scanID := scan.ID
	ownerID := scan.UserID
	agreement := &models.Agreement{
		ID:                uuid.New(),
		SourceDocumentRef: &scanID,
	}
	if owner.Role == models.UserRoleTenant {
		agreement.TenantID = &ownerID
	} else {
		agreement.LandlordID = &ownerID
	}
	return agreement, nil
}

func (r *Reconciler) mergeProperty(
	ctx context.Context,
	scan *models.DocumentScan,
	propertyID uuid.UUID,
	patch []FieldPatch,
	result *ReconcileResult,
) error {
	property, err := r.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("failed to load property: %w", err)
	}
	// Only the owner writes a property. A party to the agreement who does not
	// own the property still gets the agreement fields.
	if property.OwnerID != scan.UserID {
		for _, p := range patch {
			result.Skipped = append(result.Skipped, "property."+p.Field)
		}
		r.logger.Debug("property not owned by scan owner", "scan_id", scan.ID, "property_id", propertyID)
		return nil
	}
	ensureProvenance(&property.Details, &property.FieldConfidence, &property.FieldSources)

	for _, p := range patch {
		key := "property." + p.Field
		if p.Confidence < property.FieldConfidence.Get(p.Field) {
			result.Kept = append(result.Kept, key)
			r.metrics.RecordReconcileField(p.Field, false)
			continue
		}
		switch p.Field {
		case RecordAddress:
			property.Address = p.Value
		default:
			property.Details[p.Field] = p.Value
		}
		property.FieldConfidence[p.Field] = p.Confidence
		property.FieldSources[p.Field] = scan.ID.String()
		result.Applied = append(result.Applied, key)
		r.metrics.RecordReconcileField(p.Field, true)
	}

	if err := r.propertyRepo.Update(ctx, property); err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}
	return nil
}

func ensureProvenance(details *models.StringMap, confidence *models.ConfidenceMap, sources *models.StringMap) {
	if *details == nil {
		*details = models.StringMap{}
	}
	if *confidence == nil {
		*confidence = models.ConfidenceMap{}
	}
	if *sources == nil {
		*sources = models.StringMap{}
	}
}

func setAgreementField(agreement *models.Agreement, field, value string) error {
	switch field {
	case RecordRent:
		amount, err := ParseAmount(value)
		if err != nil {
			return err
		}
		agreement.Rent = &amount
	case RecordDeposit:
		amount, err := ParseAmount(value)
		if err != nil {
			return err
		}
		agreement.Deposit = &amount
	case RecordStartDate:
		agreement.StartDate = value
	case RecordEndDate:
		agreement.EndDate = value
	case RecordClauseText:
		agreement.ClauseText = value
	default:
		agreement.Details[field] = value
	}
	return nil
}

// ParseAmount reads a money value such as "$1,500.00".
func ParseAmount(value string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(value))
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if amount < 0 {
		return 0, fmt.Errorf("negative amount %q", value)
	}
	return amount, nil
}
