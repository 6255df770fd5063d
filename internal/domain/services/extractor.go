package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

var (
	ErrUnknownDocumentClass = fmt.Errorf("%w: unknown document class", apperrors.ErrValidation)
	ErrEmptyDocument        = fmt.Errorf("%w: document is empty", apperrors.ErrExtractionFailure)
	ErrConfidenceOutOfRange = fmt.Errorf("%w: field confidence outside [0,1]", apperrors.ErrExtractionFailure)
	ErrExtractionTimeout    = fmt.Errorf("%w: extraction timed out", apperrors.ErrDependencyFailure)
)

// Extracted field names per document class
const (
	FieldPropertyAddress   = "property_address"
	FieldRentAmount        = "rent_amount"
	FieldLeaseStartDate    = "lease_start_date"
	FieldLeaseEndDate      = "lease_end_date"
	FieldLandlordName      = "landlord_name"
	FieldTenantName        = "tenant_name"
	FieldSecurityDeposit   = "security_deposit"
	FieldPropertyType      = "property_type"
	FieldUtilitiesIncluded = "utilities_included"
	FieldPetPolicy         = "pet_policy"
	FieldKeyTerms          = "key_terms"

	FieldName        = "name"
	FieldIDNumber    = "id_number"
	FieldDateOfBirth = "date_of_birth"
	FieldAddress     = "address"

	FieldArea      = "area"
	FieldBedrooms  = "bedrooms"
	FieldBathrooms = "bathrooms"
)

// KeyTermsSeparator joins the list-valued key_terms field into one value.
const KeyTermsSeparator = "; "

var documentSchemas = map[models.DocumentClass][]string{
	models.DocClassRentalAgreement: {
		FieldPropertyAddress,
		FieldRentAmount,
		FieldLeaseStartDate,
		FieldLeaseEndDate,
		FieldLandlordName,
		FieldTenantName,
		FieldSecurityDeposit,
		FieldPropertyType,
		FieldUtilitiesIncluded,
		FieldPetPolicy,
		FieldKeyTerms,
	},
	models.DocClassIDCard: {
		FieldName,
		FieldIDNumber,
		FieldDateOfBirth,
		FieldAddress,
	},
	models.DocClassPropertyDocument: {
		FieldPropertyType,
		FieldArea,
		FieldBedrooms,
		FieldBathrooms,
	},
}

// SchemaFor returns the expected fields for a document class.
func SchemaFor(class models.DocumentClass) ([]string, bool) {
	fields, ok := documentSchemas[class]
	return fields, ok
}

// ExtractionResult is the outcome of a successful extraction. Fields that
// were not detected are absent.
type ExtractionResult struct {
	Status models.ScanStatus     `json:"status"`
	Fields map[string]FieldValue `json:"fields"`
}

// FieldExtractor validates provider output against the class schema. It never
// touches Property or Agreement state.
type FieldExtractor struct {
	provider ExtractionProvider
	timeout  time.Duration
}

// NewFieldExtractor creates a field extractor. A zero timeout disables the
// per-call deadline.
func NewFieldExtractor(provider ExtractionProvider, timeout time.Duration) *FieldExtractor {
	return &FieldExtractor{
		provider: provider,
		timeout:  timeout,
	}
}

// Extract runs the provider and returns only schema fields with non-empty
// values and valid confidences. Any failure returns no fields at all.
func (e *FieldExtractor) Extract(ctx context.Context, content []byte, class models.DocumentClass) (*ExtractionResult, error) {
	schema, ok := SchemaFor(class)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocumentClass, class)
	}
	if len(content) == 0 {
		return nil, ErrEmptyDocument
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.provider.Extract(callCtx, content, class)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrExtractionFailure):
			return nil, err
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
		case errors.Is(err, apperrors.ErrDependencyFailure):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: extraction provider: %v", apperrors.ErrDependencyFailure, err)
		}
	}

	fields := make(map[string]FieldValue, len(schema))
	for _, name := range schema {
		candidate, found := raw[name]
		if !found {
			continue
		}
		if math.IsNaN(candidate.Confidence) || candidate.Confidence < 0 || candidate.Confidence > 1 {
			return nil, fmt.Errorf("%w: %s=%v", ErrConfidenceOutOfRange, name, candidate.Confidence)
		}
		value := strings.TrimSpace(candidate.Value)
		if value == "" {
			continue
		}
		fields[name] = FieldValue{Value: value, Confidence: candidate.Confidence}
	}

	return &ExtractionResult{
		Status: models.ScanCompleted,
		Fields: fields,
	}, nil
}
