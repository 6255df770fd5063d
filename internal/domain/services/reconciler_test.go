package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func extractionReturning(fields map[string]FieldValue) *MockExtractionProvider {
	provider := new(MockExtractionProvider)
	provider.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(fields, nil)
	return provider
}

func completedScan(owner uuid.UUID, fields map[string]FieldValue) *models.DocumentScan {
	scan := &models.DocumentScan{
		ID:              uuid.New(),
		UserID:          owner,
		DocumentClass:   models.DocClassRentalAgreement,
		Status:          models.ScanCompleted,
		ExtractedFields: models.StringMap{},
		FieldConfidence: models.ConfidenceMap{},
	}
	for name, field := range fields {
		scan.ExtractedFields[name] = field.Value
		scan.FieldConfidence[name] = field.Confidence
	}
	return scan
}

func TestReconciler_Plan(t *testing.T) {
	r := NewReconciler(nil, nil, nil, nil, nil, NoopMetrics{}, logger.NewForTesting(), ReconcilerConfig{})

	scan := completedScan(uuid.New(), map[string]FieldValue{
		FieldPropertyAddress: {Value: "12 Oak St", Confidence: 0.9},
		FieldRentAmount:      {Value: "1500", Confidence: 0.6},
		FieldKeyTerms:        {Value: "No smoking; No pets", Confidence: 0.3},
	})

	plan := r.Plan(scan)
	assert.InDelta(t, 0.6, plan.AverageConfidence, 1e-9)
	assert.True(t, plan.NeedsReview)
	assert.ElementsMatch(t, []FieldPatch{
		{Field: RecordRent, Source: FieldRentAmount, Value: "1500", Confidence: 0.6},
		{Field: RecordClauseText, Source: FieldKeyTerms, Value: "No smoking; No pets", Confidence: 0.3},
		{Field: RecordPropertyAddress, Source: FieldPropertyAddress, Value: "12 Oak St", Confidence: 0.9},
	}, plan.AgreementPatch)
	assert.Equal(t, []FieldPatch{
		{Field: RecordAddress, Source: FieldPropertyAddress, Value: "12 Oak St", Confidence: 0.9},
	}, plan.PropertyPatch)
}

func TestReconciler_PlanIgnoresNonRentalClasses(t *testing.T) {
	r := NewReconciler(nil, nil, nil, nil, nil, NoopMetrics{}, logger.NewForTesting(), ReconcilerConfig{ReviewThreshold: 0.5})

	scan := completedScan(uuid.New(), map[string]FieldValue{
		FieldPropertyType: {Value: "villa", Confidence: 0.8},
	})
	scan.DocumentClass = models.DocClassPropertyDocument

	plan := r.Plan(scan)
	assert.Empty(t, plan.AgreementPatch)
	assert.Empty(t, plan.PropertyPatch)
	assert.False(t, plan.NeedsReview)
}

func TestReconciler_PlanWithNoFieldsNeedsReview(t *testing.T) {
	r := NewReconciler(nil, nil, nil, nil, nil, NoopMetrics{}, logger.NewForTesting(), ReconcilerConfig{})

	plan := r.Plan(completedScan(uuid.New(), nil))
	assert.Zero(t, plan.AverageConfidence)
	assert.True(t, plan.NeedsReview)
}

func TestReconciler_ApplyRequiresCompletedScan(t *testing.T) {
	env := newTestEnv(t)

	scan := completedScan(uuid.New(), nil)
	scan.Status = models.ScanPending

	_, err := env.reconciler.Apply(context.Background(), scan)
	assert.ErrorIs(t, err, ErrScanNotCompleted)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestReconciler_ConfidenceComparison(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		applied    bool
	}{
		{"lower confidence keeps stored value", 0.59, false},
		{"equal confidence overwrites", 0.6, true},
		{"higher confidence overwrites", 0.95, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)

			rent := 1500.0
			agreement := &models.Agreement{
				LandlordID:      &landlord.ID,
				Rent:            &rent,
				Details:         models.StringMap{},
				FieldConfidence: models.ConfidenceMap{RecordRent: 0.6},
				FieldSources:    models.StringMap{RecordRent: "earlier"},
			}
			require.NoError(t, env.repos.AgreementRepo.Create(ctx, agreement))

			scan := completedScan(landlord.ID, map[string]FieldValue{
				FieldRentAmount: {Value: "$1,650", Confidence: tt.confidence},
			})
			scan.AgreementID = &agreement.ID

			result, err := env.reconciler.Apply(ctx, scan)
			require.NoError(t, err)
			assert.Equal(t, agreement.ID, *result.AgreementID)

			stored, err := env.repos.AgreementRepo.GetByID(ctx, agreement.ID)
			require.NoError(t, err)
			if tt.applied {
				assert.Equal(t, []string{"agreement.rent"}, result.Applied)
				assert.Equal(t, 1650.0, *stored.Rent)
				assert.Equal(t, tt.confidence, stored.FieldConfidence[RecordRent])
				assert.Equal(t, scan.ID.String(), stored.FieldSources[RecordRent])
			} else {
				assert.Equal(t, []string{"agreement.rent"}, result.Kept)
				assert.Equal(t, 1500.0, *stored.Rent)
				assert.Equal(t, 0.6, stored.FieldConfidence[RecordRent])
				assert.Equal(t, "earlier", stored.FieldSources[RecordRent])
			}
		})
	}
}

func TestReconciler_SkipsUnparseableAmounts(t *testing.T) {
	env := newTestEnv(t)
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)

	scan := completedScan(landlord.ID, map[string]FieldValue{
		FieldRentAmount:   {Value: "about a thousand", Confidence: 0.9},
		FieldLeaseEndDate: {Value: "31/01/2025", Confidence: 0.9},
	})

	result, err := env.reconciler.Apply(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, []string{"agreement.rent"}, result.Skipped)
	assert.Equal(t, []string{"agreement.end_date"}, result.Applied)

	stored, err := env.repos.AgreementRepo.GetByID(context.Background(), *result.AgreementID)
	require.NoError(t, err)
	assert.Nil(t, stored.Rent)
	assert.Equal(t, "31/01/2025", stored.EndDate)
	_, tracked := stored.FieldConfidence[RecordRent]
	assert.False(t, tracked)
}

func TestReconciler_PropertyPatchSkippedWithoutTarget(t *testing.T) {
	env := newTestEnv(t)
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)

	scan := completedScan(landlord.ID, map[string]FieldValue{
		FieldPropertyAddress: {Value: "9 Elm Rd", Confidence: 0.8},
	})

	result, err := env.reconciler.Apply(context.Background(), scan)
	require.NoError(t, err)
	assert.Nil(t, result.PropertyID)
	assert.Equal(t, []string{"property.address"}, result.Skipped)
	assert.Equal(t, []string{"agreement.property_address"}, result.Applied)

	stored, err := env.repos.AgreementRepo.GetByID(context.Background(), *result.AgreementID)
	require.NoError(t, err)
	require.NotNil(t, stored.LandlordID)
	assert.Equal(t, landlord.ID, *stored.LandlordID)
	assert.Nil(t, stored.TenantID)
	require.NotNil(t, stored.SourceDocumentRef)
	assert.Equal(t, scan.ID, *stored.SourceDocumentRef)
	assert.Equal(t, "9 Elm Rd", stored.Details[RecordPropertyAddress])
}

// Two scans of the same lease: the second, less confident rent reading must
// not overwrite the first.
func TestScanPipeline_LastConfidentWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)
	property := env.db.CreateTestProperty(t, landlord)

	first, err := env.scanService(extractionReturning(map[string]FieldValue{
		FieldPropertyAddress: {Value: "12 Oak St", Confidence: 0.9},
		FieldRentAmount:      {Value: "1500", Confidence: 0.6},
	})).ProcessScan(ctx, ProcessScanParams{
		UserID:        landlord.ID,
		DocumentClass: models.DocClassRentalAgreement,
		Content:       []byte("lease page 1"),
		PropertyID:    &property.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, first.Reconciliation)
	assert.Equal(t, models.ScanCompleted, first.Scan.Status)
	assert.False(t, first.Scan.NeedsReview)
	assert.ElementsMatch(t, []string{"agreement.rent", "agreement.property_address", "property.address"}, first.Reconciliation.Applied)

	agreementID := *first.Reconciliation.AgreementID
	storedProperty, err := env.repos.PropertyRepo.GetByID(ctx, property.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Oak St", storedProperty.Address)
	assert.Equal(t, 0.9, storedProperty.FieldConfidence[RecordAddress])
	assert.Equal(t, first.Scan.ID.String(), storedProperty.FieldSources[RecordAddress])

	second, err := env.scanService(extractionReturning(map[string]FieldValue{
		FieldRentAmount: {Value: "1550", Confidence: 0.5},
	})).ProcessScan(ctx, ProcessScanParams{
		UserID:        landlord.ID,
		DocumentClass: models.DocClassRentalAgreement,
		Content:       []byte("lease page 1, blurry"),
		AgreementID:   &agreementID,
	})
	require.NoError(t, err)
	assert.True(t, second.Scan.NeedsReview)
	assert.Equal(t, []string{"agreement.rent"}, second.Reconciliation.Kept)
	assert.Empty(t, second.Reconciliation.Applied)
	assert.Equal(t, property.ID, *second.Reconciliation.PropertyID)

	agreement, err := env.repos.AgreementRepo.GetByID(ctx, agreementID)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, *agreement.Rent)
	assert.Equal(t, 0.6, agreement.FieldConfidence[RecordRent])
	assert.Equal(t, first.Scan.ID.String(), agreement.FieldSources[RecordRent])
	assert.Equal(t, property.ID, *agreement.PropertyID)

	// Both scans stay as they were finalized.
	for _, id := range []uuid.UUID{first.Scan.ID, second.Scan.ID} {
		scan, err := env.repos.ScanRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.ScanCompleted, scan.Status)
		assert.NotNil(t, scan.CompletedAt)
	}
}

func TestScanService_ReconcileReusesAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)
	property := env.db.CreateTestProperty(t, landlord)

	svc := env.scanService(extractionReturning(map[string]FieldValue{
		FieldRentAmount: {Value: "1200", Confidence: 0.8},
	}))
	result, err := svc.ProcessScan(ctx, ProcessScanParams{
		UserID:        landlord.ID,
		DocumentClass: models.DocClassRentalAgreement,
		Content:       []byte("lease"),
		PropertyID:    &property.ID,
	})
	require.NoError(t, err)

	again, err := svc.Reconcile(ctx, result.Scan.ID)
	require.NoError(t, err)
	assert.Equal(t, *result.Reconciliation.AgreementID, *again.AgreementID)
	assert.Equal(t, []string{"agreement.rent"}, again.Applied)

	agreements, err := env.repos.AgreementRepo.ListByProperty(ctx, property.ID)
	require.NoError(t, err)
	assert.Len(t, agreements, 1)
}

func TestReconciler_ConcurrentScansOnOneAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)

	agreement := &models.Agreement{LandlordID: &landlord.ID}
	require.NoError(t, env.repos.AgreementRepo.Create(ctx, agreement))

	confidences := []float64{0.3, 0.9, 0.5, 0.7, 0.1, 0.8}
	done := make(chan error, len(confidences))
	for i, confidence := range confidences {
		go func(i int, confidence float64) {
			scan := completedScan(landlord.ID, map[string]FieldValue{
				FieldRentAmount: {Value: "1000", Confidence: confidence},
			})
			scan.AgreementID = &agreement.ID
			_, err := env.reconciler.Apply(ctx, scan)
			done <- err
		}(i, confidence)
	}
	deadline := time.After(10 * time.Second)
	for range confidences {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-deadline:
			t.Fatal("reconciliation did not finish")
		}
	}

	stored, err := env.repos.AgreementRepo.GetByID(ctx, agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.9, stored.FieldConfidence[RecordRent])
}

func TestScanService_RejectsTargetsOwnedByOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)
	tenant := env.db.CreateTestUser(t, models.UserRoleTenant)
	property := env.db.CreateTestProperty(t, landlord)

	agreement := &models.Agreement{LandlordID: &landlord.ID}
	require.NoError(t, env.repos.AgreementRepo.Create(ctx, agreement))

	provider := extractionReturning(map[string]FieldValue{
		FieldPropertyAddress: {Value: "666 Hijack Rd", Confidence: 1.0},
		FieldRentAmount:      {Value: "1", Confidence: 1.0},
	})

	tests := []struct {
		name   string
		params ProcessScanParams
	}{
		{"property owned by someone else", ProcessScanParams{PropertyID: &property.ID}},
		{"agreement the owner is not party to", ProcessScanParams{AgreementID: &agreement.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			params.UserID = tenant.ID
			params.DocumentClass = models.DocClassRentalAgreement
			params.Content = []byte("lease")

			result, err := env.scanService(provider).ProcessScan(ctx, params)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrRecordAccessDenied)
			assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
		})
	}

	storedProperty, err := env.repos.PropertyRepo.GetByID(ctx, property.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Test Street", storedProperty.Address)

	storedAgreement, err := env.repos.AgreementRepo.GetByID(ctx, agreement.ID)
	require.NoError(t, err)
	assert.Nil(t, storedAgreement.Rent)

	scans, err := env.repos.ScanRepo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, scans)
	provider.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_ApplyRejectsAgreementOfOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)
	stranger := env.db.CreateTestUser(t, models.UserRoleLandlord)

	agreement := &models.Agreement{LandlordID: &landlord.ID}
	require.NoError(t, env.repos.AgreementRepo.Create(ctx, agreement))

	scan := completedScan(stranger.ID, map[string]FieldValue{
		FieldRentAmount: {Value: "10", Confidence: 1.0},
	})
	scan.AgreementID = &agreement.ID

	_, err := env.reconciler.Apply(ctx, scan)
	assert.ErrorIs(t, err, ErrRecordAccessDenied)

	stored, err := env.repos.AgreementRepo.GetByID(ctx, agreement.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Rent)
}

func TestReconciler_TenantScanCreatesAgreementAsTenant(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.db.CreateTestUser(t, models.UserRoleTenant)

	scan := completedScan(tenant.ID, map[string]FieldValue{
		FieldRentAmount: {Value: "900", Confidence: 0.8},
	})

	result, err := env.reconciler.Apply(context.Background(), scan)
	require.NoError(t, err)

	stored, err := env.repos.AgreementRepo.GetByID(context.Background(), *result.AgreementID)
	require.NoError(t, err)
	require.NotNil(t, stored.TenantID)
	assert.Equal(t, tenant.ID, *stored.TenantID)
	assert.Nil(t, stored.LandlordID)
	assert.True(t, stored.HasParty(tenant.ID))
}

// A tenant on the agreement updates the lease but not the landlord's property.
func TestReconciler_AgreementPartyCannotWriteUnownedProperty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	landlord := env.db.CreateTestUser(t, models.UserRoleLandlord)
	tenant := env.db.CreateTestUser(t, models.UserRoleTenant)
	property := env.db.CreateTestProperty(t, landlord)

	agreement := &models.Agreement{
		LandlordID: &landlord.ID,
		TenantID:   &tenant.ID,
		PropertyID: &property.ID,
	}
	require.NoError(t, env.repos.AgreementRepo.Create(ctx, agreement))

	result, err := env.scanService(extractionReturning(map[string]FieldValue{
		FieldPropertyAddress: {Value: "666 Hijack Rd", Confidence: 1.0},
		FieldRentAmount:      {Value: "1100", Confidence: 0.9},
	})).ProcessScan(ctx, ProcessScanParams{
		UserID:        tenant.ID,
		DocumentClass: models.DocClassRentalAgreement,
		Content:       []byte("lease"),
		AgreementID:   &agreement.ID,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agreement.rent", "agreement.property_address"}, result.Reconciliation.Applied)
	assert.Equal(t, []string{"property.address"}, result.Reconciliation.Skipped)

	storedProperty, err := env.repos.PropertyRepo.GetByID(ctx, property.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Test Street", storedProperty.Address)
	_, tracked := storedProperty.FieldConfidence[RecordAddress]
	assert.False(t, tracked)
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" $1,500.00 ")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, amount)

	for _, bad := range []string{"", "abc", "-10", "NaN", "Inf"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
