package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/services"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaseText = `RESIDENTIAL LEASE AGREEMENT
Property: 12 Oak St, Springfield
Landlord: John Smith
Tenant: Jane Doe
Monthly Rent: $1,500.00
Security Deposit: $3,000
Start Date: 01/02/2024
End Date: 31/01/2025
Pets: not allowed
Utilities: water and trash
Clause 1: No smoking inside the unit.
Clause 2: Tenant maintains the garden.
`

func TestPlainTextRecognizer(t *testing.T) {
	r := NewPlainTextRecognizer()

	got, err := r.Recognize(context.Background(), []byte("Tenant: Ann Lee\n"))
	require.NoError(t, err)
	assert.Equal(t, "Tenant: Ann Lee\n", got.Text)
	assert.Equal(t, 1.0, got.Confidence)

	_, err = r.Recognize(context.Background(), []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, apperrors.ErrExtractionFailure)

	_, err = r.Recognize(context.Background(), []byte("   "))
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestPatternExtractor_RentalAgreement(t *testing.T) {
	e := NewPatternExtractor(NewPlainTextRecognizer())

	fields, err := e.Extract(context.Background(), []byte(leaseText), models.DocClassRentalAgreement)
	require.NoError(t, err)

	assert.Equal(t, "12 Oak St, Springfield", fields[services.FieldPropertyAddress].Value)
	assert.Equal(t, "John Smith", fields[services.FieldLandlordName].Value)
	assert.Equal(t, "Jane Doe", fields[services.FieldTenantName].Value)
	assert.Equal(t, "1,500.00", fields[services.FieldRentAmount].Value)
	assert.Equal(t, "3,000", fields[services.FieldSecurityDeposit].Value)
	assert.Equal(t, "01/02/2024", fields[services.FieldLeaseStartDate].Value)
	assert.Equal(t, "31/01/2025", fields[services.FieldLeaseEndDate].Value)
	assert.Equal(t, "not allowed", fields[services.FieldPetPolicy].Value)
	assert.Equal(t, "water and trash", fields[services.FieldUtilitiesIncluded].Value)
	assert.Equal(t, "No smoking inside the unit.; Tenant maintains the garden.", fields[services.FieldKeyTerms].Value)

	// First-pattern matches carry the base confidence.
	assert.InDelta(t, baseConfidence, fields[services.FieldRentAmount].Confidence, 1e-9)
}

func TestPatternExtractor_FallbackPatternsScoreLower(t *testing.T) {
	e := NewPatternExtractor(NewPlainTextRecognizer())

	fields, err := e.Extract(context.Background(), []byte("Payable $950 per month\nLessee: Ann Lee\n"), models.DocClassRentalAgreement)
	require.NoError(t, err)

	assert.Equal(t, "950", fields[services.FieldRentAmount].Value)
	assert.InDelta(t, baseConfidence-2*confidenceStep, fields[services.FieldRentAmount].Confidence, 1e-9)
	assert.Equal(t, "Ann Lee", fields[services.FieldTenantName].Value)
	assert.InDelta(t, baseConfidence-confidenceStep, fields[services.FieldTenantName].Confidence, 1e-9)
	_, found := fields[services.FieldLandlordName]
	assert.False(t, found)
}

func TestPatternExtractor_ValuesOnLastLine(t *testing.T) {
	e := NewPatternExtractor(NewPlainTextRecognizer())

	fields, err := e.Extract(context.Background(), []byte("Rent: $800\nLessee: Ann Lee"), models.DocClassRentalAgreement)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", fields[services.FieldTenantName].Value)

	fields, err = e.Extract(context.Background(), []byte("ID: X123\nName: Ann Lee"), models.DocClassIDCard)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", fields[services.FieldName].Value)
	assert.InDelta(t, baseConfidence, fields[services.FieldName].Confidence, 1e-9)

	fields, err = e.Extract(context.Background(), []byte("Area: 80 sq ft\nType: Studio flat"), models.DocClassPropertyDocument)
	require.NoError(t, err)
	assert.Equal(t, "Studio flat", fields[services.FieldPropertyType].Value)
}

func TestPatternExtractor_PropertyDocument(t *testing.T) {
	e := NewPatternExtractor(NewPlainTextRecognizer())

	text := "Listing\nType: Townhouse\nArea: 1200 sq ft\nBedrooms: 3\n2.5 bathrooms\n"
	fields, err := e.Extract(context.Background(), []byte(text), models.DocClassPropertyDocument)
	require.NoError(t, err)

	assert.Equal(t, "Townhouse", fields[services.FieldPropertyType].Value)
	assert.Equal(t, "1200", fields[services.FieldArea].Value)
	assert.Equal(t, "3", fields[services.FieldBedrooms].Value)
	assert.Equal(t, "2.5", fields[services.FieldBathrooms].Value)
}

func TestPatternExtractor_UnknownClass(t *testing.T) {
	e := NewPatternExtractor(NewPlainTextRecognizer())

	_, err := e.Extract(context.Background(), []byte(leaseText), models.DocumentClass("invoice"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPatternConfidence(t *testing.T) {
	assert.InDelta(t, 0.92, patternConfidence(0, 1), 1e-9)
	assert.InDelta(t, 0.5, patternConfidence(10, 1), 1e-9)
	assert.InDelta(t, 0.46, patternConfidence(0, 0.5), 1e-9)
}

func newOCRServer(t *testing.T, handler http.HandlerFunc) *RemoteRecognizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r, err := NewRemoteRecognizer(RemoteRecognizerConfig{
		BaseURL:       server.URL,
		APIKey:        "secret",
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	})
	require.NoError(t, err)
	return r
}

func TestRemoteRecognizer_Success(t *testing.T) {
	r := newOCRServer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/recognize", req.URL.Path)
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))

		var body recognizeRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		decoded, err := base64.StdEncoding.DecodeString(body.Content)
		assert.NoError(t, err)
		assert.Equal(t, "scan-bytes", string(decoded))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: "Rent: $1200\n", Confidence: 0.8})
	})

	got, err := r.Recognize(context.Background(), []byte("scan-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Rent: $1200", got.Text)
	assert.Equal(t, 0.8, got.Confidence)
}

func TestRemoteRecognizer_RetriesServerErrors(t *testing.T) {
	var calls int32
	r := newOCRServer(t, func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: "ok", Confidence: 1})
	})

	got, err := r.Recognize(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteRecognizer_ErrorClassification(t *testing.T) {
	rejected := newOCRServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	_, err := rejected.Recognize(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, apperrors.ErrExtractionFailure)

	down := newOCRServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = down.Recognize(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, apperrors.ErrDependencyFailure)

	empty := newOCRServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recognizeResponse{Text: "  ", Confidence: 0.9})
	})
	_, err = empty.Recognize(context.Background(), []byte("x"))
	assert.True(t, errors.Is(err, ErrUnreadableDocument))
}

func TestNewRemoteRecognizer_RequiresBaseURL(t *testing.T) {
	_, err := NewRemoteRecognizer(RemoteRecognizerConfig{})
	assert.Error(t, err)
}
