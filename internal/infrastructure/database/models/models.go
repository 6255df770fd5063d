package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Custom Types
type UserRole string
type PropertyStatus string
type DocumentClass string
type ScanStatus string
type ReviewRequestType string
type ReviewStatus string
type RiskLevel string
type RiskTrend string
type Category string

const (
	// User Roles
	UserRoleTenant   UserRole = "tenant"
	UserRoleLandlord UserRole = "landlord"
	UserRoleCompany  UserRole = "company"

	// Property Status
	PropertyActive   PropertyStatus = "active"
	PropertyInactive PropertyStatus = "inactive"

	// Document Classes
	DocClassRentalAgreement  DocumentClass = "rental_agreement"
	DocClassIDCard           DocumentClass = "id_card"
	DocClassPropertyDocument DocumentClass = "property_document"

	// Scan Status
	ScanPending   ScanStatus = "pending"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"

	// Review Request Types
	ReviewTypeTenant   ReviewRequestType = "tenant_review"
	ReviewTypeLandlord ReviewRequestType = "landlord_review"

	// Review Request Status
	ReviewPending   ReviewStatus = "pending"
	ReviewFulfilled ReviewStatus = "fulfilled"
	ReviewExpired   ReviewStatus = "expired"

	// Risk Levels
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"

	// Risk Trends
	TrendImproving        RiskTrend = "improving"
	TrendDeclining        RiskTrend = "declining"
	TrendStable           RiskTrend = "stable"
	TrendInsufficientData RiskTrend = "insufficient_data"

	// Review Categories
	CategoryPaymentReliability  Category = "payment_reliability"
	CategoryPropertyMaintenance Category = "property_maintenance"
	CategoryCommunication       Category = "communication"
	CategoryLeaseCompliance     Category = "lease_compliance"
	CategoryResponsiveness      Category = "responsiveness"
	CategoryPropertyCondition   Category = "property_condition"
	CategoryFairness            Category = "fairness"
	CategoryPrivacyRespect      Category = "privacy_respect"
)

// AllCategories lists the eight rating categories in display order.
var AllCategories = []Category{
	CategoryPaymentReliability,
	CategoryPropertyMaintenance,
	CategoryCommunication,
	CategoryLeaseCompliance,
	CategoryResponsiveness,
	CategoryPropertyCondition,
	CategoryFairness,
	CategoryPrivacyRespect,
}

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleTenant, UserRoleLandlord, UserRoleCompany:
		return true
	}
	return false
}

func (c DocumentClass) IsValid() bool {
	switch c {
	case DocClassRentalAgreement, DocClassIDCard, DocClassPropertyDocument:
		return true
	}
	return false
}

func (t ReviewRequestType) IsValid() bool {
	return t == ReviewTypeTenant || t == ReviewTypeLandlord
}

// JSON column types. SQLite hands values back as []byte or string,
// PostgreSQL as []byte.

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

// JSONB type for PostgreSQL jsonb columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	return scanJSON(value, j)
}

// StringMap stores string values keyed by field name.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *StringMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// ConfidenceMap stores a [0,1] confidence per field name.
type ConfidenceMap map[string]float64

func (m ConfidenceMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *ConfidenceMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// Get returns the stored confidence for field, 0 when unset.
func (m ConfidenceMap) Get(field string) float64 {
	return m[field]
}

// FloatMap stores running averages keyed by category.
type FloatMap map[string]float64

func (m FloatMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *FloatMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// CountMap stores label occurrence counts.
type CountMap map[string]int

func (m CountMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *CountMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// StringList stores an ordered set of labels.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// FloatList stores a short ordered series of scores.
type FloatList []float64

func (l FloatList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *FloatList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// Core Models
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(320);not null;uniqueIndex"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Role      UserRole  `json:"role" gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

type Property struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	OwnerID         uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Address         string         `json:"address" gorm:"type:varchar(500)"`
	Status          PropertyStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	Details         StringMap      `json:"details" gorm:"type:jsonb"`
	FieldConfidence ConfidenceMap  `json:"field_confidence" gorm:"type:jsonb"`
	FieldSources    StringMap      `json:"field_sources" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"not null"`
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	if p.Status == "" {
		p.Status = PropertyActive
	}
	return nil
}

type Agreement struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	PropertyID        *uuid.UUID    `json:"property_id" gorm:"type:uuid;index"`
	LandlordID        *uuid.UUID    `json:"landlord_id" gorm:"type:uuid;index"`
	TenantID          *uuid.UUID    `json:"tenant_id" gorm:"type:uuid;index"`
	StartDate         string        `json:"start_date" gorm:"type:varchar(32)"`
	EndDate           string        `json:"end_date" gorm:"type:varchar(32)"`
	Rent              *float64      `json:"rent"`
	Deposit           *float64      `json:"deposit"`
	ClauseText        string        `json:"clause_text" gorm:"type:text"`
	SourceDocumentRef *uuid.UUID    `json:"source_document_ref,omitempty" gorm:"type:uuid"`
	Details           StringMap     `json:"details" gorm:"type:jsonb"`
	FieldConfidence   ConfidenceMap `json:"field_confidence" gorm:"type:jsonb"`
	FieldSources      StringMap     `json:"field_sources" gorm:"type:jsonb"`
	CreatedAt         time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"not null"`
}

func (a *Agreement) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// HasParty reports whether userID is the agreement's landlord or tenant.
func (a *Agreement) HasParty(userID uuid.UUID) bool {
	return (a.LandlordID != nil && *a.LandlordID == userID) ||
		(a.TenantID != nil && *a.TenantID == userID)
}

// DocumentScan is the extractor's output record. It is written once as
// pending and once more on completion or failure; after that it is immutable.
type DocumentScan struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	UserID          uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index"`
	DocumentClass   DocumentClass `json:"document_class" gorm:"type:varchar(32);not null"`
	Status          ScanStatus    `json:"status" gorm:"type:varchar(20);not null;index"`
	ExtractedFields StringMap     `json:"extracted_fields" gorm:"type:jsonb"`
	FieldConfidence ConfidenceMap `json:"field_confidence" gorm:"type:jsonb"`
	PropertyID      *uuid.UUID    `json:"property_id,omitempty" gorm:"type:uuid;index"`
	AgreementID     *uuid.UUID    `json:"agreement_id,omitempty" gorm:"type:uuid;index"`
	FailureReason   string        `json:"failure_reason,omitempty" gorm:"type:text"`
	NeedsReview     bool          `json:"needs_review" gorm:"not null;default:false"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

func (s *DocumentScan) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// IsFinal reports whether the scan has left the pending state.
func (s *DocumentScan) IsFinal() bool {
	return s.Status == ScanCompleted || s.Status == ScanFailed
}

type ReviewRequest struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	RequesterID   uuid.UUID         `json:"requester_id" gorm:"type:uuid;not null;index"`
	ReviewerID    *uuid.UUID        `json:"reviewer_id" gorm:"type:uuid;index"`
	ReviewerEmail string            `json:"reviewer_email,omitempty" gorm:"type:varchar(320);index"`
	RequestType   ReviewRequestType `json:"request_type" gorm:"type:varchar(32);not null"`
	PropertyID    *uuid.UUID        `json:"property_id,omitempty" gorm:"type:uuid"`
	Message       string            `json:"message" gorm:"type:text"`
	Status        ReviewStatus      `json:"status" gorm:"type:varchar(20);not null;index"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;index"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
}

func (r *ReviewRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	if r.Status == "" {
		r.Status = ReviewPending
	}
	return nil
}

// Involves reports whether userID is the requester or the resolved reviewer.
func (r *ReviewRequest) Involves(userID uuid.UUID) bool {
	if r.RequesterID == userID {
		return true
	}
	return r.ReviewerID != nil && *r.ReviewerID == userID
}

// CategoryRatings holds one 1-5 rating per category.
type CategoryRatings map[Category]int

type ReviewResponse struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	RequestID  uuid.UUID `json:"request_id" gorm:"type:uuid;not null;uniqueIndex"`
	ReviewerID uuid.UUID `json:"reviewer_id" gorm:"type:uuid;not null;index"`
	SubjectID  uuid.UUID `json:"subject_id" gorm:"type:uuid;not null;index"`

	PaymentReliability  int `json:"payment_reliability" gorm:"not null"`
	PropertyMaintenance int `json:"property_maintenance" gorm:"not null"`
	Communication       int `json:"communication" gorm:"not null"`
	LeaseCompliance     int `json:"lease_compliance" gorm:"not null"`
	Responsiveness      int `json:"responsiveness" gorm:"not null"`
	PropertyCondition   int `json:"property_condition" gorm:"not null"`
	Fairness            int `json:"fairness" gorm:"not null"`
	PrivacyRespect      int `json:"privacy_respect" gorm:"not null"`
	OverallRating       int `json:"overall_rating" gorm:"not null"`

	Comments string `json:"comments" gorm:"type:text"`

	// Derived by the reputation scorer before the row is written
	AIOverallScore    float64    `json:"ai_overall_score" gorm:"not null"`
	AIRiskAssessment  RiskLevel  `json:"ai_risk_assessment" gorm:"type:varchar(10);not null"`
	AIGreenFlags      StringList `json:"ai_green_flags" gorm:"type:jsonb"`
	AIRedFlags        StringList `json:"ai_red_flags" gorm:"type:jsonb"`
	AIAnalysisSummary string     `json:"ai_analysis_summary" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (r *ReviewResponse) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// Ratings returns the eight category ratings keyed by category.
func (r *ReviewResponse) Ratings() CategoryRatings {
	return CategoryRatings{
		CategoryPaymentReliability:  r.PaymentReliability,
		CategoryPropertyMaintenance: r.PropertyMaintenance,
		CategoryCommunication:       r.Communication,
		CategoryLeaseCompliance:     r.LeaseCompliance,
		CategoryResponsiveness:      r.Responsiveness,
		CategoryPropertyCondition:   r.PropertyCondition,
		CategoryFairness:            r.Fairness,
		CategoryPrivacyRespect:      r.PrivacyRespect,
	}
}

// SetRatings copies ratings into the category columns.
func (r *ReviewResponse) SetRatings(ratings CategoryRatings) {
	r.PaymentReliability = ratings[CategoryPaymentReliability]
	r.PropertyMaintenance = ratings[CategoryPropertyMaintenance]
	r.Communication = ratings[CategoryCommunication]
	r.LeaseCompliance = ratings[CategoryLeaseCompliance]
	r.Responsiveness = ratings[CategoryResponsiveness]
	r.PropertyCondition = ratings[CategoryPropertyCondition]
	r.Fairness = ratings[CategoryFairness]
	r.PrivacyRespect = ratings[CategoryPrivacyRespect]
}

// Profile is the incrementally maintained reputation aggregate for one user.
type Profile struct {
	UserID               uuid.UUID `json:"user_id" gorm:"type:uuid;primary_key"`
	TotalReviews         int       `json:"total_reviews" gorm:"not null;default:0"`
	CategoryAverages     FloatMap  `json:"category_averages" gorm:"type:jsonb"`
	OverallRatingAverage float64   `json:"overall_rating_average" gorm:"not null;default:0"`
	OverallAIScore       float64   `json:"overall_ai_score" gorm:"not null;default:0"`
	GreenFlagsCount      CountMap  `json:"green_flags_count" gorm:"type:jsonb"`
	RedFlagsCount        CountMap  `json:"red_flags_count" gorm:"type:jsonb"`
	RecentScores         FloatList `json:"recent_scores" gorm:"type:jsonb"`
	RiskTrend            RiskTrend `json:"risk_trend" gorm:"type:varchar(20)"`
	LastUpdated          time.Time `json:"last_updated"`
}

// Ancillary collections exposed through the role-scoped view

type Document struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Title        string    `json:"title" gorm:"type:varchar(255);not null"`
	DocumentType string    `json:"document_type" gorm:"type:varchar(50)"`
	FileURL      string    `json:"file_url" gorm:"type:varchar(500)"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}

type Payment struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	AgreementID *uuid.UUID `json:"agreement_id,omitempty" gorm:"type:uuid"`
	Amount      float64    `json:"amount" gorm:"not null"`
	Status      string     `json:"status" gorm:"type:varchar(20)"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type Issue struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	PropertyID  *uuid.UUID `json:"property_id,omitempty" gorm:"type:uuid"`
	RaisedBy    uuid.UUID  `json:"raised_by" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:varchar(20)"`
	Priority    string     `json:"priority" gorm:"type:varchar(20)"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
}

func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

type Notification struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"type:varchar(255)"`
	Message     string    `json:"message" gorm:"type:text"`
	Read        bool      `json:"read" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}

type ChatMessage struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FromUserID uuid.UUID `json:"from_user_id" gorm:"type:uuid;not null;index"`
	ToUserID   uuid.UUID `json:"to_user_id" gorm:"type:uuid;not null;index"`
	Body       string    `json:"body" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&User{},
		&Property{},
		&Agreement{},
		&DocumentScan{},
		&ReviewRequest{},
		&ReviewResponse{},
		&Profile{},
		&Document{},
		&Payment{},
		&Issue{},
		&Notification{},
		&ChatMessage{},
	}
}
