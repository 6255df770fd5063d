package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

var (
	ErrInvalidScoringConfig = fmt.Errorf("%w: invalid scoring configuration", apperrors.ErrValidation)
	ErrInvalidRating        = fmt.Errorf("%w: ratings must be integers between 1 and 5", apperrors.ErrValidation)
)

const (
	MinRating = 1
	MaxRating = 5
	MaxScore  = 10.0
)

// RiskThresholds splits [0,10] into three bands: low at or above Low,
// medium at or above Medium, high below Medium.
type RiskThresholds struct {
	Low    float64
	Medium float64
}

// ScoringConfig holds the tunable scoring rules
type ScoringConfig struct {
	CategoryWeights map[models.Category]float64
	OverallWeight   float64
	Thresholds      RiskThresholds
	GreenAtOrAbove  int
	RedAtOrBelow    int
	MaxTextFlags    int
	AnalyzerTimeout time.Duration
}

// DefaultScoringConfig returns the production weights and thresholds
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CategoryWeights: map[models.Category]float64{
			models.CategoryPaymentReliability:  0.25,
			models.CategoryPropertyMaintenance: 0.15,
			models.CategoryCommunication:       0.15,
			models.CategoryLeaseCompliance:     0.20,
			models.CategoryResponsiveness:      0.10,
			models.CategoryPropertyCondition:   0.10,
			models.CategoryFairness:            0.03,
			models.CategoryPrivacyRespect:      0.02,
		},
		OverallWeight:   0.25,
		Thresholds:      RiskThresholds{Low: 7.5, Medium: 5.0},
		GreenAtOrAbove:  4,
		RedAtOrBelow:    2,
		MaxTextFlags:    5,
		AnalyzerTimeout: 5 * time.Second,
	}
}

// Validate checks that weights are usable and the risk bands cover the whole
// score range without overlapping.
func (c ScoringConfig) Validate() error {
	total := c.OverallWeight
	if c.OverallWeight < 0 || math.IsNaN(c.OverallWeight) {
		return fmt.Errorf("%w: overall weight must be non-negative", ErrInvalidScoringConfig)
	}
	for _, category := range models.AllCategories {
		weight, ok := c.CategoryWeights[category]
		if !ok {
			return fmt.Errorf("%w: missing weight for %s", ErrInvalidScoringConfig, category)
		}
		if weight < 0 || math.IsNaN(weight) {
			return fmt.Errorf("%w: weight for %s must be non-negative", ErrInvalidScoringConfig, category)
		}
		total += weight
	}
	if total <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidScoringConfig)
	}

	t := c.Thresholds
	if math.IsNaN(t.Low) || math.IsNaN(t.Medium) || t.Medium < 0 || t.Low > MaxScore || t.Medium > t.Low {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= medium <= low <= %v", ErrInvalidScoringConfig, MaxScore)
	}
	if c.GreenAtOrAbove <= c.RedAtOrBelow ||
		c.GreenAtOrAbove < MinRating || c.GreenAtOrAbove > MaxRating ||
		c.RedAtOrBelow < MinRating || c.RedAtOrBelow > MaxRating {
		return fmt.Errorf("%w: flag rating cut-offs must be within 1-5 with green above red", ErrInvalidScoringConfig)
	}
	if c.MaxTextFlags < 0 {
		return fmt.Errorf("%w: max text flags must be non-negative", ErrInvalidScoringConfig)
	}
	return nil
}

// RiskFor maps a score to its risk band
func (t RiskThresholds) RiskFor(score float64) models.RiskLevel {
	switch {
	case score >= t.Low:
		return models.RiskLow
	case score >= t.Medium:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// ScoreInput is what a reviewer submitted
type ScoreInput struct {
	Ratings       models.CategoryRatings
	OverallRating int
	Comments      string
}

// ScoreResult holds the derived review fields
type ScoreResult struct {
	OverallScore float64          `json:"ai_overall_score"`
	Risk         models.RiskLevel `json:"ai_risk_assessment"`
	GreenFlags   []string         `json:"ai_green_flags"`
	RedFlags     []string         `json:"ai_red_flags"`
	Summary      string           `json:"ai_analysis_summary"`
}

// ApplyTo copies the derived fields onto a response
func (r *ScoreResult) ApplyTo(response *models.ReviewResponse) {
	response.AIOverallScore = r.OverallScore
	response.AIRiskAssessment = r.Risk
	response.AIGreenFlags = models.StringList(r.GreenFlags)
	response.AIRedFlags = models.StringList(r.RedFlags)
	response.AIAnalysisSummary = r.Summary
}

// Scorer derives score, risk, flags and summary from a review. Given the
// same input and analyzer output it is deterministic.
type Scorer struct {
	analyzer CommentAnalyzer
	config   ScoringConfig
}

// NewScorer validates the configuration and creates a scorer
func NewScorer(analyzer CommentAnalyzer, config ScoringConfig) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{analyzer: analyzer, config: config}, nil
}

// ValidateRatings checks that every category and the overall rating are
// present and within 1-5.
func ValidateRatings(ratings models.CategoryRatings, overall int) error {
	if len(ratings) != len(models.AllCategories) {
		return fmt.Errorf("%w: expected %d category ratings, got %d", ErrInvalidRating, len(models.AllCategories), len(ratings))
	}
	for _, category := range models.AllCategories {
		rating, ok := ratings[category]
		if !ok {
			return fmt.Errorf("%w: missing rating for %s", ErrInvalidRating, category)
		}
		if rating < MinRating || rating > MaxRating {
			return fmt.Errorf("%w: %s=%d", ErrInvalidRating, category, rating)
		}
	}
	if overall < MinRating || overall > MaxRating {
		return fmt.Errorf("%w: overall_rating=%d", ErrInvalidRating, overall)
	}
	return nil
}

// Score computes the derived fields for one review
func (s *Scorer) Score(ctx context.Context, input ScoreInput) (*ScoreResult, error) {
	if err := ValidateRatings(input.Ratings, input.OverallRating); err != nil {
		return nil, err
	}

	score := s.OverallScore(input.Ratings, input.OverallRating)
	risk := s.config.Thresholds.RiskFor(score)
	green, red := s.numericFlags(input.Ratings)

	if s.analyzer != nil && strings.TrimSpace(input.Comments) != "" {
		analysis, err := s.analyze(ctx, input.Comments)
		if err != nil {
			return nil, err
		}
		green = append(green, s.textLabels(analysis.Green, input.Ratings, true, green)...)
		red = append(red, s.textLabels(analysis.Red, input.Ratings, false, red)...)
	}

	return &ScoreResult{
		OverallScore: score,
		Risk:         risk,
		GreenFlags:   green,
		RedFlags:     red,
		Summary:      summarize(score, risk, green, red, input.Ratings),
	}, nil
}

// OverallScore is the weighted mean of the ratings rescaled from 1-5 to
// 0-10 and rounded to one decimal.
func (s *Scorer) OverallScore(ratings models.CategoryRatings, overall int) float64 {
	weighted := s.config.OverallWeight * float64(overall)
	total := s.config.OverallWeight
	for _, category := range models.AllCategories {
		weight := s.config.CategoryWeights[category]
		weighted += weight * float64(ratings[category])
		total += weight
	}
	mean := weighted / total
	return round1((mean - MinRating) / (MaxRating - MinRating) * MaxScore)
}

func (s *Scorer) numericFlags(ratings models.CategoryRatings) (green, red []string) {
	green, red = []string{}, []string{}
	for _, category := range models.AllCategories {
		rating := ratings[category]
		switch {
		case rating >= s.config.GreenAtOrAbove:
			green = append(green, string(category))
		case rating <= s.config.RedAtOrBelow:
			red = append(red, string(category))
		}
	}
	return green, red
}

// textLabels keeps analyzer labels that do not contradict the numeric
// verdict for their category, capped at MaxTextFlags.
func (s *Scorer) textLabels(flags []TextFlag, ratings models.CategoryRatings, positive bool, existing []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, label := range existing {
		seen[label] = true
	}

	labels := []string{}
	for _, flag := range flags {
		if len(labels) >= s.config.MaxTextFlags {
			break
		}
		if flag.Label == "" || seen[flag.Label] {
			continue
		}
		if flag.Category != "" {
			rating, rated := ratings[flag.Category]
			if rated && positive && rating <= s.config.RedAtOrBelow {
				continue
			}
			if rated && !positive && rating >= s.config.GreenAtOrAbove {
				continue
			}
		}
		seen[flag.Label] = true
		labels = append(labels, flag.Label)
	}
	return labels
}

func (s *Scorer) analyze(ctx context.Context, comments string) (*CommentAnalysis, error) {
	if s.config.AnalyzerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.AnalyzerTimeout)
		defer cancel()
	}
	analysis, err := s.analyzer.Analyze(ctx, comments)
	if err != nil {
		return nil, fmt.Errorf("%w: comment analysis: %v", apperrors.ErrDependencyFailure, err)
	}
	if analysis == nil {
		return &CommentAnalysis{}, nil
	}
	return analysis, nil
}

func summarize(score float64, risk models.RiskLevel, green, red []string, ratings models.CategoryRatings) string {
	var parts []string

	switch {
	case score >= 8.0:
		parts = append(parts, "Excellent tenant/landlord with strong overall performance.")
	case score >= 6.0:
		parts = append(parts, "Good tenant/landlord with satisfactory performance.")
	case score >= 4.0:
		parts = append(parts, "Average tenant/landlord with some areas for improvement.")
	default:
		parts = append(parts, "Below-average tenant/landlord with significant concerns.")
	}

	switch risk {
	case models.RiskLow:
		parts = append(parts, "Low risk - highly recommended.")
	case models.RiskMedium:
		parts = append(parts, "Medium risk - proceed with standard precautions.")
	default:
		parts = append(parts, "High risk - requires careful consideration and additional safeguards.")
	}

	if len(green) > 0 {
		parts = append(parts, fmt.Sprintf("Key strengths: %s.", strings.Join(displayLabels(green, 3), ", ")))
	}
	if len(red) > 0 {
		parts = append(parts, fmt.Sprintf("Areas of concern: %s.", strings.Join(displayLabels(red, 3), ", ")))
	}

	switch payment := ratings[models.CategoryPaymentReliability]; {
	case payment >= 4:
		parts = append(parts, "Strong payment history.")
	case payment <= 2:
		parts = append(parts, "Payment reliability concerns noted.")
	}

	return strings.Join(parts, " ")
}

func displayLabels(labels []string, limit int) []string {
	if len(labels) > limit {
		labels = labels[:limit]
	}
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, detail, ok := strings.Cut(label, ": "); ok {
			out = append(out, detail)
			continue
		}
		out = append(out, strings.ReplaceAll(label, "_", " "))
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
