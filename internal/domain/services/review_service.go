package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
	"github.com/rentum/rentum/pkg/logger"
)

var (
	ErrReviewRequestNotFound  = fmt.Errorf("%w: review request not found", apperrors.ErrNotFound)
	ErrReviewResponseNotFound = fmt.Errorf("%w: review response not found", apperrors.ErrNotFound)
	ErrReviewerNotFound       = fmt.Errorf("%w: reviewer not found", apperrors.ErrNotFound)
	ErrRequestNotPending      = fmt.Errorf("%w: review request is not pending", apperrors.ErrInvalidState)
	ErrReviewerMismatch       = fmt.Errorf("%w: caller is not the intended reviewer", apperrors.ErrNotAuthorized)
	ErrSelfReview             = fmt.Errorf("%w: requester cannot review themselves", apperrors.ErrValidation)
	ErrInvalidRequestType     = fmt.Errorf("%w: invalid request type", apperrors.ErrValidation)
	ErrInvalidReviewerRef     = fmt.Errorf("%w: reviewer must be a user id or an email address", apperrors.ErrValidation)
)

// ReviewService runs the review request state machine:
// pending -> fulfilled on the first accepted response, pending -> expired by
// the expiry policy. Both targets are terminal.
type ReviewService struct {
	tx           repositories.Transactor
	userRepo     repositories.UserRepository
	requestRepo  repositories.ReviewRequestRepository
	responseRepo repositories.ReviewResponseRepository

	scorer   *Scorer
	profiles *ProfileService
	locker   KeyedLocker
	metrics  EngineMetrics
	logger   *logger.Logger
}

// NewReviewService creates a new review service
func NewReviewService(
	tx repositories.Transactor,
	userRepo repositories.UserRepository,
	requestRepo repositories.ReviewRequestRepository,
	responseRepo repositories.ReviewResponseRepository,
	scorer *Scorer,
	profiles *ProfileService,
	locker KeyedLocker,
	metrics EngineMetrics,
	log *logger.Logger,
) *ReviewService {
	return &ReviewService{
		tx:           tx,
		userRepo:     userRepo,
		requestRepo:  requestRepo,
		responseRepo: responseRepo,
		scorer:       scorer,
		profiles:     profiles,
		locker:       locker,
		metrics:      metrics,
		logger:       log,
	}
}

// CreateReviewRequestParams contains parameters for asking someone for a review
type CreateReviewRequestParams struct {
	RequesterID uuid.UUID                `json:"requester_id"`
	ReviewerRef string                   `json:"reviewer_ref"`
	RequestType models.ReviewRequestType `json:"request_type"`
	PropertyID  *uuid.UUID               `json:"property_id,omitempty"`
	Message     string                   `json:"message"`
}

// SubmitResponseParams contains a reviewer's answer to a request
type SubmitResponseParams struct {
	RequestID     uuid.UUID              `json:"request_id"`
	ReviewerID    uuid.UUID              `json:"reviewer_id"`
	Ratings       models.CategoryRatings `json:"ratings"`
	OverallRating int                    `json:"overall_rating"`
	Comments      string                 `json:"comments"`
}

// CreateRequest creates a pending review request. reviewer_ref may be a user
// id or an email; an email with no matching user becomes a pending invitation
// that is bound when that user registers or submits.
func (s *ReviewService) CreateRequest(ctx context.Context, params CreateReviewRequestParams) (*models.ReviewRequest, error) {
	if params.RequesterID == uuid.Nil {
		return nil, fmt.Errorf("%w: requester_id is required", apperrors.ErrValidation)
	}
	if !params.RequestType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRequestType, params.RequestType)
	}
	ref := strings.TrimSpace(params.ReviewerRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: reviewer_ref is required", apperrors.ErrValidation)
	}

	if _, err := s.userRepo.GetByID(ctx, params.RequesterID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get requester: %w", err)
	}

	request := &models.ReviewRequest{
		RequesterID: params.RequesterID,
		RequestType: params.RequestType,
		PropertyID:  params.PropertyID,
		Message:     params.Message,
		Status:      models.ReviewPending,
	}

	if reviewerID, err := uuid.Parse(ref); err == nil {
		reviewer, err := s.userRepo.GetByID(ctx, reviewerID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, ErrReviewerNotFound
			}
			return nil, fmt.Errorf("failed to get reviewer: %w", err)
		}
		request.ReviewerID = &reviewer.ID
		request.ReviewerEmail = reviewer.Email
	} else {
		if !isValidEmail(ref) {
			return nil, ErrInvalidReviewerRef
		}
		request.ReviewerEmail = strings.ToLower(ref)
		reviewer, err := s.userRepo.GetByEmail(ctx, ref)
		switch {
		case err == nil:
			request.ReviewerID = &reviewer.ID
		case errors.Is(err, apperrors.ErrNotFound):
			// pending invitation
		default:
			return nil, fmt.Errorf("failed to look up reviewer email: %w", err)
		}
	}

	if request.ReviewerID != nil && *request.ReviewerID == params.RequesterID {
		return nil, ErrSelfReview
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create review request: %w", err)
	}

	s.logger.Info("review request created",
		"request_id", request.ID,
		"requester_id", request.RequesterID,
		"invitation", request.ReviewerID == nil,
	)
	return request, nil
}

// SubmitResponse records the single response to a pending request. Scoring,
// the status transition, the response write and the profile fold happen as
// one unit: either all are visible or none are.
func (s *ReviewService) SubmitResponse(ctx context.Context, params SubmitResponseParams) (*models.ReviewResponse, error) {
	if params.ReviewerID == uuid.Nil {
		return nil, fmt.Errorf("%w: reviewer_id is required", apperrors.ErrValidation)
	}
	if err := ValidateRatings(params.Ratings, params.OverallRating); err != nil {
		return nil, err
	}

	releaseRequest, err := acquire(ctx, s.locker, s.metrics, lockKey(ReviewRequestLockKeyPattern, params.RequestID))
	if err != nil {
		return nil, err
	}
	defer releaseRequest()

	request, err := s.getRequest(ctx, params.RequestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ReviewPending {
		return nil, fmt.Errorf("%w: status is %s", ErrRequestNotPending, request.Status)
	}

	bindInvitation, err := s.checkReviewer(ctx, request, params.ReviewerID)
	if err != nil {
		return nil, err
	}

	scored, err := s.scorer.Score(ctx, ScoreInput{
		Ratings:       params.Ratings,
		OverallRating: params.OverallRating,
		Comments:      params.Comments,
	})
	if err != nil {
		return nil, err
	}

	response := &models.ReviewResponse{
		ID:            uuid.New(),
		RequestID:     request.ID,
		ReviewerID:    params.ReviewerID,
		SubjectID:     request.RequesterID,
		OverallRating: params.OverallRating,
		Comments:      params.Comments,
	}
	response.SetRatings(params.Ratings)
	scored.ApplyTo(response)

	releaseProfile, err := acquire(ctx, s.locker, s.metrics, lockKey(ProfileLockKeyPattern, response.SubjectID))
	if err != nil {
		return nil, err
	}
	defer releaseProfile()

	var profile *models.Profile
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if bindInvitation {
			if err := s.requestRepo.BindReviewer(ctx, request.ID, params.ReviewerID); err != nil {
				return err
			}
		}
		ok, err := s.requestRepo.TransitionStatus(ctx, request.ID, models.ReviewPending, models.ReviewFulfilled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotPending
		}
		if err := s.responseRepo.Create(ctx, response); err != nil {
			return err
		}
		profile, err = s.profiles.foldLocked(ctx, response.SubjectID, response)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.profiles.storeFolded(ctx, profile)

	s.metrics.RecordReviewSubmission(response.AIRiskAssessment)
	s.logger.Info("review response recorded",
		"request_id", request.ID,
		"subject_id", response.SubjectID,
		"score", response.AIOverallScore,
		"risk", response.AIRiskAssessment,
	)
	return response, nil
}

// checkReviewer reports whether the request is an unresolved invitation
// that this reviewer is claiming.
func (s *ReviewService) checkReviewer(ctx context.Context, request *models.ReviewRequest, reviewerID uuid.UUID) (bool, error) {
	if request.ReviewerID != nil {
		if *request.ReviewerID != reviewerID {
			return false, ErrReviewerMismatch
		}
		return false, nil
	}

	reviewer, err := s.userRepo.GetByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, ErrReviewerNotFound
		}
		return false, fmt.Errorf("failed to get reviewer: %w", err)
	}
	if !strings.EqualFold(reviewer.Email, request.ReviewerEmail) || reviewer.ID == request.RequesterID {
		return false, ErrReviewerMismatch
	}
	return true, nil
}

// ExpireRequest moves a pending request to expired.
func (s *ReviewService) ExpireRequest(ctx context.Context, requestID uuid.UUID) (*models.ReviewRequest, error) {
	release, err := acquire(ctx, s.locker, s.metrics, lockKey(ReviewRequestLockKeyPattern, requestID))
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.getRequest(ctx, requestID); err != nil {
		return nil, err
	}
	ok, err := s.requestRepo.TransitionStatus(ctx, requestID, models.ReviewPending, models.ReviewExpired)
	if err != nil {
		return nil, fmt.Errorf("failed to expire review request: %w", err)
	}
	if !ok {
		return nil, ErrRequestNotPending
	}
	s.metrics.RecordReviewExpired(1)
	return s.getRequest(ctx, requestID)
}

// ExpireStale expires every pending request created more than olderThan ago
// and returns how many were expired.
func (s *ReviewService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.requestRepo.ListPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale review requests: %w", err)
	}

	expired := 0
	for _, request := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		_, err := s.ExpireRequest(ctx, request.ID)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperrors.ErrInvalidState):
			// answered while we were sweeping
		default:
			s.logger.Error("failed to expire review request", "request_id", request.ID, "error", err)
		}
	}
	return expired, nil
}

// ResolveInvitations binds pending email invitations to a newly known user
// and returns how many were bound.
func (s *ReviewService) ResolveInvitations(ctx context.Context, user *models.User) (int, error) {
	invitations, err := s.requestRepo.ListPendingByEmail(ctx, user.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to list invitations: %w", err)
	}

	bound := 0
	for _, invitation := range invitations {
		if invitation.RequesterID == user.ID {
			continue
		}
		if err := s.bindInvitation(ctx, invitation.ID, user.ID); err != nil {
			if errors.Is(err, apperrors.ErrInvalidState) {
				continue
			}
			return bound, err
		}
		bound++
	}
	return bound, nil
}

func (s *ReviewService) bindInvitation(ctx context.Context, requestID, reviewerID uuid.UUID) error {
	release, err := acquire(ctx, s.locker, s.metrics, lockKey(ReviewRequestLockKeyPattern, requestID))
	if err != nil {
		return err
	}
	defer release()
	return s.requestRepo.BindReviewer(ctx, requestID, reviewerID)
}

// GetRequest returns a request the caller is allowed to see. Requests hidden
// from the caller are reported as not found.
func (s *ReviewService) GetRequest(ctx context.Context, requestID uuid.UUID, caller *Caller) (*models.ReviewRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !PolicyFor(caller).CanSeeRequest(request) {
		return nil, ErrReviewRequestNotFound
	}
	return request, nil
}

// GetResponse returns the response recorded for a request.
func (s *ReviewService) GetResponse(ctx context.Context, requestID uuid.UUID, caller *Caller) (*models.ReviewResponse, error) {
	if _, err := s.GetRequest(ctx, requestID, caller); err != nil {
		return nil, err
	}
	response, err := s.responseRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrReviewResponseNotFound
		}
		return nil, fmt.Errorf("failed to get review response: %w", err)
	}
	return response, nil
}

func (s *ReviewService) getRequest(ctx context.Context, requestID uuid.UUID) (*models.ReviewRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrReviewRequestNotFound
		}
		return nil, fmt.Errorf("failed to get review request: %w", err)
	}
	return request, nil
}
