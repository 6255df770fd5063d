package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/repositories"
)

// ViewService serves role-scoped reads. It fetches the full collections on
// every call and holds no state of its own.
type ViewService struct {
	source CollectionSource
}

// NewViewService creates a new view service
func NewViewService(source CollectionSource) *ViewService {
	return &ViewService{source: source}
}

// ScopedView returns the collections the caller is entitled to see.
func (s *ViewService) ScopedView(ctx context.Context, caller *Caller) (*Collections, error) {
	all, err := s.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrDependencyFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to fetch collections: %v", apperrors.ErrDependencyFailure, err)
	}
	return FilterCollections(all, caller), nil
}

// RepositorySource reads the collections straight from the repositories.
type RepositorySource struct {
	activity  repositories.ActivityRepository
	scans     repositories.DocumentScanRepository
	requests  repositories.ReviewRequestRepository
	responses repositories.ReviewResponseRepository
}

// NewRepositorySource creates a CollectionSource backed by the database
func NewRepositorySource(
	activity repositories.ActivityRepository,
	scans repositories.DocumentScanRepository,
	requests repositories.ReviewRequestRepository,
	responses repositories.ReviewResponseRepository,
) *RepositorySource {
	return &RepositorySource{
		activity:  activity,
		scans:     scans,
		requests:  requests,
		responses: responses,
	}
}

// Fetch implements CollectionSource
func (s *RepositorySource) Fetch(ctx context.Context) (*Collections, error) {
	var (
		all = &Collections{}
		err error
	)

	if all.Documents, err = s.activity.ListDocuments(ctx); err != nil {
		return nil, err
	}
	if all.Payments, err = s.activity.ListPayments(ctx); err != nil {
		return nil, err
	}
	if all.Issues, err = s.activity.ListIssues(ctx); err != nil {
		return nil, err
	}
	if all.Notifications, err = s.activity.ListNotifications(ctx); err != nil {
		return nil, err
	}
	if all.ChatMessages, err = s.activity.ListChatMessages(ctx); err != nil {
		return nil, err
	}
	if all.Scans, err = s.scans.List(ctx); err != nil {
		return nil, err
	}
	if all.ReviewRequests, err = s.requests.List(ctx); err != nil {
		return nil, err
	}
	if all.ReviewResponses, err = s.responses.List(ctx); err != nil {
		return nil, err
	}
	return all, nil
}
