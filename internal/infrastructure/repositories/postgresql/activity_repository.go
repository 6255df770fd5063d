package postgresql

import (
	"context"

	"github.com/rentum/rentum/internal/domain/repositories"
	"github.com/rentum/rentum/internal/infrastructure/database"
	"github.com/rentum/rentum/internal/infrastructure/database/models"
)

type ActivityRepository struct {
	db *database.DB
}

func NewActivityRepository(db *database.DB) repositories.ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var documents []models.Document
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&documents).Error; err != nil {
		return nil, storageError("list documents", err)
	}
	return documents, nil
}

func (r *ActivityRepository) ListPayments(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, storageError("list payments", err)
	}
	return payments, nil
}

func (r *ActivityRepository) ListIssues(ctx context.Context) ([]models.Issue, error) {
	var issues []models.Issue
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&issues).Error; err != nil {
		return nil, storageError("list issues", err)
	}
	return issues, nil
}

func (r *ActivityRepository) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, storageError("list notifications", err)
	}
	return notifications, nil
}

func (r *ActivityRepository) ListChatMessages(ctx context.Context) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	if err := r.db.Conn(ctx).Order("created_at DESC").Find(&messages).Error; err != nil {
		return nil, storageError("list chat messages", err)
	}
	return messages, nil
}
