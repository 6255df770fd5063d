package postgresql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rentum/rentum/internal/domain/apperrors"
	"gorm.io/gorm"
)

func notFound(entity string) error {
	return fmt.Errorf("%w: %s not found", apperrors.ErrNotFound, entity)
}

func storageError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrNotFound, op, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", apperrors.ErrDependencyFailure, op, err)
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	// PostgreSQL and SQLite duplicate key messages
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
