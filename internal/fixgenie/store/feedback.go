package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/kart-io/fixgenie/internal/model"
)

var _ FeedbackStore = (*SQLFeedbackStore)(nil)

// SQLFeedbackStore persists feedback and the search log in SQLite via GORM.
type SQLFeedbackStore struct {
	db *gorm.DB
}

// NewSQLFeedbackStore creates a feedback store on an opened database.
func NewSQLFeedbackStore(db *gorm.DB) *SQLFeedbackStore {
	return &SQLFeedbackStore{db: db}
}

// AddFeedback persists one feedback record, assigning a ULID id.
func (s *SQLFeedbackStore) AddFeedback(ctx context.Context, fb *model.Feedback) error {
	if fb.ID == "" {
		fb.ID = ulid.Make().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the most recent feedback records, newest first.
func (s *SQLFeedbackStore) ListFeedback(ctx context.Context, limit int) ([]*model.Feedback, error) {
	var records []*model.Feedback
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return records, nil
}

// AddSearchLog persists one search-log entry.
func (s *SQLFeedbackStore) AddSearchLog(ctx context.Context, entry *model.SearchLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to store search log: %w", err)
	}
	return nil
}

// RecentSearches returns the most recent search-log entries, newest first.
func (s *SQLFeedbackStore) RecentSearches(ctx context.Context, limit int) ([]*model.SearchLog, error) {
	var entries []*model.SearchLog
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list search log: %w", err)
	}
	return entries, nil
}
