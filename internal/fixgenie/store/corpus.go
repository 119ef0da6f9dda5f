package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/fixgenie/internal/model"
)

var _ CorpusStore = (*SQLCorpusStore)(nil)

// SQLCorpusStore persists incidents in SQLite via GORM. It is the record of
// truth the vector index and lexical snapshot are rebuilt from.
type SQLCorpusStore struct {
	db *gorm.DB
}

// OpenDB opens the SQLite database and migrates all tables.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&model.Incident{}, &model.Feedback{}, &model.SearchLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// NewSQLCorpusStore creates a corpus store on an opened database.
func NewSQLCorpusStore(db *gorm.DB) *SQLCorpusStore {
	return &SQLCorpusStore{db: db}
}

// Save inserts or replaces an incident by id.
func (s *SQLCorpusStore) Save(ctx context.Context, incident *model.Incident) error {
	if err := s.db.WithContext(ctx).Save(incident).Error; err != nil {
		return fmt.Errorf("failed to save incident %s: %w", incident.ID, err)
	}
	return nil
}

// Get fetches one incident by id, returning (nil, nil) when absent.
func (s *SQLCorpusStore) Get(ctx context.Context, id string) (*model.Incident, error) {
	var incident model.Incident
	err := s.db.WithContext(ctx).First(&incident, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	return &incident, nil
}

// Delete removes an incident by id.
func (s *SQLCorpusStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Incident{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete incident %s: %w", id, err)
	}
	return nil
}

// List returns all incidents ordered by id.
func (s *SQLCorpusStore) List(ctx context.Context) ([]*model.Incident, error) {
	var incidents []*model.Incident
	if err := s.db.WithContext(ctx).Order("id asc").Find(&incidents).Error; err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return incidents, nil
}

// IDs returns all incident ids ordered ascending.
func (s *SQLCorpusStore) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Incident{}).Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list incident ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of stored incidents.
func (s *SQLCorpusStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Incident{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}
