package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"framestudio/internal/domain"
)

func (s *Store) UpsertWorkload(ctx context.Context, w *domain.DailyWorkload) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			UpdateAll: true,
		}).
		Create(w).Error
}

func (s *Store) GetWorkload(ctx context.Context, date string) (*domain.DailyWorkload, error) {
	var w domain.DailyWorkload
	if err := s.db.WithContext(ctx).Where("date = ?", date).First(&w).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// ListWorkloads returns cache rows with fromDate <= date < toDate.
func (s *Store) ListWorkloads(ctx context.Context, fromDate, toDate string) ([]domain.DailyWorkload, error) {
	var out []domain.DailyWorkload
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date < ?", fromDate, toDate).
		Order("date ASC").
		Find(&out).Error
	return out, err
}
