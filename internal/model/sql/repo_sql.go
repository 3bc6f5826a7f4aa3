package sql

import (
	"gatekeeper/internal/entity"
	"time"

	"gorm.io/gorm"
)

// GormRepository implements Repository using GORM
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Option customises a GormRepository.
type Option func(*GormRepository)

// WithClock replaces the wall clock used for every timestamp the
// repository writes or compares against.
func WithClock(now func() time.Time) Option {
	return func(r *GormRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewGormRepository creates a new repository instance
func NewGormRepository(db *gorm.DB, opts ...Option) *GormRepository {
	r := &GormRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the repository clock in UTC at whole-second resolution.
func (r *GormRepository) Now() time.Time {
	return Truncate(r.now())
}

// Truncate normalises a timestamp to the stored resolution.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// calculatePagination calculates pagination metrics
func (r *GormRepository) calculatePagination(totalCount int64, page, pageSize int) *entity.Meta {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	return &entity.Meta{
		Total:    totalCount,
		Page:     int64(page),
		PageSize: int64(pageSize),
	}
}
