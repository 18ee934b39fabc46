package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gymaccess/access-panel/internal/domain"
	"gorm.io/gorm"
)

type AttendanceRepository interface {
	Create(ctx context.Context, entry *domain.AttendanceEntry) error
	ListByDay(ctx context.Context, day time.Time) ([]domain.AttendanceEntry, error)
	SummaryByDay(ctx context.Context, day time.Time) (*domain.AttendanceSummary, error)
}

type GormAttendanceRepo struct {
	db *gorm.DB
}

func NewGormAttendanceRepo(db *gorm.DB) *GormAttendanceRepo {
	return &GormAttendanceRepo{db: db}
}

func (r *GormAttendanceRepo) Create(ctx context.Context, entry *domain.AttendanceEntry) error {
	model := attendanceModelFromDomain(entry)
	if model == nil {
		return nil
	}
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.RecordedAt.IsZero() {
		model.RecordedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*entry = *attendanceModelToDomain(model)
	return nil
}

func (r *GormAttendanceRepo) ListByDay(ctx context.Context, day time.Time) ([]domain.AttendanceEntry, error) {
	start, end := dayBounds(day)

	var models []AttendanceModel
	err := r.db.WithContext(ctx).
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Order("recorded_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.AttendanceEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *attendanceModelToDomain(&models[i]))
	}

	return entries, nil
}

func (r *GormAttendanceRepo) SummaryByDay(ctx context.Context, day time.Time) (*domain.AttendanceSummary, error) {
	start, end := dayBounds(day)

	var row struct {
		Total   int `gorm:"column:total"`
		Granted int `gorm:"column:granted"`
	}
	err := r.db.WithContext(ctx).
		Model(&AttendanceModel{}).
		Select("COUNT(*) as total, COUNT(*) FILTER (WHERE access_granted) as granted").
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &domain.AttendanceSummary{
		Day:     start.Format("2006-01-02"),
		Total:   row.Total,
		Granted: row.Granted,
		Denied:  row.Total - row.Granted,
	}, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.Add(24 * time.Hour)
}
