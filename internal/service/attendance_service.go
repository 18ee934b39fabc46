package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/observability"
	"github.com/gymaccess/access-panel/internal/repository"
	"go.uber.org/zap"
)

const journalQueueCapacity = 256

// DailyReview is the attendance report served to the front desk.
type DailyReview struct {
	Summary domain.AttendanceSummary
	Entries []domain.AttendanceEntry
}

// AttendanceService journals every ingested access event and serves
// the daily attendance review. Journaling happens off the ingestion
// path so a slow database never stalls the push channel.
type AttendanceService struct {
	repo    repository.AttendanceRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	queue   chan domain.AccessEvent
}

func NewAttendanceService(repo repository.AttendanceRepository, logger *zap.Logger) (*AttendanceService, error) {
	if repo == nil {
		return nil, fmt.Errorf("attendance repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AttendanceService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		queue:  make(chan domain.AccessEvent, journalQueueCapacity),
	}, nil
}

func (s *AttendanceService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Deliver enqueues an event for journaling. It never blocks; when the
// journal queue is full the event is dropped with a warning.
func (s *AttendanceService) Deliver(event domain.AccessEvent) {
	select {
	case s.queue <- event:
	default:
		s.logger.Warn("attendance journal queue full, dropping event",
			zap.String("event_id", event.ID),
		)
	}
}

// Run drains the journal queue until context cancellation. Persistence
// failures are logged and counted but never stop the worker.
func (s *AttendanceService) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-s.queue:
			entry := domain.AttendanceFromEvent(event, s.now().UTC())
			if err := s.repo.Create(ctx, &entry); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("failed to persist attendance entry",
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
				s.metrics.IncAttendancePersistError()
			}
		}
	}
}

// Review returns the journal entries and aggregate counts for one day.
func (s *AttendanceService) Review(ctx context.Context, day time.Time) (*DailyReview, error) {
	summary, err := s.repo.SummaryByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize attendance: %w", err)
	}

	entries, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	return &DailyReview{
		Summary: *summary,
		Entries: entries,
	}, nil
}
