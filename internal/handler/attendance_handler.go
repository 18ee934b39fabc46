package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/service"
)

// AttendanceReviewer serves the daily attendance review.
type AttendanceReviewer interface {
	Review(ctx context.Context, day time.Time) (*service.DailyReview, error)
}

type AttendanceHandler struct {
	service AttendanceReviewer
}

func NewAttendanceHandler(reviewer AttendanceReviewer) (*AttendanceHandler, error) {
	if reviewer == nil {
		return nil, fmt.Errorf("attendance reviewer is required")
	}
	return &AttendanceHandler{service: reviewer}, nil
}

func RegisterAttendanceRoutes(router fiber.Router, reviewer AttendanceReviewer) error {
	h, err := NewAttendanceHandler(reviewer)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/attendance", h.GetDailyReview)

	return nil
}

type attendanceEntryResponse struct {
	ID                string    `json:"id"`
	EventID           string    `json:"eventId"`
	SubjectName       string    `json:"subjectName"`
	AccessGranted     bool      `json:"accessGranted"`
	MembershipLabel   string    `json:"membershipLabel,omitempty"`
	SessionsRemaining *int      `json:"sessionsRemaining,omitempty"`
	DaysRemaining     *int      `json:"daysRemaining,omitempty"`
	OccurredAtLabel   string    `json:"occurredAt,omitempty"`
	RecordedAt        time.Time `json:"recordedAt"`
}

type attendanceReviewResponse struct {
	Summary domain.AttendanceSummary  `json:"summary"`
	Entries []attendanceEntryResponse `json:"entries"`
}

func (h *AttendanceHandler) GetDailyReview(c *fiber.Ctx) error {
	day, err := parseDateQuery(c.Query("date"))
	if err != nil {
		return toHTTPError(err)
	}

	review, err := h.service.Review(c.Context(), day)
	if err != nil {
		return toHTTPError(err)
	}

	entries := make([]attendanceEntryResponse, 0, len(review.Entries))
	for _, entry := range review.Entries {
		entries = append(entries, attendanceEntryResponse{
			ID:                entry.ID,
			EventID:           entry.EventID,
			SubjectName:       entry.SubjectName,
			AccessGranted:     entry.AccessGranted,
			MembershipLabel:   entry.MembershipLabel,
			SessionsRemaining: entry.SessionsRemaining,
			DaysRemaining:     entry.DaysRemaining,
			OccurredAtLabel:   entry.OccurredAtLabel,
			RecordedAt:        entry.RecordedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(attendanceReviewResponse{
		Summary: review.Summary,
		Entries: entries,
	})
}

func parseDateQuery(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Now(), nil
	}

	day, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
	}
	return day, nil
}
