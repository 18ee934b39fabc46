package repository

import (
	"time"

	"github.com/gymaccess/access-panel/internal/domain"
)

// AttendanceModel is the persistence model for the attendance_entries table.
type AttendanceModel struct {
	ID                string `gorm:"type:uuid;primaryKey"`
	EventID           string `gorm:"type:varchar(64);not null"`
	SubjectName       string `gorm:"type:varchar(255);not null"`
	AccessGranted     bool   `gorm:"not null"`
	MembershipLabel   string `gorm:"type:varchar(100)"`
	SessionsRemaining *int   `gorm:"type:int"`
	DaysRemaining     *int   `gorm:"type:int"`
	OccurredAtLabel   string `gorm:"type:varchar(32)"`
	RecordedAt        time.Time
}

func (AttendanceModel) TableName() string {
	return "attendance_entries"
}

func attendanceModelFromDomain(e *domain.AttendanceEntry) *AttendanceModel {
	if e == nil {
		return nil
	}

	return &AttendanceModel{
		ID:                e.ID,
		EventID:           e.EventID,
		SubjectName:       e.SubjectName,
		AccessGranted:     e.AccessGranted,
		MembershipLabel:   e.MembershipLabel,
		SessionsRemaining: e.SessionsRemaining,
		DaysRemaining:     e.DaysRemaining,
		OccurredAtLabel:   e.OccurredAtLabel,
		RecordedAt:        e.RecordedAt,
	}
}

func attendanceModelToDomain(m *AttendanceModel) *domain.AttendanceEntry {
	if m == nil {
		return nil
	}

	return &domain.AttendanceEntry{
		ID:                m.ID,
		EventID:           m.EventID,
		SubjectName:       m.SubjectName,
		AccessGranted:     m.AccessGranted,
		MembershipLabel:   m.MembershipLabel,
		SessionsRemaining: m.SessionsRemaining,
		DaysRemaining:     m.DaysRemaining,
		OccurredAtLabel:   m.OccurredAtLabel,
		RecordedAt:        m.RecordedAt,
	}
}
