package domain

import "time"

// AttendanceEntry is one journaled access attempt, kept for the daily review.
type AttendanceEntry struct {
	ID                string
	EventID           string
	SubjectName       string
	AccessGranted     bool
	MembershipLabel   string
	SessionsRemaining *int
	DaysRemaining     *int
	OccurredAtLabel   string
	RecordedAt        time.Time
}

// AttendanceSummary aggregates one day of journal entries.
type AttendanceSummary struct {
	Day     string `json:"day"`
	Total   int    `json:"total"`
	Granted int    `json:"granted"`
	Denied  int    `json:"denied"`
}

// AttendanceFromEvent journals the fields of an access event worth keeping.
func AttendanceFromEvent(event AccessEvent, recordedAt time.Time) AttendanceEntry {
	return AttendanceEntry{
		EventID:           event.ID,
		SubjectName:       event.SubjectName,
		AccessGranted:     event.AccessGranted,
		MembershipLabel:   event.MembershipLabel,
		SessionsRemaining: event.SessionsRemaining,
		DaysRemaining:     event.DaysRemaining,
		OccurredAtLabel:   event.OccurredAtLabel,
		RecordedAt:        recordedAt,
	}
}
