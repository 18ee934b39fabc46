package domain

import (
	"fmt"
	"strings"
)

// Severity classifies how an access event is presented.
type Severity string

const (
	SeverityAlert   Severity = "ALERT"
	SeverityWarning Severity = "WARNING"
	SeveritySuccess Severity = "SUCCESS"
)

func (s Severity) String() string { return string(s) }

func (s Severity) IsValid() bool {
	switch s {
	case SeverityAlert, SeverityWarning, SeveritySuccess:
		return true
	}
	return false
}

// Thresholds for the warning presentation state.
const (
	LowSessionThreshold = 5
	LowDayThreshold     = 5
)

// AccessEvent is one door-entry attempt reported by the access device.
type AccessEvent struct {
	// ID is server-supplied when present, otherwise synthesized from the
	// receipt timestamp. Not guaranteed unique across reconnects.
	ID                string
	SubjectName       string
	Message           string
	PhotoRef          string
	AccessGranted     bool
	MembershipLabel   string
	SessionsRemaining *int
	DaysRemaining     *int
	// OccurredAtLabel is the display-formatted event time, opaque here.
	OccurredAtLabel string
}

func (e *AccessEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if strings.TrimSpace(e.SubjectName) == "" && strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("%w: event needs a subject name or a message", ErrValidation)
	}
	if e.SessionsRemaining != nil && *e.SessionsRemaining < 0 {
		return fmt.Errorf("%w: sessions remaining must be >= 0 (got %d)", ErrValidation, *e.SessionsRemaining)
	}
	return nil
}

// DedupKey is the practical uniqueness proxy for an event. The device
// backend may redeliver the same logical event without a stable id across
// reconnects, so identity is name+message+time rather than id.
func (e AccessEvent) DedupKey() string {
	return e.SubjectName + "\x00" + e.Message + "\x00" + e.OccurredAtLabel
}

// Denied events never carry membership detail in their presentation.
func (e AccessEvent) HasLowSessions() bool {
	return e.AccessGranted && e.SessionsRemaining != nil && *e.SessionsRemaining <= LowSessionThreshold
}

func (e AccessEvent) HasExpiringMembership() bool {
	return e.AccessGranted && e.DaysRemaining != nil && *e.DaysRemaining <= LowDayThreshold
}

// ClassifySeverity maps an event to its presentation severity: denied
// access is an alert, granted access with low sessions or a soon-to-expire
// membership is a warning, anything else is a success.
func ClassifySeverity(e AccessEvent) Severity {
	if !e.AccessGranted {
		return SeverityAlert
	}
	if e.HasLowSessions() || e.HasExpiringMembership() {
		return SeverityWarning
	}
	return SeveritySuccess
}
