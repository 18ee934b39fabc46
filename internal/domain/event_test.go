package domain

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestAccessEventValidate(t *testing.T) {
	t.Parallel()

	base := AccessEvent{
		ID:            "ev-1",
		SubjectName:   "Ana",
		Message:       "Bienvenida",
		AccessGranted: true,
	}

	tests := []struct {
		name    string
		mutate  func(*AccessEvent)
		wantErr bool
	}{
		{
			name:   "valid event",
			mutate: func(e *AccessEvent) {},
		},
		{
			name: "missing id",
			mutate: func(e *AccessEvent) {
				e.ID = "  "
			},
			wantErr: true,
		},
		{
			name: "missing name and message",
			mutate: func(e *AccessEvent) {
				e.SubjectName = ""
				e.Message = ""
			},
			wantErr: true,
		},
		{
			name: "message only is enough",
			mutate: func(e *AccessEvent) {
				e.SubjectName = ""
			},
		},
		{
			name: "negative sessions remaining",
			mutate: func(e *AccessEvent) {
				e.SessionsRemaining = intPtr(-1)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event := base
			tt.mutate(&event)

			err := event.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestDedupKeyIgnoresID(t *testing.T) {
	t.Parallel()

	a := AccessEvent{ID: "1", SubjectName: "Ana", Message: "Bienvenida", OccurredAtLabel: "10:00"}
	b := AccessEvent{ID: "2", SubjectName: "Ana", Message: "Bienvenida", OccurredAtLabel: "10:00"}
	c := AccessEvent{ID: "1", SubjectName: "Ana", Message: "Bienvenida", OccurredAtLabel: "10:05"}

	if a.DedupKey() != b.DedupKey() {
		t.Fatal("events differing only by id should share a dedup key")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Fatal("events with different times should not share a dedup key")
	}
}

func TestClassifySeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event AccessEvent
		want  Severity
	}{
		{
			name:  "denied access is alert",
			event: AccessEvent{AccessGranted: false, SessionsRemaining: intPtr(10)},
			want:  SeverityAlert,
		},
		{
			name:  "granted with low sessions is warning",
			event: AccessEvent{AccessGranted: true, SessionsRemaining: intPtr(5)},
			want:  SeverityWarning,
		},
		{
			name:  "granted with last session is warning",
			event: AccessEvent{AccessGranted: true, SessionsRemaining: intPtr(1)},
			want:  SeverityWarning,
		},
		{
			name:  "granted with expiring membership is warning",
			event: AccessEvent{AccessGranted: true, DaysRemaining: intPtr(3)},
			want:  SeverityWarning,
		},
		{
			name:  "granted with plenty left is success",
			event: AccessEvent{AccessGranted: true, SessionsRemaining: intPtr(12), DaysRemaining: intPtr(30)},
			want:  SeveritySuccess,
		},
		{
			name:  "granted without membership detail is success",
			event: AccessEvent{AccessGranted: true},
			want:  SeveritySuccess,
		},
		{
			name:  "denied ignores membership detail",
			event: AccessEvent{AccessGranted: false, DaysRemaining: intPtr(2)},
			want:  SeverityAlert,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ClassifySeverity(tt.event); got != tt.want {
				t.Fatalf("ClassifySeverity() = %s, want %s", got, tt.want)
			}
		})
	}
}
