package speech

import (
	"fmt"
	"strings"
	"time"

	"github.com/gymaccess/access-panel/internal/domain"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// ComposeAnnouncement builds the spoken message for an access event.
//
// Denied access speaks the raw message only. Granted access speaks a
// greeting plus conditional clauses: the last-session sentence exactly when
// one session remains, a sessions-left sentence for low but plural session
// counts, an expiry-date sentence when the membership runs out within the
// warning window, and a generic granted sentence when nothing else applied.
func ComposeAnnouncement(event domain.AccessEvent, now time.Time) string {
	if !event.AccessGranted {
		return strings.TrimSpace(event.Message)
	}

	parts := make([]string, 0, 3)
	if name := strings.TrimSpace(event.SubjectName); name != "" {
		parts = append(parts, fmt.Sprintf("Bienvenido %s.", name))
	}

	clauses := 0
	if s := event.SessionsRemaining; s != nil {
		switch {
		case *s == 1:
			parts = append(parts, "Esta es tu última sesión.")
			clauses++
		case *s > 1 && *s <= domain.LowSessionThreshold:
			parts = append(parts, fmt.Sprintf("Te quedan %d sesiones.", *s))
			clauses++
		}
	}

	if d := event.DaysRemaining; d != nil && *d <= domain.LowDayThreshold {
		expiry := now.AddDate(0, 0, *d)
		parts = append(parts, fmt.Sprintf("Tu membresía vence el %s.", formatSpanishDate(expiry)))
		clauses++
	}

	if clauses == 0 {
		parts = append(parts, "Acceso concedido.")
	}

	return strings.Join(parts, " ")
}

func formatSpanishDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
