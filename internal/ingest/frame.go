package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gymaccess/access-panel/internal/domain"
)

const (
	// heartbeatToken is the literal liveness frame sent by the backend.
	heartbeatToken = "ping"
	// eventTopic marks frames that carry an access event.
	eventTopic = "evento"
)

type frameEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// eventPayload mirrors the wire shape produced by the access backend.
type eventPayload struct {
	ID                json.RawMessage `json:"id"`
	Nombre            string          `json:"nombre"`
	Mensaje           string          `json:"mensaje"`
	Permitido         bool            `json:"permitido"`
	Foto              string          `json:"foto"`
	TipoMembresia     string          `json:"tipo_membresia"`
	SesionesRestantes *int            `json:"sesiones_restantes"`
	DiasRestantes     *int            `json:"dias_restantes"`
	Hora              string          `json:"hora"`
}

func isHeartbeat(payload []byte) bool {
	return string(bytes.TrimSpace(payload)) == heartbeatToken
}

// decodeEvent parses one inbound frame. ok is false for frames whose topic
// is not the event topic; err is set only for malformed payloads. When the
// backend omits the id, one is synthesized from the receipt timestamp.
func decodeEvent(payload []byte, receivedAt time.Time) (domain.AccessEvent, bool, error) {
	var envelope frameEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.AccessEvent{}, false, fmt.Errorf("malformed frame: %w", err)
	}
	if envelope.Topic != eventTopic {
		return domain.AccessEvent{}, false, nil
	}

	var body eventPayload
	if err := json.Unmarshal(envelope.Data, &body); err != nil {
		return domain.AccessEvent{}, false, fmt.Errorf("malformed event body: %w", err)
	}

	id := normalizeID(body.ID)
	if id == "" {
		id = strconv.FormatInt(receivedAt.UnixMilli(), 10)
	}

	event := domain.AccessEvent{
		ID:              id,
		SubjectName:     body.Nombre,
		Message:         body.Mensaje,
		PhotoRef:        body.Foto,
		AccessGranted:   body.Permitido,
		OccurredAtLabel: body.Hora,
	}
	// Membership details are meaningless on a denial and must never reach
	// the panel, even when the backend sends them anyway.
	if body.Permitido {
		event.MembershipLabel = body.TipoMembresia
		event.SessionsRemaining = body.SesionesRestantes
		event.DaysRemaining = body.DiasRestantes
	}

	if err := event.Validate(); err != nil {
		return domain.AccessEvent{}, false, err
	}

	return event, true, nil
}

// normalizeID accepts the id as either a JSON number or a string.
func normalizeID(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	return strings.Trim(trimmed, `"`)
}
