package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gpis-formation/satisform/internal/models"
)

// ResponseStore abstracts persistence operations required by ResponseService.
type ResponseStore interface {
	AddResponse(r *models.Response, idempotencyKey string) error
	FindResponseByKey(idempotencyKey string) *models.Response
	MarkSubmitted(sessionID string)
	FormOpen() bool
}

// SubmitRequest transports the sanitized handler input into the service layer.
type SubmitRequest struct {
	// Payload is the raw survey submission, field name to value.
	Payload map[string]any
	// IdempotencyKey is the client's enqueue-time item ID. Replays of a key
	// already recorded return the stored response instead of a new row.
	IdempotencyKey string
}

// SubmitResult carries the stored response plus whether this call was a
// replay of an already-recorded submission.
type SubmitResult struct {
	Response *models.Response
	Replayed bool
}

// ResponseService hosts the submission workflow: form-open gate, required
// field validation, idempotency-key dedup, id/timestamp assignment.
type ResponseService struct {
	store       ResponseStore
	now         func() time.Time
	idGenerator func() string
}

func NewResponseService(store ResponseStore) *ResponseService {
	return &ResponseService{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: defaultResponseID,
	}
}

func defaultResponseID() string {
	return "r" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Submit validates and records one survey response. The response ID is
// generated here, never taken from the client queue.
func (s *ResponseService) Submit(req SubmitRequest) (*SubmitResult, error) {
	if !s.store.FormOpen() {
		return nil, NewForbiddenError("form is closed")
	}
	if err := models.ValidateResponsePayload(req.Payload); err != nil {
		return nil, NewInvalidError(err.Error())
	}

	if req.IdempotencyKey != "" {
		if existing := s.store.FindResponseByKey(req.IdempotencyKey); existing != nil {
			return &SubmitResult{Response: existing, Replayed: true}, nil
		}
	}

	resp := responseFromPayload(req.Payload)
	resp.ID = s.idGenerator()
	resp.ReceivedAt = s.now()
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = resp.ReceivedAt
	}
	if strings.TrimSpace(resp.Session) == "" {
		resp.Session = "SECTION 1"
	}

	if err := s.store.AddResponse(resp, req.IdempotencyKey); err != nil {
		return nil, err
	}
	if resp.SessionID != "" {
		s.store.MarkSubmitted(resp.SessionID)
	}
	return &SubmitResult{Response: resp}, nil
}

func responseFromPayload(p map[string]any) *models.Response {
	str := func(key string) string {
		if v, ok := p[key].(string); ok {
			return v
		}
		return ""
	}
	r := &models.Response{
		Session:                 str("session"),
		LieuGlobal:              str("lieuGlobal"),
		LieuAdapte:              str("lieuAdapte"),
		LieuRealite:             str("lieuRealite"),
		CommentaireLieu:         str("commentaireLieu"),
		Scenarios:               str("scenarios"),
		MisesEnSituation:        str("misesEnSituation"),
		Difficulte:              str("difficulte"),
		EvolutionDifficulte:     str("evolutionDifficulte"),
		Rythme:                  str("rythme"),
		Duree:                   str("duree"),
		Attentes:                str("attentes"),
		Pedagogie:               str("pedagogie"),
		QualiteReponses:         str("qualiteReponses"),
		DisponibiliteFormateurs: str("disponibiliteFormateurs"),
		SatisfactionFormation:   str("satisfactionFormation"),
		CommentaireLibre:        str("commentaireLibre"),
		SessionID:               str("sessionId"),
	}
	if ts := str("timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			r.CreatedAt = t.UTC()
		}
	}
	return r
}
