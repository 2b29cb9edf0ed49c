package models

import "time"

// PendingKind distinguishes what a queued item carries.
type PendingKind string

const (
	// KindConnection marks a queued connection registration event.
	KindConnection PendingKind = "connection"
	// KindResponse marks a queued survey response.
	KindResponse PendingKind = "response"
)

// PendingItem is a response or connection event awaiting remote delivery.
// The ID is assigned at enqueue time and doubles as the idempotency key on
// the receiving end, so retried deliveries stay at-most-once.
type PendingItem struct {
	ID        string         `json:"id"`
	Kind      PendingKind    `json:"kind"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ConnectionRecord tracks one respondent session (one per page lifetime).
type ConnectionRecord struct {
	SessionID    string    `json:"sessionId"`
	Timestamp    time.Time `json:"timestamp"`
	LastActivity time.Time `json:"lastActivity"`
	UserAgent    string    `json:"userAgent"`
	HasSubmitted bool      `json:"hasSubmitted"`
}

// Response is one submitted satisfaction form. Field names mirror the
// French survey questions on the wire. A response is created once at
// successful submission and never mutated afterwards.
type Response struct {
	ID      string `json:"id"`
	Session string `json:"session"`

	LieuGlobal      string `json:"lieuGlobal"`
	LieuAdapte      string `json:"lieuAdapte"`
	LieuRealite     string `json:"lieuRealite"`
	CommentaireLieu string `json:"commentaireLieu,omitempty"`

	Scenarios           string `json:"scenarios"`
	MisesEnSituation    string `json:"misesEnSituation,omitempty"`
	Difficulte          string `json:"difficulte"`
	EvolutionDifficulte string `json:"evolutionDifficulte"`

	Rythme   string `json:"rythme"`
	Duree    string `json:"duree"`
	Attentes string `json:"attentes"`

	Pedagogie               string `json:"pedagogie"`
	QualiteReponses         string `json:"qualiteReponses"`
	DisponibiliteFormateurs string `json:"disponibiliteFormateurs"`

	SatisfactionFormation string `json:"satisfactionFormation"`
	CommentaireLibre      string `json:"commentaireLibre,omitempty"`

	SessionID  string    `json:"sessionId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
}

// Admin is a dashboard administrator account.
type Admin struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

// Stats is the realtime dashboard snapshot.
type Stats struct {
	TotalResponses    int       `json:"totalResponses"`
	ResponsesToday    int       `json:"responsesToday"`
	ResponsesThisWeek int       `json:"responsesThisWeek"`
	SatisfactionRate  float64   `json:"satisfactionRate"`
	LastResponse      *Response `json:"lastResponse,omitempty"`
}
