package services

import (
	"time"

	"github.com/gpis-formation/satisform/internal/models"
)

// StatsStore exposes the response archive to the stats computation.
type StatsStore interface {
	ListResponses() []*models.Response
}

// StatsService computes the realtime dashboard snapshot.
type StatsService struct {
	store StatsStore
	now   func() time.Time
}

func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Realtime aggregates totals, today/this-week counts and the satisfaction
// rate (share of "Oui" on the overall-satisfaction question).
func (s *StatsService) Realtime() *models.Stats {
	responses := s.store.ListResponses()

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// Week starts on Sunday, matching the original dashboard.
	startOfWeek := startOfDay.AddDate(0, 0, -int(startOfDay.Weekday()))

	st := &models.Stats{TotalResponses: len(responses)}
	satisfied := 0
	for _, r := range responses {
		if !r.CreatedAt.Before(startOfDay) {
			st.ResponsesToday++
		}
		if !r.CreatedAt.Before(startOfWeek) {
			st.ResponsesThisWeek++
		}
		if r.SatisfactionFormation == "Oui" {
			satisfied++
		}
	}
	if len(responses) > 0 {
		st.SatisfactionRate = float64(satisfied) / float64(len(responses)) * 100
		st.LastResponse = responses[len(responses)-1]
	}
	return st
}
