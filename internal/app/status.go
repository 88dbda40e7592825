package app

import (
	"time"

	"quiz-tournament-client/internal/domain"
)

// ResolveStatus derives a tournament's status from the clock. Both boundaries
// count as ongoing. It must be evaluated on every render or poll; callers never
// cache its result because now keeps moving.
func ResolveStatus(now, startDate, endDate time.Time) domain.TournamentStatus {
	switch {
	case now.Before(startDate):
		return domain.StatusUpcoming
	case now.After(endDate):
		return domain.StatusCompleted
	default:
		return domain.StatusOngoing
	}
}

// StatusOf resolves the status of t at now.
func StatusOf(t domain.Tournament, now time.Time) domain.TournamentStatus {
	return ResolveStatus(now, t.StartDate, t.EndDate)
}
