package services

import (
	"errors"

	"github.com/clubtable/tournament-engine/models"
	"github.com/clubtable/tournament-engine/repositories"
)

// validTransitions is the tournament status machine. Completed and
// cancelled are terminal.
var validTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.StatusUpcoming:  {models.StatusRunning, models.StatusCancelled, models.StatusPostponed},
	models.StatusPostponed: {models.StatusUpcoming, models.StatusCancelled},
	models.StatusRunning:   {models.StatusCompleted, models.StatusCancelled},
}

func canTransition(from, to models.TournamentStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// mapTournamentRepoError translates repository sentinels into the
// service-level taxonomy the HTTP layer maps to status codes.
func mapTournamentRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentCapacityReached):
		return ErrTournamentFull
	case errors.Is(err, repositories.ErrTournamentConcurrentUpdate):
		return ErrStorageConflict
	}
	return err
}
