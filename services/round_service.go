package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubtable/tournament-engine/grouping"
	"github.com/clubtable/tournament-engine/models"
	"github.com/clubtable/tournament-engine/repositories"
)

// RoundService owns the state machine of a single round: creation with
// group and table assignment, winner recording, and closure detection.
type RoundService interface {
	// StartRound materializes round roundNumber inside the caller's
	// transaction. roundNumber must be exactly tournament.CurrentRound+1;
	// anything else is an out-of-sequence start and is rejected before
	// any write happens.
	StartRound(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, roundNumber int, playerIDs []int, tables []models.Table, randomize bool) (*models.TournamentRound, []grouping.Group, error)

	// RecordGroupWinner declares the winner of one group. Calling it
	// again with the same winner is a no-op; a different winner after
	// one is recorded fails with ErrWinnerAlreadyDeclared.
	RecordGroupWinner(ctx context.Context, tournamentID, roundNumber, groupNumber, winnerCustomerID int) (*models.TournamentRound, error)

	IsReadyToAdvance(ctx context.Context, tournamentID, roundNumber int) (bool, error)

	// Winners returns the advancing customer ids of a closed round,
	// ordered by group number. Fails with ErrRoundNotClosed before the
	// last group's result is in.
	Winners(ctx context.Context, tournamentID, roundNumber int) ([]int, error)

	GetRound(ctx context.Context, tournamentID, roundNumber int) (*models.TournamentRound, []*models.TournamentRoundPlayer, error)
}

type roundService struct {
	txRunner        repositories.TxRunner
	roundRepo       repositories.RoundRepository
	roundPlayerRepo repositories.RoundPlayerRepository
	events          EventSink
}

func NewRoundService(
	txRunner repositories.TxRunner,
	roundRepo repositories.RoundRepository,
	roundPlayerRepo repositories.RoundPlayerRepository,
	events EventSink,
) RoundService {
	if events == nil {
		events = NopEventSink{}
	}
	return &roundService{
		txRunner:        txRunner,
		roundRepo:       roundRepo,
		roundPlayerRepo: roundPlayerRepo,
		events:          events,
	}
}

func (s *roundService) StartRound(
	ctx context.Context,
	exec repositories.SQLExecutor,
	tournament *models.Tournament,
	roundNumber int,
	playerIDs []int,
	tables []models.Table,
	randomize bool,
) (*models.TournamentRound, []grouping.Group, error) {
	if roundNumber != tournament.CurrentRound+1 {
		return nil, nil, fmt.Errorf("%w: expected round %d, got %d",
			ErrRoundOutOfSequence, tournament.CurrentRound+1, roundNumber)
	}

	groups, err := grouping.Build(grouping.Params{
		PlayerIDs: playerIDs,
		GroupSize: tournament.GroupSize,
		Randomize: randomize,
		Tables:    tables,
	})
	if err != nil {
		if errors.Is(err, grouping.ErrNotEnoughTables) {
			return nil, nil, fmt.Errorf("%w: %v", ErrTableCapacity, err)
		}
		return nil, nil, fmt.Errorf("failed to build groups for round %d: %w", roundNumber, err)
	}

	// A bye group's sole member advances without playing, so its match
	// counts as completed from the moment the round starts.
	byeCount := 0
	for _, g := range groups {
		if g.IsBye {
			byeCount++
		}
	}

	round := &models.TournamentRound{
		TournamentID:     tournament.ID,
		RoundNumber:      roundNumber,
		PlayersCount:     len(playerIDs),
		GroupsCount:      len(groups),
		MatchesCount:     len(groups),
		CompletedMatches: byeCount,
		IsCompleted:      byeCount == len(groups),
	}
	if err := s.roundRepo.Create(ctx, exec, round); err != nil {
		if errors.Is(err, repositories.ErrRoundConflict) {
			// Another transaction started this round first.
			return nil, nil, fmt.Errorf("%w: round %d already exists", ErrStorageConflict, roundNumber)
		}
		return nil, nil, err
	}

	roundTables := make([]*models.RoundTable, 0, len(groups))
	assignments := make([]*models.TournamentRoundPlayer, 0, len(playerIDs))
	for _, g := range groups {
		roundTables = append(roundTables, &models.RoundTable{
			RoundID:     round.ID,
			GroupNumber: g.GroupNumber,
			TableID:     g.TableID,
		})
		for _, customerID := range g.PlayerIDs {
			assignments = append(assignments, &models.TournamentRoundPlayer{
				RoundID:     round.ID,
				CustomerID:  customerID,
				GroupNumber: g.GroupNumber,
				TableID:     g.TableID,
				IsWinner:    g.IsBye,
			})
		}
	}

	if err := s.roundRepo.CreateRoundTables(ctx, exec, roundTables); err != nil {
		return nil, nil, err
	}
	// An assignment conflict here means the same player ended up in two
	// groups, which is a data error, not a transient condition. Surface
	// it as-is and let the transaction roll back.
	if err := s.roundPlayerRepo.CreateBatch(ctx, exec, assignments); err != nil {
		return nil, nil, err
	}

	return round, groups, nil
}

func (s *roundService) RecordGroupWinner(ctx context.Context, tournamentID, roundNumber, groupNumber, winnerCustomerID int) (*models.TournamentRound, error) {
	var result *models.TournamentRound

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		round, err := s.roundRepo.GetByTournamentAndNumber(ctx, exec, tournamentID, roundNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundNotFound) {
				return ErrRoundNotFound
			}
			return err
		}

		group, err := s.roundPlayerRepo.ListGroupForUpdate(ctx, exec, round.ID, groupNumber)
		if err != nil {
			return err
		}
		if len(group) == 0 {
			return fmt.Errorf("%w: group %d of round %d", ErrGroupNotFound, groupNumber, roundNumber)
		}

		var winnerRow *models.TournamentRoundPlayer
		for _, a := range group {
			if a.IsWinner {
				if a.CustomerID == winnerCustomerID {
					// Same winner recorded twice: no-op.
					result = round
					return nil
				}
				return fmt.Errorf("%w: customer %d already won group %d",
					ErrWinnerAlreadyDeclared, a.CustomerID, groupNumber)
			}
			if a.CustomerID == winnerCustomerID {
				winnerRow = a
			}
		}
		if winnerRow == nil {
			return fmt.Errorf("%w: customer %d, group %d", ErrPlayerNotInGroup, winnerCustomerID, groupNumber)
		}

		if err := s.roundPlayerRepo.MarkWinner(ctx, exec, winnerRow.ID); err != nil {
			return err
		}

		updated, err := s.roundRepo.IncrementCompletedMatches(ctx, exec, round.ID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, models.EventMatchResult, tournamentID, models.MatchResultPayload{
		TournamentID:     tournamentID,
		RoundNumber:      roundNumber,
		GroupNumber:      groupNumber,
		WinnerCustomerID: winnerCustomerID,
		CompletedMatches: result.CompletedMatches,
		MatchesCount:     result.MatchesCount,
	})

	return result, nil
}

func (s *roundService) IsReadyToAdvance(ctx context.Context, tournamentID, roundNumber int) (bool, error) {
	round, err := s.roundRepo.GetByTournamentAndNumber(ctx, nil, tournamentID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return false, ErrRoundNotFound
		}
		return false, err
	}
	return round.IsCompleted, nil
}

func (s *roundService) Winners(ctx context.Context, tournamentID, roundNumber int) ([]int, error) {
	round, err := s.roundRepo.GetByTournamentAndNumber(ctx, nil, tournamentID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	if !round.IsCompleted {
		return nil, fmt.Errorf("%w: round %d has %d of %d matches completed",
			ErrRoundNotClosed, roundNumber, round.CompletedMatches, round.MatchesCount)
	}
	return s.roundPlayerRepo.ListWinners(ctx, nil, round.ID)
}

func (s *roundService) GetRound(ctx context.Context, tournamentID, roundNumber int) (*models.TournamentRound, []*models.TournamentRoundPlayer, error) {
	round, err := s.roundRepo.GetByTournamentAndNumber(ctx, nil, tournamentID, roundNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, nil, ErrRoundNotFound
		}
		return nil, nil, err
	}
	assignments, err := s.roundPlayerRepo.ListByRound(ctx, round.ID)
	if err != nil {
		return nil, nil, err
	}
	return round, assignments, nil
}
