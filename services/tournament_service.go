package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/clubtable/tournament-engine/grouping"
	"github.com/clubtable/tournament-engine/models"
	"github.com/clubtable/tournament-engine/repositories"
	"github.com/clubtable/tournament-engine/storage"
)

var ErrBannerStorageDisabled = errors.New("banner storage is not configured")

type CreateTournamentParams struct {
	Name        string
	ScheduledAt time.Time
	PlayerLimit int
	GroupSize   int
	EntryFee    int64
	Currency    string
}

// AdvanceResult describes the outcome of one advance call: either the
// next round was started, or a single winner remained and the
// tournament is completed with that champion.
type AdvanceResult struct {
	Status             models.TournamentStatus
	NextRound          *models.TournamentRound
	Groups             []grouping.Group
	ChampionCustomerID *int
}

// TournamentService owns the tournament lifecycle: registration,
// starting, advancing winners through rounds, and administrative
// status changes.
type TournamentService interface {
	Create(ctx context.Context, params CreateTournamentParams) (*models.Tournament, error)
	Get(ctx context.Context, tournamentID int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)

	// Register creates the registration and charges the entry fee in
	// one transaction: a declined or failed charge leaves no
	// registration row behind.
	Register(ctx context.Context, tournamentID, customerID int) (*models.TournamentPlayer, error)

	// Start opens round 1 with the full registered roster. Requires an
	// upcoming tournament with at least 2 players.
	Start(ctx context.Context, tournamentID int, randomize bool) (*models.TournamentRound, []grouping.Group, error)

	// Advance carries the current closed round's winners into the next
	// round, or completes the tournament when one winner remains. A
	// storage conflict from a concurrent advance is retried once.
	Advance(ctx context.Context, tournamentID int) (*AdvanceResult, error)

	Cancel(ctx context.Context, tournamentID int) (*models.Tournament, error)
	Postpone(ctx context.Context, tournamentID int) (*models.Tournament, error)
	Resume(ctx context.Context, tournamentID int) (*models.Tournament, error)

	UploadBanner(ctx context.Context, tournamentID int, contentType string, file io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.PlayerRepository
	roundRepo      repositories.RoundRepository
	tableRepo      repositories.TableRepository
	roundService   RoundService
	billing        BillingGate
	uploader       storage.FileUploader
	events         EventSink
	logger         *slog.Logger
}

func NewTournamentService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.PlayerRepository,
	roundRepo repositories.RoundRepository,
	tableRepo repositories.TableRepository,
	roundService RoundService,
	billing BillingGate,
	uploader storage.FileUploader,
	events EventSink,
	logger *slog.Logger,
) TournamentService {
	if events == nil {
		events = NopEventSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		roundRepo:      roundRepo,
		tableRepo:      tableRepo,
		roundService:   roundService,
		billing:        billing,
		uploader:       uploader,
		events:         events,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, params CreateTournamentParams) (*models.Tournament, error) {
	if params.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if params.PlayerLimit < 2 {
		return nil, ErrTournamentInvalidCapacity
	}
	if params.GroupSize < 2 {
		return nil, ErrTournamentInvalidGroupSize
	}
	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}

	t := &models.Tournament{
		PublicID:    xid.New().String(),
		Name:        params.Name,
		ScheduledAt: params.ScheduledAt,
		PlayerLimit: params.PlayerLimit,
		GroupSize:   params.GroupSize,
		TotalRounds: models.EstimateTotalRounds(params.PlayerLimit, params.GroupSize),
		Status:      models.StatusUpcoming,
		EntryFee:    params.EntryFee,
		Currency:    currency,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return t, nil
}

func (s *tournamentService) Get(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		players, err := s.playerRepo.ListByTournament(gCtx, nil, t.ID)
		if err != nil {
			return err
		}
		t.Players = make([]models.TournamentPlayer, 0, len(players))
		for _, p := range players {
			t.Players = append(t.Players, *p)
		}
		return nil
	})
	g.Go(func() error {
		rounds, err := s.roundRepo.ListByTournament(gCtx, t.ID)
		if err != nil {
			return err
		}
		t.Rounds = rounds
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.resolveBannerURL(t)
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.resolveBannerURL(&tournaments[i])
	}
	return tournaments, nil
}

func (s *tournamentService) Register(ctx context.Context, tournamentID, customerID int) (*models.TournamentPlayer, error) {
	var (
		player      *models.TournamentPlayer
		playerCount int
		playerLimit int
	)

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status != models.StatusUpcoming {
			return fmt.Errorf("%w: tournament is %s", ErrRegistrationClosed, t.Status)
		}
		if t.PlayerCount >= t.PlayerLimit {
			return ErrTournamentFull
		}

		p := &models.TournamentPlayer{TournamentID: t.ID, CustomerID: customerID}
		if err := s.playerRepo.Create(ctx, exec, p); err != nil {
			if errors.Is(err, repositories.ErrPlayerAlreadyRegistered) {
				return ErrAlreadyRegistered
			}
			return err
		}

		count, err := s.tournamentRepo.IncrementPlayerCount(ctx, exec, t.ID)
		if err != nil {
			return mapTournamentRepoError(err)
		}

		// The charge happens inside the transaction window so a decline
		// or billing outage rolls the registration back atomically.
		if t.EntryFee > 0 {
			charge, chargeErr := s.billing.Charge(ctx, customerID, t.EntryFee, t.Currency)
			if chargeErr != nil {
				return fmt.Errorf("%w: %v", ErrBillingUnavailable, chargeErr)
			}
			if !charge.Authorized {
				return ErrBillingDeclined
			}
			if charge.Reference != "" {
				if err := s.playerRepo.UpdatePaymentRef(ctx, exec, p.ID, charge.Reference); err != nil {
					return err
				}
				ref := charge.Reference
				p.PaymentRef = &ref
			}
		}

		player = p
		playerCount = count
		playerLimit = t.PlayerLimit
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, models.EventPlayerRegistered, tournamentID, models.PlayerRegisteredPayload{
		TournamentID: tournamentID,
		CustomerID:   customerID,
		PlayerCount:  playerCount,
		PlayerLimit:  playerLimit,
	})
	return player, nil
}

func (s *tournamentService) Start(ctx context.Context, tournamentID int, randomize bool) (*models.TournamentRound, []grouping.Group, error) {
	tables, err := s.tableRepo.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		round  *models.TournamentRound
		groups []grouping.Group
	)
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status != models.StatusUpcoming {
			return fmt.Errorf("%w: cannot start a %s tournament", ErrInvalidStatusTransition, t.Status)
		}

		// The roster is read under the tournament row lock. Registration
		// holds the same lock, so a registration committing during
		// startup is either seated in round 1 or rejected once the
		// status flips to running; it can never be charged and skipped.
		players, err := s.playerRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if len(players) < 2 {
			return ErrNotEnoughPlayers
		}
		playerIDs := make([]int, 0, len(players))
		for _, p := range players {
			playerIDs = append(playerIDs, p.CustomerID)
		}

		round, groups, err = s.roundService.StartRound(ctx, exec, t, 1, playerIDs, tables, randomize)
		if err != nil {
			return err
		}
		return mapTournamentRepoError(
			s.tournamentRepo.AdvanceCurrentRound(ctx, exec, t.ID, 1, time.Now().UTC()))
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("tournament started",
		slog.Int("tournament_id", tournamentID),
		slog.Int("players", round.PlayersCount),
		slog.Int("groups", round.GroupsCount))
	s.emitRoundStarted(ctx, tournamentID, round, groups)
	return round, groups, nil
}

func (s *tournamentService) Advance(ctx context.Context, tournamentID int) (*AdvanceResult, error) {
	result, err := s.advanceOnce(ctx, tournamentID)
	if errors.Is(err, ErrStorageConflict) {
		// A concurrent advance was caught by the storage layer. Re-read
		// state and retry once; a second conflict is surfaced.
		s.logger.Warn("advance conflict, retrying once", slog.Int("tournament_id", tournamentID))
		return s.advanceOnce(ctx, tournamentID)
	}
	return result, err
}

func (s *tournamentService) advanceOnce(ctx context.Context, tournamentID int) (*AdvanceResult, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.Status != models.StatusRunning || t.CurrentRound == 0 {
		return nil, fmt.Errorf("%w: cannot advance a %s tournament", ErrInvalidStatusTransition, t.Status)
	}

	winners, err := s.roundService.Winners(ctx, t.ID, t.CurrentRound)
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return nil, fmt.Errorf("round %d of tournament %d closed with no winners", t.CurrentRound, t.ID)
	}

	if len(winners) == 1 {
		champion := winners[0]
		now := time.Now().UTC()
		err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
			return mapTournamentRepoError(
				s.tournamentRepo.Complete(ctx, exec, t.ID, t.CurrentRound, champion, now))
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("tournament completed",
			slog.Int("tournament_id", t.ID),
			slog.Int("champion_customer_id", champion),
			slog.Int("rounds_played", t.CurrentRound))
		s.events.Emit(ctx, models.EventTournamentCompleted, t.ID, models.TournamentCompletedPayload{
			TournamentID:       t.ID,
			ChampionCustomerID: champion,
			RoundsPlayed:       t.CurrentRound,
		})
		return &AdvanceResult{Status: models.StatusCompleted, ChampionCustomerID: &champion}, nil
	}

	tables, err := s.tableRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	nextNumber := t.CurrentRound + 1
	var (
		round  *models.TournamentRound
		groups []grouping.Group
	)
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, t.ID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if locked.Status != models.StatusRunning || locked.CurrentRound != t.CurrentRound {
			return fmt.Errorf("%w: tournament moved to round %d meanwhile", ErrStorageConflict, locked.CurrentRound)
		}

		// Winners advance in group order; no reshuffle between rounds,
		// so a re-run of the same bracket is reproducible.
		round, groups, err = s.roundService.StartRound(ctx, exec, locked, nextNumber, winners, tables, false)
		if err != nil {
			return err
		}
		return mapTournamentRepoError(
			s.tournamentRepo.AdvanceCurrentRound(ctx, exec, t.ID, nextNumber, time.Now().UTC()))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round started",
		slog.Int("tournament_id", t.ID),
		slog.Int("round_number", nextNumber),
		slog.Int("players", round.PlayersCount))
	s.emitRoundStarted(ctx, t.ID, round, groups)
	return &AdvanceResult{Status: models.StatusRunning, NextRound: round, Groups: groups}, nil
}

func (s *tournamentService) Cancel(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	t, err := s.changeStatus(ctx, tournamentID, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, models.EventTournamentCancelled, t.ID, models.TournamentCancelledPayload{TournamentID: t.ID})
	return t, nil
}

func (s *tournamentService) Postpone(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.changeStatus(ctx, tournamentID, models.StatusPostponed)
}

func (s *tournamentService) Resume(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.changeStatus(ctx, tournamentID, models.StatusUpcoming)
}

// changeStatus applies an administrative transition. Historical round
// and assignment data is never touched: cancellation only flips the
// status.
func (s *tournamentService) changeStatus(ctx context.Context, tournamentID int, to models.TournamentStatus) (*models.Tournament, error) {
	var result *models.Tournament
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if !canTransition(t.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, t.Status, to)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, to); err != nil {
			return mapTournamentRepoError(err)
		}
		t.Status = to
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *tournamentService) UploadBanner(ctx context.Context, tournamentID int, contentType string, file io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrBannerStorageDisabled
	}
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	key := fmt.Sprintf("tournaments/%d/banner_%d", t.ID, time.Now().UTC().Unix())
	uploaded, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload banner for tournament %d: %w", t.ID, err)
	}

	oldKey := t.BannerKey
	if err := s.tournamentRepo.UpdateBannerKey(ctx, t.ID, &uploaded.Key); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if oldKey != nil && *oldKey != uploaded.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous banner",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	t.BannerKey = &uploaded.Key
	s.resolveBannerURL(t)
	return t, nil
}

func (s *tournamentService) resolveBannerURL(t *models.Tournament) {
	if s.uploader == nil || t.BannerKey == nil {
		return
	}
	url := s.uploader.GetPublicURL(*t.BannerKey)
	if url != "" {
		t.BannerURL = &url
	}
}

func (s *tournamentService) emitRoundStarted(ctx context.Context, tournamentID int, round *models.TournamentRound, groups []grouping.Group) {
	payload := models.RoundStartedPayload{
		TournamentID: tournamentID,
		RoundNumber:  round.RoundNumber,
		Groups:       make([]models.GroupPayload, 0, len(groups)),
	}
	for _, g := range groups {
		payload.Groups = append(payload.Groups, models.GroupPayload{
			GroupNumber: g.GroupNumber,
			TableID:     g.TableID,
			PlayerIDs:   g.PlayerIDs,
			IsBye:       g.IsBye,
		})
	}
	s.events.Emit(ctx, models.EventRoundStarted, tournamentID, payload)
}
