package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/clubtable/tournament-engine/models"
	"github.com/clubtable/tournament-engine/repositories"
)

// memoryStore backs the in-memory repository fakes. All fakes created
// from one store share state, and the fake transaction runner restores
// a snapshot on error, which mirrors the rollback the Postgres
// repositories get for free.
type memoryStore struct {
	tournaments map[int]*models.Tournament
	players     []*models.TournamentPlayer
	rounds      map[int]*models.TournamentRound
	assignments []*models.TournamentRoundPlayer
	roundTables []*models.RoundTable
	tables      []models.Table
	nextID      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tournaments: make(map[int]*models.Tournament),
		rounds:      make(map[int]*models.TournamentRound),
		nextID:      1,
	}
}

func (s *memoryStore) newID() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memoryStore) snapshot() *memoryStore {
	snap := &memoryStore{
		tournaments: make(map[int]*models.Tournament, len(s.tournaments)),
		rounds:      make(map[int]*models.TournamentRound, len(s.rounds)),
		players:     make([]*models.TournamentPlayer, 0, len(s.players)),
		assignments: make([]*models.TournamentRoundPlayer, 0, len(s.assignments)),
		roundTables: make([]*models.RoundTable, 0, len(s.roundTables)),
		tables:      append([]models.Table(nil), s.tables...),
		nextID:      s.nextID,
	}
	for id, t := range s.tournaments {
		c := *t
		snap.tournaments[id] = &c
	}
	for id, r := range s.rounds {
		c := *r
		snap.rounds[id] = &c
	}
	for _, p := range s.players {
		c := *p
		snap.players = append(snap.players, &c)
	}
	for _, a := range s.assignments {
		c := *a
		snap.assignments = append(snap.assignments, &c)
	}
	for _, rt := range s.roundTables {
		c := *rt
		snap.roundTables = append(snap.roundTables, &c)
	}
	return snap
}

func (s *memoryStore) restore(snap *memoryStore) {
	s.tournaments = snap.tournaments
	s.rounds = snap.rounds
	s.players = snap.players
	s.assignments = snap.assignments
	s.roundTables = snap.roundTables
	s.tables = snap.tables
	s.nextID = snap.nextID
}

type fakeTxRunner struct {
	store *memoryStore

	// beforeTx runs once at the start of the next transaction, standing
	// in for a concurrent writer that commits just before this
	// transaction takes its locks.
	beforeTx func()

	// conflicts makes the next n transactions fail with a storage
	// conflict before running, the way a lost concurrent update does.
	conflicts int
}

func (r *fakeTxRunner) RunInTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	if hook := r.beforeTx; hook != nil {
		r.beforeTx = nil
		hook()
	}
	if r.conflicts > 0 {
		r.conflicts--
		return ErrStorageConflict
	}
	snap := r.store.snapshot()
	if err := fn(nil); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

type fakeTournamentRepo struct {
	store *memoryStore
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	for _, existing := range r.store.tournaments {
		if existing.PublicID == t.PublicID {
			return repositories.ErrTournamentConflict
		}
	}
	t.ID = r.store.newID()
	t.CreatedAt = time.Now()
	c := *t
	r.store.tournaments[t.ID] = &c
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (r *fakeTournamentRepo) GetByPublicID(_ context.Context, publicID string) (*models.Tournament, error) {
	for _, t := range r.store.tournaments {
		if t.PublicID == publicID {
			c := *t
			return &c, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0, len(r.store.tournaments))
	for _, t := range r.store.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeTournamentRepo) IncrementPlayerCount(_ context.Context, _ repositories.SQLExecutor, id int) (int, error) {
	t, ok := r.store.tournaments[id]
	if !ok || t.PlayerCount >= t.PlayerLimit {
		return 0, repositories.ErrTournamentCapacityReached
	}
	t.PlayerCount++
	return t.PlayerCount, nil
}

func (r *fakeTournamentRepo) AdvanceCurrentRound(_ context.Context, _ repositories.SQLExecutor, id, roundNumber int, startedAt time.Time) error {
	t, ok := r.store.tournaments[id]
	if !ok || t.CurrentRound != roundNumber-1 ||
		(t.Status != models.StatusUpcoming && t.Status != models.StatusRunning) {
		return repositories.ErrTournamentConcurrentUpdate
	}
	t.CurrentRound = roundNumber
	t.Status = models.StatusRunning
	if t.StartedAt == nil {
		started := startedAt
		t.StartedAt = &started
	}
	return nil
}

func (r *fakeTournamentRepo) Complete(_ context.Context, _ repositories.SQLExecutor, id, finalRound, championCustomerID int, completedAt time.Time) error {
	t, ok := r.store.tournaments[id]
	if !ok || t.CurrentRound != finalRound || t.Status != models.StatusRunning || t.ChampionCustomerID != nil {
		return repositories.ErrTournamentConcurrentUpdate
	}
	champion := championCustomerID
	completed := completedAt
	t.Status = models.StatusCompleted
	t.ChampionCustomerID = &champion
	t.CompletedAt = &completed
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateBannerKey(_ context.Context, id int, bannerKey *string) error {
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BannerKey = bannerKey
	return nil
}

type fakePlayerRepo struct {
	store *memoryStore
}

func (r *fakePlayerRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.TournamentPlayer) error {
	for _, existing := range r.store.players {
		if existing.TournamentID == p.TournamentID && existing.CustomerID == p.CustomerID {
			return repositories.ErrPlayerAlreadyRegistered
		}
	}
	p.ID = r.store.newID()
	p.RegisteredAt = time.Now()
	c := *p
	r.store.players = append(r.store.players, &c)
	return nil
}

func (r *fakePlayerRepo) UpdatePaymentRef(_ context.Context, _ repositories.SQLExecutor, id int, paymentRef string) error {
	for _, p := range r.store.players {
		if p.ID == id {
			ref := paymentRef
			p.PaymentRef = &ref
			return nil
		}
	}
	return repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) FindByTournamentAndCustomer(_ context.Context, tournamentID, customerID int) (*models.TournamentPlayer, error) {
	for _, p := range r.store.players {
		if p.TournamentID == tournamentID && p.CustomerID == customerID {
			c := *p
			return &c, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error) {
	out := make([]*models.TournamentPlayer, 0)
	for _, p := range r.store.players {
		if p.TournamentID == tournamentID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePlayerRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	kept := r.store.players[:0]
	for _, p := range r.store.players {
		if p.TournamentID != tournamentID {
			kept = append(kept, p)
		}
	}
	r.store.players = kept
	return nil
}

type fakeRoundRepo struct {
	store *memoryStore
}

func (r *fakeRoundRepo) Create(_ context.Context, _ repositories.SQLExecutor, round *models.TournamentRound) error {
	for _, existing := range r.store.rounds {
		if existing.TournamentID == round.TournamentID && existing.RoundNumber == round.RoundNumber {
			return repositories.ErrRoundConflict
		}
	}
	round.ID = r.store.newID()
	round.CreatedAt = time.Now()
	c := *round
	r.store.rounds[round.ID] = &c
	return nil
}

func (r *fakeRoundRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.TournamentRound, error) {
	round, ok := r.store.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	c := *round
	return &c, nil
}

func (r *fakeRoundRepo) GetByTournamentAndNumber(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) (*models.TournamentRound, error) {
	for _, round := range r.store.rounds {
		if round.TournamentID == tournamentID && round.RoundNumber == roundNumber {
			c := *round
			return &c, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r *fakeRoundRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.TournamentRound, error) {
	out := make([]models.TournamentRound, 0)
	for _, round := range r.store.rounds {
		if round.TournamentID == tournamentID {
			out = append(out, *round)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *fakeRoundRepo) IncrementCompletedMatches(_ context.Context, _ repositories.SQLExecutor, roundID int) (*models.TournamentRound, error) {
	round, ok := r.store.rounds[roundID]
	if !ok || round.CompletedMatches >= round.MatchesCount {
		return nil, repositories.ErrRoundAlreadyCompleted
	}
	round.CompletedMatches++
	round.IsCompleted = round.CompletedMatches >= round.MatchesCount
	c := *round
	return &c, nil
}

func (r *fakeRoundRepo) CreateRoundTables(_ context.Context, _ repositories.SQLExecutor, roundTables []*models.RoundTable) error {
	for _, rt := range roundTables {
		for _, existing := range r.store.roundTables {
			if existing.RoundID != rt.RoundID {
				continue
			}
			if existing.GroupNumber == rt.GroupNumber {
				return repositories.ErrRoundTableConflict
			}
			if existing.TableID != nil && rt.TableID != nil && *existing.TableID == *rt.TableID {
				return repositories.ErrRoundTableConflict
			}
		}
		rt.ID = r.store.newID()
		c := *rt
		r.store.roundTables = append(r.store.roundTables, &c)
	}
	return nil
}

type fakeRoundPlayerRepo struct {
	store *memoryStore
}

func (r *fakeRoundPlayerRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, assignments []*models.TournamentRoundPlayer) error {
	for _, a := range assignments {
		for _, existing := range r.store.assignments {
			if existing.RoundID == a.RoundID && existing.CustomerID == a.CustomerID {
				return fmt.Errorf("%w: customer %d", repositories.ErrAssignmentConflict, a.CustomerID)
			}
		}
		a.ID = r.store.newID()
		a.CreatedAt = time.Now()
		c := *a
		r.store.assignments = append(r.store.assignments, &c)
	}
	return nil
}

func (r *fakeRoundPlayerRepo) ListByRound(_ context.Context, roundID int) ([]*models.TournamentRoundPlayer, error) {
	out := make([]*models.TournamentRoundPlayer, 0)
	for _, a := range r.store.assignments {
		if a.RoundID == roundID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupNumber != out[j].GroupNumber {
			return out[i].GroupNumber < out[j].GroupNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeRoundPlayerRepo) ListGroupForUpdate(_ context.Context, _ repositories.SQLExecutor, roundID, groupNumber int) ([]*models.TournamentRoundPlayer, error) {
	out := make([]*models.TournamentRoundPlayer, 0)
	for _, a := range r.store.assignments {
		if a.RoundID == roundID && a.GroupNumber == groupNumber {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRoundPlayerRepo) MarkWinner(_ context.Context, _ repositories.SQLExecutor, assignmentID int) error {
	for _, a := range r.store.assignments {
		if a.ID == assignmentID && !a.IsWinner {
			a.IsWinner = true
			return nil
		}
	}
	return repositories.ErrAssignmentNotFound
}

func (r *fakeRoundPlayerRepo) ListWinners(_ context.Context, _ repositories.SQLExecutor, roundID int) ([]int, error) {
	type row struct{ group, customer int }
	rows := make([]row, 0)
	for _, a := range r.store.assignments {
		if a.RoundID == roundID && a.IsWinner {
			rows = append(rows, row{a.GroupNumber, a.CustomerID})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].group < rows[j].group })
	winners := make([]int, 0, len(rows))
	for _, r := range rows {
		winners = append(winners, r.customer)
	}
	return winners, nil
}

type fakeTableRepo struct {
	store *memoryStore
}

func (r *fakeTableRepo) ListActive(_ context.Context) ([]models.Table, error) {
	out := make([]models.Table, 0)
	for _, t := range r.store.tables {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeTableRepo) GetByID(_ context.Context, id int) (*models.Table, error) {
	for _, t := range r.store.tables {
		if t.ID == id {
			c := t
			return &c, nil
		}
	}
	return nil, repositories.ErrTableNotFound
}

// fakeBillingGate approves every charge unless told otherwise.
type fakeBillingGate struct {
	decline bool
	fail    bool
	calls   int
}

func (g *fakeBillingGate) Charge(_ context.Context, customerID int, _ int64, _ string) (*ChargeResult, error) {
	g.calls++
	if g.fail {
		return nil, fmt.Errorf("billing backend unreachable")
	}
	if g.decline {
		return &ChargeResult{Authorized: false}, nil
	}
	return &ChargeResult{Authorized: true, Reference: fmt.Sprintf("ch_%d_%d", customerID, g.calls)}, nil
}

type recordedEvent struct {
	name         string
	tournamentID int
	payload      interface{}
}

type recordingSink struct {
	events []recordedEvent
}

func (s *recordingSink) Emit(_ context.Context, event string, tournamentID int, payload interface{}) {
	s.events = append(s.events, recordedEvent{name: event, tournamentID: tournamentID, payload: payload})
}

func (s *recordingSink) names() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.name)
	}
	return out
}
