package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clubtable/tournament-engine/grouping"
	"github.com/clubtable/tournament-engine/models"
	"github.com/clubtable/tournament-engine/repositories"
	"github.com/clubtable/tournament-engine/services"
)

const maxBannerSize = 5 << 20 // 5MB

type TournamentHandler struct {
	tournamentService services.TournamentService
	roundService      services.RoundService
}

func NewTournamentHandler(tournamentService services.TournamentService, roundService services.RoundService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: tournamentService,
		roundService:      roundService,
	}
}

func urlParamInt(r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

type groupResponse struct {
	GroupNumber int   `json:"group_number"`
	TableID     *int  `json:"table_id,omitempty"`
	PlayerIDs   []int `json:"player_ids"`
	IsBye       bool  `json:"is_bye,omitempty"`
}

func toGroupResponses(groups []grouping.Group) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse{
			GroupNumber: g.GroupNumber,
			TableID:     g.TableID,
			PlayerIDs:   g.PlayerIDs,
			IsBye:       g.IsBye,
		})
	}
	return out
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string    `json:"name"`
		ScheduledAt time.Time `json:"scheduled_at"`
		PlayerLimit int       `json:"player_limit"`
		GroupSize   int       `json:"group_size"`
		EntryFee    int64     `json:"entry_fee"`
		Currency    string    `json:"currency"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), services.CreateTournamentParams{
		Name:        input.Name,
		ScheduledAt: input.ScheduledAt,
		PlayerLimit: input.PlayerLimit,
		GroupSize:   input.GroupSize,
		EntryFee:    input.EntryFee,
		Currency:    input.Currency,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{Limit: 50}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := models.TournamentStatus(statusParam)
		filter.Status = &status
	}
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if limit, err := strconv.Atoi(limitParam); err == nil && limit > 0 && limit <= 200 {
			filter.Limit = limit
		}
	}
	if offsetParam := r.URL.Query().Get("offset"); offsetParam != "" {
		if offset, err := strconv.Atoi(offsetParam); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}

	tournament, err := h.tournamentService.Get(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}

	var input struct {
		CustomerID int `json:"customer_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.CustomerID <= 0 {
		errorResponse(w, http.StatusUnprocessableEntity, map[string]string{"customer_id": "must be a positive integer"})
		return
	}

	player, err := h.tournamentService.Register(r.Context(), tournamentID, input.CustomerID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusCreated, jsonResponse{
		"tournament_id": player.TournamentID,
		"customer_id":   player.CustomerID,
		"registered_at": player.RegisteredAt,
	}, nil)
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}

	randomize := true
	if param := r.URL.Query().Get("randomize"); param != "" {
		parsed, err := strconv.ParseBool(param)
		if err != nil {
			badRequestResponse(w, err)
			return
		}
		randomize = parsed
	}

	round, groups, err := h.tournamentService.Start(r.Context(), tournamentID, randomize)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusCreated, jsonResponse{
		"round_number": round.RoundNumber,
		"groups":       toGroupResponses(groups),
	}, nil)
}

func (h *TournamentHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}
	roundNumber, ok := urlParamInt(r, "roundNumber")
	if !ok {
		notFoundResponse(w)
		return
	}
	groupNumber, ok := urlParamInt(r, "groupNumber")
	if !ok {
		notFoundResponse(w)
		return
	}

	var input struct {
		WinnerCustomerID int `json:"winner_customer_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.WinnerCustomerID <= 0 {
		errorResponse(w, http.StatusUnprocessableEntity, map[string]string{"winner_customer_id": "must be a positive integer"})
		return
	}

	round, err := h.roundService.RecordGroupWinner(r.Context(), tournamentID, roundNumber, groupNumber, input.WinnerCustomerID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, jsonResponse{
		"round_number":      round.RoundNumber,
		"group_number":      groupNumber,
		"completed_matches": round.CompletedMatches,
		"matches_count":     round.MatchesCount,
	}, nil)
}

func (h *TournamentHandler) Advance(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}

	result, err := h.tournamentService.Advance(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	response := jsonResponse{"status": result.Status}
	if result.NextRound != nil {
		response["next_round"] = result.NextRound.RoundNumber
		response["groups"] = toGroupResponses(result.Groups)
	}
	if result.ChampionCustomerID != nil {
		response["champion_customer_id"] = *result.ChampionCustomerID
	}

	_ = writeJSON(w, http.StatusOK, response, nil)
}

func (h *TournamentHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}
	roundNumber, ok := urlParamInt(r, "roundNumber")
	if !ok {
		notFoundResponse(w)
		return
	}

	round, assignments, err := h.roundService.GetRound(r.Context(), tournamentID, roundNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, jsonResponse{
		"round":   round,
		"players": assignments,
	}, nil)
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tournamentService.Cancel)
}

func (h *TournamentHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tournamentService.Postpone)
}

func (h *TournamentHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tournamentService.Resume)
}

func (h *TournamentHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id int) (*models.Tournament, error),
) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}

	tournament, err := op(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, jsonResponse{"status": tournament.Status}, nil)
}

func (h *TournamentHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlParamInt(r, "tournamentID")
	if !ok {
		notFoundResponse(w)
		return
	}

	if err := r.ParseMultipartForm(maxBannerSize); err != nil {
		badRequestResponse(w, err)
		return
	}
	file, header, err := r.FormFile("banner")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	tournament, err := h.tournamentService.UploadBanner(r.Context(), tournamentID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
}
