// Package httpapi is the request/response surface of the table server.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"holdem-live/apps/server/internal/auth"
	"holdem-live/apps/server/internal/httpjson"
	"holdem-live/apps/server/internal/lobby"
	"holdem-live/apps/server/internal/persist"
	"holdem-live/apps/server/internal/reconnect"
	"holdem-live/apps/server/internal/table"
	"holdem-live/apps/server/internal/tokens"
	"holdem-live/holdem"
)

var errSessionRequired = errors.New("seat is bound to an account: a matching bearer session is required")

type Reconnector interface {
	Reconnect(ctx context.Context, gameID, playerID, token string) (reconnect.Result, error)
}

type Deps struct {
	Lobby     *lobby.Lobby
	Persist   *persist.Gateway
	Tokens    *tokens.Service
	Reconnect Reconnector
	// Games resolves live or restorable games for token issuance.
	Games tokens.StateSource
	// Accounts is optional; without it account-bound seats cannot get tokens.
	Accounts      auth.Service
	StartingChips int64
	Logger        *zap.Logger
}

type Handler struct {
	Deps
	log *zap.Logger
}

func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{Deps: deps, log: deps.Logger}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games", h.handleCreate)
	mux.HandleFunc("GET /api/games", h.handleList)
	mux.HandleFunc("GET /api/games/{gameId}", h.handleGet)
	mux.HandleFunc("POST /api/games/{gameId}/deal", h.handleDeal)
	mux.HandleFunc("POST /api/games/{gameId}/actions", h.handleAction)
	mux.HandleFunc("POST /api/games/{gameId}/next-hand", h.handleNextHand)
	mux.HandleFunc("POST /api/games/{gameId}/persist", h.handlePersist)
	mux.HandleFunc("POST /api/games/{gameId}/restore", h.handleRestore)
	mux.HandleFunc("DELETE /api/games/{gameId}/persisted", h.handleCleanup)
	mux.HandleFunc("POST /api/games/{gameId}/players/{playerId}/token", h.handleIssueToken)
	mux.HandleFunc("POST /api/games/{gameId}/reconnect", h.handleReconnect)
}

type createRequest struct {
	PlayerNames   []string `json:"playerNames"`
	UserIDs       []string `json:"userIds,omitempty"`
	StartingChips int64    `json:"startingChips,omitempty"`
}

type createResponse struct {
	GameID    string           `json:"gameId"`
	GameState holdem.GameState `json:"gameState"`
}

type actionRequest struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	Amount   *int64 `json:"amount,omitempty"`
}

type actionResponse struct {
	Success   bool              `json:"success"`
	GameState *holdem.GameState `json:"gameState,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type reconnectRequest struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type reconnectResponse struct {
	Success       bool             `json:"success"`
	GameState     holdem.GameState `json:"gameState"`
	ReconnectedAt time.Time        `json:"reconnectedAt"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	PlayerID  string    `json:"playerId"`
	GameID    string    `json:"gameId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type errorResponse = httpjson.ErrorResponse

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.UserIDs) > 0 && len(req.UserIDs) != len(req.PlayerNames) {
		httpjson.Error(w, http.StatusBadRequest, "userIds must match playerNames")
		return
	}
	chips := req.StartingChips
	if chips == 0 {
		chips = h.StartingChips
	}
	seats := make([]holdem.Seat, len(req.PlayerNames))
	for i, name := range req.PlayerNames {
		seats[i] = holdem.Seat{Name: name, Chips: chips}
		if len(req.UserIDs) > 0 {
			seats[i].UserID = strings.TrimSpace(req.UserIDs[i])
		}
	}

	t, err := h.Lobby.Create(seats)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, createResponse{GameID: t.ID, GameState: t.Snapshot().Public()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string][]string{"gameIds": h.Lobby.List()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	httpjson.Write(w, http.StatusOK, t.Snapshot().Public())
}

func (h *Handler) handleDeal(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	state, err := t.Deal()
	if err != nil {
		h.fail(w, "deal", err)
		return
	}
	httpjson.Write(w, http.StatusOK, state.Public())
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Write(w, http.StatusBadRequest, actionResponse{Error: "invalid request body"})
		return
	}
	t, err := h.Lobby.Get(r.PathValue("gameId"))
	if err != nil {
		httpjson.Write(w, statusFor(err), actionResponse{Error: err.Error()})
		return
	}
	action, err := holdem.ParseAction(req.Action, req.Amount)
	if err != nil {
		httpjson.Write(w, statusFor(err), actionResponse{Error: err.Error()})
		return
	}
	state, err := t.Act(req.PlayerID, action)
	if err != nil {
		h.log.Debug("[HTTP] action rejected",
			zap.String("game", t.ID), zap.String("player", req.PlayerID), zap.String("action", action.Kind()), zap.Error(err))
		httpjson.Write(w, statusFor(err), actionResponse{Error: err.Error()})
		return
	}
	public := state.Public()
	httpjson.Write(w, http.StatusOK, actionResponse{Success: true, GameState: &public})
}

func (h *Handler) handleNextHand(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	state, err := t.StartNextHand()
	if err != nil {
		status := statusFor(err)
		if status == http.StatusConflict {
			status = http.StatusBadRequest
		}
		httpjson.Error(w, status, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, state.Public())
}

func (h *Handler) handlePersist(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Persist.Persist(r.Context(), r.PathValue("gameId"))
	if err != nil {
		h.fail(w, "persist", err)
		return
	}
	httpjson.Write(w, http.StatusOK, receipt)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	state, err := h.Persist.Restore(r.Context(), r.PathValue("gameId"))
	if err != nil {
		h.fail(w, "restore", err)
		return
	}
	httpjson.Write(w, http.StatusOK, state.Public())
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.Persist.Cleanup(r.Context(), r.PathValue("gameId")); err != nil {
		h.fail(w, "cleanup", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	gameID, playerID := r.PathValue("gameId"), r.PathValue("playerId")
	if err := h.authorizeSeat(r, gameID, playerID); err != nil {
		h.fail(w, "issue token", err)
		return
	}
	tok, err := h.Tokens.Issue(r.Context(), gameID, playerID)
	if err != nil {
		h.fail(w, "issue token", err)
		return
	}
	httpjson.Write(w, http.StatusOK, tokenResponse{
		Token:     tok.Token,
		PlayerID:  tok.PlayerID,
		GameID:    tok.GameID,
		ExpiresAt: tok.ExpiresAt,
	})
}

// authorizeSeat requires the caller's session to own playerID's seat when
// that seat is bound to an account.
func (h *Handler) authorizeSeat(r *http.Request, gameID, playerID string) error {
	state, err := h.Games.State(r.Context(), gameID)
	if err != nil {
		return err
	}
	p, ok := state.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", holdem.ErrPlayerNotFound, playerID)
	}
	if p.UserID == "" {
		return nil
	}
	if h.Accounts == nil {
		return errSessionRequired
	}
	accountID, _, err := auth.ResolveRequest(h.Accounts, r)
	if err != nil || auth.UserID(accountID) != p.UserID {
		return errSessionRequired
	}
	return nil
}

func (h *Handler) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var req reconnectRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.Reconnect.Reconnect(r.Context(), r.PathValue("gameId"), req.PlayerID, req.Token)
	if err != nil {
		h.fail(w, "reconnect", err)
		return
	}
	httpjson.Write(w, http.StatusOK, reconnectResponse{
		Success:       true,
		GameState:     res.GameState.Public(),
		ReconnectedAt: res.ReconnectedAt,
	})
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) (*table.Table, bool) {
	t, err := h.Lobby.Get(r.PathValue("gameId"))
	if err != nil {
		httpjson.Error(w, statusFor(err), err.Error())
		return nil, false
	}
	return t, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn("[HTTP] request failed", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	httpjson.Error(w, status, err.Error())
}

// statusFor maps the error taxonomy onto HTTP statuses. Token errors are
// checked first; a reconnect to a game that cannot be restored is 404 even
// when the store was unreachable.
func statusFor(err error) int {
	var invalid holdem.InvalidStateError
	switch {
	case tokens.IsTokenError(err), errors.Is(err, errSessionRequired):
		return http.StatusUnauthorized
	case holdem.IsNotFound(err), errors.Is(err, table.ErrTableClosed):
		return http.StatusNotFound
	case holdem.IsValidation(err):
		return http.StatusBadRequest
	case holdem.IsState(err):
		return http.StatusConflict
	case errors.Is(err, persist.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
