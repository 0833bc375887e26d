package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"holdem-live/apps/server/internal/httpjson"
)

var (
	errMissingSession = errors.New("missing session token")
	errInvalidSession = errors.New("invalid session token")
)

// HTTPHandler serves account registration and bearer sessions.
type HTTPHandler struct {
	accounts Service
	log      *zap.Logger
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID       string `json:"userId"`
	SessionToken string `json:"sessionToken"`
}

type accountResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func NewHTTPHandler(accounts Service, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{accounts: accounts, log: logger}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/auth/me", h.handleMe)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, http.StatusCreated, "register", h.accounts.Register)
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, http.StatusOK, "login", h.accounts.Login)
}

// issue runs a credentials exchange that ends in a new session.
func (h *HTTPHandler) issue(w http.ResponseWriter, r *http.Request, status int, op string,
	exchange func(username, password string) (uint64, string, error)) {
	var req credentials
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, session, err := exchange(req.Username, req.Password)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpjson.Write(w, status, sessionResponse{UserID: UserID(accountID), SessionToken: session})
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := httpjson.BearerToken(r)
	if token == "" {
		h.fail(w, "logout", errMissingSession)
		return
	}
	h.accounts.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	accountID, username, err := ResolveRequest(h.accounts, r)
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpjson.Write(w, http.StatusOK, accountResponse{UserID: UserID(accountID), Username: username})
}

// ResolveRequest resolves the bearer session of r against accounts.
func ResolveRequest(accounts Service, r *http.Request) (uint64, string, error) {
	token := httpjson.BearerToken(r)
	if token == "" {
		return 0, "", errMissingSession
	}
	accountID, username, ok := accounts.ResolveSession(token)
	if !ok {
		return 0, "", errInvalidSession
	}
	return accountID, username, nil
}

func (h *HTTPHandler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.log.Error("[Auth] request failed", zap.String("op", op), zap.Error(err))
		msg = op + " failed"
	}
	httpjson.Error(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, errMissingSession), errors.Is(err, errInvalidSession):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
