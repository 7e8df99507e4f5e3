package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stocktrail/stocktrail/internal/service/token"
	"github.com/stocktrail/stocktrail/pkg/response"
)

// AuthHandler issues actor tokens. Any non-empty username is accepted;
// real credential checks are a deferred concern.
type AuthHandler struct {
	tokens *token.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokens *token.Service) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/login", h.Login).Methods("POST")
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
}

// Login issues a token for the given username
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" {
		response.BadRequest(w, "Username is required")
		return
	}

	signed, err := h.tokens.Issue(req.Username)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "TOKEN_ISSUE", "Failed to issue token")
		return
	}

	response.Success(w, http.StatusOK, "Login successful", map[string]interface{}{
		"token": signed,
	})
}
