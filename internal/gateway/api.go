// ABOUTME: HTTP API handlers for login, registration and conversation history
// ABOUTME: Validates JSON bodies and maps service errors onto HTTP status codes

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/2389/huddle/internal/chaterr"
	"github.com/2389/huddle/internal/store"
)

// maxRequestBodyBytes caps JSON bodies on the auth endpoints.
const maxRequestBodyBytes = 64 << 10

// CredentialsRequest is the JSON body for POST /api/auth/login and /api/auth/register.
type CredentialsRequest struct {
	UserID      int64  `json:"userId" validate:"required,gt=0,lte=2147483647"`
	Password    string `json:"password" validate:"required,max=72"`
	DisplayName string `json:"displayName,omitempty" validate:"max=200"`
}

// UserResponse is the JSON response for login and registration.
type UserResponse struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token,omitempty"`
}

// handleLogin handles POST /api/auth/login.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := g.credentials.Authenticate(r.Context(), req.UserID, req.Password)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}

	resp, err := g.userResponse(user)
	if err != nil {
		g.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.logger.Info("user logged in", "user_id", user.ID)
	g.sendJSON(w, http.StatusOK, resp)
}

// handleRegister handles POST /api/auth/register.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := g.credentials.Register(r.Context(), req.UserID, req.Password, req.DisplayName)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}

	resp, err := g.userResponse(user)
	if err != nil {
		g.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusCreated, resp)
}

// handleConversationMessages handles GET /api/conversations/{id}/messages.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := g.conversationIDParam(w, r)
	if !ok {
		return
	}

	views, err := g.conversation.ListConversation(r.Context(), id)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	g.sendJSON(w, http.StatusOK, views)
}

// conversationIDParam parses the {id} path segment, writing 400 on failure.
func (g *Gateway) conversationIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid conversation id")
		return 0, false
	}
	return id, true
}

// decodeCredentials reads and validates a CredentialsRequest, writing 400 on failure.
func (g *Gateway) decodeCredentials(w http.ResponseWriter, r *http.Request) (*CredentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	if err := g.validate.Struct(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	return &req, true
}

// validationMessage converts the first failed validation rule into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "UserID" && fe.Tag() == "lte":
		return fmt.Sprintf("User id must be at most %d", store.MaxUserID)
	case fe.Field() == "Password" && fe.Tag() == "max":
		return "Password must be at most 72 bytes"
	case fe.Field() == "DisplayName":
		return "Display name must be at most 200 characters"
	default:
		return "User id and password are required"
	}
}

// userResponse builds the login/register body, issuing a token when auth is on.
func (g *Gateway) userResponse(user *store.User) (*UserResponse, error) {
	resp := &UserResponse{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}
	if g.verifier != nil {
		token, err := g.verifier.Generate(user.ID, g.config.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
		resp.Token = token
	}
	return resp, nil
}

// writeServiceError maps the chaterr taxonomy onto HTTP status codes.
func (g *Gateway) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chaterr.ErrInvalidArgument), errors.Is(err, chaterr.ErrInvalidCredentials):
		g.sendJSONError(w, http.StatusBadRequest, chaterr.Message(err))
	case errors.Is(err, chaterr.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, chaterr.Message(err))
	default:
		g.logger.Error("request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Warn("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
