package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"alibi/internal/domain"
	"alibi/pkg/httputil"
)

type handlers struct {
	d Deps
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string      `json:"token"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.d.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		_ = h.d.Audit.Log(r.Context(), req.Username, "login_failed", "", "")
		httputil.WriteError(w, err)
		return
	}

	token, err := h.d.Tokens.Issue(user)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), user.Username, "login", "", "")
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, Username: user.Username, Role: user.Role})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrAuthFailed)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Username: claims.Username, Role: claims.Role})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrAuthFailed)
		return
	}
	var req changePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.d.Users.Authenticate(claims.Username, req.CurrentPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.d.Users.ResetPassword(claims.Username, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), claims.Username, "change_password", claims.Username, "")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.d.Users.List())
}

type createUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req createUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.d.Users.Create(req.Username, req.Password, req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), claims.Username, "create_user", user.Username, string(user.Role))
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *handlers) disableUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	username := chi.URLParam(r, "username")
	if err := h.d.Users.SetDisabled(username, true); err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), claims.Username, "disable_user", username, "")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
