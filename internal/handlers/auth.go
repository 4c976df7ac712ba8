package handlers

import (
	"net/http"

	"github.com/triplebarrelracing/storefront/internal/services"
	"github.com/triplebarrelracing/storefront/internal/session"
)

// AdminLogin checks credentials, starts a cookie session and returns a
// bearer token for API clients.
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input services.LoginInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.authService.Login(ctx, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.sessionManager.CreateSession(ctx, w, r, &session.Data{Username: result.Username}); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// AdminLogout destroys the cookie session. Bearer tokens expire on their own.
func (h *Handlers) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.DestroySession(r.Context(), w, r); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to destroy session", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
