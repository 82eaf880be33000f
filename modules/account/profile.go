package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/accountkit/pkg/auth"
)

type profileRequest struct {
	Name string `json:"name"`
}

// passwordRequest serves both change and first-time set. CurrentPassword is
// ignored when the account has no password yet.
type passwordRequest struct {
	CurrentPassword string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type changeEmailRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	fresh, err := h.svc.Profile(r.Context(), acc.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeUser(w, http.StatusOK, fresh, "")
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	acc, _ := auth.AccountFromContext(r.Context())
	updated, err := h.svc.UpdateProfile(r.Context(), acc.ID, req.Name)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeUser(w, http.StatusOK, updated, "")
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	acc, _ := auth.AccountFromContext(r.Context())

	var (
		updated *auth.Account
		sess    *auth.Session
		err     error
	)
	if acc.Password.IsSet() {
		updated, sess, err = h.svc.ChangePassword(r.Context(), acc.ID, req.CurrentPassword, req.Password, req.PasswordConfirm)
	} else {
		updated, sess, err = h.svc.SetPassword(r.Context(), acc.ID, req.Password, req.PasswordConfirm)
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.setSession(w, sess)
	writeUser(w, http.StatusOK, updated, sess.Token)
}

func (h *Handler) updateEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	acc, _ := auth.AccountFromContext(r.Context())
	updated, sess, err := h.svc.ChangeEmail(r.Context(), acc.ID, req.Password, req.Email)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.setSession(w, sess)
	writeUser(w, http.StatusOK, updated, sess.Token)
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	p, err := auth.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	acc, _ := auth.AccountFromContext(r.Context())
	updated, err := h.svc.Unlink(r.Context(), acc.ID, p)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeUser(w, http.StatusOK, updated, "")
}
