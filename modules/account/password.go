package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/accountkit/pkg/auth"
)

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

const (
	msgActivationSent = "If the account exists and is not yet active, an activation link has been sent."
	msgResetSent      = "If an account exists for that email, a reset link has been sent."
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	acc, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeUser(w, http.StatusCreated, acc, "")
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	acc, sess, err := h.svc.Activate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.setSession(w, sess)
	writeUser(w, http.StatusOK, acc, sess.Token)
}

func (h *Handler) resendActivation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.ResendActivation(r.Context(), req.Email); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeMessage(w, msgActivationSent)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	acc, sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.setSession(w, sess)
	writeUser(w, http.StatusOK, acc, sess.Token)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearSession(w)
	writeJSON(w, http.StatusOK, envelope{Status: "success"})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeMessage(w, msgResetSent)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	acc, sess, err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.setSession(w, sess)
	writeUser(w, http.StatusOK, acc, sess.Token)
}
