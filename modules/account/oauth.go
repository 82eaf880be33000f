package account

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/cookie"
	"github.com/dmitrymomot/accountkit/pkg/logger"
)

// oauthStart stores the state in a signed cookie and redirects to the
// provider's consent page.
func (h *Handler) oauthStart(w http.ResponseWriter, r *http.Request) {
	p, err := auth.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	target, state, err := h.oauth.AuthURL(r.Context(), p)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.cookies.SetSigned(w, h.cfg.StateCookie, state,
		cookie.WithMaxAge(int(h.cfg.StateCookieTTL.Seconds())),
		cookie.WithHTTPOnly(true),
		cookie.WithSameSite(http.SameSiteLaxMode),
	)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// oauthCallback completes the flow. A logged-in caller gets the identity
// linked to their account; anyone else is signed in or registered. Both
// outcomes end in a redirect.
func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := auth.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	q := r.URL.Query()
	if provErr := q.Get("error"); provErr != "" {
		h.log.InfoContext(ctx, "provider denied consent", logger.Provider(p.String()), logger.Event(provErr))
		h.oauthFail(w, r, auth.ErrInvalidCode)
		return
	}

	state := q.Get("state")
	bound, err := h.cookies.GetSigned(r, h.cfg.StateCookie)
	h.cookies.Delete(w, h.cfg.StateCookie)
	if err != nil || bound != state {
		h.log.WarnContext(ctx, "oauth state not bound to browser", logger.Provider(p.String()))
		h.oauthFail(w, r, errors.Join(auth.ErrInvalidState, ErrStateMismatch))
		return
	}

	var linkTo *uuid.UUID
	if cur, ok := auth.AccountFromContext(ctx); ok {
		linkTo = &cur.ID
	}

	acc, err := h.oauth.Callback(ctx, p, q.Get("code"), state, linkTo)
	if err != nil {
		h.oauthFail(w, r, err)
		return
	}

	sess, err := h.svc.IssueSession(acc)
	if err != nil {
		h.oauthFail(w, r, err)
		return
	}
	h.setSession(w, sess)
	http.Redirect(w, r, h.cfg.SuccessRedirect, http.StatusFound)
}

func (h *Handler) oauthFail(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	if statusOf(kind) >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "oauth callback failed", logger.Error(err))
	}
	target := h.cfg.FailureRedirect + "?" + url.Values{"error": {kind.String()}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
