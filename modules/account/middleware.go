package account

import (
	"net/http"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/logger"
)

// authenticate resolves the presented session, if any, and stores the account
// in the request context. Invalid sessions are remembered so requireAccount
// can report why; they never block anonymous routes.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := h.extract(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		acc, err := h.svc.ValidateSession(r.Context(), raw)
		if err != nil {
			if auth.KindOf(err) == auth.KindUnavailable {
				writeError(w, r, h.log, err)
				return
			}
			h.log.DebugContext(r.Context(), "session rejected", logger.Error(err))
			next.ServeHTTP(w, r.WithContext(withSessionError(r.Context(), err)))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithAccount(r.Context(), acc)))
	})
}

// requireAccount rejects requests without a valid session.
func (h *Handler) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.AccountFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		err := sessionErrorFrom(r.Context())
		if err == nil {
			err = auth.ErrSessionInvalid
		}
		writeError(w, r, h.log, err)
	})
}

// requireAnonymous refuses callers that are already logged in.
func (h *Handler) requireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.AccountFromContext(r.Context()); ok {
			writeError(w, r, h.log, ErrAlreadyAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
