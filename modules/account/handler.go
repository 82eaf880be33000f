package account

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/cookie"
	"github.com/dmitrymomot/accountkit/pkg/jwt"
	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/ratelimiter"
)

// Handler exposes the account lifecycle over JSON HTTP.
type Handler struct {
	svc     *auth.Service
	oauth   *auth.OAuthFlow
	cookies *cookie.Manager
	extract jwt.TokenExtractorFunc
	limiter *ratelimiter.Bucket
	cfg     Config
	log     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithOAuth enables the /oauth routes.
func WithOAuth(flow *auth.OAuthFlow) Option {
	return func(h *Handler) { h.oauth = flow }
}

// WithRateLimiter throttles the unauthenticated credential routes per client
// IP and route.
func WithRateLimiter(b *ratelimiter.Bucket) Option {
	return func(h *Handler) { h.limiter = b }
}

// WithConfig overrides the default Config.
func WithConfig(cfg Config) Option {
	return func(h *Handler) { h.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New returns a Handler. sessionCookie is the name of the cookie the session
// token is read from when no bearer token is present.
func New(svc *auth.Service, cookies *cookie.Manager, sessionCookie string, opts ...Option) *Handler {
	h := &Handler{
		svc:     svc,
		cookies: cookies,
		extract: jwt.FirstOf(jwt.BearerTokenExtractor, jwt.CookieTokenExtractor(sessionCookie)),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.cfg = h.cfg.withDefaults()
	h.log = h.log.With(logger.Component("account_http"))
	return h
}

// Routes returns the router. Mount it wherever the API lives.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authenticate)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAnonymous)
		if h.limiter != nil {
			r.Use(ratelimiter.Middleware(h.limiter,
				ratelimiter.Composite(ratelimiter.ByIP, ratelimiter.ByRoute),
				h.rateLimited,
				h.rateLimitFailed,
			))
		}
		r.Post("/register", h.register)
		r.Get("/activate/{token}", h.activate)
		r.Post("/activate/resend", h.resendActivation)
		r.Post("/login", h.login)
		r.Post("/forgot-password", h.forgotPassword)
		r.Patch("/reset-password/{token}", h.resetPassword)
	})

	r.Post("/logout", h.logout)
	r.Get("/logout", h.logout)

	if h.oauth != nil {
		r.Get("/oauth/{provider}", h.oauthStart)
		r.Get("/oauth/{provider}/callback", h.oauthCallback)
	}

	r.Route("/me", func(r chi.Router) {
		r.Use(h.requireAccount)
		r.Get("/", h.profile)
		r.Patch("/", h.updateProfile)
		r.Patch("/password", h.updatePassword)
		r.Patch("/email", h.updateEmail)
		r.Delete("/identities/{provider}", h.unlink)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{
			Status:  "fail",
			Code:    auth.KindNotFound.String(),
			Message: "Can't find " + r.URL.Path + " on this server!",
		})
	})

	return r
}

func (h *Handler) setSession(w http.ResponseWriter, sess *auth.Session) {
	p := sess.Cookie
	h.cookies.Set(w, p.Name, sess.Token,
		cookie.WithPath(p.Path),
		cookie.WithDomain(p.Domain),
		cookie.WithMaxAge(p.MaxAge),
		cookie.WithSecure(p.Secure),
		cookie.WithHTTPOnly(p.HTTPOnly),
		cookie.WithSameSite(p.SameSite),
	)
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	p := h.svc.ExpiredSessionCookie()
	h.cookies.Delete(w, p.Name,
		cookie.WithPath(p.Path),
		cookie.WithDomain(p.Domain),
		cookie.WithSecure(p.Secure),
		cookie.WithHTTPOnly(p.HTTPOnly),
		cookie.WithSameSite(p.SameSite),
	)
}

func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, _ ratelimiter.Result) {
	h.log.WarnContext(r.Context(), "rate limited", slog.String("path", r.URL.Path))
	writeJSON(w, http.StatusTooManyRequests, envelope{
		Status:  "fail",
		Code:    "rate_limited",
		Message: "Too many requests, please try again later.",
	})
}

func (h *Handler) rateLimitFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorContext(r.Context(), "rate limiter unavailable", logger.Error(err))
	writeJSON(w, http.StatusServiceUnavailable, envelope{
		Status:  "error",
		Code:    auth.KindUnavailable.String(),
		Message: "Service temporarily unavailable.",
	})
}
