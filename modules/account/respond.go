package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/validator"
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message,omitempty"`
	Code    string                     `json:"code,omitempty"`
	Token   string                     `json:"token,omitempty"`
	Data    any                        `json:"data,omitempty"`
	Errors  validator.ValidationErrors `json:"errors,omitempty"`
}

// userView is the public projection of an account. The password digest and
// pending tokens never leave the service.
type userView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Active      bool      `json:"active"`
	HasPassword bool      `json:"has_password"`
	Providers   []string  `json:"providers"`
	CreatedAt   time.Time `json:"created_at"`
}

func newUserView(acc *auth.Account) userView {
	providers := make([]string, 0, len(acc.Identities))
	for _, id := range acc.Identities {
		providers = append(providers, id.Provider.String())
	}
	return userView{
		ID:          acc.ID,
		Name:        acc.Name,
		Email:       acc.Email,
		Active:      acc.Active,
		HasPassword: acc.Password.IsSet(),
		Providers:   providers,
		CreatedAt:   acc.CreatedAt,
	}
}

type userData struct {
	User userView `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeUser(w http.ResponseWriter, status int, acc *auth.Account, token string) {
	writeJSON(w, status, envelope{Status: "success", Token: token, Data: userData{User: newUserView(acc)}})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: message})
}

// statusOf maps an error class onto an HTTP status.
func statusOf(kind auth.Kind) int {
	switch kind {
	case auth.KindInvalid:
		return http.StatusUnprocessableEntity
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindAlreadyExists:
		return http.StatusConflict
	case auth.KindTokenInvalid, auth.KindTokenExpired:
		return http.StatusBadRequest
	case auth.KindInvalidCredential, auth.KindUnauthenticated, auth.KindSessionSuperseded:
		return http.StatusUnauthorized
	case auth.KindInactive, auth.KindLastCredential:
		return http.StatusForbidden
	case auth.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a "fail" (4xx) or "error" (5xx) envelope. Server
// side failures are logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrUnsupportedMediaType):
		writeJSON(w, http.StatusBadRequest, envelope{Status: "fail", Code: "bad_request", Message: err.Error()})
		return
	case errors.Is(err, ErrAlreadyAuthenticated):
		writeJSON(w, http.StatusForbidden, envelope{Status: "fail", Code: "already_authenticated", Message: "You are already logged in."})
		return
	}

	kind := auth.KindOf(err)
	status := statusOf(kind)
	body := envelope{Status: "fail", Code: kind.String(), Message: err.Error()}

	if verrs := validator.ExtractValidationErrors(err); len(verrs) > 0 {
		body.Message = "validation failed"
		body.Errors = verrs
	}

	var ae *auth.Error
	if errors.As(err, &ae) {
		body.Message = ae.Error()
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed",
			logger.Error(err),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		body.Status = "error"
		if status == http.StatusInternalServerError {
			body.Message = "Something went wrong."
		}
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func decodeJSON(r *http.Request, maxBytes int64, dst any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: expected application/json", ErrUnsupportedMediaType)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
	}
	return nil
}
