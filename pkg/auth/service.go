package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/sanitizer"
	"github.com/dmitrymomot/accountkit/pkg/validator"
)

const maxNameLength = 100

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Service exposes one method per account lifecycle operation.
type Service struct {
	store    Store
	mailer   Mailer
	sessions *SessionIssuer
	tokens   *TokenManager
	linker   *Linker
	opts     options

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the lifecycle components around store, mailer and the
// session issuer.
func NewService(store Store, mailer Mailer, sessions *SessionIssuer, opts ...Option) *Service {
	return &Service{
		store:    store,
		mailer:   mailer,
		sessions: sessions,
		tokens:   NewTokenManager(store, opts...),
		linker:   NewLinker(store, opts...),
		opts:     buildOptions(opts),
	}
}

// Register creates an inactive account and mails an activation link. If the
// mail cannot be sent the activation token is revoked and ErrDelivery is
// returned; the account stays registered and ResendActivation can retry.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	email := sanitizer.NormalizeEmail(in.Email)
	name := sanitizer.Name(in.Name, 0)

	if err := validator.Apply(
		validator.Required("name", name),
		validator.MaxLen("name", name, maxNameLength),
		validator.ValidEmail("email", email),
		validator.StrongPassword("password", in.Password, s.opts.policy),
		validator.NotCommonPassword("password", in.Password),
		validator.Matches("password_confirm", in.PasswordConfirm, in.Password),
	); err != nil {
		return nil, err
	}

	digest, err := s.opts.hasher.Hash(in.Password)
	if err != nil {
		return nil, unavailable("register", err)
	}

	now := s.opts.now()
	opaque, pending, err := newPendingToken(s.opts.tokens, now, s.opts.activationTTL)
	if err != nil {
		return nil, unavailable("register", err)
	}

	acc := &Account{
		ID:         uuid.New(),
		Email:      email,
		Name:       name,
		Password:   PasswordHash(digest),
		Activation: &pending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, storeErr("register", err)
	}

	s.opts.logger.InfoContext(ctx, "account registered",
		logger.AccountID(acc.ID),
		logger.Component("account"),
	)

	if err := s.notifyToken(ctx, acc, TokenActivation, opaque, pending.Digest); err != nil {
		return nil, err
	}
	return acc, nil
}

// ResendActivation mails a fresh activation link. Unknown and already active
// addresses succeed silently.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	acc, err := s.store.FindByEmail(ctx, sanitizer.NormalizeEmail(email))
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil
	case err != nil:
		return storeErr("resend activation", err)
	case acc.Active:
		return nil
	}

	issued, err := s.tokens.Issue(ctx, TokenActivation, acc.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.notifyToken(ctx, issued.Account, TokenActivation, issued.Opaque, issued.Digest)
}

// Activate consumes an activation token, activates the account and signs the
// holder in.
func (s *Service) Activate(ctx context.Context, opaque string) (*Account, *Session, error) {
	acc, err := s.tokens.Consume(ctx, TokenActivation, opaque, func(acc *Account) error {
		acc.Active = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s.withSession(acc)
}

// Login verifies an email and password pair. Unknown emails, wrong passwords
// and provider-only accounts all yield ErrInvalidCredential.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, *Session, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.Required("password", password),
	); err != nil {
		return nil, nil, err
	}

	acc, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		s.burnVerify(password)
		return nil, nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, nil, storeErr("login", err)
	}

	if !s.verifyPassword(acc, password) {
		return nil, nil, ErrInvalidCredential
	}
	if !acc.Active {
		return nil, nil, ErrAccountInactive
	}

	s.opts.logger.InfoContext(ctx, "login succeeded",
		logger.AccountID(acc.ID),
		logger.Component("account"),
	)
	return s.withSession(acc)
}

// ForgotPassword mails a reset link. Unknown addresses succeed without
// issuing a token or sending mail so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	issued, err := s.tokens.Issue(ctx, TokenReset, email)
	if errors.Is(err, ErrAccountNotFound) {
		s.opts.logger.DebugContext(ctx, "password reset for unknown email",
			logger.Component("account"),
		)
		return nil
	}
	if err != nil {
		return err
	}
	return s.notifyToken(ctx, issued.Account, TokenReset, issued.Opaque, issued.Digest)
}

// ResetPassword consumes a reset token and sets a new password. The
// confirmation and strength checks run before the token is touched. A
// successful reset also activates the account, since the link proved control
// of its mailbox.
func (s *Service) ResetPassword(ctx context.Context, opaque, password, confirm string) (*Account, *Session, error) {
	if password != confirm {
		return nil, nil, ErrPasswordMismatch
	}
	digest, err := s.newPasswordDigest(password)
	if err != nil {
		return nil, nil, err
	}

	acc, err := s.tokens.Consume(ctx, TokenReset, opaque, func(acc *Account) error {
		acc.Password = PasswordHash(digest)
		acc.PasswordChangedAt = s.opts.now()
		if !acc.Active {
			acc.Active = true
			acc.Activation = nil
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s.withSession(acc)
}

// ChangePassword replaces the password of a signed-in account after checking
// the current one. Every previously issued session becomes invalid; the
// returned session is the replacement.
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, current, password, confirm string) (*Account, *Session, error) {
	if password != confirm {
		return nil, nil, ErrPasswordMismatch
	}
	digest, err := s.newPasswordDigest(password)
	if err != nil {
		return nil, nil, err
	}

	acc, err := mutate(ctx, s.store, s.opts.now, "change password",
		loadByID(s.store, accountID),
		func(acc *Account) error {
			if !acc.Password.IsSet() {
				return ErrPasswordNotSet
			}
			if !s.verifyPassword(acc, current) {
				return ErrInvalidCredential
			}
			acc.Password = PasswordHash(digest)
			acc.PasswordChangedAt = s.opts.now()
			return nil
		},
	)
	if err != nil {
		return nil, nil, err
	}

	s.opts.logger.InfoContext(ctx, "password changed",
		logger.AccountID(acc.ID),
		logger.Component("account"),
	)
	return s.withSession(acc)
}

// SetPassword adds a local password to an account that only has provider
// identities.
func (s *Service) SetPassword(ctx context.Context, accountID uuid.UUID, password, confirm string) (*Account, *Session, error) {
	if password != confirm {
		return nil, nil, ErrPasswordMismatch
	}
	digest, err := s.newPasswordDigest(password)
	if err != nil {
		return nil, nil, err
	}

	acc, err := mutate(ctx, s.store, s.opts.now, "set password",
		loadByID(s.store, accountID),
		func(acc *Account) error {
			if acc.Password.IsSet() {
				return ErrPasswordSet
			}
			acc.Password = PasswordHash(digest)
			acc.PasswordChangedAt = s.opts.now()
			return nil
		},
	)
	if err != nil {
		return nil, nil, err
	}
	return s.withSession(acc)
}

// ChangeEmail moves the account to a new address after checking the password,
// then notifies the previous address. Like a password change it invalidates
// existing sessions. If the notification fails the change is rolled back.
func (s *Service) ChangeEmail(ctx context.Context, accountID uuid.UUID, password, newEmail string) (*Account, *Session, error) {
	newEmail = sanitizer.NormalizeEmail(newEmail)
	if err := validator.Apply(validator.ValidEmail("email", newEmail)); err != nil {
		return nil, nil, err
	}

	if _, err := s.store.FindByEmail(ctx, newEmail); err == nil {
		acc, ferr := s.store.FindByID(ctx, accountID)
		if ferr == nil && acc.Email == newEmail {
			return nil, nil, ErrEmailUnchanged
		}
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, nil, storeErr("change email", err)
	}

	var (
		oldEmail     string
		oldChangedAt time.Time
	)
	acc, err := mutate(ctx, s.store, s.opts.now, "change email",
		loadByID(s.store, accountID),
		func(acc *Account) error {
			if !s.verifyPassword(acc, password) {
				return ErrInvalidCredential
			}
			if acc.Email == newEmail {
				return ErrEmailUnchanged
			}
			oldEmail, oldChangedAt = acc.Email, acc.PasswordChangedAt
			acc.Email = newEmail
			acc.PasswordChangedAt = s.opts.now()
			return nil
		},
	)
	if err != nil {
		return nil, nil, err
	}

	err = s.mailer.Send(ctx, Message{
		Kind:     MessageEmailChanged,
		To:       oldEmail,
		Name:     acc.Name,
		NewEmail: newEmail,
	})
	if err != nil {
		s.opts.logger.ErrorContext(ctx, "email change notification failed",
			logger.AccountID(acc.ID),
			logger.Error(err),
			logger.Component("account"),
		)
		_, rerr := mutate(ctx, s.store, s.opts.now, "revert email change",
			loadByID(s.store, accountID),
			func(acc *Account) error {
				if acc.Email != newEmail {
					return errNoChange
				}
				acc.Email = oldEmail
				acc.PasswordChangedAt = oldChangedAt
				return nil
			},
		)
		return nil, nil, errors.Join(deliveryFailed("change email", err), rerr)
	}

	s.opts.logger.InfoContext(ctx, "email changed",
		logger.AccountID(acc.ID),
		logger.Component("account"),
	)
	return s.withSession(acc)
}

// UpdateProfile changes the display name.
func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, name string) (*Account, error) {
	name = sanitizer.Name(name, 0)
	if err := validator.Apply(
		validator.Required("name", name),
		validator.MaxLen("name", name, maxNameLength),
	); err != nil {
		return nil, err
	}

	return mutate(ctx, s.store, s.opts.now, "update profile",
		loadByID(s.store, accountID),
		func(acc *Account) error {
			if acc.Name == name {
				return errNoChange
			}
			acc.Name = name
			return nil
		},
	)
}

// Profile returns the account.
func (s *Service) Profile(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	acc, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, storeErr("profile", err)
	}
	return acc, nil
}

// Link attaches a provider identity to a signed-in account.
func (s *Service) Link(ctx context.Context, accountID uuid.UUID, id Identity) (*Account, error) {
	return s.linker.Link(ctx, accountID, id)
}

// Unlink removes a provider from a signed-in account.
func (s *Service) Unlink(ctx context.Context, accountID uuid.UUID, p Provider) (*Account, error) {
	return s.linker.Unlink(ctx, accountID, p)
}

// ResolveOrCreateFromProvider signs in through a provider profile.
func (s *Service) ResolveOrCreateFromProvider(ctx context.Context, p ProviderIdentity) (*Account, error) {
	return s.linker.ResolveOrCreateFromProvider(ctx, p)
}

// IssueSession signs a new session for the account.
func (s *Service) IssueSession(acc *Account) (*Session, error) {
	return s.sessions.Issue(acc.ID, s.opts.now())
}

// ValidateSession resolves a presented session token to its account.
func (s *Service) ValidateSession(ctx context.Context, raw string) (*Account, error) {
	return s.sessions.Validate(ctx, raw)
}

// ExpiredSessionCookie returns the cookie policy for signing out.
func (s *Service) ExpiredSessionCookie() CookiePolicy {
	return s.sessions.ExpiredCookie()
}

func (s *Service) withSession(acc *Account) (*Account, *Session, error) {
	sess, err := s.IssueSession(acc)
	if err != nil {
		return nil, nil, unavailable("issue session", err)
	}
	return acc, sess, nil
}

func (s *Service) newPasswordDigest(password string) (string, error) {
	if err := validator.Apply(
		validator.StrongPassword("password", password, s.opts.policy),
		validator.NotCommonPassword("password", password),
	); err != nil {
		return "", err
	}
	digest, err := s.opts.hasher.Hash(password)
	if err != nil {
		return "", unavailable("hash password", err)
	}
	return digest, nil
}

func (s *Service) verifyPassword(acc *Account, password string) bool {
	digest, ok := acc.Password.Hash()
	if !ok {
		s.burnVerify(password)
		return false
	}
	return s.opts.hasher.Verify(password, digest)
}

// burnVerify spends the same hashing work as a real check so that response
// time does not reveal whether an account exists.
func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.opts.hasher.Hash("accountkit-timing-equalizer")
	})
	_ = s.opts.hasher.Verify(password, s.dummyHash)
}

// notifyToken mails the link for a freshly issued token and revokes the token
// when delivery fails.
func (s *Service) notifyToken(ctx context.Context, acc *Account, kind TokenKind, opaque, digest string) error {
	msgKind := MessageActivation
	if kind == TokenReset {
		msgKind = MessagePasswordReset
	}

	err := s.mailer.Send(ctx, Message{
		Kind:      msgKind,
		To:        acc.Email,
		Name:      acc.Name,
		Link:      s.opts.link(kind, opaque),
		ExpiresIn: s.opts.ttl(kind),
	})
	if err == nil {
		return nil
	}

	s.opts.logger.ErrorContext(ctx, "token notification failed",
		logger.AccountID(acc.ID),
		logger.TokenKind(kind.String()),
		logger.Error(err),
		logger.Component("account"),
	)
	if rerr := s.tokens.Revoke(ctx, kind, acc.ID, digest); rerr != nil {
		s.opts.logger.ErrorContext(ctx, "token revocation failed",
			logger.AccountID(acc.ID),
			logger.TokenKind(kind.String()),
			logger.Error(rerr),
			logger.Component("account"),
		)
		return errors.Join(deliveryFailed("notify", err), rerr)
	}
	return deliveryFailed("notify", err)
}
