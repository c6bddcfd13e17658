package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/video-access/internal/config"
	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/queue"
	"github.com/iliyamo/video-access/internal/repository"
	"github.com/iliyamo/video-access/internal/utils"
)

// AuthConfig tunes the login-code flow.
type AuthConfig struct {
	Env        string         // outside production a failed delivery logs the code instead
	CodeTTL    time.Duration  // lifetime of a login code
	RateWindow time.Duration  // window for the per-email request limit
	RateMax    int            // requests allowed per window
	Location   *time.Location // zone whose midnight starts "today" in Stats
}

// DefaultAuthConfig returns the production settings: 10 minute codes and at
// most 3 requests per e-mail in 5 minutes.
func DefaultAuthConfig(env string, loc *time.Location) AuthConfig {
	return AuthConfig{Env: env, CodeTTL: 10 * time.Minute, RateWindow: 5 * time.Minute, RateMax: 3, Location: loc}
}

// AuthService issues and validates one-time login codes and mints session
// credentials.
type AuthService struct {
	users    UserStore
	tokens   TokenStore
	mail     Notifier
	sessions SessionIssuer
	events   EventPublisher
	cfg      AuthConfig
	log      *slog.Logger

	now     func() time.Time
	newCode func() (string, error)
	bg      sync.WaitGroup
}

func NewAuthService(users UserStore, tokens TokenStore, mail Notifier, sessions SessionIssuer, events EventPublisher, cfg AuthConfig, log *slog.Logger) *AuthService {
	if events == nil {
		events = nopPublisher{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		mail:     mail,
		sessions: sessions,
		events:   events,
		cfg:      cfg,
		log:      log.With("component", "auth"),
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  utils.NewLoginCode,
	}
}

type RequestTokenInput struct {
	Email     string
	IPAddress string
	UserAgent string
}

type RequestTokenResult struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// RequestToken issues a fresh login code for email and delivers it. Prior
// unused login codes of the user stop working.
func (s *AuthService) RequestToken(ctx context.Context, in RequestTokenInput) (RequestTokenResult, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return RequestTokenResult{}, Validation("email is required")
	}
	now := s.now()

	recent, err := s.tokens.CountRecentByEmail(ctx, email, now.Add(-s.cfg.RateWindow))
	if err != nil {
		return RequestTokenResult{}, Internal("count recent tokens", err)
	}
	if recent >= s.cfg.RateMax {
		s.log.Warn("login code rate limit hit", "email", email, "recent", recent)
		return RequestTokenResult{}, RateLimited("too many attempts, try again in a few minutes")
	}

	user, created, err := s.users.FindOrCreateByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserInactive):
		return RequestTokenResult{}, Forbidden("account is disabled")
	case err != nil:
		return RequestTokenResult{}, Internal("resolve user", err)
	}
	if created {
		s.log.Info("user created on first login request", "user_id", user.ID, "email", user.Email)
	}

	if _, err := s.tokens.InvalidateOutstanding(ctx, user.ID, model.PurposeEmailLogin, now); err != nil {
		return RequestTokenResult{}, Internal("invalidate outstanding tokens", err)
	}

	code, err := s.newCode()
	if err != nil {
		return RequestTokenResult{}, Internal("generate code", err)
	}
	tok := model.Token{
		UserID:    user.ID,
		Code:      model.NormalizeCode(code),
		Purpose:   model.PurposeEmailLogin,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		IPAddress: optional(in.IPAddress, 45),
		UserAgent: optional(in.UserAgent, 500),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, &tok); err != nil {
		return RequestTokenResult{}, Internal("store token", err)
	}

	if err := s.mail.SendLoginToken(ctx, user.Email, tok.Code); err != nil {
		if s.cfg.Env == config.EnvProduction {
			s.log.Error("login code delivery failed", "email", user.Email, "error", err)
			return RequestTokenResult{}, SendFailure("failed to process token request", err)
		}
		s.log.Warn("login code delivery failed, logging code instead",
			"email", user.Email, "code", tok.Code, "env", s.cfg.Env, "error", err)
	}

	s.log.Info("login code sent", "email", user.Email)
	return RequestTokenResult{Message: "token sent to your e-mail", Email: user.Email}, nil
}

type ValidateTokenInput struct {
	Email     string
	Code      string
	IPAddress string
}

// Session is a minted credential with the user it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// errBadCode is the one response for every failed validation so callers
// cannot tell an unknown account from a wrong code.
func errBadCode() *Error { return Unauthorized("invalid or expired code") }

// ValidateToken exchanges a login code for a session credential. A code
// validates at most once.
func (s *AuthService) ValidateToken(ctx context.Context, in ValidateTokenInput) (Session, error) {
	email := model.NormalizeEmail(in.Email)
	code := model.NormalizeCode(in.Code)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		s.log.Info("login code rejected", "email", email, "reason", "unknown user")
		return Session{}, errBadCode()
	case err != nil:
		return Session{}, Internal("lookup user", err)
	}

	tok, err := s.tokens.FindUnusedByCode(ctx, user.ID, code, model.PurposeEmailLogin)
	switch {
	case errors.Is(err, repository.ErrTokenNotFound):
		s.log.Info("login code rejected", "email", email, "reason", "no matching code")
		return Session{}, errBadCode()
	case err != nil:
		return Session{}, Internal("lookup token", err)
	}

	now := s.now()
	if !tok.IsValid(now) {
		s.log.Info("login code rejected", "email", email, "reason", "expired")
		return Session{}, errBadCode()
	}
	switch err := s.tokens.MarkUsed(ctx, tok.ID, now); {
	case errors.Is(err, repository.ErrTokenNotFound):
		return Session{}, errBadCode()
	case err != nil:
		return Session{}, Internal("mark token used", err)
	}

	firstLogin := user.LastLoginAt == nil
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return Session{}, Internal("update last login", err)
	}
	user.LastLoginAt = &now

	access, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, Internal("issue session", err)
	}

	s.publish(ctx, queue.QueueUserLoggedIn, queue.UserLoggedInEvent{
		UserID:     user.ID,
		Email:      user.Email,
		IPAddress:  in.IPAddress,
		FirstLogin: firstLogin,
		LoggedInAt: now.Format(time.RFC3339),
	})
	if firstLogin {
		s.sendWelcome(user)
	}

	s.log.Info("login succeeded", "user_id", user.ID, "email", user.Email)
	return Session{Token: access.Token, ExpiresAt: access.Exp, User: user}, nil
}

type LogoutResult struct {
	Message string `json:"message"`
}

// Logout only acknowledges; credentials stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) LogoutResult {
	s.log.Info("logout", "user_id", userID)
	return LogoutResult{Message: "logged out"}
}

// ResolveSubject maps a credential subject onto an active user.
func (s *AuthService) ResolveSubject(ctx context.Context, userID string) (model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return model.User{}, Unauthorized("user not found")
	case err != nil:
		return model.User{}, Internal("resolve subject", err)
	case !user.IsActive:
		return model.User{}, Unauthorized("user not found")
	}
	return user, nil
}

// Refresh mints a new credential for an authenticated, still active user.
func (s *AuthService) Refresh(ctx context.Context, userID string) (Session, error) {
	user, err := s.ResolveSubject(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	access, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, Internal("issue session", err)
	}
	return Session{Token: access.Token, ExpiresAt: access.Exp, User: user}, nil
}

// CleanupExpiredTokens deletes every token past its expiry, used or not.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired tokens removed", "count", n)
	}
	return n, nil
}

// Stats reports today's token activity, "today" starting at local midnight.
func (s *AuthService) Stats(ctx context.Context) (model.AuthStats, error) {
	now := s.now()
	local := now.In(s.cfg.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	st, err := s.tokens.Stats(ctx, midnight.UTC(), now)
	if err != nil {
		return model.AuthStats{}, Internal("token stats", err)
	}
	return st, nil
}

// Wait blocks until background notifications have finished.
func (s *AuthService) Wait() { s.bg.Wait() }

func (s *AuthService) sendWelcome(user model.User) {
	first := ""
	if user.FirstName != nil {
		first = *user.FirstName
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mail.SendWelcome(ctx, user.Email, first); err != nil {
			s.log.Warn("welcome e-mail failed", "email", user.Email, "error", err)
		}
	}()
}

func (s *AuthService) publish(ctx context.Context, q string, payload any) {
	if err := s.events.Publish(ctx, q, payload); err != nil {
		s.log.Warn("event publish failed", "queue", q, "error", err)
	}
}

// optional cuts v to at most max characters and returns nil for an empty
// value. The columns are sized in characters, and a cut never splits a rune.
func optional(v string, max int) *string {
	v = strings.ToValidUTF8(strings.TrimSpace(v), "")
	if v == "" {
		return nil
	}
	if utf8.RuneCountInString(v) > max {
		v = string([]rune(v)[:max])
	}
	return &v
}
