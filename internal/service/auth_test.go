package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/video-access/internal/config"
	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/queue"
	"github.com/iliyamo/video-access/internal/utils"
)

type authFixture struct {
	svc    *AuthService
	users  *memUsers
	tokens *memTokens
	mail   *fakeMailer
	events *fakePublisher
	clock  *clock
	issuer *utils.SessionIssuer
}

func newAuthFixture(t *testing.T, env string, codes ...string) *authFixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"K7QJ2M"}
	}
	users := newMemUsers()
	f := &authFixture{
		users:  users,
		tokens: &memTokens{users: users},
		mail:   &fakeMailer{},
		events: &fakePublisher{},
		clock:  &clock{at: t0},
		issuer: utils.NewSessionIssuer("test-secret", "video-access", "video-access-users", 24*time.Hour),
	}
	f.svc = NewAuthService(f.users, f.tokens, f.mail, f.issuer, f.events, DefaultAuthConfig(env, time.UTC), discardLog())
	f.svc.now = f.clock.now
	f.svc.newCode = codeSeq(codes...)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *authFixture) request(t *testing.T, email string) {
	t.Helper()
	_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: email, IPAddress: "10.0.0.1"})
	require.NoError(t, err)
}

func (f *authFixture) validate(email, code string) (Session, error) {
	return f.svc.ValidateToken(context.Background(), ValidateTokenInput{Email: email, Code: code})
}

func TestRequestToken_CreatesUserAndSendsCode(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)

	res, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "  A@X.com ", UserAgent: "curl"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Email)
	assert.NotContains(t, res.Message, "K7QJ2M")

	u, err := f.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, u.FirstName)
	assert.True(t, u.IsActive)

	require.Len(t, f.tokens.rows, 1)
	tok := f.tokens.rows[0]
	assert.Equal(t, u.ID, tok.UserID)
	assert.Equal(t, model.PurposeEmailLogin, tok.Purpose)
	assert.Equal(t, t0.Add(10*time.Minute), tok.ExpiresAt)
	assert.Equal(t, "curl", *tok.UserAgent)
	assert.Nil(t, tok.IPAddress)

	sent := f.mail.byKind("login")
	require.Len(t, sent, 1)
	assert.Equal(t, sentMail{"login", "a@x.com", "K7QJ2M"}, sent[0])
}

func TestRequestToken_RejectsEmptyEmail(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "  "})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestLoginCode_ValidatesExactlyOnce(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	f.request(t, "a@x.com")
	f.clock.advance(9 * time.Minute)

	sess, err := f.validate("a@x.com", "k7qj2m")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", sess.User.FullName())
	require.NotNil(t, sess.User.LastLoginAt)
	assert.Equal(t, f.clock.at, *sess.User.LastLoginAt)

	claims, err := f.issuer.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)

	_, err = f.validate("a@x.com", "K7QJ2M")
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestLoginCode_InvalidAtExpiryInstant(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	f.request(t, "a@x.com")
	f.clock.advance(10 * time.Minute)

	_, err := f.validate("a@x.com", "K7QJ2M")
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.False(t, f.tokens.rows[0].IsUsed)
}

func TestRequestToken_SupersedesPriorCode(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction, "AAAAAA", "BBBBBB")
	f.request(t, "a@x.com")
	f.clock.advance(time.Minute)
	f.request(t, "a@x.com")

	_, err := f.validate("a@x.com", "AAAAAA")
	assert.Equal(t, KindUnauthorized, KindOf(err))

	_, err = f.validate("a@x.com", "BBBBBB")
	assert.NoError(t, err)
}

func TestRequestToken_RateLimit(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	for i := 0; i < 3; i++ {
		f.request(t, "a@x.com")
		f.clock.advance(time.Minute)
	}

	_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "a@x.com"})
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Len(t, f.tokens.rows, 3)

	// the first request leaves the window once 5 minutes have passed
	f.clock.advance(2*time.Minute + time.Second)
	_, err = f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "a@x.com"})
	assert.NoError(t, err)

	// other addresses are unaffected
	_, err = f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "b@x.com"})
	assert.NoError(t, err)
}

func TestRequestToken_DisabledAccount(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	f.users.add(model.User{Email: "gone@x.com", IsActive: false})

	_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "gone@x.com"})
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Empty(t, f.tokens.rows)
}

func TestRequestToken_DeliveryFailure(t *testing.T) {
	t.Run("production fails", func(t *testing.T) {
		f := newAuthFixture(t, config.EnvProduction)
		f.mail.err = errors.New("smtp down")
		_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "a@x.com"})
		assert.Equal(t, KindSendFailure, KindOf(err))

		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "failed to process token request", se.Message)
	})

	t.Run("development falls back", func(t *testing.T) {
		f := newAuthFixture(t, config.EnvDevelopment)
		f.mail.err = errors.New("smtp down")
		res, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "a@x.com"})
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", res.Email)

		_, err = f.validate("a@x.com", "K7QJ2M")
		assert.NoError(t, err)
	})
}

func TestRequestToken_StoreFailureIsInternal(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	f.tokens.failOn = "create"
	_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "a@x.com"})
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Empty(t, f.mail.byKind("login"))
}

func TestValidateToken_VagueFailures(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	f.request(t, "a@x.com")

	_, unknown := f.validate("nobody@x.com", "K7QJ2M")
	_, wrong := f.validate("a@x.com", "ZZZZZZ")

	var e1, e2 *Error
	require.ErrorAs(t, unknown, &e1)
	require.ErrorAs(t, wrong, &e2)
	assert.Equal(t, KindUnauthorized, e1.Kind)
	assert.Equal(t, e1.Message, e2.Message)
}

func TestValidateToken_FirstLoginSideEffects(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction, "AAAAAA", "BBBBBB")
	f.request(t, "a@x.com")
	_, err := f.validate("a@x.com", "AAAAAA")
	require.NoError(t, err)
	f.svc.Wait()
	assert.Len(t, f.mail.byKind("welcome"), 1)

	f.request(t, "a@x.com")
	_, err = f.validate("a@x.com", "BBBBBB")
	require.NoError(t, err)
	f.svc.Wait()
	assert.Len(t, f.mail.byKind("welcome"), 1, "welcome goes out once")

	require.Len(t, f.events.events, 2)
	first := f.events.events[0]
	assert.Equal(t, queue.QueueUserLoggedIn, first.queue)
	assert.True(t, first.payload.(queue.UserLoggedInEvent).FirstLogin)
	assert.False(t, f.events.events[1].payload.(queue.UserLoggedInEvent).FirstLogin)
}

func TestValidateToken_PublishFailureIgnored(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	f.events.err = errors.New("broker down")
	f.request(t, "a@x.com")
	_, err := f.validate("a@x.com", "K7QJ2M")
	assert.NoError(t, err)
}

func TestResolveSubjectAndRefresh(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	active := f.users.add(model.User{Email: "a@x.com", IsActive: true})
	inactive := f.users.add(model.User{Email: "b@x.com", IsActive: false})

	u, err := f.svc.ResolveSubject(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, u.ID)

	_, err = f.svc.ResolveSubject(context.Background(), inactive.ID)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = f.svc.ResolveSubject(context.Background(), "missing")
	assert.Equal(t, KindUnauthorized, KindOf(err))

	sess, err := f.svc.Refresh(context.Background(), active.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	_, err = f.svc.Refresh(context.Background(), inactive.ID)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	assert.Equal(t, "logged out", f.svc.Logout(context.Background(), "u1").Message)
}

func TestCleanupExpiredTokens(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction, "AAAAAA", "BBBBBB")
	f.request(t, "a@x.com")
	_, err := f.validate("a@x.com", "AAAAAA")
	require.NoError(t, err)
	f.clock.advance(5 * time.Minute)
	f.request(t, "b@x.com")

	f.clock.advance(6 * time.Minute)
	n, err := f.svc.CleanupExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "used but expired token is removed too")
	require.Len(t, f.tokens.rows, 1)
	assert.Equal(t, "BBBBBB", f.tokens.rows[0].Code)

	f.tokens.failOn = "delete"
	_, err = f.svc.CleanupExpiredTokens(context.Background())
	assert.Error(t, err)
}

func TestAuthStats(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction, "AAAAAA", "BBBBBB", "CCCCCC")
	f.request(t, "a@x.com")
	_, err := f.validate("a@x.com", "AAAAAA")
	require.NoError(t, err)
	f.request(t, "b@x.com")
	f.clock.advance(30 * time.Minute)
	f.request(t, "c@x.com")

	st, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.AuthStats{TotalTokensToday: 3, SuccessfulLoginsToday: 1, AbandonedTokens: 1}, st)
}

func TestRequestToken_LongUserAgentKeepsWholeRunes(t *testing.T) {
	f := newAuthFixture(t, config.EnvProduction)
	ua := "Mozilla/5.0 " + strings.Repeat("é", 600)

	_, err := f.svc.RequestToken(context.Background(), RequestTokenInput{Email: "ua@x.com", UserAgent: ua})
	require.NoError(t, err)

	require.Len(t, f.tokens.rows, 1)
	stored := *f.tokens.rows[0].UserAgent
	assert.True(t, utf8.ValidString(stored))
	assert.Equal(t, 500, utf8.RuneCountInString(stored))
	assert.True(t, strings.HasPrefix(ua, stored))
}

func TestOptional(t *testing.T) {
	assert.Nil(t, optional("   ", 10))
	assert.Equal(t, "abc", *optional(" abc ", 10))
	assert.Equal(t, "日本", *optional("日本語", 2))
	assert.Equal(t, "ab", *optional("a\xffb", 10), "invalid bytes are dropped")
}
