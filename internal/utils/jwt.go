package utils // package utils provides session credential and login code helpers

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed session credential and its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// SessionClaims are the claims a verified credential carries.
type SessionClaims struct {
    Subject  string
    Email    string
    IssuedAt time.Time
    Expires  time.Time
}

var ErrInvalidSession = errors.New("invalid session credential")

// SessionIssuer signs and verifies HS256 credentials with a fixed issuer
// and audience.
type SessionIssuer struct {
    secret   []byte
    issuer   string
    audience string
    ttl      time.Duration
    now      func() time.Time
}

func NewSessionIssuer(secret, issuer, audience string, ttl time.Duration) *SessionIssuer {
    if ttl <= 0 {
        ttl = 24 * time.Hour
    }
    return &SessionIssuer{
        secret:   []byte(secret),
        issuer:   issuer,
        audience: audience,
        ttl:      ttl,
        now:      func() time.Time { return time.Now().UTC() },
    }
}

// Issue mints a credential whose subject is the user id. The e-mail and
// issued-at are included as claims.
func (s *SessionIssuer) Issue(userID, email string) (AccessToken, error) {
    now := s.now()
    exp := now.Add(s.ttl)
    claims := jwt.MapClaims{
        "sub":   userID,
        "email": email,
        "iss":   s.issuer,
        "aud":   s.audience,
        "iat":   now.Unix(),
        "exp":   exp.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
    if err != nil {
        return AccessToken{}, fmt.Errorf("sign session: %w", err)
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// Parse verifies signature, algorithm, issuer, audience and expiry.
func (s *SessionIssuer) Parse(raw string) (SessionClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidSession
        }
        return s.secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithIssuer(s.issuer),
        jwt.WithAudience(s.audience),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(s.now),
    )
    if err != nil || !tok.Valid {
        return SessionClaims{}, ErrInvalidSession
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return SessionClaims{}, ErrInvalidSession
    }
    sub, _ := claims.GetSubject()
    if sub == "" {
        return SessionClaims{}, ErrInvalidSession
    }
    out := SessionClaims{Subject: sub}
    out.Email, _ = claims["email"].(string)
    if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
        out.IssuedAt = iat.Time
    }
    if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
        out.Expires = exp.Time
    }
    return out, nil
}
