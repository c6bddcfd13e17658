package model

import (
    "strings"
    "time"
)

// TokenPurpose says what a one-time code may be exchanged for.
type TokenPurpose string

const (
    PurposeEmailLogin        TokenPurpose = "EMAIL_LOGIN"
    PurposePasswordReset     TokenPurpose = "PASSWORD_RESET"
    PurposeEmailVerification TokenPurpose = "EMAIL_VERIFICATION"
)

// Valid reports whether p is one of the known purposes.
func (p TokenPurpose) Valid() bool {
    switch p {
    case PurposeEmailLogin, PurposePasswordReset, PurposeEmailVerification:
        return true
    }
    return false
}

// Token models a row in the `tokens` table: a short-lived, single-use code
// bound to a user and a purpose. IPAddress and UserAgent are kept for audit.
type Token struct {
    ID        string       // tokens.id
    UserID    string       // tokens.user_id
    Code      string       // tokens.code (upper-case)
    Purpose   TokenPurpose // tokens.purpose
    ExpiresAt time.Time    // tokens.expires_at
    IsUsed    bool         // tokens.is_used
    UsedAt    *time.Time   // tokens.used_at (nullable)
    IPAddress *string      // tokens.ip_address (nullable)
    UserAgent *string      // tokens.user_agent (nullable)
    CreatedAt time.Time    // tokens.created_at
}

// IsExpired reports whether the expiry instant has been reached.
func (t Token) IsExpired(now time.Time) bool {
    return !now.Before(t.ExpiresAt)
}

// IsValid is true only for an unused token whose expiry is still ahead.
func (t Token) IsValid(now time.Time) bool {
    return !t.IsUsed && !t.IsExpired(now)
}

// MarkUsed flags the token as consumed at the given instant.
func (t *Token) MarkUsed(now time.Time) {
    t.IsUsed = true
    at := now
    t.UsedAt = &at
}

// NormalizeCode upper-cases and trims a submitted code.
func NormalizeCode(code string) string {
    return strings.ToUpper(strings.TrimSpace(code))
}

// AuthStats summarises login-code activity for the current day.
type AuthStats struct {
    TotalTokensToday      int `json:"totalTokensToday"`
    SuccessfulLoginsToday int `json:"successfulLoginsToday"`
    AbandonedTokens       int `json:"abandonedTokens"`
}
