package model

import (
    "strings"
    "time"
)

// User represents an account record as stored in the `users` table.
// Accounts are created on the first login-code request for an unseen
// e-mail (or by an administrator) and are never hard-deleted: deactivation
// clears IsActive.
//
// Fields:
//  ID          – generated UUID.
//  Email       – unique, lower-cased e-mail address.
//  FirstName   – optional given name.
//  LastName    – optional family name.
//  IsActive    – false once the account has been deactivated.
//  LastLoginAt – timestamp of the last successful code validation.
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type User struct {
    ID          string     // users.id
    Email       string     // users.email
    FirstName   *string    // users.first_name (nullable)
    LastName    *string    // users.last_name (nullable)
    IsActive    bool       // users.is_active
    LastLoginAt *time.Time // users.last_login_at (nullable)
    CreatedAt   time.Time  // users.created_at
    UpdatedAt   time.Time  // users.updated_at
}

// FullName joins first and last name. When only one part is present it is
// returned alone, and when neither is set the e-mail address is used.
func (u User) FullName() string {
    first := strings.TrimSpace(deref(u.FirstName))
    last := strings.TrimSpace(deref(u.LastName))
    switch {
    case first != "" && last != "":
        return first + " " + last
    case first != "":
        return first
    case last != "":
        return last
    }
    return u.Email
}

// NormalizeEmail trims and lower-cases an e-mail address. All lookups and
// inserts go through it so the unique index sees a single spelling.
func NormalizeEmail(email string) string {
    return strings.ToLower(strings.TrimSpace(email))
}

func deref(s *string) string {
    if s == nil {
        return ""
    }
    return *s
}
