// Package repository holds the MySQL-backed stores for users, login tokens,
// videos and entitlements. Lookups that find nothing return the sentinels
// below so services can tell "missing" from a driver failure.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserInactive        = errors.New("user is deactivated")
	ErrEmailExists         = errors.New("email already exists")
	ErrTokenNotFound       = errors.New("token not found")
	ErrVideoNotFound       = errors.New("video not found")
	ErrEntitlementNotFound = errors.New("entitlement not found")
)

// isDuplicateKey reports a MySQL unique-key violation (error 1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}
