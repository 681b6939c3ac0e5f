package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
)

// ParseRole accepts "user" and "staff" in any case.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleStaff:
		return RoleStaff, true
	}
	return "", false
}

// User is one record of the users blob. PasswordHash holds the plaintext
// password for regular users and is empty for staff.
type User struct {
	Username          string          `json:"username"`
	PasswordHash      string          `json:"passwordHash,omitempty"`
	Balance           decimal.Decimal `json:"balance"`
	Transactions      []Transaction   `json:"transactions"`
	Role              Role            `json:"role"`
	LastRewardClaimed *time.Time      `json:"lastRewardClaimed,omitempty"`
	LastGenerated     *time.Time      `json:"lastGenerated,omitempty"`
}

// Is reports whether the user has the given username, ignoring case.
func (u User) Is(username string) bool {
	return strings.EqualFold(u.Username, username)
}

// Public returns a copy safe to hand to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	u.Transactions = append([]Transaction(nil), u.Transactions...)
	return u
}
