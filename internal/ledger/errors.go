package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/IlyasAtabaev731/lsc-coin/internal/domain/models"
)

// Rejections carry the text shown to the user as is.
var (
	ErrUserNotFound        = errors.New("User not found.")
	ErrSenderNotFound      = errors.New("Sender not found.")
	ErrRecipientNotFound   = errors.New("Recipient not found.")
	ErrSelfTransfer        = errors.New("You can't send coins to yourself.")
	ErrInsufficientFunds   = errors.New("Insufficient funds.")
	ErrStaffRecipient      = errors.New("You cannot send coins to a staff member.")
	ErrInvalidAmount       = errors.New("Please enter a valid amount.")
	ErrInvalidStaffCode    = errors.New("Invalid staff code.")
	ErrInvalidStaffCodeReg = errors.New("Invalid staff code for registration.")
	ErrIncorrectPassword   = errors.New("Incorrect password.")
	ErrUsernameTaken       = errors.New("Username already exists.")
	ErrTransactionNotFound = errors.New("Transaction not found.")
	ErrInvalidRole         = errors.New("Unknown role.")
	ErrInvalidUsersBlob    = errors.New("Stored users are not a valid user list.")
)

const (
	MsgLoginSuccessful        = "Login successful."
	MsgRegistrationSuccessful = "Registration successful."
)

// LengthError is returned when a username or password is too short.
type LengthError struct {
	Field string
	Min   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s must be at least %d characters.", e.Field, e.Min)
}

// RoleMismatchError is returned when a user logs in through the wrong door.
type RoleMismatchError struct {
	Role models.Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("Incorrect role. Try the %s login.", e.Role)
}

// CooldownError is returned when an action is attempted before its cooldown ends.
type CooldownError struct {
	Remaining time.Duration
	// Unit is the granularity the remaining time is reported in.
	Unit time.Duration
}

func (e *CooldownError) Error() string {
	n := int64(e.Remaining / e.Unit)
	word := "second"
	if e.Unit == time.Minute {
		word = "minute"
	}
	if n > 1 {
		word += "s"
	}
	return fmt.Sprintf("Please wait %d more %s.", n, word)
}

// SentMessage is the confirmation shown after a successful send.
func SentMessage(tx models.Transaction) string {
	return fmt.Sprintf("Successfully sent %s LSC to %s.", tx.Amount.String(), tx.To)
}

// AcceptedMessage is the confirmation shown after a transfer is accepted.
func AcceptedMessage(tx models.Transaction) string {
	return fmt.Sprintf("Accepted %s LSC from %s.", tx.Amount.String(), tx.From)
}

// RewardMessage is the confirmation shown after the hourly reward is claimed.
func RewardMessage(tx models.Transaction) string {
	return fmt.Sprintf("Successfully claimed %s LSC!", tx.Amount.String())
}

// GeneratedMessage is the confirmation shown after coins are generated.
func GeneratedMessage(tx models.Transaction) string {
	return fmt.Sprintf("Generated %s LSC.", tx.Amount.String())
}
