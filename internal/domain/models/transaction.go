package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SystemSender is the "from" value of transactions minted by the wallet itself.
const SystemSender = "system"

type TransactionType string

const (
	TxGenerate       TransactionType = "GENERATE"
	TxSend           TransactionType = "SEND"
	TxReceive        TransactionType = "RECEIVE"
	TxReward         TransactionType = "REWARD"
	TxAccountCreated TransactionType = "ACCOUNT_CREATED"
	TxStaffGrant     TransactionType = "STAFF_GRANT"
)

// Title is the human readable label shown in transaction history.
func (t TransactionType) Title(tx Transaction) string {
	switch t {
	case TxAccountCreated:
		return "Account Created"
	case TxStaffGrant:
		return "Initial Staff Grant"
	case TxGenerate:
		return "Coins Generated"
	case TxReward:
		return "Hourly Reward Claimed"
	case TxSend:
		return "Sent to " + tx.To
	case TxReceive:
		return "Received from " + tx.From
	default:
		return "Transaction"
	}
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
)

// Transaction is one entry of a user's log. A send produces two entries with
// the same ID: SEND on the sender and RECEIVE on the recipient.
type Transaction struct {
	ID        string            `json:"id"`
	Type      TransactionType   `json:"type"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Amount    decimal.Decimal   `json:"amount"`
	Timestamp time.Time         `json:"timestamp"`
	Status    TransactionStatus `json:"status"`
}

// Signed returns the amount as it affects the owner's balance in history views.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TxSend {
		return t.Amount.Neg()
	}
	return t.Amount
}
