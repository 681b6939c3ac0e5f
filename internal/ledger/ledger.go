// Package ledger owns the wallet's user list: registration, login checks and
// every balance-affecting operation. The list is read from the store, changed
// in memory and written back as a whole on each mutation.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IlyasAtabaev731/lsc-coin/internal/config"
	"github.com/IlyasAtabaev731/lsc-coin/internal/domain/models"
	"github.com/IlyasAtabaev731/lsc-coin/internal/metrics"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

type Ledger struct {
	mu        sync.Mutex
	store     storage.Store
	logger    *slog.Logger
	cfg       config.Wallet
	staffCode string

	now        func() time.Time
	newID      func() string
	randAmount func(min, max int64) int64
}

type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs replaces the transaction id generator.
func WithIDs(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithRand replaces the generator used to pick generated amounts.
func WithRand(randAmount func(min, max int64) int64) Option {
	return func(l *Ledger) { l.randAmount = randAmount }
}

func New(store storage.Store, logger *slog.Logger, cfg config.Wallet, staffCode string, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		logger:    logger,
		cfg:       cfg,
		staffCode: strings.ToUpper(strings.TrimSpace(staffCode)),
		now:       time.Now,
		newID:     uuid.NewString,
		randAmount: func(min, max int64) int64 {
			return min + rand.Int64N(max-min+1)
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Users returns every stored user.
func (l *Ledger) Users(ctx context.Context) ([]models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.load(ctx)
}

// GetUser looks a user up by username, ignoring case.
func (l *Ledger) GetUser(ctx context.Context, username string) (models.User, error) {
	users, err := l.Users(ctx)
	if err != nil {
		return models.User{}, err
	}
	i := indexOf(users, username)
	if i < 0 {
		return models.User{}, ErrUserNotFound
	}
	return users[i], nil
}

// StaffMembers returns the users registered with the staff role.
func (l *Ledger) StaffMembers(ctx context.Context) ([]models.User, error) {
	users, err := l.Users(ctx)
	if err != nil {
		return nil, err
	}
	staff := make([]models.User, 0)
	for _, u := range users {
		if u.Role == models.RoleStaff {
			staff = append(staff, u)
		}
	}
	return staff, nil
}

// Login checks credentials. Staff authenticate with the shared staff code,
// users with their password.
func (l *Ledger) Login(ctx context.Context, username string, role models.Role, password, staffCode string) (models.User, error) {
	user, err := l.GetUser(ctx, username)
	defer func() { metrics.Observe("login", err) }()
	if err != nil {
		return models.User{}, err
	}
	if user.Role != role {
		err = &RoleMismatchError{Role: user.Role}
		return models.User{}, err
	}

	if role == models.RoleStaff {
		if !l.validStaffCode(staffCode) {
			err = ErrInvalidStaffCode
			return models.User{}, err
		}
	} else if user.PasswordHash != password {
		err = ErrIncorrectPassword
		return models.User{}, err
	}

	l.logger.Info("User logged in", slog.String("username", user.Username), slog.String("role", string(role)))
	return user, nil
}

// Register creates a user with the initial balance of its role.
func (l *Ledger) Register(ctx context.Context, username string, role models.Role, password, staffCode string) (user models.User, err error) {
	defer func() { metrics.Observe("register", err) }()

	if role != models.RoleUser && role != models.RoleStaff {
		return models.User{}, ErrInvalidRole
	}
	if utf8.RuneCountInString(username) < l.cfg.MinUsernameLength {
		return models.User{}, &LengthError{Field: "Username", Min: l.cfg.MinUsernameLength}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.load(ctx)
	if err != nil {
		return models.User{}, err
	}
	if indexOf(users, username) >= 0 {
		return models.User{}, ErrUsernameTaken
	}

	if role == models.RoleStaff {
		if !l.validStaffCode(staffCode) {
			return models.User{}, ErrInvalidStaffCodeReg
		}
	} else if utf8.RuneCountInString(password) < l.cfg.MinPasswordLength {
		return models.User{}, &LengthError{Field: "Password", Min: l.cfg.MinPasswordLength}
	}

	initial := decimal.NewFromInt(l.cfg.UserInitialBalance)
	txType := models.TxAccountCreated
	if role == models.RoleStaff {
		initial = decimal.NewFromInt(l.cfg.StaffInitialBalance)
		txType = models.TxStaffGrant
	}

	user = models.User{
		Username: username,
		Balance:  initial,
		Role:     role,
		Transactions: []models.Transaction{
			l.systemTx(txType, username, initial),
		},
	}
	if role == models.RoleUser {
		user.PasswordHash = password
	}

	if err = l.save(ctx, append(users, user)); err != nil {
		return models.User{}, err
	}

	metrics.Issued(string(txType), initial)
	l.logger.Info("Register new user", slog.String("username", username), slog.String("role", string(role)))

	return user, nil
}

// GenerateCoins credits amount to the user as a GENERATE transaction.
func (l *Ledger) GenerateCoins(ctx context.Context, username string, amount decimal.Decimal) (tx models.Transaction, err error) {
	defer func() { metrics.Observe("generate", err) }()

	if err = checkAmount(amount); err != nil {
		return models.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.load(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	i := indexOf(users, username)
	if i < 0 {
		return models.Transaction{}, ErrUserNotFound
	}

	tx = l.credit(&users[i], models.TxGenerate, amount)
	if err = l.save(ctx, users); err != nil {
		return models.Transaction{}, err
	}

	metrics.Issued(string(models.TxGenerate), amount)
	l.logger.Info("Generate coins", slog.String("username", users[i].Username), slog.String("amount", amount.String()))

	return tx, nil
}

// GenerateRandomCoins generates a random whole amount within the configured
// range, at most once per generate cooldown.
func (l *Ledger) GenerateRandomCoins(ctx context.Context, username string) (tx models.Transaction, err error) {
	defer func() { metrics.Observe("generate_random", err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.load(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	i := indexOf(users, username)
	if i < 0 {
		return models.Transaction{}, ErrUserNotFound
	}

	now := l.now()
	if last := users[i].LastGenerated; last != nil {
		if elapsed := now.Sub(*last); elapsed < l.cfg.GenerateCooldown {
			remaining := (l.cfg.GenerateCooldown - elapsed + time.Second - 1).Truncate(time.Second)
			return models.Transaction{}, &CooldownError{Remaining: remaining, Unit: time.Second}
		}
	}

	amount := decimal.NewFromInt(l.randAmount(l.cfg.GenerateMin, l.cfg.GenerateMax))
	tx = l.credit(&users[i], models.TxGenerate, amount)
	users[i].LastGenerated = &now

	if err = l.save(ctx, users); err != nil {
		return models.Transaction{}, err
	}

	metrics.Issued(string(models.TxGenerate), amount)
	l.logger.Info("Generate coins", slog.String("username", users[i].Username), slog.String("amount", amount.String()))

	return tx, nil
}

// SendCoins debits the sender and records a pending transfer on both sides.
// The recipient is credited only when they accept it.
func (l *Ledger) SendCoins(ctx context.Context, fromUsername, toUsername string, amount decimal.Decimal) (tx models.Transaction, err error) {
	defer func() { metrics.Observe("send", err) }()

	if err = checkAmount(amount); err != nil {
		return models.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.load(ctx)
	if err != nil {
		return models.Transaction{}, err
	}

	si := indexOf(users, fromUsername)
	if si < 0 {
		return models.Transaction{}, ErrSenderNotFound
	}
	ri := indexOf(users, toUsername)
	if ri < 0 {
		return models.Transaction{}, ErrRecipientNotFound
	}
	sender, recipient := &users[si], &users[ri]

	switch {
	case si == ri:
		return models.Transaction{}, ErrSelfTransfer
	case sender.Balance.LessThan(amount):
		return models.Transaction{}, ErrInsufficientFunds
	case recipient.Role == models.RoleStaff:
		return models.Transaction{}, ErrStaffRecipient
	}

	tx = models.Transaction{
		ID:        l.newID(),
		Type:      models.TxSend,
		From:      sender.Username,
		To:        recipient.Username,
		Amount:    amount,
		Timestamp: l.now(),
		Status:    models.StatusPending,
	}
	receive := tx
	receive.Type = models.TxReceive

	sender.Balance = sender.Balance.Sub(amount)
	sender.Transactions = append(sender.Transactions, tx)
	recipient.Transactions = append(recipient.Transactions, receive)

	if err = l.save(ctx, users); err != nil {
		return models.Transaction{}, err
	}

	metrics.Transferred("sent", amount)
	l.logger.Info("Send coin",
		slog.String("amount", amount.String()),
		slog.String("from", tx.From),
		slog.String("to", tx.To),
		slog.String("tx_id", tx.ID),
	)

	return tx, nil
}

// AcceptCoins credits a pending transfer to its recipient and marks both
// sides of it completed.
func (l *Ledger) AcceptCoins(ctx context.Context, username, transactionID string) (tx models.Transaction, err error) {
	defer func() { metrics.Observe("accept", err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.load(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	i := indexOf(users, username)
	if i < 0 {
		return models.Transaction{}, ErrUserNotFound
	}

	found := -1
	for j, t := range users[i].Transactions {
		if t.ID == transactionID && t.Status == models.StatusPending && t.Type == models.TxReceive && t.Amount.IsPositive() {
			found = j
			break
		}
	}
	if found < 0 {
		return models.Transaction{}, ErrTransactionNotFound
	}

	receiver := &users[i]
	receiver.Balance = receiver.Balance.Add(receiver.Transactions[found].Amount)

	for ui := range users {
		for ti := range users[ui].Transactions {
			if users[ui].Transactions[ti].ID == transactionID {
				users[ui].Transactions[ti].Status = models.StatusCompleted
			}
		}
	}
	tx = receiver.Transactions[found]

	if err = l.save(ctx, users); err != nil {
		return models.Transaction{}, err
	}

	metrics.Transferred("accepted", tx.Amount)
	l.logger.Info("Accept coin",
		slog.String("username", receiver.Username),
		slog.String("amount", tx.Amount.String()),
		slog.String("tx_id", tx.ID),
	)

	return tx, nil
}

// ClaimHourlyReward credits the reward if the cooldown since the previous
// claim has passed. Elapsed time is rounded to the nearest minute.
func (l *Ledger) ClaimHourlyReward(ctx context.Context, username string) (tx models.Transaction, err error) {
	defer func() { metrics.Observe("reward", err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.load(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	i := indexOf(users, username)
	if i < 0 {
		return models.Transaction{}, ErrUserNotFound
	}

	now := l.now()
	if last := users[i].LastRewardClaimed; last != nil {
		cooldownMins := int64(l.cfg.RewardCooldown / time.Minute)
		diffMins := int64(math.Floor(now.Sub(*last).Minutes() + 0.5))
		if diffMins < cooldownMins {
			return models.Transaction{}, &CooldownError{
				Remaining: time.Duration(cooldownMins-diffMins) * time.Minute,
				Unit:      time.Minute,
			}
		}
	}

	amount := decimal.NewFromInt(l.cfg.RewardAmount)
	tx = l.credit(&users[i], models.TxReward, amount)
	users[i].LastRewardClaimed = &now

	if err = l.save(ctx, users); err != nil {
		return models.Transaction{}, err
	}

	metrics.Issued(string(models.TxReward), amount)
	l.logger.Info("Claim reward", slog.String("username", users[i].Username), slog.String("amount", amount.String()))

	return tx, nil
}

// RewardCooldown reports how long the user must wait before the next reward
// claim, in whole seconds. Zero means a claim is possible now.
func (l *Ledger) RewardCooldown(ctx context.Context, username string) (time.Duration, error) {
	user, err := l.GetUser(ctx, username)
	if err != nil {
		return 0, err
	}
	if user.LastRewardClaimed == nil {
		return 0, nil
	}
	elapsed := l.now().Sub(*user.LastRewardClaimed).Truncate(time.Second)
	if elapsed >= l.cfg.RewardCooldown {
		return 0, nil
	}
	return l.cfg.RewardCooldown.Truncate(time.Second) - elapsed, nil
}

// History returns the user's transactions, newest first.
func (l *Ledger) History(ctx context.Context, username string) ([]models.Transaction, error) {
	user, err := l.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	txs := slices.Clone(user.Transactions)
	slices.SortStableFunc(txs, func(a, b models.Transaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return txs, nil
}

// Export returns the stored users blob as is.
func (l *Ledger) Export(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	blob, err := l.store.GetItem(ctx, storage.UsersKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "[]", nil
	}
	return blob, err
}

// Import replaces the stored users with blob after checking it decodes.
func (l *Ledger) Import(ctx context.Context, blob string) error {
	var users []models.User
	if err := json.Unmarshal([]byte(blob), &users); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUsersBlob, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.save(ctx, users); err != nil {
		return err
	}
	l.logger.Info("Users imported", slog.Int("count", len(users)))
	return nil
}

const (
	// amountScale is the most decimal places an amount may carry.
	amountScale = 8
	// maxExponent bounds the exponent before any rescaling is attempted.
	maxExponent = 18
)

// maxAmount keeps amounts within what the float-based wallet could represent exactly.
var maxAmount = decimal.New(1, 15)

// checkAmount rejects amounts that are not positive, carry more than
// amountScale decimal places or exceed maxAmount.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if exp := amount.Exponent(); exp < -maxExponent || exp > maxExponent {
		return ErrInvalidAmount
	}
	if !amount.Truncate(amountScale).Equal(amount) || amount.GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

func (l *Ledger) validStaffCode(code string) bool {
	return strings.ToUpper(strings.TrimSpace(code)) == l.staffCode
}

func (l *Ledger) systemTx(txType models.TransactionType, to string, amount decimal.Decimal) models.Transaction {
	return models.Transaction{
		ID:        l.newID(),
		Type:      txType,
		From:      models.SystemSender,
		To:        to,
		Amount:    amount,
		Timestamp: l.now(),
		Status:    models.StatusCompleted,
	}
}

func (l *Ledger) credit(user *models.User, txType models.TransactionType, amount decimal.Decimal) models.Transaction {
	tx := l.systemTx(txType, user.Username, amount)
	user.Balance = user.Balance.Add(amount)
	user.Transactions = append(user.Transactions, tx)
	return tx
}

func (l *Ledger) load(ctx context.Context) ([]models.User, error) {
	const op = "ledger.load"

	blob, err := l.store.GetItem(ctx, storage.UsersKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var users []models.User
	if err := json.Unmarshal([]byte(blob), &users); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidUsersBlob, err)
	}
	return users, nil
}

func (l *Ledger) save(ctx context.Context, users []models.User) error {
	const op = "ledger.save"

	blob, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := l.store.SetItem(ctx, storage.UsersKey, string(blob)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func indexOf(users []models.User, username string) int {
	return slices.IndexFunc(users, func(u models.User) bool { return u.Is(username) })
}
