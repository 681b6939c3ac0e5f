package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/IlyasAtabaev731/lsc-coin/internal/config"
	"github.com/IlyasAtabaev731/lsc-coin/internal/domain/models"
	"github.com/IlyasAtabaev731/lsc-coin/internal/ledger"
	"github.com/IlyasAtabaev731/lsc-coin/internal/metrics"
	"github.com/IlyasAtabaev731/lsc-coin/internal/session"
)

// Wallet is the part of the ledger the API serves.
type Wallet interface {
	Login(ctx context.Context, username string, role models.Role, password, staffCode string) (models.User, error)
	Register(ctx context.Context, username string, role models.Role, password, staffCode string) (models.User, error)
	GetUser(ctx context.Context, username string) (models.User, error)
	StaffMembers(ctx context.Context) ([]models.User, error)
	History(ctx context.Context, username string) ([]models.Transaction, error)
	GenerateRandomCoins(ctx context.Context, username string) (models.Transaction, error)
	SendCoins(ctx context.Context, from, to string, amount decimal.Decimal) (models.Transaction, error)
	AcceptCoins(ctx context.Context, username, transactionID string) (models.Transaction, error)
	ClaimHourlyReward(ctx context.Context, username string) (models.Transaction, error)
	RewardCooldown(ctx context.Context, username string) (time.Duration, error)
}

type Sessions interface {
	Open(ctx context.Context, username string) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Close(ctx context.Context, token string) error
}

type ctxKey string

const (
	usernameKey ctxKey = "username"
	tokenKey    ctxKey = "token"
)

type APIServer struct {
	config   *config.Config
	logger   *slog.Logger
	server   *http.Server
	wallet   Wallet
	sessions Sessions
}

func New(config *config.Config, logger *slog.Logger, wallet Wallet, sessions Sessions) *APIServer {
	return &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadHeaderTimeout: 5 * time.Second,
		},
		wallet:   wallet,
		sessions: sessions,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	s.configureRouter()

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.Use(s.countRequests)

	router.HandleFunc("/health", s.healthHandler()).Methods("GET")
	if s.config.Metrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	router.HandleFunc("/api/auth/register", s.registerHandler(models.RoleUser)).Methods("POST")
	router.HandleFunc("/api/auth/login", s.loginHandler(models.RoleUser)).Methods("POST")
	router.HandleFunc("/api/staff/register", s.registerHandler(models.RoleStaff)).Methods("POST")
	router.HandleFunc("/api/staff/login", s.loginHandler(models.RoleStaff)).Methods("POST")
	router.HandleFunc("/api/auth/logout", s.authenticate(s.logoutHandler())).Methods("POST")

	router.HandleFunc("/api/me", s.authenticate(s.meHandler())).Methods("GET")
	router.HandleFunc("/api/transactions", s.authenticate(s.transactionsHandler())).Methods("GET")
	router.HandleFunc("/api/transactions/{id}/accept", s.authenticate(s.acceptHandler())).Methods("POST")
	router.HandleFunc("/api/coins/generate", s.authenticate(s.generateHandler())).Methods("POST")
	router.HandleFunc("/api/coins/send", s.authenticate(s.sendCoinHandler())).Methods("POST")
	router.HandleFunc("/api/reward", s.authenticate(s.rewardHandler())).Methods("POST")
	router.HandleFunc("/api/reward", s.authenticate(s.rewardStatusHandler())).Methods("GET")
	router.HandleFunc("/api/staff", s.staffHandler()).Methods("GET")

	s.server.Handler = router
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *APIServer) respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(Response{Success: status < 400, Message: message, Data: data})
	if err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

// fail answers with the status matching err. Unknown errors are logged and
// hidden from the client.
func (s *APIServer) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
		s.respond(w, status, "Something went wrong. Please try again.", nil)
		return
	}
	s.respond(w, status, err.Error(), nil)
}

func statusFor(err error) int {
	var (
		cooldown *ledger.CooldownError
		length   *ledger.LengthError
		mismatch *ledger.RoleMismatchError
	)
	switch {
	case errors.As(err, &cooldown):
		return http.StatusTooManyRequests
	case errors.As(err, &length),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, ledger.ErrStaffRecipient),
		errors.Is(err, ledger.ErrInvalidRole),
		errors.Is(err, ledger.ErrInvalidStaffCodeReg):
		return http.StatusBadRequest
	case errors.As(err, &mismatch),
		errors.Is(err, ledger.ErrIncorrectPassword),
		errors.Is(err, ledger.ErrInvalidStaffCode),
		errors.Is(err, session.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrSenderNotFound),
		errors.Is(err, ledger.ErrRecipientNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUsernameTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type AuthRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	StaffCode string `json:"staffCode"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *APIServer) registerHandler(role models.Role) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, "Invalid request body.", nil)
			return
		}

		user, err := s.wallet.Register(r.Context(), req.Username, role, req.Password, req.StaffCode)
		if err != nil {
			s.fail(w, err)
			return
		}

		token, err := s.sessions.Open(r.Context(), user.Username)
		if err != nil {
			s.fail(w, err)
			return
		}

		s.respond(w, http.StatusCreated, ledger.MsgRegistrationSuccessful, AuthResponse{Token: token, User: user.Public()})
	}
}

func (s *APIServer) loginHandler(role models.Role) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, "Invalid request body.", nil)
			return
		}

		user, err := s.wallet.Login(r.Context(), req.Username, role, req.Password, req.StaffCode)
		if errors.Is(err, ledger.ErrUserNotFound) {
			s.respond(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		if err != nil {
			s.fail(w, err)
			return
		}

		token, err := s.sessions.Open(r.Context(), user.Username)
		if err != nil {
			s.fail(w, err)
			return
		}

		s.respond(w, http.StatusOK, ledger.MsgLoginSuccessful, AuthResponse{Token: token, User: user.Public()})
	}
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			s.respond(w, http.StatusUnauthorized, "Missing token.", nil)
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respond(w, http.StatusUnauthorized, "Malformed token.", nil)
			return
		}

		tokenStr := parts[1]

		username, err := s.sessions.Resolve(r.Context(), tokenStr)
		if err != nil {
			s.fail(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		ctx = context.WithValue(ctx, tokenKey, tokenStr)
		next(w, r.WithContext(ctx))
	}
}

func currentUser(r *http.Request) string {
	username, _ := r.Context().Value(usernameKey).(string)
	return username
}

func (s *APIServer) logoutHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := r.Context().Value(tokenKey).(string)
		if err := s.sessions.Close(r.Context(), token); err != nil {
			s.fail(w, err)
			return
		}
		s.logger.Info("User logged out", slog.String("username", currentUser(r)))
		s.respond(w, http.StatusOK, "Logged out.", nil)
	}
}

func (s *APIServer) meHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.wallet.GetUser(r.Context(), currentUser(r))
		if err != nil {
			s.fail(w, err)
			return
		}
		s.respond(w, http.StatusOK, "", user.Public())
	}
}

// HistoryEntry is a transaction as the history view shows it.
type HistoryEntry struct {
	models.Transaction
	Title        string          `json:"title"`
	SignedAmount decimal.Decimal `json:"signedAmount"`
}

func (s *APIServer) transactionsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := s.wallet.History(r.Context(), currentUser(r))
		if err != nil {
			s.fail(w, err)
			return
		}

		entries := make([]HistoryEntry, 0, len(txs))
		for _, tx := range txs {
			entries = append(entries, HistoryEntry{
				Transaction:  tx,
				Title:        tx.Type.Title(tx),
				SignedAmount: tx.Signed(),
			})
		}
		s.respond(w, http.StatusOK, "", entries)
	}
}

type TransactionResponse struct {
	Transaction models.Transaction `json:"transaction"`
	Balance     decimal.Decimal    `json:"balance"`
}

// withBalance answers a successful mutation with the transaction and the
// caller's fresh balance.
func (s *APIServer) withBalance(w http.ResponseWriter, r *http.Request, message string, tx models.Transaction) {
	user, err := s.wallet.GetUser(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, message, TransactionResponse{Transaction: tx, Balance: user.Balance})
}

func (s *APIServer) generateHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.wallet.GenerateRandomCoins(r.Context(), currentUser(r))
		if err != nil {
			s.fail(w, err)
			return
		}
		s.withBalance(w, r, ledger.GeneratedMessage(tx), tx)
	}
}

type SendCoinRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *APIServer) sendCoinHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendCoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, ledger.ErrInvalidAmount.Error(), nil)
			return
		}

		tx, err := s.wallet.SendCoins(r.Context(), currentUser(r), req.To, req.Amount)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.withBalance(w, r, ledger.SentMessage(tx), tx)
	}
}

func (s *APIServer) acceptHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		tx, err := s.wallet.AcceptCoins(r.Context(), currentUser(r), id)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.withBalance(w, r, ledger.AcceptedMessage(tx), tx)
	}
}

func (s *APIServer) rewardHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.wallet.ClaimHourlyReward(r.Context(), currentUser(r))
		if err != nil {
			s.fail(w, err)
			return
		}
		s.withBalance(w, r, ledger.RewardMessage(tx), tx)
	}
}

type RewardStatus struct {
	CanClaim         bool  `json:"canClaim"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}

func (s *APIServer) rewardStatusHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		remaining, err := s.wallet.RewardCooldown(r.Context(), currentUser(r))
		if err != nil {
			s.fail(w, err)
			return
		}
		s.respond(w, http.StatusOK, "", RewardStatus{
			CanClaim:         remaining <= 0,
			RemainingSeconds: int64(remaining / time.Second),
		})
	}
}

func (s *APIServer) staffHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		staff, err := s.wallet.StaffMembers(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		names := make([]string, 0, len(staff))
		for _, u := range staff {
			names = append(names, u.Username)
		}
		s.respond(w, http.StatusOK, "", names)
	}
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, http.StatusOK, "ok", nil)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *APIServer) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
