package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/IlyasAtabaev731/lsc-coin/internal/config"
	"github.com/IlyasAtabaev731/lsc-coin/internal/domain/models"
	"github.com/IlyasAtabaev731/lsc-coin/internal/ledger"
	"github.com/IlyasAtabaev731/lsc-coin/internal/session"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage/memory"
)

// ========================================================
// Helpers
// ========================================================

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*APIServer, *ledger.Ledger) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{ApiHost: "localhost", ApiPort: 8080, Metrics: true}

	l := ledger.New(store, logger, config.DefaultWallet(), "LSCS")
	sessions := session.New(store, logger, "secret", time.Hour)

	s := New(cfg, logger, l, sessions)
	s.configureRouter()
	return s, l
}

func doRequest(t *testing.T, s *APIServer, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)

	var env envelope
	if rr.Header().Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&env); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return rr, env
}

func registerUser(t *testing.T, s *APIServer, username string) string {
	t.Helper()
	rr, env := doRequest(t, s, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: expected status 201, got %d (%s)", username, rr.Code, env.Message)
	}
	var resp AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode auth response: %v", err)
	}
	return resp.Token
}

// ========================================================
// Tests for Auth Handlers
// ========================================================

func TestAuthRegistration(t *testing.T) {
	s, _ := newTestServer(t)

	rr, env := doRequest(t, s, "POST", "/api/auth/register", "", map[string]string{
		"username": "newuser",
		"password": "password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if !env.Success || env.Message != ledger.MsgRegistrationSuccessful {
		t.Errorf("unexpected envelope: %+v", env)
	}

	var resp AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if resp.User.Username != "newuser" || resp.User.PasswordHash != "" || resp.User.Balance.String() != "10" {
		t.Errorf("unexpected user: %+v", resp.User)
	}

	rr, env = doRequest(t, s, "POST", "/api/auth/register", "", map[string]string{
		"username": "NewUser",
		"password": "password",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate, got %d", rr.Code)
	}
	if env.Success || env.Message != "Username already exists." {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestAuthRegistrationValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"short username", "/api/auth/register", map[string]string{"username": "ab", "password": "password"}, http.StatusBadRequest, "Username must be at least 3 characters."},
		{"short password", "/api/auth/register", map[string]string{"username": "abc", "password": "pw"}, http.StatusBadRequest, "Password must be at least 6 characters."},
		{"bad staff code", "/api/staff/register", map[string]string{"username": "boss", "staffCode": "nope"}, http.StatusBadRequest, "Invalid staff code for registration."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := doRequest(t, s, "POST", tt.path, "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if env.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, env.Message)
			}
		})
	}

	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.registerHandler(models.RoleUser)).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed body, got %d", rr.Code)
	}
}

func TestAuthLogin(t *testing.T) {
	s, _ := newTestServer(t)
	registerUser(t, s, "existing")

	if rr, _ := doRequest(t, s, "POST", "/api/staff/register", "", map[string]string{"username": "boss", "staffCode": "lscs"}); rr.Code != http.StatusCreated {
		t.Fatalf("staff register: expected status 201, got %d", rr.Code)
	}

	tests := []struct {
		name       string
		path       string
		body       map[string]string
		wantStatus int
		wantMsg    string
	}{
		{"valid login", "/api/auth/login", map[string]string{"username": "existing", "password": "password"}, http.StatusOK, "Login successful."},
		{"wrong password", "/api/auth/login", map[string]string{"username": "existing", "password": "wrongpassword"}, http.StatusUnauthorized, "Incorrect password."},
		{"unknown user", "/api/auth/login", map[string]string{"username": "ghost", "password": "password"}, http.StatusUnauthorized, "User not found."},
		{"staff at user login", "/api/auth/login", map[string]string{"username": "boss", "password": "x"}, http.StatusUnauthorized, "Incorrect role. Try the staff login."},
		{"staff login", "/api/staff/login", map[string]string{"username": "boss", "staffCode": " LSCS "}, http.StatusOK, "Login successful."},
		{"staff bad code", "/api/staff/login", map[string]string{"username": "boss", "staffCode": "LSC"}, http.StatusUnauthorized, "Invalid staff code."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := doRequest(t, s, "POST", tt.path, "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if env.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, env.Message)
			}
			if tt.wantStatus == http.StatusOK {
				var resp AuthResponse
				if err := json.Unmarshal(env.Data, &resp); err != nil || resp.Token == "" {
					t.Errorf("expected token, got %s (%v)", env.Data, err)
				}
			}
		})
	}
}

func TestAuthenticateAndLogout(t *testing.T) {
	s, _ := newTestServer(t)
	token := registerUser(t, s, "alice")

	if rr, _ := doRequest(t, s, "GET", "/api/me", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for malformed header, got %d", rr.Code)
	}

	rr, env := doRequest(t, s, "GET", "/api/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var me models.User
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if me.Username != "alice" || me.PasswordHash != "" {
		t.Errorf("unexpected user: %+v", me)
	}

	if rr, _ := doRequest(t, s, "POST", "/api/auth/logout", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: expected status 200, got %d", rr.Code)
	}
	if rr, _ := doRequest(t, s, "GET", "/api/me", token, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 after logout, got %d", rr.Code)
	}
}

// ========================================================
// Tests for Coin Handlers
// ========================================================

func TestSendAndAcceptHandlers(t *testing.T) {
	s, l := newTestServer(t)
	alice := registerUser(t, s, "alice")
	bob := registerUser(t, s, "bob")

	rr, env := doRequest(t, s, "POST", "/api/coins/send", alice, map[string]any{"to": "bob", "amount": "3.5"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, env.Message)
	}
	if env.Message != "Successfully sent 3.5 LSC to bob." {
		t.Errorf("unexpected message %q", env.Message)
	}
	var sent TransactionResponse
	if err := json.Unmarshal(env.Data, &sent); err != nil {
		t.Fatalf("failed to decode send response: %v", err)
	}
	if sent.Balance.String() != "6.5" || sent.Transaction.Status != models.StatusPending {
		t.Errorf("unexpected send response: %+v", sent)
	}

	// Numbers are accepted as well as strings.
	if rr, env := doRequest(t, s, "POST", "/api/coins/send", alice, map[string]any{"to": "bob", "amount": 100}); rr.Code != http.StatusPaymentRequired {
		t.Errorf("expected status 402, got %d (%s)", rr.Code, env.Message)
	}

	// Accept through the handler directly, the way the router would call it.
	req := httptest.NewRequest("POST", "/api/transactions/"+sent.Transaction.ID+"/accept", nil)
	req = mux.SetURLVars(req, map[string]string{"id": sent.Transaction.ID})
	req.Header.Set("Authorization", "Bearer "+bob)
	rec := httptest.NewRecorder()
	http.HandlerFunc(s.authenticate(s.acceptHandler())).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected status 200, got %d", rec.Code)
	}

	user, err := l.GetUser(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Balance.String() != "13.5" {
		t.Errorf("expected bob balance 13.5, got %s", user.Balance)
	}

	if rr, _ := doRequest(t, s, "POST", "/api/transactions/"+sent.Transaction.ID+"/accept", bob, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second accept: expected status 404, got %d", rr.Code)
	}

	rr, env = doRequest(t, s, "GET", "/api/transactions", bob, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("history: expected status 200, got %d", rr.Code)
	}
	var history []HistoryEntry
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(history))
	}
	if history[0].Title != "Received from alice" || history[0].Status != models.StatusCompleted {
		t.Errorf("unexpected newest entry: %+v", history[0])
	}
}

func TestSendCoinRejections(t *testing.T) {
	s, _ := newTestServer(t)
	alice := registerUser(t, s, "alice")
	registerUser(t, s, "bob")
	if rr, _ := doRequest(t, s, "POST", "/api/staff/register", "", map[string]string{"username": "boss", "staffCode": "LSCS"}); rr.Code != http.StatusCreated {
		t.Fatalf("staff register: expected status 201, got %d", rr.Code)
	}

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantMsg    string
	}{
		{"missing amount", map[string]any{"to": "bob"}, http.StatusBadRequest, "Please enter a valid amount."},
		{"negative amount", map[string]any{"to": "bob", "amount": "-2"}, http.StatusBadRequest, "Please enter a valid amount."},
		{"unknown recipient", map[string]any{"to": "ghost", "amount": "1"}, http.StatusNotFound, "Recipient not found."},
		{"self", map[string]any{"to": "ALICE", "amount": "1"}, http.StatusBadRequest, "You can't send coins to yourself."},
		{"staff", map[string]any{"to": "boss", "amount": "1"}, http.StatusBadRequest, "You cannot send coins to a staff member."},
		{"insufficient", map[string]any{"to": "bob", "amount": "11"}, http.StatusPaymentRequired, "Insufficient funds."},
		{"tiny exponent", map[string]any{"to": "bob", "amount": "1e-2000000"}, http.StatusBadRequest, "Please enter a valid amount."},
		{"malformed amount", map[string]any{"to": "bob", "amount": "ten"}, http.StatusBadRequest, "Please enter a valid amount."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := doRequest(t, s, "POST", "/api/coins/send", alice, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if env.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, env.Message)
			}
		})
	}
}

func TestGenerateAndReward(t *testing.T) {
	s, _ := newTestServer(t)
	alice := registerUser(t, s, "alice")

	rr, env := doRequest(t, s, "POST", "/api/coins/generate", alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: expected status 200, got %d", rr.Code)
	}
	var generated TransactionResponse
	if err := json.Unmarshal(env.Data, &generated); err != nil {
		t.Fatalf("failed to decode generate response: %v", err)
	}
	amount := generated.Transaction.Amount
	if amount.LessThan(decimal.NewFromInt(1)) || amount.GreaterThan(decimal.NewFromInt(10)) {
		t.Errorf("generated amount %s out of range", amount)
	}

	if rr, env := doRequest(t, s, "POST", "/api/coins/generate", alice, nil); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second generate: expected status 429, got %d (%s)", rr.Code, env.Message)
	}

	rr, env = doRequest(t, s, "GET", "/api/reward", alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reward status: expected status 200, got %d", rr.Code)
	}
	var status RewardStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("failed to decode reward status: %v", err)
	}
	if !status.CanClaim || status.RemainingSeconds != 0 {
		t.Errorf("unexpected reward status before claim: %+v", status)
	}

	rr, env = doRequest(t, s, "POST", "/api/reward", alice, nil)
	if rr.Code != http.StatusOK || env.Message != "Successfully claimed 100 LSC!" {
		t.Fatalf("reward: got %d %q", rr.Code, env.Message)
	}

	rr, env = doRequest(t, s, "POST", "/api/reward", alice, nil)
	if rr.Code != http.StatusTooManyRequests || env.Message != "Please wait 60 more minutes." {
		t.Errorf("second reward: got %d %q", rr.Code, env.Message)
	}

	_, env = doRequest(t, s, "GET", "/api/reward", alice, nil)
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("failed to decode reward status: %v", err)
	}
	if status.CanClaim || status.RemainingSeconds <= 0 || status.RemainingSeconds > 3600 {
		t.Errorf("unexpected reward status after claim: %+v", status)
	}
}

func TestStaffAndHealth(t *testing.T) {
	s, _ := newTestServer(t)
	registerUser(t, s, "alice")
	doRequest(t, s, "POST", "/api/staff/register", "", map[string]string{"username": "boss", "staffCode": "LSCS"})

	rr, env := doRequest(t, s, "GET", "/api/staff", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var names []string
	if err := json.Unmarshal(env.Data, &names); err != nil {
		t.Fatalf("failed to decode staff: %v", err)
	}
	if len(names) != 1 || names[0] != "boss" {
		t.Errorf("unexpected staff list: %v", names)
	}

	if rr, _ := doRequest(t, s, "GET", "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("health: expected status 200, got %d", rr.Code)
	}
	if rr, _ := doRequest(t, s, "GET", "/metrics", "", nil); rr.Code != http.StatusOK {
		t.Errorf("metrics: expected status 200, got %d", rr.Code)
	}
}

// ========================================================
// Storage failures
// ========================================================

type brokenWallet struct {
	Wallet
}

func (brokenWallet) StaffMembers(ctx context.Context) ([]models.User, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{ApiHost: "localhost", ApiPort: 8080}
	s := New(cfg, logger, brokenWallet{}, nil)

	req := httptest.NewRequest("GET", "/api/staff", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(s.staffHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	var env envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if env.Success || env.Message == "disk on fire" {
		t.Errorf("internal error leaked: %+v", env)
	}
}
