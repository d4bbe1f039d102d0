package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/fintrack/internal/auth"
	"github.com/hitoshi/fintrack/internal/ledger"
	"github.com/hitoshi/fintrack/internal/middleware"
	"github.com/hitoshi/fintrack/internal/model"
	"github.com/hitoshi/fintrack/internal/repository"
	"github.com/hitoshi/fintrack/internal/token"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	getLoginURLFn    func() string
	handleCallbackFn func(ctx context.Context, code string) (*auth.CallbackResult, error)
}

func (m *mockAuthService) GetLoginURL() string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn()
	}
	return "https://accounts.google.com/o/oauth2/auth"
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.CallbackResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, model.NewInternalError()
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	currentFn func(ctx context.Context, subID string) (*model.User, error)
}

func (m *mockUserService) Current(ctx context.Context, subID string) (*model.User, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, subID)
	}
	return nil, model.NewUserNotFoundError()
}

// mockLedgerService はLedgerServiceInterfaceのモック実装。
// 未設定の関数は空の結果を返す。
type mockLedgerService struct {
	listCategoriesFn           func(ctx context.Context, userID int64) ([]*model.TransactionCategory, error)
	createCategoryFn           func(ctx context.Context, userID int64, in ledger.CategoryInput) (*model.TransactionCategory, error)
	listTransactionsFn         func(ctx context.Context, userID int64, q ledger.TransactionQuery) (*model.Page[*model.Transaction], error)
	createTransactionFn        func(ctx context.Context, userID int64, in ledger.TransactionInput) (*model.Transaction, error)
	listFinancePeriodsFn       func(ctx context.Context, userID int64) ([]*model.FinancePeriod, error)
	createFinancePeriodFn      func(ctx context.Context, userID int64, in ledger.FinancePeriodInput) (*model.FinancePeriod, error)
	listWalletsFn              func(ctx context.Context, userID int64) ([]*model.Wallet, error)
	createWalletFn             func(ctx context.Context, userID int64, in ledger.WalletInput) (*model.Wallet, error)
	listCurrenciesFn           func(ctx context.Context) ([]*model.Currency, error)
	listCapitalStoringPlacesFn func(ctx context.Context) ([]*model.CapitalStoringPlace, error)
	listCapitalTransactionsFn  func(ctx context.Context, userID int64) ([]*model.CapitalTransaction, error)
	createCapitalTransactionFn func(ctx context.Context, userID int64, in ledger.CapitalTransactionInput) (*model.CapitalTransaction, error)
}

func (m *mockLedgerService) ListCategories(ctx context.Context, userID int64) ([]*model.TransactionCategory, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLedgerService) CreateCategory(ctx context.Context, userID int64, in ledger.CategoryInput) (*model.TransactionCategory, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, userID, in)
	}
	return &model.TransactionCategory{ID: 1, UserID: userID, Name: in.Name, Type: model.TransactionType(in.Type)}, nil
}

func (m *mockLedgerService) ListTransactions(ctx context.Context, userID int64, q ledger.TransactionQuery) (*model.Page[*model.Transaction], error) {
	if m.listTransactionsFn != nil {
		return m.listTransactionsFn(ctx, userID, q)
	}
	return &model.Page[*model.Transaction]{Page: q.Page, Size: q.Size}, nil
}

func (m *mockLedgerService) CreateTransaction(ctx context.Context, userID int64, in ledger.TransactionInput) (*model.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(ctx, userID, in)
	}
	return nil, model.NewInternalError()
}

func (m *mockLedgerService) ListFinancePeriods(ctx context.Context, userID int64) ([]*model.FinancePeriod, error) {
	if m.listFinancePeriodsFn != nil {
		return m.listFinancePeriodsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLedgerService) CreateFinancePeriod(ctx context.Context, userID int64, in ledger.FinancePeriodInput) (*model.FinancePeriod, error) {
	if m.createFinancePeriodFn != nil {
		return m.createFinancePeriodFn(ctx, userID, in)
	}
	return nil, model.NewInternalError()
}

func (m *mockLedgerService) ListWallets(ctx context.Context, userID int64) ([]*model.Wallet, error) {
	if m.listWalletsFn != nil {
		return m.listWalletsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLedgerService) CreateWallet(ctx context.Context, userID int64, in ledger.WalletInput) (*model.Wallet, error) {
	if m.createWalletFn != nil {
		return m.createWalletFn(ctx, userID, in)
	}
	return &model.Wallet{ID: 1, UserID: userID, Name: in.Name, Description: in.Description}, nil
}

func (m *mockLedgerService) ListCurrencies(ctx context.Context) ([]*model.Currency, error) {
	if m.listCurrenciesFn != nil {
		return m.listCurrenciesFn(ctx)
	}
	return nil, nil
}

func (m *mockLedgerService) ListCapitalStoringPlaces(ctx context.Context) ([]*model.CapitalStoringPlace, error) {
	if m.listCapitalStoringPlacesFn != nil {
		return m.listCapitalStoringPlacesFn(ctx)
	}
	return nil, nil
}

func (m *mockLedgerService) ListCapitalTransactions(ctx context.Context, userID int64) ([]*model.CapitalTransaction, error) {
	if m.listCapitalTransactionsFn != nil {
		return m.listCapitalTransactionsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLedgerService) CreateCapitalTransaction(ctx context.Context, userID int64, in ledger.CapitalTransactionInput) (*model.CapitalTransaction, error) {
	if m.createCapitalTransactionFn != nil {
		return m.createCapitalTransactionFn(ctx, userID, in)
	}
	return nil, model.NewInternalError()
}

// --- テストヘルパー ---

const testUserID int64 = 42

// withClaims はゲートを通過した状態のリクエストを返す。
func withClaims(r *http.Request, userID int64, subID string) *http.Request {
	return r.WithContext(middleware.ContextWithClaims(r.Context(), &token.Claims{UserID: userID, SubID: subID}))
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Config{Secret: "handler-secret", Algorithm: "HS256", TTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

// sessionCookieFor は指定ユーザーの有効なセッションCookieを返す。
func sessionCookieFor(t *testing.T, codec *token.Codec, user *model.User) *http.Cookie {
	t.Helper()
	raw, err := codec.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return &http.Cookie{Name: middleware.SessionCookieName, Value: raw}
}

// memUserStore はsub_idで一意なインメモリのユーザーストア。
type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*model.User{}}
}

func (s *memUserStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) FindBySubID(_ context.Context, subID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[subID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) InsertIfAbsent(_ context.Context, user *model.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.SubID]; exists {
		return false, nil
	}
	s.nextID++
	user.ID = s.nextID
	cp := *user
	s.users[user.SubID] = &cp
	return true, nil
}

func (s *memUserStore) WithinTx(_ context.Context, fn func(repo repository.UserRepository) error) error {
	return fn(s)
}

func (s *memUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
