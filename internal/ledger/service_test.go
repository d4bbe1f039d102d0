package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/fintrack/internal/model"
	"github.com/hitoshi/fintrack/internal/repository"
	"github.com/hitoshi/fintrack/internal/security"
)

// --- モック定義 ---

type mockCategoryRepo struct {
	listFn   func(ctx context.Context, userID int64) ([]*model.TransactionCategory, error)
	createFn func(ctx context.Context, c *model.TransactionCategory) error
}

func (m *mockCategoryRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.TransactionCategory, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []*model.TransactionCategory{}, nil
}

func (m *mockCategoryRepo) Create(ctx context.Context, c *model.TransactionCategory) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	c.ID = 1
	return nil
}

type mockTransactionRepo struct {
	listFn   func(ctx context.Context, userID int64, f model.TransactionFilter, p *model.FinancePeriod) ([]*model.Transaction, int, error)
	createFn func(ctx context.Context, tx *model.Transaction) (bool, error)
}

func (m *mockTransactionRepo) ListByUserID(ctx context.Context, userID int64, f model.TransactionFilter, p *model.FinancePeriod) ([]*model.Transaction, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, f, p)
	}
	return []*model.Transaction{}, 0, nil
}

func (m *mockTransactionRepo) Create(ctx context.Context, tx *model.Transaction) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, tx)
	}
	tx.ID = 1
	return true, nil
}

type mockPeriodRepo struct {
	findFn   func(ctx context.Context, userID, id int64) (*model.FinancePeriod, error)
	createFn func(ctx context.Context, p *model.FinancePeriod) error
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, userID, id int64) (*model.FinancePeriod, error) {
	if m.findFn != nil {
		return m.findFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockPeriodRepo) ListByUserID(context.Context, int64) ([]*model.FinancePeriod, error) {
	return []*model.FinancePeriod{}, nil
}

func (m *mockPeriodRepo) Create(ctx context.Context, p *model.FinancePeriod) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	p.ID = 1
	return nil
}

type mockWalletRepo struct {
	createFn func(ctx context.Context, w *model.Wallet) error
}

func (m *mockWalletRepo) ListByUserID(context.Context, int64) ([]*model.Wallet, error) {
	return []*model.Wallet{}, nil
}

func (m *mockWalletRepo) Create(ctx context.Context, w *model.Wallet) error {
	if m.createFn != nil {
		return m.createFn(ctx, w)
	}
	w.ID = 1
	return nil
}

type mockReferenceRepo struct{}

func (mockReferenceRepo) ListCurrencies(context.Context) ([]*model.Currency, error) {
	return []*model.Currency{{ID: 1, Name: "JPY"}}, nil
}

func (mockReferenceRepo) ListCapitalStoringPlaces(context.Context) ([]*model.CapitalStoringPlace, error) {
	return []*model.CapitalStoringPlace{{ID: 1, Name: "Cash"}}, nil
}

type mockCapitalRepo struct {
	createFn func(ctx context.Context, ct *model.CapitalTransaction) (bool, error)
}

func (m *mockCapitalRepo) ListByUserID(context.Context, int64) ([]*model.CapitalTransaction, error) {
	return []*model.CapitalTransaction{}, nil
}

func (m *mockCapitalRepo) Create(ctx context.Context, ct *model.CapitalTransaction) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ct)
	}
	ct.ID = 1
	return true, nil
}

type mocks struct {
	categories   *mockCategoryRepo
	transactions *mockTransactionRepo
	periods      *mockPeriodRepo
	wallets      *mockWalletRepo
	capital      *mockCapitalRepo
}

func newTestService() (*Service, *mocks) {
	m := &mocks{
		categories:   &mockCategoryRepo{},
		transactions: &mockTransactionRepo{},
		periods:      &mockPeriodRepo{},
		wallets:      &mockWalletRepo{},
		capital:      &mockCapitalRepo{},
	}
	svc := NewService(Repositories{
		Categories:          m.categories,
		Transactions:        m.transactions,
		FinancePeriods:      m.periods,
		Wallets:             m.wallets,
		References:          mockReferenceRepo{},
		CapitalTransactions: m.capital,
	}, security.NewTextSanitizer())
	return svc, m
}

func requireAPIError(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, code, apiErr.Code)
	return apiErr
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

// --- カテゴリ ---

func TestCreateCategory_SanitizesAndScopesToUser(t *testing.T) {
	svc, m := newTestService()
	var saved *model.TransactionCategory
	m.categories.createFn = func(_ context.Context, c *model.TransactionCategory) error {
		saved = c
		c.ID = 10
		return nil
	}

	got, err := svc.CreateCategory(context.Background(), 7, CategoryInput{Name: "<b>Food</b>", Type: "expense"})
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.ID)
	assert.Equal(t, int64(7), saved.UserID)
	assert.Equal(t, "Food", saved.Name)
	assert.Equal(t, model.TransactionTypeExpense, saved.Type)
}

func TestCreateCategory_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      CategoryInput
		wantMsg string
	}{
		{"name required", CategoryInput{Type: "income"}, "name is required"},
		{"markup only name", CategoryInput{Name: "<script>x</script>", Type: "income"}, "name is required"},
		{"unknown type", CategoryInput{Name: "Food", Type: "transfer"}, "type must be one of: income expense"},
		{"name too long", CategoryInput{Name: strings.Repeat("a", 101), Type: "income"}, "name must be at most 100 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			m.categories.createFn = func(context.Context, *model.TransactionCategory) error {
				t.Error("repository should not be called on invalid input")
				return nil
			}

			_, err := svc.CreateCategory(context.Background(), 1, tt.in)
			apiErr := requireAPIError(t, err, model.ErrCodeValidation)
			assert.Contains(t, apiErr.Message, tt.wantMsg)
		})
	}
}

// --- 取引 ---

func TestListTransactions_DefaultsAndFilters(t *testing.T) {
	svc, m := newTestService()
	var gotFilter model.TransactionFilter
	var gotPeriod *model.FinancePeriod
	m.transactions.listFn = func(_ context.Context, userID int64, f model.TransactionFilter, p *model.FinancePeriod) ([]*model.Transaction, int, error) {
		assert.Equal(t, int64(3), userID)
		gotFilter, gotPeriod = f, p
		return []*model.Transaction{{ID: 1}}, 42, nil
	}

	page, err := svc.ListTransactions(context.Background(), 3, TransactionQuery{CategoryID: 5})
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, gotFilter.Size)
	assert.Equal(t, 0, gotFilter.Page)
	require.NotNil(t, gotFilter.CategoryID)
	assert.Equal(t, int64(5), *gotFilter.CategoryID)
	assert.Nil(t, gotFilter.PeriodID)
	assert.Nil(t, gotPeriod)

	assert.Equal(t, 42, page.TotalCount)
	assert.Equal(t, DefaultPageSize, page.Size)
	assert.Len(t, page.Items, 1)
}

func TestListTransactions_PeriodScopedToUser(t *testing.T) {
	svc, m := newTestService()
	jan := &model.FinancePeriod{ID: 9, UserID: 3, StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)}
	m.periods.findFn = func(_ context.Context, userID, id int64) (*model.FinancePeriod, error) {
		if userID == 3 && id == 9 {
			return jan, nil
		}
		return nil, nil
	}
	var gotPeriod *model.FinancePeriod
	m.transactions.listFn = func(_ context.Context, _ int64, _ model.TransactionFilter, p *model.FinancePeriod) ([]*model.Transaction, int, error) {
		gotPeriod = p
		return []*model.Transaction{}, 0, nil
	}

	_, err := svc.ListTransactions(context.Background(), 3, TransactionQuery{PeriodID: 9, Size: 10})
	require.NoError(t, err)
	assert.Same(t, jan, gotPeriod)

	_, err = svc.ListTransactions(context.Background(), 4, TransactionQuery{PeriodID: 9})
	requireAPIError(t, err, model.ErrCodeFinancePeriodMissing)
}

func TestListTransactions_InvalidPaging(t *testing.T) {
	svc, m := newTestService()
	m.transactions.listFn = func(context.Context, int64, model.TransactionFilter, *model.FinancePeriod) ([]*model.Transaction, int, error) {
		t.Fatal("repository must not be queried for invalid paging")
		return nil, 0, nil
	}

	_, err := svc.ListTransactions(context.Background(), 1, TransactionQuery{Page: -1})
	requireAPIError(t, err, model.ErrCodeInvalidQuery)

	_, err = svc.ListTransactions(context.Background(), 1, TransactionQuery{Page: MaxPage + 1})
	requireAPIError(t, err, model.ErrCodeInvalidQuery)

	_, err = svc.ListTransactions(context.Background(), 1, TransactionQuery{Page: math.MaxInt / 100, Size: MaxPageSize})
	requireAPIError(t, err, model.ErrCodeInvalidQuery)

	_, err = svc.ListTransactions(context.Background(), 1, TransactionQuery{Size: MaxPageSize + 1})
	requireAPIError(t, err, model.ErrCodeInvalidQuery)
}

func TestCreateTransaction_Success(t *testing.T) {
	svc, m := newTestService()
	var saved *model.Transaction
	m.transactions.createFn = func(_ context.Context, tx *model.Transaction) (bool, error) {
		saved = tx
		tx.ID = 55
		return true, nil
	}

	got, err := svc.CreateTransaction(context.Background(), 2, TransactionInput{
		CategoryID: 4,
		Date:       "2026-03-14",
		Amount:     12.5,
		Comment:    strPtr(" <i>lunch</i> "),
		Type:       "expense",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(55), got.ID)
	assert.Equal(t, int64(2), saved.UserID)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), saved.Date)
	require.NotNil(t, saved.Comment)
	assert.Equal(t, "lunch", *saved.Comment)
	assert.Nil(t, saved.WalletID)
}

func TestCreateTransaction_Validation(t *testing.T) {
	valid := TransactionInput{CategoryID: 1, Date: "2026-03-14", Amount: 1, Type: "income"}

	tests := []struct {
		name    string
		mutate  func(in *TransactionInput)
		wantMsg string
	}{
		{"missing category", func(in *TransactionInput) { in.CategoryID = 0 }, "categoryId is required"},
		{"bad date", func(in *TransactionInput) { in.Date = "14/03/2026" }, "date must be a date in YYYY-MM-DD format"},
		{"datetime rejected", func(in *TransactionInput) { in.Date = "2026-03-14T10:00:00" }, "date must be a date"},
		{"zero amount", func(in *TransactionInput) { in.Amount = 0 }, "amount must be greater than 0"},
		{"bad type", func(in *TransactionInput) { in.Type = "refund" }, "type must be one of"},
		{"bad wallet", func(in *TransactionInput) { in.WalletID = int64Ptr(-1) }, "walletId must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			in := valid
			tt.mutate(&in)

			_, err := svc.CreateTransaction(context.Background(), 1, in)
			apiErr := requireAPIError(t, err, model.ErrCodeValidation)
			assert.Contains(t, apiErr.Message, tt.wantMsg)
		})
	}
}

func TestCreateTransaction_ForeignCategory(t *testing.T) {
	svc, m := newTestService()
	m.transactions.createFn = func(context.Context, *model.Transaction) (bool, error) { return false, nil }

	_, err := svc.CreateTransaction(context.Background(), 1, TransactionInput{CategoryID: 99, Date: "2026-01-01", Amount: 1, Type: "expense"})
	requireAPIError(t, err, model.ErrCodeCategoryNotFound)
}

func TestCreateTransaction_ForeignWallet(t *testing.T) {
	svc, m := newTestService()
	m.transactions.createFn = func(context.Context, *model.Transaction) (bool, error) { return false, nil }
	m.categories.listFn = func(context.Context, int64) ([]*model.TransactionCategory, error) {
		return []*model.TransactionCategory{{ID: 4}}, nil
	}

	_, err := svc.CreateTransaction(context.Background(), 1, TransactionInput{CategoryID: 4, WalletID: int64Ptr(8), Date: "2026-01-01", Amount: 1, Type: "expense"})
	apiErr := requireAPIError(t, err, model.ErrCodeReferenceNotFound)
	assert.Contains(t, apiErr.Message, "walletId")
}

func TestCreateTransaction_RepositoryError(t *testing.T) {
	svc, m := newTestService()
	dbErr := errors.New("connection reset")
	m.transactions.createFn = func(context.Context, *model.Transaction) (bool, error) { return false, dbErr }

	_, err := svc.CreateTransaction(context.Background(), 1, TransactionInput{CategoryID: 4, Date: "2026-01-01", Amount: 1, Type: "expense"})
	assert.ErrorIs(t, err, dbErr)
}

// --- 集計期間 ---

func TestCreateFinancePeriod(t *testing.T) {
	svc, m := newTestService()
	var saved *model.FinancePeriod
	m.periods.createFn = func(_ context.Context, p *model.FinancePeriod) error {
		saved = p
		p.ID = 3
		return nil
	}

	got, err := svc.CreateFinancePeriod(context.Background(), 1, FinancePeriodInput{StartDate: "2026-01-25", EndDate: "2026-02-24", Name: "Feb salary"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, "Feb salary", saved.Name)

	sameDay, err := svc.CreateFinancePeriod(context.Background(), 1, FinancePeriodInput{StartDate: "2026-01-25", EndDate: "2026-01-25", Name: "One day"})
	require.NoError(t, err)
	assert.True(t, sameDay.StartDate.Equal(sameDay.EndDate))
}

func TestCreateFinancePeriod_EndBeforeStart(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateFinancePeriod(context.Background(), 1, FinancePeriodInput{StartDate: "2026-02-01", EndDate: "2026-01-31", Name: "Broken"})
	apiErr := requireAPIError(t, err, model.ErrCodeValidation)
	assert.Contains(t, apiErr.Message, "endDate")
}

// --- ウォレット ---

func TestCreateWallet_EmptyDescriptionBecomesNil(t *testing.T) {
	svc, m := newTestService()
	var saved *model.Wallet
	m.wallets.createFn = func(_ context.Context, w *model.Wallet) error {
		saved = w
		return nil
	}

	_, err := svc.CreateWallet(context.Background(), 1, WalletInput{Name: "Main", Description: strPtr("   ")})
	require.NoError(t, err)
	assert.Equal(t, "Main", saved.Name)
	assert.Nil(t, saved.Description)
}

// --- 参照データ ---

func TestListReferenceData(t *testing.T) {
	svc, _ := newTestService()

	currencies, err := svc.ListCurrencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "JPY", currencies[0].Name)

	places, err := svc.ListCapitalStoringPlaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cash", places[0].Name)
}

// --- 資産移動 ---

func TestCreateCapitalTransaction(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		created  bool
		wantCode string
	}{
		{"created", nil, true, ""},
		{"unknown currency", repository.ErrReferenceNotFound, false, model.ErrCodeReferenceNotFound},
		{"foreign wallet", nil, false, model.ErrCodeReferenceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			m.capital.createFn = func(_ context.Context, ct *model.CapitalTransaction) (bool, error) {
				ct.ID = 12
				return tt.created, tt.repoErr
			}

			got, err := svc.CreateCapitalTransaction(context.Background(), 1, CapitalTransactionInput{
				CurrencyID: 1, WalletID: int64Ptr(2), Date: "2026-04-01", Amount: -300,
			})
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(12), got.ID)
				assert.Equal(t, -300.0, got.Amount)
				return
			}
			requireAPIError(t, err, tt.wantCode)
		})
	}
}

func TestCreateCapitalTransaction_ZeroAmount(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateCapitalTransaction(context.Background(), 1, CapitalTransactionInput{CurrencyID: 1, Date: "2026-04-01"})
	apiErr := requireAPIError(t, err, model.ErrCodeValidation)
	assert.Contains(t, apiErr.Message, "amount must not be 0")
}
