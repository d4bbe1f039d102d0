package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/hitoshi/fintrack/internal/ledger"
	"github.com/hitoshi/fintrack/internal/middleware"
	"github.com/hitoshi/fintrack/internal/model"
)

// errMissingClaims はゲートを通らずにハンドラーが呼ばれた場合のエラー。
var errMissingClaims = errors.New("session claims missing from request context")

// LedgerServiceInterface は家計簿ハンドラーが必要とするサービスインターフェース。
type LedgerServiceInterface interface {
	ListCategories(ctx context.Context, userID int64) ([]*model.TransactionCategory, error)
	CreateCategory(ctx context.Context, userID int64, in ledger.CategoryInput) (*model.TransactionCategory, error)
	ListTransactions(ctx context.Context, userID int64, q ledger.TransactionQuery) (*model.Page[*model.Transaction], error)
	CreateTransaction(ctx context.Context, userID int64, in ledger.TransactionInput) (*model.Transaction, error)
	ListFinancePeriods(ctx context.Context, userID int64) ([]*model.FinancePeriod, error)
	CreateFinancePeriod(ctx context.Context, userID int64, in ledger.FinancePeriodInput) (*model.FinancePeriod, error)
	ListWallets(ctx context.Context, userID int64) ([]*model.Wallet, error)
	CreateWallet(ctx context.Context, userID int64, in ledger.WalletInput) (*model.Wallet, error)
	ListCurrencies(ctx context.Context) ([]*model.Currency, error)
	ListCapitalStoringPlaces(ctx context.Context) ([]*model.CapitalStoringPlace, error)
	ListCapitalTransactions(ctx context.Context, userID int64) ([]*model.CapitalTransaction, error)
	CreateCapitalTransaction(ctx context.Context, userID int64, in ledger.CapitalTransactionInput) (*model.CapitalTransaction, error)
}

// LedgerHandler は家計簿リソースのHTTPハンドラー。
// すべての操作はセッションのユーザーIDで絞り込まれる。
type LedgerHandler struct {
	service LedgerServiceInterface
}

// NewLedgerHandler はLedgerHandlerを生成する。
func NewLedgerHandler(service LedgerServiceInterface) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// --- レスポンス ---

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type categoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type transactionListItem struct {
	ID       int64       `json:"id"`
	Category categoryRef `json:"category"`
	Date     string      `json:"date"`
	Amount   float64     `json:"amount"`
	Comment  *string     `json:"comment"`
	Type     string      `json:"type"`
}

type transactionPageResponse struct {
	Content    []transactionListItem `json:"content"`
	TotalCount int                   `json:"totalCount"`
	Page       int                   `json:"page"`
	Size       int                   `json:"size"`
}

type transactionCreatedResponse struct {
	ID         int64   `json:"id"`
	CategoryID int64   `json:"category_id"`
	WalletID   *int64  `json:"wallet_id"`
	Date       string  `json:"date"`
	Amount     float64 `json:"amount"`
	Comment    *string `json:"comment"`
	Type       string  `json:"type"`
}

type financePeriodResponse struct {
	ID        int64  `json:"id"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Name      string `json:"name"`
}

type walletResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type referenceResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type capitalTransactionResponse struct {
	ID                    int64   `json:"id"`
	CurrencyID            int64   `json:"currencyId"`
	WalletID              *int64  `json:"walletId"`
	CapitalStoringPlaceID *int64  `json:"capitalStoringPlaceId"`
	Date                  string  `json:"date"`
	Amount                float64 `json:"amount"`
	Comment               *string `json:"comment"`
}

// --- カテゴリ ---

// ListCategories はカテゴリ一覧を返す。
// GET /api/v1/transaction-category/
func (h *LedgerHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	categories, err := h.service.ListCategories(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(categories, toCategoryResponse))
}

// CreateCategory はカテゴリを作成する。
// POST /api/v1/transaction-category/
func (h *LedgerHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in ledger.CategoryInput
	if !decodeJSONBody(w, r, &in) {
		return
	}

	category, err := h.service.CreateCategory(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

// --- 取引 ---

// ListTransactions は取引をページ単位で返す。
// GET /api/v1/transactions/?periodId=&categoryId=&page=0&size=20
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q, err := parseTransactionQuery(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.ListTransactions(r.Context(), userID, q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionPageResponse{
		Content:    mapSlice(page.Items, toTransactionListItem),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		Size:       page.Size,
	})
}

// CreateTransaction は取引を作成する。
// POST /api/v1/transactions/
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in ledger.TransactionInput
	if !decodeJSONBody(w, r, &in) {
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, transactionCreatedResponse{
		ID:         tx.ID,
		CategoryID: tx.CategoryID,
		WalletID:   tx.WalletID,
		Date:       tx.Date.Format(dateLayout),
		Amount:     tx.Amount,
		Comment:    tx.Comment,
		Type:       string(tx.Type),
	})
}

// --- 集計期間 ---

// ListFinancePeriods は集計期間の一覧を返す。
// GET /api/v1/finance-period/
func (h *LedgerHandler) ListFinancePeriods(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	periods, err := h.service.ListFinancePeriods(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(periods, toFinancePeriodResponse))
}

// CreateFinancePeriod は集計期間を作成する。
// POST /api/v1/finance-period/
func (h *LedgerHandler) CreateFinancePeriod(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in ledger.FinancePeriodInput
	if !decodeJSONBody(w, r, &in) {
		return
	}

	period, err := h.service.CreateFinancePeriod(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFinancePeriodResponse(period))
}

// --- ウォレット ---

// ListWallets はウォレットの一覧を返す。
// GET /api/v1/wallets/
func (h *LedgerHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	wallets, err := h.service.ListWallets(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(wallets, toWalletResponse))
}

// CreateWallet はウォレットを作成する。
// POST /api/v1/wallets/
func (h *LedgerHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in ledger.WalletInput
	if !decodeJSONBody(w, r, &in) {
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

// --- 参照データ ---

// ListCurrencies は通貨の一覧を返す。
// GET /api/v1/currencies/
func (h *LedgerHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.service.ListCurrencies(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(currencies, func(c *model.Currency) referenceResponse {
		return referenceResponse{ID: c.ID, Name: c.Name}
	}))
}

// ListCapitalStoringPlaces は資産の保管場所の一覧を返す。
// GET /api/v1/capital-storing-places/
func (h *LedgerHandler) ListCapitalStoringPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.service.ListCapitalStoringPlaces(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(places, func(p *model.CapitalStoringPlace) referenceResponse {
		return referenceResponse{ID: p.ID, Name: p.Name}
	}))
}

// --- 資産移動 ---

// ListCapitalTransactions は資産移動の一覧を返す。
// GET /api/v1/capital-transactions/
func (h *LedgerHandler) ListCapitalTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	txs, err := h.service.ListCapitalTransactions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(txs, toCapitalTransactionResponse))
}

// CreateCapitalTransaction は資産移動を記録する。
// POST /api/v1/capital-transactions/
func (h *LedgerHandler) CreateCapitalTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in ledger.CapitalTransactionInput
	if !decodeJSONBody(w, r, &in) {
		return
	}

	tx, err := h.service.CreateCapitalTransaction(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCapitalTransactionResponse(tx))
}

// --- ヘルパー ---

// requireUserID はセッションのユーザーIDを取得する。
// 取得できない場合は500を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		handleServiceError(w, r, errMissingClaims)
		return 0, false
	}
	return claims.UserID, true
}

// parseTransactionQuery はクエリパラメータを解析する。
// 未指定のパラメータはゼロ値（絞り込みなし、先頭ページ、既定サイズ）となる。
func parseTransactionQuery(r *http.Request) (ledger.TransactionQuery, error) {
	values := r.URL.Query()
	var q ledger.TransactionQuery

	int64Params := []struct {
		name string
		dst  *int64
	}{
		{"periodId", &q.PeriodID},
		{"categoryId", &q.CategoryID},
	}
	for _, p := range int64Params {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return q, model.NewInvalidQueryError(p.name)
		}
		*p.dst = v
	}

	intParams := []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"size", &q.Size},
	}
	for _, p := range intParams {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, model.NewInvalidQueryError(p.name)
		}
		*p.dst = v
	}

	return q, nil
}

func mapSlice[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

func toCategoryResponse(c *model.TransactionCategory) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: string(c.Type)}
}

func toTransactionListItem(t *model.Transaction) transactionListItem {
	return transactionListItem{
		ID:       t.ID,
		Category: categoryRef{ID: t.CategoryID, Name: t.CategoryName},
		Date:     t.Date.Format(dateLayout),
		Amount:   t.Amount,
		Comment:  t.Comment,
		Type:     string(t.Type),
	}
}

func toFinancePeriodResponse(p *model.FinancePeriod) financePeriodResponse {
	return financePeriodResponse{
		ID:        p.ID,
		StartDate: p.StartDate.Format(dateLayout),
		EndDate:   p.EndDate.Format(dateLayout),
		Name:      p.Name,
	}
}

func toWalletResponse(wallet *model.Wallet) walletResponse {
	return walletResponse{ID: wallet.ID, Name: wallet.Name, Description: wallet.Description}
}

func toCapitalTransactionResponse(t *model.CapitalTransaction) capitalTransactionResponse {
	return capitalTransactionResponse{
		ID:                    t.ID,
		CurrencyID:            t.CurrencyID,
		WalletID:              t.WalletID,
		CapitalStoringPlaceID: t.CapitalStoringPlaceID,
		Date:                  t.Date.Format(dateLayout),
		Amount:                t.Amount,
		Comment:               t.Comment,
	}
}
