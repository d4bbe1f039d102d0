// Package ledger は家計簿データ（取引、カテゴリ、期間、ウォレット、資産移動）の操作を提供する。
//
// すべての操作はログインユーザーのIDで範囲を限定する。
// 入力は自由記述欄の無害化の後に構造体タグで検証する。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/fintrack/internal/model"
	"github.com/hitoshi/fintrack/internal/repository"
	"github.com/hitoshi/fintrack/internal/security"
)

// Repositories はServiceが利用するリポジトリ群。
type Repositories struct {
	Categories          repository.CategoryRepository
	Transactions        repository.TransactionRepository
	FinancePeriods      repository.FinancePeriodRepository
	Wallets             repository.WalletRepository
	References          repository.ReferenceRepository
	CapitalTransactions repository.CapitalTransactionRepository
}

// Service は家計簿データのビジネスロジックを提供する。
type Service struct {
	repos     Repositories
	sanitizer security.TextSanitizer
}

// NewService はServiceを生成する。
func NewService(repos Repositories, sanitizer security.TextSanitizer) *Service {
	return &Service{repos: repos, sanitizer: sanitizer}
}

// --- カテゴリ ---

// ListCategories はユーザーのカテゴリ一覧を返す。
func (s *Service) ListCategories(ctx context.Context, userID int64) ([]*model.TransactionCategory, error) {
	return s.repos.Categories.ListByUserID(ctx, userID)
}

// CreateCategory はカテゴリを作成する。
func (s *Service) CreateCategory(ctx context.Context, userID int64, in CategoryInput) (*model.TransactionCategory, error) {
	in.Name = s.sanitizer.Sanitize(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	category := &model.TransactionCategory{
		UserID: userID,
		Name:   in.Name,
		Type:   model.TransactionType(in.Type),
	}
	if err := s.repos.Categories.Create(ctx, category); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "transaction category created",
		slog.Int64("user_id", userID),
		slog.Int64("category_id", category.ID),
	)
	return category, nil
}

// --- 取引 ---

// ListTransactions は取引をページ単位で返す。
// 期間を指定した場合、その期間がユーザーのものでなければ FINANCE_PERIOD_NOT_FOUND を返す。
func (s *Service) ListTransactions(ctx context.Context, userID int64, q TransactionQuery) (*model.Page[*model.Transaction], error) {
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Page < 0 || q.Page > MaxPage {
		return nil, model.NewInvalidQueryError("page")
	}
	if q.Size < 0 || q.Size > MaxPageSize {
		return nil, model.NewInvalidQueryError("size")
	}

	filter := model.TransactionFilter{Page: q.Page, Size: q.Size}
	if q.CategoryID != 0 {
		filter.CategoryID = &q.CategoryID
	}

	var period *model.FinancePeriod
	if q.PeriodID != 0 {
		p, err := s.repos.FinancePeriods.FindByID(ctx, userID, q.PeriodID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, model.NewFinancePeriodNotFoundError(q.PeriodID)
		}
		filter.PeriodID = &q.PeriodID
		period = p
	}

	items, total, err := s.repos.Transactions.ListByUserID(ctx, userID, filter, period)
	if err != nil {
		return nil, err
	}

	return &model.Page[*model.Transaction]{
		Items:      items,
		TotalCount: total,
		Page:       q.Page,
		Size:       q.Size,
	}, nil
}

// CreateTransaction は取引を作成する。
// カテゴリまたはウォレットがユーザーのものでない場合は CATEGORY_NOT_FOUND / REFERENCE_NOT_FOUND を返す。
func (s *Service) CreateTransaction(ctx context.Context, userID int64, in TransactionInput) (*model.Transaction, error) {
	in.Comment = security.SanitizePtr(s.sanitizer, in.Comment)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		UserID:     userID,
		CategoryID: in.CategoryID,
		WalletID:   in.WalletID,
		Date:       mustParseDate(in.Date),
		Amount:     in.Amount,
		Comment:    in.Comment,
		Type:       model.TransactionType(in.Type),
	}

	created, err := s.repos.Transactions.Create(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !created {
		if in.WalletID != nil {
			return nil, s.missingTransactionReference(ctx, userID, in.CategoryID)
		}
		return nil, model.NewCategoryNotFoundError(in.CategoryID)
	}

	slog.InfoContext(ctx, "transaction created",
		slog.Int64("user_id", userID),
		slog.Int64("transaction_id", tx.ID),
	)
	return tx, nil
}

// missingTransactionReference はカテゴリとウォレットのどちらが見つからなかったかを判定する。
func (s *Service) missingTransactionReference(ctx context.Context, userID, categoryID int64) error {
	categories, err := s.repos.Categories.ListByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return model.NewReferenceNotFoundError("walletId")
		}
	}
	return model.NewCategoryNotFoundError(categoryID)
}

// --- 集計期間 ---

// ListFinancePeriods はユーザーの期間一覧を返す。
func (s *Service) ListFinancePeriods(ctx context.Context, userID int64) ([]*model.FinancePeriod, error) {
	return s.repos.FinancePeriods.ListByUserID(ctx, userID)
}

// CreateFinancePeriod は期間を作成する。終了日は開始日以降でなければならない。
func (s *Service) CreateFinancePeriod(ctx context.Context, userID int64, in FinancePeriodInput) (*model.FinancePeriod, error) {
	in.Name = s.sanitizer.Sanitize(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	start, end := mustParseDate(in.StartDate), mustParseDate(in.EndDate)
	if end.Before(start) {
		return nil, model.NewValidationError("endDate must not be before startDate")
	}

	period := &model.FinancePeriod{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Name:      in.Name,
	}
	if err := s.repos.FinancePeriods.Create(ctx, period); err != nil {
		return nil, err
	}
	return period, nil
}

// --- ウォレット ---

// ListWallets はユーザーのウォレット一覧を返す。
func (s *Service) ListWallets(ctx context.Context, userID int64) ([]*model.Wallet, error) {
	return s.repos.Wallets.ListByUserID(ctx, userID)
}

// CreateWallet はウォレットを作成する。
func (s *Service) CreateWallet(ctx context.Context, userID int64, in WalletInput) (*model.Wallet, error) {
	in.Name = s.sanitizer.Sanitize(in.Name)
	in.Description = security.SanitizePtr(s.sanitizer, in.Description)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	wallet := &model.Wallet{UserID: userID, Name: in.Name, Description: in.Description}
	if err := s.repos.Wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// --- 参照データ ---

func (s *Service) ListCurrencies(ctx context.Context) ([]*model.Currency, error) {
	return s.repos.References.ListCurrencies(ctx)
}

func (s *Service) ListCapitalStoringPlaces(ctx context.Context) ([]*model.CapitalStoringPlace, error) {
	return s.repos.References.ListCapitalStoringPlaces(ctx)
}

// --- 資産移動 ---

// ListCapitalTransactions はユーザーの資産移動一覧を返す。
func (s *Service) ListCapitalTransactions(ctx context.Context, userID int64) ([]*model.CapitalTransaction, error) {
	return s.repos.CapitalTransactions.ListByUserID(ctx, userID)
}

// CreateCapitalTransaction は資産移動を作成する。
func (s *Service) CreateCapitalTransaction(ctx context.Context, userID int64, in CapitalTransactionInput) (*model.CapitalTransaction, error) {
	in.Comment = security.SanitizePtr(s.sanitizer, in.Comment)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	ct := &model.CapitalTransaction{
		UserID:                userID,
		CurrencyID:            in.CurrencyID,
		WalletID:              in.WalletID,
		CapitalStoringPlaceID: in.CapitalStoringPlaceID,
		Date:                  mustParseDate(in.Date),
		Amount:                in.Amount,
		Comment:               in.Comment,
	}

	created, err := s.repos.CapitalTransactions.Create(ctx, ct)
	if errors.Is(err, repository.ErrReferenceNotFound) {
		return nil, model.NewReferenceNotFoundError("currencyId or capitalStoringPlaceId")
	}
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, model.NewReferenceNotFoundError("walletId")
	}
	return ct, nil
}

// mustParseDate は検証済みの日付文字列を解析する。
func mustParseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(fmt.Sprintf("date %q passed validation but failed to parse: %v", s, err))
	}
	return t
}
