package ledger

// CategoryInput はカテゴリ作成の入力。
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Type string `json:"type" validate:"required,oneof=income expense"`
}

// TransactionInput は取引作成の入力。
// 金額は正の値で、収支の向きは Type で表す。
type TransactionInput struct {
	CategoryID int64   `json:"categoryId" validate:"required,gt=0"`
	WalletID   *int64  `json:"walletId" validate:"omitempty,gt=0"`
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Comment    *string `json:"comment" validate:"omitempty,max=500"`
	Type       string  `json:"type" validate:"required,oneof=income expense"`
}

// FinancePeriodInput は集計期間作成の入力。
type FinancePeriodInput struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required,max=100"`
}

// WalletInput はウォレット作成の入力。
type WalletInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// CapitalTransactionInput は資産移動作成の入力。
// 金額は入金を正、出金を負で表す。
type CapitalTransactionInput struct {
	CurrencyID            int64   `json:"currencyId" validate:"required,gt=0"`
	WalletID              *int64  `json:"walletId" validate:"omitempty,gt=0"`
	CapitalStoringPlaceID *int64  `json:"capitalStoringPlaceId" validate:"omitempty,gt=0"`
	Date                  string  `json:"date" validate:"required,datetime=2006-01-02"`
	Amount                float64 `json:"amount" validate:"ne=0"`
	Comment               *string `json:"comment" validate:"omitempty,max=500"`
}

// TransactionQuery は取引一覧の検索条件。
// PeriodID, CategoryID は0の場合に絞り込みを行わない。
type TransactionQuery struct {
	PeriodID   int64
	CategoryID int64
	Page       int
	Size       int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage はページ番号の上限。OFFSET（Page*Size）が桁あふれしない範囲に収める。
	MaxPage         = 1_000_000
)
