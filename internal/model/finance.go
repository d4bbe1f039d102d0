package model

import "time"

// TransactionType は取引の種別（収入/支出）を表す。
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionCategory はユーザーが定義する取引カテゴリ。
type TransactionCategory struct {
	ID     int64
	UserID int64
	Name   string
	Type   TransactionType
}

// Transaction は収入または支出の1件の記録。
// CategoryName は一覧取得時にカテゴリをJOINした場合のみ設定される。
type Transaction struct {
	ID           int64
	UserID       int64
	CategoryID   int64
	CategoryName string
	WalletID     *int64
	Date         time.Time
	Amount       float64
	Comment      *string
	Type         TransactionType
}

// TransactionFilter は取引一覧の絞り込み条件とページ指定。
// Page は0始まり。
type TransactionFilter struct {
	PeriodID   *int64
	CategoryID *int64
	Page       int
	Size       int
}

// FinancePeriod は集計単位となる期間（給与月など）。
type FinancePeriod struct {
	ID        int64
	UserID    int64
	StartDate time.Time
	EndDate   time.Time
	Name      string
}

// Wallet は資金の保管先（口座、財布など）。
type Wallet struct {
	ID          int64
	UserID      int64
	Name        string
	Description *string
}

// Currency は通貨の参照データ。全ユーザー共通。
type Currency struct {
	ID   int64
	Name string
}

// CapitalStoringPlace は資産の保管場所の参照データ。全ユーザー共通。
type CapitalStoringPlace struct {
	ID   int64
	Name string
}

// CapitalTransaction は資産の移動記録。
type CapitalTransaction struct {
	ID                    int64
	UserID                int64
	CurrencyID            int64
	WalletID              *int64
	CapitalStoringPlaceID *int64
	Date                  time.Time
	Amount                float64
	Comment               *string
}

// Page はページング済みの一覧結果。
type Page[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	Size       int
}
