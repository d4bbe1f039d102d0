// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/fintrack/internal/model"
)

// ErrReferenceNotFound は外部キーの参照先が存在しないことを表す。
var ErrReferenceNotFound = errors.New("referenced record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindBySubID はIdPのsubjectでユーザーを取得する。見つからない場合はnilを返す。
	FindBySubID(ctx context.Context, subID string) (*model.User, error)

	// InsertIfAbsent はユーザーを作成する。
	// 同じsub_idの行が既に存在する場合は何もせずfalseを返す。
	// 作成した場合はuser.IDとuser.CreatedAtを設定してtrueを返す。
	InsertIfAbsent(ctx context.Context, user *model.User) (bool, error)
}

// UserStore はトランザクション境界を持つユーザーストア。
type UserStore interface {
	UserRepository

	// WithinTx はトランザクション内でfnを実行する。
	// fnがnilを返した場合のみコミットし、エラーまたはpanicの場合はロールバックする。
	WithinTx(ctx context.Context, fn func(repo UserRepository) error) error
}

// CategoryRepository は取引カテゴリの永続化インターフェース。
type CategoryRepository interface {
	// ListByUserID はユーザーのカテゴリ一覧をID昇順で返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.TransactionCategory, error)

	// Create はカテゴリを作成し、IDを設定する。
	Create(ctx context.Context, category *model.TransactionCategory) error
}

// TransactionRepository は取引の永続化インターフェース。
type TransactionRepository interface {
	// ListByUserID はフィルタ条件に一致する取引をカテゴリ名付きで返す。
	// 日付降順、ID降順で並べ、ページ外の件数も含む総件数を返す。
	ListByUserID(ctx context.Context, userID int64, filter model.TransactionFilter, period *model.FinancePeriod) ([]*model.Transaction, int, error)

	// Create は取引を作成し、IDを設定する。
	// カテゴリがユーザーのものでない場合はcreated=falseを返す。
	Create(ctx context.Context, tx *model.Transaction) (created bool, err error)
}

// FinancePeriodRepository は集計期間の永続化インターフェース。
type FinancePeriodRepository interface {
	// FindByID はユーザーが所有する期間を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id int64) (*model.FinancePeriod, error)

	// ListByUserID はユーザーの期間一覧を開始日降順で返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.FinancePeriod, error)

	// Create は期間を作成し、IDを設定する。
	Create(ctx context.Context, period *model.FinancePeriod) error
}

// WalletRepository はウォレットの永続化インターフェース。
type WalletRepository interface {
	// ListByUserID はユーザーのウォレット一覧をID昇順で返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Wallet, error)

	// Create はウォレットを作成し、IDを設定する。
	Create(ctx context.Context, wallet *model.Wallet) error
}

// ReferenceRepository は全ユーザー共通の参照データ（通貨、保管場所）の読み取りインターフェース。
type ReferenceRepository interface {
	// ListCurrencies は通貨一覧をID昇順で返す。
	ListCurrencies(ctx context.Context) ([]*model.Currency, error)

	// ListCapitalStoringPlaces は保管場所一覧をID昇順で返す。
	ListCapitalStoringPlaces(ctx context.Context) ([]*model.CapitalStoringPlace, error)
}

// CapitalTransactionRepository は資産移動の永続化インターフェース。
type CapitalTransactionRepository interface {
	// ListByUserID はユーザーの資産移動を日付降順、ID降順で返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.CapitalTransaction, error)

	// Create は資産移動を作成し、IDを設定する。
	// 参照先が存在しない場合は ErrReferenceNotFound を返す。
	// ウォレットが他ユーザーのものである場合もcreated=falseを返す。
	Create(ctx context.Context, ct *model.CapitalTransaction) (created bool, err error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// dbtx は*sql.DBと*sql.Txの共通部分。
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
