package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/fintrack/internal/model"
)

// PostgresTransactionRepo はPostgreSQLを使用した取引リポジトリ。
type PostgresTransactionRepo struct {
	db dbtx
}

// NewPostgresTransactionRepo はPostgresTransactionRepoを生成する。
func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

// ListByUserID はフィルタ条件に一致する取引をカテゴリ名付きで返す。
// periodが指定された場合はその開始日から終了日まで（両端を含む）の取引に絞り込む。
func (r *PostgresTransactionRepo) ListByUserID(ctx context.Context, userID int64, filter model.TransactionFilter, period *model.FinancePeriod) ([]*model.Transaction, int, error) {
	conds := []string{"t.user_id = $1"}
	args := []any{userID}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conds = append(conds, fmt.Sprintf("t.category_id = $%d", len(args)))
	}
	if period != nil {
		args = append(args, period.StartDate, period.EndDate)
		conds = append(conds, fmt.Sprintf("t.date BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions t WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	args = append(args, filter.Size, filter.Page*filter.Size)
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.category_id, c.name, t.wallet_id, t.date, t.amount, t.comment, t.type
		 FROM transactions t
		 JOIN transaction_categories c ON c.id = t.category_id
		 WHERE `+where+`
		 ORDER BY t.date DESC, t.id DESC
		 LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := []*model.Transaction{}
	for rows.Next() {
		t := &model.Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.CategoryName, &t.WalletID, &t.Date, &t.Amount, &t.Comment, &t.Type); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, total, nil
}

// Create は取引を作成し、IDを設定する。
// カテゴリ（指定時はウォレットも）がユーザーの所有でない場合は何も挿入せずfalseを返す。
func (r *PostgresTransactionRepo) Create(ctx context.Context, tx *model.Transaction) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, category_id, wallet_id, date, amount, comment, type)
		 SELECT $1::BIGINT, $2::BIGINT, $3::BIGINT, $4::DATE, $5::NUMERIC, $6::TEXT, $7::TEXT
		 WHERE EXISTS (SELECT 1 FROM transaction_categories WHERE id = $2 AND user_id = $1)
		   AND ($3::BIGINT IS NULL OR EXISTS (SELECT 1 FROM wallets WHERE id = $3 AND user_id = $1))
		 RETURNING id`,
		tx.UserID, tx.CategoryID, tx.WalletID, tx.Date, tx.Amount, tx.Comment, tx.Type,
	).Scan(&tx.ID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}
	return true, nil
}

var _ TransactionRepository = (*PostgresTransactionRepo)(nil)
