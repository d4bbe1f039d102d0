package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

// PostgresCapitalTransactionRepo はPostgreSQLを使用した資産移動リポジトリ。
type PostgresCapitalTransactionRepo struct {
	db dbtx
}

// NewPostgresCapitalTransactionRepo はPostgresCapitalTransactionRepoを生成する。
func NewPostgresCapitalTransactionRepo(db *sql.DB) *PostgresCapitalTransactionRepo {
	return &PostgresCapitalTransactionRepo{db: db}
}

func (r *PostgresCapitalTransactionRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.CapitalTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, currency_id, wallet_id, capital_storing_place_id, date, amount, comment
		 FROM capital_transactions WHERE user_id = $1 ORDER BY date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list capital transactions: %w", err)
	}
	defer rows.Close()

	items := []*model.CapitalTransaction{}
	for rows.Next() {
		ct := &model.CapitalTransaction{}
		if err := rows.Scan(&ct.ID, &ct.UserID, &ct.CurrencyID, &ct.WalletID, &ct.CapitalStoringPlaceID, &ct.Date, &ct.Amount, &ct.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan capital transaction: %w", err)
		}
		items = append(items, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate capital transactions: %w", err)
	}
	return items, nil
}

// Create は資産移動を作成する。
// 通貨や保管場所が存在しない場合は ErrReferenceNotFound を返し、
// ウォレットが他ユーザーの所有である場合はfalseを返す。
func (r *PostgresCapitalTransactionRepo) Create(ctx context.Context, ct *model.CapitalTransaction) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO capital_transactions (user_id, currency_id, wallet_id, capital_storing_place_id, date, amount, comment)
		 SELECT $1::BIGINT, $2::BIGINT, $3::BIGINT, $4::BIGINT, $5::DATE, $6::NUMERIC, $7::TEXT
		 WHERE $3::BIGINT IS NULL OR EXISTS (SELECT 1 FROM wallets WHERE id = $3 AND user_id = $1)
		 RETURNING id`,
		ct.UserID, ct.CurrencyID, ct.WalletID, ct.CapitalStoringPlaceID, ct.Date, ct.Amount, ct.Comment,
	).Scan(&ct.ID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case IsForeignKeyViolation(err):
		return false, ErrReferenceNotFound
	case err != nil:
		return false, fmt.Errorf("failed to create capital transaction: %w", err)
	}
	return true, nil
}

var _ CapitalTransactionRepository = (*PostgresCapitalTransactionRepo)(nil)
