package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

// PostgresWalletRepo はPostgreSQLを使用したウォレットリポジトリ。
type PostgresWalletRepo struct {
	db dbtx
}

// NewPostgresWalletRepo はPostgresWalletRepoを生成する。
func NewPostgresWalletRepo(db *sql.DB) *PostgresWalletRepo {
	return &PostgresWalletRepo{db: db}
}

func (r *PostgresWalletRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, description FROM wallets WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	wallets := []*model.Wallet{}
	for rows.Next() {
		w := &model.Wallet{}
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Description); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallets: %w", err)
	}
	return wallets, nil
}

func (r *PostgresWalletRepo) Create(ctx context.Context, wallet *model.Wallet) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO wallets (user_id, name, description) VALUES ($1, $2, $3) RETURNING id`,
		wallet.UserID, wallet.Name, wallet.Description,
	).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

var _ WalletRepository = (*PostgresWalletRepo)(nil)
