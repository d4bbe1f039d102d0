package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用した取引カテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db dbtx
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// ListByUserID はユーザーのカテゴリ一覧をID昇順で返す。
func (r *PostgresCategoryRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.TransactionCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type FROM transaction_categories WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*model.TransactionCategory{}
	for rows.Next() {
		c := &model.TransactionCategory{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

// Create はカテゴリを作成し、IDを設定する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.TransactionCategory) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transaction_categories (user_id, name, type) VALUES ($1, $2, $3) RETURNING id`,
		category.UserID, category.Name, category.Type,
	).Scan(&category.ID)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
