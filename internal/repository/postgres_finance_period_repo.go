package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

// PostgresFinancePeriodRepo はPostgreSQLを使用した集計期間リポジトリ。
type PostgresFinancePeriodRepo struct {
	db dbtx
}

// NewPostgresFinancePeriodRepo はPostgresFinancePeriodRepoを生成する。
func NewPostgresFinancePeriodRepo(db *sql.DB) *PostgresFinancePeriodRepo {
	return &PostgresFinancePeriodRepo{db: db}
}

// FindByID はユーザーが所有する期間を取得する。見つからない場合はnilを返す。
func (r *PostgresFinancePeriodRepo) FindByID(ctx context.Context, userID, id int64) (*model.FinancePeriod, error) {
	p := &model.FinancePeriod{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, date_start, date_end, name FROM finance_periods WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&p.ID, &p.UserID, &p.StartDate, &p.EndDate, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find finance period: %w", err)
	}
	return p, nil
}

// ListByUserID はユーザーの期間一覧を開始日降順で返す。
func (r *PostgresFinancePeriodRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.FinancePeriod, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date_start, date_end, name FROM finance_periods
		 WHERE user_id = $1 ORDER BY date_start DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list finance periods: %w", err)
	}
	defer rows.Close()

	periods := []*model.FinancePeriod{}
	for rows.Next() {
		p := &model.FinancePeriod{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.StartDate, &p.EndDate, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan finance period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate finance periods: %w", err)
	}
	return periods, nil
}

// Create は期間を作成し、IDを設定する。
func (r *PostgresFinancePeriodRepo) Create(ctx context.Context, period *model.FinancePeriod) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO finance_periods (user_id, date_start, date_end, name) VALUES ($1, $2, $3, $4) RETURNING id`,
		period.UserID, period.StartDate, period.EndDate, period.Name,
	).Scan(&period.ID)
	if err != nil {
		return fmt.Errorf("failed to create finance period: %w", err)
	}
	return nil
}

var _ FinancePeriodRepository = (*PostgresFinancePeriodRepo)(nil)
