package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

// PostgresReferenceRepo は通貨と保管場所の参照データを読み取る。
type PostgresReferenceRepo struct {
	db dbtx
}

// NewPostgresReferenceRepo はPostgresReferenceRepoを生成する。
func NewPostgresReferenceRepo(db *sql.DB) *PostgresReferenceRepo {
	return &PostgresReferenceRepo{db: db}
}

func (r *PostgresReferenceRepo) ListCurrencies(ctx context.Context) ([]*model.Currency, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM currencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer rows.Close()

	currencies := []*model.Currency{}
	for rows.Next() {
		c := &model.Currency{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate currencies: %w", err)
	}
	return currencies, nil
}

func (r *PostgresReferenceRepo) ListCapitalStoringPlaces(ctx context.Context) ([]*model.CapitalStoringPlace, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM capital_storing_places ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list capital storing places: %w", err)
	}
	defer rows.Close()

	places := []*model.CapitalStoringPlace{}
	for rows.Next() {
		p := &model.CapitalStoringPlace{}
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan capital storing place: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate capital storing places: %w", err)
	}
	return places, nil
}

var _ ReferenceRepository = (*PostgresReferenceRepo)(nil)
