package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

const userColumns = `id, sub_id, name, email, picture, verified_email, created_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// WithinTx に渡される UserRepository はトランザクションに束縛された別インスタンス。
type PostgresUserRepo struct {
	db       dbtx
	beginner TxBeginner
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, beginner: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindBySubID はIdPのsubjectでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindBySubID(ctx context.Context, subID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE sub_id = $1`, subID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by sub_id: %w", err)
	}
	return user, nil
}

// InsertIfAbsent はユーザーを作成する。
// users.sub_id の一意制約で競合を検出し、既存行がある場合はfalseを返す。
// 同時に同じsub_idを挿入する別トランザクションがある場合、そのコミットまたはロールバックを待ってから判定される。
func (r *PostgresUserRepo) InsertIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (sub_id, name, email, picture, verified_email)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (sub_id) DO NOTHING
		 RETURNING id, created_at`,
		user.SubID, user.Name, user.Email, user.Picture, user.VerifiedEmail,
	).Scan(&user.ID, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return true, nil
}

// WithinTx はトランザクション内でfnを実行する。
// 接続はすべての終了経路（成功、エラー、panic）で解放される。
func (r *PostgresUserRepo) WithinTx(ctx context.Context, fn func(repo UserRepository) error) (err error) {
	if r.beginner == nil {
		return errors.New("user repository is already bound to a transaction")
	}

	tx, err := r.beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&PostgresUserRepo{db: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.SubID, &user.Name, &user.Email, &user.Picture, &user.VerifiedEmail, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// compile-time interface check
var _ UserStore = (*PostgresUserRepo)(nil)
