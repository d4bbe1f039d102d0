// Package dbtest はPostgreSQLを必要とするテストのためのヘルパーを提供する。
//
// TEST_DATABASE_URL が設定されている場合はそのデータベースを初期化して使用し、
// 未設定の場合はtestcontainersでPostgreSQLコンテナを起動する。
// Dockerが利用できない環境、または -short 指定時はテストをスキップする。
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/fintrack/internal/database"
)

const (
	postgresImage = "postgres:17-alpine"
	dbUser        = "fintrack"
	dbPassword    = "fintrack"
	dbName        = "fintrack_test"
)

// StartPostgres は空のPostgreSQLデータベースを用意し、接続とURLを返す。
// 接続とコンテナはテスト終了時に破棄される。
func StartPostgres(t *testing.T) (*sql.DB, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("PostgreSQLを使うテストは -short ではスキップする")
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = startContainer(t)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	// 既存のテーブルとマイグレーション履歴を削除してクリーンな状態にする
	if _, err := db.Exec(`DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("スキーマの初期化に失敗: %v", err)
	}

	return db, dbURL
}

// NewMigratedDB はマイグレーション適用済みのデータベース接続を返す。
func NewMigratedDB(t *testing.T) *sql.DB {
	t.Helper()

	db, dbURL := StartPostgres(t)
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	return db
}

func startContainer(t *testing.T) string {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     dbUser,
				"POSTGRES_PASSWORD": dbPassword,
				"POSTGRES_DB":       dbName,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("PostgreSQLコンテナの起動に失敗: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("PostgreSQLコンテナの停止に失敗: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("コンテナのホスト取得に失敗: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("コンテナのポート取得に失敗: %v", err)
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, host, port.Port(), dbName)
}
