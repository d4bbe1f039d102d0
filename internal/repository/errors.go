package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATEコード
const (
	pgUniqueViolation     = pq.ErrorCode("23505")
	pgForeignKeyViolation = pq.ErrorCode("23503")
)

func isPQError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// IsUniqueViolation は一意制約違反かどうかを判定する。
func IsUniqueViolation(err error) bool {
	return isPQError(err, pgUniqueViolation)
}

// IsForeignKeyViolation は外部キー制約違反かどうかを判定する。
func IsForeignKeyViolation(err error) bool {
	return isPQError(err, pgForeignKeyViolation)
}
