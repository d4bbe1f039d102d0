// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// SubID（IdPのsubject）で一意に識別され、初回ログイン時にのみ作成される。
type User struct {
	ID            int64
	SubID         string
	Name          string
	Email         string
	Picture       string
	VerifiedEmail bool
	CreatedAt     time.Time
}
