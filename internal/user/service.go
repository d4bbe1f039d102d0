// Package user はログイン中ユーザーの参照を提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/fintrack/internal/model"
)

// Finder はユーザーの検索インターフェース。
type Finder interface {
	FindBySubID(ctx context.Context, subID string) (*model.User, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	users Finder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users Finder) *Service {
	return &Service{users: users}
}

// Current はセッションのsubjectに対応するユーザーを返す。
// セッション発行後にユーザーが削除されていた場合は USER_NOT_FOUND を返す。
func (s *Service) Current(ctx context.Context, subID string) (*model.User, error) {
	user, err := s.users.FindBySubID(ctx, subID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
