// Package auth はOAuth認可コードフロー、id_token検証、ユーザーの検索または作成を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/fintrack/internal/model"
	"github.com/hitoshi/fintrack/internal/repository"
)

// OAuthProvider は認可URLの生成と認可コードの交換を行うIdPのインターフェース。
type OAuthProvider interface {
	// GetLoginURL は認可エンドポイントのURLを生成する。
	GetLoginURL() string
	// ExchangeCode は認可コードをトークンエンドポイントで交換し、未検証のid_tokenを返す。
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// IDTokenVerifier はid_tokenを検証するインターフェース。
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error)
}

// SessionIssuer はユーザーのセッショントークンを発行するインターフェース。
type SessionIssuer interface {
	Issue(user *model.User) (string, error)
}

// Metrics は認証フローの計測インターフェース。
type Metrics interface {
	RecordLogin(newUser bool)
	RecordCallbackFailure(reason string)
}

type noopMetrics struct{}

func (noopMetrics) RecordLogin(bool)              {}
func (noopMetrics) RecordCallbackFailure(string) {}

// CallbackResult はコールバック処理の結果。
type CallbackResult struct {
	User         *model.User
	SessionToken string
	Created      bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider OAuthProvider
	verifier IDTokenVerifier
	users    repository.UserStore
	issuer   SessionIssuer
	metrics  Metrics
}

// ServiceOption はServiceのオプション。
type ServiceOption func(*Service)

// WithMetrics は計測の出力先を指定する。
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService はServiceを生成する。
func NewService(
	provider OAuthProvider,
	verifier IDTokenVerifier,
	users repository.UserStore,
	issuer SessionIssuer,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		provider: provider,
		verifier: verifier,
		users:    users,
		issuer:   issuer,
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLoginURL は認可エンドポイントのURLを返す。
func (s *Service) GetLoginURL() string {
	return s.provider.GetLoginURL()
}

// HandleCallback は認可コードを交換してid_tokenを検証し、ユーザーを検索または作成してセッショントークンを発行する。
// 返すエラーは *model.APIError。
//
// ユーザーの作成とトークン発行は1つのトランザクション内で行い、
// 発行に失敗した場合は作成したユーザーもロールバックされる。
func (s *Service) HandleCallback(ctx context.Context, code string) (*CallbackResult, error) {
	if code == "" {
		return nil, s.fail(ctx, model.NewMissingAuthCodeError(), nil)
	}

	rawIDToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, s.fail(ctx, translateError(err), err)
	}

	identity, err := s.verifier.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, s.fail(ctx, translateError(err), err)
	}

	result := &CallbackResult{}
	err = s.users.WithinTx(ctx, func(repo repository.UserRepository) error {
		user, created, err := lookupOrCreate(ctx, repo, identity)
		if err != nil {
			return err
		}

		sessionToken, err := s.issuer.Issue(user)
		if err != nil {
			return fmt.Errorf("failed to issue session token: %w", err)
		}

		result.User = user
		result.Created = created
		result.SessionToken = sessionToken
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, model.NewInternalError(), err)
	}

	if result.Created {
		slog.InfoContext(ctx, "new user created",
			slog.Int64("user_id", result.User.ID),
			slog.String("email", result.User.Email),
		)
	} else {
		slog.InfoContext(ctx, "existing user logged in",
			slog.Int64("user_id", result.User.ID),
		)
	}
	s.metrics.RecordLogin(result.Created)

	return result, nil
}

// lookupOrCreate はsubjectでユーザーを検索し、存在しなければ作成する。
// 同時ログインで作成が競合した場合は、先にコミットされた行を読み直して返す。
// 既存ユーザーのプロフィールは更新しない。
func lookupOrCreate(ctx context.Context, repo repository.UserRepository, identity *Identity) (*model.User, bool, error) {
	user, err := repo.FindBySubID(ctx, identity.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil {
		return user, false, nil
	}

	user = &model.User{
		SubID:         identity.Subject,
		Name:          identity.Name,
		Email:         identity.Email,
		Picture:       identity.Picture,
		VerifiedEmail: identity.EmailVerified,
	}
	inserted, err := repo.InsertIfAbsent(ctx, user)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	if inserted {
		return user, true, nil
	}

	user, err = repo.FindBySubID(ctx, identity.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-read user after conflict: %w", err)
	}
	if user == nil {
		return nil, false, errors.New("user vanished after insert conflict")
	}
	return user, false, nil
}

// translateError はプロバイダー層のエラーをAPIErrorに変換する。
func translateError(err error) *model.APIError {
	var invalid *InvalidIDTokenError
	switch {
	case errors.Is(err, ErrMissingIDToken):
		return model.NewMissingIDTokenError()
	case errors.As(err, &invalid):
		return model.NewInvalidIDTokenError(invalid.Reason)
	case errors.Is(err, ErrUpstreamExchange), errors.Is(err, ErrKeyFetch):
		return model.NewUpstreamExchangeError()
	default:
		return model.NewInternalError()
	}
}

// fail は失敗をログと計測に記録し、呼び出し元に返すAPIErrorを返す。
// causeの詳細はログにのみ出力する。
func (s *Service) fail(ctx context.Context, apiErr *model.APIError, cause error) *model.APIError {
	attrs := []any{slog.String("error_code", apiErr.Code)}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}

	if apiErr.Category == "validation" {
		slog.WarnContext(ctx, "oauth callback rejected", attrs...)
	} else {
		slog.ErrorContext(ctx, "oauth callback failed", attrs...)
	}

	s.metrics.RecordCallbackFailure(apiErr.Code)
	return apiErr
}
