package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/fintrack/internal/middleware"
	"github.com/hitoshi/fintrack/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Current(ctx context.Context, subID string) (*model.User, error)
}

// UserHandler はユーザー情報のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type userResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	SubID         string `json:"sub_id"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}

// Me はログイン中のユーザー情報を返す。
// GET /api/v1/users/
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		handleServiceError(w, r, errMissingClaims)
		return
	}

	user, err := h.service.Current(r.Context(), claims.SubID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		SubID:         user.SubID,
		Picture:       user.Picture,
		VerifiedEmail: user.VerifiedEmail,
	})
}
