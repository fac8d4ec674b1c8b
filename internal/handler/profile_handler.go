package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrgrant560/mychirp/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// GetUserByUsername は指定されたユーザー名の公開プロフィールを返す。
	GetUserByUsername(ctx context.Context, username string) (model.Author, error)
}

// ProfileHandler はプロフィール参照のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetUserByUsername はユーザー名で公開プロフィールを取得する。
// GET /api/profiles/:username
func (h *ProfileHandler) GetUserByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ユーザー名が空です"))
		return
	}

	author, err := h.service.GetUserByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authorResponse{
		ID:       author.ID,
		Username: author.Username,
		ImageURL: author.ImageURL,
	})
}
