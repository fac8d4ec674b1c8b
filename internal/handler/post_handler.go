package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrgrant560/mychirp/internal/middleware"
	"github.com/jrgrant560/mychirp/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Create は認証済みユーザーの投稿を作成する。
	Create(ctx context.Context, authorID, content string) (*model.Post, error)
	// GetAll はグローバルフィードを新着順で返す（最大100件）。
	GetAll(ctx context.Context) ([]model.EnrichedPost, error)
	// GetPostsByUserID は指定著者の投稿を新着順で返す（最大100件）。
	GetPostsByUserID(ctx context.Context, userID string) ([]model.EnrichedPost, error)
	// GetByID は指定IDの投稿を著者情報付きで返す。
	GetByID(ctx context.Context, id string) (*model.EnrichedPost, error)
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Content string `json:"content"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// authorResponse は著者情報のAPIレスポンス。
type authorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

// enrichedPostResponse は投稿と著者情報を結合したAPIレスポンス。
type enrichedPostResponse struct {
	Post   postResponse   `json:"post"`
	Author authorResponse `json:"author"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Create は投稿作成を処理する。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	post, err := h.service.Create(r.Context(), userID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// GetAll はグローバルフィードを取得する。
// GET /api/posts
func (h *PostHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	enriched, err := h.service.GetAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEnrichedResponses(enriched))
}

// GetByID は投稿詳細を取得する。
// GET /api/posts/:id
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	enriched, err := h.service.GetByID(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEnrichedResponse(*enriched))
}

// GetPostsByUserID は指定ユーザーの投稿一覧を取得する。
// GET /api/users/:userId/posts
func (h *PostHandler) GetPostsByUserID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ユーザーIDが空です"))
		return
	}

	enriched, err := h.service.GetPostsByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEnrichedResponses(enriched))
}

// --- ヘルパー関数 ---

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(post *model.Post) postResponse {
	return postResponse{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
	}
}

// toEnrichedResponse はmodel.EnrichedPostからAPIレスポンスに変換する。
func toEnrichedResponse(e model.EnrichedPost) enrichedPostResponse {
	return enrichedPostResponse{
		Post: toPostResponse(e.Post),
		Author: authorResponse{
			ID:       e.Author.ID,
			Username: e.Author.Username,
			ImageURL: e.Author.ImageURL,
		},
	}
}

// toEnrichedResponses はエンリッチ済み投稿のバッチをAPIレスポンスに変換する。
// 結果が空でもnullではなく空配列を返す。
func toEnrichedResponses(enriched []model.EnrichedPost) []enrichedPostResponse {
	out := make([]enrichedPostResponse, 0, len(enriched))
	for _, e := range enriched {
		out = append(out, toEnrichedResponse(e))
	}
	return out
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外のエラー（著者の整合性異常や上流システムの障害を含む）は
// 詳細をログのみに記録し、一般的な500レスポンスを返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if apiErr.Code == model.ErrCodeRateLimited && apiErr.RetryAfterSec > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfterSec))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidContent, model.ErrCodeContentNotEmoji, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
