package post

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrgrant560/mychirp/internal/directory"
	"github.com/jrgrant560/mychirp/internal/model"
	"github.com/jrgrant560/mychirp/internal/ratelimit"
)

// --- モック ---

// mockPostRepository はPostRepositoryのモック実装。
type mockPostRepository struct {
	createFn     func(ctx context.Context, post *model.Post) error
	findByIDFn   func(ctx context.Context, id string) (*model.Post, error)
	listRecentFn func(ctx context.Context, authorID string, limit int) ([]*model.Post, error)

	mu      sync.Mutex
	created []*model.Post
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	m.created = append(m.created, post)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return nil
}

func (m *mockPostRepository) FindByID(ctx context.Context, id string) (*model.Post, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPostRepository) ListRecent(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, authorID, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

// mockDirectory はDirectoryのモック実装。
type mockDirectory struct {
	listUsersFn func(ctx context.Context, ids []string) ([]directory.User, error)
	calledIDs   [][]string
}

func (m *mockDirectory) ListUsers(ctx context.Context, ids []string) ([]directory.User, error) {
	m.calledIDs = append(m.calledIDs, ids)
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, ids)
	}
	return nil, nil
}

// mockLimiter はLimiterのモック実装。
type mockLimiter struct {
	limitFn   func(ctx context.Context, key string) (ratelimit.Result, error)
	callCount int
}

func (m *mockLimiter) Limit(ctx context.Context, key string) (ratelimit.Result, error) {
	m.callCount++
	if m.limitFn != nil {
		return m.limitFn(ctx, key)
	}
	return ratelimit.Result{Success: true, Limit: 3, Remaining: 2, Reset: time.Now().Add(time.Minute)}, nil
}

// passthroughSanitizer は入力をそのまま返すサニタイザー。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(content string) string { return content }

// mockSanitizer は任意の変換を行うサニタイザー。
type mockSanitizer struct {
	sanitizeFn func(content string) string
}

func (m *mockSanitizer) Sanitize(content string) string { return m.sanitizeFn(content) }

// mockMetrics は投稿メトリクスの記録を捕捉する。
type mockMetrics struct {
	created  int
	rejected map[string]int
}

func (m *mockMetrics) RecordPostCreated() { m.created++ }
func (m *mockMetrics) RecordPostRejected(reason string) {
	if m.rejected == nil {
		m.rejected = make(map[string]int)
	}
	m.rejected[reason]++
}

// strPtr は文字列ポインタを返すテストヘルパー。
func strPtr(s string) *string { return &s }

// newTestService はデフォルト構成のServiceを生成する。
func newTestService(repo *mockPostRepository, dir *mockDirectory, limiter *mockLimiter) *Service {
	return NewService(repo, dir, limiter, passthroughSanitizer{}, nil, ServiceConfig{
		MaxContentLength: 280,
		EmojiOnly:        true,
	})
}

// --- Create のテスト ---

// TestCreate_Success は有効な投稿が作成されることを検証する。
func TestCreate_Success(t *testing.T) {
	repo := &mockPostRepository{}
	svc := newTestService(repo, &mockDirectory{}, &mockLimiter{})

	p, err := svc.Create(context.Background(), "user-1", "🎉🎉🎉")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if p.ID == "" {
		t.Error("expected generated post ID")
	}
	if p.AuthorID != "user-1" {
		t.Errorf("AuthorID = %q, want %q", p.AuthorID, "user-1")
	}
	if p.Content != "🎉🎉🎉" {
		t.Errorf("Content = %q, want %q", p.Content, "🎉🎉🎉")
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected non-zero CreatedAt")
	}
	if repo.createdCount() != 1 {
		t.Errorf("created count = %d, want 1", repo.createdCount())
	}
}

// TestCreate_EmptyContent は空の本文が拒否され、保存されないことを検証する。
func TestCreate_EmptyContent(t *testing.T) {
	repo := &mockPostRepository{}
	limiter := &mockLimiter{}
	svc := newTestService(repo, &mockDirectory{}, limiter)

	_, err := svc.Create(context.Background(), "user-1", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidContent {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidContent)
	}
	if repo.createdCount() != 0 {
		t.Error("rejected post must not be persisted")
	}
	if limiter.callCount != 0 {
		t.Error("rate limiter must not be consulted for invalid content")
	}
}

// TestCreate_ContentTooLong は最大文字数を超える本文が拒否されることを検証する。
// 長さは書記素ではなくルーン数で判定する。
func TestCreate_ContentTooLong(t *testing.T) {
	repo := &mockPostRepository{}
	svc := newTestService(repo, &mockDirectory{}, &mockLimiter{})

	content := strings.Repeat("🎉", 281)
	_, err := svc.Create(context.Background(), "user-1", content)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidContent {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidContent)
	}
	if repo.createdCount() != 0 {
		t.Error("rejected post must not be persisted")
	}
}

// TestCreate_MaxLengthBoundary はちょうど最大文字数の本文が許可されることを検証する。
func TestCreate_MaxLengthBoundary(t *testing.T) {
	repo := &mockPostRepository{}
	svc := newTestService(repo, &mockDirectory{}, &mockLimiter{})

	content := strings.Repeat("🎉", 280)
	if _, err := svc.Create(context.Background(), "user-1", content); err != nil {
		t.Fatalf("Create failed for max-length content: %v", err)
	}
}

// TestCreate_NonEmojiContent は絵文字のみモードで非絵文字の本文が拒否されることを検証する。
func TestCreate_NonEmojiContent(t *testing.T) {
	repo := &mockPostRepository{}
	metrics := &mockMetrics{}
	svc := NewService(repo, &mockDirectory{}, &mockLimiter{}, passthroughSanitizer{}, metrics, ServiceConfig{
		MaxContentLength: 280,
		EmojiOnly:        true,
	})

	_, err := svc.Create(context.Background(), "user-1", "hello world")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeContentNotEmoji {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeContentNotEmoji)
	}
	if metrics.rejected["content_not_emoji"] != 1 {
		t.Errorf("rejected[content_not_emoji] = %d, want 1", metrics.rejected["content_not_emoji"])
	}
}

// TestCreate_EmojiOnlyDisabled は絵文字のみモードが無効の場合に
// テキスト本文が許可されることを検証する。
func TestCreate_EmojiOnlyDisabled(t *testing.T) {
	repo := &mockPostRepository{}
	svc := NewService(repo, &mockDirectory{}, &mockLimiter{}, passthroughSanitizer{}, nil, ServiceConfig{
		MaxContentLength: 280,
		EmojiOnly:        false,
	})

	if _, err := svc.Create(context.Background(), "user-1", "plain text post"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

// TestCreate_RateLimited はレート上限超過時に429相当のエラーを返し、
// 保存が行われないことを検証する。
func TestCreate_RateLimited(t *testing.T) {
	repo := &mockPostRepository{}
	metrics := &mockMetrics{}
	limiter := &mockLimiter{
		limitFn: func(ctx context.Context, key string) (ratelimit.Result, error) {
			return ratelimit.Result{
				Success:   false,
				Limit:     3,
				Remaining: 0,
				Reset:     time.Now().Add(25 * time.Second),
			}, nil
		},
	}
	svc := NewService(repo, &mockDirectory{}, limiter, passthroughSanitizer{}, metrics, ServiceConfig{
		MaxContentLength: 280,
		EmojiOnly:        true,
	})

	_, err := svc.Create(context.Background(), "user-1", "🎉")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeRateLimited {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeRateLimited)
	}
	if apiErr.RetryAfterSec < 1 || apiErr.RetryAfterSec > 25 {
		t.Errorf("RetryAfterSec = %d, want 1..25", apiErr.RetryAfterSec)
	}
	if repo.createdCount() != 0 {
		t.Error("rate-limited post must not be persisted")
	}
	if metrics.rejected["rate_limited"] != 1 {
		t.Errorf("rejected[rate_limited] = %d, want 1", metrics.rejected["rate_limited"])
	}
}

// TestCreate_LimiterError はレート制限判定の失敗がエラーとして伝播することを検証する。
func TestCreate_LimiterError(t *testing.T) {
	repo := &mockPostRepository{}
	limiter := &mockLimiter{
		limitFn: func(ctx context.Context, key string) (ratelimit.Result, error) {
			return ratelimit.Result{}, errors.New("redis connection refused")
		},
	}
	svc := newTestService(repo, &mockDirectory{}, limiter)

	_, err := svc.Create(context.Background(), "user-1", "🎉")
	if err == nil {
		t.Fatal("expected error when limiter fails")
	}
	if repo.createdCount() != 0 {
		t.Error("post must not be persisted when limiter fails")
	}
}

// TestCreate_SanitizesBeforeValidation はサニタイズ後の本文に対して
// 検証が行われることを検証する。タグのみの入力はサニタイズで空になり拒否される。
func TestCreate_SanitizesBeforeValidation(t *testing.T) {
	repo := &mockPostRepository{}
	sanitizer := &mockSanitizer{
		sanitizeFn: func(content string) string {
			return strings.ReplaceAll(strings.ReplaceAll(content, "<script>", ""), "</script>", "")
		},
	}
	svc := NewService(repo, &mockDirectory{}, &mockLimiter{}, sanitizer, nil, ServiceConfig{
		MaxContentLength: 280,
		EmojiOnly:        true,
	})

	_, err := svc.Create(context.Background(), "user-1", "<script></script>")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidContent {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidContent)
	}
}

// TestCreate_StoresSanitizedContent は保存される本文がサニタイズ済みであることを検証する。
func TestCreate_StoresSanitizedContent(t *testing.T) {
	repo := &mockPostRepository{}
	sanitizer := &mockSanitizer{
		sanitizeFn: func(content string) string {
			return strings.TrimSuffix(content, "<b>")
		},
	}
	svc := NewService(repo, &mockDirectory{}, &mockLimiter{}, sanitizer, nil, ServiceConfig{
		MaxContentLength: 280,
		EmojiOnly:        true,
	})

	p, err := svc.Create(context.Background(), "user-1", "🎉<b>")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Content != "🎉" {
		t.Errorf("Content = %q, want sanitized %q", p.Content, "🎉")
	}
}

// --- フィード取得のテスト ---

// feedFixture はフィードテスト用の投稿と著者を構築する。
func feedFixture() ([]*model.Post, []directory.User) {
	posts := []*model.Post{
		{ID: "p3", AuthorID: "user-2", Content: "🚀", CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)},
		{ID: "p2", AuthorID: "user-1", Content: "🎉", CreatedAt: time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)},
		{ID: "p1", AuthorID: "user-2", Content: "😀", CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)},
	}
	users := []directory.User{
		{ID: "user-1", Username: strPtr("alice"), ImageURL: "https://img.example.com/alice.png"},
		{ID: "user-2", Username: strPtr("bob"), ImageURL: "https://img.example.com/bob.png"},
	}
	return posts, users
}

// TestGetAll_EnrichesAuthors はフィードの各投稿に著者情報が結合されることを検証する。
func TestGetAll_EnrichesAuthors(t *testing.T) {
	posts, users := feedFixture()
	repo := &mockPostRepository{
		listRecentFn: func(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
			if authorID != "" {
				t.Errorf("authorID = %q, want empty for global feed", authorID)
			}
			if limit != 100 {
				t.Errorf("limit = %d, want 100", limit)
			}
			return posts, nil
		},
	}
	dir := &mockDirectory{
		listUsersFn: func(ctx context.Context, ids []string) ([]directory.User, error) {
			return users, nil
		},
	}
	svc := newTestService(repo, dir, &mockLimiter{})

	enriched, err := svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(enriched) != 3 {
		t.Fatalf("len(enriched) = %d, want 3", len(enriched))
	}

	// 新着順が保持される
	if enriched[0].Post.ID != "p3" || enriched[1].Post.ID != "p2" || enriched[2].Post.ID != "p1" {
		t.Errorf("feed order = %s, %s, %s; want p3, p2, p1",
			enriched[0].Post.ID, enriched[1].Post.ID, enriched[2].Post.ID)
	}

	// 著者情報の結合
	if enriched[0].Author.Username != "bob" {
		t.Errorf("Author.Username = %q, want %q", enriched[0].Author.Username, "bob")
	}
	if enriched[1].Author.Username != "alice" {
		t.Errorf("Author.Username = %q, want %q", enriched[1].Author.Username, "alice")
	}

	// 重複する著者IDは1回のディレクトリ呼び出しにまとめられる
	if len(dir.calledIDs) != 1 {
		t.Fatalf("directory called %d times, want 1", len(dir.calledIDs))
	}
	if len(dir.calledIDs[0]) != 2 {
		t.Errorf("resolved IDs = %v, want deduplicated set of 2", dir.calledIDs[0])
	}
}

// TestGetAll_Empty は投稿が存在しない場合に空スライスを返すことを検証する。
func TestGetAll_Empty(t *testing.T) {
	repo := &mockPostRepository{}
	dir := &mockDirectory{}
	svc := newTestService(repo, dir, &mockLimiter{})

	enriched, err := svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if enriched == nil || len(enriched) != 0 {
		t.Errorf("enriched = %v, want empty slice", enriched)
	}
	if len(dir.calledIDs) != 0 {
		t.Error("directory must not be called for empty feed")
	}
}

// TestGetAll_AuthorMissing は著者がディレクトリで解決できない場合に
// 部分的な結果ではなくフィード全体が失敗することを検証する。
func TestGetAll_AuthorMissing(t *testing.T) {
	posts, _ := feedFixture()
	repo := &mockPostRepository{
		listRecentFn: func(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
			return posts, nil
		},
	}
	dir := &mockDirectory{
		listUsersFn: func(ctx context.Context, ids []string) ([]directory.User, error) {
			// user-2が欠落している
			return []directory.User{
				{ID: "user-1", Username: strPtr("alice"), ImageURL: "https://img.example.com/alice.png"},
			}, nil
		},
	}
	svc := newTestService(repo, dir, &mockLimiter{})

	_, err := svc.GetAll(context.Background())
	if !errors.Is(err, model.ErrAuthorNotResolved) {
		t.Fatalf("err = %v, want ErrAuthorNotResolved", err)
	}
}

// TestGetAll_AuthorUsernameNull は著者のユーザー名がnullの場合も
// フィード全体が失敗することを検証する。
func TestGetAll_AuthorUsernameNull(t *testing.T) {
	posts, _ := feedFixture()
	repo := &mockPostRepository{
		listRecentFn: func(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
			return posts, nil
		},
	}
	dir := &mockDirectory{
		listUsersFn: func(ctx context.Context, ids []string) ([]directory.User, error) {
			return []directory.User{
				{ID: "user-1", Username: strPtr("alice"), ImageURL: "https://img.example.com/alice.png"},
				{ID: "user-2", Username: nil, ImageURL: "https://img.example.com/bob.png"},
			}, nil
		},
	}
	svc := newTestService(repo, dir, &mockLimiter{})

	_, err := svc.GetAll(context.Background())
	if !errors.Is(err, model.ErrAuthorNotResolved) {
		t.Fatalf("err = %v, want ErrAuthorNotResolved", err)
	}
}

// TestGetAll_DirectoryError はディレクトリ呼び出しの失敗が伝播することを検証する。
func TestGetAll_DirectoryError(t *testing.T) {
	posts, _ := feedFixture()
	repo := &mockPostRepository{
		listRecentFn: func(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
			return posts, nil
		},
	}
	dir := &mockDirectory{
		listUsersFn: func(ctx context.Context, ids []string) ([]directory.User, error) {
			return nil, errors.New("directory unavailable")
		},
	}
	svc := newTestService(repo, dir, &mockLimiter{})

	if _, err := svc.GetAll(context.Background()); err == nil {
		t.Fatal("expected error when directory call fails")
	}
}

// TestGetPostsByUserID_FiltersByAuthor は著者IDでの絞り込みが
// リポジトリに渡されることを検証する。
func TestGetPostsByUserID_FiltersByAuthor(t *testing.T) {
	repo := &mockPostRepository{
		listRecentFn: func(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
			if authorID != "user-1" {
				t.Errorf("authorID = %q, want %q", authorID, "user-1")
			}
			return []*model.Post{
				{ID: "p1", AuthorID: "user-1", Content: "🎉", CreatedAt: time.Now().UTC()},
			}, nil
		},
	}
	dir := &mockDirectory{
		listUsersFn: func(ctx context.Context, ids []string) ([]directory.User, error) {
			return []directory.User{
				{ID: "user-1", Username: strPtr("alice"), ImageURL: ""},
			}, nil
		},
	}
	svc := newTestService(repo, dir, &mockLimiter{})

	enriched, err := svc.GetPostsByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetPostsByUserID failed: %v", err)
	}
	if len(enriched) != 1 {
		t.Fatalf("len(enriched) = %d, want 1", len(enriched))
	}
	if enriched[0].Author.Username != "alice" {
		t.Errorf("Author.Username = %q, want %q", enriched[0].Author.Username, "alice")
	}
}

// TestGetByID_Found は投稿詳細が著者情報付きで返ることを検証する。
func TestGetByID_Found(t *testing.T) {
	repo := &mockPostRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Post, error) {
			return &model.Post{ID: id, AuthorID: "user-1", Content: "🎉", CreatedAt: time.Now().UTC()}, nil
		},
	}
	dir := &mockDirectory{
		listUsersFn: func(ctx context.Context, ids []string) ([]directory.User, error) {
			return []directory.User{
				{ID: "user-1", Username: strPtr("alice"), ImageURL: ""},
			}, nil
		},
	}
	svc := newTestService(repo, dir, &mockLimiter{})

	enriched, err := svc.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if enriched.Post.ID != "p1" {
		t.Errorf("Post.ID = %q, want %q", enriched.Post.ID, "p1")
	}
	if enriched.Author.Username != "alice" {
		t.Errorf("Author.Username = %q, want %q", enriched.Author.Username, "alice")
	}
}

// TestGetByID_NotFound は存在しない投稿IDでPOST_NOT_FOUNDを返すことを検証する。
func TestGetByID_NotFound(t *testing.T) {
	repo := &mockPostRepository{}
	svc := newTestService(repo, &mockDirectory{}, &mockLimiter{})

	_, err := svc.GetByID(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodePostNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodePostNotFound)
	}
}
