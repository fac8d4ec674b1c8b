// Package post は投稿のドメインロジックを提供する。
// 投稿の作成（検証・レート制限・永続化）とフィードの組み立て
// （著者情報のエンリッチメント）を統括する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jrgrant560/mychirp/internal/directory"
	"github.com/jrgrant560/mychirp/internal/model"
	"github.com/jrgrant560/mychirp/internal/ratelimit"
	"github.com/jrgrant560/mychirp/internal/repository"
	"github.com/jrgrant560/mychirp/internal/security"
)

// maxFeedPosts はフィード1回の取得上限。
// ディレクトリへの一括解決の上限と揃えている。
const maxFeedPosts = 100

// Directory は投稿サービスが必要とするユーザーディレクトリのインターフェース。
type Directory interface {
	// ListUsers は複数ユーザーIDを1回のAPI呼び出しで一括解決する。
	ListUsers(ctx context.Context, ids []string) ([]directory.User, error)
}

// Metrics は投稿操作の計測インターフェース。
type Metrics interface {
	RecordPostCreated()
	RecordPostRejected(reason string)
}

// ServiceConfig は投稿サービスの設定を保持する。
type ServiceConfig struct {
	MaxContentLength int  // 本文の最大文字数
	EmojiOnly        bool // trueの場合、本文は絵文字のみを許可する
}

// Service は投稿のサービス層。
type Service struct {
	repo      repository.PostRepository
	dir       Directory
	limiter   ratelimit.Limiter
	sanitizer security.ContentSanitizerService
	metrics   Metrics
	config    ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（計測なしで動作する）。
func NewService(
	repo repository.PostRepository,
	dir Directory,
	limiter ratelimit.Limiter,
	sanitizer security.ContentSanitizerService,
	metrics Metrics,
	config ServiceConfig,
) *Service {
	return &Service{
		repo:      repo,
		dir:       dir,
		limiter:   limiter,
		sanitizer: sanitizer,
		metrics:   metrics,
		config:    config,
	}
}

// Create は認証済みユーザーの投稿を作成する。
// フロー: サニタイズ → 本文検証 → レート制限判定 → 永続化
// 検証またはレート制限で失敗した場合、ストレージには一切書き込まない。
//
// レート制限の判定とINSERTはアトミックではない。同一ユーザーからの同時
// リクエストが際どいタイミングで上限を超えて書き込まれることがあるが、
// これはスライディングウィンドウ方式の既知の制約として許容する。
func (s *Service) Create(ctx context.Context, authorID, content string) (*model.Post, error) {
	// 1. サニタイズ（検証は保存される本文に対して行う）
	content = s.sanitizer.Sanitize(content)

	// 2. 本文検証
	length := utf8.RuneCountInString(content)
	if length < 1 || length > s.config.MaxContentLength {
		s.recordRejected("invalid_content")
		return nil, model.NewInvalidContentError(length, s.config.MaxContentLength)
	}
	if s.config.EmojiOnly && !IsEmojiOnly(content) {
		s.recordRejected("content_not_emoji")
		return nil, model.NewContentNotEmojiError()
	}

	// 3. レート制限判定
	result, err := s.limiter.Limit(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("レート制限の判定に失敗しました: %w", err)
	}
	if !result.Success {
		retryAfter := int(math.Ceil(time.Until(result.Reset).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		s.recordRejected("rate_limited")
		slog.Warn("投稿がレート制限により拒否されました",
			slog.String("author_id", authorID),
			slog.Int("retry_after_sec", retryAfter),
		)
		return nil, model.NewRateLimitedError(retryAfter)
	}

	// 4. 永続化
	p := &model.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPostCreated()
	}
	slog.Info("投稿を作成しました",
		slog.String("post_id", p.ID),
		slog.String("author_id", p.AuthorID),
	)

	return p, nil
}

// GetAll はグローバルフィードを新着順で返す（最大100件）。
// 各投稿には著者情報が結合される。
func (s *Service) GetAll(ctx context.Context) ([]model.EnrichedPost, error) {
	posts, err := s.repo.ListRecent(ctx, "", maxFeedPosts)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, posts)
}

// GetPostsByUserID は指定著者の投稿を新着順で返す（最大100件）。
func (s *Service) GetPostsByUserID(ctx context.Context, userID string) ([]model.EnrichedPost, error) {
	posts, err := s.repo.ListRecent(ctx, userID, maxFeedPosts)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, posts)
}

// GetByID は指定IDの投稿を著者情報付きで返す。
// 投稿が存在しない場合はPOST_NOT_FOUNDを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.EnrichedPost, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}

	enriched, err := s.enrich(ctx, []*model.Post{p})
	if err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

// enrich は投稿バッチに著者情報を結合する。
// バッチ内の重複しない著者ID集合を1回のディレクトリ呼び出しで解決する。
// いずれかの投稿の著者が解決できない場合（ディレクトリに存在しない、
// またはユーザー名がnull）、部分的な結果を返さずバッチ全体を失敗させる。
func (s *Service) enrich(ctx context.Context, posts []*model.Post) ([]model.EnrichedPost, error) {
	if len(posts) == 0 {
		return []model.EnrichedPost{}, nil
	}

	// 重複しない著者ID集合を収集する
	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}

	users, err := s.dir.ListUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("著者情報の一括取得に失敗しました: %w", err)
	}

	authors := make(map[string]model.Author, len(users))
	for _, u := range users {
		// ユーザー名がnullの著者は解決不能として扱う（マップに入れない）
		if a, ok := directory.ToAuthor(u); ok {
			authors[u.ID] = a
		}
	}

	enriched := make([]model.EnrichedPost, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			return nil, fmt.Errorf("%w: post_id=%s author_id=%s",
				model.ErrAuthorNotResolved, p.ID, p.AuthorID)
		}
		enriched = append(enriched, model.EnrichedPost{Post: p, Author: author})
	}

	return enriched, nil
}

func (s *Service) recordRejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordPostRejected(reason)
	}
}
