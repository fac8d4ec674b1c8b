// Package directory は外部ユーザーディレクトリ（ホスト型IdP）との連携を提供する。
// ユーザーIDの一括解決とユーザー名検索のAPI呼び出しを含む。
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jrgrant560/mychirp/internal/model"
)

const (
	// usersPath はユーザー一覧取得APIのパス。
	usersPath = "/v1/users"
	// maxIDsPerRequest は1リクエストあたりの最大ユーザーID数。
	// 投稿フィードの取得上限と揃えることでファンアウトを抑える。
	maxIDsPerRequest = 100
)

// User はディレクトリAPIが返すユーザーを表す。
// Usernameはディレクトリ側でnull許容のためポインタで保持する。
type User struct {
	ID       string  `json:"id"`
	Username *string `json:"username"`
	ImageURL string  `json:"image_url"`
}

// Metrics はディレクトリAPI呼び出しの計測インターフェース。
type Metrics interface {
	RecordDirectoryRequest(outcome string, duration time.Duration)
}

// Client はユーザーディレクトリAPIのクライアント。
// 一括取得エンドポイントを使用して複数ユーザーを1リクエストで解決する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Metrics
	baseURL    string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsはnilを許容する（計測なしで動作する）。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics Metrics, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// ListUsers は複数ユーザーIDを1回のAPI呼び出しで一括解決する。
// IDリストは最大100件まで。レスポンスに含まれないIDの扱いは呼び出し元が判断する。
func (c *Client) ListUsers(ctx context.Context, ids []string) ([]User, error) {
	// 空リストの場合はAPIを呼ばない
	if len(ids) == 0 {
		return nil, nil
	}

	// ID数の上限チェック
	if len(ids) > maxIDsPerRequest {
		return nil, fmt.Errorf("ユーザーIDの数が上限を超えています: %d > %d", len(ids), maxIDsPerRequest)
	}

	q := url.Values{}
	for _, id := range ids {
		q.Add("user_id", id)
	}
	q.Set("limit", fmt.Sprintf("%d", maxIDsPerRequest))

	return c.getUsers(ctx, q)
}

// FindByUsername は指定されたユーザー名に完全一致するユーザーを検索する。
// 見つからない場合はnilを返す。
func (c *Client) FindByUsername(ctx context.Context, username string) (*User, error) {
	q := url.Values{}
	q.Add("username", username)
	q.Set("limit", "1")

	users, err := c.getUsers(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// getUsers はユーザー一覧エンドポイントを呼び出してレスポンスをデコードする。
func (c *Client) getUsers(ctx context.Context, query url.Values) ([]User, error) {
	reqURL, err := url.Parse(c.baseURL + usersPath)
	if err != nil {
		return nil, fmt.Errorf("ディレクトリAPIのURL構築に失敗しました: %w", err)
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "Mychirp/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordMetrics("transport_error", start)
		c.logger.Error("ディレクトリAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordMetrics("http_error", start)
		c.logger.Error("ディレクトリAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("ディレクトリAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordMetrics("read_error", start)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		c.recordMetrics("parse_error", start)
		c.logger.Error("ディレクトリAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	c.recordMetrics("success", start)
	return users, nil
}

func (c *Client) recordMetrics(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordDirectoryRequest(outcome, time.Since(start))
	}
}

// ToAuthor はディレクトリユーザーを公開プロフィールの射影に変換する。
// クライアントへ送る情報を最小限に絞る。
// Usernameがnullの場合はfalseを返し、呼び出し元が整合性エラーとして処理する。
func ToAuthor(u User) (model.Author, bool) {
	if u.Username == nil {
		return model.Author{}, false
	}
	return model.Author{
		ID:       u.ID,
		Username: *u.Username,
		ImageURL: u.ImageURL,
	}, true
}
