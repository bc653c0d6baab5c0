package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNoToken はトークンが必要な操作をログイン前に呼び出した場合のエラー。
var ErrNoToken = errors.New("トークンがありません。先にログインしてください")

// StatusError はサーバーが2xx以外のステータスを返した場合のエラー。
type StatusError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はレスポンスボディの message または error の値。
	Message string
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTPエラー: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("HTTPエラー: status=%d, message=%s", e.StatusCode, e.Message)
}

// Message はメッセージのJSON構造。
type Message struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	UserVote  string    `json:"userVote"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteResult は投票結果のJSON構造。
type VoteResult struct {
	Message   string `json:"message"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	UserVote  string `json:"userVote"`
}

// Client はメッセージボードAPIのHTTPクライアント。
// 複数のゴルーチンから同時に使用できる。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サーバーのベースURL。
	baseURL string

	mu    sync.RWMutex
	token string
}

// New は新しいクライアントを生成する。
// baseURLには接続先サーバーのベースURL（例: "http://localhost:8080"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SetToken はリクエストに付与するトークンを設定する。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token は保持しているトークンを返す。
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Signup はアカウントを登録する。
func (c *Client) Signup(ctx context.Context, username, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/signup", false, credentials{username, password}, nil)
}

// Login はログインし、取得したトークンを保持して返す。
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", false, credentials{username, password}, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("レスポンスにaccess_tokenがありません")
	}
	c.SetToken(resp.AccessToken)
	return resp.AccessToken, nil
}

// ListMessages はメッセージ一覧を取得する。
func (c *Client) ListMessages(ctx context.Context) ([]Message, error) {
	var list []Message
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages", true, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PostMessage はメッセージを投稿する。
func (c *Client) PostMessage(ctx context.Context, content string) (Message, error) {
	var msg Message
	body := map[string]string{"content": content}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages", true, body, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Vote はメッセージに投票する。voteType は "upvote" または "downvote"。
// 同じ種別を再度指定すると取り消しになる。
func (c *Client) Vote(ctx context.Context, messageID, voteType string) (VoteResult, error) {
	var result VoteResult
	body := map[string]string{"voteType": voteType}
	if err := c.doJSON(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(messageID), true, body, &result); err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
// auth がtrueの場合は保持しているトークンを Authorization ヘッダーに付与する。
func (c *Client) doJSON(ctx context.Context, method, path string, auth bool, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		token := c.Token()
		if token == "" {
			return ErrNoToken
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// newStatusError はエラーレスポンスのボディから StatusError を生成する。
func newStatusError(resp *http.Response) *StatusError {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	e := &StatusError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, &payload); err == nil {
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Error
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(respBody))
	}
	return e
}
