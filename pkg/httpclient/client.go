package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout はリクエストのデフォルトのタイムアウト。
const DefaultTimeout = 30 * time.Second

// Client は通知サービスのAPIを呼び出すHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は通知サービスのベースURL。
	baseURL string
	// token はAuthorizationヘッダーに付けるBearerトークン。
	token string
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithToken はBearerトークンを設定する。
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient は内部で使用するHTTPクライアントを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New は新しいクライアントを生成する。
// baseURLには通知サービスのベースURL（例: "http://notification:8086"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError はサービスが2xx以外を返したことを表す。
type APIError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はレスポンスのerrorフィールド。読み取れない場合はボディそのもの。
	Message string
	// Fields は検証エラーの項目ごとの理由。
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("HTTPエラー: status=%d, %s %v", e.StatusCode, e.Message, e.Fields)
	}
	return fmt.Sprintf("HTTPエラー: status=%d, %s", e.StatusCode, e.Message)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// PutJSON は指定パスにPUTリクエストを送信する。
func (c *Client) PutJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// decodeAPIError はエラーレスポンスをAPIErrorに変換する。
func decodeAPIError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var payload struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	if err := json.Unmarshal(respBody, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Fields = payload.Fields
	}
	return apiErr
}
