package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RawQuery はクエリ文字列。
	RawQuery string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// newRecordingServer は受け取ったリクエストを記録し、固定のレスポンスを返すテストサーバーを生成する。
func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *testRequest) {
	t.Helper()
	received := &testRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.RawQuery = r.URL.RawQuery
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(ts.Close)
	return ts, received
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("デフォルトのタイムアウトが設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8086")
		if client.baseURL != "http://localhost:8086" {
			t.Errorf("baseURL = %q", client.baseURL)
		}
		if client.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
		}
	})

	t.Run("オプションでトークンとタイムアウトを設定できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8086", WithToken("tok"), WithTimeout(5*time.Second))
		if client.token != "tok" {
			t.Errorf("token = %q", client.token)
		}
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v", client.httpClient.Timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("Bearerトークンを付けて送信できること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusCreated, `{"id":"n1"}`)
		client := New(ts.URL, WithToken("secret-token"))

		var result struct {
			ID string `json:"id"`
		}
		if err := client.PostJSON(context.Background(), "/api/v1/internal/notifications", map[string]string{"title": "t"}, &result); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodPost {
			t.Errorf("Method = %q", received.Method)
		}
		if got := received.Headers.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if result.ID != "n1" {
			t.Errorf("result.ID = %q", result.ID)
		}
	})

	t.Run("エラーレスポンスをAPIErrorとして返すこと", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusBadRequest, `{"error":"入力値が不正です","fields":{"title":"必須項目です"}}`)
		client := New(ts.URL)

		err := client.PostJSON(context.Background(), "/api/v1/internal/notifications", map[string]string{}, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("APIErrorを期待: got %v", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", apiErr.StatusCode)
		}
		if apiErr.Message != "入力値が不正です" || apiErr.Fields["title"] != "必須項目です" {
			t.Errorf("APIError = %+v", apiErr)
		}
	})

	t.Run("JSONでないエラーレスポンスはボディをそのまま保持すること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusBadGateway, `upstream down`)
		client := New(ts.URL)

		err := client.GetJSON(context.Background(), "/health", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("APIErrorを期待: got %v", err)
		}
		if apiErr.Message != "upstream down" {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusOK, `{}`)
		client := New(ts.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		if err := client.PostJSON(ctx, "/api/v1/notifications/read", map[string]any{}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestListFeed はListFeedがクエリを組み立てレスポンスを解析することを検証する。
func TestListFeed(t *testing.T) {
	t.Parallel()

	t.Run("条件をクエリパラメータに変換すること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, `{
			"items":[{"id":"n2","kind":"GIG_STATUS","createdAt":"2026-03-01T12:00:01.000Z","readAt":null,"isRead":false,"metadata":{}}],
			"unreadCount":4,
			"now":"2026-03-01T12:05:00.000Z",
			"nextCursor":"2026-03-01T12:00:01.000Z"
		}`)
		client := New(ts.URL)

		cursor := time.Date(2026, 3, 1, 21, 0, 0, 0, time.FixedZone("JST", 9*60*60))
		feed, err := client.ListFeed(context.Background(), FeedParams{OnlyUnread: true, Cursor: &cursor, Limit: 10})
		if err != nil {
			t.Fatalf("ListFeed()でエラーが発生: %v", err)
		}

		if received.Path != "/api/v1/notifications" {
			t.Errorf("Path = %q", received.Path)
		}
		if want := "cursor=2026-03-01T12%3A00%3A00.000Z&limit=10&unread=1"; received.RawQuery != want {
			t.Errorf("RawQuery = %q, want %q", received.RawQuery, want)
		}
		if len(feed.Items) != 1 || feed.Items[0].ID != "n2" {
			t.Errorf("Items = %+v", feed.Items)
		}
		if feed.UnreadCount != 4 {
			t.Errorf("UnreadCount = %d", feed.UnreadCount)
		}
		if feed.NextCursor == nil || !feed.NextCursor.Equal(time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)) {
			t.Errorf("NextCursor = %v", feed.NextCursor)
		}
	})

	t.Run("条件がない場合はクエリを付けないこと", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, `{"items":[],"unreadCount":0,"now":"2026-03-01T12:05:00.000Z","nextCursor":null}`)
		client := New(ts.URL)

		feed, err := client.ListFeed(context.Background(), FeedParams{})
		if err != nil {
			t.Fatalf("ListFeed()でエラーが発生: %v", err)
		}
		if received.RawQuery != "" {
			t.Errorf("RawQuery = %q", received.RawQuery)
		}
		if feed.NextCursor != nil {
			t.Errorf("NextCursor = %v", feed.NextCursor)
		}
	})
}

// TestMarkRead はMarkReadがリクエストボディを送り未読件数を返すことを検証する。
func TestMarkRead(t *testing.T) {
	t.Parallel()

	ts, received := newRecordingServer(t, http.StatusOK, `{"ok":true,"unreadCount":2}`)
	client := New(ts.URL)

	unread, err := client.MarkRead(context.Background(), MarkReadRequest{IDs: []string{"n1", "n2"}})
	if err != nil {
		t.Fatalf("MarkRead()でエラーが発生: %v", err)
	}
	if unread != 2 {
		t.Errorf("unread = %d", unread)
	}

	var sent map[string]any
	if err := json.Unmarshal(received.Body, &sent); err != nil {
		t.Fatalf("リクエストボディのパースに失敗: %v", err)
	}
	if _, ok := sent["allBefore"]; ok {
		t.Errorf("allBeforeは省略されるべき: %v", sent)
	}
	if ids, _ := sent["ids"].([]any); len(ids) != 2 {
		t.Errorf("ids = %v", sent["ids"])
	}
}

// TestCreateAndUnreadCount は作成と未読件数の取得を検証する。
func TestCreateAndUnreadCount(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/internal/notifications", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"n9"}`))
	})
	mux.HandleFunc("GET /api/v1/notifications/unread-count", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unreadCount":7}`))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	client := New(ts.URL)
	id, err := client.Create(context.Background(), CreateRequest{Recipient: "a@x.com", Kind: "SYSTEM", Title: "t", Body: "b"})
	if err != nil || id != "n9" {
		t.Errorf("Create() = %q, %v", id, err)
	}
	unread, err := client.UnreadCount(context.Background())
	if err != nil || unread != 7 {
		t.Errorf("UnreadCount() = %d, %v", unread, err)
	}
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() = %v", err)
	}
}
