package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Body はリクエストボディ。
	Body map[string]string
	// Authorization はAuthorizationヘッダーの値。
	Authorization string
}

// newRecordingServer は受け取ったリクエストを記録し、固定のレスポンスを返すテストサーバーを生成する。
func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *testRequest) {
	t.Helper()

	received := &testRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.EscapedPath()
		received.Authorization = r.Header.Get("Authorization")
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &received.Body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(ts.Close)
	return ts, received
}

func TestNew(t *testing.T) {
	t.Parallel()

	client := New("http://localhost:8080/")
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8080")
	}
	if client.httpClient.Timeout.Seconds() != 30 {
		t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("取得したトークンを保持して以降のリクエストに付与すること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK, `{"access_token":"tok-123"}`)
		client := New(ts.URL)

		token, err := client.Login(context.Background(), "alice", "secret")
		if err != nil {
			t.Fatalf("Login()でエラーが発生: %v", err)
		}
		if token != "tok-123" || client.Token() != "tok-123" {
			t.Errorf("token = %q, Token() = %q, want %q", token, client.Token(), "tok-123")
		}
		if received.Method != http.MethodPost || received.Path != "/api/login" {
			t.Errorf("リクエスト = %s %s", received.Method, received.Path)
		}
		if received.Body["username"] != "alice" || received.Body["password"] != "secret" {
			t.Errorf("body = %v", received.Body)
		}
		if received.Authorization != "" {
			t.Errorf("ログイン時にAuthorizationが送られた: %q", received.Authorization)
		}
	})

	t.Run("401はStatusErrorとして返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusUnauthorized, `{"message":"Invalid username or password"}`)
		client := New(ts.URL)

		_, err := client.Login(context.Background(), "alice", "wrong")
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if se.StatusCode != http.StatusUnauthorized || se.Message != "Invalid username or password" {
			t.Errorf("StatusError = %+v", se)
		}
		if client.Token() != "" {
			t.Error("失敗したログインでトークンが設定された")
		}
	})
}

func TestMessageOperations(t *testing.T) {
	t.Parallel()

	t.Run("ログイン前のメッセージ操作はErrNoTokenになること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:0")
		ctx := context.Background()
		if _, err := client.ListMessages(ctx); !errors.Is(err, ErrNoToken) {
			t.Errorf("ListMessages() err = %v, want %v", err, ErrNoToken)
		}
		if _, err := client.PostMessage(ctx, "hi"); !errors.Is(err, ErrNoToken) {
			t.Errorf("PostMessage() err = %v, want %v", err, ErrNoToken)
		}
		if _, err := client.Vote(ctx, "id", "upvote"); !errors.Is(err, ErrNoToken) {
			t.Errorf("Vote() err = %v, want %v", err, ErrNoToken)
		}
	})

	t.Run("投票はメッセージIDをエスケープしてPUTすること", func(t *testing.T) {
		t.Parallel()

		ts, received := newRecordingServer(t, http.StatusOK,
			`{"message":"Vote updated successfully","upvotes":1,"downvotes":0,"userVote":"upvote"}`)
		client := New(ts.URL)
		client.SetToken("tok")

		result, err := client.Vote(context.Background(), "a/b", "upvote")
		if err != nil {
			t.Fatalf("Vote()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodPut || received.Path != "/api/messages/a%2Fb" {
			t.Errorf("リクエスト = %s %s", received.Method, received.Path)
		}
		if received.Authorization != "tok" || received.Body["voteType"] != "upvote" {
			t.Errorf("Authorization = %q, body = %v", received.Authorization, received.Body)
		}
		if result.Upvotes != 1 || result.UserVote != "upvote" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("404はerrorフィールドをメッセージに持つStatusErrorになること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusNotFound, `{"error":"Message not found"}`)
		client := New(ts.URL)
		client.SetToken("tok")

		_, err := client.Vote(context.Background(), "missing", "upvote")
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound || se.Message != "Message not found" {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("JSONでないエラーボディはそのままメッセージになること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusBadGateway, "upstream down\n")
		client := New(ts.URL)
		client.SetToken("tok")

		_, err := client.ListMessages(context.Background())
		var se *StatusError
		if !errors.As(err, &se) || se.Message != "upstream down" {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newRecordingServer(t, http.StatusOK, "{not json")
		client := New(ts.URL)
		client.SetToken("tok")

		if _, err := client.ListMessages(context.Background()); err == nil {
			t.Error("ListMessages()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1")
		if err := client.Signup(context.Background(), "alice", "secret"); err == nil {
			t.Error("Signup()がエラーを返すべきだが、nilが返った")
		}
	})
}
