package httpclient_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chatroom/internal/accounts"
	"github.com/nao1215/chatroom/internal/chatroom"
	"github.com/nao1215/chatroom/internal/config"
	"github.com/nao1215/chatroom/internal/store/sqlstore"
	"github.com/nao1215/chatroom/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newChatroomServer はインメモリSQLiteで動くメッセージボードサーバーを起動する。
func newChatroomServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := sqlstore.New(context.Background(), db, sqlstore.SQLite)
	require.NoError(t, err)

	srv := chatroom.NewServer(config.Config{
		Port:      "0",
		JWTSecret: "e2e-secret",
		TokenTTL:  time.Hour,
	}, st, accounts.WithBcryptCost(bcrypt.MinCost))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientAgainstServer(t *testing.T) {
	t.Parallel()

	ts := newChatroomServer(t)
	ctx := context.Background()

	alice := httpclient.New(ts.URL)
	bob := httpclient.New(ts.URL)

	require.NoError(t, alice.Signup(ctx, "alice", "alice-pw"))
	require.NoError(t, bob.Signup(ctx, "bob", "bob-pw"))

	err := alice.Signup(ctx, "alice", "again")
	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, "Username already exists", se.Message)

	_, err = alice.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	_, err = bob.Login(ctx, "bob", "bob-pw")
	require.NoError(t, err)

	msg, err := alice.PostMessage(ctx, "hello from alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "none", msg.UserVote)
	assert.False(t, msg.CreatedAt.IsZero())

	result, err := bob.Vote(ctx, msg.ID, "upvote")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Upvotes)
	assert.Equal(t, "upvote", result.UserVote)

	result, err = alice.Vote(ctx, msg.ID, "downvote")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Upvotes)
	assert.Equal(t, 1, result.Downvotes)
	assert.Equal(t, "downvote", result.UserVote)

	// bobの一覧では他人のメッセージなのでnone、aliceの一覧では自分の投票が見える
	bobList, err := bob.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.Equal(t, "none", bobList[0].UserVote)

	aliceList, err := alice.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	assert.Equal(t, "downvote", aliceList[0].UserVote)

	_, err = bob.Vote(ctx, "does-not-exist", "upvote")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	bob.SetToken("garbage")
	_, err = bob.ListMessages(ctx)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Token is invalid", se.Message)
}
