package chatroom

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chatroom/internal/accounts"
	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/internal/store/mongostore"
	"github.com/nao1215/chatroom/internal/vote"
	"github.com/nao1215/chatroom/pkg/middleware"
)

// credentialsRequest はアカウント登録とログインのリクエストJSON構造。
type credentialsRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required,max=64"`
	// Password は平文のパスワード。
	Password string `json:"password" binding:"required,max=72"`
}

// postMessageRequest はメッセージ投稿リクエストのJSON構造。
type postMessageRequest struct {
	// Content は本文。空文字列は許可するがフィールドは必須。
	Content *string `json:"content" binding:"required"`
	// Username は互換性のために受け付けるが使用しない。
	Username string `json:"username"`
}

// voteRequest は投票リクエストのJSON構造。
type voteRequest struct {
	// VoteType は要求する投票種別。
	VoteType string `json:"voteType" binding:"required,oneof=upvote downvote"`
	// UserVote は互換性のために受け付けるが使用しない。
	UserVote string `json:"userVote"`
}

// messageResponse はメッセージのJSONレスポンス構造。
type messageResponse struct {
	// ID はメッセージの一意識別子。
	ID string `json:"_id"`
	// Username は投稿者のユーザー名。
	Username string `json:"username"`
	// Content は本文。
	Content string `json:"content"`
	// Upvotes は賛成票の数。
	Upvotes int `json:"upvotes"`
	// Downvotes は反対票の数。
	Downvotes int `json:"downvotes"`
	// UserVote は閲覧者本人の投票状態。
	UserVote string `json:"userVote"`
	// CreatedAt は投稿日時（RFC 3339）。
	CreatedAt string `json:"createdAt"`
}

// voteResponse は投票結果のJSONレスポンス構造。
type voteResponse struct {
	Message   string `json:"message"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	UserVote  string `json:"userVote"`
}

// toMessageResponse はメッセージをJSONレスポンスに変換する。
func toMessageResponse(m store.Message) messageResponse {
	userVote := m.UserVote
	if !userVote.Valid() {
		userVote = vote.None
	}
	return messageResponse{
		ID:        m.ID,
		Username:  m.Username,
		Content:   m.Content,
		Upvotes:   m.Upvotes,
		Downvotes: m.Downvotes,
		UserVote:  string(userVote),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// badRequest は不正なリクエストボディに対する400レスポンスを返す。
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "Invalid request body",
		"details": err.Error(),
	})
}

// internalError はログを出力して500レスポンスを返す。
func internalError(c *gin.Context, what string, err error) {
	log.Printf("%sエラー: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// handleSignup はアカウント登録を処理するハンドラを返す。
func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		err := s.accounts.Register(c.Request.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"message": "Username already exists"})
			return
		case errors.Is(err, accounts.ErrInvalidInput):
			badRequest(c, err)
			return
		case err != nil:
			internalError(c, "アカウント登録", err)
			return
		}

		log.Printf("アカウントを登録しました: %s", req.Username)
		c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
	}
}

// handleLogin はログインを処理し、アクセストークンを返すハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		token, err := s.accounts.Login(c.Request.Context(), req.Username, req.Password)
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
			return
		}
		if err != nil {
			internalError(c, "ログイン", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"access_token": token})
	}
}

// handleListMessages はメッセージ一覧を返すハンドラを返す。
// 閲覧者はトークンのユーザー名で決まる。
func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := middleware.GetUsername(c)

		list, err := s.messages.List(c.Request.Context(), requester)
		if err != nil {
			internalError(c, "メッセージ一覧取得", err)
			return
		}

		resp := make([]messageResponse, 0, len(list))
		for _, m := range list {
			resp = append(resp, toMessageResponse(m))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handlePostMessage はメッセージ投稿を処理するハンドラを返す。
// 投稿者はトークンのユーザー名で決まる。
func (s *Server) handlePostMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		msg, err := s.messages.Post(c.Request.Context(), middleware.GetUsername(c), *req.Content)
		if err != nil {
			internalError(c, "メッセージ投稿", err)
			return
		}

		c.JSON(http.StatusCreated, toMessageResponse(msg))
	}
}

// handleVote は投票を処理するハンドラを返す。
func (s *Server) handleVote() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req voteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		msg, err := s.messages.Vote(c.Request.Context(), c.Param("message_id"), middleware.GetUsername(c), vote.State(req.VoteType))
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		case errors.Is(err, vote.ErrInvalidState):
			badRequest(c, err)
			return
		case errors.Is(err, mongostore.ErrVoteConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Vote conflict, please retry"})
			return
		case err != nil:
			internalError(c, "投票", err)
			return
		}

		c.JSON(http.StatusOK, voteResponse{
			Message:   "Vote updated successfully",
			Upvotes:   msg.Upvotes,
			Downvotes: msg.Downvotes,
			UserVote:  string(msg.UserVote),
		})
	}
}
