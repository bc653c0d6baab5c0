package chatroom

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chatroom/internal/accounts"
	"github.com/nao1215/chatroom/internal/config"
	"github.com/nao1215/chatroom/internal/messages"
	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/internal/store/mongostore"
	"github.com/nao1215/chatroom/internal/store/sqlstore"
	"github.com/nao1215/chatroom/pkg/middleware"
)

// Server はメッセージボードのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は永続化層。
	store store.Store
	// accounts は認証サービス。
	accounts *accounts.Service
	// messages はメッセージサービス。
	messages *messages.Service
}

// NewServer は設定と永続化層から新しいサーバーを生成する。
// opts は認証サービスの生成に渡される。
func NewServer(cfg config.Config, st store.Store, opts ...accounts.Option) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.FrontendURLs))

	s := &Server{
		router:   router,
		port:     cfg.Port,
		store:    st,
		accounts: accounts.NewService(st, cfg.JWTSecret, cfg.TokenTTL, opts...),
		messages: messages.NewService(st),
	}
	s.setupRoutes()

	return s
}

// OpenStore はデータベースURLのスキームに応じた永続化層を開く。
func OpenStore(ctx context.Context, databaseURL string) (store.Store, error) {
	backend, dsn, err := config.ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendSQLite, config.BackendPostgres:
		dialect := sqlstore.SQLite
		if backend == config.BackendPostgres {
			dialect = sqlstore.Postgres
		}
		st, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendMongo:
		st, err := mongostore.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("未対応のデータベースです: %q", backend)
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr はリッスンアドレスを返す。
func (s *Server) Addr() string {
	return ":" + s.port
}

// Close は永続化層の接続を閉じる。
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		// アカウント（認証不要）
		api.POST("/signup", s.handleSignup())
		api.POST("/login", s.handleLogin())

		// メッセージ（認証必須）
		msgs := api.Group("/messages")
		msgs.Use(middleware.JWTAuth(s.accounts))
		{
			msgs.GET("", s.handleListMessages())
			msgs.POST("", s.handlePostMessage())
			msgs.PUT("/:message_id", s.handleVote())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chatroom"})
	})
}
