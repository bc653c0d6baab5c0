// メッセージボードサービスのエントリポイント。
// アカウント登録・ログイン・メッセージの投稿・一覧・投票のHTTP APIを提供する。
// データベースは DATABASE_URL のスキームで SQLite / PostgreSQL / MongoDB を切り替える。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/chatroom/internal/chatroom"
	"github.com/nao1215/chatroom/internal/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("メッセージボードサービスの起動に失敗: %v", err)
	}
}

// run はサーバーを起動し、シグナルを受信するまで待ってから停止する。
func run(cfg config.Config) error {
	if cfg.EphemeralSecret {
		log.Printf("JWT_SECRET が未設定のため一時的な署名鍵を生成しました。再起動すると発行済みのトークンは無効になります")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := chatroom.OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("データベースの初期化に失敗: %w", err)
	}

	server := chatroom.NewServer(cfg, st)
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("データベースのクローズに失敗: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              server.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("メッセージボードサービスを起動します: %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Printf("シグナルを受信したため停止します")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗: %w", err)
	}
	return nil
}
