// Package config はサーバーの設定を .env ファイル・環境変数・コマンドライン引数から読み込む。
//
// 優先順位はコマンドライン引数、環境変数、.env ファイル、デフォルト値の順。
// .env ファイルの値はプロセスの環境変数には反映しない。
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Backend は永続化に使うデータベースの種類を表す。
type Backend string

const (
	// BackendSQLite はmodernc.org/sqliteを使う。
	BackendSQLite Backend = "sqlite"
	// BackendPostgres はpgxを使う。
	BackendPostgres Backend = "postgres"
	// BackendMongo はMongoDBを使う。
	BackendMongo Backend = "mongodb"
)

const (
	// DefaultPort はデフォルトのリッスンポート。
	DefaultPort = "8080"
	// DefaultDatabaseURL はデータベースURLが未指定の場合に使うローカルのSQLiteファイル。
	DefaultDatabaseURL = "sqlite:chatroom.db"
	// DefaultTokenTTL はトークンの有効期間のデフォルト値。
	DefaultTokenTTL = 24 * time.Hour
	// DefaultFrontendURL はCORSで許可するデフォルトのオリジン。
	DefaultFrontendURL = "http://localhost:3000"
)

// Config はサーバーの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// DatabaseURL はデータベースの接続先。スキームで種類を判別する。
	DatabaseURL string
	// JWTSecret はJWTの署名鍵。
	JWTSecret string
	// TokenTTL は発行するトークンの有効期間。0なら無期限。
	TokenTTL time.Duration
	// FrontendURLs はCORSで許可するオリジンの一覧。
	FrontendURLs []string
	// EphemeralSecret はJWTSecretが未設定でプロセスごとに生成された場合にtrue。
	// この場合、再起動すると発行済みのトークンは全て無効になる。
	EphemeralSecret bool
}

// Load は .env ファイル、環境変数、コマンドライン引数 args から設定を読み込む。
// args にはプログラム名を含めない。
func Load(args []string) (Config, error) {
	return load(args, os.Getenv, os.Stderr)
}

func load(args []string, lookupEnv func(string) string, output io.Writer) (Config, error) {
	var (
		cfg     Config
		envFile string
		ttl     string
		origins string
	)

	flags := flag.NewFlagSet("chatroom", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&cfg.Port, "p", "", "リッスンポート (PORT)")
	flags.StringVar(&cfg.DatabaseURL, "d", "", "データベースURL (DATABASE_URL)")
	flags.StringVar(&cfg.JWTSecret, "s", "", "JWT署名鍵 (JWT_SECRET、環境変数を推奨)")
	flags.StringVar(&ttl, "ttl", "", "トークンの有効期間 (TOKEN_TTL)")
	flags.StringVar(&origins, "origins", "", "CORSで許可するオリジン、カンマ区切り (FRONTEND_URL)")
	flags.StringVar(&envFile, "env", ".env", "読み込む .env ファイル")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%s の読み込みに失敗: %w", envFile, err)
	}
	// 環境変数が .env より優先される
	getenv := func(key string) string {
		if v := lookupEnv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if cfg.Port == "" {
		cfg.Port = firstNonEmpty(getenv("PORT"), DefaultPort)
	}
	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		return Config{}, fmt.Errorf("ポート番号が不正: %q", cfg.Port)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = firstNonEmpty(getenv("DATABASE_URL"), getenv("MONGODB_URL"), DefaultDatabaseURL)
	}
	if _, _, err := ParseDatabaseURL(cfg.DatabaseURL); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.New().String()
		cfg.EphemeralSecret = true
	}

	if ttl == "" {
		ttl = getenv("TOKEN_TTL")
	}
	cfg.TokenTTL = DefaultTokenTTL
	if ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("トークンの有効期間が不正: %q", ttl)
		}
		cfg.TokenTTL = d
	}

	if origins == "" {
		origins = firstNonEmpty(getenv("FRONTEND_URL"), DefaultFrontendURL)
	}
	cfg.FrontendURLs = splitList(origins)

	return cfg, nil
}

// ParseDatabaseURL はデータベースURLから種類とドライバに渡す接続文字列を求める。
//
//	sqlite:chatroom.db, sqlite::memory:, file:chatroom.db, chatroom.db -> SQLite
//	postgres://..., postgresql://...                                    -> PostgreSQL
//	mongodb://..., mongodb+srv://...                                    -> MongoDB
func ParseDatabaseURL(url string) (Backend, string, error) {
	switch {
	case url == "":
		return "", "", errors.New("データベースURLが空です")
	case strings.HasPrefix(url, "sqlite://"):
		return BackendSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "sqlite:"):
		return BackendSQLite, strings.TrimPrefix(url, "sqlite:"), nil
	case strings.HasPrefix(url, "file:"):
		return BackendSQLite, url, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return BackendPostgres, url, nil
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return BackendMongo, url, nil
	case strings.Contains(url, "://"):
		return "", "", fmt.Errorf("未対応のデータベースURLです: %q", url)
	}
	return BackendSQLite, url, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
