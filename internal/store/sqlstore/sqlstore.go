// Package sqlstore はSQLiteまたはPostgreSQLを使ったstore.Storeの実装を提供する。
//
// SQLiteはmodernc.org/sqlite、PostgreSQLはpgxのdatabase/sqlドライバを使用する。
// スキーマは起動時にembedされたマイグレーションから作成する。
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect は接続先のSQL方言を表す。
type Dialect string

const (
	// SQLite はmodernc.org/sqliteで接続するSQLite。
	SQLite Dialect = "sqlite"
	// Postgres はpgxで接続するPostgreSQL。
	Postgres Dialect = "postgres"
)

// driverName はdatabase/sqlに登録されたドライバ名を返す。
func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// sqliteDefaultPragmas は指定が無い場合にSQLiteのDSNへ付与するプラグマ。
const sqliteDefaultPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Store はSQLデータベースを使ったstore.Storeの実装。
type Store struct {
	// db はデータベース接続。
	db *sql.DB
	// dialect は接続先のSQL方言。
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

// Open はデータベースに接続し、マイグレーションを適用したStoreを返す。
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("未対応のSQL方言です: %q", dialect)
	}
	if dialect == SQLite && !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + sqliteDefaultPragmas
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	s, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New は既存の接続からStoreを生成し、マイグレーションを適用する。
// SQLiteの場合、書き込みを直列化するため接続数を1に制限する。
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations/"+string(dialect)); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind は ? プレースホルダを方言に合わせて書き換える。
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
