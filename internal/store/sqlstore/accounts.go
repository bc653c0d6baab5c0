package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/chatroom/internal/store"
)

// CreateAccount はアカウントを作成する。
// 一意制約に任せて重複を判定するため、同時登録でも片方だけが成功する。
func (s *Store) CreateAccount(ctx context.Context, account store.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO accounts (username, hashed_password, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`), account.Username, account.HashedPassword, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("アカウントの作成に失敗: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("アカウント作成結果の取得に失敗: %w", err)
	}
	if n == 0 {
		return store.ErrUsernameTaken
	}
	return nil
}

// GetAccount はユーザー名でアカウントを取得する。
func (s *Store) GetAccount(ctx context.Context, username string) (store.Account, error) {
	var a store.Account
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT username, hashed_password, created_at
		FROM accounts
		WHERE username = ?
	`), username).Scan(&a.Username, &a.HashedPassword, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("アカウントの取得に失敗: %w", err)
	}
	return a, nil
}
