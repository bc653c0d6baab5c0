package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/internal/vote"
)

// CreateMessage はメッセージを保存する。
func (s *Store) CreateMessage(ctx context.Context, msg store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO messages (id, username, content, upvotes, downvotes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), msg.ID, msg.Username, msg.Content, msg.Upvotes, msg.Downvotes, msg.CreatedAt); err != nil {
		return fmt.Errorf("メッセージの保存に失敗: %w", err)
	}
	return nil
}

// ListMessages は全メッセージを保存順に返す。
// UserVote には viewer の投票記録を結合して設定する。
func (s *Store) ListMessages(ctx context.Context, viewer string) ([]store.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT m.id, m.username, m.content, m.upvotes, m.downvotes, COALESCE(v.state, ''), m.created_at
		FROM messages m
		LEFT JOIN votes v ON v.message_id = m.id AND v.username = ?
		ORDER BY m.seq
	`), viewer)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]store.Message, 0)
	for rows.Next() {
		var (
			m     store.Message
			state string
		)
		if err := rows.Scan(&m.ID, &m.Username, &m.Content, &m.Upvotes, &m.Downvotes, &state, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗: %w", err)
		}
		if m.UserVote, err = vote.ParseState(state); err != nil {
			return nil, fmt.Errorf("メッセージ %s の投票状態が不正: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	return messages, nil
}

// ApplyVote は1つのトランザクション内で投票記録とカウンタを更新する。
//
// 最初に対象行への空更新を行い、存在確認と書き込みロックの取得を兼ねる。
// PostgreSQLでは行ロック、SQLiteではデータベースの書き込みロックとなるため、
// 同じメッセージへの同時投票は直列化され、カウンタの更新が失われない。
func (s *Store) ApplyVote(ctx context.Context, messageID, voter string, requested vote.State) (store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Message{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE messages SET upvotes = upvotes WHERE id = ?`), messageID)
	if err != nil {
		return store.Message{}, fmt.Errorf("メッセージのロックに失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Message{}, fmt.Errorf("メッセージのロック結果の取得に失敗: %w", err)
	}
	if n == 0 {
		return store.Message{}, store.ErrNotFound
	}

	prior, err := s.priorVote(ctx, tx, messageID, voter)
	if err != nil {
		return store.Message{}, err
	}

	t, err := vote.Apply(prior, requested)
	if err != nil {
		return store.Message{}, err
	}

	if t.Next == vote.None {
		_, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM votes WHERE message_id = ? AND username = ?`), messageID, voter)
	} else {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO votes (message_id, username, state, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (message_id, username) DO UPDATE
			SET state = excluded.state, updated_at = excluded.updated_at
		`), messageID, voter, string(t.Next), time.Now().UTC())
	}
	if err != nil {
		return store.Message{}, fmt.Errorf("投票記録の更新に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE messages SET upvotes = upvotes + ?, downvotes = downvotes + ? WHERE id = ?
	`), t.Up, t.Down, messageID); err != nil {
		return store.Message{}, fmt.Errorf("投票数の更新に失敗: %w", err)
	}

	m := store.Message{UserVote: t.Next}
	if err := tx.QueryRowContext(ctx, s.rebind(`
		SELECT id, username, content, upvotes, downvotes, created_at FROM messages WHERE id = ?
	`), messageID).Scan(&m.ID, &m.Username, &m.Content, &m.Upvotes, &m.Downvotes, &m.CreatedAt); err != nil {
		return store.Message{}, fmt.Errorf("更新後のメッセージ取得に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.Message{}, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return m, nil
}

// priorVote はトランザクション内で voter の現在の投票状態を取得する。
func (s *Store) priorVote(ctx context.Context, tx *sql.Tx, messageID, voter string) (vote.State, error) {
	var state string
	err := tx.QueryRowContext(ctx, s.rebind(`
		SELECT state FROM votes WHERE message_id = ? AND username = ?
	`), messageID, voter).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return vote.None, nil
	}
	if err != nil {
		return "", fmt.Errorf("投票記録の取得に失敗: %w", err)
	}
	return vote.ParseState(state)
}
