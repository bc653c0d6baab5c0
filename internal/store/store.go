// Package store はアカウント・メッセージ・投票の永続化インターフェースを定義する。
//
// 実装は SQL（SQLite / PostgreSQL）を扱う sqlstore と、
// MongoDB を扱う mongostore の2種類がある。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/chatroom/internal/vote"
)

var (
	// ErrUsernameTaken は同じユーザー名のアカウントが既に存在する場合のエラー。
	ErrUsernameTaken = errors.New("ユーザー名は既に使用されています")
	// ErrNotFound は対象のレコードが存在しない場合のエラー。
	ErrNotFound = errors.New("レコードが見つかりません")
)

// Account はユーザーアカウントを表す。作成後は変更されない。
type Account struct {
	// Username はアカウントの一意なユーザー名。
	Username string
	// HashedPassword はbcryptでハッシュ化されたパスワード。
	HashedPassword []byte
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// Message は投稿されたメッセージを表す。
type Message struct {
	// ID はメッセージの一意識別子（UUID）。
	ID string
	// Username は投稿者のユーザー名。
	Username string
	// Content は本文。
	Content string
	// Upvotes は賛成票の数。
	Upvotes int
	// Downvotes は反対票の数。
	Downvotes int
	// UserVote は閲覧者本人の投票状態。保存値ではなく読み出し時に導出する。
	UserVote vote.State
	// CreatedAt は投稿日時。
	CreatedAt time.Time
}

// Store は永続化層の操作を表す。
type Store interface {
	// CreateAccount はアカウントを作成する。
	// ユーザー名が重複している場合は ErrUsernameTaken を返す。
	CreateAccount(ctx context.Context, account Account) error
	// GetAccount はユーザー名でアカウントを取得する。存在しない場合は ErrNotFound。
	GetAccount(ctx context.Context, username string) (Account, error)
	// CreateMessage はメッセージを保存する。
	CreateMessage(ctx context.Context, msg Message) error
	// ListMessages は全メッセージを保存順に返す。
	// UserVote には viewer 本人の投票状態を設定する。
	ListMessages(ctx context.Context, viewer string) ([]Message, error)
	// ApplyVote は voter による requested の投票をメッセージに原子的に適用する。
	// 直前の投票状態はサーバー側の記録から取得する。
	// メッセージが存在しない場合は ErrNotFound を返し、何も変更しない。
	// 戻り値の UserVote には適用後の voter の状態が入る。
	ApplyVote(ctx context.Context, messageID, voter string, requested vote.State) (Message, error)
	// Close は接続を閉じる。
	Close() error
}
