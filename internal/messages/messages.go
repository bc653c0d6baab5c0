// Package messages はメッセージの投稿・一覧・投票を提供する。
package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/internal/vote"
)

// Service はメッセージに関する操作を提供する。
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService はServiceを生成する。
func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Post は author のメッセージを新しいIDで保存して返す。
// 本文の長さや空文字列は検証しない。
func (s *Service) Post(ctx context.Context, author, content string) (store.Message, error) {
	msg := store.Message{
		ID:        uuid.New().String(),
		Username:  author,
		Content:   content,
		UserVote:  vote.None,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return store.Message{}, fmt.Errorf("メッセージの投稿に失敗: %w", err)
	}
	return msg, nil
}

// List は全メッセージを保存順に返す。
// requester が投稿者でないメッセージの UserVote は常に none にする。
func (s *Service) List(ctx context.Context, requester string) ([]store.Message, error) {
	list, err := s.store.ListMessages(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	for i := range list {
		if list[i].Username != requester || !list[i].UserVote.Valid() {
			list[i].UserVote = vote.None
		}
	}
	return list, nil
}

// Vote は voter による voteType の投票を適用し、更新後のメッセージを返す。
// 直前の投票状態は保存済みの記録から求める。
// メッセージが存在しない場合は store.ErrNotFound を返す。
func (s *Service) Vote(ctx context.Context, messageID, voter string, voteType vote.State) (store.Message, error) {
	requested, err := vote.ParseRequested(string(voteType))
	if err != nil {
		return store.Message{}, err
	}
	msg, err := s.store.ApplyVote(ctx, messageID, voter, requested)
	if err != nil {
		return store.Message{}, fmt.Errorf("メッセージ %s への投票に失敗: %w", messageID, err)
	}
	return msg, nil
}
