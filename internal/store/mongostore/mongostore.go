// Package mongostore はMongoDBを使ったstore.Storeの実装を提供する。
//
// ユーザーごとの投票はメッセージドキュメント内の votes フィールドに保持し、
// 投票は直前の状態を条件にした単一ドキュメントの更新で原子的に適用する。
package mongostore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/internal/vote"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	// DefaultDatabase は接続URIでデータベース名が省略された場合に使う名前。
	DefaultDatabase = "ChatRoomDB"

	usersCollection    = "Users"
	messagesCollection = "Messages"

	// maxVoteAttempts は投票の競合時に再試行する上限回数。
	maxVoteAttempts = 16
)

// ErrVoteConflict は再試行しても投票を適用できなかった場合のエラー。
var ErrVoteConflict = errors.New("投票の競合が解消できませんでした")

// Store はMongoDBを使ったstore.Storeの実装。
type Store struct {
	// client はMongoDBクライアント。
	client *mongo.Client
	// users はアカウントのコレクション。
	users *mongo.Collection
	// messages はメッセージのコレクション。
	messages *mongo.Collection
}

var _ store.Store = (*Store)(nil)

type accountDoc struct {
	Username       string    `bson:"username"`
	HashedPassword []byte    `bson:"hashed_password"`
	CreatedAt      time.Time `bson:"created_at"`
}

type messageDoc struct {
	ID        string `bson:"_id"`
	Username  string `bson:"username"`
	Content   string `bson:"content"`
	Upvotes   int    `bson:"upvotes"`
	Downvotes int    `bson:"downvotes"`
	// Votes は voteKey(ユーザー名) -> 投票状態。未投票のユーザーはキーを持たない。
	Votes     map[string]string `bson:"votes,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
}

// Open はMongoDBに接続し、必要なインデックスを作成したStoreを返す。
// データベース名はURIのパスから取得し、省略時は DefaultDatabase を使う。
func Open(ctx context.Context, uri string) (*Store, error) {
	database, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDB接続に失敗: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDBへの疎通確認に失敗: %w", err)
	}

	s, err := New(ctx, client, database)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New は既存のクライアントからStoreを生成する。
func New(ctx context.Context, client *mongo.Client, database string) (*Store, error) {
	db := client.Database(database)
	s := &Store{
		client:   client,
		users:    db.Collection(usersCollection),
		messages: db.Collection(messagesCollection),
	}

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("ユーザー名インデックスの作成に失敗: %w", err)
	}
	return s, nil
}

// DatabaseName は接続URIからデータベース名を取り出す。
func DatabaseName(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("MongoDB接続URIが不正: %w", err)
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}

// Close はクライアントを切断する。
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateAccount はアカウントを作成する。重複はユニークインデックスで検出する。
func (s *Store) CreateAccount(ctx context.Context, account store.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.users.InsertOne(ctx, accountDoc{
		Username:       account.Username,
		HashedPassword: account.HashedPassword,
		CreatedAt:      account.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("アカウントの作成に失敗: %w", err)
	}
	return nil
}

// GetAccount はユーザー名でアカウントを取得する。
func (s *Store) GetAccount(ctx context.Context, username string) (store.Account, error) {
	var doc accountDoc
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("アカウントの取得に失敗: %w", err)
	}
	return store.Account{
		Username:       doc.Username,
		HashedPassword: doc.HashedPassword,
		CreatedAt:      doc.CreatedAt,
	}, nil
}

// CreateMessage はメッセージを保存する。
func (s *Store) CreateMessage(ctx context.Context, msg store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := s.messages.InsertOne(ctx, messageDoc{
		ID:        msg.ID,
		Username:  msg.Username,
		Content:   msg.Content,
		Upvotes:   msg.Upvotes,
		Downvotes: msg.Downvotes,
		CreatedAt: msg.CreatedAt,
	}); err != nil {
		return fmt.Errorf("メッセージの保存に失敗: %w", err)
	}
	return nil
}

// ListMessages は全メッセージを挿入順に返す。
func (s *Store) ListMessages(ctx context.Context, viewer string) ([]store.Message, error) {
	cur, err := s.messages.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	key := voteKey(viewer)
	messages := make([]store.Message, 0)
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("メッセージの読み取りに失敗: %w", err)
		}
		state, err := vote.ParseState(doc.Votes[key])
		if err != nil {
			return nil, fmt.Errorf("メッセージ %s の投票状態が不正: %w", doc.ID, err)
		}
		messages = append(messages, toMessage(doc, state))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	return messages, nil
}

// ApplyVote は直前の投票状態を条件にした更新で投票を適用する。
// 読み取りから更新までの間に他の投票で状態が変わった場合は条件が一致せず、読み直して再試行する。
func (s *Store) ApplyVote(ctx context.Context, messageID, voter string, requested vote.State) (store.Message, error) {
	field := "votes." + voteKey(voter)

	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		var doc messageDoc
		err := s.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Message{}, store.ErrNotFound
		}
		if err != nil {
			return store.Message{}, fmt.Errorf("メッセージの取得に失敗: %w", err)
		}

		prior, err := vote.ParseState(doc.Votes[voteKey(voter)])
		if err != nil {
			return store.Message{}, err
		}
		t, err := vote.Apply(prior, requested)
		if err != nil {
			return store.Message{}, err
		}

		filter, update := voteUpdate(messageID, field, prior, t)
		var updated messageDoc
		err = s.messages.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// 他の投票が先に反映された
			continue
		}
		if err != nil {
			return store.Message{}, fmt.Errorf("投票の更新に失敗: %w", err)
		}
		return toMessage(updated, t.Next), nil
	}
	return store.Message{}, ErrVoteConflict
}

// voteUpdate は直前の状態を条件とするフィルタと、遷移を反映する更新を組み立てる。
func voteUpdate(messageID, field string, prior vote.State, t vote.Transition) (bson.M, bson.M) {
	filter := bson.M{"_id": messageID}
	if prior == vote.None {
		filter[field] = bson.M{"$exists": false}
	} else {
		filter[field] = string(prior)
	}

	update := bson.M{"$inc": bson.M{"upvotes": t.Up, "downvotes": t.Down}}
	if t.Next == vote.None {
		update["$unset"] = bson.M{field: ""}
	} else {
		update["$set"] = bson.M{field: string(t.Next)}
	}
	return filter, update
}

// voteKey はユーザー名をドキュメントのフィールド名として安全な形に変換する。
// ユーザー名に含まれうる "." や "$" はフィールドパスとして解釈されてしまうため16進表現にする。
func voteKey(username string) string {
	return hex.EncodeToString([]byte(username))
}

func toMessage(doc messageDoc, state vote.State) store.Message {
	return store.Message{
		ID:        doc.ID,
		Username:  doc.Username,
		Content:   doc.Content,
		Upvotes:   doc.Upvotes,
		Downvotes: doc.Downvotes,
		UserVote:  state,
		CreatedAt: doc.CreatedAt,
	}
}
