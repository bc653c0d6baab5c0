// Package accounts はアカウント登録・ログイン・トークン検証を提供する。
//
// パスワードはbcryptでハッシュ化して保存し、ログインに成功すると
// ユーザー名をクレームに持つHS256署名のJWTを発行する。
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nao1215/chatroom/internal/store"
	"github.com/nao1215/chatroom/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL は発行するトークンのデフォルトの有効期間。
const DefaultTokenTTL = 24 * time.Hour

// MaxUsernameLength はユーザー名の最大文字数。
const MaxUsernameLength = 64

var (
	// ErrInvalidCredentials はユーザー名またはパスワードが一致しない場合のエラー。
	// 存在しないユーザーとパスワード不一致を区別しない。
	ErrInvalidCredentials = errors.New("ユーザー名またはパスワードが正しくありません")
	// ErrUnauthorized はトークンが欠落・不正・期限切れ、
	// または存在しないアカウントを指している場合のエラー。
	ErrUnauthorized = middleware.ErrInvalidToken
	// ErrInvalidInput はユーザー名やパスワードの形式が不正な場合のエラー。
	ErrInvalidInput = errors.New("入力が不正です")
)

// Service は認証に関する操作を提供する。
type Service struct {
	// store はアカウントの保存先。
	store store.Store
	// secret はJWTの署名鍵。
	secret string
	// ttl はトークンの有効期間。0以下なら無期限。
	ttl time.Duration
	// cost はbcryptのコスト。
	cost int
}

var _ middleware.Authorizer = (*Service)(nil)

// Option はServiceの生成時オプション。
type Option func(*Service)

// WithBcryptCost はパスワードのハッシュ化に使うbcryptのコストを指定する。
// 範囲外の値は無視する。
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// NewService はServiceを生成する。
func NewService(st store.Store, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:  st,
		secret: secret,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register はアカウントを作成する。
// ユーザー名が既に存在する場合は store.ErrUsernameTaken を返す。
func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := validate(username, password); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	err = s.store.CreateAccount(ctx, store.Account{
		Username:       username,
		HashedPassword: hashed,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("アカウント %q の作成に失敗: %w", username, err)
	}
	return nil
}

// Login は認証情報を検証し、成功した場合はトークンを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.store.GetAccount(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("アカウントの取得に失敗: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(account.HashedPassword, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := middleware.GenerateJWT(s.secret, account.Username, s.ttl)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Authorize はトークンを検証し、トークンが示すユーザー名を返す。
// 署名と有効期限に加えて、アカウントが存在することも確認する。
func (s *Service) Authorize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: トークンがありません", ErrUnauthorized)
	}

	claims, err := middleware.ParseJWT(s.secret, token)
	if err != nil {
		return "", err
	}

	if _, err := s.store.GetAccount(ctx, claims.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: アカウント %q が存在しません", ErrUnauthorized, claims.Username)
		}
		return "", fmt.Errorf("アカウントの取得に失敗: %w", err)
	}
	return claims.Username, nil
}

// validate はユーザー名とパスワードの形式を検証する。
// bcryptは72バイトを超えるパスワードを扱えないため拒否する。
func validate(username, password string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return fmt.Errorf("%w: ユーザー名は必須です", ErrInvalidInput)
	case username != strings.TrimSpace(username):
		return fmt.Errorf("%w: ユーザー名の前後に空白は使えません", ErrInvalidInput)
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return fmt.Errorf("%w: ユーザー名は%d文字以内です", ErrInvalidInput, MaxUsernameLength)
	case password == "":
		return fmt.Errorf("%w: パスワードは必須です", ErrInvalidInput)
	case len(password) > 72:
		return fmt.Errorf("%w: パスワードは72バイト以内です", ErrInvalidInput)
	}
	return nil
}
