package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer は発行するJWTの iss クレーム。
const Issuer = "chatroom"

// contextKeyUsername は認証済みユーザー名をGinコンテキストに格納するキー。
const contextKeyUsername = "username"

// ErrInvalidToken はトークンが欠落・不正・期限切れ、
// または存在しないアカウントを指している場合のエラー。
var ErrInvalidToken = errors.New("トークンが無効です")

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Username は認証済みユーザーのユーザー名。
	Username string `json:"username"`
}

// Authorizer はトークンを検証してユーザー名を返す。
// 認証失敗は ErrInvalidToken をラップしたエラーで返す。
type Authorizer interface {
	Authorize(ctx context.Context, token string) (string, error)
}

// GenerateJWT はユーザー名からHS256署名のJWTトークンを生成する。
// ttl が0以下の場合は有効期限を付与しない。
func GenerateJWT(secret, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   Issuer,
		},
		Username: username,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列の署名と有効期限を検証し、クレームを返す。
// HS256以外のアルゴリズムやユーザー名の無いトークンは拒否する。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromHeader はAuthorizationヘッダーからトークンを取り出す。
// 生のトークンと "Bearer " 接頭辞付きの両方を受け付ける。
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return header
}

// JWTAuth はAuthorizationヘッダーのトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "username" を設定する。
func JWTAuth(authorizer Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is missing"})
			return
		}

		username, err := authorizer.Authorize(c.Request.Context(), token)
		if errors.Is(err, ErrInvalidToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is invalid"})
			return
		}
		if err != nil {
			log.Printf("トークン検証エラー: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(contextKeyUsername, username)
		c.Next()
	}
}

// GetUsername はGinコンテキストから認証済みユーザー名を取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUsername(c *gin.Context) string {
	v, _ := c.Get(contextKeyUsername)
	if username, ok := v.(string); ok {
		return username
	}
	return ""
}
