// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTトークンの発行と検証、パニックリカバリ、CORS設定を含む。
// トークンの検証は Authorizer インターフェースに委譲するため、
// 署名の検証に加えてアカウントの存在確認などを呼び出し側で行える。
package middleware
