// Package httpclient はメッセージボードのHTTP APIを呼び出すクライアントを提供する。
//
// ログインで取得したトークンをクライアント内に保持し、
// 以降のメッセージ操作の Authorization ヘッダーに付与する。
// 2xx以外のレスポンスは *StatusError として返す。
package httpclient
