// Package chatroom はメッセージボードのHTTP APIサーバーを提供する。
//
// エンドポイント一覧:
//
//	POST /api/signup                   アカウント登録（認証不要）
//	POST /api/login                    ログインしてトークンを取得（認証不要）
//	GET  /api/messages                 メッセージ一覧
//	POST /api/messages                 メッセージ投稿
//	PUT  /api/messages/:message_id     投票（賛成・反対・取り消し）
//	GET  /health                       ヘルスチェック
//
// /api/messages 配下は Authorization ヘッダーのトークンを検証してから処理する。
// ヘッダーには生のトークンと "Bearer " 接頭辞付きのどちらも指定できる。
//
// 投票の直前状態はサーバー側の投票記録から求めるため、
// リクエストボディの userVote は互換性のために受け付けるだけで使用しない。
// 同様に、投稿者と閲覧者はトークンのユーザー名で決まり、
// ボディの username やクエリの ?username= は参照しない。
package chatroom
