// メッセージボードAPIのコマンドラインクライアント。
//
//	chatctl [-server URL] [-token TOKEN] signup <username> <password>
//	chatctl [-server URL] login <username> <password>
//	chatctl [-server URL] [-token TOKEN] list
//	chatctl [-server URL] [-token TOKEN] post <content>
//	chatctl [-server URL] [-token TOKEN] vote <message_id> <upvote|downvote>
//
// login は取得したトークンを標準出力に書き出す。
// トークンは -token または CHATROOM_TOKEN で指定する。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/chatroom/pkg/httpclient"
)

const defaultServer = "http://localhost:8080"

// errUsage は引数が不正な場合のエラー。
var errUsage = errors.New("使い方: chatctl [-server URL] [-token TOKEN] signup|login|list|post|vote ...")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run はコマンドを解釈して実行する。
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("chatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", firstNonEmpty(getenv("CHATROOM_SERVER"), defaultServer), "サーバーのURL (CHATROOM_SERVER)")
	token := fs.String("token", getenv("CHATROOM_TOKEN"), "アクセストークン (CHATROOM_TOKEN)")
	timeout := fs.Duration("timeout", 30*time.Second, "リクエストのタイムアウト")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := httpclient.New(*server)
	client.SetToken(*token)

	cmd, params := rest[0], rest[1:]
	switch cmd {
	case "signup":
		if len(params) != 2 {
			return errUsage
		}
		if err := client.Signup(ctx, params[0], params[1]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "アカウント %s を登録しました\n", params[0])
	case "login":
		if len(params) != 2 {
			return errUsage
		}
		t, err := client.Login(ctx, params[0], params[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, t)
	case "list":
		if len(params) != 0 {
			return errUsage
		}
		list, err := client.ListMessages(ctx)
		if err != nil {
			return err
		}
		return printMessages(stdout, list)
	case "post":
		if len(params) == 0 {
			return errUsage
		}
		msg, err := client.PostMessage(ctx, strings.Join(params, " "))
		if err != nil {
			return err
		}
		return printJSON(stdout, msg)
	case "vote":
		if len(params) != 2 {
			return errUsage
		}
		result, err := client.Vote(ctx, params[0], params[1])
		if err != nil {
			return err
		}
		return printJSON(stdout, result)
	default:
		return fmt.Errorf("未知のコマンドです: %q\n%w", cmd, errUsage)
	}
	return nil
}

// printMessages はメッセージ一覧を表形式で出力する。
func printMessages(w io.Writer, list []httpclient.Message) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tUP\tDOWN\tVOTE\tCONTENT")
	for _, m := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", m.ID, m.Username, m.Upvotes, m.Downvotes, m.UserVote, m.Content)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
