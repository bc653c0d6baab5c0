// Package vote はメッセージに対する投票状態の遷移規則を提供する。
//
// ユーザーごとの投票状態は none / upvote / downvote の3状態を取り、
// 要求された投票種別との組み合わせから集計カウンタの増減と次の状態が決まる。
package vote

import (
	"errors"
	"fmt"
)

// State はあるユーザーのあるメッセージに対する投票状態を表す。
type State string

const (
	// None は未投票を表す。
	None State = "none"
	// Up は賛成票を表す。
	Up State = "upvote"
	// Down は反対票を表す。
	Down State = "downvote"
)

// ErrInvalidState は未知の投票状態文字列を受け取った場合のエラー。
var ErrInvalidState = errors.New("不正な投票状態")

// Transition は1回の投票操作による変化を表す。
type Transition struct {
	// Up は賛成票カウンタの増減量。
	Up int
	// Down は反対票カウンタの増減量。
	Down int
	// Next は投票後の状態。
	Next State
}

type key struct {
	prior     State
	requested State
}

// transitions は (現在の状態, 要求) -> 遷移 の対応表。
// 同じ種別を再度要求した場合は取り消し（none に戻る）となる。
var transitions = map[key]Transition{
	{None, Up}:   {Up: 1, Down: 0, Next: Up},
	{None, Down}: {Up: 0, Down: 1, Next: Down},
	{Up, Up}:     {Up: -1, Down: 0, Next: None},
	{Up, Down}:   {Up: -1, Down: 1, Next: Down},
	{Down, Up}:   {Up: 1, Down: -1, Next: Up},
	{Down, Down}: {Up: 0, Down: -1, Next: None},
}

// Apply は現在の状態 prior に対して requested を適用した遷移を返す。
// requested は Up または Down でなければならない。
func Apply(prior, requested State) (Transition, error) {
	t, ok := transitions[key{prior: prior, requested: requested}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: prior=%q, requested=%q", ErrInvalidState, prior, requested)
	}
	return t, nil
}

// ParseState は文字列を投票状態に変換する。空文字列は None として扱う。
func ParseState(s string) (State, error) {
	switch State(s) {
	case "", None:
		return None, nil
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// ParseRequested はクライアントが要求した投票種別を変換する。
// 要求として有効なのは upvote と downvote のみ。
func ParseRequested(s string) (State, error) {
	switch State(s) {
	case Up, Down:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: 投票種別は upvote または downvote: %q", ErrInvalidState, s)
}

// Valid は状態が既知の値かどうかを返す。
func (s State) Valid() bool {
	return s == None || s == Up || s == Down
}
