package vote

import (
	"errors"
	"testing"
)

// TestApply は全ての (現在の状態, 要求) の組み合わせについて遷移を検証する。
func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		prior     State
		requested State
		want      Transition
	}{
		{name: "未投票から賛成", prior: None, requested: Up, want: Transition{Up: 1, Down: 0, Next: Up}},
		{name: "未投票から反対", prior: None, requested: Down, want: Transition{Up: 0, Down: 1, Next: Down}},
		{name: "賛成の取り消し", prior: Up, requested: Up, want: Transition{Up: -1, Down: 0, Next: None}},
		{name: "賛成から反対へ変更", prior: Up, requested: Down, want: Transition{Up: -1, Down: 1, Next: Down}},
		{name: "反対から賛成へ変更", prior: Down, requested: Up, want: Transition{Up: 1, Down: -1, Next: Up}},
		{name: "反対の取り消し", prior: Down, requested: Down, want: Transition{Up: 0, Down: -1, Next: None}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Apply(tt.prior, tt.requested)
			if err != nil {
				t.Fatalf("Apply()でエラーが発生: %v", err)
			}
			if got != tt.want {
				t.Errorf("Apply(%q, %q) = %+v, want %+v", tt.prior, tt.requested, got, tt.want)
			}
		})
	}
}

// TestApplyRoundTrip は同じ種別を2回要求すると元の状態とカウンタに戻ることを検証する。
func TestApplyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, requested := range []State{Up, Down} {
		first, err := Apply(None, requested)
		if err != nil {
			t.Fatalf("Apply()でエラーが発生: %v", err)
		}
		second, err := Apply(first.Next, requested)
		if err != nil {
			t.Fatalf("Apply()でエラーが発生: %v", err)
		}
		if second.Next != None {
			t.Errorf("%q を2回適用した後の状態 = %q, want %q", requested, second.Next, None)
		}
		if first.Up+second.Up != 0 || first.Down+second.Down != 0 {
			t.Errorf("%q を2回適用した後のカウンタ差分が0にならない: up=%d down=%d",
				requested, first.Up+second.Up, first.Down+second.Down)
		}
	}
}

// TestApplyInvalid は不正な要求がエラーになることを検証する。
func TestApplyInvalid(t *testing.T) {
	t.Parallel()

	t.Run("要求にnoneを指定した場合はエラー", func(t *testing.T) {
		t.Parallel()

		if _, err := Apply(Up, None); !errors.Is(err, ErrInvalidState) {
			t.Errorf("err = %v, want %v", err, ErrInvalidState)
		}
	})

	t.Run("未知の現在状態はエラー", func(t *testing.T) {
		t.Parallel()

		if _, err := Apply(State("sideways"), Up); !errors.Is(err, ErrInvalidState) {
			t.Errorf("err = %v, want %v", err, ErrInvalidState)
		}
	})
}

// TestParseState は投票状態文字列の変換を検証する。
func TestParseState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    State
		wantErr bool
	}{
		{in: "", want: None},
		{in: "none", want: None},
		{in: "upvote", want: Up},
		{in: "downvote", want: Down},
		{in: "UPVOTE", wantErr: true},
		{in: "like", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseState(%q) はエラーを返すべき", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseState(%q)でエラーが発生: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestParseRequested は要求として受け付ける投票種別を検証する。
func TestParseRequested(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"upvote", "downvote"} {
		if _, err := ParseRequested(ok); err != nil {
			t.Errorf("ParseRequested(%q)でエラーが発生: %v", ok, err)
		}
	}
	for _, ng := range []string{"", "none", "meh"} {
		if _, err := ParseRequested(ng); !errors.Is(err, ErrInvalidState) {
			t.Errorf("ParseRequested(%q) err = %v, want %v", ng, err, ErrInvalidState)
		}
	}
}
