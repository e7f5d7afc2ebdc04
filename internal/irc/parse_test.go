package irc

import (
	"reflect"
	"testing"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		in     string
		want   Message
		wantOK bool
	}{
		{
			in:     "NICK alice\r\n",
			want:   Message{Verb: "NICK", Params: []string{"alice"}},
			wantOK: true,
		},
		{
			in:     "privmsg #mesh :hello there",
			want:   Message{Verb: "PRIVMSG", Params: []string{"#mesh", "hello there"}},
			wantOK: true,
		},
		{
			in:     ":alice!u@h QUIT :gone fishing",
			want:   Message{Prefix: "alice!u@h", Verb: "QUIT", Params: []string{"gone fishing"}},
			wantOK: true,
		},
		{
			in:     "USER alice 0 * :Alice Example",
			want:   Message{Verb: "USER", Params: []string{"alice", "0", "*", "Alice Example"}},
			wantOK: true,
		},
		{
			in:     "PING",
			want:   Message{Verb: "PING", Params: []string{}},
			wantOK: true,
		},
		{in: "", wantOK: false},
		{in: "   \r\n", wantOK: false},
		{in: ":prefixonly", wantOK: false},
	}
	for _, tc := range cases {
		got, ok := ParseLine(tc.in)
		if ok != tc.wantOK {
			t.Fatalf("ParseLine(%q) ok=%v, want %v", tc.in, ok, tc.wantOK)
		}
		if !ok {
			continue
		}
		if got.Prefix != tc.want.Prefix || got.Verb != tc.want.Verb {
			t.Fatalf("ParseLine(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
		if len(got.Params) != len(tc.want.Params) || (len(got.Params) > 0 && !reflect.DeepEqual(got.Params, tc.want.Params)) {
			t.Fatalf("ParseLine(%q) params = %#v, want %#v", tc.in, got.Params, tc.want.Params)
		}
	}
}

func TestCasefoldNick(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Alice", "alice"},
		{"[Ops]User", "{ops}user"},
		{"back\\slash", "back|slash"},
		{"car^et", "car~et"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := CasefoldNick(tc.in); got != tc.want {
			t.Fatalf("CasefoldNick(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidNick(t *testing.T) {
	for _, nick := range []string{"alice", "a-b-c", "[ops]", "x"} {
		if !validNick(nick) {
			t.Fatalf("expected %q to be valid", nick)
		}
	}
	for _, nick := range []string{"", "1abc", "-dash", "has space", "way#off"} {
		if validNick(nick) {
			t.Fatalf("expected %q to be invalid", nick)
		}
	}
}
