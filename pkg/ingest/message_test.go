package ingest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/modoterra/cmdhub/pkg/core"
)

func TestParseMonitorLine(t *testing.T) {
	raw := `(7171) - [0 127.0.0.1:12345] "SET" "foo" "bar"`
	rec, err := Parse(raw, Legacy)
	if err != nil {
		t.Fatal(err)
	}
	want := core.Record{Instance: "7171", Body: "SET foo bar"}
	if rec != want {
		t.Errorf("got %+v, want %+v", rec, want)
	}
}

func TestParseWithTimestamp(t *testing.T) {
	raw := `(6379) - 1339518083.107412 [0 127.0.0.1:60866] "keys" "*"`
	rec, err := Parse(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Instance != "6379" || rec.Body != "keys *" {
		t.Errorf("got %+v", rec)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	line := `1339518083.107412 [0 127.0.0.1:60866] "GET" "k"`
	rec, err := Parse(Format("cache", line), Legacy)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Instance != "cache" || rec.Body != "GET k" {
		t.Errorf("got %+v", rec)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"7171 - no parens",
		"(7171) - no client block",
	} {
		if _, err := Parse(raw, Legacy); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestLegacy(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{` "SET" "foo" "bar"`, "SET foo bar"},
		{` "PING"`, "PING"},
		{` "SET" "greeting" "hello world"`, "SET greeting hello world"},
		{``, ""},
	}
	for _, tt := range tests {
		if got := Legacy(tt.in); got != tt.want {
			t.Errorf("Legacy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{` "SET" "foo" "bar"`, "SET foo bar"},
		{` "SET" "greeting" "hello world"`, `SET greeting "hello world"`},
		{` "SET" "k" ""`, `SET k ""`},
		{` "SET" "k" "say \"hi\""`, `SET k "say \"hi\""`},
		{` "SET" "k" "\x41\x42"`, "SET k AB"},
	}
	for _, tt := range tests {
		if got := Quoted(tt.in); got != tt.want {
			t.Errorf("Quoted(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize(` "SET" "a b" "line\nbreak" bare`)
	want := []string{"SET", "a b", "line\nbreak", "bare"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens (-want +got):\n%s", diff)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", NormalizerLegacy, NormalizerQuoted} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("fancy"); err == nil {
		t.Error("expected error for unknown normalizer")
	}
}
