package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/modoterra/cmdhub/pkg/core"
)

func TestNewEnv(t *testing.T) {
	got := NewEnv(core.Record{Instance: "7171", Body: "set session:1 abc"})
	want := Env{Instance: "7171", Line: "set session:1 abc", Command: "SET", Args: []string{"session:1", "abc"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("env (-want +got):\n%s", diff)
	}
}

func TestMatch(t *testing.T) {
	rec := core.Record{Instance: "7171", Body: "GET session:42"}
	tests := []struct {
		src  string
		want bool
	}{
		{`command == "GET"`, true},
		{`command in ["SET", "DEL"]`, false},
		{`instance == "7171" && args[0] startsWith "session:"`, true},
		{`len(args) > 1`, false},
		{`line contains "42"`, true},
		{`line matches "^GET"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := Compile(tt.src)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := f.Match(rec)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{`command +`, `nosuchfield == 1`, `command`} {
		if _, err := Compile(src); err == nil {
			t.Errorf("Compile(%q): expected error", src)
		}
	}
}

func TestApply(t *testing.T) {
	recs := []core.Record{
		{Instance: "1", Body: "SET a 1"},
		{Instance: "2", Body: "GET a"},
		{Instance: "1", Body: "DEL a"},
	}
	f, err := Compile(`instance == "1"`)
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.Apply(recs)
	if err != nil {
		t.Fatal(err)
	}
	want := []core.Record{recs[0], recs[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("apply (-want +got):\n%s", diff)
	}

	var none *Filter
	if all, _ := none.Apply(recs); len(all) != 3 {
		t.Errorf("nil filter kept %d records", len(all))
	}
}
