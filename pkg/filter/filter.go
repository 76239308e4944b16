// Package filter selects recorded commands with expr-lang expressions,
// for example
//
//	command in ["SET", "DEL"] && instance == "7171"
//	command == "GET" && args[0] startsWith "session:"
package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/ingest"
)

// Env is what an expression sees for one record.
type Env struct {
	Instance string   `expr:"instance"`
	Line     string   `expr:"line"`
	Command  string   `expr:"command"`
	Args     []string `expr:"args"`
}

// NewEnv splits a record body into command and arguments. The command is
// upper-cased so comparisons do not depend on client casing.
func NewEnv(rec core.Record) Env {
	fields := ingest.Tokenize(rec.Body)
	env := Env{Instance: string(rec.Instance), Line: rec.Body, Args: []string{}}
	if len(fields) > 0 {
		env.Command = strings.ToUpper(fields[0])
		env.Args = fields[1:]
	}
	return env
}

// Filter is a compiled expression.
type Filter struct {
	src     string
	program *vm.Program
}

// Compile parses src. The expression must evaluate to a bool.
func Compile(src string) (*Filter, error) {
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return &Filter{src: src, program: program}, nil
}

func (f *Filter) String() string { return f.src }

// Match reports whether rec satisfies the filter.
func (f *Filter) Match(rec core.Record) (bool, error) {
	out, err := expr.Run(f.program, NewEnv(rec))
	if err != nil {
		return false, fmt.Errorf("run filter: %w", err)
	}
	return out.(bool), nil
}

// Apply returns the records that match. A nil filter matches everything.
func (f *Filter) Apply(recs []core.Record) ([]core.Record, error) {
	if f == nil {
		return recs, nil
	}
	var out []core.Record
	for _, rec := range recs {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
