package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// Normalizer turns the argument part of a monitor line (everything after
// the client block) into the stored record text.
type Normalizer func(args string) string

// Normalizer names accepted by ByName.
const (
	NormalizerLegacy = "legacy"
	NormalizerQuoted = "quoted"
)

// ByName returns the normalizer registered under name. An empty name
// selects Legacy.
func ByName(name string) (Normalizer, error) {
	switch name {
	case "", NormalizerLegacy:
		return Legacy, nil
	case NormalizerQuoted:
		return Quoted, nil
	default:
		return nil, fmt.Errorf("unknown normalizer %q (want %s or %s)", name, NormalizerLegacy, NormalizerQuoted)
	}
}

// Legacy strips the outer quotes and spaces and drops every quote that
// touches a space. "SET" "k" "v" becomes SET k v. A quoted argument with an
// embedded space is not distinguishable from two arguments afterwards.
func Legacy(args string) string {
	s := strings.Trim(args, ` "`)
	s = strings.ReplaceAll(s, `" `, " ")
	s = strings.ReplaceAll(s, ` "`, " ")
	return s
}

// Quoted tokenizes the arguments, decoding the store's escape sequences,
// and joins the tokens with single spaces. Tokens that would not survive a
// split on spaces (empty, or containing whitespace or quotes) are written
// as Go quoted strings, so "hello world" stays one token.
func Quoted(args string) string {
	tokens := Tokenize(args)
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok == "" || strings.ContainsAny(tok, " \t\r\n\"\\") {
			out[i] = strconv.Quote(tok)
		} else {
			out[i] = tok
		}
	}
	return strings.Join(out, " ")
}

// Tokenize splits a monitor argument list into its arguments. Quoted
// arguments may contain spaces and the escapes \" \\ \n \r \t \a \b \xHH.
func Tokenize(args string) []string {
	var (
		tokens []string
		cur    strings.Builder
		i      int
	)
	for i < len(args) {
		c := args[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			cur.Reset()
			i++
			for i < len(args) && args[i] != '"' {
				if args[i] == '\\' && i+1 < len(args) {
					n := decodeEscape(args[i+1:], &cur)
					i += 1 + n
					continue
				}
				cur.WriteByte(args[i])
				i++
			}
			i++ // closing quote
			tokens = append(tokens, cur.String())
		default:
			start := i
			for i < len(args) && args[i] != ' ' && args[i] != '\t' {
				i++
			}
			tokens = append(tokens, args[start:i])
		}
	}
	return tokens
}

// decodeEscape writes the byte encoded by the escape at the start of s (the
// text after the backslash) and returns how many bytes of s it consumed.
func decodeEscape(s string, b *strings.Builder) int {
	switch s[0] {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'x':
		if len(s) >= 3 {
			if v, err := strconv.ParseUint(s[1:3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				return 3
			}
		}
		b.WriteByte('x')
	default:
		b.WriteByte(s[0])
	}
	return 1
}
