// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"encoding/json"
	"strings"
	"unicode"
)

// bindValue converts a decoded JSON value into a database/sql argument.
// Integral numbers bind as int64, other numbers as float64, and nested
// objects or arrays as their JSON text.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

// StatementKind is how ExecuteSQL classifies a statement.
type StatementKind int

const (
	// KindOther covers queries and statements with no row count or schema effect.
	KindOther StatementKind = iota
	// KindRows covers statements that report affected rows.
	KindRows
	// KindDDL covers schema-changing statements.
	KindDDL
)

var leadingKinds = map[string]StatementKind{
	"INSERT":   KindRows,
	"UPDATE":   KindRows,
	"DELETE":   KindRows,
	"MERGE":    KindRows,
	"UPSERT":   KindRows,
	"REPLACE":  KindRows,
	"CREATE":   KindDDL,
	"ALTER":    KindDDL,
	"DROP":     KindDDL,
	"TRUNCATE": KindDDL,
	"RENAME":   KindDDL,
	"COMMENT":  KindDDL,
	"GRANT":    KindDDL,
	"REVOKE":   KindDDL,
}

// Classify returns the kind of a statement from its first keyword, skipping
// whitespace and comments. A statement led by WITH is classified by the first
// top-level verb after its common table expressions.
func Classify(sql string) StatementKind {
	kw, rest := leadingKeyword(sql)
	if strings.EqualFold(kw, "WITH") {
		return leadingKinds[strings.ToUpper(mainVerb(rest))]
	}
	return leadingKinds[strings.ToUpper(kw)]
}

func leadingKeyword(s string) (string, string) {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return "", ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return "", ""
			}
			s = s[i+2:]
		case strings.HasPrefix(s, "("):
			s = s[1:]
		default:
			end := strings.IndexFunc(s, notWordRune)
			if end < 0 {
				return s, ""
			}
			return s[:end], s[end:]
		}
	}
}

var cteVerbs = map[string]bool{
	"SELECT": true,
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
}

// mainVerb scans the body of a WITH statement for the first verb outside
// parentheses, quotes and comments.
func mainVerb(s string) string {
	depth := 0
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case c == '\'' || c == '"' || c == '`':
			j := strings.IndexByte(s[i+1:], c)
			if j < 0 {
				return ""
			}
			i += j + 2
		case strings.HasPrefix(s[i:], "--"):
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				return ""
			}
			i += j + 1
		case strings.HasPrefix(s[i:], "/*"):
			j := strings.Index(s[i:], "*/")
			if j < 0 {
				return ""
			}
			i += j + 2
		case c == '_' || unicode.IsLetter(rune(c)):
			end := strings.IndexFunc(s[i:], notWordRune)
			if end < 0 {
				end = len(s) - i
			}
			word := strings.ToUpper(s[i : i+end])
			if depth == 0 && cteVerbs[word] {
				return word
			}
			i += end
		default:
			i++
		}
	}
	return ""
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && r != '_'
}
