package tmpl

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenPath
	tokenString
)

type token struct {
	kind  tokenKind
	value string
}

// segment is either a run of literal text or the inside of one {{ }} action.
type segment struct {
	pos      int
	text     string
	isAction bool
	tokens   []token
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// lex splits the template into text and action segments, honoring `{{-` and `-}}`.
func lex(src string) ([]segment, error) {
	var segments []segment
	trimNext := false
	rest := src
	offset := 0

	for len(rest) > 0 {
		start := strings.Index(rest, "{{")
		if start < 0 {
			text := rest
			if trimNext {
				text = strings.TrimLeft(text, " \t\r\n")
			}
			if text != "" {
				segments = append(segments, segment{pos: offset, text: text})
			}
			break
		}

		text := rest[:start]
		if trimNext {
			text = strings.TrimLeft(text, " \t\r\n")
		}
		inner := rest[start+2:]
		if len(inner) >= 2 && inner[0] == '-' && isSpace(inner[1]) {
			text = strings.TrimRight(text, " \t\r\n")
			inner = inner[1:]
		}
		if text != "" {
			segments = append(segments, segment{pos: offset, text: text})
		}

		end := findActionEnd(inner)
		if end < 0 {
			return nil, &Error{Template: src, Pos: offset + start, Err: fmt.Errorf("%w: unclosed action", ErrSyntax)}
		}
		body := inner[:end]
		trimNext = false
		if len(body) >= 2 && body[len(body)-1] == '-' && isSpace(body[len(body)-2]) {
			body = body[:len(body)-1]
			trimNext = true
		}

		tokens, err := tokenize(body)
		if err != nil {
			return nil, &Error{Template: src, Pos: offset + start, Err: err}
		}
		segments = append(segments, segment{pos: offset + start, isAction: true, tokens: tokens})

		consumed := len(rest) - len(inner) + end + 2
		rest = rest[consumed:]
		offset += consumed
	}

	return segments, nil
}

// findActionEnd returns the index of the closing braces, skipping over quoted strings.
func findActionEnd(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '`':
			quote = c
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			return i
		}
	}
	return -1
}

func isPathChar(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func tokenize(body string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(body) {
		c := body[i]
		switch {
		case isSpace(c):
			i++
		case c == '"' || c == '`':
			end := i + 1
			for end < len(body) && body[end] != c {
				if c == '"' && body[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(body) {
				return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
			}
			value, err := strconv.Unquote(body[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
			}
			tokens = append(tokens, token{kind: tokenString, value: value})
			i = end + 1
		case c == '.':
			end := i + 1
			for end < len(body) && isPathChar(rune(body[end])) {
				end++
			}
			path := body[i:end]
			if path != "." && (strings.HasSuffix(path, ".") || strings.Contains(path, "..")) {
				return nil, fmt.Errorf("%w: malformed path %q", ErrSyntax, path)
			}
			tokens = append(tokens, token{kind: tokenPath, value: path})
			i = end
		case unicode.IsLetter(rune(c)) || c == '_':
			end := i + 1
			for end < len(body) && (body[end] == '_' || unicode.IsLetter(rune(body[end])) || unicode.IsDigit(rune(body[end]))) {
				end++
			}
			tokens = append(tokens, token{kind: tokenWord, value: body[i:end]})
			i = end
		default:
			return nil, fmt.Errorf("%w: %q in %q", ErrUnsupportedExpression, string(c), strings.TrimSpace(body))
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty action", ErrSyntax)
	}
	return tokens, nil
}
