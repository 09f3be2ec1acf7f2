// Package template renders tool definition strings against per-call input.
//
// A template is literal text interspersed with expressions of the form
// { input.<path> } or { input.<path> | <formatter> }. Paths are
// dot-separated; segments address object fields, numeric segments address
// array indices. A brace that does not open a well-formed expression is
// emitted literally.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// rootSymbol is the only variable root a template expression may address.
const rootSymbol = "input"

// Formatter transforms a resolved value into its substituted string form.
type Formatter func(value any) (string, error)

// Engine parses templates and holds the formatter registry. Formatters are
// registered by name before any template is parsed; Parse rejects references
// to unknown formatters so bad definitions fail at startup, not at call time.
type Engine struct {
	formatters map[string]Formatter
}

// NewEngine returns an Engine with the built-in url_encode formatter.
func NewEngine() *Engine {
	e := &Engine{formatters: make(map[string]Formatter)}
	e.Register("url_encode", urlEncode)
	return e
}

// Register adds a named formatter. Registering an existing name replaces it.
func (e *Engine) Register(name string, f Formatter) {
	e.formatters[name] = f
}

// RenderError reports a template expression that could not be resolved.
type RenderError struct {
	Expr   string // the offending expression, e.g. "input.city"
	Path   string // the path segment that failed
	Reason string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot resolve {%s}: %s at %q", e.Expr, e.Reason, e.Path)
}

// segment is one parsed piece of a template: literal text or an expression.
type segment struct {
	literal string
	expr    *expression
}

type expression struct {
	raw       string   // full path text, e.g. "input.items.0"
	path      []string // segments after the root symbol
	formatter Formatter
	fmtName   string
}

// Template is a parsed, immutable template. Rendering is pure: the same
// template and input always produce the same output.
type Template struct {
	segments []segment
}

// Parse compiles a template string. It fails only on a reference to an
// unregistered formatter; malformed brace sequences degrade to literals.
func (e *Engine) Parse(text string) (*Template, error) {
	t := &Template{}
	var lit strings.Builder

	for i := 0; i < len(text); {
		c := text[i]
		if c != '{' {
			lit.WriteByte(c)
			i++
			continue
		}
		expr, end, ok := parseExpression(text, i)
		if !ok {
			lit.WriteByte(c)
			i++
			continue
		}
		if expr.fmtName != "" {
			f, found := e.formatters[expr.fmtName]
			if !found {
				return nil, fmt.Errorf("template %q: unknown formatter %q", text, expr.fmtName)
			}
			expr.formatter = f
		}
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
		t.segments = append(t.segments, segment{expr: expr})
		i = end
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{literal: lit.String()})
	}
	return t, nil
}

// MustParse is Parse for templates known good at compile time (tests).
func (e *Engine) MustParse(text string) *Template {
	t, err := e.Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// parseExpression attempts to read "{ input.path | formatter }" starting at
// the opening brace. Returns the position just past the closing brace.
func parseExpression(text string, start int) (*expression, int, bool) {
	i := start + 1
	i = skipSpaces(text, i)

	path, next := readPath(text, i)
	if len(path) == 0 || path[0] != rootSymbol {
		return nil, 0, false
	}
	i = skipSpaces(text, next)

	var fmtName string
	if i < len(text) && text[i] == '|' {
		i = skipSpaces(text, i+1)
		fmtName, i = readIdent(text, i)
		if fmtName == "" {
			return nil, 0, false
		}
		i = skipSpaces(text, i)
	}
	if i >= len(text) || text[i] != '}' {
		return nil, 0, false
	}

	expr := &expression{
		raw:     strings.Join(path, "."),
		path:    path[1:],
		fmtName: fmtName,
	}
	return expr, i + 1, true
}

func skipSpaces(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}

// readIdent reads [A-Za-z0-9_-]+ starting at i.
func readIdent(text string, i int) (string, int) {
	start := i
	for i < len(text) && isIdentByte(text[i]) {
		i++
	}
	return text[start:i], i
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// readPath reads a dot-separated identifier path starting at i.
func readPath(text string, i int) ([]string, int) {
	var path []string
	for {
		seg, next := readIdent(text, i)
		if seg == "" {
			return nil, i
		}
		path = append(path, seg)
		i = next
		if i < len(text) && text[i] == '.' {
			i++
			continue
		}
		return path, i
	}
}

// Render substitutes every expression against the input value.
// An unresolved path yields a *RenderError, never an empty substitution.
func (t *Template) Render(input any) (string, error) {
	var out strings.Builder
	for _, seg := range t.segments {
		if seg.expr == nil {
			out.WriteString(seg.literal)
			continue
		}
		v, err := resolve(input, seg.expr)
		if err != nil {
			return "", err
		}
		s, err := substitute(v, seg.expr)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}
	return out.String(), nil
}

// resolve walks the input value tree along the expression's path.
func resolve(input any, expr *expression) (any, error) {
	cur := input
	for _, seg := range expr.path {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, &RenderError{Expr: expr.raw, Path: seg, Reason: "no such field"}
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, &RenderError{Expr: expr.raw, Path: seg, Reason: "array requires a numeric index"}
			}
			if idx < 0 || idx >= len(c) {
				return nil, &RenderError{Expr: expr.raw, Path: seg, Reason: "index out of range"}
			}
			cur = c[idx]
		default:
			return nil, &RenderError{Expr: expr.raw, Path: seg, Reason: "value is not an object or array"}
		}
	}
	return cur, nil
}

func substitute(v any, expr *expression) (string, error) {
	if expr.formatter != nil {
		s, err := expr.formatter(v)
		if err != nil {
			return "", &RenderError{Expr: expr.raw, Path: expr.fmtName, Reason: err.Error()}
		}
		return s, nil
	}
	return Stringify(v)
}

// Stringify converts a resolved value to its substitution form: strings
// pass through unquoted, everything else renders as compact JSON.
func Stringify(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// urlEncode percent-encodes every byte outside the RFC 3986 unreserved set.
// Space becomes %20 and hex digits are uppercase. The value is stringified
// first, so numbers and booleans encode their textual forms. Applying it to
// already-encoded text re-encodes the percent signs.
func urlEncode(v any) (string, error) {
	s, err := Stringify(v)
	if err != nil {
		return "", err
	}
	const hex = "0123456789ABCDEF"
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			out.WriteByte(c)
			continue
		}
		out.WriteByte('%')
		out.WriteByte(hex[c>>4])
		out.WriteByte(hex[c&0x0f])
	}
	return out.String(), nil
}

func isUnreserved(c byte) bool {
	return c == '-' || c == '_' || c == '.' || c == '~' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
