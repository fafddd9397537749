// Package resolver implements the $name variable substitution language used
// to resolve node parameters against the per-execution variable environment:
// input, per-node outputs keyed by node id, and context.
package resolver

import (
	"strconv"
	"strings"
)

// Resolve walks value (typically a node's decoded parameters) and expands
// every $-token found in a string against vars. Non-string JSON values
// (numbers, bools, null, and nested maps/slices) are walked recursively but
// otherwise passed through unchanged.
func Resolve(value any, vars map[string]any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Resolve(val, vars)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Resolve(val, vars)
		}
		return out
	default:
		return v
	}
}

// resolveString expands $-tokens in s. If s is exactly one token with no
// surrounding text, the substitution returns the raw resolved value
// (preserving its JSON type); otherwise tokens are stringified in place.
func resolveString(s string, vars map[string]any) any {
	if !strings.Contains(s, "$") {
		return s
	}

	// Whole-string token: "$a.b[0].c" with nothing else.
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "$$") {
		if path, end, ok := parseToken(s, 1); ok && end == len(s) {
			return lookup(path, vars)
		}
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch != '$' {
			b.WriteByte(ch)
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}
		if path, end, ok := parseToken(s, i+1); ok {
			val := lookup(path, vars)
			b.WriteString(stringify(val))
			i = end
			continue
		}
		// Lone '$' with no valid token following: emit literally.
		b.WriteByte('$')
		i++
	}
	return b.String()
}

// pathSegment is either a map key (field name) or an array index.
type pathSegment struct {
	field string
	index int
	isIdx bool
}

// parseToken parses a variable path starting at s[start], which must begin
// with an identifier character. It returns the parsed segments and the
// index just past the last consumed character.
func parseToken(s string, start int) ([]pathSegment, int, bool) {
	i := start
	if i >= len(s) || !isIdentStart(s[i]) {
		return nil, 0, false
	}
	nameStart := i
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	segments := []pathSegment{{field: s[nameStart:i]}}

	for i < len(s) {
		if s[i] == '.' && i+1 < len(s) && isIdentStart(s[i+1]) {
			i++
			fieldStart := i
			for i < len(s) && isIdentPart(s[i]) {
				i++
			}
			segments = append(segments, pathSegment{field: s[fieldStart:i]})
			continue
		}
		if s[i] == '[' {
			j := i + 1
			digitStart := j
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j > digitStart && j < len(s) && s[j] == ']' {
				idx, _ := strconv.Atoi(s[digitStart:j])
				segments = append(segments, pathSegment{index: idx, isIdx: true})
				i = j + 1
				continue
			}
		}
		break
	}

	return segments, i, true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// lookup navigates vars along path, returning nil (JSON null) on any
// missing key, type mismatch, or out-of-range index — the resolver never
// errors, per the substitution language's contract.
func lookup(path []pathSegment, vars map[string]any) any {
	if len(path) == 0 {
		return nil
	}
	var cur any = vars[path[0].field]
	for _, seg := range path[1:] {
		if seg.isIdx {
			arr, ok := cur.([]any)
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil
			}
			cur = arr[seg.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg.field]
	}
	return cur
}

// stringify renders a resolved value for embedding inside a larger string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return toJSONString(v)
	}
}
