package jit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// goKeywords are the reserved words that may not appear as plan identifiers.
var goKeywords = map[string]struct{}{
	"break": {}, "case": {}, "chan": {}, "const": {}, "continue": {},
	"default": {}, "defer": {}, "else": {}, "fallthrough": {}, "for": {},
	"func": {}, "go": {}, "goto": {}, "if": {}, "import": {},
	"interface": {}, "map": {}, "package": {}, "range": {}, "return": {},
	"select": {}, "struct": {}, "switch": {}, "type": {}, "var": {},
}

// SanitizeIdentifier validates a name before it is spliced into plan keys
// and the plan listing. The query has already passed validation, so this is
// defense in depth against malformed names reaching the generated plan.
func SanitizeIdentifier(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("jit: empty identifier")
	}
	for i, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return "", fmt.Errorf("jit: invalid identifier %q", name)
	}
	if _, reserved := goKeywords[name]; reserved {
		return "", fmt.Errorf("jit: identifier %q is a reserved word", name)
	}
	return name, nil
}

// SerializeLiteral renders a static value as source-like text for the plan
// listing. Strings round-trip arbitrary characters through quoting; lists
// and maps recurse element-wise with deterministic map key order.
func SerializeLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return strconv.Quote(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = SerializeLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + SerializeLiteral(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%#v", val)
	}
}
