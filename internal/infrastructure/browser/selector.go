package browser

import (
	"fmt"
	"strings"
)

// The stub engine answers the selector queries the behavior layer
// issues. That surface is small: tag names, #id, .class, attribute
// presence and equality, :not(...) and comma-separated alternatives.
// Combinators (descendant, child) are not supported.

// compoundSelector is one alternative of a selector list: an optional
// tag plus zero or more simple predicates, all of which must match.
type compoundSelector struct {
	tag   string
	preds []predicate
}

type predicate struct {
	kind    string // "id", "class", "attr", "attr-eq", "attr-contains", "not"
	name    string
	value   string
	negated *compoundSelector
}

// parseSelectorList parses a comma-separated selector list
func parseSelectorList(selector string) ([]compoundSelector, error) {
	var list []compoundSelector
	for _, part := range splitTopLevel(selector, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseCompound(part)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("empty selector %q", selector)
	}
	return list, nil
}

// splitTopLevel splits on sep outside of brackets and parentheses
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseCompound(s string) (compoundSelector, error) {
	var c compoundSelector
	i := 0
	// leading tag name
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	c.tag = strings.ToLower(s[:i])
	for i < len(s) {
		switch s[i] {
		case '#':
			name, next := readName(s, i+1)
			if name == "" {
				return c, fmt.Errorf("bad id selector in %q", s)
			}
			c.preds = append(c.preds, predicate{kind: "id", name: name})
			i = next
		case '.':
			name, next := readName(s, i+1)
			if name == "" {
				return c, fmt.Errorf("bad class selector in %q", s)
			}
			c.preds = append(c.preds, predicate{kind: "class", name: name})
			i = next
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute selector in %q", s)
			}
			p, err := parseAttrPredicate(s[i+1 : i+end])
			if err != nil {
				return c, err
			}
			c.preds = append(c.preds, p)
			i += end + 1
		case ':':
			if !strings.HasPrefix(s[i:], ":not(") {
				return c, fmt.Errorf("unsupported pseudo-class in %q", s)
			}
			rest := s[i+len(":not("):]
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return c, fmt.Errorf("unterminated :not() in %q", s)
			}
			inner, err := parseCompound(strings.TrimSpace(rest[:end]))
			if err != nil {
				return c, err
			}
			c.preds = append(c.preds, predicate{kind: "not", negated: &inner})
			i += len(":not(") + end + 1
		case ' ', '>', '+', '~':
			return c, fmt.Errorf("combinators are not supported: %q", s)
		default:
			return c, fmt.Errorf("unexpected character %q in selector %q", s[i], s)
		}
	}
	return c, nil
}

func parseAttrPredicate(body string) (predicate, error) {
	body = strings.TrimSpace(body)
	if eq := strings.IndexByte(body, '='); eq >= 0 {
		kind := "attr-eq"
		name := strings.TrimSpace(body[:eq])
		if strings.HasSuffix(name, "*") {
			kind = "attr-contains"
			name = strings.TrimSuffix(name, "*")
			name = strings.TrimSpace(name)
		}
		value := strings.TrimSpace(body[eq+1:])
		value = strings.Trim(value, `'"`)
		if name == "" {
			return predicate{}, fmt.Errorf("bad attribute selector [%s]", body)
		}
		return predicate{kind: kind, name: strings.ToLower(name), value: value}, nil
	}
	if body == "" {
		return predicate{}, fmt.Errorf("empty attribute selector")
	}
	return predicate{kind: "attr", name: strings.ToLower(body)}, nil
}

func readName(s string, start int) (string, int) {
	i := start
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	return s[start:i], i
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// matches reports whether the node satisfies the compound selector
func (c compoundSelector) matches(n *stubNode) bool {
	if c.tag != "" && c.tag != "*" && n.tag != c.tag {
		return false
	}
	for _, p := range c.preds {
		switch p.kind {
		case "id":
			if n.attrs["id"] != p.name {
				return false
			}
		case "class":
			if !hasClass(n.attrs["class"], p.name) {
				return false
			}
		case "attr":
			if _, ok := n.attrs[p.name]; !ok {
				return false
			}
		case "attr-eq":
			v, ok := n.attrs[p.name]
			if !ok || v != p.value {
				return false
			}
		case "attr-contains":
			v, ok := n.attrs[p.name]
			if !ok || !strings.Contains(v, p.value) {
				return false
			}
		case "not":
			if p.negated.matches(n) {
				return false
			}
		}
	}
	return true
}

func matchesAny(list []compoundSelector, n *stubNode) bool {
	for _, c := range list {
		if c.matches(n) {
			return true
		}
	}
	return false
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
