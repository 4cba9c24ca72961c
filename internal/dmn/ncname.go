package dmn

import (
	"fmt"
	"regexp"
)

var ncNameInvalidRe = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// NCName sanitizes s into a valid XML NCName: invalid characters become
// underscores and a leading character that cannot start an NCName gets an
// underscore prefix. Empty input yields "_".
func NCName(s string) string {
	out := ncNameInvalidRe.ReplaceAllString(s, "_")
	if out == "" {
		return "_"
	}
	first := out[0]
	if !(first == '_' || (first >= 'A' && first <= 'Z') || (first >= 'a' && first <= 'z')) {
		out = "_" + out
	}
	return out
}

// idPool hands out NCName-safe ids, de-colliding sanitized names that map
// to the same string.
type idPool struct {
	seen map[string]int
}

func newIDPool() *idPool {
	return &idPool{seen: make(map[string]int)}
}

func (p *idPool) get(prefix, raw string) string {
	id := prefix + NCName(raw)
	n := p.seen[id]
	p.seen[id] = n + 1
	if n == 0 {
		return id
	}
	return fmt.Sprintf("%s_%d", id, n+1)
}
