// Package params parses the "key=value,key=value" argument list of chat
// commands. A comma inside a value is escaped as "\,".
package params

import (
	"regexp"
	"strings"
)

// Param is one key=value segment.
type Param struct {
	Key      string
	Value    string
	HasValue bool // false when the segment had no '='
}

// Params keeps segments in first-seen key order. A repeated key overwrites
// the earlier value but keeps its position.
type Params []Param

// segment matches a key (no '=' or ','), then the '=' and the value up to
// the next unescaped comma.
var segment = regexp.MustCompile(`\s*([^=,]+)\s*((?:\\,|[^,])*)\s*`)

// Parse splits text into parameters. Keys are trimmed and lower-cased; values
// are trimmed and "\," is unescaped.
func Parse(text string) Params {
	var ps Params
	for _, m := range segment.FindAllStringSubmatch(text, -1) {
		p := Param{Key: strings.ToLower(strings.TrimSpace(m[1]))}
		if rest := m[2]; rest != "" {
			p.HasValue = true
			p.Value = strings.ReplaceAll(strings.TrimSpace(rest[1:]), `\,`, ",")
		}
		ps = ps.set(p)
	}
	return ps
}

func (ps Params) set(p Param) Params {
	for i := range ps {
		if ps[i].Key == p.Key {
			ps[i] = p
			return ps
		}
	}
	return append(ps, p)
}

// Get returns the value for key and whether the key carried a value.
func (ps Params) Get(key string) (string, bool) {
	for _, p := range ps {
		if p.Key == key {
			return p.Value, p.HasValue
		}
	}
	return "", false
}

// Map returns the parameters as a plain map.
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Key] = p.Value
	}
	return m
}

// String formats the parameters back into command syntax, escaping commas in
// values. Parse(ps.String()) reproduces ps for keys without '=' or ','.
func (ps Params) String() string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		if !p.HasValue {
			parts = append(parts, p.Key)
			continue
		}
		parts = append(parts, p.Key+"="+strings.ReplaceAll(p.Value, ",", `\,`))
	}
	return strings.Join(parts, ",")
}
