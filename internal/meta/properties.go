package meta

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DefaultPrefix is the id under which process defaults are read.
const DefaultPrefix = "kforge"

// Properties is an immutable string map of dotted keys.
type Properties struct {
	m map[string]string
}

// NewProperties merges the given maps; later maps override earlier ones.
func NewProperties(sources ...map[string]string) Properties {
	m := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return Properties{m: m}
}

// Get returns the value of key.
func (p Properties) Get(key string) (string, bool) {
	v, ok := p.m[key]
	return v, ok
}

// With returns a copy of p overridden by kv.
func (p Properties) With(kv map[string]string) Properties {
	return NewProperties(p.m, kv)
}

// Keys returns every key in sorted order.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p.m))
}

// Len returns the number of keys.
func (p Properties) Len() int { return len(p.m) }

// ParseDefine splits a "key=value" command-line definition.
func ParseDefine(def string) (string, string, error) {
	k, v, ok := strings.Cut(def, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", "", fmt.Errorf("property definition %q: want key=value", def)
	}
	return k, strings.TrimSpace(v), nil
}

// ParseDefines turns repeated -D flags into a map.
func ParseDefines(defs []string) (map[string]string, error) {
	out := make(map[string]string, len(defs))
	for _, d := range defs {
		k, v, err := ParseDefine(d)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
