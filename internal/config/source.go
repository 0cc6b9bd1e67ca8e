// internal/config/source.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is a flat key/value configuration mapping. Resolution never touches
// process-wide state; callers decide where the mapping comes from.
type Source map[string]string

// FromEnviron builds a Source from "KEY=VALUE" pairs as returned by
// os.Environ().
func FromEnviron(environ []string) Source {
	src := make(Source, len(environ))
	for _, kv := range environ {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		src[kv[:i]] = kv[i+1:]
	}
	return src
}

// FromYAMLFile loads a Source from a flat YAML mapping of keys to scalar
// values.
func FromYAMLFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	src := make(Source, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		src[k] = fmt.Sprint(v)
	}
	return src, nil
}

// Merge overlays b onto a. Keys in b win.
func Merge(a, b Source) Source {
	out := make(Source, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
