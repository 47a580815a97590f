// Package profile provides user profile sources for registration forms.
package profile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/concierge/pkg/ports"
)

// Static is a fixed profile.
type Static map[string]string

// Profile returns a copy of the static values.
func (s Static) Profile(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// File reads a YAML document of scalar fields on every call, so edits are
// picked up by the next run without a restart.
type File struct {
	Path string
}

// NewFile creates a file-backed profile source.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Profile loads and flattens the YAML document.
func (f *File) Profile(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile. Nested mappings are flattened with dotted keys
// and sequences are joined with ", ".
func Parse(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid profile yaml: %w", err)
	}
	out := make(map[string]string)
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
		case map[string]any:
			flatten(key, val, out)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ", ")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Env builds a profile from environment variables sharing a prefix.
// CONCIERGE_PROFILE_FIRST_NAME becomes "first_name".
type Env struct {
	Prefix string
}

// Profile scans the environment.
func (e Env) Profile(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, e.Prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, e.Prefix))
		if name != "" {
			out[name] = v
		}
	}
	return out, nil
}

// Merged combines sources; later sources win on conflicting keys.
type Merged []ports.ProfileSource

// Profile merges every source in order.
func (m Merged) Profile(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, src := range m {
		p, err := src.Profile(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range p {
			out[k] = v
		}
	}
	return out, nil
}

// Keys returns the profile keys in lexical order.
func Keys(p map[string]string) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
