// Package refconfig resolves the reference files a workflow run uses by
// merging build defaults, a sequencing-type specialization, and caller
// overrides.
package refconfig

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/me/wolf/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed references.yaml
var defaultReferences []byte

// BuildRefs holds one genome build's reference parameters. In YAML, keys
// holding a mapping are sequencing types; all other keys are build-level
// parameters.
type BuildRefs struct {
	Params          map[string]any
	SequencingTypes map[string]map[string]any
}

// UnmarshalYAML splits a build mapping into parameters and sequencing types.
func (b *BuildRefs) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	b.Params = make(map[string]any)
	b.SequencingTypes = make(map[string]map[string]any)
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			b.SequencingTypes[k] = m
			continue
		}
		b.Params[k] = v
	}
	return nil
}

// MarshalYAML writes the build back in the same nested shape.
func (b BuildRefs) MarshalYAML() (any, error) {
	out := make(map[string]any, len(b.Params)+len(b.SequencingTypes))
	for k, v := range b.Params {
		out[k] = v
	}
	for k, v := range b.SequencingTypes {
		out[k] = v
	}
	return out, nil
}

// Table maps build names to their reference parameters.
type Table map[string]BuildRefs

var defaultTable = sync.OnceValues(func() (Table, error) {
	return parseTable(defaultReferences)
})

// DefaultTable returns the embedded hg38/hg19 reference table.
func DefaultTable() Table {
	t, err := defaultTable()
	if err != nil {
		panic(fmt.Sprintf("refconfig: embedded references.yaml: %v", err))
	}
	return t
}

// LoadTable parses a reference table from YAML.
func LoadTable(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read reference table: %w", err)
	}
	return parseTable(data)
}

// LoadTableFile parses a reference table from a YAML file.
func LoadTableFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference table %s: %w", path, err)
	}
	t, err := parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func parseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse reference table: %w", err)
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("parse reference table: no builds defined")
	}
	return t, nil
}

// LoadOverrides parses a flat YAML mapping of override parameters.
func LoadOverrides(r io.Reader) (map[string]any, error) {
	var overrides map[string]any
	if err := yaml.NewDecoder(r).Decode(&overrides); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	if overrides == nil {
		overrides = map[string]any{}
	}
	return overrides, nil
}

// Builds returns the build names in sorted order.
func (t Table) Builds() []string {
	builds := make([]string, 0, len(t))
	for k := range t {
		builds = append(builds, k)
	}
	sort.Strings(builds)
	return builds
}

// SequencingTypes returns the sequencing types defined for build.
func (t Table) SequencingTypes(build string) ([]string, error) {
	b, ok := t[build]
	if !ok {
		return nil, &model.ConfigurationError{Key: "build", Value: build, Allowed: t.Builds()}
	}
	types := make([]string, 0, len(b.SequencingTypes))
	for k := range b.SequencingTypes {
		types = append(types, k)
	}
	sort.Strings(types)
	return types, nil
}

// Resolve returns the flat parameter mapping for build and seqType: the
// build-level parameters, then the sequencing-type mapping, then overrides,
// each layer shallow-merged over the previous one. Overrides may introduce
// keys neither earlier layer defines. The table is never modified.
func (t Table) Resolve(build, seqType string, overrides map[string]any) (Refs, error) {
	b, ok := t[build]
	if !ok {
		return nil, &model.ConfigurationError{Key: "build", Value: build, Allowed: t.Builds()}
	}
	specialized, ok := b.SequencingTypes[seqType]
	if !ok {
		allowed, _ := t.SequencingTypes(build)
		return nil, &model.ConfigurationError{Key: "sequencing_type", Value: seqType, Allowed: allowed}
	}
	return Refs(Merge(b.Params, specialized, overrides)), nil
}

// Resolve resolves against the embedded default table.
func Resolve(build, seqType string, overrides map[string]any) (Refs, error) {
	return DefaultTable().Resolve(build, seqType, overrides)
}

// Merge combines layers left to right into a new mapping. A key in a later
// layer replaces the same key from an earlier one; nested mappings are
// replaced whole, never merged. Nil layers are skipped.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Refs is a resolved reference mapping.
type Refs map[string]any

// Value returns the parameter for key, or a ConfigurationError naming it.
func (r Refs) Value(key string) (any, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, &model.ConfigurationError{Key: "reference key " + key}
	}
	return v, nil
}

// StringValue returns the parameter for key formatted as a string.
func (r Refs) StringValue(key string) (string, error) {
	v, err := r.Value(key)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Keys returns the parameter names in sorted order.
func (r Refs) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
