package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ref is a deferred reference produced by an invocation: a Handle or a
// Collection. Refs are never dereferenced during graph construction; they
// are only bound as inputs of later invocations or returned to the caller.
type Ref interface {
	Kind() Kind
	String() string
	ref()
}

// Path is a literal file reference, such as a reference FASTA location.
type Path string

// Handle names one output of one task instance. When Index is non-negative
// it names a single element of a sized collection output.
type Handle struct {
	instance string
	output   string
	index    int
	kind     Kind
}

// Instance returns the ID of the instance that produces the value.
func (h Handle) Instance() string { return h.instance }

// Output returns the declared output name.
func (h Handle) Output() string { return h.output }

// Index returns the element position within a sized collection output, or -1.
func (h Handle) Index() int { return h.index }

// Kind returns the kind of the referenced value.
func (h Handle) Kind() Kind { return h.kind }

// IsZero reports whether h was never produced by an invocation.
func (h Handle) IsZero() bool { return h.instance == "" }

func (h Handle) String() string {
	if h.index >= 0 {
		return fmt.Sprintf("%s/%s[%d]", h.instance, h.output, h.index)
	}
	return h.instance + "/" + h.output
}

func (Handle) ref() {}

// MarshalJSON renders the handle as a reference object for the execution engine.
func (h Handle) MarshalJSON() ([]byte, error) {
	if h.index >= 0 {
		return []byte(fmt.Sprintf(`{"$ref":%q,"index":%d}`, h.instance+"/"+h.output, h.index)), nil
	}
	return []byte(fmt.Sprintf(`{"$ref":%q}`, h.instance+"/"+h.output)), nil
}

// MarshalYAML renders the handle the same way as MarshalJSON.
func (h Handle) MarshalYAML() (any, error) {
	m := map[string]any{"$ref": h.instance + "/" + h.output}
	if h.index >= 0 {
		m["index"] = h.index
	}
	return m, nil
}

// Collection is an ordered list of values, usually Handles. Collections
// returned by Scatter carry the generated scatter group ID; element i
// belongs to the i-th instance of the group.
type Collection struct {
	group string
	items []any
}

// NewCollection returns a collection of the given items.
func NewCollection(items ...any) Collection {
	c := Collection{items: make([]any, len(items))}
	copy(c.items, items)
	return c
}

// Len returns the number of elements.
func (c Collection) Len() int { return len(c.items) }

// At returns the i-th element.
func (c Collection) At(i int) any { return c.items[i] }

// Items returns a copy of the elements.
func (c Collection) Items() []any {
	out := make([]any, len(c.items))
	copy(out, c.items)
	return out
}

// Group returns the scatter group ID, or "" for collections not built by Scatter.
func (c Collection) Group() string { return c.group }

// Kind always returns KindCollection.
func (c Collection) Kind() Kind { return KindCollection }

func (c Collection) String() string {
	parts := make([]string, len(c.items))
	for i, it := range c.items {
		parts[i] = fmt.Sprint(it)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (Collection) ref() {}

// MarshalYAML renders the collection as a plain sequence.
func (c Collection) MarshalYAML() (any, error) {
	return c.items, nil
}

// MarshalJSON renders the collection as a plain array.
func (c Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.items)
}

// Outputs maps each declared output name of a Node to a Ref, in declaration order.
type Outputs struct {
	node  string
	names []string
	refs  map[string]Ref
}

// Names returns the output names in the order the Node declares them.
func (o Outputs) Names() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Get returns the reference bound to name, or nil if the node declares no such output.
func (o Outputs) Get(name string) Ref {
	return o.refs[name]
}

// Len returns the number of outputs.
func (o Outputs) Len() int { return len(o.names) }

// collectHandles walks a bound value and returns every Handle inside it,
// descending into collections, slices, and maps.
func collectHandles(v any) []Handle {
	switch x := v.(type) {
	case Handle:
		return []Handle{x}
	case Collection:
		return collectSlice(x.items)
	case []any:
		return collectSlice(x)
	case []Ref:
		var hs []Handle
		for _, r := range x {
			hs = append(hs, collectHandles(r)...)
		}
		return hs
	case []Handle:
		out := make([]Handle, len(x))
		copy(out, x)
		return out
	case []Collection:
		var hs []Handle
		for _, c := range x {
			hs = append(hs, collectSlice(c.items)...)
		}
		return hs
	case map[string]any:
		var hs []Handle
		for _, k := range sortedKeys(x) {
			hs = append(hs, collectHandles(x[k])...)
		}
		return hs
	}
	return nil
}

func collectSlice(items []any) []Handle {
	var hs []Handle
	for _, it := range items {
		hs = append(hs, collectHandles(it)...)
	}
	return hs
}
