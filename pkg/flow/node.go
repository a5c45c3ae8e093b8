package flow

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/me/wolf/pkg/model"
)

// Node is a named, versioned unit of work with declared inputs and outputs.
// Image and Command are opaque to the graph; they only feed the signature
// and are passed through to the execution engine.
type Node struct {
	Name    string
	Version string
	Image   string
	Command string
	Inputs  []Param
	Outputs []Param
}

// Input returns the declared input with the given name.
func (n *Node) Input(name string) (Param, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Signature returns a content fingerprint of the node definition. Two nodes
// with the same name, version, image, command, and parameter schema share a
// signature.
func (n *Node) Signature() string {
	h := sha256.New()
	field := func(s string) {
		var l [8]byte
		binary.BigEndian.PutUint64(l[:], uint64(len(s)))
		h.Write(l[:])
		h.Write([]byte(s))
	}
	field(n.Name)
	field(n.Version)
	field(n.Image)
	field(n.Command)
	for _, group := range [][]Param{n.Inputs, n.Outputs} {
		field(fmt.Sprint(len(group)))
		for _, p := range group {
			field(p.Name)
			field(p.Kind.String())
			field(p.Elem.String())
			field(p.SizeFrom)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Invoke binds inputs, registers one new instance in b, and returns a Ref
// for every declared output. Nothing runs; invoking twice with equal inputs
// yields two distinct instances.
func (n *Node) Invoke(b *Builder, inputs map[string]any) (Outputs, error) {
	bound, err := bind(n, inputs, nil)
	if err != nil {
		return Outputs{}, err
	}
	inst, err := b.add(n, bound, RoleTask, "", -1)
	if err != nil {
		return Outputs{}, err
	}
	return outputsOf(inst), nil
}

// bind validates inputs against the node's schema and fills defaults for
// absent keys. Inputs named in scattered are checked against their element
// kind. Plain strings bound to file inputs are recorded as Paths.
func bind(n *Node, inputs map[string]any, scattered map[string]bool) (map[string]any, error) {
	for _, k := range sortedKeys(inputs) {
		if _, ok := n.Input(k); !ok {
			return nil, &model.UnknownInputError{Node: n.Name, Input: k}
		}
	}

	bound := make(map[string]any, len(n.Inputs))
	for _, p := range n.Inputs {
		v, ok := inputs[p.Name]
		if !ok {
			if !p.HasDefault {
				return nil, &model.MissingInputError{Node: n.Name, Input: p.Name}
			}
			v = p.Default
		}
		want := p.Kind
		if scattered[p.Name] {
			want = p.Elem
		}
		if !accepts(want, v) {
			return nil, &model.InputTypeError{Node: n.Name, Input: p.Name, Want: want.String(), Got: describe(v)}
		}
		if want == KindCollection && !scattered[p.Name] {
			if err := checkElems(n, p, v); err != nil {
				return nil, err
			}
		}
		if s, isString := v.(string); isString && want == KindFile {
			v = Path(s)
		}
		bound[p.Name] = v
	}
	return bound, nil
}

// checkElems verifies that every element of a literal collection bound to p
// has the declared element kind. Collection Handles are not enumerable here.
func checkElems(n *Node, p Param, v any) error {
	if _, isHandle := v.(Handle); isHandle {
		return nil
	}
	elems, ok := toElements(v)
	if !ok {
		return nil
	}
	for i, el := range elems {
		if !accepts(p.Elem, el) {
			return &model.InputTypeError{
				Node:  n.Name,
				Input: p.Name,
				Want:  "collection of " + p.Elem.String(),
				Got:   fmt.Sprintf("element %d: %s", i, describe(el)),
			}
		}
	}
	return nil
}

// outputsOf builds the Refs for a registered instance. Collection outputs
// with a SizeFrom input bound to a literal integer become Collections of
// per-element Handles; everything else is a single Handle.
func outputsOf(inst *Instance) Outputs {
	n := inst.Node
	out := Outputs{
		node:  n.Name,
		names: make([]string, 0, len(n.Outputs)),
		refs:  make(map[string]Ref, len(n.Outputs)),
	}
	for _, p := range n.Outputs {
		out.names = append(out.names, p.Name)
		if p.Kind == KindCollection && p.SizeFrom != "" {
			if size, ok := intValue(inst.Inputs[p.SizeFrom]); ok && size >= 0 {
				items := make([]any, size)
				for i := range items {
					items[i] = Handle{instance: inst.ID, output: p.Name, index: i, kind: p.Elem}
				}
				out.refs[p.Name] = Collection{items: items}
				continue
			}
		}
		out.refs[p.Name] = Handle{instance: inst.ID, output: p.Name, index: -1, kind: p.Kind}
	}
	return out
}

// valueKind classifies a bound value. It returns false for values the graph
// cannot carry.
func valueKind(v any) (Kind, bool) {
	switch x := v.(type) {
	case Handle:
		return x.kind, !x.IsZero()
	case Collection:
		return KindCollection, true
	case Path:
		return KindFile, true
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return KindScalar, true
	case []any:
		for _, it := range x {
			if _, ok := valueKind(it); !ok {
				return 0, false
			}
		}
		return KindCollection, true
	case []string, []Path, []Handle, []Collection, []Ref, []int, []float64:
		return KindCollection, true
	}
	return 0, false
}

// accepts reports whether v may be bound to a parameter of kind want.
// Plain strings are accepted as file references.
func accepts(want Kind, v any) bool {
	got, ok := valueKind(v)
	if !ok {
		return false
	}
	if want == KindFile {
		if _, isString := v.(string); isString {
			return true
		}
	}
	return got == want
}

func describe(v any) string {
	switch x := v.(type) {
	case Handle:
		return x.kind.String() + " handle"
	case Collection:
		return "collection"
	case nil:
		return "nil"
	}
	if k, ok := valueKind(v); ok {
		return fmt.Sprintf("%s (%T)", k, v)
	}
	return fmt.Sprintf("%T", v)
}

func intValue(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
