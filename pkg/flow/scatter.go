package flow

import (
	"fmt"

	"github.com/me/wolf/pkg/model"
)

// Scatter invokes n once per element of the inputs named in scatterOn and
// returns, for every declared output, a Collection whose i-th element is
// the output of the i-th instance. Every scattered input must be declared
// as a collection and hold a value whose length is known now. With more
// than one scattered input the elements are paired by position
// (dotproduct), so all of them must have the same length.
//
// Every element's bindings are checked against the schema and the graph
// before the first instance is registered; a failed scatter registers
// nothing.
func Scatter(b *Builder, n *Node, inputs map[string]any, scatterOn ...string) (Outputs, error) {
	if len(scatterOn) == 0 {
		return Outputs{}, &model.ScatterTypeError{Node: n.Name, Reason: "no scatter input named"}
	}

	scatterArrays := make(map[string][]any, len(scatterOn))
	scattered := make(map[string]bool, len(scatterOn))
	length := -1
	for _, name := range scatterOn {
		p, ok := n.Input(name)
		if !ok {
			return Outputs{}, &model.UnknownInputError{Node: n.Name, Input: name}
		}
		if p.Kind != KindCollection {
			return Outputs{}, &model.ScatterTypeError{
				Node: n.Name, Input: name,
				Reason: fmt.Sprintf("declared kind is %s, want collection", p.Kind),
			}
		}
		v, ok := inputs[name]
		if !ok || v == nil {
			return Outputs{}, &model.MissingInputError{Node: n.Name, Input: name}
		}
		arr, ok := toElements(v)
		if !ok {
			return Outputs{}, &model.ScatterTypeError{
				Node: n.Name, Input: name,
				Reason: fmt.Sprintf("%s has no length at construction time", describe(v)),
			}
		}
		if len(arr) == 0 {
			return Outputs{}, &model.EmptyScatterError{Node: n.Name, Input: name}
		}
		if length >= 0 && len(arr) != length {
			return Outputs{}, &model.ScatterTypeError{
				Node: n.Name, Input: name,
				Reason: fmt.Sprintf("length %d does not match %q length %d", len(arr), scatterOn[0], length),
			}
		}
		length = len(arr)
		scatterArrays[name] = arr
		scattered[name] = true
	}

	combinations := dotProduct(inputs, scatterOn, scatterArrays)
	bindings := make([]map[string]any, len(combinations))
	for i, combo := range combinations {
		bound, err := bind(n, combo, scattered)
		if err != nil {
			return Outputs{}, fmt.Errorf("scatter element %d: %w", i, err)
		}
		bindings[i] = bound
	}

	group := b.groupID()
	insts, err := b.addAll(n, bindings, RoleScatter, group, 0)
	if err != nil {
		return Outputs{}, fmt.Errorf("scatter %w", err)
	}
	results := make([]Outputs, len(insts))
	for i, inst := range insts {
		results[i] = outputsOf(inst)
	}

	return mergeScatterOutputs(n, group, results), nil
}

// Gather invokes n once, binding the collections given under gatherInput
// as a single nested collection. The value may be one Ref (typically a
// Scatter output) or a slice of Refs from several producers. Ordering of
// the nested collections carries no meaning for the merge.
func Gather(b *Builder, n *Node, inputs map[string]any, gatherInput string) (Outputs, error) {
	p, ok := n.Input(gatherInput)
	if !ok {
		return Outputs{}, &model.UnknownInputError{Node: n.Name, Input: gatherInput}
	}
	if p.Kind != KindCollection {
		return Outputs{}, &model.InputTypeError{Node: n.Name, Input: gatherInput, Want: KindCollection.String(), Got: p.Kind.String()}
	}
	v, ok := inputs[gatherInput]
	if !ok || v == nil {
		return Outputs{}, &model.MissingInputError{Node: n.Name, Input: gatherInput}
	}

	var parts []any
	switch x := v.(type) {
	case Ref:
		parts = []any{x}
	default:
		arr, ok := toElements(v)
		if !ok {
			return Outputs{}, &model.InputTypeError{Node: n.Name, Input: gatherInput, Want: KindCollection.String(), Got: describe(v)}
		}
		parts = arr
	}
	if len(parts) == 0 {
		return Outputs{}, &model.EmptyScatterError{Node: n.Name, Input: gatherInput}
	}

	combo := copyInputs(inputs)
	combo[gatherInput] = NewCollection(parts...)
	bound, err := bind(n, combo, nil)
	if err != nil {
		return Outputs{}, err
	}
	inst, err := b.add(n, bound, RoleGather, "", -1)
	if err != nil {
		return Outputs{}, err
	}
	return outputsOf(inst), nil
}

// toElements returns the elements of a value whose length is known at
// construction time. Unsized collection Handles are not enumerable.
func toElements(v any) ([]any, bool) {
	switch arr := v.(type) {
	case Collection:
		return arr.Items(), true
	case []any:
		return arr, true
	case []string:
		result := make([]any, len(arr))
		for i, s := range arr {
			result[i] = s
		}
		return result, true
	case []Path:
		result := make([]any, len(arr))
		for i, s := range arr {
			result[i] = s
		}
		return result, true
	case []Handle:
		result := make([]any, len(arr))
		for i, h := range arr {
			result[i] = h
		}
		return result, true
	case []Ref:
		result := make([]any, len(arr))
		for i, r := range arr {
			result[i] = r
		}
		return result, true
	case []Collection:
		result := make([]any, len(arr))
		for i, c := range arr {
			result[i] = c
		}
		return result, true
	case []int:
		result := make([]any, len(arr))
		for i, n := range arr {
			result[i] = n
		}
		return result, true
	case []float64:
		result := make([]any, len(arr))
		for i, f := range arr {
			result[i] = f
		}
		return result, true
	}
	return nil, false
}

// dotProduct pairs element i of every scatter array into one input map.
// Callers guarantee equal lengths.
func dotProduct(baseInputs map[string]any, scatterInputs []string, scatterArrays map[string][]any) []map[string]any {
	length := len(scatterArrays[scatterInputs[0]])
	combinations := make([]map[string]any, 0, length)
	for i := 0; i < length; i++ {
		combo := copyInputs(baseInputs)
		for _, name := range scatterInputs {
			combo[name] = scatterArrays[name][i]
		}
		combinations = append(combinations, combo)
	}
	return combinations
}

// copyInputs creates a shallow copy of an inputs map.
func copyInputs(inputs map[string]any) map[string]any {
	result := make(map[string]any, len(inputs))
	for k, v := range inputs {
		result[k] = v
	}
	return result
}

// mergeScatterOutputs turns per-instance outputs into one Collection per
// declared output, preserving scatter order.
func mergeScatterOutputs(n *Node, group string, results []Outputs) Outputs {
	merged := Outputs{
		node:  n.Name,
		names: make([]string, 0, len(n.Outputs)),
		refs:  make(map[string]Ref, len(n.Outputs)),
	}
	for _, p := range n.Outputs {
		items := make([]any, len(results))
		for i, r := range results {
			items[i] = r.Get(p.Name)
		}
		merged.names = append(merged.names, p.Name)
		merged.refs[p.Name] = Collection{group: group, items: items}
	}
	return merged
}
