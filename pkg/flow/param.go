// Package flow records task graphs from straight-line workflow code.
//
// A workflow author invokes Nodes with a map of inputs and receives Outputs
// holding deferred references (Handles and Collections) instead of values.
// Passing those references into later invocations is what creates graph
// edges; nothing is executed here. A Builder accumulates the instances and
// Finalize turns it into an immutable Graph for an external engine.
package flow

import "fmt"

// Kind is the declared type of a task input or output.
type Kind int

const (
	KindScalar Kind = iota
	KindFile
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindFile:
		return "file"
	case KindCollection:
		return "collection"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param declares one named input or output of a Node.
type Param struct {
	Name string
	Kind Kind

	// Elem is the kind of each element when Kind is KindCollection.
	// A scattered input receives values of this kind.
	Elem Kind

	// Default is bound when the caller omits the input.
	Default    any
	HasDefault bool

	// SizeFrom names an integer input whose bound value fixes the length of
	// a collection output at construction time. Only sized collections can
	// be scattered over.
	SizeFrom string

	Doc string
}

// Scalar declares a scalar parameter (string, number, or bool).
func Scalar(name string) Param {
	return Param{Name: name, Kind: KindScalar}
}

// File declares a file-reference parameter.
func File(name string) Param {
	return Param{Name: name, Kind: KindFile}
}

// CollectionOf declares a collection parameter whose elements are of kind elem.
func CollectionOf(name string, elem Kind) Param {
	return Param{Name: name, Kind: KindCollection, Elem: elem}
}

// WithDefault returns a copy of p that is optional and defaults to v.
func (p Param) WithDefault(v any) Param {
	p.Default = v
	p.HasDefault = true
	return p
}

// SizedBy returns a copy of p whose collection length is taken from input.
func (p Param) SizedBy(input string) Param {
	p.SizeFrom = input
	return p
}

// Describe returns a copy of p with documentation attached.
func (p Param) Describe(doc string) Param {
	p.Doc = doc
	return p
}

// Required reports whether the parameter must be bound by the caller.
func (p Param) Required() bool {
	return !p.HasDefault
}
