package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrFinalized is returned when an invocation targets a Builder that has
// already produced its Graph.
var ErrFinalized = errors.New("graph builder already finalized")

// Role records how an instance was created.
type Role string

const (
	RoleTask    Role = "task"
	RoleScatter Role = "scatter"
	RoleGather  Role = "gather"
)

// Instance is one invocation of a Node. Instances are owned by a Builder
// and later by a Graph; callers must not modify them.
type Instance struct {
	ID     string
	Seq    int // registration order within the graph
	Node   *Node
	Inputs map[string]any
	Role   Role
	Group  string // scatter group ID, empty unless Role is RoleScatter
	Index  int    // position within the scatter group, -1 otherwise
}

// Builder accumulates instances and their data-flow edges. It is safe for
// concurrent use; each registration is serialized.
type Builder struct {
	mu        sync.Mutex
	logger    *slog.Logger
	newID     func(prefix string) string
	instances []*Instance
	index     map[string]*Instance
	deps      map[string][]string
	finalized bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithIDGenerator replaces the default UUID-based identity generator.
// fn receives "inst" for instances and "grp" for scatter groups.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(b *Builder) {
		b.newID = fn
	}
}

// NewBuilder returns an empty Builder.
func NewBuilder(logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		logger: logger.With("component", "flow"),
		newID: func(prefix string) string {
			return prefix + "_" + uuid.New().String()
		},
		index: make(map[string]*Instance),
		deps:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Len returns the number of registered instances.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.instances)
}

func (b *Builder) groupID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newID("grp")
}

// add registers one instance of n with already-validated bindings.
func (b *Builder) add(n *Node, bound map[string]any, role Role, group string, idx int) (*Instance, error) {
	insts, err := b.addAll(n, []map[string]any{bound}, role, group, idx)
	if err != nil {
		return nil, err
	}
	return insts[0], nil
}

// addAll registers one instance of n per binding under a single lock. An
// edge is recorded from the owner of every Handle found in the bindings.
// All bindings are checked before the first instance is recorded, so a
// failure leaves the Builder unchanged. With first >= 0 instance i gets
// index first+i; otherwise every index is -1.
func (b *Builder) addAll(n *Node, bindings []map[string]any, role Role, group string, first int) ([]*Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return nil, ErrFinalized
	}

	index := func(i int) int {
		if first < 0 {
			return -1
		}
		return first + i
	}
	wrap := func(i int, err error) error {
		if len(bindings) == 1 {
			return err
		}
		return fmt.Errorf("element %d: %w", index(i), err)
	}

	deps := make([][]string, len(bindings))
	for i, bound := range bindings {
		d, err := b.dependencies(n, bound)
		if err != nil {
			return nil, wrap(i, err)
		}
		deps[i] = d
	}

	ids := make([]string, len(bindings))
	fresh := make(map[string]bool, len(bindings))
	for i := range bindings {
		id := b.newID("inst")
		if _, dup := b.index[id]; dup || fresh[id] {
			return nil, wrap(i, fmt.Errorf("task %s: duplicate instance id %s", n.Name, id))
		}
		fresh[id] = true
		ids[i] = id
	}

	insts := make([]*Instance, len(bindings))
	for i, bound := range bindings {
		inst := &Instance{
			ID:     ids[i],
			Seq:    len(b.instances),
			Node:   n,
			Inputs: bound,
			Role:   role,
			Group:  group,
			Index:  index(i),
		}
		b.instances = append(b.instances, inst)
		b.index[inst.ID] = inst
		b.deps[inst.ID] = deps[i]
		insts[i] = inst
		b.logger.Debug("register", "task", n.Name, "instance", inst.ID, "role", role, "depends_on", len(deps[i]))
	}
	return insts, nil
}

// dependencies returns the owners of the Handles in bound, in first-seen
// order. Every owner must already be registered in b. Callers hold b.mu.
func (b *Builder) dependencies(n *Node, bound map[string]any) ([]string, error) {
	var deps []string
	seen := make(map[string]bool)
	for _, p := range n.Inputs {
		for _, h := range collectHandles(bound[p.Name]) {
			if _, ok := b.index[h.instance]; !ok {
				return nil, fmt.Errorf("task %s: input %q references %s, which is not in this graph", n.Name, p.Name, h)
			}
			if !seen[h.instance] {
				seen[h.instance] = true
				deps = append(deps, h.instance)
			}
		}
	}
	return deps, nil
}

// Finalize stops accepting invocations and returns the immutable Graph.
// It fails with a CycleError if the recorded edges are not acyclic.
func (b *Builder) Finalize() (*Graph, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finalized = true
	g := newGraph(b.instances, b.deps)
	if _, err := g.TopologicalOrder(); err != nil {
		return nil, err
	}
	b.logger.Debug("finalize", "instances", g.Len(), "edges", len(g.Edges()))
	return g, nil
}
