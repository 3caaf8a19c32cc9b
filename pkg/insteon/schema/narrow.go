package schema

// Node is a branch point in the DevCat → SubCat → Firmware → (Cmd2)
// narrowing walk described in spec.md §4.1 and §4.3/§4.4, reframed per
// REDESIGN FLAGS as a tagged-variant tree rather than the original's
// nested dictionaries. T is the leaf payload; the dispatch package's
// inbound tables use its handler types (dispatch.AckHandler,
// dispatch.DirectHandler). Outgoing command construction does not narrow.
type Node[T any] struct {
	branches []branch[T]
}

type branch[T any] struct {
	values   []byte
	catchAll bool
	leaf     T
	hasLeaf  bool
	next     *Node[T]
}

// NewNode builds an empty narrowing node.
func NewNode[T any]() *Node[T] {
	return &Node[T]{}
}

// AddLeaf attaches a leaf reached when this level's criterion value is in
// values (or, if values is empty, via the catch-all "all" branch).
func (n *Node[T]) AddLeaf(values []byte, leaf T) *Node[T] {
	n.branches = append(n.branches, branch[T]{
		values:   values,
		catchAll: len(values) == 0,
		leaf:     leaf,
		hasLeaf:  true,
	})
	return n
}

// AddBranch attaches a deeper Node reached when this level's criterion
// value is in values (or, if values is empty, via the catch-all branch).
func (n *Node[T]) AddBranch(values []byte, next *Node[T]) *Node[T] {
	n.branches = append(n.branches, branch[T]{
		values:   values,
		catchAll: len(values) == 0,
		next:     next,
	})
	return n
}

func contains(values []byte, v byte) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// resolveBranch picks this level's matching branch: a unique (non-catch-all)
// match takes precedence over the catch-all, per spec.md's "Unique matches
// take precedence over catch-all at each level."
func (n *Node[T]) resolveBranch(v byte) (branch[T], bool) {
	var catchAll *branch[T]
	for i := range n.branches {
		b := &n.branches[i]
		if b.catchAll {
			catchAll = b
			continue
		}
		if contains(b.values, v) {
			return *b, true
		}
	}
	if catchAll != nil {
		return *catchAll, true
	}
	return branch[T]{}, false
}

// Resolve walks keys one level per entry, stopping as soon as a branch
// carries a leaf (a schema may narrow on fewer criteria than the caller
// supplies). A miss at any level returns the zero value and false — "A
// miss returns no handler and the frame is logged and dropped" (spec.md
// §4.1).
func (n *Node[T]) Resolve(keys ...byte) (T, bool) {
	node := n
	var zero T
	for _, k := range keys {
		b, ok := node.resolveBranch(k)
		if !ok {
			return zero, false
		}
		if b.hasLeaf {
			return b.leaf, true
		}
		if b.next == nil {
			return zero, false
		}
		node = b.next
	}
	return zero, false
}
