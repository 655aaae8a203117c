package tree

import (
	"github.com/roach88/timetravel/internal/ir"
)

// Node is a handle on one subtree of a Tree. It offers the same
// observation contract as the Tree itself, scoped to its path: its
// subscribers hear only about changes inside the subtree, and its
// snapshots capture only the subtree.
type Node struct {
	tree *Tree
	path Path
}

// Path returns the node's location in the tree.
func (n *Node) Path() string {
	return n.path.String()
}

// Tree returns the owning tree.
func (n *Node) Tree() *Tree {
	return n.tree
}

// CurrentSnapshot captures the subtree. A subtree that no longer exists
// is captured as null.
func (n *Node) CurrentSnapshot() ir.Snapshot {
	return n.tree.snapshotAt(n.path)
}

// Subscribe registers fn for committed changes inside the subtree.
func (n *Node) Subscribe(fn func(ir.Snapshot)) func() {
	return n.tree.subscribe(n.path, fn, nil)
}

// SubscribeTagged is the tagged form of Subscribe.
func (n *Node) SubscribeTagged(fn func(ir.Snapshot, string)) func() {
	return n.tree.subscribe(n.path, nil, fn)
}

// ApplySnapshot replaces the subtree with s. Subscribers of this node are
// notified exactly once; ancestors hear about it only if their value
// changed.
func (n *Node) ApplySnapshot(s ir.Snapshot) error {
	return n.tree.applyAt(n.path, s, "")
}

// ApplyTagged is ApplySnapshot with a correlation token.
func (n *Node) ApplyTagged(s ir.Snapshot, token string) error {
	return n.tree.applyAt(n.path, s, token)
}
