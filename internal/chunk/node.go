package chunk

import "github.com/atlasmap-sc/globelod/internal/geo"

// Node is a quadtree node. It exclusively owns its chunk and its children;
// merging drops the children subtree.
type Node struct {
	chunk    *Chunk
	parent   *Node
	children []*Node
}

// NewNode creates a root node for idx.
func NewNode(owner Owner, idx geo.TileIndex) *Node {
	return &Node{chunk: New(owner, idx, true)}
}

func (n *Node) Chunk() *Chunk     { return n.chunk }
func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) IsLeaf() bool      { return len(n.children) == 0 }
func (n *Node) Children() []*Node { return n.children }

// UpdateChunkTree updates the subtree and applies split and merge decisions.
// It returns true when the node asks its parent to merge it away.
func (n *Node) UpdateChunkTree(data RenderData) bool {
	if n.IsLeaf() {
		status := n.chunk.Update(data)
		if status == StatusWantSplit {
			n.Split(1)
		}
		return status == StatusWantMerge
	}

	mergeMask := 0
	for i, child := range n.children {
		if child.UpdateChunkTree(data) {
			mergeMask |= 1 << i
		}
	}
	allChildrenWantMerge := mergeMask == 0xf
	if allChildrenWantMerge && n.chunk.Update(data) != StatusWantSplit {
		n.Merge()
	}
	return false
}

// Split creates depth levels of children below every leaf of the subtree.
func (n *Node) Split(depth int) {
	if depth <= 0 {
		return
	}
	if n.IsLeaf() {
		owner := n.chunk.Owner()
		n.children = make([]*Node, 0, 4)
		for _, idx := range n.chunk.Index().Children() {
			n.children = append(n.children, &Node{
				chunk:  New(owner, idx, true),
				parent: n,
			})
		}
	}
	for _, child := range n.children {
		child.Split(depth - 1)
	}
}

// Merge frees the children and makes the node's own chunk visible again.
func (n *Node) Merge() {
	for _, child := range n.children {
		child.Merge()
		child.parent = nil
	}
	n.children = nil
	n.chunk.setVisible(true)
}

// Walk visits the subtree depth first, parents before children. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.children {
		child.Walk(fn)
	}
}

// Leaves returns the leaf chunks of the subtree.
func (n *Node) Leaves() []*Chunk {
	var out []*Chunk
	n.Walk(func(node *Node) bool {
		if node.IsLeaf() {
			out = append(out, node.chunk)
		}
		return true
	})
	return out
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Find returns the node holding idx, or nil.
func (n *Node) Find(idx geo.TileIndex) *Node {
	cur := n
	for cur != nil {
		ci := cur.chunk.Index()
		if ci == idx {
			return cur
		}
		if cur.IsLeaf() || ci.Level >= idx.Level {
			return nil
		}
		d := idx.Level - ci.Level - 1
		x, y := (idx.X>>d)&1, (idx.Y>>d)&1
		if (idx.X>>(d+1)) != ci.X || (idx.Y>>(d+1)) != ci.Y {
			return nil
		}
		cur = cur.children[y*2+x]
	}
	return nil
}
