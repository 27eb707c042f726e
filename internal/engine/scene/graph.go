package scene

// Graph owns a node tree. It is not safe for concurrent use; the render loop
// goroutine is its only mutator.
type Graph struct {
	root *Node
}

// NewGraph wraps root, creating an empty group when root is nil.
func NewGraph(root *Node) *Graph {
	if root == nil {
		root = NewNode("scene", KindGroup)
	}
	return &Graph{root: root}
}

// Root returns the root node.
func (g *Graph) Root() *Node {
	return g.root
}

// FindByName returns the first node in depth-first order with the given name.
func (g *Graph) FindByName(name string) *Node {
	if name == "" {
		return nil
	}
	return g.root.FindByName(name)
}

// FindByID returns the node with the given stable id.
func (g *Graph) FindByID(id string) *Node {
	if id == "" {
		return nil
	}
	return g.root.FindByID(id)
}

// Contains reports whether n is attached under the root.
func (g *Graph) Contains(n *Node) bool {
	return n != nil && n.Root() == g.root
}

// Drawables returns every drawable node in depth-first order.
func (g *Graph) Drawables() []*Node {
	var out []*Node
	g.root.Walk(func(n *Node) bool {
		if n.Kind == KindDrawable {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Snapshot maps drawable names and ids to nodes at a point in time.
type Snapshot map[string]*Node

// Snapshot captures the current drawables of the subtree at root (the whole
// graph when root is nil). Named drawables are keyed by name as well as id;
// the first drawable wins on duplicate names.
func (g *Graph) Snapshot(root *Node) Snapshot {
	if root == nil {
		root = g.root
	}
	snap := make(Snapshot)
	root.Walk(func(n *Node) bool {
		if n.Kind != KindDrawable {
			return true
		}
		if n.Name != "" {
			if _, dup := snap[n.Name]; !dup {
				snap[n.Name] = n
			}
		}
		snap[n.ID] = n
		return true
	})
	return snap
}
