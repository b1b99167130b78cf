package models

// Node represents a single row of a nested-set tree table
type Node struct {
	ID           int64  `json:"id"`
	ParentID     int64  `json:"parentId"`
	RootID       int64  `json:"rootId"`
	Lft          int64  `json:"lft"`
	Rgt          int64  `json:"rgt"`
	Level        int64  `json:"level"`
	RootOrder    int64  `json:"rootOrder"`
	OwnerID      int64  `json:"ownerId"`
	Name         string `json:"name"`
	IsUserFolder bool   `json:"isUserFolder"`

	// Read-only display fields filled by queries
	OwnerName  string `json:"ownerName,omitempty"`
	ChildCount int64  `json:"children"`
}

// Width returns the size of the node's interval, twice the number of nodes in its subtree
func (n Node) Width() int64 {
	return n.Rgt - n.Lft + 1
}

// IsRoot reports whether the node starts a tree
func (n Node) IsRoot() bool {
	return n.ParentID == 0
}

// Contains reports whether other lies inside n's interval (n itself included)
func (n Node) Contains(other Node) bool {
	return n.RootID == other.RootID && n.Lft <= other.Lft && other.Rgt <= n.Rgt
}

// Position is the {root_id, rgt, lft} projection of a node
type Position struct {
	RootID int64 `json:"rootId"`
	Rgt    int64 `json:"rgt"`
	Lft    int64 `json:"lft"`
}

// TreeNode represents a node of a tree prepared for display
type TreeNode struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Level    int64       `json:"level"`
	Children []*TreeNode `json:"children"`
}

// NewTreeNode creates a new display node from a stored node
func NewTreeNode(node Node) *TreeNode {
	return &TreeNode{
		ID:       node.ID,
		Name:     node.Name,
		Level:    node.Level,
		Children: make([]*TreeNode, 0),
	}
}

// AddChild adds a child node to the current node
func (n *TreeNode) AddChild(child *TreeNode) {
	n.Children = append(n.Children, child)
}

// BuildTree nests a lft-ordered row set of one tree. Rows are attached to the
// closest open ancestor whose interval still contains them.
func BuildTree(nodes []Node) []*TreeNode {
	var roots []*TreeNode
	type open struct {
		rgt  int64
		node *TreeNode
	}
	var stack []open

	for _, node := range nodes {
		for len(stack) > 0 && stack[len(stack)-1].rgt < node.Lft {
			stack = stack[:len(stack)-1]
		}

		treeNode := NewTreeNode(node)
		if len(stack) == 0 {
			roots = append(roots, treeNode)
		} else {
			stack[len(stack)-1].node.AddChild(treeNode)
		}
		stack = append(stack, open{rgt: node.Rgt, node: treeNode})
	}

	return roots
}
