package main

import (
	"fmt"

	"github.com/ammiranda/nestedset_service/models"

	"github.com/xlab/treeprint"
)

// renderTree draws a lft-ordered tree with each node's interval
func renderTree(nodes []models.Node) string {
	byID := make(map[int64]models.Node, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	root := models.BuildTree(nodes)[0]
	tree := treeprint.NewWithRoot(label(byID[root.ID]))
	addChildren(tree, root, byID)
	return tree.String()
}

func addChildren(branch treeprint.Tree, parent *models.TreeNode, byID map[int64]models.Node) {
	for _, child := range parent.Children {
		if len(child.Children) == 0 {
			branch.AddNode(label(byID[child.ID]))
			continue
		}
		addChildren(branch.AddBranch(label(byID[child.ID])), child, byID)
	}
}

func label(node models.Node) string {
	return fmt.Sprintf("%s #%d [%d,%d]", node.Name, node.ID, node.Lft, node.Rgt)
}
