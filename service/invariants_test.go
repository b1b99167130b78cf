package service

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"
	"github.com/ammiranda/nestedset_service/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupSQLiteService(t *testing.T) *TreeService {
	t.Helper()
	store := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "tree.db"))
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { store.Cleanup(context.Background()) })

	svc, err := InitRepository(store, "folders", "node_id", zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

// assertValidTree checks the nested-set invariants of one tree: every row
// has an interval of even width, lft and rgt values are exactly 1..2n,
// children lie strictly inside their parent one level deeper, and siblings
// do not overlap.
func assertValidTree(t *testing.T, svc *TreeService, rootID int64) []models.Node {
	t.Helper()
	nodes, err := svc.FindTreeByRootID(context.Background(), rootID)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	byID := make(map[int64]models.Node, len(nodes))
	var bounds []int64
	for _, node := range nodes {
		byID[node.ID] = node
		bounds = append(bounds, node.Lft, node.Rgt)
		assert.Greater(t, node.Rgt, node.Lft, node.Name)
		assert.Zero(t, node.Width()%2, node.Name)
	}

	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
	for i, bound := range bounds {
		assert.Equal(t, int64(i+1), bound, "bounds must be contiguous")
	}

	siblings := make(map[int64][]models.Node)
	for _, node := range nodes {
		if node.ID == rootID {
			assert.Equal(t, int64(1), node.Lft)
			assert.Equal(t, int64(1), node.Level)
			continue
		}
		parent, ok := byID[node.ParentID]
		if assert.True(t, ok, "parent of %s in tree", node.Name) {
			assert.Less(t, parent.Lft, node.Lft, node.Name)
			assert.Less(t, node.Rgt, parent.Rgt, node.Name)
			assert.Equal(t, parent.Level+1, node.Level, node.Name)
		}
		siblings[node.ParentID] = append(siblings[node.ParentID], node)
	}

	for _, group := range siblings {
		for i := 1; i < len(group); i++ {
			assert.Less(t, group[i-1].Rgt, group[i].Lft, "siblings overlap")
		}
	}
	return nodes
}

func names(nodes []models.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.Name)
	}
	return out
}

func TestTreeInvariantsOnSQLite(t *testing.T) {
	svc := setupSQLiteService(t)
	ctx := context.Background()

	node := func(id int64) models.Node {
		t.Helper()
		n, err := svc.FindNodeOwner(ctx, id)
		require.NoError(t, err)
		return *n
	}
	add := func(parentID int64, name string) int64 {
		t.Helper()
		result := svc.AddSubNode(ctx, 1, name, node(parentID))
		require.False(t, result.HasErrorMessages(), result.ErrorMessages())
		return result.Value
	}
	move := func(movedID, targetID int64, region calculator.Region) {
		t.Helper()
		moved := node(movedID)
		width := moved.Width()
		result, err := svc.MoveNode(ctx, moved, node(targetID), region)
		require.NoError(t, err)
		require.False(t, result.HasErrorMessages(), result.ErrorMessages())
		assert.Equal(t, width, node(movedID).Width())
	}

	rootResult := svc.AddRootNode(ctx, 1, "root", true)
	require.False(t, rootResult.HasErrorMessages())
	root := rootResult.Value

	a := add(root, "a")
	b := add(root, "b")
	a1 := add(a, "a1")
	a2 := add(a, "a2")
	c := add(root, "c")
	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "c"}, names(assertValidTree(t, svc, root)))

	move(a, b, calculator.AppendChild)
	assert.Equal(t, []string{"root", "b", "a", "a1", "a2", "c"}, names(assertValidTree(t, svc, root)))
	assert.Equal(t, b, node(a).ParentID)
	assert.Equal(t, int64(4), node(a1).Level)

	move(a, b, calculator.Before)
	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "c"}, names(assertValidTree(t, svc, root)))
	assert.Equal(t, root, node(a).ParentID)

	move(a2, a1, calculator.Before)
	move(c, a, calculator.Before)
	assert.Equal(t, []string{"root", "c", "a", "a2", "a1", "b"}, names(assertValidTree(t, svc, root)))

	move(a1, c, calculator.AppendChild)
	assert.Equal(t, []string{"root", "c", "a1", "a", "a2", "b"}, names(assertValidTree(t, svc, root)))

	before, err := svc.FindTreeByRootID(ctx, root)
	require.NoError(t, err)

	otherResult := svc.AddRootNode(ctx, 2, "other", false)
	require.False(t, otherResult.HasErrorMessages())
	other := otherResult.Value

	move(a, other, calculator.AppendChild)
	moved := assertValidTree(t, svc, other)
	assert.Equal(t, []string{"other", "a", "a2"}, names(moved))
	for _, n := range moved {
		assert.Equal(t, other, n.RootID)
	}
	remaining := assertValidTree(t, svc, root)
	assert.Equal(t, []string{"root", "c", "a1", "b"}, names(remaining))
	assert.Equal(t, len(before), len(remaining)+len(moved)-1)

	roots, err := svc.FindAllRootNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "other"}, names(roots))
	assert.True(t, roots[0].IsUserFolder)

	deleted := svc.DeleteSingleNode(ctx, node(a1))
	require.False(t, deleted.HasErrorMessages(), deleted.ErrorMessages())
	assert.Equal(t, []string{"root", "c", "b"}, names(assertValidTree(t, svc, root)))

	hasChildren := svc.DeleteSingleNode(ctx, node(a))
	assert.Equal(t, []string{MsgNodeHasChildren}, hasChildren.ErrorMessages())

	deleted = svc.DeleteTree(ctx, node(a))
	require.False(t, deleted.HasErrorMessages(), deleted.ErrorMessages())
	assert.Equal(t, []string{"other"}, names(assertValidTree(t, svc, other)))

	_, err = svc.FindNodeOwner(ctx, a2)
	assert.ErrorIs(t, err, repository.ErrNodeNotFound)
}

func TestMoveFailureLeavesSQLiteTreeUntouched(t *testing.T) {
	svc := setupSQLiteService(t)
	ctx := context.Background()

	root := svc.AddRootNode(ctx, 1, "root", false).Value
	rootNode, err := svc.FindNodeOwner(ctx, root)
	require.NoError(t, err)
	child := svc.AddSubNode(ctx, 1, "child", *rootNode).Value

	before, err := svc.FindTreeByRootID(ctx, root)
	require.NoError(t, err)

	// A stale copy of the child whose interval no longer matches any row
	stale := models.Node{ID: child, ParentID: root, RootID: root, Lft: 20, Rgt: 21, Level: 2, Name: "child"}
	target := models.Node{ID: root, RootID: root, Lft: 1, Rgt: 4, Level: 1, Name: "root"}

	result, err := svc.MoveNode(ctx, stale, target, calculator.AppendChild)
	require.NoError(t, err)
	assert.Equal(t, []string{"child cannot be moved via appendChild of root"}, result.ErrorMessages())

	after, err := svc.FindTreeByRootID(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteTreeWithStaleNodeKeepsSiblings(t *testing.T) {
	svc := setupSQLiteService(t)
	ctx := context.Background()

	root := svc.AddRootNode(ctx, 1, "root", false).Value
	rootNode, err := svc.FindNodeOwner(ctx, root)
	require.NoError(t, err)
	a := svc.AddSubNode(ctx, 1, "a", *rootNode).Value
	aNode, err := svc.FindNodeOwner(ctx, a)
	require.NoError(t, err)
	require.False(t, svc.AddSubNode(ctx, 1, "a1", *aNode).HasErrorMessages())
	rootNode, err = svc.FindNodeOwner(ctx, root)
	require.NoError(t, err)
	require.False(t, svc.AddSubNode(ctx, 1, "b", *rootNode).HasErrorMessages())

	staleA, err := svc.FindNodeOwner(ctx, a)
	require.NoError(t, err)

	deleted := svc.DeleteTree(ctx, *staleA)
	require.False(t, deleted.HasErrorMessages(), deleted.ErrorMessages())
	assert.Equal(t, []string{"root", "b"}, names(assertValidTree(t, svc, root)))

	// The old interval of a now covers b alone
	again := svc.DeleteTree(ctx, *staleA)
	assert.Equal(t, []string{MsgNodeNotExists}, again.ErrorMessages())
	assert.Equal(t, []string{"root", "b"}, names(assertValidTree(t, svc, root)))
}
