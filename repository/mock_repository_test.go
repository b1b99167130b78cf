package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/ammiranda/nestedset_service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRepositoryRollbackRestoresRows(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	repo.Seed(
		models.Node{ID: 1, RootID: 1, Lft: 1, Rgt: 4, Level: 1, Name: "root"},
		models.Node{ID: 2, ParentID: 1, RootID: 1, Lft: 2, Rgt: 3, Level: 2, Name: "child"},
	)

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)

	rows, err := tx.Delete(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	id, err := tx.Insert(ctx, Fields{"name": "extra", "lft": int64(5), "rgt": int64(6)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	require.NoError(t, tx.Rollback())
	assert.Len(t, repo.Nodes(), 2)
	assert.ErrorIs(t, tx.Commit(), sql.ErrTxDone)

	// Ids are reused after a rollback, as with a sequence reset
	id, err = repo.Insert(ctx, Fields{"name": "again", "lft": int64(5), "rgt": int64(6)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	begins, commits, rollbacks := repo.TxCounts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)
}

func TestMockRepositoryForcedOutcomes(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	repo.Seed(models.Node{ID: 1, RootID: 1, Lft: 1, Rgt: 2, Level: 1, Name: "root"})

	repo.ForceResult("Update", 0)
	rows, err := repo.Update(ctx, 1, Fields{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	node, err := repo.FindNodeOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "root", node.Name)

	boom := errors.New("boom")
	repo.ForceError("Begin", boom)
	_, err = repo.Begin(ctx)
	assert.ErrorIs(t, err, boom)

	repo.ForceError("FindTreeByRootID", boom)
	_, err = repo.FindTreeByRootID(ctx, 1)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, repo.CallsTo("Update"), 1)
	assert.Equal(t, []any{int64(1), Fields{"name": "renamed"}}, repo.CallsTo("Update")[0].Args)

	repo.Reset()
	assert.Empty(t, repo.Nodes())
	assert.Empty(t, repo.Calls())
}

func TestMockRepositoryCommitFailureRestores(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	repo.Seed(models.Node{ID: 1, RootID: 1, Lft: 1, Rgt: 2, Level: 1, Name: "root"})
	repo.ForceError("Commit", errors.New("commit failed"))

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Error(t, tx.Commit())
	assert.Len(t, repo.Nodes(), 1)
}

func TestMockRepositoryDisplayFields(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	repo.AddOwner(7, "alice")
	repo.Seed(
		models.Node{ID: 1, RootID: 1, Lft: 1, Rgt: 6, Level: 1, OwnerID: 7, Name: "root"},
		models.Node{ID: 2, ParentID: 1, RootID: 1, Lft: 2, Rgt: 5, Level: 2, Name: "a"},
		models.Node{ID: 3, ParentID: 2, RootID: 1, Lft: 3, Rgt: 4, Level: 3, Name: "a1"},
	)

	roots, err := repo.FindAllRootNodes(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "alice", roots[0].OwnerName)
	assert.Equal(t, int64(2), roots[0].ChildCount)

	descendants, err := repo.FindAllChildrenInTreeOfNodeID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, descendants, 2)

	rows, err := repo.DeleteFullTree(ctx, 1, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
}

func TestMockStoreTables(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Initialize(context.Background()))

	folders, err := store.Table(NewTable("folders", "node_id"))
	require.NoError(t, err)
	again, err := store.Repository(NewTable("folders", "node_id"))
	require.NoError(t, err)
	assert.Same(t, folders, again)

	media, err := store.Table(NewTable("media_folders", "node_id"))
	require.NoError(t, err)
	assert.NotSame(t, folders, media)

	_, err = store.Repository(NewTable("bad name", "node_id"))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
