package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLRepository(db, "postgres", NewTable("folders", "node_id"))
	require.NoError(t, err)
	return repo, mock
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", postgresDialect.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", sqliteDialect.rebind("a = ? AND b = ?"))

	_, err := dialectFor("mysql")
	assert.Error(t, err)
}

func TestPostgresShiftStatements(t *testing.T) {
	repo, mock := setupSQLMock(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		run   func() (int64, error)
	}{
		{
			name:  "right for insert",
			query: "UPDATE folders SET lft = lft + $1 WHERE root_id = $2 AND lft >= $3",
			run:   func() (int64, error) { return repo.MoveNodesToRightForInsert(ctx, 1, 10, 4) },
		},
		{
			name:  "left for insert",
			query: "UPDATE folders SET rgt = rgt + $1 WHERE root_id = $2 AND rgt >= $3",
			run:   func() (int64, error) { return repo.MoveNodesToLeftForInsert(ctx, 1, 10, 4) },
		},
		{
			name:  "left for deletion",
			query: "UPDATE folders SET lft = lft - $1 WHERE root_id = $2 AND lft > $3",
			run:   func() (int64, error) { return repo.MoveNodesToLeftForDeletion(ctx, 1, 10, 4) },
		},
		{
			name:  "right for deletion",
			query: "UPDATE folders SET rgt = rgt - $1 WHERE root_id = $2 AND rgt > $3",
			run:   func() (int64, error) { return repo.MoveNodesToRightForDeletion(ctx, 1, 10, 4) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec(regexp.QuoteMeta(tt.query)).
				WithArgs(int64(4), int64(1), int64(10)).
				WillReturnResult(sqlmock.NewResult(0, 3))

			rows, err := tt.run()
			require.NoError(t, err)
			assert.Equal(t, int64(3), rows)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresMoveSubTree(t *testing.T) {
	repo, mock := setupSQLMock(t)

	moved := models.Node{ID: 5, RootID: 1, Lft: 7, Rgt: 10}
	target := models.Node{ID: 9, RootID: 2, Lft: 3, Rgt: 4}
	calc := calculator.MoveCalculation{Distance: -5, TmpPos: 7, Width: 4}

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE folders SET lft = lft + $1, rgt = rgt + $2, level = level + $3, root_id = $4 "+
			"WHERE root_id = $5 AND lft >= $6 AND rgt < $7",
	)).
		WithArgs(int64(-5), int64(-5), int64(1), int64(2), int64(1), int64(7), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows, err := repo.MoveSubTree(context.Background(), moved, target, calc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteFullTreeArgumentOrder(t *testing.T) {
	repo, mock := setupSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE root_id = $1 AND lft BETWEEN $2 AND $3")).
		WithArgs(int64(1), int64(4), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	rows, err := repo.DeleteFullTree(context.Background(), 1, 9, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindAllSubNodeIDs(t *testing.T) {
	repo, mock := setupSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT node_id FROM folders WHERE root_id = $1 AND lft >= $2 AND rgt <= $3")).
		WithArgs(int64(1), int64(10), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"node_id"}).AddRow(int64(3)).AddRow(int64(4)))

	ids, err := repo.FindAllSubNodeIDsByRootIDAndPosition(context.Background(), 1, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertReturning(t *testing.T) {
	repo, mock := setupSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO folders (level, lft, name, parent_id, rgt) VALUES ($1, $2, $3, $4, $5) RETURNING node_id",
	)).
		WithArgs(int64(1), int64(1), "Docs", int64(0), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"node_id"}).AddRow(int64(42)))

	id, err := repo.Insert(context.Background(), Fields{
		"name": "Docs", "parent_id": int64(0), "lft": int64(1), "rgt": int64(2), "level": int64(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate(t *testing.T) {
	repo, mock := setupSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET root_id = $1, root_order = $2 WHERE node_id = $3")).
		WithArgs(int64(42), int64(42), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.Update(context.Background(), 42, Fields{"root_id": int64(42), "root_order": int64(42)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindNodeOwner(t *testing.T) {
	repo, mock := setupSQLMock(t)
	columns := []string{"node_id", "parent_id", "root_id", "lft", "rgt", "level", "root_order", "uid", "name", "is_user_folder", "username", "children"}

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users u ON u.id = n.uid WHERE n.node_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(7), int64(1), int64(1), int64(2), int64(5), int64(2), int64(0), int64(3), "Photos", false, "alice", int64(1)))

	node, err := repo.FindNodeOwner(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Photos", node.Name)
	assert.Equal(t, "alice", node.OwnerName)
	assert.Equal(t, int64(1), node.ChildCount)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE n.node_id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err = repo.FindNodeOwner(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecError(t *testing.T) {
	repo, mock := setupSQLMock(t)
	dbErr := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE node_id = $1")).
		WithArgs(int64(3)).
		WillReturnError(dbErr)

	_, err := repo.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "error deleting node")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransaction(t *testing.T) {
	repo, mock := setupSQLMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE node_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Delete(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
