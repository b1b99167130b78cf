package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ammiranda/nestedset_service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := run(t, dbPath, args...)
	require.NoError(t, err, out)
	return out
}

func TestTreeLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")

	assert.Equal(t, "created root 1\n", mustRun(t, db, "add-root", "docs", "--owner", "7"))
	assert.Equal(t, "created node 2 under 1\n", mustRun(t, db, "add", "1", "a"))
	mustRun(t, db, "add", "1", "b")
	mustRun(t, db, "add", "2", "a1")

	out := mustRun(t, db, "show", "1")
	assert.Contains(t, out, "docs #1 [1,8]")
	assert.Contains(t, out, "a #2 [2,5]")
	assert.Contains(t, out, "a1 #4 [3,4]")
	assert.Contains(t, out, "b #3 [6,7]")

	out = mustRun(t, db, "roots")
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "4")

	assert.Equal(t, "moved 3 before 2\n", mustRun(t, db, "move", "3", "2", "--region", "before"))
	out = mustRun(t, db, "show", "1")
	assert.Contains(t, out, "b #3 [2,3]")
	assert.Contains(t, out, "a #2 [4,7]")
	assert.Contains(t, out, "a1 #4 [5,6]")

	_, err := run(t, db, "rm", "2")
	assert.EqualError(t, err, "Node has children.")

	assert.Equal(t, "deleted 2 node(s)\n", mustRun(t, db, "rm", "2", "--recursive"))
	out = mustRun(t, db, "show", "1")
	assert.Contains(t, out, "docs #1 [1,4]")
	assert.NotContains(t, out, "a1")
}

func TestMoveRejections(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")
	mustRun(t, db, "add-root", "docs")
	mustRun(t, db, "add", "1", "a")

	_, err := run(t, db, "move", "2", "1", "--region", "inside")
	assert.EqualError(t, err, "Unknown region: inside")

	_, err = run(t, db, "move", "1", "2")
	assert.Error(t, err)

	_, err = run(t, db, "move", "2", "9")
	assert.Error(t, err)
}

func TestArgumentErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")

	_, err := run(t, db, "show", "zero")
	assert.EqualError(t, err, `invalid node id "zero"`)

	_, err = run(t, db, "show", "1")
	assert.EqualError(t, err, "tree 1 not found")

	_, err = run(t, db, "roots", "--table", "folders;drop")
	assert.Error(t, err)

	_, err = run(t, db, "add-root", "docs", "--owner", "0")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")
	assert.Equal(t, "schema version 2\n", mustRun(t, db, "migrate"))
}

func TestSecondTable(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tree.db")
	mustRun(t, db, "add-root", "photos", "--table", "media_folders")

	out := mustRun(t, db, "roots", "--table", "media_folders")
	assert.Contains(t, out, "photos")
	out = mustRun(t, db, "roots")
	assert.NotContains(t, out, "photos")
}

func TestRenderTree(t *testing.T) {
	out := renderTree([]models.Node{
		{ID: 1, Name: "root", Lft: 1, Rgt: 6},
		{ID: 2, Name: "a", Lft: 2, Rgt: 5},
		{ID: 3, Name: "a1", Lft: 3, Rgt: 4},
	})
	assert.Equal(t, "root #1 [1,6]\n└── a #2 [2,5]\n    └── a1 #3 [3,4]\n", out)
}
