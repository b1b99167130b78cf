package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"
)

// Table names the node table a repository operates on, together with the
// owner table joined in for display metadata.
type Table struct {
	Name           string
	IDField        string
	OwnerTable     string
	OwnerKey       string
	OwnerNameField string
}

// NewTable returns a table joined to the default users table
func NewTable(name, idField string) Table {
	return Table{
		Name:           name,
		IDField:        idField,
		OwnerTable:     "users",
		OwnerKey:       "id",
		OwnerNameField: "username",
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks every identifier before it is interpolated into SQL
func (t Table) Validate() error {
	for _, ident := range []string{t.Name, t.IDField, t.OwnerTable, t.OwnerKey, t.OwnerNameField} {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}
	return nil
}

// Fields maps node columns to the values written by Insert and Update
type Fields map[string]any

// nodeColumns are the columns Fields may name
var nodeColumns = map[string]bool{
	"parent_id":      true,
	"root_id":        true,
	"lft":            true,
	"rgt":            true,
	"level":          true,
	"root_order":     true,
	"uid":            true,
	"name":           true,
	"is_user_folder": true,
}

// columns returns the field names in a stable order after checking each one
func (f Fields) columns() ([]string, error) {
	if len(f) == 0 {
		return nil, ErrInvalidInput
	}
	columns := make([]string, 0, len(f))
	for column := range f {
		if !nodeColumns[column] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns, nil
}

// Store owns a database handle and hands out table-scoped repositories
type Store interface {
	// Initialize opens the database, verifies the connection and applies
	// migrations. Returns an error if any step fails.
	Initialize(ctx context.Context) error

	// Cleanup releases the database handle.
	Cleanup(ctx context.Context) error

	// Repository returns the repository for one node table.
	// Returns ErrInvalidIdentifier if the table configuration is unsafe.
	Repository(table Table) (Repository, error)
}

// Repository is a table-scoped set of queries that can open transactions
type Repository interface {
	Queries

	// Begin starts a transaction. Every write of a multi-step tree mutation
	// goes through the returned Tx.
	Begin(ctx context.Context) (Tx, error)
}

// Tx runs queries inside one database transaction
type Tx interface {
	Queries
	Commit() error
	Rollback() error
}

// Queries defines the parameterized operations over a nested-set table.
// Write operations return the number of affected rows; callers treat 0 as a
// failed step.
type Queries interface {
	// FindAllRootNodes returns the nodes with parent_id = 0 ordered by
	// root_order, each carrying its owner name and child count.
	FindAllRootNodes(ctx context.Context) ([]models.Node, error)

	// FindTreeByRootID returns every node of one tree ordered by lft.
	FindTreeByRootID(ctx context.Context, rootID int64) ([]models.Node, error)

	// FindNodeOwner returns a node together with its owner name.
	// Returns ErrNodeNotFound if no row matches.
	FindNodeOwner(ctx context.Context, nodeID int64) (*models.Node, error)

	// FindAllChildNodesByParentNode returns the direct children of a node.
	FindAllChildNodesByParentNode(ctx context.Context, parentID int64) ([]models.Node, error)

	// FindAllChildrenInTreeOfNodeID returns every descendant of a node.
	// Returns ErrNodeNotFound if the node does not exist.
	FindAllChildrenInTreeOfNodeID(ctx context.Context, nodeID int64) ([]models.Node, error)

	// FindRootIDRgtAndLevelByNodeID returns the {root_id, rgt, lft} projection of a node.
	// Returns ErrNodeNotFound if no row matches.
	FindRootIDRgtAndLevelByNodeID(ctx context.Context, nodeID int64) (*models.Position, error)

	// FindAllSubNodeIDsByRootIDAndPosition returns the ids of rows with
	// lft >= rgt and rgt <= lft in one tree. The parameter names are swapped
	// relative to the predicate: callers pass the lower bound as rgt and the
	// upper bound as lft.
	FindAllSubNodeIDsByRootIDAndPosition(ctx context.Context, rootID, rgt, lft int64) ([]int64, error)

	// Insert creates a row and returns its id.
	Insert(ctx context.Context, fields Fields) (int64, error)

	// Update writes fields to the row with the given id.
	Update(ctx context.Context, id int64, fields Fields) (int64, error)

	// Delete removes the row with the given id.
	Delete(ctx context.Context, id int64) (int64, error)

	// MoveSubTree shifts the moved subtree by calc.Distance, adjusts levels by
	// diffLevel and assigns the target's root_id. Rows are selected in the
	// moved node's tree by the window [calc.TmpPos, calc.TmpPos+calc.Width).
	MoveSubTree(ctx context.Context, moved, target models.Node, calc calculator.MoveCalculation, diffLevel int64) (int64, error)

	// MoveNodesToRightForInsert adds width to lft of rows with lft >= position.
	MoveNodesToRightForInsert(ctx context.Context, rootID, position, width int64) (int64, error)

	// MoveNodesToLeftForInsert adds width to rgt of rows with rgt >= position.
	MoveNodesToLeftForInsert(ctx context.Context, rootID, position, width int64) (int64, error)

	// MoveNodesToLeftForDeletion subtracts width from lft of rows with lft > position.
	MoveNodesToLeftForDeletion(ctx context.Context, rootID, position, width int64) (int64, error)

	// MoveNodesToRightForDeletion subtracts width from rgt of rows with rgt > position.
	MoveNodesToRightForDeletion(ctx context.Context, rootID, position, width int64) (int64, error)

	// DeleteFullTree deletes rows of one tree with lft between lft and rgt.
	DeleteFullTree(ctx context.Context, rootID, rgt, lft int64) (int64, error)
}

// Common errors
var (
	// ErrNodeNotFound is returned when a requested node does not exist
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownField is returned when Fields names a column outside the node schema
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidIdentifier is returned when a table or column name is unsafe
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotInitialized is returned when a store is used before Initialize
	ErrNotInitialized = errors.New("store not initialized")
)
