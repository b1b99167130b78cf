package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"
)

// dialect captures the SQL differences between the supported drivers
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// INSERT ... RETURNING instead of LastInsertId
	returning bool
}

var (
	postgresDialect = dialect{name: "postgres", numbered: true, returning: true}
	sqliteDialect   = dialect{name: "sqlite3"}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case postgresDialect.name:
		return postgresDialect, nil
	case sqliteDialect.name:
		return sqliteDialect, nil
	}
	return dialect{}, fmt.Errorf("unsupported driver %q", driver)
}

// rebind rewrites ? placeholders into the dialect's form
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlQueries implements Queries for one table over a connection or transaction
type sqlQueries struct {
	conn    dbtx
	table   Table
	dialect dialect

	selectNodes string
}

func newSQLQueries(conn dbtx, table Table, d dialect) *sqlQueries {
	selectNodes := fmt.Sprintf(
		"SELECT n.%[1]s, n.parent_id, n.root_id, n.lft, n.rgt, n.level, n.root_order, n.uid, n.name, n.is_user_folder, "+
			"COALESCE(u.%[4]s, ''), (n.rgt - n.lft) / 2 "+
			"FROM %[2]s n LEFT JOIN %[3]s u ON u.%[5]s = n.uid",
		table.IDField, table.Name, table.OwnerTable, table.OwnerNameField, table.OwnerKey,
	)
	return &sqlQueries{
		conn:        conn,
		table:       table,
		dialect:     d,
		selectNodes: selectNodes,
	}
}

// SQLRepository implements Repository on a database/sql connection pool
type SQLRepository struct {
	*sqlQueries
	db *sql.DB
}

// NewSQLRepository creates a repository for table on an open database
func NewSQLRepository(db *sql.DB, driver string, table Table) (*SQLRepository, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLRepository{
		sqlQueries: newSQLQueries(db, table, d),
		db:         db,
	}, nil
}

// Begin starts a transaction whose queries are scoped to the same table
func (r *SQLRepository) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	return &sqlTx{
		sqlQueries: newSQLQueries(tx, r.table, r.dialect),
		tx:         tx,
	}, nil
}

type sqlTx struct {
	*sqlQueries
	tx *sql.Tx
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

// FindAllRootNodes returns the root nodes ordered by root_order
func (q *sqlQueries) FindAllRootNodes(ctx context.Context) ([]models.Node, error) {
	return q.queryNodes(ctx, q.selectNodes+" WHERE n.parent_id = 0 ORDER BY n.root_order ASC")
}

// FindTreeByRootID returns one tree ordered by lft
func (q *sqlQueries) FindTreeByRootID(ctx context.Context, rootID int64) ([]models.Node, error) {
	return q.queryNodes(ctx, q.selectNodes+" WHERE n.root_id = ? ORDER BY n.lft ASC", rootID)
}

// FindNodeOwner returns a node with its owner name
func (q *sqlQueries) FindNodeOwner(ctx context.Context, nodeID int64) (*models.Node, error) {
	query := q.selectNodes + fmt.Sprintf(" WHERE n.%s = ?", q.table.IDField)
	node, err := scanNode(q.conn.QueryRowContext(ctx, q.dialect.rebind(query), nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting node: %w", err)
	}
	return &node, nil
}

// FindAllChildNodesByParentNode returns the direct children of parentID
func (q *sqlQueries) FindAllChildNodesByParentNode(ctx context.Context, parentID int64) ([]models.Node, error) {
	return q.queryNodes(ctx, q.selectNodes+" WHERE n.parent_id = ? ORDER BY n.lft ASC", parentID)
}

// FindAllChildrenInTreeOfNodeID returns every descendant of nodeID
func (q *sqlQueries) FindAllChildrenInTreeOfNodeID(ctx context.Context, nodeID int64) ([]models.Node, error) {
	position, err := q.FindRootIDRgtAndLevelByNodeID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return q.queryNodes(ctx,
		q.selectNodes+" WHERE n.root_id = ? AND n.lft > ? AND n.rgt < ? ORDER BY n.lft ASC",
		position.RootID, position.Lft, position.Rgt,
	)
}

// FindRootIDRgtAndLevelByNodeID returns the {root_id, rgt, lft} projection of nodeID
func (q *sqlQueries) FindRootIDRgtAndLevelByNodeID(ctx context.Context, nodeID int64) (*models.Position, error) {
	query := fmt.Sprintf("SELECT root_id, rgt, lft FROM %s WHERE %s = ?", q.table.Name, q.table.IDField)

	var position models.Position
	err := q.conn.QueryRowContext(ctx, q.dialect.rebind(query), nodeID).
		Scan(&position.RootID, &position.Rgt, &position.Lft)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting node position: %w", err)
	}
	return &position, nil
}

// FindAllSubNodeIDsByRootIDAndPosition returns ids with lft >= rgt and rgt <= lft
func (q *sqlQueries) FindAllSubNodeIDsByRootIDAndPosition(ctx context.Context, rootID, rgt, lft int64) ([]int64, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE root_id = ? AND lft >= ? AND rgt <= ?",
		q.table.IDField, q.table.Name,
	)
	rows, err := q.conn.QueryContext(ctx, q.dialect.rebind(query), rootID, rgt, lft)
	if err != nil {
		return nil, fmt.Errorf("error getting sub node ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning sub node id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sub node ids: %w", err)
	}
	return ids, nil
}

// Insert creates a node row and returns its id
func (q *sqlQueries) Insert(ctx context.Context, fields Fields) (int64, error) {
	columns, err := fields.columns()
	if err != nil {
		return 0, err
	}

	args := make([]any, len(columns))
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		args[i] = fields[column]
		placeholders[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		q.table.Name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if q.dialect.returning {
		var id int64
		query += " RETURNING " + q.table.IDField
		if err := q.conn.QueryRowContext(ctx, q.dialect.rebind(query), args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("error creating node: %w", err)
		}
		return id, nil
	}

	result, err := q.conn.ExecContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("error creating node: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting inserted id: %w", err)
	}
	return id, nil
}

// Update writes fields to the node with the given id
func (q *sqlQueries) Update(ctx context.Context, id int64, fields Fields) (int64, error) {
	columns, err := fields.columns()
	if err != nil {
		return 0, err
	}

	args := make([]any, 0, len(columns)+1)
	assignments := make([]string, len(columns))
	for i, column := range columns {
		assignments[i] = column + " = ?"
		args = append(args, fields[column])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		q.table.Name, strings.Join(assignments, ", "), q.table.IDField)
	return q.exec(ctx, "updating node", query, args...)
}

// Delete removes the node with the given id
func (q *sqlQueries) Delete(ctx context.Context, id int64) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", q.table.Name, q.table.IDField)
	return q.exec(ctx, "deleting node", query, id)
}

// MoveSubTree relocates the rows inside the calculated window
func (q *sqlQueries) MoveSubTree(ctx context.Context, moved, target models.Node, calc calculator.MoveCalculation, diffLevel int64) (int64, error) {
	query := fmt.Sprintf(
		"UPDATE %s SET lft = lft + ?, rgt = rgt + ?, level = level + ?, root_id = ? "+
			"WHERE root_id = ? AND lft >= ? AND rgt < ?",
		q.table.Name,
	)
	return q.exec(ctx, "moving sub tree", query,
		calc.Distance, calc.Distance, diffLevel, target.RootID,
		moved.RootID, calc.TmpPos, calc.TmpPos+calc.Width,
	)
}

// MoveNodesToRightForInsert opens room by shifting lft at or after position
func (q *sqlQueries) MoveNodesToRightForInsert(ctx context.Context, rootID, position, width int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET lft = lft + ? WHERE root_id = ? AND lft >= ?", q.table.Name)
	return q.exec(ctx, "shifting lft for insert", query, width, rootID, position)
}

// MoveNodesToLeftForInsert opens room by shifting rgt at or after position
func (q *sqlQueries) MoveNodesToLeftForInsert(ctx context.Context, rootID, position, width int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET rgt = rgt + ? WHERE root_id = ? AND rgt >= ?", q.table.Name)
	return q.exec(ctx, "shifting rgt for insert", query, width, rootID, position)
}

// MoveNodesToLeftForDeletion closes a gap by shifting lft after position
func (q *sqlQueries) MoveNodesToLeftForDeletion(ctx context.Context, rootID, position, width int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET lft = lft - ? WHERE root_id = ? AND lft > ?", q.table.Name)
	return q.exec(ctx, "shifting lft for deletion", query, width, rootID, position)
}

// MoveNodesToRightForDeletion closes a gap by shifting rgt after position
func (q *sqlQueries) MoveNodesToRightForDeletion(ctx context.Context, rootID, position, width int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET rgt = rgt - ? WHERE root_id = ? AND rgt > ?", q.table.Name)
	return q.exec(ctx, "shifting rgt for deletion", query, width, rootID, position)
}

// DeleteFullTree deletes a subtree range
func (q *sqlQueries) DeleteFullTree(ctx context.Context, rootID, rgt, lft int64) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE root_id = ? AND lft BETWEEN ? AND ?", q.table.Name)
	return q.exec(ctx, "deleting tree", query, rootID, lft, rgt)
}

// exec runs a write statement and returns the number of affected rows
func (q *sqlQueries) exec(ctx context.Context, action, query string, args ...any) (int64, error) {
	result, err := q.conn.ExecContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("error %s: %w", action, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %w", err)
	}
	return rows, nil
}

func (q *sqlQueries) queryNodes(ctx context.Context, query string, args ...any) ([]models.Node, error) {
	rows, err := q.conn.QueryContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error getting nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]models.Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning node: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (models.Node, error) {
	var node models.Node
	err := row.Scan(
		&node.ID, &node.ParentID, &node.RootID, &node.Lft, &node.Rgt, &node.Level,
		&node.RootOrder, &node.OwnerID, &node.Name, &node.IsUserFolder,
		&node.OwnerName, &node.ChildCount,
	)
	return node, err
}
