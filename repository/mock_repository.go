package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"
)

// Call records one invocation on a MockRepository
type Call struct {
	Method string
	Args   []any
}

// MockRepository implements Repository in memory for testing. Transactions
// snapshot the rows on Begin and restore them on Rollback. Results and
// errors of individual methods can be forced to exercise failure paths.
type MockRepository struct {
	mu     sync.Mutex
	nodes  map[int64]models.Node
	owners map[int64]string
	nextID int64

	snapshot       map[int64]models.Node
	snapshotNextID int64

	calls         []Call
	forcedResults map[string]int64
	forcedErrors  map[string]error

	begins    int
	commits   int
	rollbacks int
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		nodes:         make(map[int64]models.Node),
		owners:        make(map[int64]string),
		forcedResults: make(map[string]int64),
		forcedErrors:  make(map[string]error),
	}
}

// ForceResult makes method return rows (or the id, for Insert) without touching state
func (m *MockRepository) ForceResult(method string, rows int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedResults[method] = rows
}

// ForceError makes method fail with err. "Begin" and "Commit" are accepted too.
func (m *MockRepository) ForceError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedErrors[method] = err
}

// AddOwner registers a display name for an owner id
func (m *MockRepository) AddOwner(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[id] = name
}

// Seed stores nodes as they are, keeping their ids
func (m *MockRepository) Seed(nodes ...models.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range nodes {
		m.nodes[node.ID] = node
		if node.ID > m.nextID {
			m.nextID = node.ID
		}
	}
}

// Nodes returns every stored node ordered by root_id, then lft
func (m *MockRepository) Nodes() []models.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(func(models.Node) bool { return true })
}

// Calls returns every recorded call in order
func (m *MockRepository) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls of one method
func (m *MockRepository) CallsTo(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []Call
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// TxCounts returns how many transactions were begun, committed and rolled back
func (m *MockRepository) TxCounts() (begins, commits, rollbacks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begins, m.commits, m.rollbacks
}

// Reset clears rows, calls, counters and forced behavior
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[int64]models.Node)
	m.owners = make(map[int64]string)
	m.nextID = 0
	m.snapshot = nil
	m.calls = nil
	m.forcedResults = make(map[string]int64)
	m.forcedErrors = make(map[string]error)
	m.begins, m.commits, m.rollbacks = 0, 0, 0
}

// Begin snapshots the rows until Commit or Rollback
func (m *MockRepository) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Begin"})
	if err := m.forcedErrors["Begin"]; err != nil {
		return nil, err
	}

	m.begins++
	m.snapshot = make(map[int64]models.Node, len(m.nodes))
	for id, node := range m.nodes {
		m.snapshot[id] = node
	}
	m.snapshotNextID = m.nextID
	return &mockTx{MockRepository: m}, nil
}

type mockTx struct {
	*MockRepository
	done bool
}

func (t *mockTx) Commit() error {
	m := t.MockRepository
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Commit"})
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := m.forcedErrors["Commit"]; err != nil {
		m.restoreLocked()
		return err
	}
	m.commits++
	m.snapshot = nil
	return nil
}

func (t *mockTx) Rollback() error {
	m := t.MockRepository
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Rollback"})
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	m.rollbacks++
	m.restoreLocked()
	return nil
}

func (m *MockRepository) restoreLocked() {
	if m.snapshot == nil {
		return
	}
	m.nodes = m.snapshot
	m.nextID = m.snapshotNextID
	m.snapshot = nil
}

// record logs a call and reports a forced outcome if one is configured
func (m *MockRepository) record(method string, args ...any) (rows int64, forced bool, err error) {
	m.calls = append(m.calls, Call{Method: method, Args: args})
	if err, ok := m.forcedErrors[method]; ok {
		return 0, true, err
	}
	if rows, ok := m.forcedResults[method]; ok {
		return rows, true, nil
	}
	return 0, false, nil
}

func (m *MockRepository) withDisplay(node models.Node) models.Node {
	node.OwnerName = m.owners[node.OwnerID]
	node.ChildCount = (node.Rgt - node.Lft) / 2
	return node
}

func (m *MockRepository) selectLocked(match func(models.Node) bool) []models.Node {
	nodes := make([]models.Node, 0)
	for _, node := range m.nodes {
		if match(node) {
			nodes = append(nodes, m.withDisplay(node))
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].RootID != nodes[j].RootID {
			return nodes[i].RootID < nodes[j].RootID
		}
		return nodes[i].Lft < nodes[j].Lft
	})
	return nodes
}

// updateLocked applies change to every matching row and counts them
func (m *MockRepository) updateLocked(match func(models.Node) bool, change func(*models.Node)) int64 {
	var affected int64
	for id, node := range m.nodes {
		if match(node) {
			change(&node)
			m.nodes[id] = node
			affected++
		}
	}
	return affected
}

// FindAllRootNodes returns root nodes ordered by root_order
func (m *MockRepository) FindAllRootNodes(ctx context.Context) ([]models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindAllRootNodes"); forced && err != nil {
		return nil, err
	}
	roots := m.selectLocked(func(n models.Node) bool { return n.ParentID == 0 })
	sort.SliceStable(roots, func(i, j int) bool { return roots[i].RootOrder < roots[j].RootOrder })
	return roots, nil
}

// FindTreeByRootID returns one tree ordered by lft
func (m *MockRepository) FindTreeByRootID(ctx context.Context, rootID int64) ([]models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindTreeByRootID", rootID); forced && err != nil {
		return nil, err
	}
	return m.selectLocked(func(n models.Node) bool { return n.RootID == rootID }), nil
}

// FindNodeOwner returns a node with its owner name
func (m *MockRepository) FindNodeOwner(ctx context.Context, nodeID int64) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindNodeOwner", nodeID); forced && err != nil {
		return nil, err
	}
	node, ok := m.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	node = m.withDisplay(node)
	return &node, nil
}

// FindAllChildNodesByParentNode returns the direct children of parentID
func (m *MockRepository) FindAllChildNodesByParentNode(ctx context.Context, parentID int64) ([]models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindAllChildNodesByParentNode", parentID); forced && err != nil {
		return nil, err
	}
	return m.selectLocked(func(n models.Node) bool { return n.ParentID == parentID }), nil
}

// FindAllChildrenInTreeOfNodeID returns every descendant of nodeID
func (m *MockRepository) FindAllChildrenInTreeOfNodeID(ctx context.Context, nodeID int64) ([]models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindAllChildrenInTreeOfNodeID", nodeID); forced && err != nil {
		return nil, err
	}
	parent, ok := m.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return m.selectLocked(func(n models.Node) bool {
		return n.RootID == parent.RootID && n.Lft > parent.Lft && n.Rgt < parent.Rgt
	}), nil
}

// FindRootIDRgtAndLevelByNodeID returns the {root_id, rgt, lft} projection of nodeID
func (m *MockRepository) FindRootIDRgtAndLevelByNodeID(ctx context.Context, nodeID int64) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindRootIDRgtAndLevelByNodeID", nodeID); forced && err != nil {
		return nil, err
	}
	node, ok := m.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return &models.Position{RootID: node.RootID, Rgt: node.Rgt, Lft: node.Lft}, nil
}

// FindAllSubNodeIDsByRootIDAndPosition returns ids with lft >= rgt and rgt <= lft
func (m *MockRepository) FindAllSubNodeIDsByRootIDAndPosition(ctx context.Context, rootID, rgt, lft int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, forced, err := m.record("FindAllSubNodeIDsByRootIDAndPosition", rootID, rgt, lft); forced && err != nil {
		return nil, err
	}
	nodes := m.selectLocked(func(n models.Node) bool {
		return n.RootID == rootID && n.Lft >= rgt && n.Rgt <= lft
	})
	ids := make([]int64, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}
	return ids, nil
}

// Insert creates a node and returns its id
func (m *MockRepository) Insert(ctx context.Context, fields Fields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, forced, err := m.record("Insert", fields); forced {
		return id, err
	}
	if _, err := fields.columns(); err != nil {
		return 0, err
	}

	m.nextID++
	node := models.Node{ID: m.nextID}
	applyFields(&node, fields)
	m.nodes[node.ID] = node
	return node.ID, nil
}

// Update writes fields to the node with the given id
func (m *MockRepository) Update(ctx context.Context, id int64, fields Fields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("Update", id, fields); forced {
		return rows, err
	}
	if _, err := fields.columns(); err != nil {
		return 0, err
	}

	node, ok := m.nodes[id]
	if !ok {
		return 0, nil
	}
	applyFields(&node, fields)
	m.nodes[id] = node
	return 1, nil
}

// Delete removes the node with the given id
func (m *MockRepository) Delete(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("Delete", id); forced {
		return rows, err
	}
	if _, ok := m.nodes[id]; !ok {
		return 0, nil
	}
	delete(m.nodes, id)
	return 1, nil
}

// MoveSubTree relocates the rows inside the calculated window
func (m *MockRepository) MoveSubTree(ctx context.Context, moved, target models.Node, calc calculator.MoveCalculation, diffLevel int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("MoveSubTree", moved, target, calc, diffLevel); forced {
		return rows, err
	}
	return m.updateLocked(
		func(n models.Node) bool {
			return n.RootID == moved.RootID && n.Lft >= calc.TmpPos && n.Rgt < calc.TmpPos+calc.Width
		},
		func(n *models.Node) {
			n.Lft += calc.Distance
			n.Rgt += calc.Distance
			n.Level += diffLevel
			n.RootID = target.RootID
		},
	), nil
}

// MoveNodesToRightForInsert adds width to lft at or after position
func (m *MockRepository) MoveNodesToRightForInsert(ctx context.Context, rootID, position, width int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("MoveNodesToRightForInsert", rootID, position, width); forced {
		return rows, err
	}
	return m.updateLocked(
		func(n models.Node) bool { return n.RootID == rootID && n.Lft >= position },
		func(n *models.Node) { n.Lft += width },
	), nil
}

// MoveNodesToLeftForInsert adds width to rgt at or after position
func (m *MockRepository) MoveNodesToLeftForInsert(ctx context.Context, rootID, position, width int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("MoveNodesToLeftForInsert", rootID, position, width); forced {
		return rows, err
	}
	return m.updateLocked(
		func(n models.Node) bool { return n.RootID == rootID && n.Rgt >= position },
		func(n *models.Node) { n.Rgt += width },
	), nil
}

// MoveNodesToLeftForDeletion subtracts width from lft after position
func (m *MockRepository) MoveNodesToLeftForDeletion(ctx context.Context, rootID, position, width int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("MoveNodesToLeftForDeletion", rootID, position, width); forced {
		return rows, err
	}
	return m.updateLocked(
		func(n models.Node) bool { return n.RootID == rootID && n.Lft > position },
		func(n *models.Node) { n.Lft -= width },
	), nil
}

// MoveNodesToRightForDeletion subtracts width from rgt after position
func (m *MockRepository) MoveNodesToRightForDeletion(ctx context.Context, rootID, position, width int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("MoveNodesToRightForDeletion", rootID, position, width); forced {
		return rows, err
	}
	return m.updateLocked(
		func(n models.Node) bool { return n.RootID == rootID && n.Rgt > position },
		func(n *models.Node) { n.Rgt -= width },
	), nil
}

// DeleteFullTree deletes rows of one tree with lft between lft and rgt
func (m *MockRepository) DeleteFullTree(ctx context.Context, rootID, rgt, lft int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, forced, err := m.record("DeleteFullTree", rootID, rgt, lft); forced {
		return rows, err
	}
	var affected int64
	for id, node := range m.nodes {
		if node.RootID == rootID && node.Lft >= lft && node.Lft <= rgt {
			delete(m.nodes, id)
			affected++
		}
	}
	return affected, nil
}

func applyFields(node *models.Node, fields Fields) {
	for column, value := range fields {
		switch column {
		case "parent_id":
			node.ParentID = toInt64(value)
		case "root_id":
			node.RootID = toInt64(value)
		case "lft":
			node.Lft = toInt64(value)
		case "rgt":
			node.Rgt = toInt64(value)
		case "level":
			node.Level = toInt64(value)
		case "root_order":
			node.RootOrder = toInt64(value)
		case "uid":
			node.OwnerID = toInt64(value)
		case "name":
			node.Name, _ = value.(string)
		case "is_user_folder":
			node.IsUserFolder, _ = value.(bool)
		}
	}
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return 0
}

// MockStore implements Store with one MockRepository per table name
type MockStore struct {
	mu           sync.Mutex
	repositories map[string]*MockRepository
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		repositories: make(map[string]*MockRepository),
	}
}

// Initialize performs any necessary setup
func (s *MockStore) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup drops every table
func (s *MockStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repositories = make(map[string]*MockRepository)
	return nil
}

// Repository returns the mock repository for table, creating it on first use
func (s *MockStore) Repository(table Table) (Repository, error) {
	return s.Table(table)
}

// Table is Repository with the concrete mock type, for assertions in tests
func (s *MockStore) Table(table Table) (*MockRepository, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repositories[table.Name]
	if !ok {
		repo = NewMockRepository()
		s.repositories[table.Name] = repo
	}
	return repo, nil
}
