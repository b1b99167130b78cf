// Package service runs nested-set tree mutations as single transactions.
//
// Every mutation begins a transaction, checks the outcome of each storage
// step and either commits or rolls back. Steps that affect no rows are soft
// failures: they are logged once, rolled back and reported through
// Result.ErrorMessages rather than returned as errors. Structural mistakes
// such as an unknown region or moving a node into itself are returned as
// errors before any transaction starts.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/models"
	"github.com/ammiranda/nestedset_service/repository"

	"go.uber.org/zap"
)

// Messages recorded for soft failures. Log based alerting matches on them.
const (
	MsgInsertRootFailed = "Add root node failed because of: Insert new node failed"
	MsgUpdateRootFailed = "Add root node failed because of: Update root node failed"
	MsgInsertSubFailed  = "Insert new sub node failed."
	MsgNodeNotExists    = "Node not exists."
	MsgNodeHasChildren  = "Node has children."
)

// ErrInvalidMove is returned when a move can not produce a valid tree
var ErrInvalidMove = errors.New("invalid move")

// TreeService orchestrates the operations on one tree table
type TreeService struct {
	repo   repository.Repository
	logger *zap.Logger
}

// InitRepository binds a service to the table and id column of one logical tree
func InitRepository(store repository.Store, table, idField string, logger *zap.Logger) (*TreeService, error) {
	repo, err := store.Repository(repository.NewTable(table, idField))
	if err != nil {
		return nil, fmt.Errorf("error initializing repository for %s: %w", table, err)
	}
	return NewTreeService(repo, logger), nil
}

// NewTreeService wraps an already bound repository
func NewTreeService(repo repository.Repository, logger *zap.Logger) *TreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeService{
		repo:   repo,
		logger: logger,
	}
}

// AddRootNode creates a single-node tree owned by ownerID and returns its id
func (s *TreeService) AddRootNode(ctx context.Context, ownerID int64, name string, isUserFolder bool) Result[int64] {
	var id int64
	err := s.transact(ctx, func(tx repository.Tx) error {
		newID, err := tx.Insert(ctx, repository.Fields{
			"parent_id":      int64(0),
			"root_order":     int64(0),
			"lft":            int64(1),
			"rgt":            int64(2),
			"level":          int64(1),
			"uid":            ownerID,
			"name":           name,
			"is_user_folder": isUserFolder,
		})
		if err != nil {
			return err
		}
		if newID == 0 {
			return errors.New(MsgInsertRootFailed)
		}

		rows, err := tx.Update(ctx, newID, repository.Fields{
			"root_id":    newID,
			"root_order": newID,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.New(MsgUpdateRootFailed)
		}

		id = newID
		return nil
	})
	if err != nil {
		return failed[int64](s, "AddRootNode", err)
	}
	return succeeded(id)
}

// AddSubNode appends a new last child to parent and returns its id.
// parent must reflect the stored row.
func (s *TreeService) AddSubNode(ctx context.Context, ownerID int64, name string, parent models.Node) Result[int64] {
	var id int64
	err := s.transact(ctx, func(tx repository.Tx) error {
		if _, err := tx.MoveNodesToRightForInsert(ctx, parent.RootID, parent.Rgt, 2); err != nil {
			return err
		}
		// The parent itself always matches, so no rows means it is gone
		rows, err := tx.MoveNodesToLeftForInsert(ctx, parent.RootID, parent.Rgt, 2)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.New(MsgInsertSubFailed)
		}

		newID, err := tx.Insert(ctx, repository.Fields{
			"parent_id":  parent.ID,
			"root_id":    parent.RootID,
			"root_order": int64(0),
			"lft":        parent.Rgt,
			"rgt":        parent.Rgt + 1,
			"level":      parent.Level + 1,
			"uid":        ownerID,
			"name":       name,
		})
		if err != nil {
			return err
		}
		if newID == 0 {
			return errors.New(MsgInsertSubFailed)
		}

		id = newID
		return nil
	})
	if err != nil {
		return failed[int64](s, "AddSubNode", err)
	}
	return succeeded(id)
}

// DeleteSingleNode removes a leaf and closes the gap it leaves
func (s *TreeService) DeleteSingleNode(ctx context.Context, node models.Node) Result[bool] {
	if node.Width() != 2 {
		return failed[bool](s, "DeleteSingleNode", errors.New(MsgNodeHasChildren))
	}

	err := s.transact(ctx, func(tx repository.Tx) error {
		rows, err := tx.Delete(ctx, node.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.New(MsgNodeNotExists)
		}
		return closeGap(ctx, tx, node.RootID, node.Rgt, 2)
	})
	if err != nil {
		return failed[bool](s, "DeleteSingleNode", err)
	}
	return succeeded(true)
}

// DeleteTree removes node with its whole subtree and closes the gap
func (s *TreeService) DeleteTree(ctx context.Context, node models.Node) Result[bool] {
	err := s.transact(ctx, func(tx repository.Tx) error {
		rows, err := tx.DeleteFullTree(ctx, node.RootID, node.Rgt, node.Lft)
		if err != nil {
			return err
		}
		// A stale interval can cover other rows; the subtree must match exactly
		if rows != node.Width()/2 {
			return errors.New(MsgNodeNotExists)
		}
		return closeGap(ctx, tx, node.RootID, node.Rgt, node.Width())
	})
	if err != nil {
		return failed[bool](s, "DeleteTree", err)
	}
	return succeeded(true)
}

// MoveNode relocates moved with its subtree to region of target. Both nodes
// must reflect the stored rows. target may belong to another tree, in which
// case the subtree takes over the target's root_id.
func (s *TreeService) MoveNode(ctx context.Context, moved, target models.Node, region calculator.Region) (Result[bool], error) {
	diffLevel, err := calculator.CalculateDiffLevelByRegion(region, moved.Level, target.Level)
	if err != nil {
		return Result[bool]{}, err
	}
	newLftPos, err := calculator.DetermineLftPositionByRegion(region, target)
	if err != nil {
		return Result[bool]{}, err
	}
	newParentID, err := calculator.DetermineParentIDByRegion(region, target)
	if err != nil {
		return Result[bool]{}, err
	}

	if moved.Contains(target) {
		return Result[bool]{}, fmt.Errorf("%w: %s can not be placed inside itself", ErrInvalidMove, moved.Name)
	}
	if region != calculator.AppendChild && target.IsRoot() {
		return Result[bool]{}, fmt.Errorf("%w: %s is a root node", ErrInvalidMove, target.Name)
	}
	// Already in place
	if moved.RootID == target.RootID && newLftPos == moved.Lft {
		return succeeded(true), nil
	}

	width := moved.Width()
	cannotMove := fmt.Sprintf("%s cannot be moved via %s of %s", moved.Name, region, target.Name)

	err = s.transact(ctx, func(tx repository.Tx) error {
		if err := openGap(ctx, tx, target.RootID, newLftPos, width); err != nil {
			return err
		}

		calculated := calculator.CalculateBeforeMoveSubTree(moved, target, newLftPos, width)
		rows, err := tx.MoveSubTree(ctx, moved, target, calculated, diffLevel)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.New(cannotMove)
		}

		rows, err = tx.Update(ctx, moved.ID, repository.Fields{"parent_id": newParentID})
		if err != nil {
			return err
		}
		if rows != 1 {
			return errors.New(cannotMove)
		}

		return closeGap(ctx, tx, moved.RootID, moved.Rgt, width)
	})
	if err != nil {
		return failed[bool](s, "MoveNode", err), nil
	}
	return succeeded(true), nil
}

// FindAllRootNodes returns every root ordered by root_order
func (s *TreeService) FindAllRootNodes(ctx context.Context) ([]models.Node, error) {
	return s.repo.FindAllRootNodes(ctx)
}

// FindTreeByRootID returns one tree ordered by lft
func (s *TreeService) FindTreeByRootID(ctx context.Context, rootID int64) ([]models.Node, error) {
	return s.repo.FindTreeByRootID(ctx, rootID)
}

// FindNodeOwner returns a node with its owner name, or repository.ErrNodeNotFound
func (s *TreeService) FindNodeOwner(ctx context.Context, nodeID int64) (*models.Node, error) {
	return s.repo.FindNodeOwner(ctx, nodeID)
}

func (s *TreeService) FindAllChildNodesByParentNode(ctx context.Context, parentID int64) ([]models.Node, error) {
	return s.repo.FindAllChildNodesByParentNode(ctx, parentID)
}

func (s *TreeService) FindAllChildrenInTreeOfNodeID(ctx context.Context, nodeID int64) ([]models.Node, error) {
	return s.repo.FindAllChildrenInTreeOfNodeID(ctx, nodeID)
}

func (s *TreeService) FindRootIDRgtAndLevelByNodeID(ctx context.Context, nodeID int64) (*models.Position, error) {
	return s.repo.FindRootIDRgtAndLevelByNodeID(ctx, nodeID)
}

// FindAllSubNodeIDsByRootIDAndPosition passes its bounds through unchanged;
// see repository.Queries for the argument order.
func (s *TreeService) FindAllSubNodeIDsByRootIDAndPosition(ctx context.Context, rootID, rgt, lft int64) ([]int64, error) {
	return s.repo.FindAllSubNodeIDsByRootIDAndPosition(ctx, rootID, rgt, lft)
}

// transact runs fn in a transaction. It commits when fn returns nil and rolls
// back on an error or a panic, which is converted into the returned error.
func (s *TreeService) transact(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during transaction: %v", p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("Rollback failed", zap.Error(rbErr))
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("error committing transaction: %w", err)
		}
	}()

	return fn(tx)
}

// failed logs err exactly once and turns it into a failed Result
func failed[T any](s *TreeService, operation string, err error) Result[T] {
	message := err.Error()
	s.logger.Error(message, zap.String("operation", operation))
	return Result[T]{errors: []string{message}}
}

// openGap makes room for width positions starting at position
func openGap(ctx context.Context, tx repository.Tx, rootID, position, width int64) error {
	if _, err := tx.MoveNodesToRightForInsert(ctx, rootID, position, width); err != nil {
		return err
	}
	_, err := tx.MoveNodesToLeftForInsert(ctx, rootID, position, width)
	return err
}

// closeGap shifts everything after position back by width
func closeGap(ctx context.Context, tx repository.Tx, rootID, position, width int64) error {
	if _, err := tx.MoveNodesToLeftForDeletion(ctx, rootID, position, width); err != nil {
		return err
	}
	_, err := tx.MoveNodesToRightForDeletion(ctx, rootID, position, width)
	return err
}
