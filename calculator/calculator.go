// Package calculator holds the interval arithmetic of the nested-set model.
// Nothing in here touches storage.
package calculator

import (
	"errors"
	"fmt"

	"github.com/ammiranda/nestedset_service/models"
)

// Region is the placement of an inserted or moved node relative to a target node
type Region string

const (
	Before      Region = "before"
	After       Region = "after"
	AppendChild Region = "appendChild"
)

// ErrInvalidRegion is matched by every InvalidRegionError
var ErrInvalidRegion = errors.New("invalid region")

// InvalidRegionError reports a region outside Before, After and AppendChild
type InvalidRegionError struct {
	Region Region
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("Unknown region: %s", e.Region)
}

// Is lets errors.Is match ErrInvalidRegion
func (e *InvalidRegionError) Is(target error) bool {
	return target == ErrInvalidRegion
}

// ParseRegion converts a raw value into a Region
func ParseRegion(value string) (Region, error) {
	region := Region(value)
	switch region {
	case Before, After, AppendChild:
		return region, nil
	}
	return "", &InvalidRegionError{Region: region}
}

// MoveCalculation holds the parameters of a subtree relocation update
type MoveCalculation struct {
	Distance int64 // added to lft and rgt of every moved row
	TmpPos   int64 // lft of the moved subtree at the time of the update
	Width    int64
}

// DetermineLftPositionByRegion returns the lft at which the placed interval begins
func DetermineLftPositionByRegion(region Region, target models.Node) (int64, error) {
	switch region {
	case Before:
		return target.Lft, nil
	case AppendChild:
		return target.Rgt, nil
	case After:
		return target.Rgt + 1, nil
	}
	return 0, &InvalidRegionError{Region: region}
}

// CalculateDiffLevelByRegion returns the level delta applied to every node of a moved subtree
func CalculateDiffLevelByRegion(region Region, movedLevel, targetLevel int64) (int64, error) {
	switch region {
	case AppendChild:
		return (targetLevel - movedLevel) + 1, nil
	case Before, After:
		return targetLevel - movedLevel, nil
	}
	return 0, &InvalidRegionError{Region: region}
}

// DetermineParentIDByRegion returns the parent a placed node ends up under
func DetermineParentIDByRegion(region Region, target models.Node) (int64, error) {
	switch region {
	case AppendChild:
		return target.ID, nil
	case Before, After:
		return target.ParentID, nil
	}
	return 0, &InvalidRegionError{Region: region}
}

// CalculateBeforeMoveSubTree computes how far the moved subtree travels once
// room has been made at newLftPos. When the subtree moves left inside its own
// tree, making room already pushed it right by width, so both the distance and
// the selection window account for that shift.
func CalculateBeforeMoveSubTree(moved, target models.Node, newLftPos, width int64) MoveCalculation {
	distance := newLftPos - moved.Lft
	tmpPos := moved.Lft

	if distance < 0 && moved.RootID == target.RootID {
		distance -= width
		tmpPos += width
	}

	return MoveCalculation{
		Distance: distance,
		TmpPos:   tmpPos,
		Width:    width,
	}
}
