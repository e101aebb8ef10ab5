package app

import "tapestry/api/internal/store"

// Default rectangle sizes used when a node has no stored dimensions.
const (
	defaultGroupWidth  = 600.0
	defaultGroupHeight = 400.0
	defaultNodeWidth   = 400.0
	defaultNodeHeight  = 300.0
)

// containingGroup returns the id of the first group whose rectangle
// contains the node's center point, or nil. Iteration order is the given
// list order: with overlapping groups the first match wins, it is never
// resolved by area or stacking.
func containingGroup(node store.CanvasNode, groups []store.CanvasNode) *string {
	width := defaultNodeWidth
	if node.Width != nil {
		width = *node.Width
	}
	height := defaultNodeHeight
	if node.Height != nil {
		height = *node.Height
	}
	centerX := node.X + width/2
	centerY := node.Y + height/2

	for _, group := range groups {
		if group.ID == node.ID {
			continue
		}
		groupWidth := defaultGroupWidth
		if group.Width != nil {
			groupWidth = *group.Width
		}
		groupHeight := defaultGroupHeight
		if group.Height != nil {
			groupHeight = *group.Height
		}
		if centerX >= group.X && centerX <= group.X+groupWidth &&
			centerY >= group.Y && centerY <= group.Y+groupHeight {
			id := group.ID
			return &id
		}
	}
	return nil
}
