// Package nav switches the visible course level.
package nav

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownLevel is returned by ShowLevel for a level not in the manifest.
var ErrUnknownLevel = errors.New("unknown level")

// FirstLevel is the level shown after bootstrap when the manifest has it.
const FirstLevel = 1

// Levels is the part of the document the controller drives.
type Levels interface {
	LevelIDs() []int
	ActivateLevel(id int) error
}

// Controller activates exactly one level at a time.
type Controller struct {
	levels Levels
}

// New creates a controller over levels.
func New(levels Levels) *Controller {
	return &Controller{levels: levels}
}

// ShowLevel activates level n and deactivates every other level.
// Showing the active level again is a no-op.
func (c *Controller) ShowLevel(n int) error {
	if !slices.Contains(c.levels.LevelIDs(), n) {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, n)
	}
	if err := c.levels.ActivateLevel(n); err != nil {
		return fmt.Errorf("%w: %d: %w", ErrUnknownLevel, n, err)
	}
	return nil
}

// Init shows FirstLevel, or the first rendered level when the manifest
// numbers its levels differently.
func (c *Controller) Init() error {
	ids := c.levels.LevelIDs()
	switch {
	case slices.Contains(ids, FirstLevel):
		return c.ShowLevel(FirstLevel)
	case len(ids) > 0:
		return c.ShowLevel(ids[0])
	default:
		return fmt.Errorf("%w: no levels rendered", ErrUnknownLevel)
	}
}
