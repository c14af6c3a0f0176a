package page

import (
	"fmt"

	"github.com/quantumtrader/academy/internal/progress"
)

// TrackableIDs lists the checklist controls in render order.
func (d *Document) TrackableIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, len(d.controls))
	for i, c := range d.controls {
		ids[i] = c.ID
	}
	return ids
}

// IsChecked reports whether a checklist control is checked.
func (d *Document) IsChecked(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c := d.control(id); c != nil {
		return c.Checked
	}
	return false
}

// SetChecked sets a checklist control and reports whether it exists.
func (d *Document) SetChecked(id string, checked bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.control(id)
	if c == nil {
		return false
	}
	c.Checked = checked
	return true
}

func (d *Document) control(id string) *Control {
	for _, c := range d.controls {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ShowProgress updates the progress bar.
func (d *Document) ShowProgress(p progress.Progress) {
	d.mu.Lock()
	d.progress = p
	d.mu.Unlock()
}

// Progress returns the value last shown on the progress bar.
func (d *Document) Progress() progress.Progress {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.progress
}

// ActivateLevel marks exactly one level and its navigation control active.
func (d *Document) ActivateLevel(levelID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := false
	for _, lv := range d.levels {
		if lv.ID == levelID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("level %d is not rendered", levelID)
	}
	for _, lv := range d.levels {
		lv.Active = lv.ID == levelID
	}
	return nil
}

// LevelIDs lists level ids in render order.
func (d *Document) LevelIDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, len(d.levels))
	for i, lv := range d.levels {
		ids[i] = lv.ID
	}
	return ids
}

// ActiveLevel returns the active level id, or 0 when none is active.
func (d *Document) ActiveLevel() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, lv := range d.levels {
		if lv.Active {
			return lv.ID
		}
	}
	return 0
}
