// Package progress tracks which checklist items, quiz questions and
// exercises a learner has completed and persists them to durable storage.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
)

// Storage keys. Credit flags all end in creditSuffix.
const (
	ProgressKey          = "progress"
	ConfigExerciseKey    = "config_exercise_completed"
	AlgorithmExerciseKey = "algorithm_exercise_completed"

	creditSuffix = "_completed"
	resetPrompt  = "Are you sure you want to reset all progress? This cannot be undone."
)

// QuizKey returns the credit flag key of a quiz question.
func QuizKey(questionID string) string {
	return "quiz_" + questionID + creditSuffix
}

// Checklist is the set of trackable controls rendered in a document.
type Checklist interface {
	TrackableIDs() []string
	IsChecked(id string) bool
	// SetChecked reports false when no control with that id exists.
	SetChecked(id string, checked bool) bool
}

// Display receives every recomputed progress value.
type Display interface {
	ShowProgress(p Progress)
}

// Confirmer asks the learner to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Progress is a point-in-time view of completion.
type Progress struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Percent   int  `json:"percent"`
	Trackable bool `json:"trackable"` // false when there is nothing to track
}

// Percentage returns round(completed/total*100) clamped to [0,100].
// ok is false when total is zero.
func Percentage(completed, total int) (pct int, ok bool) {
	if total <= 0 {
		return 0, false
	}
	pct = int(math.Round(float64(completed) / float64(total) * 100))
	return min(max(pct, 0), 100), true
}

// Store owns the completion counters of one learner session.
type Store struct {
	storage   Storage
	checklist Checklist
	display   Display

	mu       sync.Mutex
	total    int
	checked  int
	credited map[string]bool
}

// NewStore creates a progress store. display may be nil.
func NewStore(storage Storage, checklist Checklist, display Display) *Store {
	return &Store{
		storage:   storage,
		checklist: checklist,
		display:   display,
		credited:  make(map[string]bool),
	}
}

// CountTrackable records the number of trackable controls in the document.
// Call it after the initial render and before Load.
func (s *Store) CountTrackable() int {
	n := len(s.checklist.TrackableIDs())
	s.mu.Lock()
	s.total = n
	s.mu.Unlock()
	return n
}

// Load restores persisted progress. Identifiers without a matching control
// are ignored. Storage failures leave the in-memory state usable.
func (s *Store) Load(ctx context.Context) error {
	var loadErr error

	ids, err := s.readChecked(ctx)
	if err != nil {
		loadErr = err
	}

	seen := make(map[string]bool, len(ids))
	checked := 0
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s.checklist.SetChecked(id, true) {
			checked++
		}
	}

	keys, err := s.storage.Keys(ctx)
	if err != nil && loadErr == nil {
		loadErr = fmt.Errorf("listing credits: %w", err)
	}

	s.mu.Lock()
	s.checked = checked
	for _, k := range keys {
		if strings.HasSuffix(k, creditSuffix) {
			s.credited[k] = true
		}
	}
	p := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("progress loaded", "checked", checked, "credits", p.Completed-checked, "total", p.Total)
	s.show(p)
	return loadErr
}

// RecordCompletion recounts the checked controls from scratch, persists the
// full list of checked identifiers and refreshes the display.
func (s *Store) RecordCompletion(ctx context.Context) error {
	var ids []string
	for _, id := range s.checklist.TrackableIDs() {
		if s.checklist.IsChecked(id) {
			ids = append(ids, id)
		}
	}

	s.mu.Lock()
	s.checked = len(ids)
	p := s.snapshotLocked()
	s.mu.Unlock()

	s.show(p)
	return s.writeChecked(ctx, ids)
}

// Credit records a one-time completion under key. It returns true only the
// first time a key is credited.
func (s *Store) Credit(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	already := s.credited[key]
	s.mu.Unlock()
	if already {
		return false, nil
	}

	_, found, err := s.storage.Get(ctx, key)
	if err != nil {
		slog.Warn("progress storage unavailable, crediting in memory", "key", key, "error", err)
	}
	if found {
		s.mu.Lock()
		s.credited[key] = true
		s.mu.Unlock()
		return false, nil
	}

	s.mu.Lock()
	if s.credited[key] {
		s.mu.Unlock()
		return false, nil
	}
	s.credited[key] = true
	p := s.snapshotLocked()
	s.mu.Unlock()

	s.show(p)

	if err := s.storage.Set(ctx, key, "true"); err != nil {
		return true, fmt.Errorf("persisting credit %s: %w", key, err)
	}
	return true, nil
}

// Credited reports whether key has been credited.
func (s *Store) Credited(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credited[key]
}

// Credits lists the credited keys in sorted order.
func (s *Store) Credits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.credited))
	for k := range s.credited {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Reset wipes durable storage and unchecks every control once the learner
// confirms. A declined confirmation is a no-op and returns false.
func (s *Store) Reset(ctx context.Context, c Confirmer) (bool, error) {
	if c == nil || !c.Confirm(resetPrompt) {
		return false, nil
	}

	for _, id := range s.checklist.TrackableIDs() {
		s.checklist.SetChecked(id, false)
	}

	s.mu.Lock()
	s.checked = 0
	clear(s.credited)
	p := s.snapshotLocked()
	s.mu.Unlock()

	s.show(p)

	if err := s.storage.Clear(ctx); err != nil {
		return true, fmt.Errorf("clearing progress: %w", err)
	}
	slog.Info("progress reset")
	return true, nil
}

// Snapshot returns the current progress.
func (s *Store) Snapshot() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Progress {
	completed := s.checked + len(s.credited)
	pct, ok := Percentage(completed, s.total)
	return Progress{
		Completed: completed,
		Total:     s.total,
		Percent:   pct,
		Trackable: ok,
	}
}

func (s *Store) show(p Progress) {
	if s.display != nil {
		s.display.ShowProgress(p)
	}
}

func (s *Store) readChecked(ctx context.Context) ([]string, error) {
	raw, found, err := s.storage.Get(ctx, ProgressKey)
	if err != nil {
		return nil, fmt.Errorf("reading progress: %w", err)
	}
	if !found || raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decoding progress: %w", err)
	}
	return ids, nil
}

func (s *Store) writeChecked(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := s.storage.Set(ctx, ProgressKey, string(data)); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return nil
}
