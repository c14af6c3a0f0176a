package progress_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/quantumtrader/academy/internal/progress"
)

type fakeChecklist struct {
	ids     []string
	checked map[string]bool
}

func newFakeChecklist(n int) *fakeChecklist {
	c := &fakeChecklist{checked: make(map[string]bool)}
	for i := range n {
		c.ids = append(c.ids, fmt.Sprintf("item-%d", i))
	}
	return c
}

func (c *fakeChecklist) TrackableIDs() []string { return c.ids }

func (c *fakeChecklist) IsChecked(id string) bool { return c.checked[id] }

func (c *fakeChecklist) SetChecked(id string, checked bool) bool {
	for _, known := range c.ids {
		if known == id {
			c.checked[id] = checked
			return true
		}
	}
	return false
}

type recordingDisplay struct {
	shown []progress.Progress
}

func (d *recordingDisplay) ShowProgress(p progress.Progress) { d.shown = append(d.shown, p) }

func (d *recordingDisplay) last() progress.Progress {
	if len(d.shown) == 0 {
		return progress.Progress{}
	}
	return d.shown[len(d.shown)-1]
}

func confirm(answer bool) progress.Confirmer {
	return progress.ConfirmFunc(func(string) bool { return answer })
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total int
		want             int
		wantOK           bool
	}{
		{0, 0, 0, false},
		{3, 0, 0, false},
		{0, 4, 0, true},
		{1, 3, 33, true},
		{2, 3, 67, true},
		{1, 8, 13, true},
		{4, 4, 100, true},
		{6, 4, 100, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.completed, tt.total), func(t *testing.T) {
			got, ok := progress.Percentage(tt.completed, tt.total)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Percentage(%d, %d) = %d, %v; want %d, %v", tt.completed, tt.total, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStore_LoadYieldsRoundedPercentage(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for k := 0; k <= n; k++ {
			t.Run(fmt.Sprintf("%d_of_%d", k, n), func(t *testing.T) {
				ctx := t.Context()
				storage := progress.NewMemoryStorage()

				// First session checks k items.
				first := newFakeChecklist(n)
				store := progress.NewStore(storage, first, nil)
				store.CountTrackable()
				for i := range k {
					first.SetChecked(first.ids[i], true)
				}
				if err := store.RecordCompletion(ctx); err != nil {
					t.Fatalf("RecordCompletion() error = %v", err)
				}

				// Reload into a fresh document.
				second := newFakeChecklist(n)
				reloaded := progress.NewStore(storage, second, nil)
				reloaded.CountTrackable()
				if err := reloaded.Load(ctx); err != nil {
					t.Fatalf("Load() error = %v", err)
				}

				want := int(math.Round(float64(k) / float64(n) * 100))
				got := reloaded.Snapshot()
				if got.Percent != want {
					t.Errorf("Percent = %d, want %d", got.Percent, want)
				}
				if got.Completed != k {
					t.Errorf("Completed = %d, want %d", got.Completed, k)
				}
			})
		}
	}
}

func TestStore_Load_IgnoresUnknownIDs(t *testing.T) {
	ctx := t.Context()
	storage := progress.NewMemoryStorage()
	storage.Set(ctx, progress.ProgressKey, `["item-0","gone","item-0"]`)

	checklist := newFakeChecklist(2)
	store := progress.NewStore(storage, checklist, nil)
	store.CountTrackable()

	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := store.Snapshot().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
	if !checklist.IsChecked("item-0") {
		t.Error("item-0 should be checked after Load")
	}
}

func TestStore_Load_CorruptProgress(t *testing.T) {
	ctx := t.Context()
	storage := progress.NewMemoryStorage()
	storage.Set(ctx, progress.ProgressKey, `not json`)

	store := progress.NewStore(storage, newFakeChecklist(2), nil)
	store.CountTrackable()

	if err := store.Load(ctx); err == nil {
		t.Error("Load() should report corrupt progress")
	}
	if got := store.Snapshot().Completed; got != 0 {
		t.Errorf("Completed = %d, want 0", got)
	}
}

func TestStore_RecordCompletion_RecountsInsteadOfIncrementing(t *testing.T) {
	ctx := t.Context()
	checklist := newFakeChecklist(4)
	display := &recordingDisplay{}
	store := progress.NewStore(progress.NewMemoryStorage(), checklist, display)
	store.CountTrackable()

	checklist.SetChecked("item-1", true)
	store.RecordCompletion(ctx)
	checklist.SetChecked("item-1", false)
	store.RecordCompletion(ctx)
	checklist.SetChecked("item-1", true)
	store.RecordCompletion(ctx)

	if got := store.Snapshot().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1 after toggling off and on", got)
	}
	if got := display.last().Percent; got != 25 {
		t.Errorf("displayed Percent = %d, want 25", got)
	}
}

func TestStore_Credit_OnlyOnce(t *testing.T) {
	ctx := t.Context()
	storage := progress.NewMemoryStorage()
	store := progress.NewStore(storage, newFakeChecklist(2), nil)
	store.CountTrackable()

	first, err := store.Credit(ctx, progress.QuizKey("q1"))
	if err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	second, _ := store.Credit(ctx, progress.QuizKey("q1"))

	if !first || second {
		t.Errorf("Credit() = %v, %v; want true, false", first, second)
	}
	if got := store.Snapshot().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
	if _, found, _ := storage.Get(ctx, "quiz_q1_completed"); !found {
		t.Error("credit flag should be persisted")
	}

	// A fresh session sees the flag and does not credit again.
	reloaded := progress.NewStore(storage, newFakeChecklist(2), nil)
	reloaded.CountTrackable()
	reloaded.Load(ctx)
	if again, _ := reloaded.Credit(ctx, progress.QuizKey("q1")); again {
		t.Error("Credit() after reload should return false")
	}
	if got := reloaded.Snapshot().Completed; got != 1 {
		t.Errorf("Completed after reload = %d, want 1", got)
	}
}

func TestStore_Credit_SurvivesRecount(t *testing.T) {
	ctx := t.Context()
	checklist := newFakeChecklist(2)
	store := progress.NewStore(progress.NewMemoryStorage(), checklist, nil)
	store.CountTrackable()

	store.Credit(ctx, progress.ConfigExerciseKey)
	checklist.SetChecked("item-0", true)
	store.RecordCompletion(ctx)

	if got := store.Snapshot().Completed; got != 2 {
		t.Errorf("Completed = %d, want 2", got)
	}
}

func TestStore_Credits_Sorted(t *testing.T) {
	ctx := t.Context()
	store := progress.NewStore(progress.NewMemoryStorage(), newFakeChecklist(1), nil)
	store.CountTrackable()

	store.Credit(ctx, progress.QuizKey("q2"))
	store.Credit(ctx, progress.ConfigExerciseKey)
	store.Credit(ctx, progress.QuizKey("q1"))

	want := []string{"config_exercise_completed", "quiz_q1_completed", "quiz_q2_completed"}
	if got := store.Credits(); !slices.Equal(got, want) {
		t.Errorf("Credits() = %v, want %v", got, want)
	}
}

func TestStore_Reset(t *testing.T) {
	ctx := t.Context()
	storage := progress.NewMemoryStorage()
	checklist := newFakeChecklist(3)
	store := progress.NewStore(storage, checklist, nil)
	store.CountTrackable()

	checklist.SetChecked("item-0", true)
	checklist.SetChecked("item-2", true)
	store.RecordCompletion(ctx)
	store.Credit(ctx, progress.AlgorithmExerciseKey)

	done, err := store.Reset(ctx, confirm(true))
	if err != nil || !done {
		t.Fatalf("Reset() = %v, %v; want true, nil", done, err)
	}

	for _, id := range checklist.ids {
		if checklist.IsChecked(id) {
			t.Errorf("%s still checked after reset", id)
		}
	}
	keys, _ := storage.Keys(ctx)
	if len(keys) != 0 {
		t.Errorf("storage keys after reset = %v, want none", keys)
	}
	if got := store.Snapshot().Completed; got != 0 {
		t.Errorf("Completed = %d, want 0", got)
	}

	// Reload shows nothing persisted.
	reloaded := progress.NewStore(storage, newFakeChecklist(3), nil)
	reloaded.CountTrackable()
	reloaded.Load(ctx)
	if got := reloaded.Snapshot().Completed; got != 0 {
		t.Errorf("Completed after reload = %d, want 0", got)
	}
}

func TestStore_Reset_Declined(t *testing.T) {
	ctx := t.Context()
	storage := progress.NewMemoryStorage()
	checklist := newFakeChecklist(2)
	store := progress.NewStore(storage, checklist, nil)
	store.CountTrackable()
	checklist.SetChecked("item-0", true)
	store.RecordCompletion(ctx)

	for _, c := range []progress.Confirmer{confirm(false), nil} {
		done, err := store.Reset(ctx, c)
		if done || err != nil {
			t.Errorf("Reset() = %v, %v; want false, nil", done, err)
		}
	}
	if !checklist.IsChecked("item-0") {
		t.Error("declined reset should not uncheck controls")
	}
	if _, found, _ := storage.Get(ctx, progress.ProgressKey); !found {
		t.Error("declined reset should not clear storage")
	}
}

func TestStore_NothingToTrack(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryStorage(), newFakeChecklist(0), nil)
	store.CountTrackable()
	store.Load(t.Context())

	p := store.Snapshot()
	if p.Trackable || p.Percent != 0 {
		t.Errorf("Snapshot() = %+v, want 0%% and not trackable", p)
	}
}

type failingStorage struct{}

var errUnavailable = errors.New("storage unavailable")

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errUnavailable
}
func (failingStorage) Set(context.Context, string, string) error { return errUnavailable }
func (failingStorage) Keys(context.Context) ([]string, error)    { return nil, errUnavailable }
func (failingStorage) Clear(context.Context) error               { return errUnavailable }

func TestStore_StorageUnavailable_KeepsInMemoryState(t *testing.T) {
	ctx := t.Context()
	checklist := newFakeChecklist(2)
	store := progress.NewStore(failingStorage{}, checklist, nil)
	store.CountTrackable()

	if err := store.Load(ctx); !errors.Is(err, errUnavailable) {
		t.Errorf("Load() error = %v, want wrapped errUnavailable", err)
	}

	checklist.SetChecked("item-0", true)
	if err := store.RecordCompletion(ctx); !errors.Is(err, errUnavailable) {
		t.Errorf("RecordCompletion() error = %v, want wrapped errUnavailable", err)
	}
	credited, err := store.Credit(ctx, progress.QuizKey("q9"))
	if !credited || !errors.Is(err, errUnavailable) {
		t.Errorf("Credit() = %v, %v; want true and wrapped errUnavailable", credited, err)
	}

	if got := store.Snapshot().Completed; got != 2 {
		t.Errorf("Completed = %d, want 2", got)
	}
}
