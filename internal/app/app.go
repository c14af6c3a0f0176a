// Package app wires the training page for one learner: content loading,
// rendering, grading, navigation and progress tracking.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/quantumtrader/academy/internal/checker"
	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/events"
	"github.com/quantumtrader/academy/internal/markdown"
	"github.com/quantumtrader/academy/internal/nav"
	"github.com/quantumtrader/academy/internal/notify"
	"github.com/quantumtrader/academy/internal/page"
	"github.com/quantumtrader/academy/internal/progress"
	"github.com/quantumtrader/academy/internal/report"
	"github.com/quantumtrader/academy/internal/viewer"
)

// ErrUnknownControl is returned by ToggleControl for an id that is not a
// rendered checklist control.
var ErrUnknownControl = errors.New("unknown control")

const defaultLearnerID = "local"

// Config holds dependencies for an App.
type Config struct {
	LearnerID string             // default "local"
	Loader    *course.Loader     // required
	Renderer  viewer.Renderer    // default markdown.New()
	Storage   progress.Storage   // default in-memory
	Events    events.EventLogger // default no-op
	Hub       *notify.Hub        // optional live progress fan-out
}

// App is one learner's training page.
type App struct {
	learnerID string
	loader    *course.Loader
	doc       *page.Document
	store     *progress.Store
	viewer    *viewer.Viewer
	checker   *checker.Checker
	nav       *nav.Controller
	events    events.EventLogger

	mu      sync.Mutex
	started bool
}

// New creates an app. Call Start before using the handlers.
func New(cfg Config) *App {
	learnerID := cfg.LearnerID
	if learnerID == "" {
		learnerID = defaultLearnerID
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = markdown.New()
	}
	storage := cfg.Storage
	if storage == nil {
		storage = progress.NewMemoryStorage()
	}
	logger := cfg.Events
	if logger == nil {
		logger = events.NopEventLogger{}
	}

	doc := page.New()
	store := progress.NewStore(storage, doc, &display{doc: doc, hub: cfg.Hub, learnerID: learnerID})

	return &App{
		learnerID: learnerID,
		loader:    cfg.Loader,
		doc:       doc,
		store:     store,
		viewer:    viewer.New(cfg.Loader, renderer, doc),
		checker:   checker.New(cfg.Loader, doc, store),
		nav:       nav.New(doc),
		events:    logger,
	}
}

// Start fetches the manifest, renders levels, topic panels and checklist
// controls, restores persisted progress and shows the first level. A failure
// is logged with its stack and leaves the app partially initialised.
func (a *App) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bootstrap panic: %v", r)
		}
		if err != nil {
			slog.Error("training page bootstrap failed",
				"learner_id", a.learnerID,
				"error", err,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if a.loader == nil {
		return errors.New("no course loader configured")
	}
	m, err := a.loader.Manifest(ctx)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	a.doc.RenderManifest(m)

	total := a.store.CountTrackable()
	if err := a.store.Load(ctx); err != nil {
		slog.Warn("progress storage unavailable, continuing in memory",
			"learner_id", a.learnerID,
			"error", err,
		)
	}
	if err := a.nav.Init(); err != nil {
		return fmt.Errorf("showing first level: %w", err)
	}

	a.mu.Lock()
	a.started = true
	a.mu.Unlock()

	slog.Info("training page ready",
		"learner_id", a.learnerID,
		"levels", len(m.Levels),
		"trackable", total,
	)
	return nil
}

// Started reports whether Start completed.
func (a *App) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// LearnerID returns the learner this app belongs to.
func (a *App) LearnerID() string {
	return a.learnerID
}

// ShowTopic opens or closes a topic panel, loading it on first open.
func (a *App) ShowTopic(ctx context.Context, topicID string) (bool, error) {
	open, err := a.viewer.ShowTopic(ctx, topicID)
	if err != nil {
		return false, err
	}
	if open {
		a.logEvent(events.TopicOpened, map[string]any{"topic_id": topicID})
	}
	return open, nil
}

// ShowLevel makes level n the only visible level.
func (a *App) ShowLevel(n int) error {
	return a.nav.ShowLevel(n)
}

// CheckAnswer grades a quiz answer.
func (a *App) CheckAnswer(ctx context.Context, questionID, optionID string) page.Feedback {
	fb := a.checker.CheckAnswer(ctx, questionID, optionID)
	a.logEvent(events.QuizAnswered, map[string]any{
		"question_id": questionID,
		"option_id":   optionID,
		"correct":     fb.Positive,
	})
	return fb
}

// CheckExercise grades the current text of an exercise.
func (a *App) CheckExercise(ctx context.Context, topicID string) page.Feedback {
	fb := a.checker.CheckExercise(ctx, topicID)
	a.logEvent(events.ExerciseChecked, map[string]any{
		"topic_id": topicID,
		"passed":   fb.Positive,
	})
	return fb
}

// SetExerciseText replaces the editable text of an exercise.
func (a *App) SetExerciseText(topicID, text string) error {
	return a.doc.SetExerciseText(topicID, text)
}

// ToggleControl checks or unchecks a checklist control and records the new
// completion count.
func (a *App) ToggleControl(ctx context.Context, controlID string, checked bool) (progress.Progress, error) {
	if !a.doc.SetChecked(controlID, checked) {
		return progress.Progress{}, fmt.Errorf("%w: %s", ErrUnknownControl, controlID)
	}
	if err := a.store.RecordCompletion(ctx); err != nil {
		slog.Error("persisting progress", "learner_id", a.learnerID, "error", err)
	}
	a.logEvent(events.ControlToggled, map[string]any{"control_id": controlID, "checked": checked})
	return a.store.Snapshot(), nil
}

// Reset wipes all progress once c confirms.
func (a *App) Reset(ctx context.Context, c progress.Confirmer) bool {
	done, err := a.store.Reset(ctx, c)
	if err != nil {
		slog.Error("clearing progress storage", "learner_id", a.learnerID, "error", err)
	}
	if done {
		a.logEvent(events.ProgressReset, nil)
	}
	return done
}

// Snapshot returns a copy of the page state.
func (a *App) Snapshot() page.Snapshot {
	return a.doc.Snapshot()
}

// Progress returns the current completion percentage.
func (a *App) Progress() progress.Progress {
	return a.store.Snapshot()
}

// Report returns the exportable progress of the learner.
func (a *App) Report() report.Progress {
	return report.Progress{
		LearnerID:   a.learnerID,
		GeneratedAt: time.Now(),
		Snapshot:    a.doc.Snapshot(),
		Credits:     a.store.Credits(),
	}
}

func (a *App) logEvent(eventType string, data map[string]any) {
	err := a.events.LogEvent(events.Event{
		LearnerID: a.learnerID,
		EventType: eventType,
		Data:      data,
	})
	if err != nil {
		slog.Warn("failed to log event", "type", eventType, "error", err)
	}
}

// display shows progress on the page and pushes it to live subscribers.
type display struct {
	doc       *page.Document
	hub       *notify.Hub
	learnerID string
}

func (d *display) ShowProgress(p progress.Progress) {
	d.doc.ShowProgress(p)
	if d.hub != nil {
		d.hub.Publish(d.learnerID, p)
	}
}
