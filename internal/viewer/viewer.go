// Package viewer loads topic content on demand and renders it into the
// document's topic panels.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/page"
)

// ErrSuperseded is returned when a newer open of the same topic replaced an
// in-flight load. The superseded call changes nothing.
var ErrSuperseded = errors.New("superseded by a newer request")

// Content is the course content source.
type Content interface {
	Manifest(ctx context.Context) (course.Manifest, error)
	Content(ctx context.Context, t course.Topic) ([]byte, error)
	Quiz(ctx context.Context, t course.Topic) (course.Quiz, error)
	Exercise(ctx context.Context, t course.Topic) (course.Exercise, error)
}

// Renderer converts tutorial markdown to HTML.
type Renderer interface {
	Render(src []byte) (string, error)
}

// Panels is the part of the document the viewer writes to.
type Panels interface {
	HideOthers(topicID string)
	Loaded(topicID string) bool
	MarkLoaded(topicID string) error
	Toggle(topicID string) (bool, error)
	ShowHTML(topicID, html string) error
	ShowQuiz(topicID string, q page.QuizView) error
	ShowExercise(topicID string, e page.ExerciseView) error
	ShowError(topicID, msg string) error
}

type load struct {
	gen    uint64
	cancel context.CancelFunc
}

// Viewer opens and closes topic panels, loading each topic at most once.
type Viewer struct {
	content  Content
	renderer Renderer
	panels   Panels

	mu    sync.Mutex
	gen   uint64
	loads map[string]load // in-flight loads by topic id
}

// New creates a viewer.
func New(content Content, renderer Renderer, panels Panels) *Viewer {
	return &Viewer{
		content:  content,
		renderer: renderer,
		panels:   panels,
		loads:    make(map[string]load),
	}
}

// ShowTopic hides every other panel, loads the topic if it has not been
// loaded yet and toggles its visibility. It returns whether the panel is now
// open. Load failures are shown inline in the panel and leave it unloaded so
// the next open retries.
func (v *Viewer) ShowTopic(ctx context.Context, topicID string) (bool, error) {
	v.panels.HideOthers(topicID)

	if !v.panels.Loaded(topicID) {
		if err := v.loadTopic(ctx, topicID); err != nil {
			return false, err
		}
	}

	open, err := v.panels.Toggle(topicID)
	if err != nil {
		return false, fmt.Errorf("toggling %s: %w", topicID, err)
	}
	return open, nil
}

func (v *Viewer) loadTopic(ctx context.Context, topicID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	if prev, ok := v.loads[topicID]; ok {
		prev.cancel()
	}
	v.gen++
	gen := v.gen
	v.loads[topicID] = load{gen: gen, cancel: cancel}
	v.mu.Unlock()

	apply, loadErr := v.fetch(ctx, topicID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.loads[topicID]; !ok || cur.gen != gen {
		return fmt.Errorf("loading %s: %w", topicID, ErrSuperseded)
	}
	delete(v.loads, topicID)

	if loadErr != nil {
		slog.Warn("topic load failed", "topic", topicID, "error", loadErr)
		if err := v.panels.ShowError(topicID, errorMessage(loadErr)); err != nil {
			return fmt.Errorf("loading %s: %w", topicID, errors.Join(loadErr, err))
		}
		return nil
	}
	if err := apply(); err != nil {
		return fmt.Errorf("rendering %s: %w", topicID, err)
	}
	return v.panels.MarkLoaded(topicID)
}

// fetch retrieves and decodes a topic without touching the document. The
// returned apply writes the result into the topic's panel.
func (v *Viewer) fetch(ctx context.Context, topicID string) (apply func() error, err error) {
	m, err := v.content.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := m.Topic(topicID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", course.ErrTopicNotFound, topicID)
	}

	switch t.Kind {
	case course.KindTutorial:
		src, err := v.content.Content(ctx, t)
		if err != nil {
			return nil, err
		}
		html, err := v.renderer.Render(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", course.ErrMalformed, t.ContentPath(), err)
		}
		return func() error { return v.panels.ShowHTML(topicID, html) }, nil

	case course.KindQuiz:
		q, err := v.content.Quiz(ctx, t)
		if err != nil {
			return nil, err
		}
		view := quizView(q)
		return func() error { return v.panels.ShowQuiz(topicID, view) }, nil

	case course.KindExercise:
		e, err := v.content.Exercise(ctx, t)
		if err != nil {
			return nil, err
		}
		view := page.ExerciseView{
			Title:       e.Title,
			Description: e.Description,
			Checker:     e.CheckerFor(topicID),
			Text:        e.Template,
		}
		return func() error { return v.panels.ShowExercise(topicID, view) }, nil
	}
	return nil, fmt.Errorf("%w: topic %s has unknown type %q", course.ErrMalformed, topicID, t.Kind)
}

func quizView(q course.Quiz) page.QuizView {
	view := page.QuizView{Title: q.Title, Description: q.Description}
	for _, question := range q.Questions {
		view.Questions = append(view.Questions, page.QuestionView{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: question.Options,
		})
	}
	return view
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, course.ErrTopicNotFound):
		return "Topic not found."
	case errors.Is(err, course.ErrContentNotFound):
		return "Error loading content: content not found."
	case errors.Is(err, course.ErrMalformed):
		return "Error loading content: content is malformed."
	}
	return "Error loading content. Please try again."
}
