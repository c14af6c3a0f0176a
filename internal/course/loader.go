// Package course loads the training course manifest and per-topic content
// files through a pluggable Fetcher.
package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	// ErrTopicNotFound is returned when a topic ID is absent from the manifest.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrContentNotFound is returned when a content file cannot be fetched.
	ErrContentNotFound = errors.New("content not found")
	// ErrMalformed is returned when content fails to parse or validate.
	ErrMalformed = errors.New("malformed content")
)

const (
	manifestJSON = "course.json"
	manifestYAML = "course.yaml"
)

// Loader fetches and caches the manifest and decodes topic content.
type Loader struct {
	fetcher  Fetcher
	manifest *Manifest
	mu       sync.Mutex
}

// NewLoader creates a loader reading through fetcher.
func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Manifest returns the course manifest. It is fetched on first use and
// cached; a failed fetch is retried on the next call.
func (l *Loader) Manifest(ctx context.Context) (Manifest, error) {
	l.mu.Lock()
	cached := l.manifest
	l.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	m, err := l.fetchManifest(ctx)
	if err != nil {
		return Manifest{}, err
	}

	l.mu.Lock()
	if l.manifest == nil {
		l.manifest = &m
		slog.Info("course manifest loaded", "title", m.Title, "levels", len(m.Levels))
	}
	m = *l.manifest
	l.mu.Unlock()
	return m, nil
}

// Topic looks a topic up by ID across all levels.
func (l *Loader) Topic(ctx context.Context, id string) (Topic, error) {
	m, err := l.Manifest(ctx)
	if err != nil {
		return Topic{}, err
	}
	t, ok := m.Topic(id)
	if !ok {
		return Topic{}, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return t, nil
}

// Content fetches the raw content file of a topic.
func (l *Loader) Content(ctx context.Context, t Topic) ([]byte, error) {
	return l.fetcher.Fetch(ctx, t.ContentPath())
}

// Quiz fetches and decodes a quiz topic.
func (l *Loader) Quiz(ctx context.Context, t Topic) (Quiz, error) {
	data, err := l.Content(ctx, t)
	if err != nil {
		return Quiz{}, err
	}
	return ParseQuiz(data, t.ContentPath())
}

// Exercise fetches and decodes an exercise topic.
func (l *Loader) Exercise(ctx context.Context, t Topic) (Exercise, error) {
	data, err := l.Content(ctx, t)
	if err != nil {
		return Exercise{}, err
	}
	return ParseExercise(data, t.ContentPath())
}

// ValidateAll fetches the manifest and every referenced content file and
// validates them concurrently. All problems are joined into one error.
func (l *Loader) ValidateAll(ctx context.Context) error {
	m, err := l.Manifest(ctx)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	seen := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, level := range m.Levels {
		for _, t := range level.Topics {
			if seen[t.ID] {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%w: duplicate topic id %q", ErrMalformed, t.ID))
				mu.Unlock()
				continue
			}
			seen[t.ID] = true

			g.Go(func() error {
				var err error
				switch t.Kind {
				case KindQuiz:
					_, err = l.Quiz(gctx, t)
				case KindExercise:
					_, err = l.Exercise(gctx, t)
				default:
					_, err = l.Content(gctx, t)
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("topic %s: %w", t.ID, err))
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (l *Loader) fetchManifest(ctx context.Context) (Manifest, error) {
	data, err := l.fetcher.Fetch(ctx, manifestJSON)
	if err == nil {
		return ParseManifest(data, manifestJSON)
	}
	if !errors.Is(err, ErrContentNotFound) {
		return Manifest{}, fmt.Errorf("fetching manifest: %w", err)
	}

	data, yerr := l.fetcher.Fetch(ctx, manifestYAML)
	if yerr != nil {
		// Report the JSON miss; YAML is the fallback.
		return Manifest{}, fmt.Errorf("fetching manifest: %w", err)
	}
	return ParseManifestYAML(data, manifestYAML)
}

// ParseManifest decodes and validates a JSON manifest.
func ParseManifest(data []byte, path string) (Manifest, error) {
	if err := validate(manifestSchema, gojsonschema.NewBytesLoader(data), path); err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return m, nil
}

// ParseManifestYAML decodes a YAML manifest and validates it against the
// same schema as the JSON form.
func ParseManifestYAML(data []byte, path string) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if err := validate(manifestSchema, gojsonschema.NewGoLoader(m), path); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ParseQuiz decodes and validates quiz content.
func ParseQuiz(data []byte, path string) (Quiz, error) {
	if err := validate(quizSchema, gojsonschema.NewBytesLoader(data), path); err != nil {
		return Quiz{}, err
	}
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return Quiz{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return q, nil
}

// ParseExercise decodes and validates exercise content.
func ParseExercise(data []byte, path string) (Exercise, error) {
	if err := validate(exerciseSchema, gojsonschema.NewBytesLoader(data), path); err != nil {
		return Exercise{}, err
	}
	var e Exercise
	if err := json.Unmarshal(data, &e); err != nil {
		return Exercise{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return e, nil
}
