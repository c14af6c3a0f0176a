package viewer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/markdown"
	"github.com/quantumtrader/academy/internal/page"
	"github.com/quantumtrader/academy/internal/viewer"
)

const testManifest = `{
  "title": "Test Course",
  "levels": [{
    "id": 1, "title": "Basics", "duration": "1h",
    "topics": [
      {"id": "t1", "title": "Intro", "type": "tutorial", "content": "intro.md"},
      {"id": "quiz1", "title": "Quiz", "type": "quiz", "content": "quiz1.json"},
      {"id": "risk-config", "title": "Config", "type": "exercise", "content": "config.json"},
      {"id": "broken", "title": "Broken", "type": "tutorial", "content": "missing.md"}
    ]
  }]
}`

const testQuiz = `{
  "title": "Quiz", "description": "d",
  "questions": [{
    "id": "q1", "question": "Pick",
    "options": [{"id": "opt1", "text": "One"}, {"id": "opt2", "text": "Two"}],
    "correctAnswer": "opt2",
    "feedback": {"correct": "Nice!", "incorrect": "Try again."}
  }]
}`

const testExercise = `{"title": "Config", "description": "d", "template": "max_position_size: ___"}`

// countingFetcher counts fetches per path and can hold one path until the
// request context is cancelled.
type countingFetcher struct {
	inner course.Fetcher

	mu      sync.Mutex
	counts  map[string]int
	hold    string
	started chan struct{}
}

func (f *countingFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	f.counts[path]++
	hold := path == f.hold
	if hold {
		f.hold = ""
	}
	f.mu.Unlock()

	if hold {
		close(f.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.inner.Fetch(ctx, path)
}

func (f *countingFetcher) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[path]
}

func setup(t *testing.T) (*viewer.Viewer, *page.Document, *countingFetcher) {
	t.Helper()
	fsys := fstest.MapFS{
		"course.json":           {Data: []byte(testManifest)},
		"tutorials/intro.md":    {Data: []byte("# Hello\n")},
		"exercises/quiz1.json":  {Data: []byte(testQuiz)},
		"exercises/config.json": {Data: []byte(testExercise)},
	}
	fetcher := &countingFetcher{inner: course.NewFSFetcher(fsys), counts: make(map[string]int)}
	loader := course.NewLoader(fetcher)

	m, err := loader.Manifest(t.Context())
	if err != nil {
		t.Fatalf("Manifest() error = %v", err)
	}
	doc := page.New()
	doc.RenderManifest(m)

	return viewer.New(loader, markdown.New(), doc), doc, fetcher
}

func TestShowTopic_Tutorial(t *testing.T) {
	v, doc, fetcher := setup(t)

	open, err := v.ShowTopic(t.Context(), "t1")
	if err != nil {
		t.Fatalf("ShowTopic() error = %v", err)
	}
	if !open {
		t.Error("first ShowTopic() should open the panel")
	}
	p, _ := doc.Panel("t1")
	if !p.Loaded {
		t.Error("panel should be marked loaded")
	}
	if !strings.Contains(p.HTML, `<h1 id="hello">Hello</h1>`) {
		t.Errorf("panel HTML = %q, want heading", p.HTML)
	}

	open, err = v.ShowTopic(t.Context(), "t1")
	if err != nil {
		t.Fatalf("second ShowTopic() error = %v", err)
	}
	if open {
		t.Error("second ShowTopic() should close the panel")
	}
	if n := fetcher.count("tutorials/intro.md"); n != 1 {
		t.Errorf("intro.md fetched %d times, want 1", n)
	}
}

func TestShowTopic_HidesOthers(t *testing.T) {
	v, doc, _ := setup(t)

	v.ShowTopic(t.Context(), "t1")
	v.ShowTopic(t.Context(), "quiz1")

	if p, _ := doc.Panel("t1"); p.Open {
		t.Error("t1 should be hidden after opening quiz1")
	}
	if p, _ := doc.Panel("quiz1"); !p.Open {
		t.Error("quiz1 should be open")
	}
}

func TestShowTopic_Quiz(t *testing.T) {
	v, doc, _ := setup(t)

	if _, err := v.ShowTopic(t.Context(), "quiz1"); err != nil {
		t.Fatalf("ShowTopic() error = %v", err)
	}
	p, _ := doc.Panel("quiz1")
	if p.Quiz == nil || len(p.Quiz.Questions) != 1 {
		t.Fatalf("panel quiz = %+v, want one question", p.Quiz)
	}
	q := p.Quiz.Questions[0]
	if q.ID != "q1" || q.Prompt != "Pick" || len(q.Options) != 2 {
		t.Errorf("question = %+v", q)
	}
	if owner, ok := doc.QuizTopic("q1"); !ok || owner != "quiz1" {
		t.Errorf("QuizTopic(q1) = %q, %v", owner, ok)
	}
}

func TestShowTopic_Exercise(t *testing.T) {
	v, doc, _ := setup(t)

	if _, err := v.ShowTopic(t.Context(), "risk-config"); err != nil {
		t.Fatalf("ShowTopic() error = %v", err)
	}
	text, checker, err := doc.ExerciseText("risk-config")
	if err != nil {
		t.Fatalf("ExerciseText() error = %v", err)
	}
	if text != "max_position_size: ___" {
		t.Errorf("text = %q, want template", text)
	}
	if checker != course.CheckerConfiguration {
		t.Errorf("checker = %q, want %q", checker, course.CheckerConfiguration)
	}
}

func TestShowTopic_ErrorAllowsRetry(t *testing.T) {
	v, doc, fetcher := setup(t)

	open, err := v.ShowTopic(t.Context(), "broken")
	if err != nil {
		t.Fatalf("ShowTopic() error = %v", err)
	}
	if !open {
		t.Error("panel should open to show the error")
	}
	p, _ := doc.Panel("broken")
	if p.Loaded {
		t.Error("failed load must not mark the panel loaded")
	}
	if p.Error == "" {
		t.Error("failed load should show an inline error")
	}

	v.ShowTopic(t.Context(), "broken")
	v.ShowTopic(t.Context(), "broken")
	if n := fetcher.count("tutorials/missing.md"); n != 2 {
		t.Errorf("missing.md fetched %d times, want 2 (retry on reopen)", n)
	}
}

func TestShowTopic_UnknownTopic(t *testing.T) {
	v, _, _ := setup(t)

	_, err := v.ShowTopic(t.Context(), "nope")
	if !errors.Is(err, course.ErrTopicNotFound) {
		t.Errorf("ShowTopic(nope) error = %v, want ErrTopicNotFound", err)
	}
}

func TestShowTopic_DuplicateInFlight(t *testing.T) {
	v, doc, fetcher := setup(t)
	fetcher.hold = "tutorials/intro.md"
	fetcher.started = make(chan struct{})

	var (
		firstOpen bool
		firstErr  error
		done      = make(chan struct{})
	)
	go func() {
		defer close(done)
		firstOpen, firstErr = v.ShowTopic(context.Background(), "t1")
	}()

	select {
	case <-fetcher.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first load never started")
	}

	open, err := v.ShowTopic(t.Context(), "t1")
	if err != nil {
		t.Fatalf("second ShowTopic() error = %v", err)
	}
	<-done

	if !errors.Is(firstErr, viewer.ErrSuperseded) {
		t.Errorf("first ShowTopic() error = %v, want ErrSuperseded", firstErr)
	}
	if firstOpen {
		t.Error("superseded call should not report open")
	}
	if !open {
		t.Error("newest call should open the panel")
	}

	p, _ := doc.Panel("t1")
	if !p.Open || !p.Loaded || p.Error != "" {
		t.Errorf("panel = %+v, want open, loaded, no error", p)
	}
	if n := fetcher.count("tutorials/intro.md"); n != 2 {
		t.Errorf("intro.md fetched %d times, want 2", n)
	}
}

func TestShowTopic_ConcurrentDistinctTopics(t *testing.T) {
	v, doc, _ := setup(t)

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for _, id := range []string{"t1", "quiz1", "risk-config"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := v.ShowTopic(t.Context(), id); err != nil {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Fatalf("%d concurrent loads failed", failed.Load())
	}
	for _, id := range []string{"t1", "quiz1", "risk-config"} {
		if !doc.Loaded(id) {
			t.Errorf("%s not loaded", id)
		}
	}
}
