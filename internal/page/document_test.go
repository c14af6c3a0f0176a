package page_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/page"
)

func testManifest() course.Manifest {
	return course.Manifest{
		Title: "Course",
		Levels: []course.Level{
			{ID: 1, Title: "One", Topics: []course.Topic{
				{ID: "t1", Title: "Intro", Kind: course.KindTutorial, Content: "intro.md", Checkpoints: []string{"a", "b"}},
				{ID: "quiz1", Title: "Quiz", Kind: course.KindQuiz, Content: "quiz1.json"},
			}},
			{ID: 2, Title: "Two", Prerequisites: []string{"One"}, Topics: []course.Topic{
				{ID: "ex1", Title: "Exercise", Kind: course.KindExercise, Content: "ex1.json", Checkpoints: []string{"c"}},
			}},
		},
	}
}

func TestDocument_RenderManifest(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	snap := doc.Snapshot()
	if snap.Title != "Course" {
		t.Errorf("Title = %q, want Course", snap.Title)
	}
	if len(snap.Levels) != 2 || len(snap.Panels) != 3 {
		t.Fatalf("levels=%d panels=%d, want 2 and 3", len(snap.Levels), len(snap.Panels))
	}
	for _, p := range snap.Panels {
		if p.Open || p.Loaded {
			t.Errorf("panel %s should start closed and unloaded", p.TopicID)
		}
	}

	want := []string{"t1:0", "t1:1", "ex1:0"}
	if got := doc.TrackableIDs(); !slices.Equal(got, want) {
		t.Errorf("TrackableIDs() = %v, want %v", got, want)
	}
	if got := doc.LevelIDs(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("LevelIDs() = %v, want [1 2]", got)
	}
}

func TestDocument_Toggle(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	open, err := doc.Toggle("t1")
	if err != nil || !open {
		t.Fatalf("Toggle() = %v, %v; want open", open, err)
	}
	open, _ = doc.Toggle("t1")
	if open {
		t.Error("second Toggle() should close the panel")
	}

	if _, err := doc.Toggle("missing"); !errors.Is(err, page.ErrNoPanel) {
		t.Errorf("Toggle(missing) error = %v, want ErrNoPanel", err)
	}
}

func TestDocument_HideOthers(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())
	doc.Toggle("t1")
	doc.Toggle("quiz1")

	doc.HideOthers("quiz1")

	if p, _ := doc.Panel("t1"); p.Open {
		t.Error("t1 should be hidden")
	}
	if p, _ := doc.Panel("quiz1"); !p.Open {
		t.Error("quiz1 should stay open")
	}
}

func TestDocument_ShowContentReplacesPrevious(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	doc.ShowError("t1", "boom")
	doc.ShowHTML("t1", "<p>ok</p>")

	p, _ := doc.Panel("t1")
	if p.Error != "" || p.HTML != "<p>ok</p>" {
		t.Errorf("panel = %+v, want HTML without error", p)
	}
}

func TestDocument_QuizFeedback(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	err := doc.ShowQuiz("quiz1", page.QuizView{
		Title: "Quiz",
		Questions: []page.QuestionView{
			{ID: "q1", Prompt: "?", Options: []course.Option{{ID: "a", Text: "A"}}},
		},
	})
	if err != nil {
		t.Fatalf("ShowQuiz() error = %v", err)
	}

	owner, ok := doc.QuizTopic("q1")
	if !ok || owner != "quiz1" {
		t.Errorf("QuizTopic(q1) = %q, %v; want quiz1", owner, ok)
	}

	if err := doc.SetQuestionFeedback("q1", "a", page.Feedback{Text: "Nice!", Positive: true}); err != nil {
		t.Fatalf("SetQuestionFeedback() error = %v", err)
	}
	p, _ := doc.Panel("quiz1")
	fb := p.Quiz.Questions[0].Feedback
	if fb == nil || fb.Text != "Nice!" || fb.Class() != "correct" {
		t.Errorf("feedback = %+v, want positive Nice!", fb)
	}
	if p.Quiz.Questions[0].Selected != "a" {
		t.Errorf("Selected = %q, want a", p.Quiz.Questions[0].Selected)
	}

	if err := doc.SetQuestionFeedback("unknown", "a", page.Feedback{}); !errors.Is(err, page.ErrNoPanel) {
		t.Errorf("SetQuestionFeedback(unknown) error = %v, want ErrNoPanel", err)
	}
}

func TestDocument_Exercise(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	if _, _, err := doc.ExerciseText("ex1"); !errors.Is(err, page.ErrNoPanel) {
		t.Errorf("ExerciseText() before render error = %v, want ErrNoPanel", err)
	}

	doc.ShowExercise("ex1", page.ExerciseView{Title: "Ex", Checker: "configuration", Text: "template"})
	doc.SetExerciseText("ex1", "edited")
	doc.SetExerciseFeedback("ex1", page.Feedback{Text: "bad"})

	text, checker, err := doc.ExerciseText("ex1")
	if err != nil || text != "edited" || checker != "configuration" {
		t.Errorf("ExerciseText() = %q, %q, %v", text, checker, err)
	}
	p, _ := doc.Panel("ex1")
	if p.Exercise.Feedback == nil || p.Exercise.Feedback.Class() != "incorrect" {
		t.Errorf("exercise feedback = %+v, want incorrect", p.Exercise.Feedback)
	}
}

func TestDocument_Controls(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	if !doc.SetChecked("t1:1", true) {
		t.Fatal("SetChecked(t1:1) should find the control")
	}
	if doc.SetChecked("nope", true) {
		t.Error("SetChecked(nope) should report a missing control")
	}
	if !doc.IsChecked("t1:1") || doc.IsChecked("t1:0") {
		t.Error("only t1:1 should be checked")
	}
}

func TestDocument_ActivateLevel(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())

	if err := doc.ActivateLevel(2); err != nil {
		t.Fatalf("ActivateLevel(2) error = %v", err)
	}
	if err := doc.ActivateLevel(2); err != nil {
		t.Fatalf("repeated ActivateLevel(2) error = %v", err)
	}

	active := 0
	for _, lv := range doc.Snapshot().Levels {
		if lv.Active {
			active++
		}
	}
	if active != 1 || doc.ActiveLevel() != 2 {
		t.Errorf("active levels = %d (level %d), want exactly level 2", active, doc.ActiveLevel())
	}

	if err := doc.ActivateLevel(9); err == nil {
		t.Error("ActivateLevel(9) should fail for a level that was not rendered")
	}
	if doc.ActiveLevel() != 2 {
		t.Error("unknown level must not change the active level")
	}
}

func TestDocument_SnapshotIsCopy(t *testing.T) {
	doc := page.New()
	doc.RenderManifest(testManifest())
	doc.ShowExercise("ex1", page.ExerciseView{Text: "original"})

	snap := doc.Snapshot()
	snap.Levels[0].TopicIDs[0] = "mutated"
	for i := range snap.Panels {
		if snap.Panels[i].Exercise != nil {
			snap.Panels[i].Exercise.Text = "mutated"
		}
	}

	again := doc.Snapshot()
	if again.Levels[0].TopicIDs[0] != "t1" {
		t.Error("snapshot levels alias document state")
	}
	if text, _, _ := doc.ExerciseText("ex1"); text != "original" {
		t.Error("snapshot panels alias document state")
	}
}
