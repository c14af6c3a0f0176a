// Package page is a headless stand-in for the training page: level
// navigation, topic panels, checklist controls, feedback areas and the
// progress bar. Every method is safe for concurrent use.
package page

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/progress"
)

// ErrNoPanel is returned for operations on an unknown topic panel.
var ErrNoPanel = errors.New("no such panel")

// Feedback is the text and style shown in a feedback area.
type Feedback struct {
	Text     string `json:"text"`
	Positive bool   `json:"positive"`
}

// Class returns the CSS class name of the feedback style.
func (f Feedback) Class() string {
	if f.Positive {
		return "correct"
	}
	return "incorrect"
}

// QuizView is a rendered quiz: prompts and exclusive-choice options.
type QuizView struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []QuestionView `json:"questions"`
}

// QuestionView is one rendered question with its selection and feedback.
type QuestionView struct {
	ID       string          `json:"id"`
	Prompt   string          `json:"prompt"`
	Options  []course.Option `json:"options"`
	Selected string          `json:"selected,omitempty"`
	Feedback *Feedback       `json:"feedback,omitempty"`
}

// ExerciseView is a rendered exercise with its editable text area.
type ExerciseView struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Checker     string    `json:"checker"`
	Text        string    `json:"text"`
	Feedback    *Feedback `json:"feedback,omitempty"`
}

// Control is a trackable checklist control.
type Control struct {
	ID      string `json:"id"`
	TopicID string `json:"topic_id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// Panel is the content area of one topic.
type Panel struct {
	TopicID  string        `json:"topic_id"`
	Title    string        `json:"title"`
	Kind     course.Kind   `json:"kind"`
	Open     bool          `json:"open"`
	Loaded   bool          `json:"loaded"`
	HTML     string        `json:"html,omitempty"`
	Quiz     *QuizView     `json:"quiz,omitempty"`
	Exercise *ExerciseView `json:"exercise,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// LevelView is a level panel with its navigation control.
type LevelView struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Duration      string   `json:"duration"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	TopicIDs      []string `json:"topic_ids"`
	Active        bool     `json:"active"`
}

// Snapshot is a deep copy of the whole document.
type Snapshot struct {
	Title    string            `json:"title"`
	Levels   []LevelView       `json:"levels"`
	Panels   []Panel           `json:"panels"`
	Controls []Control         `json:"controls"`
	Progress progress.Progress `json:"progress"`
}

// Document holds the state of one learner's page.
type Document struct {
	mu       sync.RWMutex
	title    string
	levels   []*LevelView
	panels   map[string]*Panel
	order    []string // panel render order
	controls []*Control
	owners   map[string]string // question id -> quiz topic id
	progress progress.Progress
}

// New creates an empty document.
func New() *Document {
	return &Document{
		panels: make(map[string]*Panel),
		owners: make(map[string]string),
	}
}

// RenderManifest builds level panels, empty unloaded topic panels and one
// checklist control per topic checkpoint. Any previous content is replaced.
func (d *Document) RenderManifest(m course.Manifest) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.title = m.Title
	d.levels = d.levels[:0]
	d.panels = make(map[string]*Panel)
	d.order = d.order[:0]
	d.controls = d.controls[:0]
	d.owners = make(map[string]string)

	for _, level := range m.Levels {
		lv := &LevelView{
			ID:            level.ID,
			Title:         level.Title,
			Duration:      level.Duration,
			Prerequisites: slices.Clone(level.Prerequisites),
		}
		for _, t := range level.Topics {
			lv.TopicIDs = append(lv.TopicIDs, t.ID)
			if _, dup := d.panels[t.ID]; !dup {
				d.panels[t.ID] = &Panel{TopicID: t.ID, Title: t.Title, Kind: t.Kind}
				d.order = append(d.order, t.ID)
			}
			for i, cp := range t.Checkpoints {
				d.controls = append(d.controls, &Control{
					ID:      ControlID(t.ID, i),
					TopicID: t.ID,
					Label:   cp,
				})
			}
		}
		d.levels = append(d.levels, lv)
	}
}

// ControlID returns the id of the i-th checkpoint control of a topic.
func ControlID(topicID string, i int) string {
	return fmt.Sprintf("%s:%d", topicID, i)
}

// Snapshot returns a deep copy of the document state.
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		Title:    d.title,
		Levels:   make([]LevelView, 0, len(d.levels)),
		Panels:   make([]Panel, 0, len(d.order)),
		Controls: make([]Control, 0, len(d.controls)),
		Progress: d.progress,
	}
	for _, lv := range d.levels {
		c := *lv
		c.TopicIDs = slices.Clone(lv.TopicIDs)
		c.Prerequisites = slices.Clone(lv.Prerequisites)
		s.Levels = append(s.Levels, c)
	}
	for _, id := range d.order {
		s.Panels = append(s.Panels, copyPanel(d.panels[id]))
	}
	for _, c := range d.controls {
		s.Controls = append(s.Controls, *c)
	}
	return s
}

// Panel returns a copy of one topic panel.
func (d *Document) Panel(topicID string) (Panel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.panels[topicID]
	if !ok {
		return Panel{}, false
	}
	return copyPanel(p), true
}

func copyPanel(p *Panel) Panel {
	c := *p
	if p.Quiz != nil {
		q := *p.Quiz
		q.Questions = make([]QuestionView, len(p.Quiz.Questions))
		for i, qv := range p.Quiz.Questions {
			qv.Options = slices.Clone(qv.Options)
			if qv.Feedback != nil {
				fb := *qv.Feedback
				qv.Feedback = &fb
			}
			q.Questions[i] = qv
		}
		c.Quiz = &q
	}
	if p.Exercise != nil {
		e := *p.Exercise
		if e.Feedback != nil {
			fb := *e.Feedback
			e.Feedback = &fb
		}
		c.Exercise = &e
	}
	return c
}
