package page

import "fmt"

// HideOthers closes every open panel except topicID.
func (d *Document) HideOthers(topicID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.panels {
		if id != topicID {
			p.Open = false
		}
	}
}

// Loaded reports whether a panel's content has been loaded.
func (d *Document) Loaded(topicID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.panels[topicID]
	return ok && p.Loaded
}

// MarkLoaded sets the loaded flag of a panel.
func (d *Document) MarkLoaded(topicID string) error {
	return d.withPanel(topicID, func(p *Panel) {
		p.Loaded = true
	})
}

// Toggle flips a panel's visibility and returns the new state.
func (d *Document) Toggle(topicID string) (bool, error) {
	var open bool
	err := d.withPanel(topicID, func(p *Panel) {
		p.Open = !p.Open
		open = p.Open
	})
	return open, err
}

// ShowHTML replaces a panel's content with rendered markup.
func (d *Document) ShowHTML(topicID, html string) error {
	return d.withPanel(topicID, func(p *Panel) {
		p.HTML, p.Quiz, p.Exercise, p.Error = html, nil, nil, ""
	})
}

// ShowQuiz replaces a panel's content with a quiz and records which quiz
// each question belongs to.
func (d *Document) ShowQuiz(topicID string, q QuizView) error {
	return d.withPanel(topicID, func(p *Panel) {
		p.HTML, p.Quiz, p.Exercise, p.Error = "", &q, nil, ""
		for _, qv := range q.Questions {
			d.owners[qv.ID] = topicID
		}
	})
}

// ShowExercise replaces a panel's content with an exercise editor.
func (d *Document) ShowExercise(topicID string, e ExerciseView) error {
	return d.withPanel(topicID, func(p *Panel) {
		p.HTML, p.Quiz, p.Exercise, p.Error = "", nil, &e, ""
	})
}

// ShowError replaces a panel's content with an inline error message.
func (d *Document) ShowError(topicID, msg string) error {
	return d.withPanel(topicID, func(p *Panel) {
		p.HTML, p.Quiz, p.Exercise, p.Error = "", nil, nil, msg
	})
}

// QuizTopic returns the quiz topic that rendered a question.
func (d *Document) QuizTopic(questionID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.owners[questionID]
	return id, ok
}

// SetQuestionFeedback records the selected option and feedback of a question.
func (d *Document) SetQuestionFeedback(questionID, selected string, fb Feedback) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.panels[d.owners[questionID]]
	if !ok || p.Quiz == nil {
		return fmt.Errorf("%w: question %s", ErrNoPanel, questionID)
	}
	for i := range p.Quiz.Questions {
		if p.Quiz.Questions[i].ID == questionID {
			p.Quiz.Questions[i].Selected = selected
			p.Quiz.Questions[i].Feedback = &fb
			return nil
		}
	}
	return fmt.Errorf("%w: question %s", ErrNoPanel, questionID)
}

// ExerciseText returns the current text of an exercise editor and the
// checker it is bound to.
func (d *Document) ExerciseText(topicID string) (text, checker string, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.panels[topicID]
	if !ok || p.Exercise == nil {
		return "", "", fmt.Errorf("%w: exercise %s", ErrNoPanel, topicID)
	}
	return p.Exercise.Text, p.Exercise.Checker, nil
}

// SetExerciseText replaces the text of an exercise editor.
func (d *Document) SetExerciseText(topicID, text string) error {
	return d.withExercise(topicID, func(e *ExerciseView) {
		e.Text = text
	})
}

// SetExerciseFeedback shows feedback under an exercise editor.
func (d *Document) SetExerciseFeedback(topicID string, fb Feedback) error {
	return d.withExercise(topicID, func(e *ExerciseView) {
		e.Feedback = &fb
	})
}

func (d *Document) withPanel(topicID string, fn func(p *Panel)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.panels[topicID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPanel, topicID)
	}
	fn(p)
	return nil
}

func (d *Document) withExercise(topicID string, fn func(e *ExerciseView)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.panels[topicID]
	if !ok || p.Exercise == nil {
		return fmt.Errorf("%w: exercise %s", ErrNoPanel, topicID)
	}
	fn(p.Exercise)
	return nil
}
