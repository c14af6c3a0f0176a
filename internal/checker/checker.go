// Package checker grades quiz answers and exercise submissions and credits
// the learner's progress on success. Exercises are checked structurally by
// pattern matching; submitted code is never run.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/page"
	"github.com/quantumtrader/academy/internal/progress"
)

// Quizzes fetches quiz definitions.
type Quizzes interface {
	Topic(ctx context.Context, id string) (course.Topic, error)
	Quiz(ctx context.Context, t course.Topic) (course.Quiz, error)
}

// Document is the part of the page the checker reads answers from and writes
// feedback to.
type Document interface {
	QuizTopic(questionID string) (string, bool)
	SetQuestionFeedback(questionID, selected string, fb page.Feedback) error
	ExerciseText(topicID string) (text, checker string, err error)
	SetExerciseFeedback(topicID string, fb page.Feedback) error
}

// Crediter records one-time completions.
type Crediter interface {
	Credit(ctx context.Context, key string) (bool, error)
}

// Checker grades answers against the course content.
type Checker struct {
	quizzes  Quizzes
	doc      Document
	progress Crediter
}

// New creates a checker.
func New(quizzes Quizzes, doc Document, progress Crediter) *Checker {
	return &Checker{quizzes: quizzes, doc: doc, progress: progress}
}

// CheckAnswer grades the selected option of a quiz question and shows the
// question's feedback. The first correct answer credits the question once.
// Any failure to look the question up shows a generic error message.
func (c *Checker) CheckAnswer(ctx context.Context, questionID, optionID string) page.Feedback {
	fb, err := c.gradeAnswer(ctx, questionID, optionID)
	if err != nil {
		slog.Warn("checking answer failed", "question", questionID, "error", err)
		fb = page.Feedback{Text: msgAnswerError}
	}
	if err := c.doc.SetQuestionFeedback(questionID, optionID, fb); err != nil {
		slog.Warn("showing answer feedback failed", "question", questionID, "error", err)
	}
	return fb
}

func (c *Checker) gradeAnswer(ctx context.Context, questionID, optionID string) (page.Feedback, error) {
	topicID, ok := c.doc.QuizTopic(questionID)
	if !ok {
		return page.Feedback{}, fmt.Errorf("question %s is not rendered", questionID)
	}
	t, err := c.quizzes.Topic(ctx, topicID)
	if err != nil {
		return page.Feedback{}, err
	}
	quiz, err := c.quizzes.Quiz(ctx, t)
	if err != nil {
		return page.Feedback{}, err
	}
	q, ok := quiz.Question(questionID)
	if !ok {
		return page.Feedback{}, fmt.Errorf("question %s not in quiz %s", questionID, topicID)
	}

	if optionID != q.CorrectAnswer {
		return page.Feedback{Text: q.Feedback.Incorrect}, nil
	}
	c.credit(ctx, progress.QuizKey(questionID))
	return page.Feedback{Text: q.Feedback.Correct, Positive: true}, nil
}

// CheckExercise grades an exercise with the checker it is bound to.
func (c *Checker) CheckExercise(ctx context.Context, topicID string) page.Feedback {
	_, name, err := c.doc.ExerciseText(topicID)
	if err != nil {
		return c.exerciseError(topicID, err)
	}
	switch name {
	case course.CheckerConfiguration:
		return c.CheckConfiguration(ctx, topicID)
	case course.CheckerAlgorithm:
		return c.CheckAlgorithm(ctx, topicID)
	}
	fb := page.Feedback{Text: msgUnknownChecker}
	c.showExercise(topicID, fb)
	return fb
}

// CheckConfiguration validates a risk configuration exercise and credits
// it once on success.
func (c *Checker) CheckConfiguration(ctx context.Context, topicID string) page.Feedback {
	return c.checkExercise(ctx, topicID, CheckConfigurationText, progress.ConfigExerciseKey)
}

// CheckAlgorithm validates a band algorithm exercise and credits it once on
// success.
func (c *Checker) CheckAlgorithm(ctx context.Context, topicID string) page.Feedback {
	return c.checkExercise(ctx, topicID, CheckAlgorithmText, progress.AlgorithmExerciseKey)
}

func (c *Checker) checkExercise(ctx context.Context, topicID string, check func(string) Result, key string) page.Feedback {
	text, _, err := c.doc.ExerciseText(topicID)
	if err != nil {
		return c.exerciseError(topicID, err)
	}

	res := check(text)
	if res.OK {
		c.credit(ctx, key)
	}
	fb := page.Feedback{Text: res.Message, Positive: res.OK}
	c.showExercise(topicID, fb)
	return fb
}

func (c *Checker) exerciseError(topicID string, err error) page.Feedback {
	slog.Warn("checking exercise failed", "topic", topicID, "error", err)
	fb := page.Feedback{Text: msgExerciseError}
	c.showExercise(topicID, fb)
	return fb
}

func (c *Checker) showExercise(topicID string, fb page.Feedback) {
	if err := c.doc.SetExerciseFeedback(topicID, fb); err != nil && !errors.Is(err, page.ErrNoPanel) {
		slog.Warn("showing exercise feedback failed", "topic", topicID, "error", err)
	}
}

// credit logs storage failures; the in-memory credit still counts.
func (c *Checker) credit(ctx context.Context, key string) {
	first, err := c.progress.Credit(ctx, key)
	if err != nil {
		slog.Error("persisting progress credit", "key", key, "error", err)
		return
	}
	if first {
		slog.Info("progress credited", "key", key)
	}
}
