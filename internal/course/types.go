package course

import "strings"

// Kind identifies how a topic's content is presented.
type Kind string

const (
	KindTutorial Kind = "tutorial"
	KindQuiz     Kind = "quiz"
	KindExercise Kind = "exercise"
)

// Valid reports whether k is one of the known topic kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTutorial, KindQuiz, KindExercise:
		return true
	}
	return false
}

// Manifest is the course manifest loaded from course.json or course.yaml.
type Manifest struct {
	Title  string  `json:"title" yaml:"title"`
	Levels []Level `json:"levels" yaml:"levels"`
}

// Level is an ordered group of topics.
type Level struct {
	ID            int      `json:"id" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	Duration      string   `json:"duration" yaml:"duration"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites"`
	Topics        []Topic  `json:"topics" yaml:"topics"`
}

// Topic is one addressable unit of course content.
type Topic struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Kind        Kind     `json:"type" yaml:"type"`
	Content     string   `json:"content" yaml:"content"`
	Checkpoints []string `json:"checkpoints,omitempty" yaml:"checkpoints"`
}

// Quiz is the content of a quiz topic.
type Quiz struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Question is a single multiple-choice quiz question.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"question"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Feedback      Feedback `json:"feedback"`
}

// Option is one selectable answer of a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Feedback holds the messages shown after answering a question.
type Feedback struct {
	Correct   string `json:"correct"`
	Incorrect string `json:"incorrect"`
}

// Exercise checker names.
const (
	CheckerConfiguration = "configuration"
	CheckerAlgorithm     = "algorithm"
)

// Exercise is the content of an exercise topic.
type Exercise struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Template    string `json:"template"`
	Checker     string `json:"checker,omitempty"` // "configuration" or "algorithm"
}

// Question returns the question with the given ID.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Topic scans all levels for the topic with the given ID.
func (m Manifest) Topic(id string) (Topic, bool) {
	for _, level := range m.Levels {
		for _, t := range level.Topics {
			if t.ID == id {
				return t, true
			}
		}
	}
	return Topic{}, false
}

// ContentPath returns the content file path of a topic relative to the
// course root. Tutorials live under tutorials/, everything else under
// exercises/.
func (t Topic) ContentPath() string {
	if t.Kind == KindTutorial {
		return "tutorials/" + t.Content
	}
	return "exercises/" + t.Content
}

// CheckerFor returns the checker bound to an exercise. Exercises that do not
// name one fall back to the topic id: ids mentioning "config" are
// configuration exercises, everything else is an algorithm exercise.
func (e Exercise) CheckerFor(topicID string) string {
	switch e.Checker {
	case CheckerConfiguration, CheckerAlgorithm:
		return e.Checker
	}
	if strings.Contains(strings.ToLower(topicID), "config") {
		return CheckerConfiguration
	}
	return CheckerAlgorithm
}
