package course

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/*.json
var schemaFS embed.FS

var (
	manifestSchema = mustSchema("schema/manifest.json")
	quizSchema     = mustSchema("schema/quiz.json")
	exerciseSchema = mustSchema("schema/exercise.json")
)

func mustSchema(name string) *gojsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("course: missing embedded schema %s: %v", name, err))
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("course: invalid embedded schema %s: %v", name, err))
	}
	return s
}

// validate checks a document against a schema and reports every violation
// as a single ErrMalformed error.
func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader, path string) error {
	result, err := schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformed, path, strings.Join(msgs, "; "))
}
