// Package evalset loads eval question sets from YAML files.
package evalset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

type fileFormat struct {
	Workspace string                `yaml:"workspace"`
	Questions []domain.EvalQuestion `yaml:"questions"`
}

// Load reads a question set from path. A top-level workspace value applies to
// every question that does not set its own.
func Load(path string) ([]domain.EvalQuestion, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read eval set: %w", err)
	}
	var file fileFormat
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse eval set: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("eval set %s has no questions", path)
	}
	for i := range file.Questions {
		q := &file.Questions[i]
		if q.WorkspaceID == "" {
			q.WorkspaceID = file.Workspace
		}
		if q.ID == "" {
			return nil, fmt.Errorf("eval set %s: question %d has no id", path, i)
		}
		if q.Question == "" {
			return nil, fmt.Errorf("eval set %s: question %s has empty text", path, q.ID)
		}
	}
	return file.Questions, nil
}
