package quizconfig

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// File is the YAML document operators ship to configure course quizzes.
// Courses without an entry simply have no quiz; the engine reports that as
// a recoverable "not available" state, not an error.
type File struct {
	Quizzes []Quiz `yaml:"quizzes"`
}

type Quiz struct {
	CourseID     uuid.UUID  `yaml:"course_id"`
	Title        string     `yaml:"title"`
	MinPassScore int        `yaml:"min_pass_score"`
	Questions    []Question `yaml:"questions"`
}

type Question struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	// CorrectIndex may be omitted (nil); the question then always grades
	// as incorrect rather than failing the quiz load.
	CorrectIndex *int `yaml:"correct_index"`
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quiz config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse quiz config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	seen := make(map[uuid.UUID]bool, len(f.Quizzes))
	for i, q := range f.Quizzes {
		if q.CourseID == uuid.Nil {
			return fmt.Errorf("quiz %d: missing course_id", i)
		}
		if seen[q.CourseID] {
			return fmt.Errorf("quiz %d: duplicate course_id %s", i, q.CourseID)
		}
		seen[q.CourseID] = true
		if q.MinPassScore < 0 || q.MinPassScore > 100 {
			return fmt.Errorf("quiz %d: min_pass_score %d out of range", i, q.MinPassScore)
		}
		if len(q.Questions) == 0 {
			return fmt.Errorf("quiz %d: no questions", i)
		}
		for j, question := range q.Questions {
			if question.Prompt == "" {
				return fmt.Errorf("quiz %d question %d: missing prompt", i, j)
			}
			if len(question.Options) < 2 {
				return fmt.Errorf("quiz %d question %d: needs at least two options", i, j)
			}
			if question.CorrectIndex != nil {
				if *question.CorrectIndex < 0 || *question.CorrectIndex >= len(question.Options) {
					return fmt.Errorf("quiz %d question %d: correct_index %d out of range", i, j, *question.CorrectIndex)
				}
			}
		}
	}
	return nil
}
