// Package sectionsource adapts raw caller input into the Section list the
// pipeline consumes. The real extractor is an external collaborator; these
// adapters cover the common cases of pre-extracted JSON, markdown and PDF.
package sectionsource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/diagram-agent/internal/models"
)

// Normalize fills in the derived Section fields callers routinely omit:
// IDs, word counts and empty-text pruning.
func Normalize(sections []models.Section) []models.Section {
	out := make([]models.Section, 0, len(sections))
	for i, s := range sections {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("sec-%d", i+1)
		}
		if s.Heading == "" {
			s.Heading = fmt.Sprintf("Section %d", i+1)
		}
		if s.WordCount == 0 {
			s.WordCount = len(strings.Fields(s.Text))
		}
		out = append(out, s)
	}
	return out
}

// FromJSON decodes a pre-extracted section list.
func FromJSON(data []byte) ([]models.Section, error) {
	var sections []models.Section
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("sectionsource: decode sections: %w", err)
	}
	return Normalize(sections), nil
}
