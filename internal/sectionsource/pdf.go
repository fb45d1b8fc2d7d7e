package sectionsource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdfx "github.com/ledongthuc/pdf"

	"github.com/example/diagram-agent/internal/models"
)

const pdfMaxPages = 40

// FromPDF extracts one section per page of a PDF document. The pdf library
// wants a file path, so the bytes go through a temp file.
func FromPDF(data []byte) ([]models.Section, error) {
	dir, err := os.MkdirTemp("", "diagram-agent-pdf")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, err
	}

	f, r, err := pdfx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sectionsource: open pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > pdfMaxPages {
		pages = pdfMaxPages
	}
	var sections []models.Section
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		txt = strings.TrimSpace(txt)
		if txt == "" {
			continue
		}
		sections = append(sections, models.Section{
			ID:      fmt.Sprintf("page-%d", i),
			Heading: fmt.Sprintf("Page %d", i),
			Text:    txt,
		})
	}
	return Normalize(sections), nil
}
