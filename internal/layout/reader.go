package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadExtract decodes a DocumentExtract from r and validates the page
// geometry contract. Empty span/heading lists are valid input; negative
// or zero page numbers are not.
func ReadExtract(r io.Reader) (*DocumentExtract, error) {
	var extract DocumentExtract
	dec := json.NewDecoder(r)
	if err := dec.Decode(&extract); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}

	if err := extract.Validate(); err != nil {
		return nil, err
	}

	return &extract, nil
}

// ReadExtractFile loads a DocumentExtract from a JSON file. When the
// extract carries no doc_id, the file stem is used, mirroring how the
// extraction side derives it from the source PDF name.
func ReadExtractFile(path string) (*DocumentExtract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extraction file: %w", err)
	}
	defer f.Close()

	extract, err := ReadExtract(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if extract.DocID == "" {
		base := filepath.Base(path)
		extract.DocID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return extract, nil
}

// Validate checks the programmer-level contract on extracted geometry.
// It does not reject empty documents; those produce empty output downstream.
func (d *DocumentExtract) Validate() error {
	if d.TotalPages < 0 {
		return fmt.Errorf("invalid total_pages: %d", d.TotalPages)
	}

	for _, page := range d.Pages {
		if page.PageNumber < 1 {
			return fmt.Errorf("invalid page number: %d", page.PageNumber)
		}
		for _, span := range page.TextSpans {
			if span.Page < 1 {
				return fmt.Errorf("text span with invalid page %d on page %d", span.Page, page.PageNumber)
			}
		}
		for _, img := range page.ImageSpans {
			if img.Page < 1 {
				return fmt.Errorf("image span with invalid page %d on page %d", img.Page, page.PageNumber)
			}
		}
		for _, h := range page.Headings {
			if h.Level < 1 || h.Level > 6 {
				return fmt.Errorf("heading %q with invalid level %d", h.Text, h.Level)
			}
		}
	}

	return nil
}
