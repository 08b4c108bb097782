// Package extract pulls plain text out of manuscript PDFs and trims it down
// to the body prose the rest of the pipeline works on.
package extract

import (
	"fmt"
	"io"
	"strings"

	"citegap/internal/util"

	"github.com/ledongthuc/pdf"
)

// Options selects which parts of the extracted text are removed.
type Options struct {
	// RemoveReferences drops everything from the first "References" heading on.
	RemoveReferences bool
	// RemoveAbstract drops everything up to and including the first "Abstract"
	// heading. Text with no such heading is an input error.
	RemoveAbstract bool
	// RemoveReferenceMarkers strips inline citation markers.
	RemoveReferenceMarkers bool
}

// Text extracts plain text from the PDF at path and applies the requested
// removals. A PDF with no extractable text is an error.
func Text(path string, opts Options) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text %s: %w", path, err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("read text %s: %w", path, err)
	}
	text := util.SanitizeText(b.String())
	if text == "" {
		return "", util.ErrNoExtractableText
	}
	return Clean(text, opts)
}

// Clean applies the section and marker removals to already-extracted text.
// References are cut before the abstract split so a "References" heading never
// masks a missing abstract.
func Clean(text string, opts Options) (string, error) {
	if opts.RemoveReferences {
		text, _, _ = strings.Cut(text, "References")
	}
	if opts.RemoveAbstract {
		_, after, found := strings.Cut(text, "Abstract")
		if !found {
			return "", util.ErrNoAbstractSection
		}
		text = after
	}
	if opts.RemoveReferenceMarkers {
		text = util.StripCitationMarkers(text)
	}
	return strings.TrimSpace(text), nil
}
