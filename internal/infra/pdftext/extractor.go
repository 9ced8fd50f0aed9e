// Package pdftext implements ingest.PDFExtractor over a PDF text-extraction
// library. No repo in the reference corpus bundles one, so this is an
// out-of-pack dependency: github.com/ledongthuc/pdf, a small pure-Go reader
// with no cgo dependency, matching the corpus's general preference for
// pure-Go drivers over cgo bindings.
package pdftext

import (
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Extractor reads plain text out of a PDF file on disk.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractText concatenates the plain text of every page in path.
func (e *Extractor) ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIngest, "open pdf", err)
	}
	defer f.Close()

	var sb strings.Builder
	totalPage := r.NumPage()
	for i := 1; i <= totalPage; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeIngest, "extract pdf page text", err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
