// Package pdfextract pulls plain text out of uploaded policy PDFs.
package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText parses r as a PDF and returns its plain text. A PDF without a
// text layer (e.g. a pure scan) yields an empty string and no error; the
// ingest pipeline treats that as a failed document.
func ExtractText(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf bytes failed: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf failed: %w", err)
	}
	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}

	var out strings.Builder
	if _, err := io.Copy(&out, textReader); err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return out.String(), nil
}
