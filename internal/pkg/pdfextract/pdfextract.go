package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmpty   = errors.New("pdf is empty")
	ErrNoPages = errors.New("pdf has no pages")
)

type Info struct {
	Pages int
	Size  int64
}

// Inspect parses data as a PDF document and reports its page count. It is
// used to reject uploads that only carry a .pdf name.
func Inspect(data []byte) (info Info, err error) {
	if len(data) == 0 {
		return Info{}, ErrEmpty
	}
	// the parser panics on some malformed cross reference tables
	defer func() {
		if rec := recover(); rec != nil {
			info, err = Info{}, fmt.Errorf("parse pdf failed: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("parse pdf failed: %w", err)
	}
	pages := reader.NumPage()
	if pages <= 0 {
		return Info{}, ErrNoPages
	}
	return Info{Pages: pages, Size: int64(len(data))}, nil
}

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("extract pdf text failed: %v", rec)
		}
	}()
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
