// Package pdfreader is the text-extraction collaborator: it pulls the full
// text out of a PDF on the local filesystem and splits it into overlapping
// chunks sized for the knowledge store.
package pdfreader

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrRead     = errors.New("failed to read document")
)

type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

// ReadContent returns the plain text of every page, concatenated in page
// order. A missing path is ErrNotFound; corrupt or unreadable input is
// ErrRead with the cause attached.
func (l *Local) ReadContent(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	return buf.String(), nil
}
