package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TempDBPath(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	return filepath.Join(root, "tasks.db")
}

func TempDataDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// SamplePDFBytes is enough for upload validation, which sniffs the magic
// header rather than parsing the document.
func SamplePDFBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
}

func WriteSamplePDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.pdf")
	if err := os.WriteFile(path, SamplePDFBytes(), 0o644); err != nil {
		t.Fatalf("write sample pdf: %v", err)
	}
	return path
}
