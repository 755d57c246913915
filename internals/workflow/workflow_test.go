package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docpipe/internals/schemas"
)

func TestResolveEmbeddedDefaults(t *testing.T) {
	store := NewStore(t.TempDir())

	descriptor, err := store.Resolve(NameDefaultAnalysis)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if descriptor.Name != NameDefaultAnalysis {
		t.Fatalf("name = %q", descriptor.Name)
	}
	if len(descriptor.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(descriptor.Steps))
	}
	if descriptor.Steps[0].Stage != "extract" || descriptor.Steps[0].Command != "parse_and_chunk_pdf" {
		t.Fatalf("first step = %+v", descriptor.Steps[0])
	}
	if descriptor.Steps[3].Stage != "delivery" {
		t.Fatalf("last step = %+v", descriptor.Steps[3])
	}

	invoice, err := store.Resolve(NameInvoiceExtract)
	if err != nil {
		t.Fatalf("Resolve invoice: %v", err)
	}
	if len(invoice.Steps) != 3 {
		t.Fatalf("invoice steps = %d, want 3", len(invoice.Steps))
	}
}

func TestResolvePrefersDirectoryOverEmbedded(t *testing.T) {
	dir := t.TempDir()
	raw := `
name: default_pdf_analysis
description: shortened for tests
steps:
  - stage: extract
    command: parse_and_chunk_pdf
  - stage: delivery
    command: format_final_report
`
	if err := os.WriteFile(filepath.Join(dir, "default_pdf_analysis.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir)
	descriptor, err := store.Resolve(NameDefaultAnalysis)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(descriptor.Steps) != 2 {
		t.Fatalf("expected directory descriptor to win, got %d steps", len(descriptor.Steps))
	}
}

func TestResolveUnknownName(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Resolve("no_such_workflow"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveRejectsPathLikeNames(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, name := range []string{"../etc/passwd", "UPPER", "spa ce", ""} {
		if _, err := store.Resolve(name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("name %q: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestResolveRejectsInvalidDescriptor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "empty_steps.yaml"), []byte("name: empty_steps\nsteps: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "not_yaml.yaml"), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir)
	if _, err := store.Resolve("empty_steps"); err == nil {
		t.Fatal("expected error for descriptor without steps")
	}
	if _, err := store.Resolve("not_yaml"); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestKeywordClassifier(t *testing.T) {
	cases := []struct {
		request string
		want    string
	}{
		{"summarize the risks in this document", NameDefaultAnalysis},
		{"extract the Invoice total", NameInvoiceExtract},
		{"processar a fatura", NameInvoiceExtract},
		{"", NameDefaultAnalysis},
	}
	for _, tc := range cases {
		got := KeywordClassifier(schemas.TaskRequest{UserRequest: tc.request})
		if got != tc.want {
			t.Fatalf("KeywordClassifier(%q) = %q, want %q", tc.request, got, tc.want)
		}
	}
}
