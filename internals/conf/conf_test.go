package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	original := config
	config = nil
	t.Cleanup(func() { config = original })

	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	got := GetConfig()
	if got.Server.DataDir != filepath.Join(tmp, ".docpipe") {
		t.Fatalf("expected default data dir, got %q", got.Server.DataDir)
	}
	if got.Queue.Name != "task_queue" {
		t.Fatalf("expected default queue name, got %q", got.Queue.Name)
	}
	if got.Queue.RetryMax != 3 {
		t.Fatalf("expected retry max 3, got %d", got.Queue.RetryMax)
	}
	if got.Worker.Count != 1 {
		t.Fatalf("expected 1 worker, got %d", got.Worker.Count)
	}
	if got.Outcomes.Backend != OutcomeBackendSQLite {
		t.Fatalf("expected sqlite outcome backend, got %q", got.Outcomes.Backend)
	}
	if got.Extraction.ChunkSize != 1000 || got.Extraction.ChunkOverlap != 100 {
		t.Fatalf("expected default chunking, got %+v", got.Extraction)
	}
	if got.Version == "" {
		t.Fatalf("expected version to be set")
	}
}

func TestConfigFileOverrides(t *testing.T) {
	original := config
	config = nil
	t.Cleanup(func() { config = original })

	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	dataDir := filepath.Join(tmp, ".docpipe")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"worker": {"count": 5}, "outcomes": {"backend": "file"}, "knowledge": {"top_k": 9}}`
	if err := os.WriteFile(filepath.Join(dataDir, "docpipe.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	got := GetConfig()
	if got.Worker.Count != 5 {
		t.Fatalf("expected 5 workers, got %d", got.Worker.Count)
	}
	if got.Outcomes.Backend != OutcomeBackendFile {
		t.Fatalf("expected file outcome backend, got %q", got.Outcomes.Backend)
	}
	if got.Knowledge.TopK != 9 {
		t.Fatalf("expected top_k 9, got %d", got.Knowledge.TopK)
	}
	if got.Queue.Name != "task_queue" {
		t.Fatalf("unset keys should keep defaults, got queue name %q", got.Queue.Name)
	}
}
