package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"story-localizer/internal/types"
)

func TestNewResultManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewResultManager(tempDir, "run-1", types.PassTranslate)
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}

	if manager.GetBaseDir() != tempDir {
		t.Errorf("Expected base dir %s, got %s", tempDir, manager.GetBaseDir())
	}
	m := manager.Manifest()
	if m.RunID != "run-1" || m.Pass != types.PassTranslate {
		t.Errorf("unexpected manifest header %+v", m)
	}
	if len(m.Documents) != 0 {
		t.Errorf("Expected empty manifest, got %d documents", len(m.Documents))
	}
}

func TestAddReplacesSamePath(t *testing.T) {
	manager, err := NewResultManager(t.TempDir(), "run-1", types.PassDedupe)
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}

	manager.Add(&DocumentResult{Path: "a.json", Status: StatusFailed})
	manager.Add(&DocumentResult{Path: "b.json", Status: StatusOK})
	manager.Add(&DocumentResult{Path: "a.json", Status: StatusOK, Removed: 2})

	m := manager.Manifest()
	if len(m.Documents) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(m.Documents))
	}
	if m.Documents[0].Path != "a.json" || m.Documents[0].Removed != 2 {
		t.Errorf("Expected replaced result first, got %+v", m.Documents[0])
	}
	if m.Documents[0].ProcessedAt.IsZero() {
		t.Error("ProcessedAt should be stamped")
	}
	if m.Count(StatusOK) != 2 || m.Count(StatusFailed) != 0 {
		t.Errorf("unexpected counts ok=%d failed=%d", m.Count(StatusOK), m.Count(StatusFailed))
	}
}

func TestSaveAndLoadManifest(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewResultManager(tempDir, "run/1", types.PassPolish)
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}
	manager.Add(&DocumentResult{
		Path:       "stories-de.json",
		Output:     "stories-de.polished.json",
		Status:     StatusPartial,
		SourceHash: HashBytes([]byte("{}")),
		Leaves:     3,
		Replaced:   2,
		Failed:     1,
	})

	path, err := manager.Save()
	if err != nil {
		t.Fatalf("Failed to save manifest: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(tempDir, "run_1") {
		t.Errorf("Expected sanitized run dir, got %s", path)
	}

	loaded, err := manager.LoadManifest("run/1")
	if err != nil {
		t.Fatalf("Failed to load manifest: %v", err)
	}
	if loaded.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set on save")
	}
	if len(loaded.Documents) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(loaded.Documents))
	}
	doc := loaded.Documents[0]
	if doc.Status != StatusPartial || doc.Replaced != 2 || doc.Failed != 1 {
		t.Errorf("unexpected document %+v", doc)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	tempDir := t.TempDir()
	manager, _ := NewResultManager(tempDir, "run-1", types.PassAudit)

	runDir := manager.GetRunDir("broken")
	if err := os.MkdirAll(runDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "manifest.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := manager.LoadManifest("broken")
	if !types.IsCode(err, types.ErrParse) {
		t.Errorf("Expected PARSE_ERROR, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	tempDir := t.TempDir()

	older, _ := NewResultManager(tempDir, "older", types.PassTranslate)
	if _, err := older.Save(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	newer, _ := NewResultManager(tempDir, "newer", types.PassValidate)
	if _, err := newer.Save(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// Directories without a manifest are ignored
	if err := os.MkdirAll(filepath.Join(tempDir, "stray"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := newer.ListRuns()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "newer" || runs[1].RunID != "older" {
		t.Errorf("Expected newest first, got %s, %s", runs[0].RunID, runs[1].RunID)
	}

	if err := newer.DeleteRun("older"); err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}
	runs, _ = newer.ListRuns()
	if len(runs) != 1 {
		t.Errorf("Expected 1 run after delete, got %d", len(runs))
	}
}

func TestSanitizeRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0b6c1f3e-2d4a", "0b6c1f3e-2d4a"},
		{"a/b", "a_b"},
		{"a:b\\c", "a_b_c"},
	}

	for _, tt := range tests {
		if got := sanitizeRunID(tt.input); got != tt.expected {
			t.Errorf("sanitizeRunID(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCalculateFileHash(t *testing.T) {
	tempDir := t.TempDir()

	testContent := []byte(`{"story":[{"id":1,"text":"Hello, World!"}]}`)
	testFile := filepath.Join(tempDir, "stories-en.json")
	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	hash, err := CalculateFileHash(testFile)
	if err != nil {
		t.Fatalf("Failed to calculate hash: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(hash))
	}
	if hash != HashBytes(testContent) {
		t.Error("file hash and byte hash disagree")
	}
	if hash == HashBytes([]byte("other")) {
		t.Error("different content should hash differently")
	}
}

func TestCalculateFileHash_NonExistent(t *testing.T) {
	_, err := CalculateFileHash("/nonexistent/file.json")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}
