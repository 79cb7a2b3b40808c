// Package results records what each run did to each document.
// It handles writing, listing, and reading run manifests.
package results

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"story-localizer/internal/types"
)

// DocumentStatus represents the outcome of a pass over one document
type DocumentStatus string

const (
	// StatusOK indicates every step succeeded
	StatusOK DocumentStatus = "ok"
	// StatusPartial indicates the document was written but some leaves kept their original text
	StatusPartial DocumentStatus = "partial"
	// StatusFindings indicates a read-only pass reported problems
	StatusFindings DocumentStatus = "findings"
	// StatusFailed indicates the document was left unprocessed
	StatusFailed DocumentStatus = "failed"
)

const manifestFileName = "manifest.json"

// DocumentResult describes what a pass did to one document
type DocumentResult struct {
	Path       string         `json:"path"`
	Output     string         `json:"output,omitempty"`
	Status     DocumentStatus `json:"status"`
	SourceHash string         `json:"source_hash,omitempty"` // BLAKE3 of the input file
	// Transform passes
	Leaves   int `json:"leaves,omitempty"`
	Replaced int `json:"replaced,omitempty"`
	Skipped  int `json:"skipped,omitempty"`
	Failed   int `json:"failed,omitempty"`
	// Structural passes
	Removed  int `json:"removed,omitempty"`
	Findings int `json:"findings,omitempty"`

	ErrorMessage string    `json:"error_message,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Manifest is the record of one run
type Manifest struct {
	RunID      string            `json:"run_id"`
	Pass       types.Pass        `json:"pass"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Documents  []*DocumentResult `json:"documents"`
}

// Count returns the number of documents with the given status
func (m *Manifest) Count(status DocumentStatus) int {
	n := 0
	for _, d := range m.Documents {
		if d.Status == status {
			n++
		}
	}
	return n
}

// ResultManager collects document results for the current run and stores
// manifests under baseDir/<run id>/manifest.json
type ResultManager struct {
	baseDir  string
	mu       sync.Mutex
	manifest *Manifest
}

// NewResultManager creates a ResultManager for a run.
// If baseDir is empty, uses default location in user's home directory
func NewResultManager(baseDir, runID string, pass types.Pass) (*ResultManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".story-localizer", "runs")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &ResultManager{
		baseDir: baseDir,
		manifest: &Manifest{
			RunID:     runID,
			Pass:      pass,
			StartedAt: time.Now(),
			Documents: []*DocumentResult{},
		},
	}, nil
}

// GetBaseDir returns the base directory for manifests
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

// GetRunDir returns the directory path for a specific run
func (m *ResultManager) GetRunDir(runID string) string {
	return filepath.Join(m.baseDir, sanitizeRunID(runID))
}

// Add records the result for one document. A later result for the same
// path replaces the earlier one.
func (m *ResultManager) Add(result *DocumentResult) {
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.manifest.Documents {
		if existing.Path == result.Path {
			m.manifest.Documents[i] = result
			return
		}
	}
	m.manifest.Documents = append(m.manifest.Documents, result)
}

// Manifest returns a snapshot of the current run
func (m *ResultManager) Manifest() *Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *m.manifest
	snapshot.Documents = append([]*DocumentResult(nil), m.manifest.Documents...)
	return &snapshot
}

// Save stamps the finish time and writes the manifest of the current run
func (m *ResultManager) Save() (string, error) {
	m.mu.Lock()
	m.manifest.FinishedAt = time.Now()
	data, err := json.MarshalIndent(m.manifest, "", "  ")
	runID := m.manifest.RunID
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	runDir := m.GetRunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(runDir, manifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadManifest loads the manifest of a stored run
func (m *ResultManager) LoadManifest(runID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(m.GetRunDir(runID), manifestFileName))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, types.NewAppError(types.ErrParse, "invalid manifest", err)
	}
	return &manifest, nil
}

// ListRuns returns stored manifests, newest first
func (m *ResultManager) ListRuns() ([]*Manifest, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Manifest{}, nil
		}
		return nil, err
	}

	var runs []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifest, err := m.LoadManifest(entry.Name())
		if err != nil {
			continue // Skip directories without a readable manifest
		}
		runs = append(runs, manifest)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// DeleteRun deletes a stored run
func (m *ResultManager) DeleteRun(runID string) error {
	return os.RemoveAll(m.GetRunDir(runID))
}

// sanitizeRunID converts a run ID to a safe directory name
func sanitizeRunID(runID string) string {
	safe := strings.ReplaceAll(runID, "/", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	return safe
}

// HashBytes returns the hex BLAKE3 digest of data
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CalculateFileHash calculates the BLAKE3 hash of a file
func CalculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := blake3.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filePath, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
