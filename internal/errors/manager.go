// Package errors keeps a ledger of documents that failed a pass, so a
// batch run can report them together and a later run can retry them.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"story-localizer/internal/types"
)

// ErrorStage names the step of a pass that failed
type ErrorStage string

const (
	StageLoad      ErrorStage = "load"      // reading the file
	StageSetup     ErrorStage = "setup"     // building the provider for the document
	StageParse     ErrorStage = "parse"     // decoding JSON
	StageStructure ErrorStage = "structure" // page sequence missing or malformed
	StageTransform ErrorStage = "transform" // one or more leaves failed
	StageSave      ErrorStage = "save"      // writing the result
)

// LeafFailure is one text leaf a provider could not transform
type LeafFailure struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	ErrorMsg string `json:"error_msg"`
}

// ErrorRecord describes the failure of one document
type ErrorRecord struct {
	ID         string          `json:"id"`     // document path
	RunID      string          `json:"run_id"` // run that recorded the failure
	Pass       types.Pass      `json:"pass"`
	Stage      ErrorStage      `json:"stage"`
	Code       types.ErrorCode `json:"code,omitempty"`
	ErrorMsg   string          `json:"error_msg"`
	Leaves     []LeafFailure   `json:"leaves,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}

// Fatal reports whether the document was left unprocessed. Leaf failures
// alone are not fatal.
func (r *ErrorRecord) Fatal() bool {
	return r.Stage != StageTransform
}

// ErrorManager records failures and persists them to errors.json
type ErrorManager struct {
	baseDir string
	runID   string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord // key: ID
}

// NewErrorManager creates a ledger stored in baseDir, loading any records
// left by earlier runs. Each manager starts a new run.
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".story-localizer", "errors")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		runID:   uuid.NewString(),
		errors:  make(map[string]*ErrorRecord),
	}

	if err := em.load(); err != nil {
		return nil, err
	}

	return em, nil
}

// RunID returns the identifier of the current run.
func (em *ErrorManager) RunID() string {
	return em.runID
}

// RecordError records a document-level failure.
func (em *ErrorManager) RecordError(id string, pass types.Pass, stage ErrorStage, cause error) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	record := em.newRecord(id, pass, stage)
	if cause != nil {
		record.Code = types.CodeOf(cause)
		record.ErrorMsg = cause.Error()
	}
	em.errors[id] = record

	return em.save()
}

// RecordLeafFailures records the leaves of a document that kept their
// original text. An empty list records nothing.
func (em *ErrorManager) RecordLeafFailures(id string, pass types.Pass, leaves []LeafFailure) error {
	if len(leaves) == 0 {
		return nil
	}

	em.mu.Lock()
	defer em.mu.Unlock()

	record := em.newRecord(id, pass, StageTransform)
	record.Code = types.ErrTransform
	record.ErrorMsg = fmt.Sprintf("%d leaf transformation(s) failed", len(leaves))
	record.Leaves = append([]LeafFailure(nil), leaves...)
	em.errors[id] = record

	return em.save()
}

// newRecord builds a record carrying over the retry count of an earlier
// run. Callers hold the lock.
func (em *ErrorManager) newRecord(id string, pass types.Pass, stage ErrorStage) *ErrorRecord {
	record := &ErrorRecord{
		ID:        id,
		RunID:     em.runID,
		Pass:      pass,
		Stage:     stage,
		Timestamp: time.Now(),
	}
	if existing, ok := em.errors[id]; ok {
		record.RetryCount = existing.RetryCount
		if existing.RunID != em.runID {
			record.RetryCount++
		}
	}
	return record
}

// RemoveError removes a record, typically after the document succeeded.
func (em *ErrorManager) RemoveError(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// ListErrors lists all records sorted by document.
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	return em.collect(func(*ErrorRecord) bool { return true })
}

// RunErrors lists the records written by the current run.
func (em *ErrorManager) RunErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	return em.collect(func(r *ErrorRecord) bool { return r.RunID == em.runID })
}

// HasRunFailures reports whether the current run left any document
// unprocessed.
func (em *ErrorManager) HasRunFailures() bool {
	for _, r := range em.RunErrors() {
		if r.Fatal() {
			return true
		}
	}
	return false
}

func (em *ErrorManager) collect(keep func(*ErrorRecord) bool) []*ErrorRecord {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		if keep(record) {
			recordCopy := *record
			records = append(records, &recordCopy)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// GetError returns the record for a document.
func (em *ErrorManager) GetError(id string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[id]
	if !ok {
		return nil, false
	}

	recordCopy := *record
	return &recordCopy, true
}

// ClearAll removes every record.
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

func (em *ErrorManager) filePath() string {
	return filepath.Join(em.baseDir, "errors.json")
}

// load reads records from errors.json
func (em *ErrorManager) load() error {
	data, err := os.ReadFile(em.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}

	for _, record := range records {
		em.errors[record.ID] = record
	}

	return nil
}

// save writes records to errors.json. Callers hold the lock.
func (em *ErrorManager) save() error {
	records := em.collect(func(*ErrorRecord) bool { return true })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	if err := os.WriteFile(em.filePath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}

	return nil
}

// ExportErrorIDs writes the failed document paths to outputPath, one per
// line, so they can be fed back to a later run.
func (em *ErrorManager) ExportErrorIDs(outputPath string) error {
	records := em.ListErrors()

	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.ID)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write error IDs file: %w", err)
	}

	return nil
}

// StageForError maps an error to the stage that most likely produced it.
func StageForError(err error) ErrorStage {
	switch types.CodeOf(err) {
	case types.ErrParse:
		return StageParse
	case types.ErrStructure:
		return StageStructure
	case types.ErrFileNotFound:
		return StageLoad
	case types.ErrTransform:
		return StageTransform
	default:
		return StageLoad
	}
}

// GetStageDisplayName returns a human readable stage name
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageLoad:
		return "Load"
	case StageSetup:
		return "Provider setup"
	case StageParse:
		return "Parse"
	case StageStructure:
		return "Structure check"
	case StageTransform:
		return "Transform"
	case StageSave:
		return "Save"
	default:
		return string(stage)
	}
}
