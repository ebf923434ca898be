package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/jobs"
)

const (
	storeVersion      = 1
	sandboxFileMode   = 0644
	sandboxDirMode    = 0755
	defaultStartingID = int64(1)
)

// Job is a simulated pipeline run. A gated job stops at GateProgress until
// its approval is decided.
type Job struct {
	ID           string          `json:"id"`
	ApprovalID   string          `json:"approval_id,omitempty"`
	Status       jobs.Status     `json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step,omitempty"`
	GateProgress int             `json:"gate_progress,omitempty"`
	Gated        bool            `json:"gated,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// View returns the job status response.
func (j Job) View() jobs.View {
	return jobs.View{
		JobID:       j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		Result:      j.Result,
		Error:       j.Error,
	}
}

type fileData struct {
	Version   int                `json:"version"`
	NextID    int64              `json:"next_id"`
	Approvals []approval.Request `json:"approvals"`
	Jobs      []Job              `json:"jobs"`
}

// Store persists sandbox approvals and jobs to disk.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a sandbox store under <workspace>/state/sandbox.json.
func NewStore(workspace string) *Store {
	return &Store{path: filepath.Join(workspace, "state", "sandbox.json")}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads persisted data from disk.
func (s *Store) Load() (fileData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

// Save writes persisted data to disk.
func (s *Store) Save(data fileData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(data)
}

func (s *Store) loadLocked() (fileData, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultFileData(), nil
		}
		return fileData{}, fmt.Errorf("read sandbox store: %w", err)
	}

	var parsed fileData
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fileData{}, fmt.Errorf("parse sandbox store: %w", err)
	}

	return normalizeFileData(parsed), nil
}

func (s *Store) saveLocked(data fileData) error {
	normalized := normalizeFileData(data)

	encoded, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sandbox store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, sandboxDirMode); err != nil {
		return fmt.Errorf("create sandbox store dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "sandbox-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp sandbox store: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp sandbox store: %w", err)
	}
	if err := tmpFile.Chmod(sandboxFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp sandbox store: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp sandbox store: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		if removeErr := os.Remove(s.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("replace sandbox store: rename failed (%v), remove failed (%v)", err, removeErr)
		}
		if retryErr := os.Rename(tmpPath, s.path); retryErr != nil {
			return fmt.Errorf("replace sandbox store after remove: %w", retryErr)
		}
	}
	return nil
}

func defaultFileData() fileData {
	return fileData{
		Version:   storeVersion,
		NextID:    defaultStartingID,
		Approvals: []approval.Request{},
		Jobs:      []Job{},
	}
}

func normalizeFileData(data fileData) fileData {
	if data.Version <= 0 {
		data.Version = storeVersion
	}
	if data.Approvals == nil {
		data.Approvals = []approval.Request{}
	}
	if data.Jobs == nil {
		data.Jobs = []Job{}
	}
	for i := range data.Approvals {
		if data.Approvals[i].Suggestions == nil {
			data.Approvals[i].Suggestions = []string{}
		}
	}
	if data.NextID <= 0 {
		data.NextID = nextIDFromData(data)
	}
	return data
}

// nextIDFromData recovers the counter from ids shaped "<prefix>-<n>".
func nextIDFromData(data fileData) int64 {
	maxID := int64(0)
	track := func(id string) {
		if idx := strings.LastIndex(id, "-"); idx >= 0 {
			id = id[idx+1:]
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil && n > maxID {
			maxID = n
		}
	}
	for _, req := range data.Approvals {
		track(req.ID)
	}
	for _, job := range data.Jobs {
		track(job.ID)
	}
	if maxID < defaultStartingID {
		return defaultStartingID
	}
	return maxID + 1
}
