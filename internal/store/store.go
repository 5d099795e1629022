// Package store provides the durable, per-agent execution record store.
// Each agent gets one JSON document under a single root directory,
// written synchronously (tmp file + fsync + rename) so a crash right
// after a returned call has already recorded that call's effect. Records
// hold lifetime counters, a bounded execution history, and the most
// recent opaque checkpoint blob used for crash recovery.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryCap is the default bound on per-agent execution history.
const DefaultHistoryCap = 50

// Status is the lifecycle state of one execution history entry.
type Status string

const (
	// StatusRunning marks an execution that has started but not finished.
	StatusRunning Status = "running"
	// StatusCompleted marks an execution that finished successfully or not,
	// with findings recorded.
	StatusCompleted Status = "completed"
	// StatusFailed marks an execution that ended with a system error.
	StatusFailed Status = "failed"
)

// ExecutionHistoryEntry records one execution in an agent's history.
type ExecutionHistoryEntry struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	InputSummary string     `json:"input_summary,omitempty"`
	Findings     any        `json:"findings,omitempty"`
	Error        string     `json:"error,omitempty"`
	Success      bool       `json:"success"`
	Score        *float64   `json:"score,omitempty"`
	Cost         float64    `json:"cost,omitempty"`
	DurationMS   int64      `json:"duration_ms,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// AgentState is the durable record for one agent identity.
type AgentState struct {
	AgentID         string                  `json:"agent_id"`
	Role            string                  `json:"role,omitempty"`
	TotalExecutions int                     `json:"total_executions"`
	Succeeded       int                     `json:"succeeded"`
	Failed          int                     `json:"failed"`
	CumulativeCost  float64                 `json:"cumulative_cost"`
	History         []ExecutionHistoryEntry `json:"history,omitempty"`
	LastCheckpoint  json.RawMessage         `json:"last_checkpoint,omitempty"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// SuccessRate returns the fraction of finished executions that succeeded,
// or 0 when nothing has finished yet.
func (s *AgentState) SuccessRate() float64 {
	finished := s.Succeeded + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(finished)
}

// Store is the persistence contract the executor composes with. All
// implementations must be safe to skip: callers wrap every use in a
// log-and-continue boundary.
type Store interface {
	RecordStart(agentID, role, inputSummary string) (string, error)
	SaveCheckpoint(agentID string, checkpoint any) error
	RecordCompletion(agentID, executionID string, success bool, findings any, score *float64, cost float64, durationMS int64) error
	RecordFailure(agentID, executionID, errMsg string) error
	GetAgentState(agentID string) (*AgentState, error)
	GetLastCheckpoint(agentID string) (json.RawMessage, error)
	GetAllAgents() ([]*AgentState, error)
	SearchHistory(roleSubstring string, minSuccessRate float64) ([]*AgentState, error)
}

// FileStore implements Store with one JSON file per sanitized agent id.
type FileStore struct {
	root       string
	historyCap int
	archive    *Archive
	logf       func(format string, args ...any)
	mu         sync.Mutex
}

// Compile-time verification that FileStore implements Store.
var _ Store = (*FileStore)(nil)

// Option configures a FileStore.
type Option func(*FileStore)

// WithHistoryCap overrides the bounded history size.
func WithHistoryCap(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithArchive attaches a long-horizon audit archive. Entries trimmed from
// the bounded history remain queryable there.
func WithArchive(a *Archive) Option {
	return func(s *FileStore) { s.archive = a }
}

// WithLogger sets the diagnostic logger. Store faults are reported here
// and never propagated as run failures by callers.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(s *FileStore) { s.logf = logf }
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store root directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	s := &FileStore{
		root:       dir,
		historyCap: DefaultHistoryCap,
		logf:       func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the store's root directory.
func (s *FileStore) Root() string {
	return s.root
}

// RecordStart creates the agent record if absent, appends a running
// history entry, bumps the lifetime execution counter, and persists.
// It returns the new execution id.
func (s *FileStore) RecordStart(agentID, role, inputSummary string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadOrCreate(agentID, role)
	if err != nil {
		return "", err
	}

	entry := ExecutionHistoryEntry{
		ID:           uuid.NewString(),
		Status:       StatusRunning,
		InputSummary: inputSummary,
		StartedAt:    time.Now().UTC(),
	}
	state.History = append(state.History, entry)
	state.TotalExecutions++
	s.trimHistory(state)

	if err := s.save(state); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// SaveCheckpoint overwrites the agent's single last-checkpoint slot.
func (s *FileStore) SaveCheckpoint(agentID string, checkpoint any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	state, err := s.loadOrCreate(agentID, "")
	if err != nil {
		return err
	}
	state.LastCheckpoint = blob
	return s.save(state)
}

// RecordCompletion transitions the matching running entry to completed
// and updates lifetime counters. An unknown execution id is logged and
// otherwise a no-op.
func (s *FileStore) RecordCompletion(agentID, executionID string, success bool, findings any, score *float64, cost float64, durationMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadOrCreate(agentID, "")
	if err != nil {
		return err
	}

	entry := findEntry(state, executionID)
	if entry == nil {
		s.logf("store: completion for unknown execution %s on agent %s ignored", executionID, agentID)
		return nil
	}

	now := time.Now().UTC()
	entry.Status = StatusCompleted
	entry.Success = success
	entry.Findings = findings
	entry.Score = score
	entry.Cost = cost
	entry.DurationMS = durationMS
	entry.EndedAt = &now

	if success {
		state.Succeeded++
	} else {
		state.Failed++
	}
	state.CumulativeCost += cost

	s.archiveEntry(agentID, *entry)
	return s.save(state)
}

// RecordFailure transitions the matching running entry to failed with the
// given error text. An unknown execution id is logged and otherwise a
// no-op.
func (s *FileStore) RecordFailure(agentID, executionID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadOrCreate(agentID, "")
	if err != nil {
		return err
	}

	entry := findEntry(state, executionID)
	if entry == nil {
		s.logf("store: failure for unknown execution %s on agent %s ignored", executionID, agentID)
		return nil
	}

	now := time.Now().UTC()
	entry.Status = StatusFailed
	entry.Error = errMsg
	entry.EndedAt = &now
	state.Failed++

	s.archiveEntry(agentID, *entry)
	return s.save(state)
}

// GetAgentState loads one agent's record.
func (s *FileStore) GetAgentState(agentID string) (*AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(agentID)
}

// GetLastCheckpoint returns the agent's last checkpoint blob, or nil when
// the agent has none (or does not exist yet).
func (s *FileStore) GetLastCheckpoint(agentID string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(agentID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return state.LastCheckpoint, nil
}

// GetAllAgents lists every readable agent record. A corrupted record is
// logged and skipped; it never hides the healthy ones.
func (s *FileStore) GetAllAgents() ([]*AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	var agents []*AgentState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		state, err := s.loadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			s.logf("store: skipping unreadable record %s: %v", entry.Name(), err)
			continue
		}
		agents = append(agents, state)
	}
	return agents, nil
}

// SearchHistory filters agent records by role substring and minimum
// success rate. Empty substring matches every role; a zero rate matches
// every agent.
func (s *FileStore) SearchHistory(roleSubstring string, minSuccessRate float64) ([]*AgentState, error) {
	agents, err := s.GetAllAgents()
	if err != nil {
		return nil, err
	}

	var matched []*AgentState
	for _, agent := range agents {
		if roleSubstring != "" && !strings.Contains(strings.ToLower(agent.Role), strings.ToLower(roleSubstring)) {
			continue
		}
		if agent.SuccessRate() < minSuccessRate {
			continue
		}
		matched = append(matched, agent)
	}
	return matched, nil
}

// path returns the storage location for an agent id. Sanitization is what
// keeps every derived path underneath the root: separators and traversal
// sequences cannot survive the character substitution.
func (s *FileStore) path(agentID string) (string, error) {
	sanitized, err := SanitizeAgentID(agentID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, sanitized+".json"), nil
}

func (s *FileStore) load(agentID string) (*AgentState, error) {
	path, err := s.path(agentID)
	if err != nil {
		return nil, err
	}
	return s.loadFile(path)
}

func (s *FileStore) loadFile(path string) (*AgentState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state AgentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt agent record %s: %w", filepath.Base(path), err)
	}
	if state.AgentID == "" {
		return nil, fmt.Errorf("corrupt agent record %s: missing agent_id", filepath.Base(path))
	}
	return &state, nil
}

func (s *FileStore) loadOrCreate(agentID, role string) (*AgentState, error) {
	state, err := s.load(agentID)
	if err == nil {
		if state.Role == "" && role != "" {
			state.Role = role
		}
		return state, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	sanitized, err := SanitizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	return &AgentState{AgentID: sanitized, Role: role}, nil
}

// save writes the record durably: temp file in the same directory, fsync,
// then rename over the final path.
func (s *FileStore) save(state *AgentState) error {
	path, err := s.path(state.AgentID)
	if err != nil {
		return err
	}
	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, ".agent-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp record: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp record: %w", err)
	}
	return nil
}

// trimHistory drops the oldest entries once the cap is exceeded,
// archiving them first when an archive is attached.
func (s *FileStore) trimHistory(state *AgentState) {
	excess := len(state.History) - s.historyCap
	if excess <= 0 {
		return
	}
	for _, old := range state.History[:excess] {
		s.archiveEntry(state.AgentID, old)
	}
	state.History = append([]ExecutionHistoryEntry{}, state.History[excess:]...)
}

func (s *FileStore) archiveEntry(agentID string, entry ExecutionHistoryEntry) {
	if s.archive == nil {
		return
	}
	if err := s.archive.RecordExecution(agentID, entry); err != nil {
		s.logf("store: archive write for agent %s failed: %v", agentID, err)
	}
}

func findEntry(state *AgentState, executionID string) *ExecutionHistoryEntry {
	for i := range state.History {
		if state.History[i].ID == executionID {
			return &state.History[i]
		}
	}
	return nil
}
