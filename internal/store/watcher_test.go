package store

import (
	"testing"
	"time"
)

func TestWatcher_ReportsChangedAgent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if _, err := s.RecordStart("watched-agent", "tester", "task"); err != nil {
		t.Fatalf("RecordStart() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case agentID := <-w.Changes():
			if agentID == "watched-agent" {
				return
			}
		case <-deadline:
			t.Fatal("no change event for watched-agent within 2s")
		}
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/laddr-store"); err == nil {
		t.Error("NewWatcher() error = nil, want error for missing root")
	}
}
