// Package checkpoint tracks durable progress for generation jobs. Every
// operation returns an explicit error so the orchestrator never proceeds
// believing progress was saved when it was not.
package checkpoint

import (
	"errors"
	"fmt"
	"math"
	"time"

	"creatorlab/pkg/domain"
	"creatorlab/pkg/store"
)

// ErrNotFound is returned when a job has no checkpoint row.
var ErrNotFound = errors.New("checkpoint not found")

// RetentionWindow is how long COMPLETED checkpoints stay before cleanup.
const RetentionWindow = 7 * 24 * time.Hour

// Manager persists and transitions generation checkpoints.
type Manager struct {
	store store.Store
}

// NewManager builds a checkpoint manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Save upserts the progress row for a job. Status is forced back to
// IN_PROGRESS and canResume to true on every save, so a late write can never
// leave a checkpoint stranded in a stale terminal state.
func (m *Manager) Save(cp domain.Checkpoint) error {
	if cp.JobID == "" {
		return errors.New("checkpoint job id required")
	}
	now := time.Now().UTC()
	cp.Status = domain.CheckpointInProgress
	cp.CanResume = true
	cp.ErrorMessage = ""
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if err := m.store.UpsertCheckpoint(cp); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.JobID, err)
	}
	return nil
}

// Get returns the checkpoint for a job.
func (m *Manager) Get(jobID string) (domain.Checkpoint, error) {
	cp, ok, err := m.store.GetCheckpoint(jobID)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("get checkpoint %s: %w", jobID, err)
	}
	if !ok {
		return domain.Checkpoint{}, ErrNotFound
	}
	return cp, nil
}

// Complete marks a job finished. The checkpoint stops being resumable and
// becomes eligible for cleanup after the retention window.
func (m *Manager) Complete(jobID string) error {
	return m.transition(jobID, domain.CheckpointCompleted, false, "")
}

// Fail marks a job failed but keeps it resumable so a retry can pick it up.
func (m *Manager) Fail(jobID, message string) error {
	return m.transition(jobID, domain.CheckpointFailed, true, message)
}

func (m *Manager) transition(jobID string, status domain.CheckpointStatus, canResume bool, msg string) error {
	updated, err := m.store.SetCheckpointState(jobID, status, canResume, msg)
	if err != nil {
		return fmt.Errorf("transition checkpoint %s to %s: %w", jobID, status, err)
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

// Resumable lists checkpoints a retry can pick up, newest first. clientID
// may be empty to list across all clients.
func (m *Manager) Resumable(clientID string) ([]domain.Checkpoint, error) {
	cps, err := m.store.ListResumableCheckpoints(clientID)
	if err != nil {
		return nil, fmt.Errorf("list resumable checkpoints: %w", err)
	}
	return cps, nil
}

// Delete removes a checkpoint row.
func (m *Manager) Delete(jobID string) error {
	if err := m.store.DeleteCheckpoint(jobID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", jobID, err)
	}
	return nil
}

// Cleanup removes COMPLETED checkpoints older than the retention window and
// reports how many went away.
func (m *Manager) Cleanup(now time.Time) (int64, error) {
	removed, err := m.store.DeleteCompletedCheckpointsBefore(now.Add(-RetentionWindow))
	if err != nil {
		return 0, fmt.Errorf("cleanup checkpoints: %w", err)
	}
	return removed, nil
}

// Progress returns completion as a whole percentage, 0 when the job has no
// sections yet.
func Progress(cp domain.Checkpoint) int {
	if cp.TotalSections == 0 {
		return 0
	}
	return int(math.Round(100 * float64(cp.CompletedSections) / float64(cp.TotalSections)))
}
