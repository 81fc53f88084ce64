package checkpoint

import (
	"errors"
	"testing"
	"time"

	"creatorlab/pkg/domain"
	"creatorlab/pkg/store"
)

func testCheckpoint(jobID string) domain.Checkpoint {
	return domain.Checkpoint{
		JobID:         jobID,
		JobType:       domain.DocBusinessPlan,
		ClientID:      "c1",
		TotalSections: 4,
	}
}

func TestSaveSaveComplete(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	cp := testCheckpoint("job-1")
	if err := m.Save(cp); err != nil {
		t.Fatalf("first save: %v", err)
	}
	cp.CompletedSections = 2
	cp.CurrentSection = "Growth Plan"
	if err := m.Save(cp); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := m.Get("job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.CheckpointInProgress || !got.CanResume {
		t.Fatalf("save must force in_progress/resumable, got %+v", got)
	}
	if got.CompletedSections != 2 {
		t.Fatalf("completedSections = %d, want 2", got.CompletedSections)
	}

	if err := m.Complete("job-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err = m.Get("job-1")
	if err != nil {
		t.Fatalf("get after complete: %v", err)
	}
	if got.Status != domain.CheckpointCompleted || got.CanResume {
		t.Fatalf("complete must be terminal and non-resumable, got %+v", got)
	}
}

func TestSaveThenFailStaysResumable(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	if err := m.Save(testCheckpoint("job-2")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Fail("job-2", "model timeout"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, err := m.Get("job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.CheckpointFailed || !got.CanResume {
		t.Fatalf("failed checkpoint must stay resumable, got %+v", got)
	}
	if got.ErrorMessage != "model timeout" {
		t.Fatalf("errorMessage = %q", got.ErrorMessage)
	}

	resumable, err := m.Resumable("")
	if err != nil {
		t.Fatalf("resumable: %v", err)
	}
	if len(resumable) != 1 || resumable[0].JobID != "job-2" {
		t.Fatalf("expected failed job in resumable list, got %+v", resumable)
	}
}

func TestResumableFiltersByClientAndExcludesCompleted(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	a := testCheckpoint("job-a")
	b := testCheckpoint("job-b")
	b.ClientID = "c2"
	if err := m.Save(a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := m.Save(b); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := m.Complete("job-a"); err != nil {
		t.Fatalf("complete a: %v", err)
	}
	got, err := m.Resumable("c1")
	if err != nil {
		t.Fatalf("resumable: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("completed checkpoint must not be resumable, got %+v", got)
	}
	got, err = m.Resumable("c2")
	if err != nil {
		t.Fatalf("resumable c2: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "job-b" {
		t.Fatalf("expected job-b for c2, got %+v", got)
	}
}

func TestTransitionMissingJobReturnsNotFound(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	if err := m.Complete("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Fail("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanupRemovesOldCompleted(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewManager(st)
	if err := m.Save(testCheckpoint("job-old")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Complete("job-old"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Inside the retention window nothing is removed.
	removed, err := m.Cleanup(time.Now().UTC())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 0 {
		t.Fatalf("fresh completed checkpoint must survive, removed %d", removed)
	}
	// Past the retention window the row goes away.
	removed, err = m.Cleanup(time.Now().UTC().Add(RetentionWindow + time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := m.Get("job-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("checkpoint should be gone, got %v", err)
	}
}

func TestProgress(t *testing.T) {
	if got := Progress(domain.Checkpoint{CompletedSections: 0, TotalSections: 0}); got != 0 {
		t.Fatalf("progress(0/0) = %d, want 0", got)
	}
	if got := Progress(domain.Checkpoint{CompletedSections: 3, TotalSections: 8}); got != 38 {
		t.Fatalf("progress(3/8) = %d, want 38", got)
	}
	if got := Progress(domain.Checkpoint{CompletedSections: 8, TotalSections: 8}); got != 100 {
		t.Fatalf("progress(8/8) = %d, want 100", got)
	}
}
