package store

import (
	"testing"

	"creatorlab/pkg/domain"
)

func seedTemplates(t *testing.T, st *MemoryStore) {
	t.Helper()
	for _, tpl := range []domain.PromptTemplate{
		{ID: "tpl-a", DocumentType: domain.DocBusinessPlan, Name: "first", Content: "## A", IsActive: true},
		{ID: "tpl-b", DocumentType: domain.DocBusinessPlan, Name: "second", Content: "## B"},
		{ID: "tpl-c", DocumentType: domain.DocDeliverable, Name: "other type", Content: "## C", IsActive: true},
	} {
		if err := st.SaveTemplate(tpl); err != nil {
			t.Fatalf("seed template %s: %v", tpl.ID, err)
		}
	}
}

func TestSetTemplateActiveClearsPreviousHolder(t *testing.T) {
	st := NewMemoryStore()
	seedTemplates(t, st)

	if err := st.SetTemplateActive("tpl-b"); err != nil {
		t.Fatalf("set active: %v", err)
	}

	active, ok, err := st.GetActiveTemplate(domain.DocBusinessPlan)
	if err != nil || !ok {
		t.Fatalf("get active: ok=%v err=%v", ok, err)
	}
	if active.ID != "tpl-b" {
		t.Fatalf("active = %s, want tpl-b", active.ID)
	}
	prev, _, err := st.GetTemplate("tpl-a")
	if err != nil {
		t.Fatalf("get previous: %v", err)
	}
	if prev.IsActive {
		t.Fatal("previous holder still active")
	}

	// the other document type keeps its own active template
	other, ok, err := st.GetActiveTemplate(domain.DocDeliverable)
	if err != nil || !ok || other.ID != "tpl-c" {
		t.Fatalf("deliverable active = %v ok=%v err=%v, want tpl-c", other.ID, ok, err)
	}
}

func TestSetTemplateActiveUnknownID(t *testing.T) {
	st := NewMemoryStore()
	if err := st.SetTemplateActive("nope"); err == nil {
		t.Fatal("expected error for unknown template id")
	}
}

func TestCreateDocumentConflictPerClientTypeMonth(t *testing.T) {
	st := NewMemoryStore()
	base := domain.Document{ID: "d1", ClientID: "c1", Type: domain.DocBusinessPlan, Title: "Plan", Version: 1}
	if err := st.CreateDocument(base); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := base
	dup.ID = "d2"
	if err := st.CreateDocument(dup); err != ErrConflict {
		t.Fatalf("duplicate business plan: err = %v, want ErrConflict", err)
	}

	m1 := domain.Document{ID: "d3", ClientID: "c1", Type: domain.DocDeliverable, Month: 1, Version: 1}
	if err := st.CreateDocument(m1); err != nil {
		t.Fatalf("month 1: %v", err)
	}
	m2 := m1
	m2.ID = "d4"
	m2.Month = 2
	if err := st.CreateDocument(m2); err != nil {
		t.Fatalf("month 2 must not conflict with month 1: %v", err)
	}
	m1dup := m1
	m1dup.ID = "d5"
	if err := st.CreateDocument(m1dup); err != ErrConflict {
		t.Fatalf("duplicate month 1: err = %v, want ErrConflict", err)
	}
}

func TestCreateBudgetDeactivatesPriorActive(t *testing.T) {
	st := NewMemoryStore()
	if err := st.CreateBudget(domain.TokenBudget{ID: "b1", Period: domain.PeriodMonthly, TokenLimit: 1000, IsActive: true}); err != nil {
		t.Fatalf("create b1: %v", err)
	}
	if err := st.CreateBudget(domain.TokenBudget{ID: "b2", Period: domain.PeriodMonthly, TokenLimit: 2000, IsActive: true}); err != nil {
		t.Fatalf("create b2: %v", err)
	}

	active, ok, err := st.GetActiveBudget(domain.PeriodMonthly)
	if err != nil || !ok {
		t.Fatalf("get active: ok=%v err=%v", ok, err)
	}
	if active.ID != "b2" {
		t.Fatalf("active = %s, want b2", active.ID)
	}

	all, err := st.ListActiveBudgets()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("active budgets = %d, want 1", len(all))
	}
}

func TestSetCheckpointStateReportsMissingRow(t *testing.T) {
	st := NewMemoryStore()
	found, err := st.SetCheckpointState("no-such-job", domain.CheckpointCompleted, false, "")
	if err != nil {
		t.Fatalf("set state: %v", err)
	}
	if found {
		t.Fatal("missing checkpoint reported as updated")
	}

	if err := st.UpsertCheckpoint(domain.Checkpoint{JobID: "j1", ClientID: "c1", Status: domain.CheckpointInProgress, CanResume: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	found, err = st.SetCheckpointState("j1", domain.CheckpointFailed, true, "model timeout")
	if err != nil || !found {
		t.Fatalf("set state: found=%v err=%v", found, err)
	}
	cp, ok, err := st.GetCheckpoint("j1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if cp.Status != domain.CheckpointFailed || !cp.CanResume || cp.ErrorMessage != "model timeout" {
		t.Fatalf("checkpoint = %+v", cp)
	}
}
