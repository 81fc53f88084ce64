package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"creatorlab/pkg/ai"
	"creatorlab/pkg/checkpoint"
	"creatorlab/pkg/completion"
	"creatorlab/pkg/domain"
	"creatorlab/pkg/store"
)

type fakeGenerator struct {
	calls   int
	reply   string
	replies []string
	errs    []error
}

func (f *fakeGenerator) GenerateText(_ context.Context, _, prompt string) (ai.Completion, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return ai.Completion{}, f.errs[idx]
	}
	text := f.reply
	if idx < len(f.replies) {
		text = f.replies[idx]
	}
	return ai.Completion{
		Text:  text,
		Usage: ai.Usage{PromptTokens: 100, CompletionTokens: 100},
	}, nil
}

func newTestApp(t *testing.T, gen *fakeGenerator) (*App, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := completion.NewService(gen, nil, st, 0.01)
	if err != nil {
		t.Fatalf("new completion service: %v", err)
	}
	a, err := New(Config{
		Store:      st,
		Completion: svc,
		Checkpoint: checkpoint.NewManager(st),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, st
}

func seedClient(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	if err := st.SaveClientProfile(domain.ClientProfile{
		ClientID:        "c1",
		Name:            "Jordan Reyes",
		BusinessName:    "Peak Form",
		Niche:           "Fitness",
		VisionStatement: "Build a supplement brand",
		TargetAudience:  "Busy professionals",
		OnboardedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
}

func seedTemplate(t *testing.T, st *store.MemoryStore, docType domain.DocumentType, content string) {
	t.Helper()
	if err := st.SaveTemplate(domain.PromptTemplate{
		ID:           "tpl-" + string(docType),
		DocumentType: docType,
		Name:         "default " + string(docType),
		SystemPrompt: "You are a business strategist.",
		Content:      content,
		IsDefault:    true,
	}); err != nil {
		t.Fatalf("seed template: %v", err)
	}
}

func TestBuildContextFixedKeys(t *testing.T) {
	a, st := newTestApp(t, &fakeGenerator{})
	seedClient(t, st)

	vars, err := a.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if vars["niche"] != "Fitness" {
		t.Fatalf("niche = %q, want %q", vars["niche"], "Fitness")
	}
	if vars["client_name"] != "Jordan Reyes" {
		t.Fatalf("client_name = %q", vars["client_name"])
	}
	if vars["onboarded_date"] != "March 1, 2026" {
		t.Fatalf("onboarded_date = %q", vars["onboarded_date"])
	}
	if vars["generation_date"] == "" {
		t.Fatalf("generation_date should be set")
	}
}

func TestBuildContextClientNotFound(t *testing.T) {
	a, _ := newTestApp(t, &fakeGenerator{})
	if _, err := a.BuildContext(context.Background(), "ghost"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestBuildDeliverableContext(t *testing.T) {
	a, st := newTestApp(t, &fakeGenerator{})
	seedClient(t, st)

	longContent := strings.Repeat("x", 600)
	if err := st.CreateDocument(domain.Document{
		ID:              "d1",
		ClientID:        "c1",
		Type:            domain.DocDeliverable,
		Month:           1,
		Title:           "Month 1: Foundation & Brand Identity",
		ContentMarkdown: longContent,
	}); err != nil {
		t.Fatalf("seed deliverable: %v", err)
	}

	vars, err := a.BuildDeliverableContext(context.Background(), "c1", 2)
	if err != nil {
		t.Fatalf("build deliverable context: %v", err)
	}
	if vars["current_month_number"] != "2" {
		t.Fatalf("current_month_number = %q", vars["current_month_number"])
	}
	if vars["month_title"] != "Content Engine" {
		t.Fatalf("month_title = %q", vars["month_title"])
	}
	summary := vars["previous_months_summary"]
	if !strings.HasPrefix(summary, "Month 1: Foundation & Brand Identity:\n") {
		t.Fatalf("summary should be headed by the prior title, got %q", summary[:50])
	}
	if got := len(summary); got != len("Month 1: Foundation & Brand Identity:\n")+500 {
		t.Fatalf("summary length = %d, want title header plus 500 chars", got)
	}

	if _, err := a.BuildDeliverableContext(context.Background(), "c1", 9); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("month 9 err = %v, want ErrInvalidMonth", err)
	}
}

func TestPreviousMonthsSummaryTruncatesOnRunes(t *testing.T) {
	a, st := newTestApp(t, &fakeGenerator{})
	seedClient(t, st)

	// 600 two-byte runes: a byte-wise cut at 500 would land mid-rune.
	if err := st.CreateDocument(domain.Document{
		ID:              "d1",
		ClientID:        "c1",
		Type:            domain.DocDeliverable,
		Month:           1,
		Title:           "Month 1: Foundation & Brand Identity",
		ContentMarkdown: strings.Repeat("é", 600),
	}); err != nil {
		t.Fatalf("seed deliverable: %v", err)
	}

	vars, err := a.BuildDeliverableContext(context.Background(), "c1", 2)
	if err != nil {
		t.Fatalf("build deliverable context: %v", err)
	}
	summary := vars["previous_months_summary"]
	if !utf8.ValidString(summary) {
		t.Fatal("summary is not valid UTF-8")
	}
	body := strings.TrimPrefix(summary, "Month 1: Foundation & Brand Identity:\n")
	if got := utf8.RuneCountInString(body); got != 500 {
		t.Fatalf("summary body = %d runes, want 500", got)
	}
}

func TestRenderTemplateLeavesUnknownPlaceholders(t *testing.T) {
	out := RenderTemplate("{{niche}} plan for {{unknown_var}}", map[string]string{"niche": "Fitness"})
	want := "Fitness plan for {{unknown_var}}"
	if out != want {
		t.Fatalf("rendered = %q, want %q", out, want)
	}
}

func TestLoadTemplateActiveBeatsDefault(t *testing.T) {
	a, st := newTestApp(t, &fakeGenerator{})
	seedTemplate(t, st, domain.DocBusinessPlan, "default content")
	if err := st.SaveTemplate(domain.PromptTemplate{
		ID:           "tpl-active",
		DocumentType: domain.DocBusinessPlan,
		Content:      "active content",
		IsActive:     true,
	}); err != nil {
		t.Fatalf("seed active template: %v", err)
	}

	tpl, err := a.LoadTemplate(domain.DocBusinessPlan)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if tpl.Content != "active content" {
		t.Fatalf("content = %q, want the active template", tpl.Content)
	}

	if _, err := a.LoadTemplate(domain.DocDeliverable); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestGenerateBusinessPlanEndToEnd(t *testing.T) {
	gen := &fakeGenerator{reply: "Fitness business plan"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\nWrite about the {{niche}} niche.")

	doc, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach@creatorlab")
	if err != nil {
		t.Fatalf("generate business plan: %v", err)
	}
	if doc.Status != domain.StatusDraft {
		t.Fatalf("status = %q, want draft", doc.Status)
	}
	if doc.Version != 1 {
		t.Fatalf("version = %d, want 1", doc.Version)
	}
	if doc.Title != "Peak Form Business Plan" {
		t.Fatalf("title = %q", doc.Title)
	}
	want := "## Executive Summary\n\nFitness business plan"
	if doc.ContentMarkdown != want {
		t.Fatalf("content = %q, want %q", doc.ContentMarkdown, want)
	}
	if gen.calls != 1 {
		t.Fatalf("model calls = %d, want 1", gen.calls)
	}

	secs, err := st.ListSections(doc.ID, domain.DocBusinessPlan)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	if len(secs) != 1 || secs[0].Name != "Executive Summary" || secs[0].Order != 1 {
		t.Fatalf("sections = %+v, want one Executive Summary at order 1", secs)
	}
	if secs[0].TokensUsed != 200 {
		t.Fatalf("tokensUsed = %d, want 200", secs[0].TokensUsed)
	}

	// The finished job's checkpoint is terminal and not resumable.
	resumable, err := a.ResumableCheckpoints("c1")
	if err != nil {
		t.Fatalf("resumable: %v", err)
	}
	if len(resumable) != 0 {
		t.Fatalf("resumable = %d, want 0", len(resumable))
	}
}

func TestGenerateBusinessPlanConflict(t *testing.T) {
	gen := &fakeGenerator{reply: "plan body"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\n{{niche}}")

	if _, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach"); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	if _, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach"); !errors.Is(err, ErrBusinessPlanExists) {
		t.Fatalf("second generation err = %v, want ErrBusinessPlanExists", err)
	}
}

func TestGenerateDeliverablePerMonth(t *testing.T) {
	gen := &fakeGenerator{reply: "month body"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocDeliverable, "## Plan\n\nMonth {{current_month_number}}: {{month_title}}")

	doc1, err := a.GenerateDeliverable(context.Background(), "c1", 1, "coach")
	if err != nil {
		t.Fatalf("month 1: %v", err)
	}
	if doc1.Title != "Month 1: Foundation & Brand Identity" {
		t.Fatalf("title = %q", doc1.Title)
	}
	if _, err := a.GenerateDeliverable(context.Background(), "c1", 2, "coach"); err != nil {
		t.Fatalf("month 2: %v", err)
	}
	if _, err := a.GenerateDeliverable(context.Background(), "c1", 1, "coach"); !errors.Is(err, ErrDeliverableExists) {
		t.Fatalf("repeat month err = %v, want ErrDeliverableExists", err)
	}
	if _, err := a.GenerateDeliverable(context.Background(), "c1", 0, "coach"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("month 0 err = %v, want ErrInvalidMonth", err)
	}
}

func TestGenerationFailureLeavesResumableCheckpointAndResumes(t *testing.T) {
	boom := fmt.Errorf("model unavailable")
	gen := &fakeGenerator{
		reply: "section body",
		errs:  []error{nil, boom},
	}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\nA.\n\n## Growth Plan\n\nB.\n\n## Revenue Model\n\nC.")

	_, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach")
	if !errors.Is(err, completion.ErrGeneration) {
		t.Fatalf("err = %v, want wrapped ErrGeneration", err)
	}

	resumable, err := a.ResumableCheckpoints("c1")
	if err != nil {
		t.Fatalf("resumable: %v", err)
	}
	if len(resumable) != 1 {
		t.Fatalf("resumable = %d, want 1", len(resumable))
	}
	cp := resumable[0]
	if cp.Status != domain.CheckpointFailed || !cp.CanResume {
		t.Fatalf("checkpoint = %+v, want failed and resumable", cp.Checkpoint)
	}
	if cp.CompletedSections != 1 || cp.TotalSections != 3 {
		t.Fatalf("progress = %d/%d, want 1/3", cp.CompletedSections, cp.TotalSections)
	}
	if cp.Progress != 33 {
		t.Fatalf("progress pct = %d, want 33", cp.Progress)
	}

	callsBefore := gen.calls
	doc, err := a.ResumeJob(context.Background(), cp.JobID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	// Only the two unfinished sections are re-generated.
	if gen.calls-callsBefore != 2 {
		t.Fatalf("resume model calls = %d, want 2", gen.calls-callsBefore)
	}
	if !strings.Contains(doc.ContentMarkdown, "## Executive Summary") ||
		!strings.Contains(doc.ContentMarkdown, "## Revenue Model") {
		t.Fatalf("recombined content missing sections: %q", doc.ContentMarkdown)
	}

	secs, err := st.ListSections(doc.ID, domain.DocBusinessPlan)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	if len(secs) != 3 {
		t.Fatalf("sections = %d, want 3", len(secs))
	}
}

func TestResumeJobErrors(t *testing.T) {
	a, st := newTestApp(t, &fakeGenerator{})
	if _, err := a.ResumeJob(context.Background(), "ghost"); !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("err = %v, want ErrCheckpointNotFound", err)
	}
	if err := st.UpsertCheckpoint(domain.Checkpoint{
		JobID:     "done-job",
		ClientID:  "c1",
		Status:    domain.CheckpointCompleted,
		CanResume: false,
	}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	if _, err := a.ResumeJob(context.Background(), "done-job"); !errors.Is(err, ErrJobNotResumable) {
		t.Fatalf("err = %v, want ErrJobNotResumable", err)
	}
}

func TestRegenerateWithoutParseableSectionsLeavesDocumentIntact(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\n{{niche}}")

	const prose = "Plain prose plan with no headings at all."
	if err := st.CreateDocument(domain.Document{
		ID:              "d-prose",
		ClientID:        "c1",
		Type:            domain.DocBusinessPlan,
		Title:           "Peak Form Business Plan",
		Version:         1,
		Status:          domain.StatusDraft,
		ContentMarkdown: prose,
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	count, doc, err := a.RegenerateSections(context.Background(), "d-prose", []string{"Executive Summary"}, "coach")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if doc.ContentMarkdown != prose {
		t.Fatalf("content rewritten to %q", doc.ContentMarkdown)
	}
	if doc.Version != 1 {
		t.Fatalf("version = %d, want 1", doc.Version)
	}
	if gen.calls != 0 {
		t.Fatalf("model called %d times for nothing to regenerate", gen.calls)
	}
}

func TestRegenerateAllNamesUnknownDoesNotPersist(t *testing.T) {
	gen := &fakeGenerator{reply: "original body"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\nA.")

	doc, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	count, updated, err := a.RegenerateSections(context.Background(), doc.ID, []string{"No Such Section"}, "coach")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if updated.Version != doc.Version {
		t.Fatalf("version churned %d -> %d with nothing regenerated", doc.Version, updated.Version)
	}
	if updated.ContentMarkdown != doc.ContentMarkdown {
		t.Fatalf("content changed with nothing regenerated: %q", updated.ContentMarkdown)
	}
}

func TestRegenerateForProfileChange(t *testing.T) {
	gen := &fakeGenerator{reply: "original body"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\nA.\n\n## Growth Plan\n\nB.")

	doc, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	gen.reply = "refreshed body"
	count, updated, err := a.RegenerateForProfileChange(context.Background(), doc.ID, []string{"currentFollowers", "favoriteColor"}, "coach")
	if err != nil {
		t.Fatalf("regenerate for profile change: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (only Growth Plan maps)", count)
	}
	if !strings.Contains(updated.ContentMarkdown, "## Growth Plan\n\nrefreshed body") {
		t.Fatalf("recombined content = %q", updated.ContentMarkdown)
	}
	if !strings.Contains(updated.ContentMarkdown, "## Executive Summary\n\noriginal body") {
		t.Fatalf("untouched section changed: %q", updated.ContentMarkdown)
	}

	count, same, err := a.RegenerateForProfileChange(context.Background(), doc.ID, []string{"favoriteColor"}, "coach")
	if err != nil {
		t.Fatalf("no mapped fields: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if same.Version != updated.Version {
		t.Fatalf("document changed with nothing to regenerate: version %d -> %d", updated.Version, same.Version)
	}
}

func TestRegenerateSectionsSkipsUnknownNames(t *testing.T) {
	gen := &fakeGenerator{reply: "original body"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\nA.\n\n## Growth Plan\n\nB.")

	doc, err := a.GenerateBusinessPlan(context.Background(), "c1", "coach")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	gen.reply = "fresh growth body"
	count, updated, err := a.RegenerateSections(context.Background(), doc.ID, []string{"Growth Plan", "No Such Section"}, "coach")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (unknown name skipped)", count)
	}
	if !strings.Contains(updated.ContentMarkdown, "## Growth Plan\n\nfresh growth body") {
		t.Fatalf("recombined content = %q", updated.ContentMarkdown)
	}
	if !strings.Contains(updated.ContentMarkdown, "## Executive Summary\n\noriginal body") {
		t.Fatalf("untouched section changed: %q", updated.ContentMarkdown)
	}
	if updated.Version != doc.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, doc.Version+1)
	}

	secs, err := st.ListSections(doc.ID, domain.DocBusinessPlan)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	for _, sec := range secs {
		switch sec.Name {
		case "Growth Plan":
			if sec.Version != 2 {
				t.Fatalf("Growth Plan version = %d, want 2", sec.Version)
			}
		case "Executive Summary":
			if sec.Version != 1 {
				t.Fatalf("Executive Summary version = %d, want 1", sec.Version)
			}
		}
	}
}

func TestRegenerateRejectsEmptySectionList(t *testing.T) {
	a, _ := newTestApp(t, &fakeGenerator{})
	if _, _, err := a.RegenerateSections(context.Background(), "d1", nil, "coach"); !errors.Is(err, ErrEmptySectionList) {
		t.Fatalf("err = %v, want ErrEmptySectionList", err)
	}
	if _, _, err := a.RegenerateSections(context.Background(), "d1", []string{"  "}, "coach"); !errors.Is(err, ErrEmptySectionList) {
		t.Fatalf("blank names err = %v, want ErrEmptySectionList", err)
	}
}

func TestRegenerateParsesSectionsFromContentWhenNoneStored(t *testing.T) {
	gen := &fakeGenerator{reply: "rewritten body"}
	a, st := newTestApp(t, gen)
	seedClient(t, st)
	seedTemplate(t, st, domain.DocBusinessPlan, "## Executive Summary\n\nA.")

	// Document imported with combined markdown but no section rows.
	if err := st.CreateDocument(domain.Document{
		ID:              "imported",
		ClientID:        "c1",
		Type:            domain.DocBusinessPlan,
		Title:           "Imported Plan",
		Version:         1,
		Status:          domain.StatusDraft,
		ContentMarkdown: "## Executive Summary\n\nold body\n\n## Growth Plan\n\nold growth",
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	count, updated, err := a.RegenerateSections(context.Background(), "imported", []string{"Executive Summary"}, "coach")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if !strings.Contains(updated.ContentMarkdown, "## Executive Summary\n\nrewritten body") {
		t.Fatalf("content = %q", updated.ContentMarkdown)
	}
	secs, err := st.ListSections("imported", domain.DocBusinessPlan)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	if len(secs) != 2 {
		t.Fatalf("sections = %d, want 2 parsed from content", len(secs))
	}
}

func TestRegenerateDocumentNotFound(t *testing.T) {
	a, _ := newTestApp(t, &fakeGenerator{})
	if _, _, err := a.RegenerateSections(context.Background(), "ghost", []string{"Executive Summary"}, "coach"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestStoreSectionsApportionsTokensByIntegerDivision(t *testing.T) {
	a, st := newTestApp(t, &fakeGenerator{})
	doc := domain.Document{ID: "d1", ClientID: "c1", Type: domain.DocBusinessPlan}
	if err := st.CreateDocument(doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	markdown := "## A\n\none\n\n## B\n\ntwo\n\n## C\n\nthree"
	secs, err := a.StoreSections(doc, markdown, 100)
	if err != nil {
		t.Fatalf("store sections: %v", err)
	}
	if len(secs) != 3 {
		t.Fatalf("sections = %d, want 3", len(secs))
	}
	for _, sec := range secs {
		if sec.TokensUsed != 33 {
			t.Fatalf("section %q tokens = %d, want 33 (100/3, no remainder correction)", sec.Name, sec.TokensUsed)
		}
	}
}

func TestCreateBudgetValidatesPeriod(t *testing.T) {
	a, _ := newTestApp(t, &fakeGenerator{})
	if _, err := a.CreateBudget("yearly", 1000, 10, false); !errors.Is(err, ErrBudgetPeriodInvalid) {
		t.Fatalf("err = %v, want ErrBudgetPeriodInvalid", err)
	}
	budget, err := a.CreateBudget(domain.PeriodDaily, 1000, 10, true)
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if !budget.IsActive || !budget.AutoPauseAtLimit {
		t.Fatalf("budget = %+v, want active with auto-pause", budget)
	}
}
