package store

import (
	"errors"
	"time"

	"creatorlab/pkg/domain"
)

// ErrConflict is returned when a write collides with a uniqueness rule, such
// as creating a second business plan for a client.
var ErrConflict = errors.New("store: conflict")

// Store defines persistence operations for client profiles, templates,
// documents, sections, checkpoints, and token budgets.
type Store interface {
	// client profiles (read-only to the generation core; the CRM seeds them)
	SaveClientProfile(domain.ClientProfile) error
	GetClientProfile(clientID string) (domain.ClientProfile, bool, error)

	// prompt templates
	SaveTemplate(domain.PromptTemplate) error
	GetTemplate(id string) (domain.PromptTemplate, bool, error)
	GetActiveTemplate(docType domain.DocumentType) (domain.PromptTemplate, bool, error)
	GetDefaultTemplate(docType domain.DocumentType) (domain.PromptTemplate, bool, error)
	ListTemplates(docType domain.DocumentType) ([]domain.PromptTemplate, error)
	// SetTemplateActive marks one template active for its type and clears the
	// previous holder in the same transaction. SetTemplateDefault does the
	// same for the default flag.
	SetTemplateActive(id string) error
	SetTemplateDefault(id string) error

	// documents
	CreateDocument(domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	GetClientBusinessPlan(clientID string) (domain.Document, bool, error)
	GetClientDeliverable(clientID string, month int) (domain.Document, bool, error)
	ListClientDeliverables(clientID string) ([]domain.Document, error)
	// UpdateDocumentContent replaces the combined markdown, bumps the version,
	// and records where the snapshot was archived.
	UpdateDocumentContent(id, contentMarkdown, storageKey string) error
	SetDocumentStatus(id string, status domain.DocumentStatus) error

	// sections
	ReplaceSections(documentID string, docType domain.DocumentType, secs []domain.Section) error
	ListSections(documentID string, docType domain.DocumentType) ([]domain.Section, error)
	// UpdateSection rewrites a section's content in place and increments its
	// version.
	UpdateSection(id, content string, tokensUsed int) error

	// checkpoints
	UpsertCheckpoint(domain.Checkpoint) error
	GetCheckpoint(jobID string) (domain.Checkpoint, bool, error)
	SetCheckpointState(jobID string, status domain.CheckpointStatus, canResume bool, errMsg string) (bool, error)
	ListResumableCheckpoints(clientID string) ([]domain.Checkpoint, error)
	DeleteCheckpoint(jobID string) error
	DeleteCompletedCheckpointsBefore(cutoff time.Time) (int64, error)

	// token budgets
	CreateBudget(domain.TokenBudget) error
	GetActiveBudget(period domain.BudgetPeriod) (domain.TokenBudget, bool, error)
	ListActiveBudgets() ([]domain.TokenBudget, error)
	// ChargeBudget adds usage to a budget as one conditional update: when
	// autoPauseAtLimit is set and the new totals reach either limit, the
	// pause flag flips in the same statement. Returns the post-charge budget.
	ChargeBudget(id string, tokens int64, cost float64) (domain.TokenBudget, error)
	SetBudgetPaused(id string, paused bool) error
	MarkBudgetAlert(id string, threshold int) error
}
