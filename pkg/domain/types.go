package domain

import "time"

type DocumentType string

const (
	DocBusinessPlan DocumentType = "business_plan"
	DocDeliverable  DocumentType = "deliverable"
)

type DocumentStatus string

const (
	StatusDraft         DocumentStatus = "draft"
	StatusPendingReview DocumentStatus = "pending_review"
	StatusApproved      DocumentStatus = "approved"
	StatusDelivered     DocumentStatus = "delivered"
	StatusRejected      DocumentStatus = "rejected"
)

type CheckpointStatus string

const (
	CheckpointInProgress CheckpointStatus = "in_progress"
	CheckpointCompleted  CheckpointStatus = "completed"
	CheckpointFailed     CheckpointStatus = "failed"
)

type BudgetPeriod string

const (
	PeriodDaily   BudgetPeriod = "daily"
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
)

// ProgramMonths is the length of the accelerator program; one deliverable
// is produced per month.
const ProgramMonths = 8

// ClientProfile is the onboarding profile the CRM maintains for a client.
// The generation core only ever reads it.
type ClientProfile struct {
	ClientID           string    `json:"clientId"`
	Name               string    `json:"name"`
	BusinessName       string    `json:"businessName"`
	Niche              string    `json:"niche"`
	VisionStatement    string    `json:"visionStatement"`
	TargetAudience     string    `json:"targetAudience"`
	AudienceAge        string    `json:"audienceAge"`
	AudiencePainPoints []string  `json:"audiencePainPoints"`
	BrandPersonality   []string  `json:"brandPersonality"`
	BrandValues        []string  `json:"brandValues"`
	ContentPillars     []string  `json:"contentPillars"`
	CurrentPlatforms   []string  `json:"currentPlatforms"`
	CurrentFollowers   string    `json:"currentFollowers"`
	MonthlyRevenue     string    `json:"monthlyRevenue"`
	RevenueGoal        string    `json:"revenueGoal"`
	ScalingGoals       []string  `json:"scalingGoals"`
	BiggestChallenge   string    `json:"biggestChallenge"`
	OnboardedAt        time.Time `json:"onboardedAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// PromptTemplate holds the prompt used to generate one document type.
// At most one template per type is active and at most one is default.
type PromptTemplate struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"documentType"`
	Name         string       `json:"name"`
	SystemPrompt string       `json:"systemPrompt"`
	Content      string       `json:"content"`
	Variables    []string     `json:"variables"`
	IsActive     bool         `json:"isActive"`
	IsDefault    bool         `json:"isDefault"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Document is a generated business plan or monthly deliverable.
// A client has at most one business plan and at most one deliverable per
// program month.
type Document struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"clientId"`
	Type            DocumentType   `json:"type"`
	Month           int            `json:"month,omitempty"`
	Title           string         `json:"title"`
	Version         int            `json:"version"`
	Status          DocumentStatus `json:"status"`
	ContentMarkdown string         `json:"contentMarkdown"`
	StorageKey      string         `json:"-"`
	GeneratedBy     string         `json:"generatedBy"`
	GeneratedAt     time.Time      `json:"generatedAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Section is one ##-delimited chunk of a document, the unit of
// regeneration. Order is a dense 1..N sequence.
type Section struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"documentId"`
	DocumentType DocumentType `json:"documentType"`
	Name         string       `json:"name"`
	Order        int          `json:"order"`
	Content      string       `json:"content"`
	Version      int          `json:"version"`
	TokensUsed   int          `json:"tokensUsed"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Checkpoint records the durable progress of an in-flight generation job so
// an interrupted run can resume without re-paying for finished sections.
type Checkpoint struct {
	JobID             string            `json:"jobId"`
	JobType           DocumentType      `json:"jobType"`
	ClientID          string            `json:"clientId"`
	Month             int               `json:"month,omitempty"`
	Status            CheckpointStatus  `json:"status"`
	TotalSections     int               `json:"totalSections"`
	CompletedSections int               `json:"completedSections"`
	CurrentSection    string            `json:"currentSection"`
	DocumentID        string            `json:"documentId,omitempty"`
	GeneratedContent  map[string]string `json:"generatedContent"`
	PromptContext     map[string]string `json:"promptContext"`
	CanResume         bool              `json:"canResume"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	RequestedBy       string            `json:"requestedBy"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// TokenBudget caps LLM spend for one period. At most one budget per period
// is active; usage counters are incremented atomically by the completion
// service.
type TokenBudget struct {
	ID               string       `json:"id"`
	Period           BudgetPeriod `json:"period"`
	TokenLimit       int64        `json:"tokenLimit"`
	CostLimit        float64      `json:"costLimit"`
	TokensUsed       int64        `json:"tokensUsed"`
	CostUsed         float64      `json:"costUsed"`
	IsActive         bool         `json:"isActive"`
	IsPaused         bool         `json:"isPaused"`
	AlertsFired      []int        `json:"alertsFired"`
	AutoPauseAtLimit bool         `json:"autoPauseAtLimit"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// AlertThresholds are the budget-utilization percentages that fire alerts.
var AlertThresholds = []int{50, 75, 90, 100}
