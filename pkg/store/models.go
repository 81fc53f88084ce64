package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ClientProfileModel struct {
	ClientID           string `gorm:"primaryKey"`
	Name               string `gorm:"not null"`
	BusinessName       string
	Niche              string
	VisionStatement    string `gorm:"type:text"`
	TargetAudience     string `gorm:"type:text"`
	AudienceAge        string
	AudiencePainPoints datatypes.JSON `gorm:"type:jsonb"`
	BrandPersonality   datatypes.JSON `gorm:"type:jsonb"`
	BrandValues        datatypes.JSON `gorm:"type:jsonb"`
	ContentPillars     datatypes.JSON `gorm:"type:jsonb"`
	CurrentPlatforms   datatypes.JSON `gorm:"type:jsonb"`
	CurrentFollowers   string
	MonthlyRevenue     string
	RevenueGoal        string
	ScalingGoals       datatypes.JSON `gorm:"type:jsonb"`
	BiggestChallenge   string         `gorm:"type:text"`
	OnboardedAt        time.Time      `gorm:"not null"`
	UpdatedAt          time.Time
}

type PromptTemplateModel struct {
	ID           string `gorm:"primaryKey"`
	DocumentType string `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	SystemPrompt string `gorm:"type:text"`
	Content      string `gorm:"type:text;not null"`
	Variables    datatypes.JSON `gorm:"type:jsonb"`
	IsActive     bool   `gorm:"not null;index"`
	IsDefault    bool   `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type DocumentModel struct {
	ID              string `gorm:"primaryKey"`
	ClientID        string `gorm:"not null;index;uniqueIndex:idx_documents_client_type_month"`
	Type            string `gorm:"not null;uniqueIndex:idx_documents_client_type_month"`
	Month           int    `gorm:"not null;uniqueIndex:idx_documents_client_type_month"`
	Title           string `gorm:"not null"`
	Version         int    `gorm:"not null"`
	Status          string `gorm:"not null"`
	ContentMarkdown string `gorm:"type:text"`
	StorageKey      string
	GeneratedBy     string
	GeneratedAt     time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type SectionModel struct {
	ID           string `gorm:"primaryKey"`
	DocumentID   string `gorm:"not null;index;uniqueIndex:idx_sections_doc_type_name"`
	DocumentType string `gorm:"not null;uniqueIndex:idx_sections_doc_type_name"`
	Name         string `gorm:"not null;uniqueIndex:idx_sections_doc_type_name"`
	SectionOrder int    `gorm:"not null"`
	Content      string `gorm:"type:text"`
	Version      int    `gorm:"not null"`
	TokensUsed   int    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type CheckpointModel struct {
	JobID             string `gorm:"primaryKey"`
	JobType           string `gorm:"not null"`
	ClientID          string `gorm:"not null;index"`
	Month             int    `gorm:"not null"`
	Status            string `gorm:"not null;index"`
	TotalSections     int    `gorm:"not null"`
	CompletedSections int    `gorm:"not null"`
	CurrentSection    string
	DocumentID        string
	GeneratedContent  datatypes.JSON `gorm:"type:jsonb"`
	PromptContext     datatypes.JSON `gorm:"type:jsonb"`
	CanResume         bool           `gorm:"not null;index"`
	ErrorMessage      string         `gorm:"type:text"`
	RequestedBy       string
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null;index"`
}

type TokenBudgetModel struct {
	ID               string  `gorm:"primaryKey"`
	Period           string  `gorm:"not null;index"`
	TokenLimit       int64   `gorm:"not null"`
	CostLimit        float64 `gorm:"not null"`
	TokensUsed       int64   `gorm:"not null"`
	CostUsed         float64 `gorm:"not null"`
	IsActive         bool    `gorm:"not null;index"`
	IsPaused         bool    `gorm:"not null"`
	AlertsFired      datatypes.JSON `gorm:"type:jsonb"`
	AutoPauseAtLimit bool    `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}
